package domain

import "context"

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    string
	Content string
}

// ChatOptions tunes a single generation call.
type ChatOptions struct {
	Temperature float32
	MaxTokens   int
	// JSON requests a JSON object response when the provider supports it.
	JSON bool
}

// Chatter is the generation capability. Implementations never retry internally.
type Chatter interface {
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error)
}

// ModelNamer exposes the model identifier a capability is bound to.
type ModelNamer interface {
	Model() string
}
