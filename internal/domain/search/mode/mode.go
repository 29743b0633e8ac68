package mode

// Mode is the filter execution strategy of a similarity search.
type Mode string

// Filter mode constants.
const (
	// Default defers to the store's construction-time choice.
	Default Mode = ""
	// PostFilter over-fetches from the whole index, drops non-matching hits
	// and escalates the fetch size when too few survive. Cost O(top_k × inflation).
	PostFilter Mode = "post"
	// PreFilter scans only the matching subset exhaustively. Cost O(collection size), exact.
	PreFilter Mode = "pre"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Default || m == PostFilter || m == PreFilter
}
