package document

import (
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/kailas-cloud/legalrag/internal/domain"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// MaxIDLength is the maximum doc_id length.
const MaxIDLength = 256

// MaxTextSize is the maximum document text size in bytes.
const MaxTextSize = 163840 // 160KB

// Document is the unit of retrieval (immutable value object).
type Document struct {
	id        string
	source    Source
	docType   DocType
	title     string
	text      string
	metadata  map[string]string
	embedding []float32
}

// New validates and creates a Document.
// Every failure is a *domain.ValidationError naming the offending field.
// Empty metadata values are dropped.
func New(id string, source Source, docType DocType, title, text string, metadata map[string]string) (Document, error) {
	switch {
	case id == "":
		return Document{}, domain.NewValidationError("doc_id", "is required")
	case len(id) > MaxIDLength:
		return Document{}, domain.NewValidationError("doc_id", "too long (max %d)", MaxIDLength)
	case !idRegex.MatchString(id):
		return Document{}, domain.NewValidationError("doc_id", "%q must match %s", id, idRegex.String())
	case source == "":
		return Document{}, domain.NewValidationError("source", "is required")
	case !source.Valid():
		return Document{}, domain.NewValidationError("source", "unknown source %q", source)
	case docType == "":
		return Document{}, domain.NewValidationError("doc_type", "is required")
	case !docType.Valid():
		return Document{}, domain.NewValidationError("doc_type", "unknown doc_type %q", docType)
	case strings.TrimSpace(title) == "":
		return Document{}, domain.NewValidationError("title", "is required")
	case strings.TrimSpace(text) == "":
		return Document{}, domain.NewValidationError("text", "is required")
	case len(text) > MaxTextSize:
		return Document{}, domain.NewValidationError("text", "too large (max %d bytes)", MaxTextSize)
	}

	md, err := normalizeMetadata(docType, metadata)
	if err != nil {
		return Document{}, err
	}

	return Document{
		id: id, source: source, docType: docType,
		title: title, text: text, metadata: md,
	}, nil
}

// normalizeMetadata checks keys against the doc_type schema in sorted order
// so the reported field is deterministic.
func normalizeMetadata(docType DocType, metadata map[string]string) (map[string]string, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(metadata))
	for _, k := range slices.Sorted(maps.Keys(metadata)) {
		v := strings.TrimSpace(metadata[k])
		if v == "" {
			continue
		}
		if !docType.AllowsKey(k) {
			return nil, domain.NewValidationError("metadata."+k, "not recognized for doc_type %q", docType)
		}
		if k == KeyRiskLevel && !validRiskLevels[v] {
			return nil, domain.NewValidationError("metadata."+k, "must be low, medium or high, got %q", v)
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	id string, source Source, docType DocType, title, text string,
	metadata map[string]string, embedding []float32,
) Document {
	return Document{
		id: id, source: source, docType: docType, title: title, text: text,
		metadata: metadata, embedding: embedding,
	}
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Source returns the originating collaborator tag.
func (d *Document) Source() Source { return d.source }

// DocType returns the document type.
func (d *Document) DocType() DocType { return d.docType }

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// Text returns the embedded text.
func (d *Document) Text() string { return d.text }

// Metadata returns the metadata fields. Callers must not mutate the map.
func (d *Document) Metadata() map[string]string { return d.metadata }

// Meta returns a single metadata value.
func (d *Document) Meta(key string) string { return d.metadata[key] }

// Embedding returns the embedding vector.
func (d *Document) Embedding() []float32 { return d.embedding }

// WithEmbedding returns a copy with the given embedding set.
func (d *Document) WithEmbedding(v []float32) Document {
	c := *d
	c.embedding = v
	return c
}

// Field resolves a filterable field: source, doc_type, title or any metadata key.
func (d *Document) Field(name string) (string, bool) {
	switch name {
	case "source":
		return string(d.source), true
	case "doc_type":
		return string(d.docType), true
	case "title":
		return d.title, true
	case "doc_id":
		return d.id, true
	}
	v, ok := d.metadata[name]
	return v, ok
}
