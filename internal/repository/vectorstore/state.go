package vectorstore

import (
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/index"
)

// state is an immutable snapshot of the store. Writers build a new state
// off to the side and publish it with a single pointer swap.
// Invariant: idx.Len() == len(docs) == len(pos).
type state struct {
	idx  *index.Flat
	docs []document.Document // by index position; embeddings live in idx
	pos  map[string]int      // doc_id -> index position
}

func emptyState() *state {
	return &state{idx: index.New(0), pos: map[string]int{}}
}

func (s *state) len() int { return len(s.docs) }

// clone copies everything a writer may touch.
func (s *state) clone() *state {
	docs := make([]document.Document, len(s.docs), len(s.docs)+1)
	copy(docs, s.docs)
	pos := make(map[string]int, len(s.pos))
	for k, v := range s.pos {
		pos[k] = v
	}
	return &state{idx: s.idx.Clone(), docs: docs, pos: pos}
}

// upsert overwrites the record at the doc's existing position or appends it.
// The index is written first so a failure leaves docs and pos untouched.
func (s *state) upsert(doc document.Document, vec []float32) error {
	if p, ok := s.pos[doc.ID()]; ok {
		if err := s.idx.Set(p, vec); err != nil {
			return err //nolint:wrapcheck // caller adds doc context
		}
		s.docs[p] = doc
		return nil
	}
	p, err := s.idx.Add(vec)
	if err != nil {
		return err //nolint:wrapcheck // caller adds doc context
	}
	s.docs = append(s.docs, doc)
	s.pos[doc.ID()] = p
	return nil
}

// document returns the record at p with its stored vector attached.
func (s *state) document(p int) document.Document {
	d := s.docs[p]
	return d.WithEmbedding(s.idx.Vector(p))
}
