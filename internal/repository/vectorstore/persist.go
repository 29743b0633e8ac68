package vectorstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/domain"
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/index"
)

const (
	sidecarVersion = 2
	indexSuffix    = ".index"
	sidecarSuffix  = ".meta.json"
	// blobHashLen is how many hex digits of the index checksum name a blob.
	blobHashLen = 12
)

// ErrNoPath is returned by Save and Load on a store without a path.
var ErrNoPath = errors.New("vector store path is not configured")

type sidecar struct {
	Version     int          `json:"format_version"`
	IndexFile   string       `json:"index_file"`
	Dimension   int          `json:"dimension"`
	Count       int          `json:"count"`
	ContentHash string       `json:"content_hash"`
	IndexSHA256 string       `json:"index_sha256"`
	Model       string       `json:"embedding_model,omitempty"`
	SavedAt     time.Time    `json:"saved_at"`
	Documents   []sidecarDoc `json:"documents"`
}

// sidecarDoc is one document in index position order.
type sidecarDoc struct {
	ID       string            `json:"doc_id"`
	Source   string            `json:"source"`
	DocType  string            `json:"doc_type"`
	Title    string            `json:"title"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// snapshot is an encoded state ready to be written.
type snapshot struct {
	blob []byte
	meta []byte
	sc   sidecar
}

// encode serializes st. The blob is named after its checksum, so writing it
// never touches the blob the current sidecar points at.
func (s *Store) encode(st *state) (*snapshot, error) {
	blob, err := st.idx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	sum := sha256.Sum256(blob)
	checksum := hex.EncodeToString(sum[:])

	sc := sidecar{
		Version:     sidecarVersion,
		IndexFile:   filepath.Base(s.opts.Path) + "." + checksum[:blobHashLen] + indexSuffix,
		Dimension:   st.idx.Dim(),
		Count:       st.len(),
		ContentHash: contentHash(st.docs),
		IndexSHA256: checksum,
		Model:       s.model(),
		SavedAt:     time.Now().UTC(),
		Documents:   make([]sidecarDoc, st.len()),
	}
	for p := range st.docs {
		d := &st.docs[p]
		sc.Documents[p] = sidecarDoc{
			ID:       d.ID(),
			Source:   string(d.Source()),
			DocType:  string(d.DocType()),
			Title:    d.Title(),
			Text:     d.Text(),
			Metadata: d.Metadata(),
		}
	}
	meta, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("encode sidecar: %w", err)
	}
	return &snapshot{blob: blob, meta: meta, sc: sc}, nil
}

func (s *Store) blobPath(name string) string {
	return filepath.Join(filepath.Dir(s.opts.Path), name)
}

// Save writes a content-addressed index blob and then the sidecar naming it.
// Renaming the sidecar into place is the only commit point: a crash before it
// leaves the previous sidecar and the blob it names untouched. Blobs no
// longer referenced are removed after the commit.
func (s *Store) Save(ctx context.Context) error {
	if s.opts.Path == "" {
		return ErrNoPath
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck // context error is final
	}

	snap, err := s.encode(s.cur.Load())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.opts.Path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := writeFileAtomic(s.blobPath(snap.sc.IndexFile), snap.blob); err != nil {
		return err
	}
	if err := writeFileAtomic(s.opts.Path+sidecarSuffix, snap.meta); err != nil {
		return err
	}
	s.removeStaleBlobs(snap.sc.IndexFile)

	s.logger.Info("Vector store saved",
		zap.String("path", s.opts.Path),
		zap.String("index_file", snap.sc.IndexFile),
		zap.Int("documents", snap.sc.Count),
		zap.Int("dimension", snap.sc.Dimension),
		zap.String("content_hash", snap.sc.ContentHash),
	)
	return nil
}

// removeStaleBlobs deletes index blobs of this path other than keep.
// Failures are logged; a leftover blob is harmless.
func (s *Store) removeStaleBlobs(keep string) {
	dir := filepath.Dir(s.opts.Path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Warn("List index dir failed", zap.String("dir", dir), zap.Error(err))
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == keep || !s.isBlobName(name) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Remove stale index failed", zap.String("file", name), zap.Error(err))
		}
	}
}

// isBlobName matches <base>.<hex>.index as written by Save.
func (s *Store) isBlobName(name string) bool {
	prefix := filepath.Base(s.opts.Path) + "."
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, indexSuffix) {
		return false
	}
	hash := strings.TrimSuffix(strings.TrimPrefix(name, prefix), indexSuffix)
	if len(hash) != blobHashLen {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}

// Load replaces the in-memory state with the persisted one.
//
// The sidecar must agree with the blob (checksum, dimension, count) and its
// content hash must match the documents it lists. With a corpus configured,
// a stale, corrupt or missing index is rebuilt from the corpus and saved.
// Without one, corruption is returned as *domain.IndexCorruptionError.
func (s *Store) Load(ctx context.Context) error {
	if s.opts.Path == "" {
		return ErrNoPath
	}

	next, stored, err := s.readState()
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist) && s.opts.Corpus != nil:
		s.logger.Warn("Persisted index not found, building from corpus", zap.String("path", s.opts.Path))
		return s.rebuild(ctx)
	case errors.Is(err, domain.ErrIndexCorruption) && s.opts.Corpus != nil:
		s.logger.Error("Persisted index is corrupt, rebuilding from corpus", zap.Error(err))
		return s.rebuild(ctx)
	default:
		return err
	}

	if s.opts.Corpus != nil {
		docs, err := s.opts.Corpus.Documents(ctx)
		if err != nil {
			return fmt.Errorf("read corpus: %w", err)
		}
		if h := contentHash(docs); h != stored.ContentHash {
			s.logger.Warn("Persisted index is stale, rebuilding from corpus",
				zap.String("stored_hash", stored.ContentHash),
				zap.String("corpus_hash", h),
			)
			return s.rebuildFrom(ctx, docs)
		}
	}

	s.swap(next)
	s.logger.Info("Vector store loaded",
		zap.String("path", s.opts.Path),
		zap.Int("documents", next.len()),
		zap.Int("dimension", next.idx.Dim()),
	)
	return nil
}

// readState decodes the sidecar, then the blob it names, and verifies both.
func (s *Store) readState() (*state, sidecar, error) {
	raw, err := os.ReadFile(s.opts.Path + sidecarSuffix)
	if err != nil {
		return nil, sidecar{}, fmt.Errorf("read sidecar: %w", err)
	}

	corrupt := func(format string, args ...any) error {
		return &domain.IndexCorruptionError{Path: s.opts.Path, Reason: fmt.Sprintf(format, args...)}
	}

	var sc sidecar
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, sc, corrupt("decode sidecar: %v", err)
	}
	if sc.Version != sidecarVersion {
		return nil, sc, corrupt("unsupported sidecar version %d", sc.Version)
	}
	if sc.IndexFile == "" || filepath.Base(sc.IndexFile) != sc.IndexFile {
		return nil, sc, corrupt("invalid index file name %q", sc.IndexFile)
	}
	blob, err := os.ReadFile(s.blobPath(sc.IndexFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, sc, corrupt("index file %s named by sidecar is missing", sc.IndexFile)
	}
	if err != nil {
		return nil, sc, fmt.Errorf("read index: %w", err)
	}
	sum := sha256.Sum256(blob)
	if hex.EncodeToString(sum[:]) != sc.IndexSHA256 {
		return nil, sc, corrupt("index checksum does not match sidecar")
	}
	idx := index.New(0)
	if err := idx.UnmarshalBinary(blob); err != nil {
		return nil, sc, corrupt("%v", err)
	}
	if idx.Dim() != sc.Dimension || idx.Len() != sc.Count || len(sc.Documents) != sc.Count {
		return nil, sc, corrupt("sidecar says %d x %d with %d documents, index has %d x %d",
			sc.Count, sc.Dimension, len(sc.Documents), idx.Len(), idx.Dim())
	}
	if m := s.model(); m != "" && sc.Model != "" && m != sc.Model {
		return nil, sc, corrupt("index built with %q, embedder is %q", sc.Model, m)
	}

	st := &state{idx: idx, docs: make([]document.Document, sc.Count), pos: make(map[string]int, sc.Count)}
	for p, d := range sc.Documents {
		doc, err := document.New(d.ID, document.Source(d.Source), document.DocType(d.DocType), d.Title, d.Text, d.Metadata)
		if err != nil {
			return nil, sc, corrupt("document %d: %v", p, err)
		}
		if _, dup := st.pos[d.ID]; dup {
			return nil, sc, corrupt("duplicate doc_id %q", d.ID)
		}
		st.docs[p] = doc
		st.pos[d.ID] = p
	}
	if h := contentHash(st.docs); h != sc.ContentHash {
		return nil, sc, corrupt("content hash mismatch")
	}
	return st, sc, nil
}

// rebuild embeds the whole corpus into a fresh state and saves it.
func (s *Store) rebuild(ctx context.Context) error {
	docs, err := s.opts.Corpus.Documents(ctx)
	if err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}
	return s.rebuildFrom(ctx, docs)
}

func (s *Store) rebuildFrom(ctx context.Context, docs []document.Document) error {
	fresh := New(s.embedder, s.opts)
	if _, err := fresh.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("rebuild from corpus: %w", err)
	}
	s.swap(fresh.cur.Load())
	return s.Save(ctx)
}

func (s *Store) model() string {
	if n, ok := s.embedder.(domain.ModelNamer); ok {
		return n.Model()
	}
	return ""
}

// contentHash is a SHA-256 over (doc_id, text) pairs sorted by doc_id, so it
// depends on what was embedded and not on insertion order. Duplicate ids
// count once, last occurrence wins, matching AddDocuments.
func contentHash(docs []document.Document) string {
	texts := make(map[string]string, len(docs))
	for i := range docs {
		texts[docs[i].ID()] = docs[i].Text()
	}

	h := sha256.New()
	for _, id := range slices.Sorted(maps.Keys(texts)) {
		h.Write([]byte(id))
		h.Write([]byte{0})
		h.Write([]byte(texts[id]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmp := f.Name()
	cleanup := func() { _ = os.Remove(tmp) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		cleanup()
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
