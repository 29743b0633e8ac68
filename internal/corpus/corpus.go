// Package corpus reads the reproducible document corpus from JSON Lines files.
//
// Every ingestion collaborator (clause sets, statutes, playbooks, policy
// archives) writes one record per line:
//
//	{"doc_id":"...","source":"statutes","doc_type":"statute","title":"...","text":"...","metadata":{...}}
//
// Files ending in .json may instead hold a single array of such records.
package corpus

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/domain/document"
)

// maxLineSize bounds one JSONL record; a document text is at most 160KB.
const maxLineSize = 1 << 20

// maxLoggedInvalid caps per-file warnings about skipped records.
const maxLoggedInvalid = 5

// ErrNoFiles is returned when the pattern matches nothing.
var ErrNoFiles = errors.New("corpus pattern matched no files")

// Record is the on-disk shape of a document.
type Record struct {
	ID       string            `json:"doc_id"`
	Source   string            `json:"source"`
	DocType  string            `json:"doc_type"`
	Title    string            `json:"title"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// FromDocument converts a document to its on-disk shape.
func FromDocument(d document.Document) Record {
	return Record{
		ID:       d.ID(),
		Source:   string(d.Source()),
		DocType:  string(d.DocType()),
		Title:    d.Title(),
		Text:     d.Text(),
		Metadata: d.Metadata(),
	}
}

// Document validates the record.
func (r Record) Document() (document.Document, error) {
	return document.New(r.ID, document.Source(r.Source), document.DocType(r.DocType), r.Title, r.Text, r.Metadata) //nolint:wrapcheck // ValidationError is final
}

// Files is a corpus made of every file matching a doublestar pattern,
// e.g. "data/corpus/**/*.jsonl".
type Files struct {
	pattern string
	logger  *zap.Logger
}

// NewFiles creates a file-backed corpus.
func NewFiles(pattern string, logger *zap.Logger) *Files {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Files{pattern: pattern, logger: logger}
}

// Pattern returns the configured glob.
func (f *Files) Pattern() string { return f.pattern }

// Documents reads every matching file in lexical order. Records that fail
// validation are skipped and logged; unreadable files and malformed JSON fail
// the whole read so a rebuild never runs on a partial corpus.
func (f *Files) Documents(ctx context.Context) ([]document.Document, error) {
	paths, err := doublestar.FilepathGlob(f.pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", f.pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, f.pattern)
	}
	slices.Sort(paths)

	var docs []document.Document
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err //nolint:wrapcheck // context error is final
		}
		recs, err := readFile(p)
		if err != nil {
			return nil, err
		}
		valid, skipped := f.validate(p, recs)
		docs = append(docs, valid...)
		f.logger.Info("Corpus file read",
			zap.String("path", p),
			zap.Int("documents", len(valid)),
			zap.Int("skipped", skipped),
		)
	}
	return docs, nil
}

func (f *Files) validate(path string, recs []Record) ([]document.Document, int) {
	out := make([]document.Document, 0, len(recs))
	skipped := 0
	for i, r := range recs {
		d, err := r.Document()
		if err != nil {
			skipped++
			if skipped <= maxLoggedInvalid {
				f.logger.Warn("Skipping invalid corpus record",
					zap.String("path", path),
					zap.Int("record", i),
					zap.String("doc_id", r.ID),
					zap.Error(err),
				)
			}
			continue
		}
		out = append(out, d)
	}
	return out, skipped
}

func readFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var recs []Record
		if err := json.Unmarshal(data, &recs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return recs, nil
	}
	return decodeLines(path, data)
}

func decodeLines(path string, data []byte) ([]Record, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var recs []Record
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var r Record
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("decode %s:%d: %w", path, line, err)
		}
		recs = append(recs, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	return recs, nil
}
