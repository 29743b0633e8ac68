// Package qdrant mirrors the local vector store into a Qdrant collection.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/corpus"
	"github.com/kailas-cloud/legalrag/internal/domain/document"
	"github.com/kailas-cloud/legalrag/internal/usecase/retry"
)

// DefaultBatchSize is the number of points per upsert.
const DefaultBatchSize = 100

// pointNamespace seeds the UUIDv5 point ids derived from doc_ids.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://legalrag/doc_id"))

// Config holds Qdrant connection settings.
type Config struct {
	// URL is the gRPC endpoint, e.g. "http://localhost:6334".
	URL        string
	APIKey     string
	Collection string
	BatchSize  int
	Retry      retry.Policy
}

// points is the part of *qdrant.Client the exporter uses.
type points interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error
	Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Close() error
}

// Source is a consistent view of the documents to export.
type Source interface {
	Snapshot() []document.Document
	Dimension() int
}

// Exporter upserts documents with their embeddings into one collection.
type Exporter struct {
	client points
	cfg    Config
	logger *zap.Logger
}

// New connects to Qdrant.
func New(cfg Config, logger *zap.Logger) (*Exporter, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant url is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant collection is required")
	}

	raw := cfg.URL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant url: %w", err)
	}
	port := 6334
	if p := u.Port(); p != "" {
		if port, err = strconv.Atoi(p); err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return newExporter(client, cfg, logger), nil
}

func newExporter(client points, cfg Config, logger *zap.Logger) *Exporter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{client: client, cfg: cfg, logger: logger}
}

// Close releases the gRPC connection.
func (e *Exporter) Close() error {
	return e.client.Close() //nolint:wrapcheck // close error is final
}

// Export creates the collection if needed and upserts every document.
// Point ids are derived from doc_ids, so repeating an export overwrites
// the same points.
func (e *Exporter) Export(ctx context.Context, src Source) (int, error) {
	docs := src.Snapshot()
	if len(docs) == 0 {
		return 0, nil
	}
	if err := e.ensureCollection(ctx, src.Dimension()); err != nil {
		return 0, err
	}

	wait := true
	done := 0
	for start := 0; start < len(docs); start += e.cfg.BatchSize {
		batch := docs[start:min(start+e.cfg.BatchSize, len(docs))]
		pts := make([]*qdrant.PointStruct, len(batch))
		for i := range batch {
			pts[i] = point(batch[i])
		}
		err := retry.Do(ctx, e.cfg.Retry, "qdrant_upsert", func(ctx context.Context) error {
			_, err := e.client.Upsert(ctx, &qdrant.UpsertPoints{
				CollectionName: e.cfg.Collection,
				Wait:           &wait,
				Points:         pts,
			})
			return err //nolint:wrapcheck // wrapped by retry
		})
		if err != nil {
			return done, fmt.Errorf("upsert batch at %d: %w", start, err)
		}
		done += len(batch)
		e.logger.Debug("Qdrant batch upserted", zap.Int("done", done), zap.Int("total", len(docs)))
	}

	e.logger.Info("Exported to Qdrant",
		zap.String("collection", e.cfg.Collection),
		zap.Int("points", done),
	)
	return done, nil
}

func (e *Exporter) ensureCollection(ctx context.Context, dim int) error {
	exists, err := e.client.CollectionExists(ctx, e.cfg.Collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", e.cfg.Collection, err)
	}
	if exists {
		return nil
	}
	err = e.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: e.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim), //nolint:gosec // dimension is positive
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", e.cfg.Collection, err)
	}
	e.logger.Info("Qdrant collection created", zap.String("collection", e.cfg.Collection), zap.Int("dimension", dim))
	return nil
}

// PointID is the deterministic Qdrant id of a doc_id.
func PointID(docID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(docID)).String()
}

func point(d document.Document) *qdrant.PointStruct {
	r := corpus.FromDocument(d)
	md := make(map[string]any, len(r.Metadata))
	for k, v := range r.Metadata {
		md[k] = v
	}
	return &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(PointID(r.ID)),
		Vectors: qdrant.NewVectors(d.Embedding()...),
		Payload: qdrant.NewValueMap(map[string]any{
			"doc_id":   r.ID,
			"source":   r.Source,
			"doc_type": r.DocType,
			"title":    r.Title,
			"text":     r.Text,
			"metadata": md,
		}),
	}
}
