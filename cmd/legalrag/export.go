package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/kailas-cloud/legalrag/internal/transport/qdrant"
)

func runExport(ctx context.Context, args []string) error {
	var common commonFlags
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	common.register(fs)
	collection := fs.String("collection", "", "target collection (overrides qdrant.collection)")
	if err := fs.Parse(args); err != nil {
		return err //nolint:wrapcheck // flag errors are printed by the flag set
	}

	a, err := newApp(ctx, common, "export")
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Qdrant.URL == "" {
		return errors.New("qdrant.url is not configured")
	}
	if err := a.loadIndex(ctx); err != nil {
		return err
	}

	cfg := qdrant.Config{
		URL:        a.cfg.Qdrant.URL,
		APIKey:     a.cfg.Qdrant.APIKey,
		Collection: a.cfg.Qdrant.Collection,
		BatchSize:  a.cfg.Qdrant.BatchSize,
		Retry:      a.retry,
	}
	if *collection != "" {
		cfg.Collection = *collection
	}
	exp, err := qdrant.New(cfg, a.logger.Named("qdrant"))
	if err != nil {
		return fmt.Errorf("connect qdrant: %w", err)
	}
	defer func() { _ = exp.Close() }()

	n, err := exp.Export(ctx, a.store)
	if err != nil {
		return fmt.Errorf("export after %d points: %w", n, err)
	}
	fmt.Printf("exported %d points to %s\n", n, cfg.Collection)
	return nil
}
