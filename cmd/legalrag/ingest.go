package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/corpus"
)

// runIngest builds the index from scratch and replaces the persisted one.
// With the embedding cache enabled unchanged documents cost no provider calls.
func runIngest(ctx context.Context, args []string) error {
	var common commonFlags
	flags := flag.NewFlagSet("ingest", flag.ContinueOnError)
	common.register(flags)
	pattern := flags.String("pattern", "", "corpus glob (overrides corpus.pattern), e.g. data/corpus/**/*.jsonl")
	if err := flags.Parse(args); err != nil {
		return err //nolint:wrapcheck // flag errors are printed by the flag set
	}

	a, err := newApp(ctx, common, "ingest")
	if err != nil {
		return err
	}
	defer a.close()

	src := a.corpus
	if *pattern != "" {
		src = corpus.NewFiles(*pattern, a.logger.Named("corpus"))
	}
	if src == nil {
		return errors.New("no corpus: set corpus.pattern or pass -pattern")
	}

	docs, err := src.Documents(ctx)
	if err != nil {
		return fmt.Errorf("read corpus: %w", err)
	}

	committed, addErr := a.store.AddDocuments(ctx, docs)
	if committed == 0 && addErr != nil {
		return fmt.Errorf("ingest: %w", addErr)
	}
	if addErr != nil {
		a.logger.Error("Some batches failed, saving what was committed", zap.Error(addErr))
	}
	if err := a.store.Save(ctx); err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	fmt.Printf("ingested %d of %d documents from %s; index holds %d (dim %d, hash %s)\n",
		committed, len(docs), src.Pattern(), a.store.Len(), a.store.Dimension(), a.store.ContentHash())
	return addErr
}
