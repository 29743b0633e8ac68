package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/kailas-cloud/legalrag/internal/usecase/pipeline"
)

type searchHit struct {
	ID     string  `json:"doc_id"`
	Score  float64 `json:"score"`
	Title  string  `json:"title"`
	Source string  `json:"source"`
	Text   string  `json:"text"`
}

func runAsk(ctx context.Context, args []string) error {
	var common commonFlags
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	common.register(fs)
	topK := fs.Int("top-k", 0, "documents to retrieve (default pipeline.top_k)")
	strategy := fs.String("strategy", "", "generation strategy (default chosen by route)")
	useRouter := fs.Bool("router", true, "classify the query before searching")
	searchOnly := fs.Bool("search", false, "print retrieved documents without generating")
	asJSON := fs.Bool("json", false, "print JSON")
	filters := filterFlag{}
	fs.Var(filters, "filter", "metadata filter key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err //nolint:wrapcheck // flag errors are printed by the flag set
	}
	query := strings.Join(fs.Args(), " ")
	if query == "" {
		return errors.New("usage: legalrag ask [options] <question>")
	}

	a, err := newApp(ctx, common, "ask")
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.loadIndex(ctx); err != nil {
		return err
	}

	req := pipeline.Request{
		Query:     query,
		TopK:      *topK,
		Filters:   filters,
		Strategy:  *strategy,
		UseRouter: *useRouter,
	}
	p := a.pipeline()

	if *searchOnly {
		ret, err := p.Retrieve(ctx, req)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		hits := make([]searchHit, len(ret.Results))
		for i := range ret.Results {
			r := &ret.Results[i]
			d := r.Document()
			hits[i] = searchHit{ID: r.ID(), Score: r.Score(), Title: d.Title(), Source: string(d.Source()), Text: d.Text()}
		}
		if *asJSON {
			return writeJSON(os.Stdout, hits)
		}
		for i, h := range hits {
			fmt.Printf("%2d. %.3f  %s  %s\n", i+1, h.Score, h.ID, h.Title)
		}
		return nil
	}

	res, err := p.Answer(ctx, req)
	if err != nil {
		return fmt.Errorf("answer: %w", err)
	}
	if *asJSON {
		return writeJSON(os.Stdout, res)
	}
	printAnswer(os.Stdout, res)
	return nil
}
