package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/legalrag/internal/usecase/eval"
)

type evalFlags struct {
	common    commonFlags
	benchmark string
	runID     string
	runs      int
	router    bool
	asJSON    bool
}

func (f *evalFlags) register(fs *flag.FlagSet) {
	f.common.register(fs)
	fs.StringVar(&f.benchmark, "benchmark", "", "benchmark YAML (default eval.benchmark)")
	fs.StringVar(&f.runID, "run-id", "", "resume the run with this id (default: new run)")
	fs.IntVar(&f.runs, "runs", 0, "generations per case (default eval.runs)")
	fs.BoolVar(&f.router, "router", false, "route queries before searching")
	fs.BoolVar(&f.asJSON, "json", false, "print JSON")
}

// harness builds the app, the benchmark and a harness with a judge.
func (f *evalFlags) harness(ctx context.Context, command string) (*app, *eval.Benchmark, *eval.Harness, error) {
	a, err := newApp(ctx, f.common, command)
	if err != nil {
		return nil, nil, nil, err
	}
	path := f.benchmark
	if path == "" {
		path = a.cfg.Eval.Benchmark
	}
	if path == "" {
		a.close()
		return nil, nil, nil, errors.New("no benchmark: set eval.benchmark or pass -benchmark")
	}
	b, err := eval.LoadBenchmark(path)
	if err != nil {
		a.close()
		return nil, nil, nil, fmt.Errorf("load benchmark: %w", err)
	}
	if err := a.loadIndex(ctx); err != nil {
		a.close()
		return nil, nil, nil, err
	}
	runs := f.runs
	if runs <= 0 {
		runs = a.cfg.Eval.Runs
	}

	h := eval.New(a.pipeline(), eval.NewLLMJudge(a.chat, a.retry), eval.Options{
		Ks:          a.cfg.Eval.Ks,
		Runs:        runs,
		RunID:       f.runID,
		UseRouter:   f.router,
		Checkpoints: a.checkpoints(),
		Lookup:      a.store,
		Logger:      a.logger.Named("eval"),
	})
	a.logger.Info("Evaluation run",
		zap.String("run_id", h.RunID()),
		zap.String("benchmark", b.Name),
		zap.Int("cases", len(b.Cases)),
		zap.String("checkpoints", a.cfg.Eval.CheckpointDriver),
	)
	return a, b, h, nil
}

func runEval(ctx context.Context, args []string) error {
	var f evalFlags
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	f.register(fs)
	strategy := fs.String("strategy", "", "generation strategy to judge (default pipeline.default_strategy)")
	retrievalOnly := fs.Bool("retrieval-only", false, "skip generation and judging")
	if err := fs.Parse(args); err != nil {
		return err //nolint:wrapcheck // flag errors are printed by the flag set
	}

	a, b, h, err := f.harness(ctx, "eval")
	if err != nil {
		return err
	}
	defer a.close()

	ret, err := h.EvaluateRetrieval(ctx, b)
	if err != nil {
		return fmt.Errorf("evaluate retrieval: %w", err)
	}
	if *retrievalOnly {
		if f.asJSON {
			return writeJSON(os.Stdout, ret)
		}
		printRetrieval(os.Stdout, ret)
		return nil
	}

	name := *strategy
	if name == "" {
		name = a.cfg.Pipeline.DefaultStrategy
	}
	gen, err := h.EvaluateGeneration(ctx, b, name, f.runs)
	if err != nil {
		return fmt.Errorf("evaluate generation: %w", err)
	}

	if f.asJSON {
		return writeJSON(os.Stdout, struct {
			Retrieval  *eval.RetrievalReport  `json:"retrieval"`
			Generation *eval.GenerationReport `json:"generation"`
		}{ret, gen})
	}
	printRetrieval(os.Stdout, ret)
	fmt.Println()
	printGeneration(os.Stdout, gen)
	return nil
}

func runCompare(ctx context.Context, args []string) error {
	var f evalFlags
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	f.register(fs)
	strategies := fs.String("strategies", "", "comma-separated strategies (default: all)")
	if err := fs.Parse(args); err != nil {
		return err //nolint:wrapcheck // flag errors are printed by the flag set
	}

	a, b, h, err := f.harness(ctx, "compare")
	if err != nil {
		return err
	}
	defer a.close()

	var names []string
	for _, s := range strings.Split(*strategies, ",") {
		if s = strings.TrimSpace(s); s != "" {
			names = append(names, s)
		}
	}
	cmp, err := h.CompareStrategies(ctx, b, names)
	if err != nil {
		return fmt.Errorf("compare strategies: %w", err)
	}
	if f.asJSON {
		return writeJSON(os.Stdout, cmp)
	}
	printComparison(os.Stdout, cmp)
	return nil
}
