package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kailas-cloud/legalrag/internal/version"
)

const usage = `Usage: legalrag <command> [options]

Commands:
  serve     run the HTTP API
  ingest    embed the corpus and save the index
  ask       answer one question from the command line
  review    review a contract clause by clause against a playbook
  breach    report breach notification duties for affected states
  eval      score retrieval and one generation strategy on a benchmark
  compare   rank generation strategies on a benchmark
  export    mirror the index into a Qdrant collection
  version   print the build version

Configuration is read from config/$ENV.yaml (ENV defaults to local).
Run "legalrag <command> -h" for command options.
`

type command func(ctx context.Context, args []string) error

var commands = map[string]command{
	"serve":   runServe,
	"ingest":  runIngest,
	"ask":     runAsk,
	"review":  runReview,
	"breach":  runBreach,
	"eval":    runEval,
	"compare": runCompare,
	"export":  runExport,
}

func main() {
	// Load .env file if it exists (for API keys)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	name := os.Args[1]
	switch name {
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	case "version", "-version", "--version":
		fmt.Fprintln(os.Stdout, version.Get())
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, os.Args[2:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "legalrag %s: %v\n", name, err)
		stop()
		os.Exit(1)
	}
}
