package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/legalrag/internal/usecase/breach"
	"github.com/kailas-cloud/legalrag/internal/usecase/review"
)

func runReview(ctx context.Context, args []string) error {
	var common commonFlags
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	common.register(fs)
	playbookPath := fs.String("playbook", "", "playbook YAML or JSON file (default: playbooks in the index)")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err //nolint:wrapcheck // flag errors are printed by the flag set
	}
	if fs.NArg() != 1 {
		return errors.New("usage: legalrag review [options] <contract-file>")
	}
	contract, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read contract: %w", err)
	}
	var playbook review.Positions
	if *playbookPath != "" {
		pb, err := review.LoadPlaybook(*playbookPath)
		if err != nil {
			return err //nolint:wrapcheck // already names the file
		}
		playbook = pb
	}

	a, err := newApp(ctx, common, "review")
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.loadIndex(ctx); err != nil {
		return err
	}

	rep, err := a.reviewer().Review(ctx, string(contract), playbook)
	if err != nil {
		return fmt.Errorf("review: %w", err)
	}
	if *asJSON {
		return writeJSON(os.Stdout, rep)
	}
	printReview(os.Stdout, rep)
	return nil
}

func runBreach(ctx context.Context, args []string) error {
	var common commonFlags
	fs := flag.NewFlagSet("breach", flag.ContinueOnError)
	common.register(fs)
	paramsPath := fs.String("params", "", "incident parameters YAML or JSON file")
	states := fs.String("states", "", "comma-separated affected state codes")
	dataTypes := fs.String("data-types", "", "comma-separated compromised data types")
	encryption := fs.String("encryption", "", "encryption status: encrypted, unencrypted or unknown")
	count := fs.Int("count", 0, "number of affected individuals")
	discovered := fs.String("discovered", "", "discovery date")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err //nolint:wrapcheck // flag errors are printed by the flag set
	}

	var p breach.Params
	if *paramsPath != "" {
		raw, err := os.ReadFile(*paramsPath)
		if err != nil {
			return fmt.Errorf("read params: %w", err)
		}
		if err := yaml.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("parse params %s: %w", *paramsPath, err)
		}
	}
	// Flags override the file.
	if *states != "" {
		p.States = splitList(*states)
	}
	if *dataTypes != "" {
		p.DataTypes = splitList(*dataTypes)
	}
	if *encryption != "" {
		p.Encryption = *encryption
	}
	if *count > 0 {
		p.AffectedCount = *count
	}
	if *discovered != "" {
		p.DiscoveryDate = *discovered
	}

	a, err := newApp(ctx, common, "breach")
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.loadIndex(ctx); err != nil {
		return err
	}

	rep, err := a.breachAnalyzer().Analyze(ctx, p)
	if err != nil {
		return fmt.Errorf("breach: %w", err)
	}
	if *asJSON {
		return writeJSON(os.Stdout, rep)
	}
	printBreach(os.Stdout, rep)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
