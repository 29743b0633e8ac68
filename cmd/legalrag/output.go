package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/kailas-cloud/legalrag/internal/usecase/breach"
	"github.com/kailas-cloud/legalrag/internal/usecase/eval"
	"github.com/kailas-cloud/legalrag/internal/usecase/pipeline"
	"github.com/kailas-cloud/legalrag/internal/usecase/review"
)

// filterFlag collects repeated -filter key=value pairs.
type filterFlag map[string]string

func (f filterFlag) String() string {
	pairs := make([]string, 0, len(f))
	for _, k := range slices.Sorted(maps.Keys(f)) {
		pairs = append(pairs, k+"="+f[k])
	}
	return strings.Join(pairs, ",")
}

func (f filterFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || k == "" || val == "" {
		return fmt.Errorf("filter %q is not key=value", v)
	}
	f[k] = val
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func printAnswer(w io.Writer, res *pipeline.Result) {
	fmt.Fprintf(w, "%s\n\n", res.Answer)
	if res.Routing != nil {
		fmt.Fprintf(w, "routed: %s via %s", res.Routing.QueryType, res.Routing.Strategy)
		if res.Routing.Fallback {
			fmt.Fprint(w, " (fallback)")
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "strategy: %s  model: %s  review: %s\n", res.Strategy, res.Model, res.ReviewStatus)
	if res.Truncated {
		fmt.Fprintln(w, "context was truncated to fit the budget")
	}
	fmt.Fprintln(w, "\nsources:")
	for i, s := range res.Sources {
		fmt.Fprintf(w, "  [%d] %s  %s (%s/%s, score %.3f)", i+1, s.ID, s.Title, s.Source, s.DocType, s.Score)
		if s.Citation != "" {
			fmt.Fprintf(w, "  %s", s.Citation)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "\n%s\n", res.Disclaimer)
}

func printRetrieval(w io.Writer, rep *eval.RetrievalReport) {
	fmt.Fprintf(w, "run %s: %d cases", rep.RunID, len(rep.Cases))
	if len(rep.Skipped) > 0 {
		fmt.Fprintf(w, ", %d skipped without gold", len(rep.Skipped))
	}
	if len(rep.Failed) > 0 {
		fmt.Fprintf(w, ", %d failed", len(rep.Failed))
	}
	fmt.Fprintln(w)
	for _, k := range rep.Ks {
		fmt.Fprintf(w, "  Recall@%d  %.3f  (before budget %.3f)\n", k, rep.Recall[k], rep.RankedRecall[k])
	}
	fmt.Fprintf(w, "  MRR       %.3f  (before budget %.3f)\n", rep.MRR, rep.RankedMRR)
	if rep.Dropped > 0 {
		fmt.Fprintf(w, "  %d candidates cut by the context budget\n", rep.Dropped)
	}
	printFailed(w, rep.Failed)
}

func printGeneration(w io.Writer, rep *eval.GenerationReport) {
	fmt.Fprintf(w, "strategy %s, %d runs per case, %d cases\n", rep.Strategy, rep.Runs, len(rep.Cases))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  dimension\tmean\tvariance")
	rows := []struct {
		name string
		m, v float64
	}{
		{"risk_accuracy", rep.Mean.RiskAccuracy, rep.Variance.RiskAccuracy},
		{"issue_coverage", rep.Mean.IssueCoverage, rep.Variance.IssueCoverage},
		{"actionability", rep.Mean.Actionability, rep.Variance.Actionability},
		{"grounding", rep.Mean.Grounding, rep.Variance.Grounding},
		{"total", rep.Mean.Total, rep.Variance.Total},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "  %s\t%.2f\t%.2f\n", r.name, r.m, r.v)
	}
	_ = tw.Flush()
	printFailed(w, rep.Failed)
}

func printComparison(w io.Writer, c *eval.Comparison) {
	fmt.Fprintf(w, "run %s\n", c.RunID)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"rank", "strategy", "cases", "failed", "total", "var"}
	for _, k := range c.Ks {
		header = append(header, fmt.Sprintf("R@%d", k))
	}
	header = append(header, "MRR")
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i, r := range c.Rows {
		cols := []string{
			fmt.Sprint(i + 1), r.Strategy, fmt.Sprint(r.Cases), fmt.Sprint(r.Failed),
			fmt.Sprintf("%.2f", r.Mean.Total), fmt.Sprintf("%.2f", r.Variance.Total),
		}
		for _, k := range c.Ks {
			cols = append(cols, fmt.Sprintf("%.3f", r.Recall[k]))
		}
		cols = append(cols, fmt.Sprintf("%.3f", r.MRR))
		fmt.Fprintln(tw, strings.Join(cols, "\t"))
	}
	_ = tw.Flush()

	for _, r := range c.Rows {
		if len(r.Breakdown) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s gold recall by kind:\n", r.Strategy)
		for _, key := range slices.Sorted(maps.Keys(r.Breakdown)) {
			b := r.Breakdown[key]
			fmt.Fprintf(w, "  %-28s %d/%d  %.3f\n", key, b.Hit, b.Gold, b.Recall)
		}
	}
}

func printFailed(w io.Writer, failed map[string]string) {
	for _, id := range slices.Sorted(maps.Keys(failed)) {
		fmt.Fprintf(w, "  failed %s: %s\n", id, failed[id])
	}
}

func printReview(w io.Writer, rep *review.Report) {
	s := rep.Summary
	fmt.Fprintf(w, "playbook: %s  clauses: %d  overall risk: %s\n\n", rep.Playbook, s.TotalClauses, s.OverallRisk)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\theading\tclause type\talignment\trisk")
	for i := range rep.Clauses {
		c := &rep.Clauses[i]
		fmt.Fprintf(tw, "%d\t%s\t%s (%s)\t%s\t%s\n",
			c.Chunk.Position+1, c.Heading, c.ClauseType, c.Confidence, c.Alignment, c.RiskLevel)
	}
	_ = tw.Flush()
	for _, ci := range s.CriticalIssues {
		fmt.Fprintf(w, "  critical: clause %d %s (%s): %s\n", ci.Position+1, ci.Heading, ci.ClauseType, ci.Reason)
	}
	fmt.Fprintf(w, "\nreview: %s\n%s\n", rep.ReviewStatus, rep.Disclaimer)
}

func printBreach(w io.Writer, rep *breach.Report) {
	s := rep.Summary
	fmt.Fprintf(w, "%d jurisdictions, notification required in %d\n", s.TotalJurisdictions, s.NotificationsRequired)
	fmt.Fprintf(w, "earliest deadline: %s", s.EarliestDeadline)
	if s.EarliestDeadlineState != "" {
		fmt.Fprintf(w, " (%s)", s.EarliestDeadlineState)
	}
	fmt.Fprintln(w)
	if s.SafeHarborApplies {
		fmt.Fprintf(w, "safe harbor: %s\n", s.SafeHarborReason)
	}
	for _, ag := range s.AGNotifications {
		fmt.Fprintf(w, "  AG notice %s\n", ag)
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "state\trequired\tdeadline\tAG\tstatutes")
	for i := range rep.States {
		st := &rep.States[i]
		switch {
		case st.Error != "":
			fmt.Fprintf(tw, "%s\t-\t%s\t-\t-\n", st.Jurisdiction, st.Error)
		case st.ParseError:
			fmt.Fprintf(tw, "%s\t?\tunparseable analysis\t?\t%s\n", st.Jurisdiction, strings.Join(st.Statutes, ","))
		default:
			fmt.Fprintf(tw, "%s\t%t\t%s\t%t\t%s\n",
				st.Jurisdiction, st.NotificationRequired, st.Deadline, st.NotifyAG, strings.Join(st.Statutes, ","))
		}
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "\nreview: %s\n%s\n", rep.ReviewStatus, rep.Disclaimer)
}
