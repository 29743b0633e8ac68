package eval

// scoreRetrieval scores one ranked list against the case gold set.
func scoreRetrieval(c Case, retrieved []string, ks []int) RetrievalCase {
	gold := make(map[string]bool, len(c.GoldIDs))
	for _, id := range c.GoldIDs {
		gold[id] = true
	}
	rc := RetrievalCase{ID: c.ID, Retrieved: retrieved, Recall: make(map[int]float64, len(ks))}
	for _, k := range ks {
		rc.Recall[k] = recallAt(retrieved, gold, k)
	}
	rc.ReciprocalRank = reciprocalRank(retrieved, gold)
	return rc
}

// recallAt is the fraction of gold ids found in the first k retrieved.
func recallAt(retrieved []string, gold map[string]bool, k int) float64 {
	if len(gold) == 0 {
		return 0
	}
	hits := 0
	seen := make(map[string]bool, k)
	for _, id := range retrieved[:min(k, len(retrieved))] {
		if gold[id] && !seen[id] {
			seen[id] = true
			hits++
		}
	}
	return float64(hits) / float64(len(gold))
}

// reciprocalRank is 1/rank of the first gold id, or 0 when none is retrieved.
func reciprocalRank(retrieved []string, gold map[string]bool) float64 {
	for i, id := range retrieved {
		if gold[id] {
			return 1 / float64(i+1)
		}
	}
	return 0
}

func meanVariance(all []Scores) (Dimensions, Dimensions) {
	if len(all) == 0 {
		return Dimensions{}, Dimensions{}
	}
	get := []func(Scores) float64{
		func(s Scores) float64 { return s.RiskAccuracy },
		func(s Scores) float64 { return s.IssueCoverage },
		func(s Scores) float64 { return s.Actionability },
		func(s Scores) float64 { return s.Grounding },
		func(s Scores) float64 { return s.Total },
	}
	var mean, variance [5]float64
	n := float64(len(all))
	for d, f := range get {
		for _, s := range all {
			mean[d] += f(s)
		}
		mean[d] /= n
		for _, s := range all {
			diff := f(s) - mean[d]
			variance[d] += diff * diff
		}
		variance[d] /= n
	}
	return dims(mean), dims(variance)
}

func dims(v [5]float64) Dimensions {
	return Dimensions{RiskAccuracy: v[0], IssueCoverage: v[1], Actionability: v[2], Grounding: v[3], Total: v[4]}
}
