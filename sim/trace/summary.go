package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalDecisions        int
	DispatchedCount       int
	DroppedCount          int
	MeanChosenProbability float64 // 0 when no decision carried probabilities
	UniqueTargets         int
	TargetDistribution    map[int]int // server ID → count of requests routed
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		TargetDistribution: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalDecisions = len(st.Routings)
	probSum, probCount := 0.0, 0
	for _, r := range st.Routings {
		if r.Dropped() {
			summary.DroppedCount++
			continue
		}
		summary.DispatchedCount++
		summary.TargetDistribution[r.ChosenServer]++
		if p, ok := r.Probabilities[r.ChosenServer]; ok {
			probSum += p
			probCount++
		}
	}
	if probCount > 0 {
		summary.MeanChosenProbability = probSum / float64(probCount)
	}

	summary.UniqueTargets = len(summary.TargetDistribution)

	return summary
}
