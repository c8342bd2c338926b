package rank

// Trend describes how a tool's sentiment moved within the analyzed window.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendStable    Trend = "stable"
	TrendNoData    Trend = "no_data"
)

// TrendDelta is how far the mean score must move between the earlier and
// later half of a tool's mentions before the trend leaves stable.
const TrendDelta = 0.1

// trendFor compares the mean score of the earlier half of time-ordered
// scores against the later half. With fewer than two scores one half is
// empty and there is nothing to compare.
func trendFor(scores []float64) Trend {
	half := len(scores) / 2
	earlier := scores[:half]
	later := scores[half:]
	if len(earlier) == 0 || len(later) == 0 {
		return TrendNoData
	}

	delta := mean(later) - mean(earlier)
	switch {
	case delta > TrendDelta:
		return TrendImproving
	case delta < -TrendDelta:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
