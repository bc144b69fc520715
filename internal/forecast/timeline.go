package forecast

import "math"

// TimelinePoint is one month of projected cumulative savings.
type TimelinePoint struct {
	Month          int     `json:"month"`
	Deterministic  float64 `json:"deterministic"`
	P10Optimistic  float64 `json:"p10_optimistic"`
	P50Median      float64 `json:"p50_median"`
	P90Pessimistic float64 `json:"p90_pessimistic"`
}

// buildTimeline fans the real contribution out into the display curves. The
// curves are fixed multiples of the contribution and are independent of the
// simulated percentiles; p90 only decides how many months are drawn.
func buildTimeline(s Snapshot, p90 float64, cfg Config) []TimelinePoint {
	horizon := min(int(p90)+cfg.TimelinePadding, cfg.TimelineHorizon)
	contribution := s.RealContribution()
	ceiling := math.Max(s.TargetAmount, s.CurrentAmount)

	project := func(monthly float64, month int) float64 {
		return math.Min(s.CurrentAmount+monthly*float64(month), ceiling)
	}

	points := make([]TimelinePoint, 0, horizon+1)
	for m := 0; m <= horizon; m++ {
		points = append(points, TimelinePoint{
			Month:          m,
			Deterministic:  project(contribution, m),
			P10Optimistic:  project(contribution*cfg.OptimisticMultiplier, m),
			P50Median:      project(contribution*cfg.MedianMultiplier, m),
			P90Pessimistic: project(contribution*cfg.PessimisticMultiplier, m),
		})
	}
	return points
}
