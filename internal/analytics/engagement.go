package analytics

import "math"

// Engagement score bounds. A facility never scores below the floor even with
// catastrophic signals, and never above the ceiling even with a perfect week.
const (
	EngagementFloor   = 35
	EngagementCeiling = 95
)

// EngagementScore computes a facility's engagement score from its raw
// signals: the structural base rate, the minutes since the facility last
// acknowledged an alert, and the high-risk share of its current cohort.
//
// Staleness drags the score down one point per eight minutes; a healthier
// cohort mix adds up to ten points back. The result is clamped to
// [EngagementFloor, EngagementCeiling].
func EngagementScore(base, lastAckMinutes int, highRiskPct float64) int {
	score := base - int(math.Round(float64(lastAckMinutes)/8)) + int(math.Round((1-highRiskPct)*10))
	if score < EngagementFloor {
		return EngagementFloor
	}
	if score > EngagementCeiling {
		return EngagementCeiling
	}
	return score
}
