package analytics

import (
	"github.com/puzzle-health/tracker/internal/patient"
)

// FacilityMetrics is the derived operational picture of a facility. Nothing
// here is stored: every field is recomputed from the patient cohort and the
// facility's raw signals on each read, so the numbers can never drift from
// the records they summarize.
type FacilityMetrics struct {
	// Census counts patients currently resident in the SNF; the home
	// cohort is excluded.
	Census int `json:"census"`
	// HomeCohort counts this facility's patients in the 90-day program
	HomeCohort int `json:"home_cohort"`
	// HighRiskPct is the high-risk share of the full cohort, in [0, 1]
	HighRiskPct float64 `json:"high_risk_pct"`
	// Engagement is the facility's engagement score, in [35, 95]
	Engagement int `json:"engagement"`
	// RTH is the cohort's return-to-hospital projection
	RTH RTHProjection `json:"rth"`
}

// ComputeFacilityMetrics derives a facility's metrics from its raw signals
// and its full patient cohort (in-SNF and home).
func ComputeFacilityMetrics(engagementBase, lastAckMinutes int, cohort []patient.Patient) FacilityMetrics {
	census, home := 0, 0
	for _, p := range cohort {
		if p.AtHome {
			home++
		} else {
			census++
		}
	}

	highRiskPct := HighRiskFraction(cohort)

	return FacilityMetrics{
		Census:      census,
		HomeCohort:  home,
		HighRiskPct: highRiskPct,
		Engagement:  EngagementScore(engagementBase, lastAckMinutes, highRiskPct),
		RTH:         ProjectRTH(cohort),
	}
}
