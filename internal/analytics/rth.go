package analytics

import (
	"github.com/puzzle-health/tracker/internal/patient"
	"github.com/puzzle-health/tracker/internal/shared/metrics"
)

// HighRiskScoreCutoff is the raw-score threshold for the analytics notion of
// high risk. It feeds both the RTH projection and a facility's high-risk
// share, and is deliberately looser than the High risk tier boundary: the
// projection wants the patients trending toward High, not only those already
// there.
const HighRiskScoreCutoff = 65

// RTH projection ceilings per horizon
const (
	rthCap30 = 0.22
	rthCap60 = 0.28
	rthCap90 = 0.34
)

// RTHProjection is a projected return-to-hospital rate at 30, 60, and 90
// days, expressed as fractions in [0, 1].
type RTHProjection struct {
	R30 float64 `json:"r30"`
	R60 float64 `json:"r60"`
	R90 float64 `json:"r90"`
}

// HighRiskFraction returns the share of the cohort above the high-risk score
// cutoff. An empty cohort has no high-risk share.
func HighRiskFraction(cohort []patient.Patient) float64 {
	if len(cohort) == 0 {
		return 0
	}
	high := 0
	for _, p := range cohort {
		if p.RiskScore > HighRiskScoreCutoff {
			high++
		}
	}
	return float64(high) / float64(len(cohort))
}

// ProjectRTH projects return-to-hospital rates for a cohort. The 30-day rate
// scales with the cohort's high-risk share on top of a baseline; the longer
// horizons add fixed increments. Each horizon is capped independently, so a
// capped 30-day rate still yields distinct 60- and 90-day figures. An empty
// cohort projects the baseline floor, not zero.
func ProjectRTH(cohort []patient.Patient) RTHProjection {
	metrics.RecordRTHComputation()

	n := len(cohort)
	if n == 0 {
		n = 1
	}
	high := 0
	for _, p := range cohort {
		if p.RiskScore > HighRiskScoreCutoff {
			high++
		}
	}

	r30 := float64(high)/float64(n)*0.3 + 0.07
	r60 := r30 + 0.05
	r90 := r60 + 0.04

	return RTHProjection{
		R30: min(r30, rthCap30),
		R60: min(r60, rthCap60),
		R90: min(r90, rthCap90),
	}
}
