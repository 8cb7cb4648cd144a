package alert

import (
	"github.com/puzzle-health/tracker/internal/patient"
	"github.com/puzzle-health/tracker/internal/risk"
)

// TriageBuckets groups a patient population by risk tier for central-team
// review. Bucket membership always agrees with the stored tier, so the
// hospice override carries through: a hospice patient lands in Low no matter
// the score. Within a bucket, patients keep the cohort ordering.
type TriageBuckets struct {
	High   []patient.Patient `json:"high"`
	Medium []patient.Patient `json:"medium"`
	Low    []patient.Patient `json:"low"`
}

// Total returns the population size across all buckets
func (b TriageBuckets) Total() int {
	return len(b.High) + len(b.Medium) + len(b.Low)
}

// OpenAlerts counts non-resolved alerts across all buckets
func (b TriageBuckets) OpenAlerts() int {
	count := 0
	for _, bucket := range [][]patient.Patient{b.High, b.Medium, b.Low} {
		for _, p := range bucket {
			count += len(p.Alerts)
		}
	}
	return count
}

// BuildTriageBuckets distributes the population into tier buckets
func BuildTriageBuckets(patients []patient.Patient) TriageBuckets {
	var b TriageBuckets
	for _, p := range patients {
		switch p.RiskTier {
		case risk.TierHigh:
			b.High = append(b.High, p)
		case risk.TierMedium:
			b.Medium = append(b.Medium, p)
		default:
			b.Low = append(b.Low, p)
		}
	}
	return b
}
