package risk

// Tier is a patient's readmission risk band
type Tier string

const (
	TierHigh   Tier = "High"
	TierMedium Tier = "Medium"
	TierLow    Tier = "Low"
)

// Tier thresholds. Scores at or above HighThreshold are High; scores at or
// above MediumThreshold are Medium; everything below is Low.
const (
	HighThreshold   = 70
	MediumThreshold = 40
)

// Classify maps a 0-100 risk score to a tier
func Classify(score int) Tier {
	switch {
	case score >= HighThreshold:
		return TierHigh
	case score >= MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// ClassifyWithHospice maps a score to a tier, forcing Low for hospice
// patients regardless of score. Hospice care shifts the goal from readmission
// avoidance to comfort, so the score no longer drives outreach priority.
func ClassifyWithHospice(score int, hospice bool) Tier {
	if hospice {
		return TierLow
	}
	return Classify(score)
}
