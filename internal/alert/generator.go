package alert

import (
	"time"

	"github.com/puzzle-health/tracker/internal/patient"
	"github.com/puzzle-health/tracker/internal/shared/config"
	"github.com/puzzle-health/tracker/internal/shared/types"
)

// Alert types produced by the generator
const (
	TypeRPMAbnormal = "RPM abnormal"
	TypeMissedCall  = "Missed weekly call"
)

// Generator derives alerts from a patient's current signals. Whether a
// condition fires is a pure function of the record and the clock; each fired
// alert gets a fresh identity, and the store's one-active-alert-per-type
// guarantee decides whether it is actually kept.
type Generator struct {
	cfg config.AlertConfig
}

// NewGenerator creates a generator with the given thresholds
func NewGenerator(cfg config.AlertConfig) *Generator {
	return &Generator{cfg: cfg}
}

// Generate returns the alerts a patient's signals currently warrant. Both
// rules apply to every patient; hospice changes the displayed tier, not the
// alert conditions.
func (g *Generator) Generate(p patient.Patient, now time.Time) []patient.Alert {
	var alerts []patient.Alert

	if p.RiskScore > g.cfg.RPMThreshold {
		alerts = append(alerts, patient.Alert{
			ID:        types.NewID(),
			PatientID: p.ID,
			Severity:  patient.SeverityHigh,
			Type:      TypeRPMAbnormal,
			Status:    patient.AlertOpen,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if !p.LastContactAt.IsZero() && now.Sub(p.LastContactAt) > g.cfg.ContactWindow {
		alerts = append(alerts, patient.Alert{
			ID:        types.NewID(),
			PatientID: p.ID,
			Severity:  patient.SeverityMedium,
			Type:      TypeMissedCall,
			Status:    patient.AlertOpen,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	return alerts
}
