package patient

import (
	"strings"
	"time"

	"github.com/puzzle-health/tracker/internal/risk"
	"github.com/puzzle-health/tracker/internal/shared/types"
)

// AlertSeverity grades an alert for triage display
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "High"
	SeverityMedium AlertSeverity = "Medium"
	SeverityLow    AlertSeverity = "Low"
)

// AlertStatus tracks the alert lifecycle: Open -> Acknowledged -> Resolved
type AlertStatus string

const (
	AlertOpen         AlertStatus = "open"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert is owned by exactly one patient and persisted once created. At most
// one non-resolved alert exists per patient and type, so acknowledge/resolve
// transitions survive regeneration; once resolved, the same condition may
// produce a fresh alert.
type Alert struct {
	ID        types.ID      `json:"id"`
	PatientID types.ID      `json:"patient_id"`
	Severity  AlertSeverity `json:"severity"`
	Type      string        `json:"type"`
	Status    AlertStatus   `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Vital is a single day's remote-monitoring sample
type Vital struct {
	Day  string `json:"day"`
	HR   int    `json:"hr"`
	RR   int    `json:"rr"`
	SpO2 int    `json:"spo2"`
}

// Encounter is an entry in the patient's care timeline
type Encounter struct {
	Type  string `json:"type"` // Hospital, SNF, Home
	Label string `json:"label"`
	When  string `json:"when"`
}

// Task is a care-plan item
type Task struct {
	ID     types.ID `json:"id"`
	Title  string   `json:"title"`
	Status string   `json:"status"` // Open, Scheduled, Done
}

// Intervention is a logged care-management action
type Intervention struct {
	When string `json:"when"`
	Type string `json:"type"`
	By   string `json:"by"`
	Note string `json:"note"`
}

// Patient is the canonical post-discharge record. RiskTier is derived from
// RiskScore and Hospice by the risk classifier and is never set independently;
// Alerts are populated by the alert service before a patient leaves the core.
//
// AtHome=true means enrolled in the 90-day home program after SNF discharge;
// AtHome=false means currently resident in the SNF. Exactly one holds.
type Patient struct {
	ID         types.ID `json:"id"`
	Name       string   `json:"name"`
	MRN        string   `json:"mrn"`
	FacilityID types.ID `json:"facility_id"`
	Payer      string   `json:"payer"`

	RiskScore int       `json:"risk_score"`
	RiskTier  risk.Tier `json:"risk_tier"`

	AtHome  bool `json:"at_home"`
	Hospice bool `json:"hospice"`
	AMA     bool `json:"ama"`

	NextAppointment string     `json:"next_appointment"`
	LastContactAt   time.Time  `json:"last_contact_at"`
	AdmittedAt      time.Time  `json:"admitted_at"`
	DischargedAt    *time.Time `json:"discharged_at,omitempty"`

	Alerts        []Alert        `json:"alerts"`
	Vitals        []Vital        `json:"vitals,omitempty"`
	Encounters    []Encounter    `json:"encounters,omitempty"`
	Tasks         []Task         `json:"tasks,omitempty"`
	Interventions []Intervention `json:"interventions,omitempty"`

	// Version increments on every write for optimistic concurrency
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchText returns the composite string free-text search matches against.
// Always the unmasked underlying values; PHI masking is display-only.
func (p Patient) SearchText() string {
	return strings.ToLower(p.Name + p.MRN + p.NextAppointment)
}

// MatchesSearch reports whether the patient matches a free-text term
// (case-insensitive substring; empty term matches everything).
func (p Patient) MatchesSearch(term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(p.SearchText(), strings.ToLower(term))
}

// OpenAlert returns the patient's open or acknowledged alert of the given
// type, if any. Used for idempotent regeneration.
func (p Patient) OpenAlert(alertType string) *Alert {
	for i := range p.Alerts {
		if p.Alerts[i].Type == alertType && p.Alerts[i].Status != AlertResolved {
			return &p.Alerts[i]
		}
	}
	return nil
}

// ListFilter defines filters for listing patients
type ListFilter struct {
	FacilityID  *types.ID  `json:"facility_id,omitempty"`
	FacilityIDs []types.ID `json:"facility_ids,omitempty"`
	AtHome      *bool      `json:"at_home,omitempty"`
	Search      string     `json:"search,omitempty"`
}

// Matches reports whether a patient passes the filter. Scope narrows first,
// then search narrows further.
func (f ListFilter) Matches(p Patient) bool {
	if f.FacilityID != nil && p.FacilityID != *f.FacilityID {
		return false
	}
	if len(f.FacilityIDs) > 0 {
		found := false
		for _, id := range f.FacilityIDs {
			if p.FacilityID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.AtHome != nil && p.AtHome != *f.AtHome {
		return false
	}
	return p.MatchesSearch(f.Search)
}
