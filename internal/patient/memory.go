package patient

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/puzzle-health/tracker/internal/risk"
	"github.com/puzzle-health/tracker/internal/shared/errors"
	"github.com/puzzle-health/tracker/internal/shared/types"
)

// MemoryRepository is an in-memory Repository for development and tests.
// Reads return deep copies so callers can never mutate canonical records.
// The active-alert uniqueness the database enforces with a partial index is
// enforced here inside SaveAlert.
type MemoryRepository struct {
	mu       sync.RWMutex
	patients map[types.ID]Patient
	alerts   map[types.ID]Alert
}

// NewMemoryRepository creates an empty in-memory patient repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients: make(map[types.ID]Patient),
		alerts:   make(map[types.ID]Alert),
	}
}

func clonePatient(p Patient) Patient {
	out := p
	out.Alerts = append([]Alert(nil), p.Alerts...)
	out.Vitals = append([]Vital(nil), p.Vitals...)
	out.Encounters = append([]Encounter(nil), p.Encounters...)
	out.Tasks = append([]Task(nil), p.Tasks...)
	out.Interventions = append([]Intervention(nil), p.Interventions...)
	return out
}

// attachAlerts populates the patient's non-resolved alerts from the alert map.
// Caller must hold at least the read lock.
func (r *MemoryRepository) attachAlerts(p *Patient) {
	p.Alerts = nil
	for _, a := range r.alerts {
		if a.PatientID == p.ID && a.Status != AlertResolved {
			p.Alerts = append(p.Alerts, a)
		}
	}
	sort.Slice(p.Alerts, func(i, j int) bool {
		return p.Alerts[i].CreatedAt.Before(p.Alerts[j].CreatedAt)
	})
}

// List lists patients matching the filter, highest risk first
func (r *MemoryRepository) List(ctx context.Context, filter ListFilter) ([]Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var patients []Patient
	for _, p := range r.patients {
		if !filter.Matches(p) {
			continue
		}
		cp := clonePatient(p)
		r.attachAlerts(&cp)
		patients = append(patients, cp)
	}
	sort.Slice(patients, func(i, j int) bool {
		if patients[i].RiskScore != patients[j].RiskScore {
			return patients[i].RiskScore > patients[j].RiskScore
		}
		return patients[i].Name < patients[j].Name
	})

	return patients, nil
}

// Get retrieves a patient by ID with the full record
func (r *MemoryRepository) Get(ctx context.Context, id types.ID) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.patients[id]
	if !ok {
		return nil, errors.NotFound("patient", id.String())
	}
	cp := clonePatient(p)
	r.attachAlerts(&cp)
	return &cp, nil
}

// FindByMRN retrieves a patient by medical record number
func (r *MemoryRepository) FindByMRN(ctx context.Context, mrn string) (*Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.patients {
		if p.MRN == mrn {
			cp := clonePatient(p)
			r.attachAlerts(&cp)
			return &cp, nil
		}
	}
	return nil, errors.NotFound("patient", mrn)
}

// Save upserts a patient record. The stored tier is always recomputed from
// the stored score, never trusted from the caller.
func (r *MemoryRepository) Save(ctx context.Context, p *Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p.Version++
	p.UpdatedAt = time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}
	p.RiskTier = risk.ClassifyWithHospice(p.RiskScore, p.Hospice)

	stored := clonePatient(*p)
	stored.Alerts = nil
	r.patients[p.ID] = stored
	return nil
}

// AppendIntervention appends a single intervention to the patient's log
func (r *MemoryRepository) AppendIntervention(ctx context.Context, patientID types.ID, iv Intervention) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[patientID]
	if !ok {
		return errors.NotFound("patient", patientID.String())
	}
	p.Interventions = append(p.Interventions, iv)
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	r.patients[patientID] = p
	return nil
}

// AppendEncounter appends a timeline entry to the patient's record
func (r *MemoryRepository) AppendEncounter(ctx context.Context, patientID types.ID, enc Encounter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[patientID]
	if !ok {
		return errors.NotFound("patient", patientID.String())
	}
	p.Encounters = append(p.Encounters, enc)
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	r.patients[patientID] = p
	return nil
}

// RecordContact stamps the patient's last outreach time
func (r *MemoryRepository) RecordContact(ctx context.Context, patientID types.ID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.patients[patientID]
	if !ok {
		return errors.NotFound("patient", patientID.String())
	}
	p.LastContactAt = at
	p.Version++
	p.UpdatedAt = time.Now().UTC()
	r.patients[patientID] = p
	return nil
}

// SaveAlert inserts an alert and reports whether it was stored. A second
// non-resolved alert of the same type for the same patient is rejected,
// matching the database's partial unique index; resolved history never
// blocks a fresh alert.
func (r *MemoryRepository) SaveAlert(ctx context.Context, alert *Alert) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.alerts[alert.ID]; exists {
		return false, nil
	}
	for _, a := range r.alerts {
		if a.PatientID == alert.PatientID && a.Type == alert.Type && a.Status != AlertResolved {
			return false, nil
		}
	}
	r.alerts[alert.ID] = *alert
	return true, nil
}

// UpdateAlert persists an alert's status transition
func (r *MemoryRepository) UpdateAlert(ctx context.Context, alert *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.alerts[alert.ID]
	if !ok {
		return errors.NotFound("alert", alert.ID.String())
	}
	stored.Status = alert.Status
	stored.UpdatedAt = alert.UpdatedAt
	r.alerts[alert.ID] = stored
	return nil
}

// GetAlert retrieves an alert by ID
func (r *MemoryRepository) GetAlert(ctx context.Context, id types.ID) (*Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, errors.NotFound("alert", id.String())
	}
	return &a, nil
}

// Verify interface implementation
var _ Repository = (*MemoryRepository)(nil)
