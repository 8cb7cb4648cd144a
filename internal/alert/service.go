package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/puzzle-health/tracker/internal/patient"
	"github.com/puzzle-health/tracker/internal/shared/auth"
	"github.com/puzzle-health/tracker/internal/shared/errors"
	"github.com/puzzle-health/tracker/internal/shared/events"
	"github.com/puzzle-health/tracker/internal/shared/metrics"
	"github.com/puzzle-health/tracker/internal/shared/types"
	"github.com/rs/zerolog"
)

// Service owns the alert lifecycle on top of the patient store: it generates
// alerts on read, persists newly warranted ones, and applies acknowledge and
// resolve transitions. Transitions publish to the event bus when one is
// configured; a nil bus disables publishing without changing behavior.
type Service struct {
	repo patient.Repository
	gen  *Generator
	bus  *events.Bus
	log  zerolog.Logger
}

// NewService creates the alert service
func NewService(repo patient.Repository, gen *Generator, bus *events.Bus, log zerolog.Logger) *Service {
	return &Service{
		repo: repo,
		gen:  gen,
		bus:  bus,
		log:  log.With().Str("component", "alert").Logger(),
	}
}

// Sync persists any newly warranted alerts for the patient and refreshes the
// in-memory alert list. A condition that already has a non-resolved alert is
// left alone, so operator transitions survive regeneration. Only alerts the
// store actually kept are attached, counted, and announced.
func (s *Service) Sync(ctx context.Context, p *patient.Patient, now time.Time) error {
	for _, a := range s.gen.Generate(*p, now) {
		if p.OpenAlert(a.Type) != nil {
			continue
		}
		inserted, err := s.repo.SaveAlert(ctx, &a)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("persist alert for patient %s", p.ID))
		}
		if !inserted {
			continue
		}
		p.Alerts = append(p.Alerts, a)
		metrics.RecordAlertGenerated(a.Type, string(a.Severity))
		s.publish(ctx, "alert.created", a, nil)
	}
	return nil
}

// ListEnriched lists patients with their alert state brought current
func (s *Service) ListEnriched(ctx context.Context, filter patient.ListFilter) ([]patient.Patient, error) {
	patients, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range patients {
		if err := s.Sync(ctx, &patients[i], now); err != nil {
			return nil, err
		}
	}
	return patients, nil
}

// GetEnriched retrieves one patient with alert state brought current
func (s *Service) GetEnriched(ctx context.Context, id types.ID) (*patient.Patient, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Sync(ctx, p, time.Now().UTC()); err != nil {
		return nil, err
	}
	return p, nil
}

// Acknowledge moves an open alert to acknowledged. Any other starting state
// is a conflict, not a silent no-op, so double-clicks surface to the caller.
func (s *Service) Acknowledge(ctx context.Context, alertID types.ID, actor *auth.User) (*patient.Alert, error) {
	return s.transition(ctx, alertID, actor, patient.AlertAcknowledged, []patient.AlertStatus{patient.AlertOpen})
}

// Resolve moves an open or acknowledged alert to resolved
func (s *Service) Resolve(ctx context.Context, alertID types.ID, actor *auth.User) (*patient.Alert, error) {
	return s.transition(ctx, alertID, actor, patient.AlertResolved, []patient.AlertStatus{patient.AlertOpen, patient.AlertAcknowledged})
}

func (s *Service) transition(ctx context.Context, alertID types.ID, actor *auth.User, to patient.AlertStatus, from []patient.AlertStatus) (*patient.Alert, error) {
	a, err := s.repo.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, f := range from {
		if a.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, errors.Conflict(fmt.Sprintf("alert %s is %s, cannot move to %s", alertID, a.Status, to))
	}

	prev := a.Status
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateAlert(ctx, a); err != nil {
		return nil, err
	}

	metrics.RecordAlertTransition(string(prev), string(to))
	s.publish(ctx, "alert."+string(to), *a, actor)
	s.log.Info().
		Str("alert_id", alertID.String()).
		Str("from", string(prev)).
		Str("to", string(to)).
		Msg("alert transition")

	return a, nil
}

func (s *Service) publish(ctx context.Context, eventType string, a patient.Alert, actor *auth.User) {
	if s.bus == nil {
		return
	}
	event := events.NewEvent(eventType, "tracker", a)
	if actor != nil {
		event = event.WithActor(actor.ID, string(actor.Role))
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		// Event publishing is best effort; the store remains authoritative
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to publish alert event")
	}
}
