// Package adt ingests hospital ADT (admit/discharge/transfer) feeds and
// applies them to patient records as timeline encounters. The ingest loop is
// a single goroutine per feed, which keeps every patient write serialized.
package adt

import (
	"context"
	"time"

	"github.com/puzzle-health/tracker/internal/patient"
	"github.com/puzzle-health/tracker/internal/shared/errors"
	"github.com/puzzle-health/tracker/internal/shared/events"
	"github.com/puzzle-health/tracker/internal/shared/metrics"
	"github.com/rs/zerolog"
)

// EventType classifies an ADT message
type EventType string

const (
	EventAdmit     EventType = "admit"
	EventDischarge EventType = "discharge"
	EventEDVisit   EventType = "ed_visit"
)

// Event is one ADT message from a hospital feed. Patients are matched by
// MRN; events for unknown MRNs are counted and skipped, never fatal.
type Event struct {
	MRN        string    `json:"mrn"`
	Type       EventType `json:"type"`
	Hospital   string    `json:"hospital"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Feed is a source of ADT events
type Feed interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Events() <-chan Event
	Health(ctx context.Context) error
}

// Ingestor applies feed events to the patient store
type Ingestor struct {
	repo patient.Repository
	bus  *events.Bus
	log  zerolog.Logger
}

// NewIngestor creates an ADT ingestor
func NewIngestor(repo patient.Repository, bus *events.Bus, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		repo: repo,
		bus:  bus,
		log:  log.With().Str("component", "adt").Logger(),
	}
}

// Run consumes the feed until the context is cancelled or the feed's event
// channel closes
func (i *Ingestor) Run(ctx context.Context, feed Feed) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-feed.Events():
			if !ok {
				return
			}
			if err := i.apply(ctx, ev); err != nil {
				i.log.Warn().Err(err).Str("mrn", ev.MRN).Str("type", string(ev.Type)).Msg("failed to apply adt event")
			}
		}
	}
}

func (i *Ingestor) apply(ctx context.Context, ev Event) error {
	metrics.RecordADTEvent(string(ev.Type))

	p, err := i.repo.FindByMRN(ctx, ev.MRN)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok && appErr.Code == "NOT_FOUND" {
			i.log.Debug().Str("mrn", ev.MRN).Msg("adt event for patient not in program")
			return nil
		}
		return err
	}

	enc := patient.Encounter{
		Type:  "Hospital",
		Label: i.label(ev),
		When:  ev.OccurredAt.Format("2006-01-02"),
	}
	if err := i.repo.AppendEncounter(ctx, p.ID, enc); err != nil {
		return err
	}

	i.log.Info().
		Str("patient_id", p.ID.String()).
		Str("type", string(ev.Type)).
		Str("hospital", ev.Hospital).
		Msg("adt encounter recorded")

	if i.bus != nil {
		event := events.NewEvent("adt."+string(ev.Type), "adt", map[string]any{
			"patient_id": p.ID,
			"hospital":   ev.Hospital,
			"occurred":   ev.OccurredAt,
		})
		if err := i.bus.Publish(ctx, event); err != nil {
			i.log.Warn().Err(err).Msg("failed to publish adt event")
		}
	}

	return nil
}

func (i *Ingestor) label(ev Event) string {
	switch ev.Type {
	case EventAdmit:
		return "Readmit: " + ev.Hospital
	case EventDischarge:
		return "Discharge: " + ev.Hospital
	case EventEDVisit:
		return "ED visit: " + ev.Hospital
	default:
		return ev.Hospital
	}
}
