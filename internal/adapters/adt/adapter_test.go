package adt

import (
	"context"
	"testing"
	"time"

	"github.com/puzzle-health/tracker/internal/patient"
	"github.com/rs/zerolog"
)

type fakeFeed struct {
	ch chan Event
}

func (f *fakeFeed) Start(ctx context.Context) error  { return nil }
func (f *fakeFeed) Stop(ctx context.Context) error   { close(f.ch); return nil }
func (f *fakeFeed) Events() <-chan Event             { return f.ch }
func (f *fakeFeed) Health(ctx context.Context) error { return nil }

func TestIngestorAppliesEvents(t *testing.T) {
	ctx := context.Background()
	repo := patient.NewMemoryRepository()

	p := patient.Patient{ID: "p1", Name: "Ruth Alvarez", MRN: "MRN-10000", FacilityID: "f1", RiskScore: 50}
	if err := repo.Save(ctx, &p); err != nil {
		t.Fatalf("save: %v", err)
	}

	feed := &fakeFeed{ch: make(chan Event, 4)}
	ingestor := NewIngestor(repo, nil, zerolog.Nop())

	occurred := time.Date(2025, 8, 20, 14, 0, 0, 0, time.UTC)
	feed.ch <- Event{MRN: "MRN-10000", Type: EventEDVisit, Hospital: "Corewell ED", OccurredAt: occurred}
	feed.ch <- Event{MRN: "MRN-99999", Type: EventAdmit, Hospital: "Unknown General", OccurredAt: occurred}
	feed.Stop(ctx)

	ingestor.Run(ctx, feed)

	got, err := repo.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Encounters) != 1 {
		t.Fatalf("encounters = %d, want 1", len(got.Encounters))
	}
	enc := got.Encounters[0]
	if enc.Type != "Hospital" {
		t.Errorf("encounter type = %q, want Hospital", enc.Type)
	}
	if enc.Label != "ED visit: Corewell ED" {
		t.Errorf("encounter label = %q", enc.Label)
	}
	if enc.When != "2025-08-20" {
		t.Errorf("encounter date = %q, want 2025-08-20", enc.When)
	}
}

func TestIngestorStopsOnContextCancel(t *testing.T) {
	repo := patient.NewMemoryRepository()
	feed := &fakeFeed{ch: make(chan Event)}
	ingestor := NewIngestor(repo, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ingestor.Run(ctx, feed)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ingestor did not stop on cancel")
	}
}

func TestMapEventType(t *testing.T) {
	tests := []struct {
		code string
		want EventType
	}{
		{"A01", EventAdmit},
		{"A03", EventDischarge},
		{"A04", EventEDVisit},
		{"admit", EventAdmit},
		{"A08", EventType("A08")},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := mapEventType(tt.code); got != tt.want {
				t.Errorf("mapEventType(%q) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}
