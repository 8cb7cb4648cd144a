package alert

import (
	"context"
	"testing"
	"time"

	"github.com/puzzle-health/tracker/internal/patient"
	"github.com/puzzle-health/tracker/internal/risk"
	"github.com/puzzle-health/tracker/internal/shared/config"
	apperrors "github.com/puzzle-health/tracker/internal/shared/errors"
	"github.com/rs/zerolog"
)

func testConfig() config.AlertConfig {
	return config.AlertConfig{
		RPMThreshold:  70,
		ContactWindow: 7 * 24 * time.Hour,
	}
}

func testService(t *testing.T) (*Service, patient.Repository) {
	t.Helper()
	repo := patient.NewMemoryRepository()
	svc := NewService(repo, NewGenerator(testConfig()), nil, zerolog.Nop())
	return svc, repo
}

func seedPatient(t *testing.T, repo patient.Repository, p patient.Patient) {
	t.Helper()
	if err := repo.Save(context.Background(), &p); err != nil {
		t.Fatalf("failed to seed patient: %v", err)
	}
}

func TestGenerateRPMAbnormal(t *testing.T) {
	gen := NewGenerator(testConfig())
	now := time.Now().UTC()

	tests := []struct {
		name  string
		score int
		want  int
	}{
		{"above threshold fires", 75, 1},
		{"at threshold does not fire", 70, 0},
		{"below threshold does not fire", 40, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := patient.Patient{ID: "p1", RiskScore: tt.score, LastContactAt: now}
			alerts := gen.Generate(p, now)
			if len(alerts) != tt.want {
				t.Fatalf("got %d alerts, want %d", len(alerts), tt.want)
			}
			if tt.want == 1 {
				if alerts[0].Type != TypeRPMAbnormal || alerts[0].Severity != patient.SeverityHigh {
					t.Errorf("got %s/%s, want %s/High", alerts[0].Type, alerts[0].Severity, TypeRPMAbnormal)
				}
			}
		})
	}
}

func TestGenerateMissedCall(t *testing.T) {
	gen := NewGenerator(testConfig())
	now := time.Now().UTC()

	p := patient.Patient{ID: "p1", RiskScore: 30, LastContactAt: now.Add(-8 * 24 * time.Hour)}
	alerts := gen.Generate(p, now)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if alerts[0].Type != TypeMissedCall || alerts[0].Severity != patient.SeverityMedium {
		t.Errorf("got %s/%s, want %s/Medium", alerts[0].Type, alerts[0].Severity, TypeMissedCall)
	}

	p.LastContactAt = now.Add(-24 * time.Hour)
	if got := gen.Generate(p, now); len(got) != 0 {
		t.Errorf("recent contact should not fire, got %d alerts", len(got))
	}
}

func TestGenerateHospiceStillFires(t *testing.T) {
	gen := NewGenerator(testConfig())
	now := time.Now().UTC()

	// Hospice overrides the displayed tier, not the alert rules: a hospice
	// patient over the RPM threshold with a stale contact carries both alerts.
	p := patient.Patient{
		ID:            "p1",
		RiskScore:     95,
		Hospice:       true,
		LastContactAt: now.Add(-30 * 24 * time.Hour),
	}
	got := gen.Generate(p, now)
	if len(got) != 2 {
		t.Fatalf("got %d alerts, want 2", len(got))
	}
	types := map[string]bool{}
	for _, a := range got {
		types[a.Type] = true
	}
	if !types[TypeRPMAbnormal] || !types[TypeMissedCall] {
		t.Errorf("alert types = %v, want both %s and %s", types, TypeRPMAbnormal, TypeMissedCall)
	}
}

func TestSyncIdempotent(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPatient(t, repo, patient.Patient{ID: "p1", Name: "Ruth Alvarez", FacilityID: "f1", RiskScore: 80, LastContactAt: now})

	for i := 0; i < 3; i++ {
		p, err := repo.Get(ctx, "p1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if err := svc.Sync(ctx, p, now); err != nil {
			t.Fatalf("sync %d: %v", i, err)
		}
	}

	p, err := svc.GetEnriched(ctx, "p1")
	if err != nil {
		t.Fatalf("get enriched: %v", err)
	}
	if len(p.Alerts) != 1 {
		t.Fatalf("repeated sync duplicated alerts: got %d, want 1", len(p.Alerts))
	}
}

func TestAcknowledgeSurvivesRegeneration(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPatient(t, repo, patient.Patient{ID: "p1", Name: "David Chen", FacilityID: "f1", RiskScore: 80, LastContactAt: now})

	p, err := svc.GetEnriched(ctx, "p1")
	if err != nil {
		t.Fatalf("get enriched: %v", err)
	}
	if len(p.Alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(p.Alerts))
	}

	acked, err := svc.Acknowledge(ctx, p.Alerts[0].ID, nil)
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if acked.Status != patient.AlertAcknowledged {
		t.Fatalf("status = %s, want acknowledged", acked.Status)
	}

	// Regeneration must not reopen or duplicate the acknowledged alert
	p, err = svc.GetEnriched(ctx, "p1")
	if err != nil {
		t.Fatalf("get enriched after ack: %v", err)
	}
	if len(p.Alerts) != 1 {
		t.Fatalf("regeneration duplicated acknowledged alert: got %d", len(p.Alerts))
	}
	if p.Alerts[0].Status != patient.AlertAcknowledged {
		t.Errorf("status = %s, want acknowledged", p.Alerts[0].Status)
	}
}

func TestResolveClearsFromView(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPatient(t, repo, patient.Patient{ID: "p1", Name: "Ana Patel", FacilityID: "f1", RiskScore: 80, LastContactAt: now})

	p, err := svc.GetEnriched(ctx, "p1")
	if err != nil {
		t.Fatalf("get enriched: %v", err)
	}
	alertID := p.Alerts[0].ID

	if _, err := svc.Resolve(ctx, alertID, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// Same signals still hold, so the condition fires again as a new open
	// alert on the next read. Resolved history stays out of the record.
	p, err = svc.GetEnriched(ctx, "p1")
	if err != nil {
		t.Fatalf("get enriched after resolve: %v", err)
	}
	for _, a := range p.Alerts {
		if a.Status == patient.AlertResolved {
			t.Errorf("resolved alert still attached to patient record")
		}
	}
}

func TestResolvedConditionRegenerates(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPatient(t, repo, patient.Patient{ID: "p1", Name: "Maya Ortiz", FacilityID: "f1", RiskScore: 80, LastContactAt: now})

	p, err := svc.GetEnriched(ctx, "p1")
	if err != nil {
		t.Fatalf("get enriched: %v", err)
	}
	if len(p.Alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(p.Alerts))
	}
	first := p.Alerts[0].ID

	if _, err := svc.Resolve(ctx, first, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// The condition still holds, so the next read must produce a stored,
	// transitionable open alert, distinct from the resolved one
	p, err = svc.GetEnriched(ctx, "p1")
	if err != nil {
		t.Fatalf("get enriched after resolve: %v", err)
	}
	if len(p.Alerts) != 1 {
		t.Fatalf("regenerated alerts = %d, want 1", len(p.Alerts))
	}
	second := p.Alerts[0]
	if second.ID == first {
		t.Fatal("regenerated alert reused the resolved alert's ID")
	}
	if second.Status != patient.AlertOpen {
		t.Fatalf("regenerated alert status = %s, want open", second.Status)
	}

	// The displayed alert is the stored one: it can be acknowledged
	stored, err := repo.GetAlert(ctx, second.ID)
	if err != nil {
		t.Fatalf("regenerated alert not persisted: %v", err)
	}
	if stored.Status != patient.AlertOpen {
		t.Fatalf("stored status = %s, want open", stored.Status)
	}
	acked, err := svc.Acknowledge(ctx, second.ID, nil)
	if err != nil {
		t.Fatalf("acknowledge regenerated alert: %v", err)
	}
	if acked.Status != patient.AlertAcknowledged {
		t.Errorf("status = %s, want acknowledged", acked.Status)
	}

	// Resolved history is retained untouched
	old, err := repo.GetAlert(ctx, first)
	if err != nil {
		t.Fatalf("resolved alert dropped from store: %v", err)
	}
	if old.Status != patient.AlertResolved {
		t.Errorf("resolved alert status = %s, want resolved", old.Status)
	}
}

func TestInvalidTransitions(t *testing.T) {
	svc, repo := testService(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPatient(t, repo, patient.Patient{ID: "p1", Name: "Henry Cho", FacilityID: "f1", RiskScore: 80, LastContactAt: now})

	p, err := svc.GetEnriched(ctx, "p1")
	if err != nil {
		t.Fatalf("get enriched: %v", err)
	}
	alertID := p.Alerts[0].ID

	if _, err := svc.Resolve(ctx, alertID, nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := svc.Acknowledge(ctx, alertID, nil); err == nil {
		t.Error("acknowledging a resolved alert should conflict")
	} else if appErr, ok := err.(*apperrors.AppError); !ok || appErr.Code != "CONFLICT" {
		t.Errorf("want CONFLICT AppError, got %v", err)
	}

	if _, err := svc.Resolve(ctx, alertID, nil); err == nil {
		t.Error("resolving a resolved alert should conflict")
	}
}

func TestBuildTriageBuckets(t *testing.T) {
	patients := []patient.Patient{
		{ID: "p1", RiskScore: 90, RiskTier: risk.TierHigh},
		{ID: "p2", RiskScore: 55, RiskTier: risk.TierMedium},
		{ID: "p3", RiskScore: 95, RiskTier: risk.TierLow, Hospice: true},
		{ID: "p4", RiskScore: 20, RiskTier: risk.TierLow},
		{ID: "p5", RiskScore: 72, RiskTier: risk.TierHigh},
	}

	b := BuildTriageBuckets(patients)

	if len(b.High) != 2 {
		t.Errorf("high bucket = %d, want 2", len(b.High))
	}
	if len(b.Medium) != 1 {
		t.Errorf("medium bucket = %d, want 1", len(b.Medium))
	}
	if len(b.Low) != 2 {
		t.Errorf("low bucket = %d, want 2", len(b.Low))
	}
	if b.Total() != len(patients) {
		t.Errorf("total = %d, want %d", b.Total(), len(patients))
	}

	// Hospice patient stays in Low despite the score
	foundHospice := false
	for _, p := range b.Low {
		if p.ID == "p3" {
			foundHospice = true
		}
	}
	if !foundHospice {
		t.Error("hospice patient missing from Low bucket")
	}

	// Cohort ordering preserved within buckets
	if b.High[0].ID != "p1" || b.High[1].ID != "p5" {
		t.Errorf("high bucket order = [%s, %s], want [p1, p5]", b.High[0].ID, b.High[1].ID)
	}
}
