package view

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/puzzle-health/tracker/internal/alert"
	"github.com/puzzle-health/tracker/internal/network"
	"github.com/puzzle-health/tracker/internal/patient"
	"github.com/puzzle-health/tracker/internal/phi"
	"github.com/puzzle-health/tracker/internal/shared/auth"
	"github.com/puzzle-health/tracker/internal/shared/config"
	apperrors "github.com/puzzle-health/tracker/internal/shared/errors"
	"github.com/rs/zerolog"
)

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	ctx := context.Background()

	networks := network.NewMemoryRepository()
	if err := network.SeedDemo(ctx, networks); err != nil {
		t.Fatalf("seed network: %v", err)
	}

	patients := patient.NewMemoryRepository()
	if err := patient.SeedDemo(ctx, patients, time.Now().UTC()); err != nil {
		t.Fatalf("seed patients: %v", err)
	}

	gen := alert.NewGenerator(config.AlertConfig{RPMThreshold: 70, ContactWindow: 7 * 24 * time.Hour})
	svc := alert.NewService(patients, gen, nil, zerolog.Nop())

	return NewResolver(svc, networks, zerolog.Nop())
}

func TestHealthSystemCohortSplit(t *testing.T) {
	r := testResolver(t)
	ctx := context.Background()
	user := &auth.User{ID: "u1", Role: auth.RoleHealthSystem, OrgID: "hs1"}

	v, err := r.HealthSystem(ctx, user, "hs1", Request{FacilityID: "f1"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if len(v.FacilityPatients) == 0 {
		t.Fatal("expected patients at f1")
	}
	for _, p := range v.FacilityPatients {
		if p.AtHome {
			t.Errorf("home patient %s leaked into facility roster", p.ID)
		}
		if p.FacilityID != "f1" {
			t.Errorf("patient %s from %s leaked into f1 roster", p.ID, p.FacilityID)
		}
	}

	if len(v.HomeCohort) == 0 {
		t.Fatal("expected a home cohort")
	}
	facilitiesSeen := map[string]bool{}
	for _, p := range v.HomeCohort {
		if !p.AtHome {
			t.Errorf("in-SNF patient %s leaked into home cohort", p.ID)
		}
		facilitiesSeen[p.FacilityID.String()] = true
	}
	// hs1 owns f1 and f3; the home cohort spans both
	if len(facilitiesSeen) < 2 {
		t.Errorf("home cohort should span the org's facilities, saw %v", facilitiesSeen)
	}
}

func TestHealthSystemScopeRejection(t *testing.T) {
	r := testResolver(t)
	user := &auth.User{ID: "u1", Role: auth.RoleHealthSystem, OrgID: "hs1"}

	_, err := r.HealthSystem(context.Background(), user, "hs2", Request{})
	if err == nil {
		t.Fatal("expected scope rejection")
	}
	appErr, ok := err.(*apperrors.AppError)
	if !ok || appErr.Code != "FORBIDDEN" {
		t.Errorf("want FORBIDDEN, got %v", err)
	}
}

func TestCareTeamCoversEverything(t *testing.T) {
	r := testResolver(t)
	user := &auth.User{ID: "u1", Role: auth.RoleCareTeam}

	v, err := r.HealthSystem(context.Background(), user, "hs2", Request{})
	if err != nil {
		t.Fatalf("care team should cover any org: %v", err)
	}
	if len(v.Facilities) == 0 {
		t.Error("expected hs2 facilities")
	}

	ct, err := r.CareTeam(context.Background(), user, Request{})
	if err != nil {
		t.Fatalf("care team view: %v", err)
	}
	if ct.KPIs.InProgram != 26 {
		t.Errorf("in program = %d, want 26", ct.KPIs.InProgram)
	}
	if len(ct.RTHByFacility) != 4 {
		t.Errorf("rth report rows = %d, want 4", len(ct.RTHByFacility))
	}
}

func TestCareTeamViewRequiresRole(t *testing.T) {
	r := testResolver(t)
	user := &auth.User{ID: "u1", Role: auth.RoleHealthSystem, OrgID: "hs1"}

	if _, err := r.CareTeam(context.Background(), user, Request{}); err == nil {
		t.Fatal("non-care-team caller should be rejected")
	}
}

func TestChainOrdering(t *testing.T) {
	r := testResolver(t)
	user := &auth.User{ID: "u1", Role: auth.RoleSnfChain, ChainID: "c1"}

	v, err := r.Chain(context.Background(), user, "c1", Request{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(v.Patients) == 0 {
		t.Fatal("expected chain patients")
	}

	// In-SNF first, descending risk within each segment, home last
	seenHome := false
	prevScore := 101
	for _, p := range v.Patients {
		if p.AtHome {
			if !seenHome {
				seenHome = true
				prevScore = 101
			}
		} else if seenHome {
			t.Fatalf("in-SNF patient %s after home cohort began", p.ID)
		}
		if p.RiskScore > prevScore {
			t.Fatalf("risk order violated at %s: %d after %d", p.ID, p.RiskScore, prevScore)
		}
		prevScore = p.RiskScore
	}
	if !seenHome {
		t.Error("expected home patients at the tail")
	}

	if v.KPIs.Facilities != 2 {
		t.Errorf("c1 facilities = %d, want 2", v.KPIs.Facilities)
	}
	// f1 ack 21, f2 ack 47 -> avg 34
	if v.KPIs.AvgAckMinutes != 34 {
		t.Errorf("avg ack = %d, want 34", v.KPIs.AvgAckMinutes)
	}
}

func TestSearchComposesWithScope(t *testing.T) {
	r := testResolver(t)
	user := &auth.User{ID: "u1", Role: auth.RoleCareTeam}

	v, err := r.CareTeam(context.Background(), user, Request{Query: "jr"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	total := v.Triage
	all := append(append(append([]PatientRow{}, total.High...), total.Medium...), total.Low...)
	if len(all) != 6 {
		// Seed patients 21-26 carry the Jr. suffix
		t.Errorf("jr search matched %d patients, want 6", len(all))
	}
	for _, p := range all {
		if !strings.Contains(strings.ToLower(p.Name+p.MRN+p.NextAppointment), "jr") {
			t.Errorf("patient %s does not match search term", p.ID)
		}
	}
}

func TestSearchWorksWhileMasked(t *testing.T) {
	r := testResolver(t)
	user := &auth.User{ID: "u1", Role: auth.RoleCareTeam}

	v, err := r.CareTeam(context.Background(), user, Request{Query: "jr", MaskPHI: true})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	all := append(append(append([]PatientRow{}, v.Triage.High...), v.Triage.Medium...), v.Triage.Low...)
	if len(all) != 6 {
		t.Fatalf("masked search matched %d patients, want 6", len(all))
	}
	for _, p := range all {
		if p.Name != phi.Token || p.MRN != phi.Token {
			t.Errorf("patient %s not masked: name=%q mrn=%q", p.ID, p.Name, p.MRN)
		}
	}
}

func TestMaskingIsDisplayOnly(t *testing.T) {
	r := testResolver(t)
	ctx := context.Background()
	user := &auth.User{ID: "u1", Role: auth.RoleSnfFacility, FacilityID: "f1"}

	masked, err := r.Facility(ctx, user, "f1", Request{MaskPHI: true})
	if err != nil {
		t.Fatalf("resolve masked: %v", err)
	}
	for _, p := range masked.Patients {
		if p.Name != phi.Token {
			t.Errorf("unmasked name %q in masked view", p.Name)
		}
	}

	// A second, unmasked resolve sees the stored values untouched
	clear, err := r.Facility(ctx, user, "f1", Request{})
	if err != nil {
		t.Fatalf("resolve unmasked: %v", err)
	}
	for _, p := range clear.Patients {
		if p.Name == phi.Token {
			t.Errorf("masking leaked into stored record for %s", p.ID)
		}
	}
}

func TestFacilityRecentLists(t *testing.T) {
	r := testResolver(t)
	user := &auth.User{ID: "u1", Role: auth.RoleSnfFacility, FacilityID: "f1"}

	v, err := r.Facility(context.Background(), user, "f1", Request{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if len(v.RecentAdmits) > 3 {
		t.Errorf("recent admits = %d, want at most 3", len(v.RecentAdmits))
	}
	if len(v.PlannedDischarges) > 3 {
		t.Errorf("planned discharges = %d, want at most 3", len(v.PlannedDischarges))
	}
	for i := 1; i < len(v.RecentAdmits); i++ {
		if v.RecentAdmits[i].AdmittedAt.After(v.RecentAdmits[i-1].AdmittedAt) {
			t.Error("recent admits not in most-recent-first order")
		}
	}
	for _, p := range v.RecentAdmits {
		if p.AtHome {
			t.Errorf("home patient %s in admit list", p.ID)
		}
	}
	for _, p := range v.PlannedDischarges {
		if !p.AtHome {
			t.Errorf("in-SNF patient %s in discharge list", p.ID)
		}
	}

	if v.KPIs.Engagement < 35 || v.KPIs.Engagement > 95 {
		t.Errorf("engagement %d outside bounds", v.KPIs.Engagement)
	}
}

func TestFacilityDrillDownScope(t *testing.T) {
	r := testResolver(t)
	ctx := context.Background()

	// f1 belongs to org hs1 and chain c1
	orgCaller := &auth.User{ID: "u1", Role: auth.RoleHealthSystem, OrgID: "hs1"}
	if _, err := r.Facility(ctx, orgCaller, "f1", Request{}); err != nil {
		t.Errorf("org caller should drill into its own facility: %v", err)
	}

	wrongChain := &auth.User{ID: "u2", Role: auth.RoleSnfChain, ChainID: "c2"}
	if _, err := r.Facility(ctx, wrongChain, "f1", Request{}); err == nil {
		t.Error("chain caller should not reach another chain's facility")
	}

	wrongFacility := &auth.User{ID: "u3", Role: auth.RoleSnfFacility, FacilityID: "f2"}
	if _, err := r.Facility(ctx, wrongFacility, "f1", Request{}); err == nil {
		t.Error("facility caller should not reach a sibling facility")
	}
}

func TestEmptyScopeResolvesEmpty(t *testing.T) {
	r := testResolver(t)
	ctx := context.Background()

	networks := network.NewMemoryRepository()
	if err := network.SeedDemo(ctx, networks); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := networks.SaveChain(ctx, &network.SnfChain{ID: "c9", Name: "Empty Chain"}); err != nil {
		t.Fatalf("save chain: %v", err)
	}
	r.networks = networks

	user := &auth.User{ID: "u1", Role: auth.RoleSnfChain, ChainID: "c9"}
	v, err := r.Chain(ctx, user, "c9", Request{})
	if err != nil {
		t.Fatalf("empty chain should resolve, got %v", err)
	}
	if len(v.Facilities) != 0 || len(v.Patients) != 0 {
		t.Errorf("expected empty view, got %d facilities / %d patients", len(v.Facilities), len(v.Patients))
	}
}
