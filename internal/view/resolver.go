package view

import (
	"context"
	"math"
	"sort"

	"github.com/puzzle-health/tracker/internal/alert"
	"github.com/puzzle-health/tracker/internal/analytics"
	"github.com/puzzle-health/tracker/internal/network"
	"github.com/puzzle-health/tracker/internal/patient"
	"github.com/puzzle-health/tracker/internal/phi"
	"github.com/puzzle-health/tracker/internal/risk"
	"github.com/puzzle-health/tracker/internal/shared/auth"
	"github.com/puzzle-health/tracker/internal/shared/errors"
	"github.com/puzzle-health/tracker/internal/shared/metrics"
	"github.com/puzzle-health/tracker/internal/shared/types"
	"github.com/rs/zerolog"
)

// Resolver composes role-scoped views over the patient and network stores.
// Scope always narrows before search; a scope with no facilities resolves to
// an empty view, while a scope the caller's claims do not cover is rejected.
// All resolution is read-only over repository snapshots.
type Resolver struct {
	patients *alert.Service
	networks network.Repository
	log      zerolog.Logger
}

// NewResolver creates a view resolver
func NewResolver(patients *alert.Service, networks network.Repository, log zerolog.Logger) *Resolver {
	return &Resolver{
		patients: patients,
		networks: networks,
		log:      log.With().Str("component", "view").Logger(),
	}
}

// Request carries the per-call view parameters. Scope identifiers are checked
// against the caller's authenticated claims, never trusted on their own.
type Request struct {
	Query   string
	MaskPHI bool

	// FacilityID selects a facility within the health-system view; empty
	// picks the org's first facility.
	FacilityID types.ID
}

func rejectScope(user *auth.User, what string) error {
	metrics.RecordScopeRejection(string(user.Role))
	return errors.Forbidden("caller scope does not cover requested " + what)
}

// facilityCohort fetches the enriched patient cohort across a facility set
func (r *Resolver) facilityCohort(ctx context.Context, facilities []network.Facility) ([]patient.Patient, error) {
	if len(facilities) == 0 {
		return nil, nil
	}
	ids := make([]types.ID, len(facilities))
	for i, f := range facilities {
		ids[i] = f.ID
	}
	return r.patients.ListEnriched(ctx, patient.ListFilter{FacilityIDs: ids})
}

func facilityNameIndex(facilities []network.Facility) map[types.ID]string {
	names := make(map[types.ID]string, len(facilities))
	for _, f := range facilities {
		names[f.ID] = f.Name
	}
	return names
}

func summarize(f network.Facility, cohort []patient.Patient) FacilitySummary {
	var own []patient.Patient
	for _, p := range cohort {
		if p.FacilityID == f.ID {
			own = append(own, p)
		}
	}
	return FacilitySummary{
		Facility: f,
		Metrics:  analytics.ComputeFacilityMetrics(f.EngagementBase, f.LastAckMinutes, own),
	}
}

func (r *Resolver) finish(role auth.Role, mask bool) {
	metrics.RecordViewResolved(string(role))
	if mask {
		metrics.RecordPHIMaskedResponse()
	}
}

// HealthSystem resolves the view for a health-system caller scoped to orgID.
// The home cohort spans the whole organization: home patients have left the
// SNF and are no longer facility-scoped.
func (r *Resolver) HealthSystem(ctx context.Context, user *auth.User, orgID types.ID, req Request) (*HealthSystemView, error) {
	if !user.CoversOrg(orgID) {
		return nil, rejectScope(user, "organization")
	}

	facilities, err := r.networks.ListFacilities(ctx, network.ListFacilitiesFilter{OrgID: &orgID})
	if err != nil {
		return nil, err
	}

	cohort, err := r.facilityCohort(ctx, facilities)
	if err != nil {
		return nil, err
	}
	names := facilityNameIndex(facilities)

	v := &HealthSystemView{Facilities: make([]FacilitySummary, 0, len(facilities))}
	for _, f := range facilities {
		v.Facilities = append(v.Facilities, summarize(f, cohort))
	}

	selected := req.FacilityID
	if selected.IsZero() && len(facilities) > 0 {
		selected = facilities[0].ID
	}
	v.SelectedFacility = selected

	for _, p := range cohort {
		if !p.MatchesSearch(req.Query) {
			continue
		}
		if p.AtHome {
			v.HomeCohort = append(v.HomeCohort, newPatientRow(p, names[p.FacilityID], req.MaskPHI))
		} else if p.FacilityID == selected {
			v.FacilityPatients = append(v.FacilityPatients, newPatientRow(p, names[p.FacilityID], req.MaskPHI))
		}
	}

	// KPIs cover the whole org cohort, search narrows only the lists
	for _, p := range cohort {
		if !p.AtHome {
			v.KPIs.CensusInSNF++
		}
		if p.RiskTier == risk.TierHigh {
			v.KPIs.HighRisk++
		}
	}
	v.KPIs.RTH = analytics.ProjectRTH(cohort)

	r.finish(user.Role, req.MaskPHI)
	return v, nil
}

// Chain resolves the view for an SNF-chain caller. Patients sort with the
// in-SNF cohort first in descending risk order, then the home cohort; the
// clinically active patients surface above the discharged ones regardless of
// score.
func (r *Resolver) Chain(ctx context.Context, user *auth.User, chainID types.ID, req Request) (*ChainView, error) {
	if !user.CoversChain(chainID) {
		return nil, rejectScope(user, "chain")
	}

	facilities, err := r.networks.ListFacilities(ctx, network.ListFacilitiesFilter{ChainID: &chainID})
	if err != nil {
		return nil, err
	}

	cohort, err := r.facilityCohort(ctx, facilities)
	if err != nil {
		return nil, err
	}
	names := facilityNameIndex(facilities)

	sort.SliceStable(cohort, func(i, j int) bool {
		if cohort[i].AtHome != cohort[j].AtHome {
			return !cohort[i].AtHome
		}
		return cohort[i].RiskScore > cohort[j].RiskScore
	})

	v := &ChainView{Facilities: make([]FacilitySummary, 0, len(facilities))}
	for _, f := range facilities {
		v.Facilities = append(v.Facilities, summarize(f, cohort))
	}

	for _, p := range cohort {
		if !p.MatchesSearch(req.Query) {
			continue
		}
		v.Patients = append(v.Patients, newPatientRow(p, names[p.FacilityID], req.MaskPHI))
	}

	v.KPIs.Facilities = len(facilities)
	for _, p := range cohort {
		v.KPIs.OpenEscalations += len(p.Alerts)
	}
	if len(facilities) > 0 {
		totalAck := 0
		for _, f := range facilities {
			totalAck += f.LastAckMinutes
		}
		v.KPIs.AvgAckMinutes = int(math.Round(float64(totalAck) / float64(len(facilities))))
	}

	r.finish(user.Role, req.MaskPHI)
	return v, nil
}

// Facility resolves the view for one facility. Besides the facility's own
// role, org and chain callers whose claims cover the facility's parents may
// drill into it; coverage never widens the other way.
func (r *Resolver) Facility(ctx context.Context, user *auth.User, facilityID types.ID, req Request) (*FacilityView, error) {
	f, err := r.networks.GetFacility(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if !user.CoversFacility(facilityID) && !user.CoversOrg(f.OrgID) && !user.CoversChain(f.ChainID) {
		return nil, rejectScope(user, "facility")
	}

	cohort, err := r.patients.ListEnriched(ctx, patient.ListFilter{FacilityID: &facilityID})
	if err != nil {
		return nil, err
	}

	v := &FacilityView{Facility: summarize(*f, cohort)}

	admits := make([]patient.Patient, 0)
	discharges := make([]patient.Patient, 0)
	for _, p := range cohort {
		if p.AtHome {
			discharges = append(discharges, p)
		} else {
			admits = append(admits, p)
		}
	}
	sort.Slice(admits, func(i, j int) bool { return admits[i].AdmittedAt.After(admits[j].AdmittedAt) })
	sort.Slice(discharges, func(i, j int) bool {
		di, dj := discharges[i].DischargedAt, discharges[j].DischargedAt
		switch {
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.After(*dj)
		}
	})

	const recentN = 3
	for _, p := range admits[:min(recentN, len(admits))] {
		v.RecentAdmits = append(v.RecentAdmits, newPatientRow(p, f.Name, req.MaskPHI))
	}
	for _, p := range discharges[:min(recentN, len(discharges))] {
		v.PlannedDischarges = append(v.PlannedDischarges, newPatientRow(p, f.Name, req.MaskPHI))
	}

	for _, p := range cohort {
		for _, a := range p.Alerts {
			v.Escalations = append(v.Escalations, Escalation{
				Alert:       a,
				PatientID:   p.ID,
				PatientName: phi.Mask(req.MaskPHI, p.Name),
			})
		}
		if p.MatchesSearch(req.Query) {
			v.Patients = append(v.Patients, newPatientRow(p, f.Name, req.MaskPHI))
		}
	}

	v.KPIs = FacilityKPIs{
		RecentAdmits:      len(v.RecentAdmits),
		PlannedDischarges: len(v.PlannedDischarges),
		OpenEscalations:   len(v.Escalations),
		Engagement:        v.Facility.Metrics.Engagement,
	}

	r.finish(user.Role, req.MaskPHI)
	return v, nil
}

// CareTeam resolves the central-team view over the entire population
func (r *Resolver) CareTeam(ctx context.Context, user *auth.User, req Request) (*CareTeamView, error) {
	if user.Role != auth.RoleCareTeam {
		return nil, rejectScope(user, "population")
	}

	facilities, err := r.networks.ListFacilities(ctx, network.ListFacilitiesFilter{})
	if err != nil {
		return nil, err
	}
	names := facilityNameIndex(facilities)

	cohort, err := r.patients.ListEnriched(ctx, patient.ListFilter{Search: req.Query})
	if err != nil {
		return nil, err
	}

	buckets := alert.BuildTriageBuckets(cohort)

	v := &CareTeamView{
		Triage: newTriageView(buckets, names, req.MaskPHI),
		KPIs: CareTeamKPIs{
			InProgram:  buckets.Total(),
			OpenAlerts: buckets.OpenAlerts(),
			HighRisk:   len(buckets.High),
		},
	}
	for _, p := range cohort {
		if p.Hospice {
			v.KPIs.Hospice++
		}
	}

	for _, f := range facilities {
		var own []patient.Patient
		for _, p := range cohort {
			if p.FacilityID == f.ID {
				own = append(own, p)
			}
		}
		v.RTHByFacility = append(v.RTHByFacility, FacilityRTH{
			FacilityID:   f.ID,
			FacilityName: f.Name,
			RTH:          analytics.ProjectRTH(own),
		})
	}

	r.finish(user.Role, req.MaskPHI)
	return v, nil
}
