package view

import (
	"github.com/puzzle-health/tracker/internal/alert"
	"github.com/puzzle-health/tracker/internal/analytics"
	"github.com/puzzle-health/tracker/internal/network"
	"github.com/puzzle-health/tracker/internal/patient"
	"github.com/puzzle-health/tracker/internal/phi"
	"github.com/puzzle-health/tracker/internal/shared/types"
)

// PatientRow is a view-local copy of a patient with the facility name joined
// on and PHI masking applied. The canonical record is never mutated: the row
// is built from a copy, and masking touches only the copy's display fields.
type PatientRow struct {
	patient.Patient
	FacilityName string `json:"facility_name"`
}

func newPatientRow(p patient.Patient, facilityName string, mask bool) PatientRow {
	p.Name = phi.Mask(mask, p.Name)
	p.MRN = phi.Mask(mask, p.MRN)
	return PatientRow{Patient: p, FacilityName: facilityName}
}

// FacilitySummary pairs a facility's structural record with its derived
// metrics, computed from the live cohort at resolve time.
type FacilitySummary struct {
	network.Facility
	Metrics analytics.FacilityMetrics `json:"metrics"`
}

// Escalation is an alert flattened out of a patient record with a
// back-reference to its owner, for facility escalation boards.
type Escalation struct {
	Alert       patient.Alert `json:"alert"`
	PatientID   types.ID      `json:"patient_id"`
	PatientName string        `json:"patient_name"`
}

// HealthSystemKPIs summarize an organization's cohort
type HealthSystemKPIs struct {
	CensusInSNF int                     `json:"census_in_snf"`
	HighRisk    int                     `json:"high_risk"`
	RTH         analytics.RTHProjection `json:"rth"`
}

// HealthSystemView is the payload for a health-system caller: the org's
// discharge destinations, the roster at one selected facility, and the
// org-wide home cohort.
type HealthSystemView struct {
	Facilities       []FacilitySummary `json:"facilities"`
	SelectedFacility types.ID          `json:"selected_facility"`
	FacilityPatients []PatientRow      `json:"facility_patients"`
	HomeCohort       []PatientRow      `json:"home_cohort"`
	KPIs             HealthSystemKPIs  `json:"kpis"`
}

// ChainKPIs summarize a chain's facilities and escalation load
type ChainKPIs struct {
	Facilities      int `json:"facilities"`
	OpenEscalations int `json:"open_escalations"`
	AvgAckMinutes   int `json:"avg_ack_minutes"`
}

// ChainView is the payload for an SNF-chain caller
type ChainView struct {
	Facilities []FacilitySummary `json:"facilities"`
	Patients   []PatientRow      `json:"patients"`
	KPIs       ChainKPIs         `json:"kpis"`
}

// FacilityKPIs summarize one facility's day
type FacilityKPIs struct {
	RecentAdmits      int `json:"recent_admits"`
	PlannedDischarges int `json:"planned_discharges"`
	OpenEscalations   int `json:"open_escalations"`
	Engagement        int `json:"engagement"`
}

// FacilityView is the payload for an SNF-facility caller
type FacilityView struct {
	Facility          FacilitySummary `json:"facility"`
	RecentAdmits      []PatientRow    `json:"recent_admits"`
	PlannedDischarges []PatientRow    `json:"planned_discharges"`
	Escalations       []Escalation    `json:"escalations"`
	Patients          []PatientRow    `json:"patients"`
	KPIs              FacilityKPIs    `json:"kpis"`
}

// CareTeamKPIs summarize the whole program
type CareTeamKPIs struct {
	InProgram  int `json:"in_program"`
	OpenAlerts int `json:"open_alerts"`
	HighRisk   int `json:"high_risk"`
	Hospice    int `json:"hospice"`
}

// FacilityRTH is one row of the central-team RTH report
type FacilityRTH struct {
	FacilityID   types.ID                `json:"facility_id"`
	FacilityName string                  `json:"facility_name"`
	RTH          analytics.RTHProjection `json:"rth"`
}

// CareTeamView is the payload for the central care team: triage buckets over
// the entire population plus the per-facility RTH report.
type CareTeamView struct {
	Triage        TriageView    `json:"triage"`
	KPIs          CareTeamKPIs  `json:"kpis"`
	RTHByFacility []FacilityRTH `json:"rth_by_facility"`
}

// TriageView mirrors alert.TriageBuckets with facility names joined and
// masking applied.
type TriageView struct {
	High   []PatientRow `json:"high"`
	Medium []PatientRow `json:"medium"`
	Low    []PatientRow `json:"low"`
}

func newTriageView(b alert.TriageBuckets, facilityNames map[types.ID]string, mask bool) TriageView {
	convert := func(bucket []patient.Patient) []PatientRow {
		rows := make([]PatientRow, 0, len(bucket))
		for _, p := range bucket {
			rows = append(rows, newPatientRow(p, facilityNames[p.FacilityID], mask))
		}
		return rows
	}
	return TriageView{
		High:   convert(b.High),
		Medium: convert(b.Medium),
		Low:    convert(b.Low),
	}
}
