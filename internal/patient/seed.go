package patient

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/puzzle-health/tracker/internal/shared/types"
)

var seedNames = []string{
	"Ruth Alvarez", "David Chen", "Khadija Khan", "Marcus Taylor", "Ana Patel",
	"George Ibrahim", "Salma Amin", "John Smith", "M. Rodriguez", "Henry Cho",
}

var seedPayers = []string{"MA", "FFS", "Commercial", "Dual"}

func seedVitals() []Vital {
	vitals := make([]Vital, 14)
	for i := 0; i < 14; i++ {
		hrBump, rrBump, spBump := 0, 0, 0
		if i > 9 {
			hrBump = 5
		}
		if i > 10 {
			rrBump = 2
		}
		if i > 11 {
			spBump = 2
		}
		dip := 0
		if i%7 == 0 {
			dip = 1
		}
		vitals[i] = Vital{
			Day:  fmt.Sprintf("D%d", i+1),
			HR:   68 + int(math.Round(math.Sin(float64(i)/2)*5)) + hrBump,
			RR:   16 + int(math.Round(math.Cos(float64(i)/3)*2)) + rrBump,
			SpO2: 95 - spBump - dip,
		}
	}
	return vitals
}

// SeedDemo loads the demo cohort of 26 patients spread across the four demo
// facilities. Risk scores, statuses, and payers rotate deterministically so
// every tier, program state, and payer mix appears in each facility.
//
// Every fifth patient gets a stale LastContactAt, outside the weekly outreach
// window, so alert generation produces the missed-call alerts the cohort is
// expected to carry.
func SeedDemo(ctx context.Context, repo Repository, now time.Time) error {
	facilityIDs := []types.ID{"f1", "f2", "f3", "f4"}
	admitBase := time.Date(2025, 7, 18, 9, 0, 0, 0, time.UTC)
	dischargeBase := time.Date(2025, 8, 3, 11, 0, 0, 0, time.UTC)

	for i := 0; i < 26; i++ {
		name := seedNames[i%len(seedNames)]
		if i > 19 {
			name += " Jr."
		}

		atHome := i%3 == 0
		hospice := i == 7
		ama := i == 12

		nextAppt := "Specialist"
		if atHome {
			nextAppt = "PCP 7d"
		} else if i%2 == 1 {
			nextAppt = "Therapy"
		}

		lastContact := now.Add(-48 * time.Hour)
		if i%5 == 0 {
			lastContact = now.Add(-10 * 24 * time.Hour)
		}

		admitted := admitBase.Add(time.Duration(i) * 6 * time.Hour)
		var discharged *time.Time
		if atHome {
			d := dischargeBase.Add(time.Duration(i) * 6 * time.Hour)
			discharged = &d
		}

		medRec := "Open"
		if i%2 == 1 {
			medRec = "Done"
		}
		pcpVisit := "Scheduled"
		if i%3 != 0 {
			pcpVisit = "Open"
		}

		riskScore := 30 + ((i * 13) % 70)

		p := Patient{
			ID:         types.ID(fmt.Sprintf("p%d", i+1)),
			Name:       name,
			MRN:        fmt.Sprintf("MRN-%d", 10000+i),
			FacilityID: facilityIDs[i%len(facilityIDs)],
			Payer:      seedPayers[i%len(seedPayers)],

			RiskScore: riskScore,
			AtHome:    atHome,
			Hospice:   hospice,
			AMA:       ama,

			NextAppointment: nextAppt,
			LastContactAt:   lastContact,
			AdmittedAt:      admitted,
			DischargedAt:    discharged,

			Vitals: seedVitals(),
			Encounters: []Encounter{
				{Type: "Hospital", Label: "Admit", When: "2025-07-12"},
				{Type: "Hospital", Label: "Discharge to SNF", When: "2025-07-18"},
				{Type: "SNF", Label: "SNF LOS", When: "2025-07-18 to 2025-08-03"},
			},
			Tasks: []Task{
				{ID: types.ID(fmt.Sprintf("t%d-1", i)), Title: "Med Rec", Status: medRec},
				{ID: types.ID(fmt.Sprintf("t%d-2", i)), Title: "PCP within 7 days", Status: pcpVisit},
			},
			Interventions: []Intervention{
				{When: "2025-08-10", Type: "Education", By: "Puzzle CM", Note: "Low-sodium diet coaching"},
			},
		}

		if atHome {
			p.Encounters = append(p.Encounters, Encounter{
				Type: "Home", Label: "90-day program", When: "since 2025-08-03",
			})
		} else {
			p.Encounters = append(p.Encounters, Encounter{
				Type: "SNF", Label: "Current SNF", When: "in-facility",
			})
		}

		if riskScore > 70 {
			p.Interventions = append(p.Interventions, Intervention{
				When: "2025-08-15", Type: "Escalation", By: "Puzzle CM",
				Note: "SpO2 trending low; notified SNF nurse",
			})
		}

		if err := repo.Save(ctx, &p); err != nil {
			return fmt.Errorf("failed to seed patient %s: %w", p.ID, err)
		}
	}

	return nil
}
