package analytics

import (
	"math"
	"testing"

	"github.com/puzzle-health/tracker/internal/patient"
)

func cohortWithScores(scores ...int) []patient.Patient {
	cohort := make([]patient.Patient, len(scores))
	for i, s := range scores {
		cohort[i] = patient.Patient{RiskScore: s}
	}
	return cohort
}

func TestEngagementScore(t *testing.T) {
	tests := []struct {
		name        string
		base        int
		ackMinutes  int
		highRiskPct float64
		want        int
	}{
		{"danville reference", 82, 21, 0.29, 86},
		{"fresh ack no high risk", 80, 0, 0.0, 90},
		{"clamped to floor", 40, 200, 1.0, 35},
		{"clamped to ceiling", 95, 0, 0.0, 95},
		{"stale ack drags down", 74, 47, 0.31, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EngagementScore(tt.base, tt.ackMinutes, tt.highRiskPct)
			if got != tt.want {
				t.Errorf("EngagementScore(%d, %d, %v) = %d, want %d",
					tt.base, tt.ackMinutes, tt.highRiskPct, got, tt.want)
			}
		})
	}
}

func TestEngagementScoreBounds(t *testing.T) {
	for base := 0; base <= 100; base += 10 {
		for ack := 0; ack <= 300; ack += 30 {
			for _, pct := range []float64{0, 0.25, 0.5, 0.75, 1} {
				got := EngagementScore(base, ack, pct)
				if got < EngagementFloor || got > EngagementCeiling {
					t.Fatalf("EngagementScore(%d, %d, %v) = %d outside [%d, %d]",
						base, ack, pct, got, EngagementFloor, EngagementCeiling)
				}
			}
		}
	}
}

func approx(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestProjectRTH(t *testing.T) {
	tests := []struct {
		name   string
		cohort []patient.Patient
		want   RTHProjection
	}{
		{
			// 3 of 10 above the cutoff
			name:   "ten patients three high",
			cohort: cohortWithScores(70, 80, 90, 50, 50, 50, 50, 50, 50, 50),
			want:   RTHProjection{R30: 0.16, R60: 0.21, R90: 0.25},
		},
		{
			name:   "empty cohort projects baseline",
			cohort: nil,
			want:   RTHProjection{R30: 0.07, R60: 0.12, R90: 0.16},
		},
		{
			name:   "all high risk hits every cap",
			cohort: cohortWithScores(90, 91, 92, 93),
			want:   RTHProjection{R30: 0.22, R60: 0.28, R90: 0.34},
		},
		{
			name:   "cutoff is strict",
			cohort: cohortWithScores(65, 65, 65, 65),
			want:   RTHProjection{R30: 0.07, R60: 0.12, R90: 0.16},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProjectRTH(tt.cohort)
			if !approx(got.R30, tt.want.R30) || !approx(got.R60, tt.want.R60) || !approx(got.R90, tt.want.R90) {
				t.Errorf("ProjectRTH() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestProjectRTHMonotonicHorizons(t *testing.T) {
	cohorts := [][]patient.Patient{
		nil,
		cohortWithScores(50),
		cohortWithScores(70, 50, 50),
		cohortWithScores(90, 90, 90),
	}
	for _, cohort := range cohorts {
		got := ProjectRTH(cohort)
		if got.R30 > got.R60 || got.R60 > got.R90 {
			t.Errorf("horizons not monotonic: %+v", got)
		}
	}
}

func TestHighRiskFraction(t *testing.T) {
	if got := HighRiskFraction(nil); got != 0 {
		t.Errorf("empty cohort fraction = %v, want 0", got)
	}
	if got := HighRiskFraction(cohortWithScores(66, 65, 50, 80)); !approx(got, 0.5) {
		t.Errorf("fraction = %v, want 0.5", got)
	}
}

func TestComputeFacilityMetrics(t *testing.T) {
	cohort := []patient.Patient{
		{RiskScore: 80, AtHome: false},
		{RiskScore: 70, AtHome: true},
		{RiskScore: 50, AtHome: false},
		{RiskScore: 40, AtHome: true},
	}

	m := ComputeFacilityMetrics(82, 21, cohort)

	if m.Census != 2 {
		t.Errorf("census = %d, want 2", m.Census)
	}
	if m.HomeCohort != 2 {
		t.Errorf("home cohort = %d, want 2", m.HomeCohort)
	}
	if !approx(m.HighRiskPct, 0.5) {
		t.Errorf("high risk pct = %v, want 0.5", m.HighRiskPct)
	}
	if m.Engagement != EngagementScore(82, 21, 0.5) {
		t.Errorf("engagement = %d, want derived value %d", m.Engagement, EngagementScore(82, 21, 0.5))
	}

	want := ProjectRTH(cohort)
	if m.RTH != want {
		t.Errorf("rth = %+v, want %+v", m.RTH, want)
	}
}
