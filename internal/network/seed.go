package network

import (
	"context"
	"time"

	"github.com/puzzle-health/tracker/internal/shared/types"
)

// SeedDemo loads the demo care network: three health systems, three SNF
// chains, four facilities. Patient cohort seeding lives in the patient
// package; the two share facility identifiers.
func SeedDemo(ctx context.Context, repo Repository) error {
	now := time.Now().UTC()

	systems := []HealthSystem{
		{ID: "hs1", Name: "Corewell Health East", CreatedAt: now},
		{ID: "hs2", Name: "OSF HealthCare", CreatedAt: now},
		{ID: "hs3", Name: "Adventist Health - Maryland", CreatedAt: now},
	}
	for i := range systems {
		if err := repo.SaveHealthSystem(ctx, &systems[i]); err != nil {
			return err
		}
	}

	chains := []SnfChain{
		{ID: "c1", Name: "Prestige", CreatedAt: now},
		{ID: "c2", Name: "Majestic", CreatedAt: now},
		{ID: "c3", Name: "Stellar", CreatedAt: now},
	}
	for i := range chains {
		if err := repo.SaveChain(ctx, &chains[i]); err != nil {
			return err
		}
	}

	facilities := []Facility{
		{
			ID: "f1", ChainID: "c1", OrgID: "hs1",
			Name: "Prestige - Danville", Address: "Danville, IL",
			BedCount: 110, EngagementBase: 82, LastAckMinutes: 21,
			CreatedAt: now,
		},
		{
			ID: "f2", ChainID: "c1", OrgID: "hs2",
			Name: "Prestige - Pontiac", Address: "Pontiac, IL",
			BedCount: 96, EngagementBase: 74, LastAckMinutes: 47,
			CreatedAt: now,
		},
		{
			ID: "f3", ChainID: "c2", OrgID: "hs1",
			Name: "Majestic - Bloomington", Address: "Bloomington, IL",
			BedCount: 120, EngagementBase: 65, LastAckMinutes: 62,
			CreatedAt: now,
		},
		{
			ID: "f4", ChainID: "c3", OrgID: "hs3",
			Name: "Stellar - Scioto", Address: "Scioto, OH",
			BedCount: 88, EngagementBase: 70, LastAckMinutes: 33,
			CreatedAt: now,
		},
	}
	for i := range facilities {
		if err := repo.SaveFacility(ctx, &facilities[i]); err != nil {
			return err
		}
	}

	return nil
}

// DemoFacilityIDs returns the facility identifiers used by the demo seed
func DemoFacilityIDs() []types.ID {
	return []types.ID{"f1", "f2", "f3", "f4"}
}
