package network

import (
	"context"
	"testing"

	apperrors "github.com/puzzle-health/tracker/internal/shared/errors"
	"github.com/puzzle-health/tracker/internal/shared/types"
)

func seededRepo(t *testing.T) *MemoryRepository {
	t.Helper()
	repo := NewMemoryRepository()
	if err := SeedDemo(context.Background(), repo); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return repo
}

func TestSeedNetworkShape(t *testing.T) {
	repo := seededRepo(t)
	ctx := context.Background()

	systems, err := repo.ListHealthSystems(ctx)
	if err != nil {
		t.Fatalf("list systems: %v", err)
	}
	if len(systems) != 3 {
		t.Errorf("health systems = %d, want 3", len(systems))
	}

	chains, err := repo.ListChains(ctx)
	if err != nil {
		t.Fatalf("list chains: %v", err)
	}
	if len(chains) != 3 {
		t.Errorf("chains = %d, want 3", len(chains))
	}

	facilities, err := repo.ListFacilities(ctx, ListFacilitiesFilter{})
	if err != nil {
		t.Fatalf("list facilities: %v", err)
	}
	if len(facilities) != 4 {
		t.Errorf("facilities = %d, want 4", len(facilities))
	}
	for _, f := range facilities {
		if f.EngagementBase == 0 || f.BedCount == 0 {
			t.Errorf("facility %s missing raw signals", f.ID)
		}
	}
}

func TestListFacilitiesFilters(t *testing.T) {
	repo := seededRepo(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		filter  ListFacilitiesFilter
		wantIDs []types.ID
	}{
		{
			name:    "by org",
			filter:  ListFacilitiesFilter{OrgID: idPtr("hs1")},
			wantIDs: []types.ID{"f3", "f1"},
		},
		{
			name:    "by chain",
			filter:  ListFacilitiesFilter{ChainID: idPtr("c1")},
			wantIDs: []types.ID{"f1", "f2"},
		},
		{
			name:    "org with no facilities",
			filter:  ListFacilitiesFilter{OrgID: idPtr("hs9")},
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.ListFacilities(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d facilities, want %d", len(got), len(tt.wantIDs))
			}
			for i, f := range got {
				if f.ID != tt.wantIDs[i] {
					t.Errorf("facility[%d] = %s, want %s (name-sorted)", i, f.ID, tt.wantIDs[i])
				}
			}
		})
	}
}

func TestGetFacility(t *testing.T) {
	repo := seededRepo(t)
	ctx := context.Background()

	f, err := repo.GetFacility(ctx, "f4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f.Name != "Stellar - Scioto" || f.ChainID != "c3" {
		t.Errorf("unexpected facility: %+v", f)
	}

	_, err = repo.GetFacility(ctx, "f9")
	if err == nil {
		t.Fatal("unknown facility should be not found")
	}
	if appErr, ok := err.(*apperrors.AppError); !ok || appErr.Code != "NOT_FOUND" {
		t.Errorf("want NOT_FOUND AppError, got %v", err)
	}
}

func idPtr(s string) *types.ID {
	id := types.ID(s)
	return &id
}
