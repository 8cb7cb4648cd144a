package network

import (
	"context"
	"sort"
	"sync"

	"github.com/puzzle-health/tracker/internal/shared/errors"
	"github.com/puzzle-health/tracker/internal/shared/types"
)

// MemoryRepository is an in-memory Repository for development and tests.
// Reads return copies, so callers can never mutate the canonical records.
type MemoryRepository struct {
	mu         sync.RWMutex
	systems    map[types.ID]HealthSystem
	chains     map[types.ID]SnfChain
	facilities map[types.ID]Facility
}

// NewMemoryRepository creates an empty in-memory network repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		systems:    make(map[types.ID]HealthSystem),
		chains:     make(map[types.ID]SnfChain),
		facilities: make(map[types.ID]Facility),
	}
}

// ListHealthSystems lists all health systems sorted by name
func (r *MemoryRepository) ListHealthSystems(ctx context.Context) ([]HealthSystem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	systems := make([]HealthSystem, 0, len(r.systems))
	for _, hs := range r.systems {
		systems = append(systems, hs)
	}
	sort.Slice(systems, func(i, j int) bool { return systems[i].Name < systems[j].Name })

	return systems, nil
}

// ListChains lists all SNF chains sorted by name
func (r *MemoryRepository) ListChains(ctx context.Context) ([]SnfChain, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	chains := make([]SnfChain, 0, len(r.chains))
	for _, c := range r.chains {
		chains = append(chains, c)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i].Name < chains[j].Name })

	return chains, nil
}

// ListFacilities lists facilities matching the filter, sorted by name.
// An org or chain with no facilities resolves to an empty result, not an error.
func (r *MemoryRepository) ListFacilities(ctx context.Context, filter ListFacilitiesFilter) ([]Facility, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var facilities []Facility
	for _, f := range r.facilities {
		if filter.OrgID != nil && f.OrgID != *filter.OrgID {
			continue
		}
		if filter.ChainID != nil && f.ChainID != *filter.ChainID {
			continue
		}
		facilities = append(facilities, f)
	}
	sort.Slice(facilities, func(i, j int) bool { return facilities[i].Name < facilities[j].Name })

	return facilities, nil
}

// GetFacility retrieves a facility by ID
func (r *MemoryRepository) GetFacility(ctx context.Context, id types.ID) (*Facility, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.facilities[id]
	if !ok {
		return nil, errors.NotFound("facility", id.String())
	}
	return &f, nil
}

// SaveHealthSystem upserts a health system
func (r *MemoryRepository) SaveHealthSystem(ctx context.Context, hs *HealthSystem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.systems[hs.ID] = *hs
	return nil
}

// SaveChain upserts an SNF chain
func (r *MemoryRepository) SaveChain(ctx context.Context, chain *SnfChain) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chains[chain.ID] = *chain
	return nil
}

// SaveFacility upserts a facility
func (r *MemoryRepository) SaveFacility(ctx context.Context, facility *Facility) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.facilities[facility.ID] = *facility
	return nil
}

// Verify interface implementation
var _ Repository = (*MemoryRepository)(nil)
