package network

import (
	"time"

	"github.com/puzzle-health/tracker/internal/shared/types"
)

// HealthSystem is a top-level tenant. It owns facilities through their OrgID
// back-reference; it does not hold them directly.
type HealthSystem struct {
	ID   types.ID `json:"id"`
	Name string   `json:"name"`

	CreatedAt time.Time `json:"created_at"`
}

// SnfChain groups facilities through their ChainID back-reference.
type SnfChain struct {
	ID   types.ID `json:"id"`
	Name string   `json:"name"`

	CreatedAt time.Time `json:"created_at"`
}

// Facility is a skilled nursing facility. It holds only structural fields and
// raw operational signals; census, high-risk share, engagement, and RTH are
// derived from the patient cohort at read time and never stored here.
type Facility struct {
	ID      types.ID `json:"id"`
	ChainID types.ID `json:"chain_id"`
	OrgID   types.ID `json:"org_id"`
	Name    string   `json:"name"`
	Address string   `json:"address"`

	BedCount int `json:"bed_count"`

	// Raw signals feeding the engagement score
	EngagementBase int `json:"engagement_base"`
	LastAckMinutes int `json:"last_ack_minutes"`

	CreatedAt time.Time `json:"created_at"`
}

// ListFacilitiesFilter defines filters for listing facilities
type ListFacilitiesFilter struct {
	OrgID   *types.ID `json:"org_id,omitempty"`
	ChainID *types.ID `json:"chain_id,omitempty"`
}
