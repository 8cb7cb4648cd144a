package network

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/puzzle-health/tracker/internal/shared/errors"
	"github.com/puzzle-health/tracker/internal/shared/metrics"
	"github.com/puzzle-health/tracker/internal/shared/types"
)

// Repository defines read/write access to the care network records.
// Read operations are safe for unlimited concurrent callers.
type Repository interface {
	ListHealthSystems(ctx context.Context) ([]HealthSystem, error)
	ListChains(ctx context.Context) ([]SnfChain, error)
	ListFacilities(ctx context.Context, filter ListFacilitiesFilter) ([]Facility, error)
	GetFacility(ctx context.Context, id types.ID) (*Facility, error)

	SaveHealthSystem(ctx context.Context, hs *HealthSystem) error
	SaveChain(ctx context.Context, chain *SnfChain) error
	SaveFacility(ctx context.Context, facility *Facility) error
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL-backed network repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListHealthSystems lists all health systems
func (r *PostgresRepository) ListHealthSystems(ctx context.Context) ([]HealthSystem, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_health_systems", time.Since(start)) }()

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at
		FROM health_systems
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list health systems: %w", err)
	}
	defer rows.Close()

	var systems []HealthSystem
	for rows.Next() {
		var hs HealthSystem
		if err := rows.Scan(&hs.ID, &hs.Name, &hs.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan health system: %w", err)
		}
		systems = append(systems, hs)
	}

	return systems, nil
}

// ListChains lists all SNF chains
func (r *PostgresRepository) ListChains(ctx context.Context) ([]SnfChain, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_chains", time.Since(start)) }()

	rows, err := r.pool.Query(ctx, `
		SELECT id, name, created_at
		FROM snf_chains
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}
	defer rows.Close()

	var chains []SnfChain
	for rows.Next() {
		var c SnfChain
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chain: %w", err)
		}
		chains = append(chains, c)
	}

	return chains, nil
}

// ListFacilities lists facilities, optionally filtered by org or chain
func (r *PostgresRepository) ListFacilities(ctx context.Context, filter ListFacilitiesFilter) ([]Facility, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_facilities", time.Since(start)) }()

	query := `
		SELECT id, chain_id, org_id, name, address, bed_count,
		       engagement_base, last_ack_minutes, created_at
		FROM facilities
		WHERE 1=1
	`
	args := []any{}
	argPos := 1

	if filter.OrgID != nil {
		query += fmt.Sprintf(" AND org_id = $%d", argPos)
		args = append(args, *filter.OrgID)
		argPos++
	}
	if filter.ChainID != nil {
		query += fmt.Sprintf(" AND chain_id = $%d", argPos)
		args = append(args, *filter.ChainID)
		argPos++
	}

	query += " ORDER BY name ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list facilities: %w", err)
	}
	defer rows.Close()

	var facilities []Facility
	for rows.Next() {
		var f Facility
		err := rows.Scan(
			&f.ID,
			&f.ChainID,
			&f.OrgID,
			&f.Name,
			&f.Address,
			&f.BedCount,
			&f.EngagementBase,
			&f.LastAckMinutes,
			&f.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan facility: %w", err)
		}
		facilities = append(facilities, f)
	}

	return facilities, nil
}

// GetFacility retrieves a facility by ID
func (r *PostgresRepository) GetFacility(ctx context.Context, id types.ID) (*Facility, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_facility", time.Since(start)) }()

	var f Facility
	err := r.pool.QueryRow(ctx, `
		SELECT id, chain_id, org_id, name, address, bed_count,
		       engagement_base, last_ack_minutes, created_at
		FROM facilities
		WHERE id = $1
	`, id).Scan(
		&f.ID,
		&f.ChainID,
		&f.OrgID,
		&f.Name,
		&f.Address,
		&f.BedCount,
		&f.EngagementBase,
		&f.LastAckMinutes,
		&f.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("facility", id.String())
		}
		return nil, fmt.Errorf("failed to get facility: %w", err)
	}

	return &f, nil
}

// SaveHealthSystem upserts a health system
func (r *PostgresRepository) SaveHealthSystem(ctx context.Context, hs *HealthSystem) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO health_systems (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, hs.ID, hs.Name, hs.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save health system: %w", err)
	}
	return nil
}

// SaveChain upserts an SNF chain
func (r *PostgresRepository) SaveChain(ctx context.Context, chain *SnfChain) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO snf_chains (id, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
	`, chain.ID, chain.Name, chain.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save chain: %w", err)
	}
	return nil
}

// SaveFacility upserts a facility
func (r *PostgresRepository) SaveFacility(ctx context.Context, facility *Facility) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO facilities (
			id, chain_id, org_id, name, address, bed_count,
			engagement_base, last_ack_minutes, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			chain_id = EXCLUDED.chain_id,
			org_id = EXCLUDED.org_id,
			name = EXCLUDED.name,
			address = EXCLUDED.address,
			bed_count = EXCLUDED.bed_count,
			engagement_base = EXCLUDED.engagement_base,
			last_ack_minutes = EXCLUDED.last_ack_minutes
	`,
		facility.ID,
		facility.ChainID,
		facility.OrgID,
		facility.Name,
		facility.Address,
		facility.BedCount,
		facility.EngagementBase,
		facility.LastAckMinutes,
		facility.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save facility: %w", err)
	}
	return nil
}

// Verify interface implementation
var _ Repository = (*PostgresRepository)(nil)
