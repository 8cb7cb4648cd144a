package adt

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/puzzle-health/tracker/internal/shared/config"
	"github.com/rs/zerolog"
)

// SQLServerFeed polls a hospital's ADT event table over SQL Server. Hospital
// interface engines commonly land HL7 ADT messages in a staging table; the
// feed tails that table by event timestamp.
type SQLServerFeed struct {
	cfg config.ADTConfig
	log zerolog.Logger

	db       *sql.DB
	events   chan Event
	running  bool
	mu       sync.RWMutex
	cancel   context.CancelFunc
	lastPoll time.Time
	wg       sync.WaitGroup
}

// NewSQLServerFeed creates a SQL Server ADT feed
func NewSQLServerFeed(cfg config.ADTConfig, log zerolog.Logger) *SQLServerFeed {
	return &SQLServerFeed{
		cfg:    cfg,
		log:    log.With().Str("component", "adt-feed").Logger(),
		events: make(chan Event, 64),
	}
}

// Start opens the connection and begins polling
func (f *SQLServerFeed) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.running {
		return fmt.Errorf("adt feed already running")
	}

	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		f.cfg.Host,
		f.cfg.Port,
		f.cfg.Database,
		f.cfg.User,
		f.cfg.Password,
	)
	if f.cfg.SSLMode != "disable" {
		connStr += ";encrypt=true;TrustServerCertificate=true"
	}

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return fmt.Errorf("failed to open adt database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping adt database: %w", err)
	}

	f.db = db
	f.running = true
	f.lastPoll = time.Now().Add(-f.cfg.PollInterval)

	pollCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.wg.Add(1)
	go f.pollLoop(pollCtx)

	return nil
}

// Stop halts polling and closes the connection
func (f *SQLServerFeed) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil
	}

	if f.cancel != nil {
		f.cancel()
	}

	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(f.events)
	if f.db != nil {
		f.db.Close()
	}
	f.running = false
	return nil
}

// Events returns the event channel
func (f *SQLServerFeed) Events() <-chan Event {
	return f.events
}

// Health checks feed connectivity
func (f *SQLServerFeed) Health(ctx context.Context) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.running {
		return fmt.Errorf("adt feed not running")
	}
	return f.db.PingContext(ctx)
}

func (f *SQLServerFeed) pollLoop(ctx context.Context) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := f.poll(ctx); err != nil {
				f.log.Warn().Err(err).Msg("adt poll failed")
			}
		}
	}
}

func (f *SQLServerFeed) poll(ctx context.Context) error {
	f.mu.Lock()
	since := f.lastPoll
	now := time.Now()
	f.lastPoll = now
	f.mu.Unlock()

	rows, err := f.db.QueryContext(ctx, `
		SELECT MRN, EventType, HospitalName, EventTime
		FROM dbo.ADTEvents
		WHERE EventTime > @since AND EventTime <= @until
		ORDER BY EventTime ASC
	`, sql.Named("since", since), sql.Named("until", now))
	if err != nil {
		return fmt.Errorf("failed to query adt events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ev Event
		var eventType string
		if err := rows.Scan(&ev.MRN, &eventType, &ev.Hospital, &ev.OccurredAt); err != nil {
			return fmt.Errorf("failed to scan adt event: %w", err)
		}
		ev.Type = mapEventType(eventType)

		select {
		case f.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return rows.Err()
}

// mapEventType maps HL7 ADT trigger codes to feed event types. A01 admits,
// A03 discharges; A04 registrations from the emergency department count as
// ED visits. Unknown codes pass through unchanged for observability.
func mapEventType(code string) EventType {
	switch code {
	case "A01", "admit":
		return EventAdmit
	case "A03", "discharge":
		return EventDischarge
	case "A04", "ed_visit":
		return EventEDVisit
	default:
		return EventType(code)
	}
}

// Verify interface implementation
var _ Feed = (*SQLServerFeed)(nil)
