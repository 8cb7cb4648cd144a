package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/puzzle-health/tracker/internal/risk"
	"github.com/puzzle-health/tracker/internal/shared/errors"
	"github.com/puzzle-health/tracker/internal/shared/metrics"
	"github.com/puzzle-health/tracker/internal/shared/types"
)

// Repository defines storage for patient records. Reads may run concurrently
// without limit; writes to a single patient record must be serialized by the
// caller (the HTTP layer handles one mutation per patient at a time, and the
// ADT poller is a single goroutine).
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Patient, error)
	Get(ctx context.Context, id types.ID) (*Patient, error)
	FindByMRN(ctx context.Context, mrn string) (*Patient, error)

	Save(ctx context.Context, p *Patient) error
	AppendIntervention(ctx context.Context, patientID types.ID, iv Intervention) error
	AppendEncounter(ctx context.Context, patientID types.ID, enc Encounter) error
	RecordContact(ctx context.Context, patientID types.ID, at time.Time) error

	// SaveAlert inserts an alert and reports whether a row was actually
	// stored. False means an active alert of the same type already exists
	// for the patient; the caller must not treat the alert as persisted.
	SaveAlert(ctx context.Context, alert *Alert) (bool, error)
	UpdateAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, id types.ID) (*Alert, error)
}

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL-backed patient repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const patientColumns = `
	id, name, mrn, facility_id, payer, risk_score,
	at_home, hospice, ama, next_appointment,
	last_contact_at, admitted_at, discharged_at,
	version, created_at, updated_at
`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.MRN,
		&p.FacilityID,
		&p.Payer,
		&p.RiskScore,
		&p.AtHome,
		&p.Hospice,
		&p.AMA,
		&p.NextAppointment,
		&p.LastContactAt,
		&p.AdmittedAt,
		&p.DischargedAt,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.RiskTier = risk.ClassifyWithHospice(p.RiskScore, p.Hospice)
	return &p, nil
}

// List lists patients matching the filter, highest risk first.
// Search filtering happens in SQL against the unmasked stored values.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Patient, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_patients", time.Since(start)) }()

	query := `SELECT ` + patientColumns + ` FROM patients WHERE 1=1`
	args := []any{}
	argPos := 1

	if filter.FacilityID != nil {
		query += fmt.Sprintf(" AND facility_id = $%d", argPos)
		args = append(args, *filter.FacilityID)
		argPos++
	}
	if len(filter.FacilityIDs) > 0 {
		query += fmt.Sprintf(" AND facility_id = ANY($%d)", argPos)
		ids := make([]string, len(filter.FacilityIDs))
		for i, id := range filter.FacilityIDs {
			ids[i] = id.String()
		}
		args = append(args, ids)
		argPos++
	}
	if filter.AtHome != nil {
		query += fmt.Sprintf(" AND at_home = $%d", argPos)
		args = append(args, *filter.AtHome)
		argPos++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND (name || mrn || next_appointment) ILIKE $%d", argPos)
		args = append(args, "%"+filter.Search+"%")
		argPos++
	}

	query += " ORDER BY risk_score DESC, name ASC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		patients = append(patients, *p)
	}

	if err := r.loadAlerts(ctx, patients); err != nil {
		return nil, err
	}

	return patients, nil
}

// Get retrieves a patient with the full record: alerts, vitals, encounters,
// tasks, interventions
func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*Patient, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_patient", time.Since(start)) }()

	row := r.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	p, err := scanPatient(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("patient", id.String())
		}
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}

	if err := r.loadDetail(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// FindByMRN retrieves a patient by medical record number
func (r *PostgresRepository) FindByMRN(ctx context.Context, mrn string) (*Patient, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("find_patient_by_mrn", time.Since(start)) }()

	row := r.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE mrn = $1`, mrn)
	p, err := scanPatient(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("patient", mrn)
		}
		return nil, fmt.Errorf("failed to find patient by mrn: %w", err)
	}

	return p, nil
}

// Save upserts a patient's core record and replaces its owned detail rows
func (r *PostgresRepository) Save(ctx context.Context, p *Patient) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("save_patient", time.Since(start)) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	p.Version++
	p.UpdatedAt = time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO patients (
			id, name, mrn, facility_id, payer, risk_score,
			at_home, hospice, ama, next_appointment,
			last_contact_at, admitted_at, discharged_at,
			version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			mrn = EXCLUDED.mrn,
			facility_id = EXCLUDED.facility_id,
			payer = EXCLUDED.payer,
			risk_score = EXCLUDED.risk_score,
			at_home = EXCLUDED.at_home,
			hospice = EXCLUDED.hospice,
			ama = EXCLUDED.ama,
			next_appointment = EXCLUDED.next_appointment,
			last_contact_at = EXCLUDED.last_contact_at,
			admitted_at = EXCLUDED.admitted_at,
			discharged_at = EXCLUDED.discharged_at,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
	`,
		p.ID, p.Name, p.MRN, p.FacilityID, p.Payer, p.RiskScore,
		p.AtHome, p.Hospice, p.AMA, p.NextAppointment,
		p.LastContactAt, p.AdmittedAt, p.DischargedAt,
		p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save patient: %w", err)
	}

	// Detail rows are replaced wholesale; alerts have their own lifecycle
	// and are never touched here.
	for _, table := range []string{"vitals", "encounters", "tasks", "interventions"} {
		if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE patient_id = $1`, p.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, v := range p.Vitals {
		_, err := tx.Exec(ctx, `
			INSERT INTO vitals (patient_id, day, hr, rr, spo2)
			VALUES ($1, $2, $3, $4, $5)
		`, p.ID, v.Day, v.HR, v.RR, v.SpO2)
		if err != nil {
			return fmt.Errorf("failed to save vital: %w", err)
		}
	}
	for _, e := range p.Encounters {
		_, err := tx.Exec(ctx, `
			INSERT INTO encounters (patient_id, type, label, occurred)
			VALUES ($1, $2, $3, $4)
		`, p.ID, e.Type, e.Label, e.When)
		if err != nil {
			return fmt.Errorf("failed to save encounter: %w", err)
		}
	}
	for _, task := range p.Tasks {
		_, err := tx.Exec(ctx, `
			INSERT INTO tasks (id, patient_id, title, status)
			VALUES ($1, $2, $3, $4)
		`, task.ID, p.ID, task.Title, task.Status)
		if err != nil {
			return fmt.Errorf("failed to save task: %w", err)
		}
	}
	for _, iv := range p.Interventions {
		_, err := tx.Exec(ctx, `
			INSERT INTO interventions (patient_id, happened, type, by_whom, note)
			VALUES ($1, $2, $3, $4, $5)
		`, p.ID, iv.When, iv.Type, iv.By, iv.Note)
		if err != nil {
			return fmt.Errorf("failed to save intervention: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// AppendIntervention appends a single intervention to the patient's log
func (r *PostgresRepository) AppendIntervention(ctx context.Context, patientID types.ID, iv Intervention) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("append_intervention", time.Since(start)) }()

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO interventions (patient_id, happened, type, by_whom, note)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM patients WHERE id = $1)
	`, patientID, iv.When, iv.Type, iv.By, iv.Note)
	if err != nil {
		return fmt.Errorf("failed to append intervention: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("patient", patientID.String())
	}

	return r.touch(ctx, patientID)
}

// AppendEncounter appends a timeline entry to the patient's record
func (r *PostgresRepository) AppendEncounter(ctx context.Context, patientID types.ID, enc Encounter) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("append_encounter", time.Since(start)) }()

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO encounters (patient_id, type, label, occurred)
		SELECT $1, $2, $3, $4
		WHERE EXISTS (SELECT 1 FROM patients WHERE id = $1)
	`, patientID, enc.Type, enc.Label, enc.When)
	if err != nil {
		return fmt.Errorf("failed to append encounter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("patient", patientID.String())
	}

	return r.touch(ctx, patientID)
}

// RecordContact stamps the patient's last outreach time
func (r *PostgresRepository) RecordContact(ctx context.Context, patientID types.ID, at time.Time) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("record_contact", time.Since(start)) }()

	tag, err := r.pool.Exec(ctx, `
		UPDATE patients
		SET last_contact_at = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1
	`, patientID, at)
	if err != nil {
		return fmt.Errorf("failed to record contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("patient", patientID.String())
	}
	return nil
}

// SaveAlert inserts a new alert. The partial unique index on (patient_id,
// type) over non-resolved rows rejects a duplicate while one is still active;
// a resolved alert of the same type never blocks a fresh one.
func (r *PostgresRepository) SaveAlert(ctx context.Context, alert *Alert) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("save_alert", time.Since(start)) }()

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO alerts (id, patient_id, severity, type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (patient_id, type) WHERE status <> 'resolved' DO NOTHING
	`, alert.ID, alert.PatientID, alert.Severity, alert.Type, alert.Status, alert.CreatedAt, alert.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to save alert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateAlert persists an alert's status transition
func (r *PostgresRepository) UpdateAlert(ctx context.Context, alert *Alert) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update_alert", time.Since(start)) }()

	tag, err := r.pool.Exec(ctx, `
		UPDATE alerts
		SET status = $2, updated_at = $3
		WHERE id = $1
	`, alert.ID, alert.Status, alert.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("alert", alert.ID.String())
	}
	return nil
}

// GetAlert retrieves an alert by ID
func (r *PostgresRepository) GetAlert(ctx context.Context, id types.ID) (*Alert, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_alert", time.Since(start)) }()

	var a Alert
	err := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, severity, type, status, created_at, updated_at
		FROM alerts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.PatientID, &a.Severity, &a.Type, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("alert", id.String())
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return &a, nil
}

func (r *PostgresRepository) touch(ctx context.Context, patientID types.ID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE patients SET version = version + 1, updated_at = NOW() WHERE id = $1
	`, patientID)
	if err != nil {
		return fmt.Errorf("failed to touch patient: %w", err)
	}
	return nil
}

// loadAlerts attaches non-resolved alerts to each patient in the slice
func (r *PostgresRepository) loadAlerts(ctx context.Context, patients []Patient) error {
	if len(patients) == 0 {
		return nil
	}

	ids := make([]string, len(patients))
	index := make(map[types.ID]*Patient, len(patients))
	for i := range patients {
		ids[i] = patients[i].ID.String()
		index[patients[i].ID] = &patients[i]
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, severity, type, status, created_at, updated_at
		FROM alerts
		WHERE patient_id = ANY($1) AND status != 'resolved'
		ORDER BY created_at ASC
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load alerts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Severity, &a.Type, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return fmt.Errorf("failed to scan alert: %w", err)
		}
		if p, ok := index[a.PatientID]; ok {
			p.Alerts = append(p.Alerts, a)
		}
	}

	return nil
}

// loadDetail attaches alerts, vitals, encounters, tasks, and interventions
func (r *PostgresRepository) loadDetail(ctx context.Context, p *Patient) error {
	single := []Patient{*p}
	if err := r.loadAlerts(ctx, single); err != nil {
		return err
	}
	p.Alerts = single[0].Alerts

	rows, err := r.pool.Query(ctx, `
		SELECT day, hr, rr, spo2 FROM vitals WHERE patient_id = $1 ORDER BY id ASC
	`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load vitals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v Vital
		if err := rows.Scan(&v.Day, &v.HR, &v.RR, &v.SpO2); err != nil {
			return fmt.Errorf("failed to scan vital: %w", err)
		}
		p.Vitals = append(p.Vitals, v)
	}
	rows.Close()

	rows, err = r.pool.Query(ctx, `
		SELECT type, label, occurred FROM encounters WHERE patient_id = $1 ORDER BY id ASC
	`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load encounters: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e Encounter
		if err := rows.Scan(&e.Type, &e.Label, &e.When); err != nil {
			return fmt.Errorf("failed to scan encounter: %w", err)
		}
		p.Encounters = append(p.Encounters, e)
	}
	rows.Close()

	rows, err = r.pool.Query(ctx, `
		SELECT id, title, status FROM tasks WHERE patient_id = $1 ORDER BY id ASC
	`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t Task
		if err := rows.Scan(&t.ID, &t.Title, &t.Status); err != nil {
			return fmt.Errorf("failed to scan task: %w", err)
		}
		p.Tasks = append(p.Tasks, t)
	}
	rows.Close()

	rows, err = r.pool.Query(ctx, `
		SELECT happened, type, by_whom, note FROM interventions WHERE patient_id = $1 ORDER BY id ASC
	`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load interventions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var iv Intervention
		if err := rows.Scan(&iv.When, &iv.Type, &iv.By, &iv.Note); err != nil {
			return fmt.Errorf("failed to scan intervention: %w", err)
		}
		p.Interventions = append(p.Interventions, iv)
	}

	return nil
}

// Verify interface implementation
var _ Repository = (*PostgresRepository)(nil)
