package twin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =========== Patient Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, mrn, given_name, family_name, date_of_birth,
	email, phone, clinical_summary, created_at, updated_at`

func (r *patientRepoPG) scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.MRN, &p.GivenName, &p.FamilyName, &p.DateOfBirth,
		&p.Email, &p.Phone, &p.ClinicalSummary, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient (id, mrn, given_name, family_name, date_of_birth,
			email, phone, clinical_summary)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.MRN, p.GivenName, p.FamilyName, p.DateOfBirth,
		p.Email, p.Phone, p.ClinicalSummary)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return r.scanPatient(r.pool.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *patientRepoPG) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return r.scanPatient(r.pool.QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE mrn = $1`, mrn))
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE patient SET given_name=$2, family_name=$3, date_of_birth=$4,
			email=$5, phone=$6, clinical_summary=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.GivenName, p.FamilyName, p.DateOfBirth,
		p.Email, p.Phone, p.ClinicalSummary)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+patientCols+` FROM patient ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := r.scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

// =========== Snapshot Repository ===========

type snapshotRepoPG struct{ pool *pgxpool.Pool }

func NewSnapshotRepoPG(pool *pgxpool.Pool) SnapshotRepository {
	return &snapshotRepoPG{pool: pool}
}

const snapshotCols = `id, patient_id, risk_score, risk_level, symptom_forecast,
	model_version, generated_at, created_at`

func (r *snapshotRepoPG) scanSnapshot(row pgx.Row) (*TwinSnapshot, error) {
	var s TwinSnapshot
	var forecast []byte
	err := row.Scan(&s.ID, &s.PatientID, &s.RiskScore, &s.RiskLevel, &forecast,
		&s.ModelVersion, &s.GeneratedAt, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(forecast) > 0 {
		if err := json.Unmarshal(forecast, &s.SymptomForecast); err != nil {
			return nil, fmt.Errorf("decode symptom forecast: %w", err)
		}
	}
	return &s, nil
}

func (r *snapshotRepoPG) Create(ctx context.Context, s *TwinSnapshot) error {
	s.ID = uuid.New()
	forecast, err := json.Marshal(s.SymptomForecast)
	if err != nil {
		return fmt.Errorf("encode symptom forecast: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO twin_snapshot (id, patient_id, risk_score, risk_level,
			symptom_forecast, model_version, generated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.PatientID, s.RiskScore, s.RiskLevel,
		forecast, s.ModelVersion, s.GeneratedAt)
	return err
}

func (r *snapshotRepoPG) LatestByPatient(ctx context.Context, patientID uuid.UUID) (*TwinSnapshot, error) {
	return r.scanSnapshot(r.pool.QueryRow(ctx,
		`SELECT `+snapshotCols+` FROM twin_snapshot
		 WHERE patient_id = $1 ORDER BY generated_at DESC LIMIT 1`, patientID))
}

func (r *snapshotRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*TwinSnapshot, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM twin_snapshot WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+snapshotCols+` FROM twin_snapshot
		 WHERE patient_id = $1 ORDER BY generated_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*TwinSnapshot
	for rows.Next() {
		s, err := r.scanSnapshot(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}
