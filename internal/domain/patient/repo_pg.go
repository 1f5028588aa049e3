package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/chart/internal/domain/medication"
	"github.com/ehr/chart/internal/domain/notes"
	"github.com/ehr/chart/internal/platform/db"
)

const (
	uniqueViolation      = "23505"
	primaryKeyConstraint = "patient_pkey"
)

type repoPG struct {
	pool *pgxpool.Pool
}

// NewPGRepo stores patients in the patient table, with medication and
// chart-entry lists held in JSONB columns.
func NewPGRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const patientCols = `id, mrn, first_name, last_name, birth_date, gender,
	medications, chart_entries, created_at, updated_at`

func (r *repoPG) FindByID(ctx context.Context, id string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("patient get by id: %w", err)
	}
	return p, nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("patient count: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY seq LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("patient list: %w", err)
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("patient list: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	meds, entries, err := encodeLists(p.Medications, p.ChartEntries)
	if err != nil {
		return fmt.Errorf("patient create: %w", err)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO patient (id, mrn, first_name, last_name, birth_date, gender,
			medications, chart_entries, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.MRN, p.FirstName, p.LastName, nullable(p.BirthDate), nullable(p.Gender),
		meds, entries, p.CreatedAt, p.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == primaryKeyConstraint {
			return ErrDuplicateID
		}
		return ErrDuplicateMRN
	}
	if err != nil {
		return fmt.Errorf("patient create: %w", err)
	}
	return nil
}

func (r *repoPG) SaveMedications(ctx context.Context, id string, meds []medication.Medication) error {
	data, err := json.Marshal(nonNil(meds))
	if err != nil {
		return fmt.Errorf("encode medications: %w", err)
	}
	return r.updateColumn(ctx, id, "medications", data)
}

func (r *repoPG) SaveChartEntries(ctx context.Context, id string, entries []notes.ChartEntry) error {
	data, err := json.Marshal(nonNil(entries))
	if err != nil {
		return fmt.Errorf("encode chart entries: %w", err)
	}
	return r.updateColumn(ctx, id, "chart_entries", data)
}

// column is one of the fixed JSONB list columns, never user input.
func (r *repoPG) updateColumn(ctx context.Context, id, column string, data []byte) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patient SET `+column+` = $2, updated_at = NOW() WHERE id = $1`, id, data)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var birthDate, gender *string
	var meds, entries []byte
	err := row.Scan(
		&p.ID, &p.MRN, &p.FirstName, &p.LastName, &birthDate, &gender,
		&meds, &entries, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if birthDate != nil {
		p.BirthDate = *birthDate
	}
	if gender != nil {
		p.Gender = *gender
	}
	if err := json.Unmarshal(meds, &p.Medications); err != nil {
		return nil, fmt.Errorf("decode medications: %w", err)
	}
	if err := json.Unmarshal(entries, &p.ChartEntries); err != nil {
		return nil, fmt.Errorf("decode chart entries: %w", err)
	}
	return &p, nil
}

func encodeLists(meds []medication.Medication, entries []notes.ChartEntry) ([]byte, []byte, error) {
	m, err := json.Marshal(nonNil(meds))
	if err != nil {
		return nil, nil, fmt.Errorf("encode medications: %w", err)
	}
	e, err := json.Marshal(nonNil(entries))
	if err != nil {
		return nil, nil, fmt.Errorf("encode chart entries: %w", err)
	}
	return m, e, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
