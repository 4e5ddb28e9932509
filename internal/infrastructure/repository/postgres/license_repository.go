package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/leave-intake/internal/core/domain"
)

const (
	schemaLockKey    = int64(2026101601)
	defaultListLimit = 50
	maxListLimit     = 500
)

type LicenseRepository struct {
	db *sql.DB
}

func NewLicenseRepository(db *sql.DB) *LicenseRepository {
	return &LicenseRepository{db: db}
}

func (r *LicenseRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS licenses (
	id TEXT PRIMARY KEY,
	professional_name TEXT NOT NULL DEFAULT '',
	professional_id TEXT NOT NULL DEFAULT '',
	issuer TEXT NOT NULL DEFAULT '',
	start_date TEXT NOT NULL DEFAULT '',
	end_date TEXT NOT NULL DEFAULT '',
	rest_days INTEGER NOT NULL DEFAULT 0,
	diagnosis_code TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	notified_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_licenses_created_at ON licenses(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_licenses_professional_id ON licenses(professional_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *LicenseRepository) Create(ctx context.Context, record *domain.ConfirmedRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO licenses (
	id, professional_name, professional_id, issuer, start_date, end_date, rest_days, diagnosis_code, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		record.ID, record.ProfessionalName, record.ProfessionalID, record.Issuer, record.StartDate,
		record.EndDate, record.RestDays, record.DiagnosisCode, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

const selectLicense = `
SELECT id, professional_name, professional_id, issuer, start_date, end_date, rest_days, diagnosis_code, created_at, notified_at
FROM licenses
`

func (r *LicenseRepository) GetByID(ctx context.Context, id string) (*domain.ConfirmedRecord, error) {
	row := r.db.QueryRowContext(ctx, selectLicense+`WHERE id = $1`, id)

	record, err := scanLicense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrLicenseNotFound, "get license", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan license: %w", err)
	}
	return record, nil
}

func (r *LicenseRepository) ListRecent(ctx context.Context, limit int) ([]domain.ConfirmedRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	rows, err := r.db.QueryContext(ctx, selectLicense+`ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query licenses: %w", err)
	}
	defer rows.Close()

	records := make([]domain.ConfirmedRecord, 0, limit)
	for rows.Next() {
		record, err := scanLicense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan license: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate licenses: %w", err)
	}
	return records, nil
}

func (r *LicenseRepository) MarkNotified(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE licenses
SET notified_at = $2
WHERE id = $1
`, id, at)
	if err != nil {
		return fmt.Errorf("mark license notified: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark license notified rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrLicenseNotFound, "mark license notified", fmt.Errorf("id=%s", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLicense(row rowScanner) (*domain.ConfirmedRecord, error) {
	var record domain.ConfirmedRecord
	var notifiedAt sql.NullTime
	err := row.Scan(
		&record.ID, &record.ProfessionalName, &record.ProfessionalID, &record.Issuer, &record.StartDate,
		&record.EndDate, &record.RestDays, &record.DiagnosisCode, &record.CreatedAt, &notifiedAt,
	)
	if err != nil {
		return nil, err
	}
	if notifiedAt.Valid {
		record.NotifiedAt = notifiedAt.Time
	}
	return &record, nil
}
