package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/formpack-portal/internal/core/domain"
)

const defaultHistoryLimit = 50

// UploadHistoryRepository stores submissions made through this portal. It
// never stores backend package state.
type UploadHistoryRepository struct {
	db *sql.DB
}

func NewUploadHistoryRepository(db *sql.DB) *UploadHistoryRepository {
	return &UploadHistoryRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *UploadHistoryRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across portal replicas.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS package_uploads (
	package_id TEXT PRIMARY KEY,
	package_name TEXT NOT NULL,
	file_count INTEGER NOT NULL,
	outcome TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	submitted_at TIMESTAMPTZ NOT NULL,
	settled_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_package_uploads_submitted_at ON package_uploads(submitted_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *UploadHistoryRepository) RecordSubmission(ctx context.Context, record domain.UploadRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO package_uploads (package_id, package_name, file_count, outcome, error_message, submitted_at, settled_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (package_id) DO UPDATE
SET package_name = EXCLUDED.package_name,
	file_count = EXCLUDED.file_count,
	outcome = EXCLUDED.outcome,
	error_message = EXCLUDED.error_message,
	submitted_at = EXCLUDED.submitted_at,
	settled_at = EXCLUDED.settled_at
`, record.PackageID, record.PackageName, record.FileCount, string(record.Outcome), record.Error, record.SubmittedAt.UTC(), record.SettledAt)
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

func (r *UploadHistoryRepository) UpdateOutcome(ctx context.Context, packageID string, outcome domain.UploadState, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE package_uploads
SET outcome = $2, error_message = $3, settled_at = $4
WHERE package_id = $1
`, packageID, string(outcome), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update upload outcome: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update upload outcome rows affected: %w", err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrPackageNotFound, "update upload outcome", fmt.Errorf("id=%s", packageID))
	}
	return nil
}

func (r *UploadHistoryRepository) ListRecent(ctx context.Context, limit int) ([]domain.UploadRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT package_id, package_name, file_count, outcome, error_message, submitted_at, settled_at
FROM package_uploads
ORDER BY submitted_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	out := make([]domain.UploadRecord, 0)
	for rows.Next() {
		record, err := scanUpload(rows)
		if err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate uploads: %w", err)
	}
	return out, nil
}

type uploadScanner interface {
	Scan(dest ...any) error
}

func scanUpload(row uploadScanner) (domain.UploadRecord, error) {
	var record domain.UploadRecord
	var outcome string
	var settledAt sql.NullTime
	err := row.Scan(
		&record.PackageID,
		&record.PackageName,
		&record.FileCount,
		&outcome,
		&record.Error,
		&record.SubmittedAt,
		&settledAt,
	)
	if err != nil {
		return domain.UploadRecord{}, err
	}
	record.Outcome = domain.UploadState(outcome)
	if settledAt.Valid {
		at := settledAt.Time
		record.SettledAt = &at
	}
	return record, nil
}
