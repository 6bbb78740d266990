package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
)

type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ScanRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS scans (
	id TEXT PRIMARY KEY,
	input_kind TEXT NOT NULL,
	status TEXT NOT NULL,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	reasons JSONB NOT NULL DEFAULT '[]'::jsonb,
	matched_ndc TEXT,
	matched_name TEXT,
	manufacturer TEXT,
	risk_level TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);
CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ScanRepository) Create(ctx context.Context, scan *domain.ScanRecord) error {
	reasonsJSON, err := json.Marshal(scan.Reasons)
	if err != nil {
		return fmt.Errorf("marshal reasons: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO scans (
	id, input_kind, status, confidence, reasons, matched_ndc, matched_name, manufacturer, risk_level, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
		scan.ID, scan.InputKind, string(scan.Status), scan.Confidence, reasonsJSON,
		scan.MatchedNDC, scan.MatchedName, scan.Manufacturer, string(scan.RiskLevel), scan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (r *ScanRepository) GetByID(ctx context.Context, id string) (*domain.ScanRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, input_kind, status, confidence, reasons, matched_ndc, matched_name, manufacturer, risk_level, created_at
FROM scans
WHERE id = $1
`, id)

	scan, err := scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrScanNotFound, "get scan", fmt.Errorf("id=%s", id))
		}
		return nil, err
	}
	return scan, nil
}

func (r *ScanRepository) ListRecent(ctx context.Context, limit int) ([]domain.ScanRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, input_kind, status, confidence, reasons, matched_ndc, matched_name, manufacturer, risk_level, created_at
FROM scans
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent scans: %w", err)
	}
	defer rows.Close()

	var out []domain.ScanRecord
	for rows.Next() {
		scan, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*domain.ScanRecord, error) {
	var scan domain.ScanRecord
	var reasonsRaw []byte
	var status, riskLevel string
	var matchedNDC, matchedName, manufacturer sql.NullString

	err := row.Scan(
		&scan.ID, &scan.InputKind, &status, &scan.Confidence, &reasonsRaw,
		&matchedNDC, &matchedName, &manufacturer, &riskLevel, &scan.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}

	if err := json.Unmarshal(reasonsRaw, &scan.Reasons); err != nil {
		return nil, fmt.Errorf("unmarshal reasons: %w", err)
	}
	scan.Status = domain.VerdictStatus(status)
	scan.RiskLevel = domain.RiskLevel(riskLevel)
	scan.MatchedNDC = matchedNDC.String
	scan.MatchedName = matchedName.String
	scan.Manufacturer = manufacturer.String
	return &scan, nil
}
