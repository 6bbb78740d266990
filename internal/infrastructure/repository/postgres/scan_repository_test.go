package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ScanRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ScanRepository{db: db}, mock, func() { _ = db.Close() }
}

func scanColumns() []string {
	return []string{
		"id", "input_kind", "status", "confidence", "reasons",
		"matched_ndc", "matched_name", "manufacturer", "risk_level", "created_at",
	}
}

func TestCreateInsertsScan(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO scans").
		WithArgs(
			"scan-1", "barcode", "authentic", 0.9, []byte(`["matched"]`),
			"12345-678", "Acme Aspirin", "Acme Corp", "low", createdAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &domain.ScanRecord{
		ID:           "scan-1",
		InputKind:    "barcode",
		Status:       domain.StatusAuthentic,
		Confidence:   0.9,
		Reasons:      []string{"matched"},
		MatchedNDC:   "12345-678",
		MatchedName:  "Acme Aspirin",
		Manufacturer: "Acme Corp",
		RiskLevel:    domain.RiskLow,
		CreatedAt:    createdAt,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, input_kind, status, confidence").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrScanNotFound) {
		t.Fatalf("expected ErrScanNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDHydratesRecord(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(scanColumns()).AddRow(
		"scan-1", "barcode", "counterfeit", 0.9, []byte(`["Medicine not found in FDA database"]`),
		nil, nil, nil, "", createdAt,
	)
	mock.ExpectQuery("SELECT id, input_kind, status, confidence").
		WithArgs("scan-1").
		WillReturnRows(rows)

	record, err := repo.GetByID(context.Background(), "scan-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if record.Status != domain.StatusCounterfeit {
		t.Fatalf("status = %s, want counterfeit", record.Status)
	}
	if len(record.Reasons) != 1 {
		t.Fatalf("reasons = %v, want one entry", record.Reasons)
	}
	if record.MatchedNDC != "" || record.MatchedName != "" {
		t.Fatalf("null columns must map to empty strings: %+v", record)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListRecentReturnsRecords(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	createdAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(scanColumns()).
		AddRow("scan-2", "name", "suspicious", 0.5, []byte(`[]`), nil, nil, nil, "", createdAt.Add(time.Hour)).
		AddRow("scan-1", "barcode", "authentic", 0.9, []byte(`[]`), "12345-678", "Acme Aspirin", "Acme Corp", "low", createdAt)
	mock.ExpectQuery("SELECT id, input_kind, status, confidence").
		WithArgs(50).
		WillReturnRows(rows)

	records, err := repo.ListRecent(context.Background(), 50)
	if err != nil {
		t.Fatalf("ListRecent() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].ID != "scan-2" {
		t.Fatalf("first record = %s, want newest", records[0].ID)
	}
	if records[1].RiskLevel != domain.RiskLow {
		t.Fatalf("risk level = %s, want low", records[1].RiskLevel)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
