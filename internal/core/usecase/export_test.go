package usecase

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
)

func TestExportXLSXWritesWorkbook(t *testing.T) {
	repo := &scanRepoFake{recent: []domain.ScanRecord{
		{
			ID:          "scan-1",
			InputKind:   "barcode",
			Status:      domain.StatusAuthentic,
			Confidence:  0.9,
			Reasons:     []string{"a", "b"},
			MatchedNDC:  "12345-678",
			MatchedName: "Acme Aspirin",
			RiskLevel:   domain.RiskLow,
			CreatedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:        "scan-2",
			InputKind: "name",
			Status:    domain.StatusSuspicious,
			Reasons:   []string{},
			CreatedAt: time.Date(2026, 8, 2, 12, 0, 0, 0, time.UTC),
		},
	}}
	uc := NewExportUseCase(repo)

	var buf bytes.Buffer
	count, err := uc.ExportXLSX(context.Background(), 10, &buf)
	if err != nil {
		t.Fatalf("ExportXLSX() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open exported workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatalf("read sheet rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("row count = %d, want header plus 2 records", len(rows))
	}
	if rows[0][0] != "Scan ID" {
		t.Fatalf("header = %v, want Scan ID first", rows[0])
	}
	if rows[1][0] != "scan-1" || rows[1][2] != "authentic" {
		t.Fatalf("first record row = %v", rows[1])
	}
	if rows[1][8] != "a; b" {
		t.Fatalf("reasons cell = %q, want joined list", rows[1][8])
	}
}

func TestExportXLSXListError(t *testing.T) {
	uc := NewExportUseCase(&scanRepoFake{listErr: errors.New("db down")})

	var buf bytes.Buffer
	if _, err := uc.ExportXLSX(context.Background(), 10, &buf); err == nil {
		t.Fatalf("expected error")
	}
}
