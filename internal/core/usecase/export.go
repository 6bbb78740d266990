package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/medicine-verifier/internal/core/ports"
)

// ExportUseCase renders recent scan history into an XLSX workbook for
// offline review by pharmacists and auditors.
type ExportUseCase struct {
	repo ports.ScanRepository
}

func NewExportUseCase(repo ports.ScanRepository) *ExportUseCase {
	return &ExportUseCase{repo: repo}
}

const exportSheet = "Scans"

var exportHeader = []string{
	"Scan ID", "Input", "Status", "Confidence", "Matched NDC",
	"Matched Name", "Manufacturer", "Risk Level", "Reasons", "Created At",
}

// ExportXLSX writes up to limit recent scans into w and returns the number of
// exported rows.
func (uc *ExportUseCase) ExportXLSX(ctx context.Context, limit int, w io.Writer) (int, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := uc.repo.ListRecent(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("list scans for export: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if _, err := f.NewSheet(exportSheet); err != nil {
		return 0, fmt.Errorf("create export sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return 0, fmt.Errorf("drop default sheet: %w", err)
	}

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return 0, fmt.Errorf("header cell name: %w", err)
		}
		if err := f.SetCellValue(exportSheet, cell, title); err != nil {
			return 0, fmt.Errorf("write header cell: %w", err)
		}
	}

	for i, record := range records {
		values := []any{
			record.ID,
			record.InputKind,
			string(record.Status),
			record.Confidence,
			record.MatchedNDC,
			record.MatchedName,
			record.Manufacturer,
			string(record.RiskLevel),
			strings.Join(record.Reasons, "; "),
			record.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return 0, fmt.Errorf("row cell name: %w", err)
			}
			if err := f.SetCellValue(exportSheet, cell, value); err != nil {
				return 0, fmt.Errorf("write row cell: %w", err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("write workbook: %w", err)
	}
	return len(records), nil
}
