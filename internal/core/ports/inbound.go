package ports

import (
	"context"
	"io"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
)

// MedicineVerifier is the inbound contract for one scan verification. The
// returned verdict is always well-formed; faults inside the pipeline surface
// as a verdict with status "error", not as a Go error. The error return is
// reserved for an abandoned scan (context cancellation).
type MedicineVerifier interface {
	Verify(ctx context.Context, input domain.ScanInput) (*domain.VerificationVerdict, error)
}

// ScanHistoryService is the inbound read/write model for persisted scans.
type ScanHistoryService interface {
	Record(ctx context.Context, input domain.ScanInput, verdict *domain.VerificationVerdict) (*domain.ScanRecord, error)
	GetByID(ctx context.Context, id string) (*domain.ScanRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ScanRecord, error)
}

// ScanReportExporter renders persisted scans into a downloadable report.
type ScanReportExporter interface {
	ExportXLSX(ctx context.Context, limit int, w io.Writer) (int, error)
}

// ScanPostProcessor is the worker-side contract for one verified scan event.
type ScanPostProcessor interface {
	ProcessByID(ctx context.Context, scanID string) error
}
