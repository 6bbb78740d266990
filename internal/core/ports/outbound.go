package ports

import (
	"context"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
)

// RegistryGateway queries the external pharmaceutical registry. Both lookups
// return a transport error for network failures, malformed payloads and
// unexpected statuses; zero matches is a LookupNotFound outcome, not an
// error. The gateway never retries on its own.
type RegistryGateway interface {
	LookupByNDC(ctx context.Context, ndc string) (domain.LookupOutcome, error)
	LookupByName(ctx context.Context, name string) (domain.LookupOutcome, error)
}

// TextRecognizer runs OCR on a packaging image.
type TextRecognizer interface {
	Recognize(ctx context.Context, image []byte) (domain.RecognizedText, error)
}

// ImageAnalyzer scores a packaging image for counterfeit indicators.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, image []byte) (domain.ImageMetrics, error)
}

// LeafletExtractor extracts plain text from an uploaded package insert.
type LeafletExtractor interface {
	ExtractText(data []byte) (string, error)
}

// ScanRepository persists and reads scan history.
type ScanRepository interface {
	Create(ctx context.Context, scan *domain.ScanRecord) error
	GetByID(ctx context.Context, id string) (*domain.ScanRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ScanRecord, error)
}

// MessageQueue publishes/consumes verified-scan events.
type MessageQueue interface {
	PublishScanVerified(ctx context.Context, scanID string) error
	SubscribeScanVerified(ctx context.Context, handler func(context.Context, string) error) error
}

// ProvenanceGraph records manufacturer/product relations from verified scans.
type ProvenanceGraph interface {
	RecordProvenance(ctx context.Context, scan domain.ScanRecord) error
}
