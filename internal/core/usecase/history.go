package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
	"github.com/kirillkom/medicine-verifier/internal/core/ports"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// HistoryUseCase persists verdicts as scan records and serves history reads.
// Every recorded scan is announced on the queue for asynchronous
// post-processing.
type HistoryUseCase struct {
	repo  ports.ScanRepository
	queue ports.MessageQueue
}

func NewHistoryUseCase(repo ports.ScanRepository, queue ports.MessageQueue) *HistoryUseCase {
	return &HistoryUseCase{repo: repo, queue: queue}
}

func (uc *HistoryUseCase) Record(ctx context.Context, input domain.ScanInput, verdict *domain.VerificationVerdict) (*domain.ScanRecord, error) {
	record := &domain.ScanRecord{
		ID:         verdict.ID,
		InputKind:  input.Kind(),
		Status:     verdict.Status,
		Confidence: verdict.Confidence,
		Reasons:    verdict.Reasons,
		CreatedAt:  verdict.CreatedAt,
	}
	if record.Reasons == nil {
		record.Reasons = []string{}
	}
	if verdict.MatchedRecord != nil {
		record.MatchedNDC = verdict.MatchedRecord.NDC
		record.MatchedName = verdict.MatchedRecord.Name
		record.Manufacturer = verdict.MatchedRecord.Manufacturer
	}
	if verdict.ImageAssessment != nil {
		record.RiskLevel = verdict.ImageAssessment.RiskLevel
	}

	if err := uc.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create scan record: %w", err)
	}

	if err := uc.queue.PublishScanVerified(ctx, record.ID); err != nil {
		return nil, fmt.Errorf("publish scan verified event: %w", err)
	}

	return record, nil
}

func (uc *HistoryUseCase) GetByID(ctx context.Context, id string) (*domain.ScanRecord, error) {
	record, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch scan by id: %w", err)
	}
	return record, nil
}

func (uc *HistoryUseCase) ListRecent(ctx context.Context, limit int) ([]domain.ScanRecord, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	records, err := uc.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent scans: %w", err)
	}
	return records, nil
}
