package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/medicine-verifier/internal/core/domain"
	"github.com/kirillkom/medicine-verifier/internal/core/ports"
)

// PostProcessUseCase handles one verified-scan event on the worker side:
// authentic scans with a matched record are folded into the provenance graph.
// The graph is optional; without it the event is a no-op.
type PostProcessUseCase struct {
	repo  ports.ScanRepository
	graph ports.ProvenanceGraph
}

func NewPostProcessUseCase(repo ports.ScanRepository, graph ports.ProvenanceGraph) *PostProcessUseCase {
	return &PostProcessUseCase{repo: repo, graph: graph}
}

func (uc *PostProcessUseCase) ProcessByID(ctx context.Context, scanID string) error {
	record, err := uc.repo.GetByID(ctx, scanID)
	if err != nil {
		return fmt.Errorf("fetch scan by id: %w", err)
	}

	if uc.graph == nil {
		return nil
	}
	if record.Status != domain.StatusAuthentic || record.MatchedNDC == "" {
		return nil
	}

	if err := uc.graph.RecordProvenance(ctx, *record); err != nil {
		return fmt.Errorf("record provenance: %w", err)
	}
	return nil
}
