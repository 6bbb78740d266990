package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/kirillkom/medicine-verifier/internal/config"
	"github.com/kirillkom/medicine-verifier/internal/core/imagerisk"
	"github.com/kirillkom/medicine-verifier/internal/core/ports"
	"github.com/kirillkom/medicine-verifier/internal/core/usecase"
	"github.com/kirillkom/medicine-verifier/internal/infrastructure/analysis/labscan"
	"github.com/kirillkom/medicine-verifier/internal/infrastructure/extractor/leaflet"
	"github.com/kirillkom/medicine-verifier/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/medicine-verifier/internal/infrastructure/queue/nats"
	"github.com/kirillkom/medicine-verifier/internal/infrastructure/registry/openfda"
	"github.com/kirillkom/medicine-verifier/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/medicine-verifier/internal/infrastructure/resilience"
)

type App struct {
	Config config.Config

	Queue ports.MessageQueue
	Repo  ports.ScanRepository

	VerifyUC  ports.MedicineVerifier
	HistoryUC ports.ScanHistoryService
	ExportUC  ports.ScanReportExporter
	ProcessUC ports.ScanPostProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewScanRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: resilience.NewExecutor(resilience.DefaultPolicy()),
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	// Registry lookups report their failure once per scan, so no retries.
	registry := openfda.New(cfg.OpenFDAURL, cfg.OpenFDAAPIKey, openfda.Options{
		Timeout:           time.Duration(cfg.OpenFDATimeoutSec) * time.Second,
		RequestsPerMinute: cfg.OpenFDARequestsPerMin,
		Executor:          resilience.NewExecutor(resilience.SingleAttempt()),
	})

	analysis := labscan.New(cfg.AnalysisURL, time.Duration(cfg.AnalysisTimeoutSec)*time.Second)
	leafletExtractor := leaflet.NewExtractor()

	thresholds := imagerisk.DefaultThresholds()
	if cfg.RiskThresholdsPath != "" {
		thresholds, err = imagerisk.LoadThresholds(cfg.RiskThresholdsPath)
		if err != nil {
			return nil, fmt.Errorf("load risk thresholds: %w", err)
		}
	}

	var graph ports.ProvenanceGraph
	var graphConn *neo4j.Graph
	if cfg.Neo4jEnabled {
		graphConn, err = neo4j.New(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
		if err != nil {
			return nil, fmt.Errorf("init provenance graph: %w", err)
		}
		graph = graphConn
	}

	verifyUC := usecase.NewVerifyUseCase(registry, analysis, analysis, leafletExtractor, thresholds)
	historyUC := usecase.NewHistoryUseCase(repo, queue)
	exportUC := usecase.NewExportUseCase(repo)
	processUC := usecase.NewPostProcessUseCase(repo, graph)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		VerifyUC:  verifyUC,
		HistoryUC: historyUC,
		ExportUC:  exportUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
			if graphConn != nil {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = graphConn.Close(closeCtx)
			}
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
