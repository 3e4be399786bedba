package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/contraq/leakage-engine/internal/config"
	"github.com/contraq/leakage-engine/internal/core/ports"
	"github.com/contraq/leakage-engine/internal/core/usecase"
	"github.com/contraq/leakage-engine/internal/infrastructure/llm/openaicompat"
	"github.com/contraq/leakage-engine/internal/infrastructure/queue/nats"
	"github.com/contraq/leakage-engine/internal/infrastructure/repository/postgres"
	"github.com/contraq/leakage-engine/internal/infrastructure/resilience"
	"github.com/contraq/leakage-engine/internal/infrastructure/vector/qdrant"
	"github.com/contraq/leakage-engine/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    ports.MessageQueue
	Analysis *usecase.AnalysisService
	Metrics  *metrics.DetectionMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	findingRepo := postgres.NewFindingRepository(db)
	if err := findingRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure findings schema: %w", err)
	}
	clauseRepo := postgres.NewClauseRepository(db)
	if err := clauseRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure clauses schema: %w", err)
	}
	contractRepo := postgres.NewContractRepository(db)
	if err := contractRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure contracts schema: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	llmClient := openaicompat.New(cfg.LLMBaseURL, cfg.LLMAPIKey, openaicompat.Options{
		ChatModel:        cfg.LLMChatModel,
		EmbedModel:       cfg.LLMEmbedModel,
		Dimensions:       cfg.LLMDimensions,
		ResilienceConfig: resilience.DefaultConfig(),
	})
	embedder := openaicompat.NewEmbedder(llmClient)
	generator := openaicompat.NewGenerator(llmClient, cfg.LLMTemperature, cfg.LLMMaxTokens)

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)

	catalog, err := usecase.LoadCatalogFile(cfg.RulesPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load rule catalog: %w", err)
	}

	const serviceName = "leakage-worker"
	detectionMetrics := metrics.NewDetectionMetrics(serviceName)

	indexer := usecase.NewIndexer(embedder, index, clauseRepo, usecase.IndexerConfig{
		BatchSize:         cfg.EmbedBatchSize,
		Concurrency:       cfg.EmbedConcurrency,
		RequestsPerSecond: float64(cfg.EmbedRequestsPerSec),
	}, logger, usecase.WithIndexerEmbedObserver(func(count int) {
		detectionMetrics.RecordEmbeddedClauses(serviceName, count)
	}))
	assembler := usecase.NewContextAssembler(embedder, index, indexer, usecase.AssemblerConfig{
		TopKPerQuery: cfg.RetrievalTopKPerQuery,
		MaxClauses:   cfg.RetrievalMaxClauses,
	}, logger)

	ruleDetector := usecase.NewRuleDetector(catalog, logger)
	modelDetector := usecase.NewModelDetector(assembler, generator,
		time.Duration(cfg.ModelTimeoutSeconds)*time.Second, logger,
		usecase.WithModelContextObserver(func(clauses int) {
			detectionMetrics.ObserveContextSize(serviceName, clauses)
		}),
		usecase.WithModelDropObserver(func(count int) {
			detectionMetrics.RecordDroppedClauseRefs(serviceName, count)
		}),
	)
	engine := usecase.NewEngine(ruleDetector, modelDetector, usecase.NewReconciler(), logger)

	analysis := usecase.NewAnalysisService(clauseRepo, findingRepo, engine, contractRepo, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Queue:    queue,
		Analysis: analysis,
		Metrics:  detectionMetrics,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
