// Command analyze runs leakage detection on a single contract from local
// files, without Postgres, NATS, or Qdrant. Clauses and metadata come from
// JSON files; retrieval uses an in-process index. Without an LLM endpoint
// the run degrades to rule findings only.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/contraq/leakage-engine/internal/config"
	"github.com/contraq/leakage-engine/internal/core/domain"
	"github.com/contraq/leakage-engine/internal/core/ports"
	"github.com/contraq/leakage-engine/internal/core/usecase"
	"github.com/contraq/leakage-engine/internal/infrastructure/llm/openaicompat"
	"github.com/contraq/leakage-engine/internal/infrastructure/resilience"
	"github.com/contraq/leakage-engine/internal/infrastructure/vector/memory"
	"github.com/contraq/leakage-engine/internal/observability/logging"
)

func main() {
	var (
		clausesPath  = flag.String("clauses", "", "path to clauses JSON file (required)")
		metadataPath = flag.String("metadata", "", "path to contract metadata JSON file")
		rulesPath    = flag.String("rules", "rules/leakage_rules.yaml", "path to rule catalog YAML")
		llmURL       = flag.String("llm-url", "", "OpenAI-compatible base URL; empty disables the model branch")
		pretty       = flag.Bool("pretty", true, "indent JSON output")
	)
	flag.Parse()

	if *clausesPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	logger := logging.NewJSONLogger("leakage-analyze", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clauses, err := readJSONFile[[]domain.Clause](*clausesPath)
	if err != nil {
		log.Fatalf("read clauses: %v", err)
	}
	var meta domain.ContractMetadata
	if *metadataPath != "" {
		meta, err = readJSONFile[domain.ContractMetadata](*metadataPath)
		if err != nil {
			log.Fatalf("read metadata: %v", err)
		}
	}
	if meta.ContractID == "" && len(clauses) > 0 {
		meta.ContractID = clauses[0].ContractID
	}

	catalog, err := usecase.LoadCatalogFile(*rulesPath, logger)
	if err != nil {
		log.Fatalf("load rule catalog: %v", err)
	}

	ruleDetector := usecase.NewRuleDetector(catalog, logger)
	modelDetector := buildModelDetector(cfg, *llmURL, logger)
	engine := usecase.NewEngine(ruleDetector, modelDetector, usecase.NewReconciler(), logger)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.RunTimeoutSeconds)*time.Second)
	defer cancel()

	result, err := engine.Analyze(runCtx, meta, clauses)
	if err != nil {
		log.Fatalf("analyze: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(result); err != nil {
		log.Fatalf("encode result: %v", err)
	}
}

func buildModelDetector(cfg config.Config, llmURL string, logger *slog.Logger) ports.Detector {
	if llmURL == "" {
		return disabledDetector{}
	}

	client := openaicompat.New(llmURL, cfg.LLMAPIKey, openaicompat.Options{
		ChatModel:        cfg.LLMChatModel,
		EmbedModel:       cfg.LLMEmbedModel,
		Dimensions:       cfg.LLMDimensions,
		ResilienceConfig: resilience.DefaultConfig(),
	})
	embedder := openaicompat.NewEmbedder(client)
	generator := openaicompat.NewGenerator(client, cfg.LLMTemperature, cfg.LLMMaxTokens)
	index := memory.New()

	indexer := usecase.NewIndexer(embedder, index, nil, usecase.IndexerConfig{
		BatchSize:         cfg.EmbedBatchSize,
		Concurrency:       cfg.EmbedConcurrency,
		RequestsPerSecond: float64(cfg.EmbedRequestsPerSec),
	}, logger)
	assembler := usecase.NewContextAssembler(embedder, index, indexer, usecase.AssemblerConfig{
		TopKPerQuery: cfg.RetrievalTopKPerQuery,
		MaxClauses:   cfg.RetrievalMaxClauses,
	}, logger)
	return usecase.NewModelDetector(assembler, generator,
		time.Duration(cfg.ModelTimeoutSeconds)*time.Second, logger)
}

// disabledDetector forces a degraded run when no LLM endpoint is given.
type disabledDetector struct{}

func (disabledDetector) Detect(context.Context, domain.ContractMetadata, []domain.Clause) ([]domain.Finding, error) {
	return nil, errors.New("model detection disabled: no llm endpoint configured")
}

func readJSONFile[T any](path string) (T, error) {
	var out T
	raw, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("parse %s: %w", path, err)
	}
	return out, nil
}
