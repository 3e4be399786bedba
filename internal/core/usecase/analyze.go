package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/contraq/leakage-engine/internal/core/domain"
	"github.com/contraq/leakage-engine/internal/core/ports"
)

// AnalysisService is the queue-facing entry point: it loads a contract's
// clauses from the repository, runs the engine, and persists the final
// findings.
type AnalysisService struct {
	clauses  ports.ClauseRepository
	findings ports.FindingRepository
	engine   ports.LeakageAnalyzer
	metadata MetadataResolver
	logger   *slog.Logger
}

// MetadataResolver supplies contract metadata for a contract id. The
// engine treats contract records as owned by an external collaborator, so
// only this narrow lookup is required.
type MetadataResolver interface {
	ContractMetadata(ctx context.Context, contractID string) (domain.ContractMetadata, error)
}

func NewAnalysisService(clauses ports.ClauseRepository, findings ports.FindingRepository, engine ports.LeakageAnalyzer, metadata MetadataResolver, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		clauses:  clauses,
		findings: findings,
		engine:   engine,
		metadata: metadata,
		logger:   logger,
	}
}

// AnalyzeByID loads clauses and metadata, runs detection, and stores the
// reconciled findings. Persistence failure is fatal: returning findings
// that were silently not stored would corrupt the downstream audit trail.
func (s *AnalysisService) AnalyzeByID(ctx context.Context, contractID string) (*domain.DetectionResult, error) {
	clauses, err := s.clauses.ListByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("load clauses: %w", err)
	}
	if len(clauses) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "load clauses",
			errors.New("no clauses extracted for contract "+contractID))
	}

	meta, err := s.metadata.ContractMetadata(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("load contract metadata: %w", err)
	}

	result, err := s.engine.Analyze(ctx, meta, clauses)
	if err != nil {
		return nil, err
	}

	if len(result.Findings) > 0 {
		stored, err := s.findings.BulkCreate(ctx, result.Findings)
		if err != nil {
			return nil, fmt.Errorf("persist findings: %w", err)
		}
		s.logger.Info("findings_persisted", "contract_id", contractID, "count", stored)
	}

	return result, nil
}
