package ports

import (
	"context"

	"github.com/contraq/leakage-engine/internal/core/domain"
)

// Detector is the shared contract of both detection strategies. The rule
// evaluator and the model detector implement it; the reconciler depends on
// the findings they produce, never on concrete detector types.
type Detector interface {
	Detect(ctx context.Context, meta domain.ContractMetadata, clauses []domain.Clause) ([]domain.Finding, error)
}

// LeakageAnalyzer runs the full hybrid detection pipeline for one contract.
type LeakageAnalyzer interface {
	Analyze(ctx context.Context, meta domain.ContractMetadata, clauses []domain.Clause) (*domain.DetectionResult, error)
}

// ContractAnalyzer is the inbound contract for queue-driven analysis: it
// loads the contract's clauses itself and persists the outcome.
type ContractAnalyzer interface {
	AnalyzeByID(ctx context.Context, contractID string) (*domain.DetectionResult, error)
}
