package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/contraq/leakage-engine/internal/core/domain"
	"github.com/contraq/leakage-engine/internal/core/ports"
)

// Engine orchestrates one hybrid detection run: the rule branch and the
// retrieval/model branch run concurrently and join at the reconciler. The
// model branch is optional; its failure degrades the run instead of failing
// it, since rule findings alone remain useful.
type Engine struct {
	rules      ports.Detector
	model      ports.Detector
	reconciler *Reconciler
	logger     *slog.Logger
	now        func() time.Time
	newID      func() string
}

type EngineOption func(*Engine)

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithEngineIDGenerator(newID func() string) EngineOption {
	return func(e *Engine) { e.newID = newID }
}

func NewEngine(rules, model ports.Detector, reconciler *Reconciler, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		rules:      rules,
		model:      model,
		reconciler: reconciler,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze runs the full pipeline for one contract. Cancellation of ctx
// propagates to both branches. Rule-branch and reconciliation failures are
// fatal; every model-branch failure is converted into a degraded run with
// warning strings downstream consumers can surface.
func (e *Engine) Analyze(ctx context.Context, meta domain.ContractMetadata, clauses []domain.Clause) (*domain.DetectionResult, error) {
	if strings.TrimSpace(meta.ContractID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze contract", errors.New("missing contract id"))
	}
	if len(clauses) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze contract", errors.New("no clauses to analyze"))
	}
	for _, c := range clauses {
		if strings.TrimSpace(c.OriginalText) == "" {
			return nil, domain.WrapError(domain.ErrInvalidInput, "analyze contract",
				fmt.Errorf("clause %s has empty text", c.ID))
		}
	}

	run := domain.DetectionRun{
		ID:         e.newID(),
		ContractID: meta.ContractID,
		StartedAt:  e.now().UTC(),
		State:      domain.RunPending,
	}

	var (
		ruleFindings  []domain.Finding
		modelFindings []domain.Finding
		modelErr      error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		findings, err := e.rules.Detect(gctx, meta, clauses)
		if err != nil {
			return fmt.Errorf("rule evaluation: %w", err)
		}
		ruleFindings = findings
		return nil
	})
	g.Go(func() error {
		// Errors are captured, not returned: a model failure must not
		// cancel the rule branch.
		modelFindings, modelErr = e.model.Detect(gctx, meta, clauses)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	run.State = domain.RunRulesEvaluated
	run.RuleFindingCount = len(ruleFindings)

	if modelErr != nil {
		run.State = domain.RunModelSkipped
		run.Degraded = true
		run.Warnings = append(run.Warnings, fmt.Sprintf("model detection skipped: %v", modelErr))
		modelFindings = nil
		e.logger.Warn("detection_degraded", "contract_id", meta.ContractID, "error", modelErr)
	} else {
		run.State = domain.RunContextBuilt
		run.State = domain.RunModelEvaluated
		run.ModelFindingCount = len(modelFindings)
	}

	final, err := e.reconciler.Reconcile(ruleFindings, modelFindings)
	if err != nil {
		return nil, err
	}
	run.State = domain.RunReconciled
	run.FinalFindingCount = len(final)

	bySeverity := make(map[domain.Severity]int)
	for _, f := range final {
		bySeverity[f.Severity]++
	}

	run.State = domain.RunDone
	e.logger.Info("detection_complete",
		"contract_id", meta.ContractID,
		"rule_findings", run.RuleFindingCount,
		"model_findings", run.ModelFindingCount,
		"final_findings", run.FinalFindingCount,
		"degraded", run.Degraded,
	)

	return &domain.DetectionResult{
		Run:        run,
		Findings:   final,
		BySeverity: bySeverity,
	}, nil
}
