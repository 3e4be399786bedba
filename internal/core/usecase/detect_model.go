package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contraq/leakage-engine/internal/core/domain"
	"github.com/contraq/leakage-engine/internal/core/ports"
)

// ModelDetector asks a generative model for leakage findings grounded in a
// retrieval context. It is the optional branch of the pipeline: every error
// it returns is recoverable at the run level.
type ModelDetector struct {
	assembler *ContextAssembler
	generator ports.Generator
	timeout   time.Duration
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	onContextSize func(clauses int)
	onDroppedRefs func(count int)
}

type ModelDetectorOption func(*ModelDetector)

func WithModelClock(now func() time.Time) ModelDetectorOption {
	return func(d *ModelDetector) { d.now = now }
}

func WithModelIDGenerator(newID func() string) ModelDetectorOption {
	return func(d *ModelDetector) { d.newID = newID }
}

// WithModelContextObserver reports the size of each assembled context,
// typically into a metrics histogram.
func WithModelContextObserver(fn func(clauses int)) ModelDetectorOption {
	return func(d *ModelDetector) { d.onContextSize = fn }
}

// WithModelDropObserver reports hallucinated clause references dropped per
// detection call.
func WithModelDropObserver(fn func(count int)) ModelDetectorOption {
	return func(d *ModelDetector) { d.onDroppedRefs = fn }
}

func NewModelDetector(assembler *ContextAssembler, generator ports.Generator, timeout time.Duration, logger *slog.Logger, opts ...ModelDetectorOption) *ModelDetector {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	d := &ModelDetector{
		assembler: assembler,
		generator: generator,
		timeout:   timeout,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect assembles the retrieval context, invokes the model, and parses
// structured findings. Free-text replies get exactly one repair retry
// before the call fails with a model detection error. Findings referencing
// clauses outside the context are dropped as hallucinations.
func (d *ModelDetector) Detect(ctx context.Context, meta domain.ContractMetadata, clauses []domain.Clause) ([]domain.Finding, error) {
	rag, err := d.assembler.BuildContext(ctx, meta.ContractID, clauses)
	if err != nil {
		return nil, err
	}
	if d.onContextSize != nil {
		d.onContextSize(len(rag.Clauses))
	}
	if len(rag.Clauses) == 0 {
		d.logger.Warn("model_detection_no_context", "contract_id", meta.ContractID)
		return nil, nil
	}

	userPrompt := buildDetectionPrompt(meta, rag)

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	raw, err := d.generator.GenerateJSON(callCtx, detectionSystemPrompt, userPrompt)
	if err != nil {
		return nil, domain.WrapError(domain.ErrModelDetection, "generate findings", err)
	}

	parsed, parseErr := parseModelResponse(raw)
	if parseErr != nil {
		d.logger.Warn("model_response_unparseable", "contract_id", meta.ContractID, "error", parseErr)

		repairCtx, repairCancel := context.WithTimeout(ctx, d.timeout)
		defer repairCancel()

		raw, err = d.generator.GenerateJSON(repairCtx, detectionSystemPrompt, userPrompt+"\n\n"+repairInstruction)
		if err != nil {
			return nil, domain.WrapError(domain.ErrModelDetection, "generate findings (repair)", err)
		}
		parsed, parseErr = parseModelResponse(raw)
		if parseErr != nil {
			return nil, domain.WrapError(domain.ErrModelDetection, "parse model response", parseErr)
		}
	}

	findings := d.sanitize(meta, rag, parsed)
	d.logger.Info("model_detection_complete",
		"contract_id", meta.ContractID,
		"raw_findings", len(parsed.Findings),
		"findings", len(findings),
	)
	return findings, nil
}

type modelFinding struct {
	Category                string   `json:"category"`
	Severity                string   `json:"severity"`
	Confidence              float64  `json:"confidence"`
	Title                   string   `json:"title"`
	Explanation             string   `json:"explanation"`
	AffectedClauseIDs       []string `json:"affected_clause_ids"`
	RecommendedAction       string   `json:"recommended_action"`
	EstimatedImpactValue    float64  `json:"estimated_impact_value"`
	EstimatedImpactCurrency string   `json:"estimated_impact_currency"`
	ImpactCalculationMethod string   `json:"impact_calculation_method"`
	Assumptions             []string `json:"assumptions"`
}

type modelResponse struct {
	Findings []modelFinding `json:"findings"`
}

func parseModelResponse(raw string) (*modelResponse, error) {
	var resp modelResponse
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &resp); err != nil {
		return nil, fmt.Errorf("unmarshal model response: %w", err)
	}
	return &resp, nil
}

// extractJSONObject trims any prose the model wrapped around the object.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

// sanitize converts raw model findings into domain findings, clamping
// confidence to [0,1] and dropping every clause reference that is not part
// of the retrieval context. A finding left without clause references is
// dropped entirely.
func (d *ModelDetector) sanitize(meta domain.ContractMetadata, rag *domain.RagContext, resp *modelResponse) []domain.Finding {
	var findings []domain.Finding
	dropped := 0

	for _, mf := range resp.Findings {
		var clauseIDs []string
		for _, id := range mf.AffectedClauseIDs {
			if rag.HasClause(id) {
				clauseIDs = append(clauseIDs, id)
				continue
			}
			dropped++
			d.logger.Warn("hallucinated_clause_dropped",
				"contract_id", meta.ContractID,
				"clause_id", id,
				"title", mf.Title,
			)
		}
		if len(clauseIDs) == 0 {
			continue
		}

		riskType := strings.TrimSpace(mf.Title)
		if riskType == "" {
			riskType = "model-detected risk"
		}

		finding := domain.Finding{
			ID:                d.newID(),
			ContractID:        meta.ContractID,
			Category:          domain.ParseCategory(mf.Category),
			Severity:          domain.ParseSeverity(mf.Severity),
			RiskType:          riskType,
			Explanation:       strings.TrimSpace(mf.Explanation),
			RecommendedAction: strings.TrimSpace(mf.RecommendedAction),
			AffectedClauseIDs: clauseIDs,
			ConfidenceScore:   clamp01(mf.Confidence),
			DetectionMethod:   domain.MethodAI,
			Assumptions:       mf.Assumptions,
			CreatedAt:         d.now().UTC(),
		}

		if mf.EstimatedImpactValue > 0 {
			currency := mf.EstimatedImpactCurrency
			if currency == "" {
				currency = valueCurrency(meta)
			}
			method := mf.ImpactCalculationMethod
			if method == "" {
				method = "model_estimated"
			}
			// Reconciliation rejects impact without assumptions; a model
			// that omits them must not poison the run.
			if len(finding.Assumptions) == 0 {
				finding.Assumptions = []string{"impact estimated by the model without stated assumptions"}
			}
			finding.EstimatedImpact = &domain.EstimatedImpact{
				Amount:            mf.EstimatedImpactValue,
				Currency:          currency,
				CalculationMethod: method,
				Confidence:        finding.ConfidenceScore,
			}
		}

		findings = append(findings, finding)
	}

	if dropped > 0 {
		d.logger.Warn("hallucination_drops", "contract_id", meta.ContractID, "count", dropped)
		if d.onDroppedRefs != nil {
			d.onDroppedRefs(dropped)
		}
	}
	return findings
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
