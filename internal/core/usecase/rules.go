package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/contraq/leakage-engine/internal/core/domain"
)

// ruleConfidence is fixed for every rule finding: rules are deterministic,
// so their confidence does not vary per match.
const ruleConfidence = 0.95

// RuleDetector evaluates the rule catalog against a clause set. Evaluation
// is pure and order-independent per rule: each rule scans all clauses once
// and fires at most once per contract unless marked repeatable.
type RuleDetector struct {
	catalog *Catalog
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

type RuleDetectorOption func(*RuleDetector)

// WithRuleClock overrides the timestamp source, for deterministic output.
func WithRuleClock(now func() time.Time) RuleDetectorOption {
	return func(d *RuleDetector) { d.now = now }
}

// WithRuleIDGenerator overrides finding id generation, for deterministic output.
func WithRuleIDGenerator(newID func() string) RuleDetectorOption {
	return func(d *RuleDetector) { d.newID = newID }
}

func NewRuleDetector(catalog *Catalog, logger *slog.Logger, opts ...RuleDetectorOption) *RuleDetector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &RuleDetector{
		catalog: catalog,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect runs every catalog rule against the clause set. Rules that error
// are skipped; the scan itself has no failure modes beyond a cancelled
// context, so rule findings are always available to the pipeline.
func (d *RuleDetector) Detect(ctx context.Context, meta domain.ContractMetadata, clauses []domain.Clause) ([]domain.Finding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var findings []domain.Finding
	for _, rule := range d.catalog.Rules {
		if !contractConditionsHold(rule.Trigger, meta) {
			continue
		}

		matched := matchingClauses(rule.Trigger, clauses)
		if len(matched) == 0 {
			continue
		}

		if rule.Repeatable {
			for _, clause := range matched {
				findings = append(findings, d.buildFinding(rule, meta, []domain.Clause{clause}))
			}
			continue
		}
		findings = append(findings, d.buildFinding(rule, meta, matched))
	}

	d.logger.Info("rules_evaluated",
		"contract_id", meta.ContractID,
		"rules", len(d.catalog.Rules),
		"findings", len(findings),
	)
	return findings, nil
}

// buildFinding creates one finding for a fired rule. The highest-confidence
// matching clause is attached first as primary evidence; the remaining
// matches follow in input order.
func (d *RuleDetector) buildFinding(rule domain.Rule, meta domain.ContractMetadata, matched []domain.Clause) domain.Finding {
	primary := 0
	for i, c := range matched {
		if c.ConfidenceScore > matched[primary].ConfidenceScore {
			primary = i
		}
	}

	clauseIDs := make([]string, 0, len(matched))
	clauseIDs = append(clauseIDs, matched[primary].ID)
	for i, c := range matched {
		if i != primary {
			clauseIDs = append(clauseIDs, c.ID)
		}
	}

	finding := domain.Finding{
		ID:                d.newID(),
		ContractID:        meta.ContractID,
		Category:          rule.Category,
		Severity:          rule.Severity,
		RiskType:          rule.ID,
		Explanation:       rule.Explanation,
		RecommendedAction: rule.RecommendedAction,
		AffectedClauseIDs: clauseIDs,
		ConfidenceScore:   ruleConfidence,
		DetectionMethod:   domain.MethodRule,
		RuleID:            rule.ID,
		CreatedAt:         d.now().UTC(),
	}

	if rule.Impact != nil {
		impact, assumptions := estimateImpact(*rule.Impact, meta, d.catalog.Defaults)
		finding.EstimatedImpact = impact
		finding.Assumptions = assumptions
	}

	return finding
}

func contractConditionsHold(t domain.Trigger, meta domain.ContractMetadata) bool {
	if t.MinDurationMonths > 0 && meta.DurationMonths < t.MinDurationMonths {
		return false
	}
	if t.MinContractValue > 0 && meta.ContractValue < t.MinContractValue {
		return false
	}
	return true
}

func matchingClauses(t domain.Trigger, clauses []domain.Clause) []domain.Clause {
	var matched []domain.Clause
	for _, clause := range clauses {
		if clauseMatches(t, clause) {
			matched = append(matched, clause)
		}
	}
	return matched
}

func clauseMatches(t domain.Trigger, clause domain.Clause) bool {
	if len(t.ClauseTypes) > 0 && !containsClauseType(t.ClauseTypes, clause.ClauseType) {
		return false
	}

	if len(t.RiskSignals) > 0 && !anySignal(t.RiskSignals, clause.RiskSignals) {
		return false
	}

	text := strings.ToLower(clause.OriginalText)

	if len(t.Contains) > 0 {
		found := false
		for _, kw := range t.Contains {
			if strings.Contains(text, strings.ToLower(kw)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	for _, kw := range t.NotContains {
		if strings.Contains(text, strings.ToLower(kw)) {
			return false
		}
	}

	for _, kw := range t.Keywords {
		if !strings.Contains(text, strings.ToLower(kw)) {
			return false
		}
	}

	return true
}

func containsClauseType(types []domain.ClauseType, t domain.ClauseType) bool {
	for _, ct := range types {
		if ct == t {
			return true
		}
	}
	return false
}

func anySignal(required, present []string) bool {
	for _, r := range required {
		for _, p := range present {
			if r == p {
				return true
			}
		}
	}
	return false
}
