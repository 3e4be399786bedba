package usecase

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/contraq/leakage-engine/internal/core/domain"
)

// Reconciler merges the two finding streams into one de-duplicated, ranked
// set. Two findings are duplicates when they share a category and at least
// one affected clause, regardless of detection method. The rule finding
// wins (higher trust) but is marked hybrid, absorbs the model explanation
// as corroboration, and takes the maximum of the two confidence scores.
type Reconciler struct{}

func NewReconciler() *Reconciler { return &Reconciler{} }

// Reconcile validates, merges, and orders findings. A finding with no
// affected clauses indicates an upstream contract violation and is fatal to
// the run. The final order is total and deterministic: severity descending,
// then estimated impact amount descending (missing impact last), then
// insertion order.
func (r *Reconciler) Reconcile(ruleFindings, modelFindings []domain.Finding) ([]domain.Finding, error) {
	for _, f := range append(append([]domain.Finding{}, ruleFindings...), modelFindings...) {
		if len(f.AffectedClauseIDs) == 0 {
			return nil, domain.WrapError(domain.ErrReconciliation, "validate findings",
				fmt.Errorf("finding %s has no affected clauses", f.ID))
		}
		if f.DetectionMethod == domain.MethodRule && f.RuleID == "" {
			return nil, domain.WrapError(domain.ErrReconciliation, "validate findings",
				fmt.Errorf("rule finding %s missing rule id", f.ID))
		}
		if f.DetectionMethod == domain.MethodAI && f.RuleID != "" {
			return nil, domain.WrapError(domain.ErrReconciliation, "validate findings",
				fmt.Errorf("model finding %s carries rule id %s", f.ID, f.RuleID))
		}
		if f.EstimatedImpact != nil && len(f.Assumptions) == 0 {
			return nil, domain.WrapError(domain.ErrReconciliation, "validate findings",
				errors.New("estimated impact without recorded assumptions"))
		}
	}

	merged := make([]domain.Finding, len(ruleFindings))
	copy(merged, ruleFindings)
	corroborations := make([][]string, len(merged))

	var passthrough []domain.Finding
	for _, mf := range modelFindings {
		idx := matchDuplicate(merged, mf)
		if idx < 0 {
			passthrough = append(passthrough, mf)
			continue
		}
		merged[idx].DetectionMethod = domain.MethodHybrid
		if mf.ConfidenceScore > merged[idx].ConfidenceScore {
			merged[idx].ConfidenceScore = mf.ConfidenceScore
		}
		if text := strings.TrimSpace(mf.Explanation); text != "" {
			corroborations[idx] = append(corroborations[idx], text)
		}
	}

	// Sorting the corroborating texts keeps the merged explanation
	// independent of model finding order.
	for i, texts := range corroborations {
		if len(texts) == 0 {
			continue
		}
		sort.Strings(texts)
		merged[i].Explanation = merged[i].Explanation + "\n\nModel corroboration: " + strings.Join(texts, " ")
	}

	final := append(merged, passthrough...)
	sortFindings(final)
	return final, nil
}

func matchDuplicate(ruleFindings []domain.Finding, mf domain.Finding) int {
	for i, rf := range ruleFindings {
		if rf.Category != mf.Category {
			continue
		}
		if sharesClause(rf.AffectedClauseIDs, mf.AffectedClauseIDs) {
			return i
		}
	}
	return -1
}

func sharesClause(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

func sortFindings(findings []domain.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity.Rank() != findings[j].Severity.Rank() {
			return findings[i].Severity.Rank() > findings[j].Severity.Rank()
		}
		return impactAmount(findings[i]) > impactAmount(findings[j])
	})
}

func impactAmount(f domain.Finding) float64 {
	if f.EstimatedImpact == nil {
		return -1
	}
	return f.EstimatedImpact.Amount
}
