package usecase

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/contraq/leakage-engine/internal/core/domain"
)

func fixedClock() func() time.Time {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return ts }
}

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func escalationCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := LoadCatalog(strings.NewReader(validCatalogYAML), testLogger())
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	return catalog
}

func TestDetectFiresMissingPriceEscalation(t *testing.T) {
	detector := NewRuleDetector(escalationCatalog(t), testLogger(),
		WithRuleClock(fixedClock()), WithRuleIDGenerator(sequentialIDs("f")))

	meta := domain.ContractMetadata{
		ContractID:     "c-1",
		ContractValue:  500000,
		Currency:       "EUR",
		DurationMonths: 60,
	}
	clauses := []domain.Clause{
		{ID: "cl-1", ContractID: "c-1", ClauseType: domain.ClausePricing,
			OriginalText: "The fixed price for 5 years, no adjustment.", ConfidenceScore: 0.9},
		{ID: "cl-2", ContractID: "c-1", ClauseType: domain.ClauseRenewal,
			OriginalText: "This agreement renews annually.", ConfidenceScore: 0.8},
	}

	findings, err := detector.Detect(context.Background(), meta, clauses)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.RuleID != "MISSING_PRICE_ESCALATION" || f.RiskType != "MISSING_PRICE_ESCALATION" {
		t.Errorf("unexpected rule id %q", f.RuleID)
	}
	if f.Severity != domain.SeverityHigh || f.DetectionMethod != domain.MethodRule {
		t.Errorf("unexpected severity/method %s/%s", f.Severity, f.DetectionMethod)
	}
	if f.ConfidenceScore != 0.95 {
		t.Errorf("expected rule confidence 0.95, got %f", f.ConfidenceScore)
	}
	if len(f.AffectedClauseIDs) != 1 || f.AffectedClauseIDs[0] != "cl-1" {
		t.Errorf("unexpected clause ids %v", f.AffectedClauseIDs)
	}
	if f.EstimatedImpact == nil {
		t.Fatalf("expected estimated impact")
	}
	// 500000 * 0.04 (catalog default) * 5 years
	if f.EstimatedImpact.Amount < 99999.9 || f.EstimatedImpact.Amount > 100000.1 {
		t.Errorf("expected impact 100000, got %f", f.EstimatedImpact.Amount)
	}
	if f.EstimatedImpact.Currency != "EUR" {
		t.Errorf("expected currency EUR, got %s", f.EstimatedImpact.Currency)
	}
	if len(f.Assumptions) == 0 {
		t.Errorf("expected recorded assumptions alongside impact")
	}
}

func TestDetectSkipsWhenDurationBelowThreshold(t *testing.T) {
	detector := NewRuleDetector(escalationCatalog(t), testLogger())

	meta := domain.ContractMetadata{ContractID: "c-1", ContractValue: 500000, DurationMonths: 12}
	clauses := []domain.Clause{
		{ID: "cl-1", ClauseType: domain.ClausePricing, OriginalText: "fixed price for the term"},
	}

	findings, err := detector.Detect(context.Background(), meta, clauses)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings below duration threshold, got %d", len(findings))
	}
}

func TestDetectNotContainsSuppressesMatch(t *testing.T) {
	detector := NewRuleDetector(escalationCatalog(t), testLogger())

	meta := domain.ContractMetadata{ContractID: "c-1", ContractValue: 500000, DurationMonths: 60}
	clauses := []domain.Clause{
		{ID: "cl-1", ClauseType: domain.ClausePricing,
			OriginalText: "Fixed price, subject to annual CPI escalation."},
	}

	findings, err := detector.Detect(context.Background(), meta, clauses)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected escalation language to suppress the rule, got %d findings", len(findings))
	}
}

func TestDetectRepeatableRuleFiresPerClause(t *testing.T) {
	detector := NewRuleDetector(escalationCatalog(t), testLogger(),
		WithRuleIDGenerator(sequentialIDs("f")))

	meta := domain.ContractMetadata{ContractID: "c-1", ContractValue: 500000, DurationMonths: 60}
	clauses := []domain.Clause{
		{ID: "cl-1", ClauseType: domain.ClausePricing, OriginalText: "fixed price for services"},
		{ID: "cl-2", ClauseType: domain.ClausePriceAdjustment, OriginalText: "fixed price for licenses"},
	}

	findings, err := detector.Detect(context.Background(), meta, clauses)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected one finding per matching clause, got %d", len(findings))
	}
	if findings[0].AffectedClauseIDs[0] != "cl-1" || findings[1].AffectedClauseIDs[0] != "cl-2" {
		t.Fatalf("unexpected clause attribution: %v / %v",
			findings[0].AffectedClauseIDs, findings[1].AffectedClauseIDs)
	}
}

func TestDetectNonRepeatablePicksHighestConfidencePrimary(t *testing.T) {
	detector := NewRuleDetector(escalationCatalog(t), testLogger())

	meta := domain.ContractMetadata{ContractID: "c-1", ContractValue: 2000000, DurationMonths: 36}
	clauses := []domain.Clause{
		{ID: "cl-low", ClauseType: domain.ClauseLiability,
			OriginalText: "Liability shall be unlimited for data breaches.", ConfidenceScore: 0.6},
		{ID: "cl-high", ClauseType: domain.ClauseLiability,
			OriginalText: "Indemnity obligations are unlimited in amount.", ConfidenceScore: 0.9},
	}

	findings, err := detector.Detect(context.Background(), meta, clauses)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected single UNCAPPED_LIABILITY finding, got %d", len(findings))
	}
	want := []string{"cl-high", "cl-low"}
	if !reflect.DeepEqual(findings[0].AffectedClauseIDs, want) {
		t.Fatalf("expected primary-first ordering %v, got %v", want, findings[0].AffectedClauseIDs)
	}
}

func TestDetectIsDeterministicAcrossRuns(t *testing.T) {
	meta := domain.ContractMetadata{ContractID: "c-1", ContractValue: 500000, DurationMonths: 60}
	clauses := []domain.Clause{
		{ID: "cl-1", ClauseType: domain.ClausePricing, OriginalText: "fixed price, no adjustment"},
	}

	var runs [][]domain.Finding
	for i := 0; i < 2; i++ {
		detector := NewRuleDetector(escalationCatalog(t), testLogger(),
			WithRuleClock(fixedClock()), WithRuleIDGenerator(sequentialIDs("f")))
		findings, err := detector.Detect(context.Background(), meta, clauses)
		if err != nil {
			t.Fatalf("Detect() error = %v", err)
		}
		runs = append(runs, findings)
	}
	if !reflect.DeepEqual(runs[0], runs[1]) {
		t.Fatalf("expected byte-identical findings across runs:\n%+v\n%+v", runs[0], runs[1])
	}
}

func TestDetectStopsOnCancelledContext(t *testing.T) {
	detector := NewRuleDetector(escalationCatalog(t), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := detector.Detect(ctx, domain.ContractMetadata{ContractID: "c-1"}, nil)
	if err == nil {
		t.Fatalf("expected context error")
	}
}
