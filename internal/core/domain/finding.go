package domain

import (
	"strings"
	"time"
)

// LeakageCategory groups findings by the kind of value at risk.
type LeakageCategory string

const (
	CategoryPricing     LeakageCategory = "pricing"
	CategoryPayment     LeakageCategory = "payment"
	CategoryRenewal     LeakageCategory = "renewal"
	CategoryTermination LeakageCategory = "termination"
	CategoryLiability   LeakageCategory = "liability"
	CategoryCompliance  LeakageCategory = "compliance"
	CategorySLA         LeakageCategory = "sla"
	CategoryDiscounts   LeakageCategory = "discounts"
	CategoryVolume      LeakageCategory = "volume"
	CategoryOther       LeakageCategory = "other"
)

var knownCategories = map[LeakageCategory]struct{}{
	CategoryPricing:     {},
	CategoryPayment:     {},
	CategoryRenewal:     {},
	CategoryTermination: {},
	CategoryLiability:   {},
	CategoryCompliance:  {},
	CategorySLA:         {},
	CategoryDiscounts:   {},
	CategoryVolume:      {},
	CategoryOther:       {},
}

// ParseCategory maps a raw string to a known category, defaulting to other.
// Input casing is tolerated; stored values are always lowercase.
func ParseCategory(raw string) LeakageCategory {
	c := LeakageCategory(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownCategories[c]; ok {
		return c
	}
	return CategoryOther
}

// Severity is the ordered severity scale for findings.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the position of s on the low<medium<high<critical scale,
// zero for unknown values.
func (s Severity) Rank() int {
	return severityRank[s]
}

// ParseSeverity normalizes a raw severity string, defaulting to medium.
func ParseSeverity(raw string) Severity {
	s := Severity(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := severityRank[s]; ok {
		return s
	}
	return SeverityMedium
}

// DetectionMethod records which detector produced a finding.
type DetectionMethod string

const (
	MethodRule   DetectionMethod = "rule"
	MethodAI     DetectionMethod = "ai"
	MethodHybrid DetectionMethod = "hybrid"
)

// EstimatedImpact is the quantified financial exposure of a finding.
type EstimatedImpact struct {
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	CalculationMethod string  `json:"calculation_method,omitempty"`
	Confidence        float64 `json:"confidence,omitempty"`
}

// Finding is a detected leakage risk. The field shape is a wire contract
// consumed by the persistence and reporting collaborators; do not change it
// without versioning.
type Finding struct {
	ID                string           `json:"id"`
	ContractID        string           `json:"contract_id"`
	Category          LeakageCategory  `json:"category"`
	Severity          Severity         `json:"severity"`
	RiskType          string           `json:"risk_type"`
	Explanation       string           `json:"explanation"`
	RecommendedAction string           `json:"recommended_action,omitempty"`
	AffectedClauseIDs []string         `json:"affected_clause_ids"`
	ConfidenceScore   float64          `json:"confidence_score"`
	DetectionMethod   DetectionMethod  `json:"detection_method"`
	RuleID            string           `json:"rule_id,omitempty"`
	EstimatedImpact   *EstimatedImpact `json:"estimated_financial_impact,omitempty"`
	Assumptions       []string         `json:"assumptions,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}
