package domain

// ImpactMethod selects the formula used to estimate financial impact.
type ImpactMethod string

const (
	ImpactInflationBased    ImpactMethod = "inflation_based"
	ImpactPercentageOfValue ImpactMethod = "percentage_of_value"
	ImpactRenewalBased      ImpactMethod = "renewal_based"
	ImpactOpportunityCost   ImpactMethod = "opportunity_cost"
)

// Trigger is the declarative condition tree of a rule. All populated
// predicates must hold for a clause to match; keyword matching is
// case-insensitive against the clause's original text.
type Trigger struct {
	ClauseTypes       []ClauseType `json:"clause_types,omitempty"`
	RiskSignals       []string     `json:"risk_signals,omitempty"` // any-of
	Contains          []string     `json:"contains,omitempty"`     // any-of
	NotContains       []string     `json:"not_contains,omitempty"` // none-of
	Keywords          []string     `json:"keywords,omitempty"`     // all-of
	MinDurationMonths int          `json:"min_duration_months,omitempty"`
	MinContractValue  float64      `json:"min_contract_value,omitempty"`
}

// ImpactEstimator configures the financial impact formula of a rule.
type ImpactEstimator struct {
	Method     ImpactMethod       `json:"method"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
}

// Rule is one declarative leakage-detection rule. Rules are data, not code:
// they are loaded once per process from a human-edited catalog and are
// immutable at evaluation time.
type Rule struct {
	ID                string           `json:"id"`
	Category          LeakageCategory  `json:"category"`
	Severity          Severity         `json:"severity"`
	Repeatable        bool             `json:"repeatable,omitempty"`
	Trigger           Trigger          `json:"trigger"`
	Explanation       string           `json:"explanation"`
	RecommendedAction string           `json:"recommended_action,omitempty"`
	Impact            *ImpactEstimator `json:"impact_estimator,omitempty"`
}
