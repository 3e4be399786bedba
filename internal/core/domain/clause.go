package domain

// ClauseType classifies an extracted contract clause.
type ClauseType string

const (
	ClausePricing          ClauseType = "pricing"
	ClausePaymentTerms     ClauseType = "payment_terms"
	ClauseRenewal          ClauseType = "renewal"
	ClauseTermination      ClauseType = "termination"
	ClauseLiability        ClauseType = "liability"
	ClauseIndemnification  ClauseType = "indemnification"
	ClauseWarranty         ClauseType = "warranty"
	ClauseSLA              ClauseType = "sla"
	ClausePenalty          ClauseType = "penalty"
	ClauseDiscount         ClauseType = "discount"
	ClauseVolumeCommitment ClauseType = "volume_commitment"
	ClausePriceAdjustment  ClauseType = "price_adjustment"
	ClauseOther            ClauseType = "other"
)

var knownClauseTypes = map[ClauseType]struct{}{
	ClausePricing:          {},
	ClausePaymentTerms:     {},
	ClauseRenewal:          {},
	ClauseTermination:      {},
	ClauseLiability:        {},
	ClauseIndemnification:  {},
	ClauseWarranty:         {},
	ClauseSLA:              {},
	ClausePenalty:          {},
	ClauseDiscount:         {},
	ClauseVolumeCommitment: {},
	ClausePriceAdjustment:  {},
	ClauseOther:            {},
}

// KnownClauseType reports whether t is one of the recognized clause types.
func KnownClauseType(t ClauseType) bool {
	_, ok := knownClauseTypes[t]
	return ok
}

// Clause is a classified unit of contract text produced by the upstream
// extraction pipeline. Immutable here except for the embedding, which the
// engine fills in lazily.
type Clause struct {
	ID                string     `json:"id"`
	ContractID        string     `json:"contract_id"`
	ClauseType        ClauseType `json:"clause_type"`
	SectionNumber     string     `json:"section_number,omitempty"`
	OriginalText      string     `json:"original_text"`
	NormalizedSummary string     `json:"normalized_summary"`
	RiskSignals       []string   `json:"risk_signals,omitempty"`
	ConfidenceScore   float64    `json:"confidence_score"`
	Embedding         []float32  `json:"embedding,omitempty"`
}

// ContractMetadata is the contract-level context both detectors consume.
type ContractMetadata struct {
	ContractID     string  `json:"contract_id"`
	ContractName   string  `json:"contract_name,omitempty"`
	Counterparty   string  `json:"counterparty,omitempty"`
	ContractType   string  `json:"contract_type,omitempty"`
	ContractValue  float64 `json:"contract_value"`
	Currency       string  `json:"currency,omitempty"`
	DurationMonths int     `json:"duration_months"`
}

// DurationYears converts the contract term to years for impact math.
func (m ContractMetadata) DurationYears() float64 {
	if m.DurationMonths <= 0 {
		return 0
	}
	return float64(m.DurationMonths) / 12.0
}
