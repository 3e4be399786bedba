package domain

// RetrievedClause is one semantic-search hit inside a RAG context.
type RetrievedClause struct {
	Clause       Clause  `json:"clause"`
	Score        float64 `json:"score"`
	MatchedQuery string  `json:"matched_query"`
}

// RagContext is the bounded, deduplicated retrieval context handed to the
// model detector. Ephemeral: it lives only for the detection run that
// produced it.
type RagContext struct {
	ContractID string            `json:"contract_id"`
	Clauses    []RetrievedClause `json:"clauses"`
}

// HasClause reports whether the context contains the given clause id.
func (c *RagContext) HasClause(id string) bool {
	for _, rc := range c.Clauses {
		if rc.Clause.ID == id {
			return true
		}
	}
	return false
}
