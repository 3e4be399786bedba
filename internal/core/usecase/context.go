package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/contraq/leakage-engine/internal/core/domain"
	"github.com/contraq/leakage-engine/internal/core/ports"
)

// DefaultLeakageQueries are the targeted retrieval probes for leakage
// detection. Three broad patterns keep context assembly fast while still
// surfacing the clause families where leakage hides.
var DefaultLeakageQueries = []string{
	"pricing terms, payment conditions, fees, and financial obligations",
	"termination, renewal, liability caps, and indemnification provisions",
	"service levels, warranties, penalties, and performance guarantees",
}

// AssemblerConfig bounds the retrieval context.
type AssemblerConfig struct {
	Queries      []string
	TopKPerQuery int
	MaxClauses   int
}

func (c AssemblerConfig) normalize() AssemblerConfig {
	out := c
	if len(out.Queries) == 0 {
		out.Queries = DefaultLeakageQueries
	}
	if out.TopKPerQuery <= 0 {
		out.TopKPerQuery = 5
	}
	if out.MaxClauses <= 0 {
		out.MaxClauses = 15
	}
	return out
}

// ContextAssembler builds the bounded, deduplicated retrieval context the
// model detector consumes. If the contract has not been indexed yet it
// triggers embedding and indexing first, relying on the indexer's
// idempotence.
type ContextAssembler struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	indexer  *Indexer
	cfg      AssemblerConfig
	logger   *slog.Logger
}

func NewContextAssembler(embedder ports.Embedder, index ports.VectorIndex, indexer *Indexer, cfg AssemblerConfig, logger *slog.Logger) *ContextAssembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextAssembler{
		embedder: embedder,
		index:    index,
		indexer:  indexer,
		cfg:      cfg.normalize(),
		logger:   logger,
	}
}

// BuildContext embeds each configured query, searches the index scoped to
// the contract, and merges results across queries. A clause matched by
// several queries keeps its highest score and the query that produced it;
// truncation keeps the globally highest-scoring clauses regardless of
// source query, which maximizes signal density inside the prompt budget.
func (a *ContextAssembler) BuildContext(ctx context.Context, contractID string, clauses []domain.Clause) (*domain.RagContext, error) {
	if _, err := a.indexer.EmbedClauses(ctx, contractID, clauses); err != nil {
		return nil, fmt.Errorf("prepare retrieval index: %w", err)
	}

	byID := make(map[string]domain.Clause, len(clauses))
	for _, c := range clauses {
		byID[c.ID] = c
	}

	type candidate struct {
		clauseID     string
		score        float64
		matchedQuery string
		order        int
	}

	best := make(map[string]*candidate)
	var arrival []*candidate

	for _, query := range a.cfg.Queries {
		queryVector, err := a.embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, domain.WrapError(domain.ErrEmbedding, "embed retrieval query", err)
		}

		hits, err := a.index.Search(ctx, queryVector, contractID, a.cfg.TopKPerQuery)
		if err != nil {
			return nil, fmt.Errorf("search retrieval index: %w", err)
		}

		for _, hit := range hits {
			if _, known := byID[hit.ClauseID]; !known {
				continue
			}
			if existing, ok := best[hit.ClauseID]; ok {
				if hit.Score > existing.score {
					existing.score = hit.Score
					existing.matchedQuery = query
				}
				continue
			}
			c := &candidate{
				clauseID:     hit.ClauseID,
				score:        hit.Score,
				matchedQuery: query,
				order:        len(arrival),
			}
			best[hit.ClauseID] = c
			arrival = append(arrival, c)
		}
	}

	sort.SliceStable(arrival, func(i, j int) bool {
		if arrival[i].score != arrival[j].score {
			return arrival[i].score > arrival[j].score
		}
		return arrival[i].order < arrival[j].order
	})

	if len(arrival) > a.cfg.MaxClauses {
		arrival = arrival[:a.cfg.MaxClauses]
	}

	rag := &domain.RagContext{ContractID: contractID}
	for _, c := range arrival {
		rag.Clauses = append(rag.Clauses, domain.RetrievedClause{
			Clause:       byID[c.clauseID],
			Score:        c.score,
			MatchedQuery: c.matchedQuery,
		})
	}

	a.logger.Info("rag_context_built",
		"contract_id", contractID,
		"queries", len(a.cfg.Queries),
		"clauses", len(rag.Clauses),
	)
	return rag, nil
}
