package ports

import (
	"context"

	"github.com/contraq/leakage-engine/internal/core/domain"
)

// Embedder builds fixed-length vectors for clause summaries and queries.
// Implementations must not mix dimensionalities: Dimensions is the contract
// the vector index relies on.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// SearchHit is one ranked result from the vector index.
type SearchHit struct {
	ClauseID string
	Score    float64
}

// VectorIndex stores and queries clause embeddings. Search is scoped by
// contract id to prevent cross-contract retrieval; ranking is strictly
// descending by cosine score with ties broken by insertion order.
type VectorIndex interface {
	Upsert(ctx context.Context, contractID, clauseID string, vector []float32, meta map[string]string) error
	Search(ctx context.Context, queryVector []float32, contractID string, topK int) ([]SearchHit, error)
}

// Generator invokes the generative model. Implementations return the raw
// model text; callers own structured parsing and repair retries.
type Generator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// FindingRepository persists reconciled findings.
type FindingRepository interface {
	BulkCreate(ctx context.Context, findings []domain.Finding) (int, error)
	ListByContract(ctx context.Context, contractID string) ([]domain.Finding, error)
}

// ClauseRepository reads extracted clauses and stores their embeddings.
type ClauseRepository interface {
	ListByContract(ctx context.Context, contractID string) ([]domain.Clause, error)
	SaveEmbedding(ctx context.Context, contractID, clauseID string, embedding []float32) error
}

// MessageQueue delivers analyze requests to the detection worker.
type MessageQueue interface {
	PublishAnalyzeRequested(ctx context.Context, contractID string) error
	SubscribeAnalyzeRequested(ctx context.Context, handler func(context.Context, string) error) error
}
