package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/contraq/leakage-engine/internal/core/domain"
)

func TestEmbedClausesFillsMissingEmbeddings(t *testing.T) {
	embedder := &fakeEmbedder{dims: 2}
	index := &fakeIndex{}
	repo := &fakeClauseRepo{}
	indexer := NewIndexer(embedder, index, repo, IndexerConfig{}, testLogger())

	clauses := []domain.Clause{
		{ID: "cl-1", ContractID: "c-1", NormalizedSummary: "fixed price"},
		{ID: "cl-2", ContractID: "c-1", NormalizedSummary: "auto renewal", Embedding: []float32{0.1, 0.2}},
	}

	n, err := indexer.EmbedClauses(context.Background(), "c-1", clauses)
	if err != nil {
		t.Fatalf("EmbedClauses() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 newly embedded clause, got %d", n)
	}
	if len(clauses[0].Embedding) != 2 {
		t.Fatalf("expected embedding written in place, got %v", clauses[0].Embedding)
	}
	if got := index.upserts; len(got) != 2 || got[0] != "cl-1" || got[1] != "cl-2" {
		t.Fatalf("expected both clauses upserted in order, got %v", got)
	}
	if _, ok := repo.saved["cl-1"]; !ok {
		t.Fatalf("expected new embedding persisted")
	}
	if _, ok := repo.saved["cl-2"]; ok {
		t.Fatalf("did not expect pre-embedded clause persisted")
	}
}

func TestEmbedClausesIsIdempotent(t *testing.T) {
	embedder := &fakeEmbedder{dims: 2}
	index := &fakeIndex{}
	indexer := NewIndexer(embedder, index, nil, IndexerConfig{}, testLogger())

	clauses := []domain.Clause{
		{ID: "cl-1", ContractID: "c-1", NormalizedSummary: "fixed price"},
	}

	if _, err := indexer.EmbedClauses(context.Background(), "c-1", clauses); err != nil {
		t.Fatalf("first EmbedClauses() error = %v", err)
	}
	n, err := indexer.EmbedClauses(context.Background(), "c-1", clauses)
	if err != nil {
		t.Fatalf("second EmbedClauses() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("expected second run to embed nothing, got %d", n)
	}
	if len(embedder.batches) != 1 {
		t.Fatalf("expected exactly one embedding call, got %d", len(embedder.batches))
	}
}

func TestEmbedClausesReturnsEmbeddingError(t *testing.T) {
	embedder := &fakeEmbedder{dims: 2, embedErr: errors.New("provider down")}
	indexer := NewIndexer(embedder, &fakeIndex{}, nil, IndexerConfig{}, testLogger())

	clauses := []domain.Clause{{ID: "cl-1", NormalizedSummary: "text"}}
	_, err := indexer.EmbedClauses(context.Background(), "c-1", clauses)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
}

func TestEmbedClausesToleratesPersistenceFailure(t *testing.T) {
	embedder := &fakeEmbedder{dims: 2}
	repo := &fakeClauseRepo{saveErr: errors.New("db offline")}
	indexer := NewIndexer(embedder, &fakeIndex{}, repo, IndexerConfig{}, testLogger())

	clauses := []domain.Clause{{ID: "cl-1", ContractID: "c-1", NormalizedSummary: "text"}}
	if _, err := indexer.EmbedClauses(context.Background(), "c-1", clauses); err != nil {
		t.Fatalf("expected persistence failure to be non-fatal, got %v", err)
	}
}

func TestEmbedClausesBatchesLargeInputs(t *testing.T) {
	embedder := &fakeEmbedder{dims: 2}
	indexer := NewIndexer(embedder, &fakeIndex{}, nil, IndexerConfig{
		BatchSize:         2,
		Concurrency:       1,
		RequestsPerSecond: 1000,
	}, testLogger())

	clauses := make([]domain.Clause, 5)
	for i := range clauses {
		clauses[i] = domain.Clause{ID: string(rune('a' + i)), NormalizedSummary: "clause text"}
	}

	n, err := indexer.EmbedClauses(context.Background(), "c-1", clauses)
	if err != nil {
		t.Fatalf("EmbedClauses() error = %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 embedded, got %d", n)
	}
	if len(embedder.batches) != 3 {
		t.Fatalf("expected 3 batches of size 2, got %d", len(embedder.batches))
	}
}

func TestEmbedClausesReportsEmbedObserver(t *testing.T) {
	embedder := &fakeEmbedder{dims: 2}
	var counts []int
	indexer := NewIndexer(embedder, &fakeIndex{}, nil, IndexerConfig{}, testLogger(),
		WithIndexerEmbedObserver(func(n int) { counts = append(counts, n) }))

	clauses := []domain.Clause{
		{ID: "cl-1", ContractID: "c-1", NormalizedSummary: "fixed price"},
		{ID: "cl-2", ContractID: "c-1", NormalizedSummary: "auto renewal"},
	}
	if _, err := indexer.EmbedClauses(context.Background(), "c-1", clauses); err != nil {
		t.Fatalf("EmbedClauses() error = %v", err)
	}
	if len(counts) != 1 || counts[0] != 2 {
		t.Fatalf("expected one observation of 2 embedded clauses, got %v", counts)
	}

	// Nothing left to embed: the observer must stay silent.
	if _, err := indexer.EmbedClauses(context.Background(), "c-1", clauses); err != nil {
		t.Fatalf("EmbedClauses() error = %v", err)
	}
	if len(counts) != 1 {
		t.Fatalf("expected no observation on idempotent re-run, got %v", counts)
	}
}
