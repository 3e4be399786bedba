package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/contraq/leakage-engine/internal/core/domain"
	"github.com/contraq/leakage-engine/internal/core/ports"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeEmbedder returns canned vectors by text, or a constant fallback.
type fakeEmbedder struct {
	mu       sync.Mutex
	dims     int
	vectors  map[string][]float32
	embedErr error
	queryErr error
	batches  [][]string
}

func (f *fakeEmbedder) Dimensions() int {
	if f.dims > 0 {
		return f.dims
	}
	return 2
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	out := make([]float32, f.Dimensions())
	for i := range out {
		out[i] = 0.5
	}
	return out
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.vectorFor(text), nil
}

// fakeIndex records upserts and replays canned search results in call order.
type fakeIndex struct {
	mu        sync.Mutex
	upserts   []string
	hits      [][]ports.SearchHit
	searches  int
	upsertErr error
	searchErr error
}

func (f *fakeIndex) Upsert(_ context.Context, _, clauseID string, _ []float32, _ map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, clauseID)
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, _ string, _ int) ([]ports.SearchHit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	defer func() { f.searches++ }()
	if f.searches < len(f.hits) {
		return f.hits[f.searches], nil
	}
	return nil, nil
}

// fakeGenerator replays canned responses; an entry in errs takes precedence
// over the response at the same position.
type fakeGenerator struct {
	responses []string
	errs      []error
	prompts   []string
	calls     int
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, _ string, userPrompt string) (string, error) {
	i := f.calls
	f.calls++
	f.prompts = append(f.prompts, userPrompt)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", nil
}

type fakeDetector struct {
	findings []domain.Finding
	err      error
}

func (f *fakeDetector) Detect(context.Context, domain.ContractMetadata, []domain.Clause) ([]domain.Finding, error) {
	return f.findings, f.err
}

type fakeClauseRepo struct {
	clauses []domain.Clause
	listErr error
	saved   map[string][]float32
	saveErr error
}

func (f *fakeClauseRepo) ListByContract(context.Context, string) ([]domain.Clause, error) {
	return f.clauses, f.listErr
}

func (f *fakeClauseRepo) SaveEmbedding(_ context.Context, _, clauseID string, embedding []float32) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.saved == nil {
		f.saved = make(map[string][]float32)
	}
	f.saved[clauseID] = embedding
	return nil
}

type fakeFindingRepo struct {
	created   []domain.Finding
	createErr error
}

func (f *fakeFindingRepo) BulkCreate(_ context.Context, findings []domain.Finding) (int, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.created = append(f.created, findings...)
	return len(findings), nil
}

func (f *fakeFindingRepo) ListByContract(context.Context, string) ([]domain.Finding, error) {
	return f.created, nil
}

type fakeMetadata struct {
	meta domain.ContractMetadata
	err  error
}

func (f *fakeMetadata) ContractMetadata(context.Context, string) (domain.ContractMetadata, error) {
	return f.meta, f.err
}
