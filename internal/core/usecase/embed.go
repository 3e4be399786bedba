package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/contraq/leakage-engine/internal/core/domain"
	"github.com/contraq/leakage-engine/internal/core/ports"
)

// maxEmbedChars bounds the text sent per clause. Summaries are the embedding
// target precisely because they are a stable, constant-size surface.
const maxEmbedChars = 8000

// IndexerConfig tunes embedding batching and concurrency.
type IndexerConfig struct {
	BatchSize         int
	Concurrency       int
	RequestsPerSecond float64
	BatchTimeout      time.Duration
}

func (c IndexerConfig) normalize() IndexerConfig {
	out := c
	if out.BatchSize <= 0 {
		out.BatchSize = 64
	}
	if out.Concurrency <= 0 {
		out.Concurrency = 4
	}
	if out.RequestsPerSecond <= 0 {
		out.RequestsPerSecond = 5
	}
	if out.BatchTimeout <= 0 {
		out.BatchTimeout = 30 * time.Second
	}
	return out
}

// Indexer embeds clause summaries and upserts them into the vector index.
// EmbedClauses is idempotent: clauses already carrying an embedding of the
// current model's dimensionality are skipped, so repeated calls are cheap.
type Indexer struct {
	embedder   ports.Embedder
	index      ports.VectorIndex
	repo       ports.ClauseRepository // optional; nil disables persistence
	limiter    *rate.Limiter
	cfg        IndexerConfig
	logger     *slog.Logger
	onEmbedded func(count int)
}

type IndexerOption func(*Indexer)

// WithIndexerEmbedObserver reports how many clauses each call newly
// embedded, typically into a metrics counter.
func WithIndexerEmbedObserver(fn func(count int)) IndexerOption {
	return func(ix *Indexer) { ix.onEmbedded = fn }
}

func NewIndexer(embedder ports.Embedder, index ports.VectorIndex, repo ports.ClauseRepository, cfg IndexerConfig, logger *slog.Logger, opts ...IndexerOption) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.normalize()
	ix := &Indexer{
		embedder: embedder,
		index:    index,
		repo:     repo,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cfg:      cfg,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// EmbedClauses generates embeddings for clauses that lack one and indexes
// every clause vector for the contract. It mutates the passed clauses in
// place so callers observe the embeddings. Returns the number of clauses
// newly embedded.
func (ix *Indexer) EmbedClauses(ctx context.Context, contractID string, clauses []domain.Clause) (int, error) {
	dims := ix.embedder.Dimensions()

	var pending []int
	for i := range clauses {
		if len(clauses[i].Embedding) == dims {
			continue
		}
		pending = append(pending, i)
	}

	if len(pending) > 0 {
		if err := ix.embedPending(ctx, clauses, pending); err != nil {
			return 0, err
		}
	}

	// Upsert sequentially in clause order so the index's insertion-order
	// tie-break stays deterministic.
	for i := range clauses {
		if len(clauses[i].Embedding) != dims {
			continue
		}
		meta := map[string]string{
			"clause_type": string(clauses[i].ClauseType),
			"section":     clauses[i].SectionNumber,
		}
		if err := ix.index.Upsert(ctx, contractID, clauses[i].ID, clauses[i].Embedding, meta); err != nil {
			return 0, fmt.Errorf("index clause %s: %w", clauses[i].ID, err)
		}
	}

	ix.logger.Info("clauses_indexed",
		"contract_id", contractID,
		"total", len(clauses),
		"embedded", len(pending),
	)
	if ix.onEmbedded != nil && len(pending) > 0 {
		ix.onEmbedded(len(pending))
	}
	return len(pending), nil
}

// embedPending runs batched embedding calls with bounded concurrency and a
// shared rate limiter; exceeding the limit waits rather than failing.
func (ix *Indexer) embedPending(ctx context.Context, clauses []domain.Clause, pending []int) error {
	type batch struct {
		indexes []int
	}

	var batches []batch
	for start := 0; start < len(pending); start += ix.cfg.BatchSize {
		end := start + ix.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batches = append(batches, batch{indexes: pending[start:end]})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Concurrency)

	for _, b := range batches {
		b := b
		g.Go(func() error {
			if err := ix.limiter.Wait(gctx); err != nil {
				return err
			}

			texts := make([]string, len(b.indexes))
			for j, idx := range b.indexes {
				texts[j] = embedText(clauses[idx])
			}

			callCtx, cancel := context.WithTimeout(gctx, ix.cfg.BatchTimeout)
			defer cancel()

			vectors, err := ix.embedder.Embed(callCtx, texts)
			if err != nil {
				return domain.WrapError(domain.ErrEmbedding, "embed clause batch", err)
			}
			if len(vectors) != len(texts) {
				return domain.WrapError(domain.ErrEmbedding, "embed clause batch",
					fmt.Errorf("vectors/texts mismatch: %d/%d", len(vectors), len(texts)))
			}

			for j, idx := range b.indexes {
				clauses[idx].Embedding = vectors[j]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if ix.repo != nil {
		for _, idx := range pending {
			c := clauses[idx]
			if err := ix.repo.SaveEmbedding(ctx, c.ContractID, c.ID, c.Embedding); err != nil {
				// The index already holds the vector; persistence is a cache.
				ix.logger.Warn("embedding_persist_failed", "clause_id", c.ID, "error", err)
			}
		}
	}
	return nil
}

func embedText(c domain.Clause) string {
	text := c.NormalizedSummary
	if text == "" {
		text = c.OriginalText
	}
	if len(text) > maxEmbedChars {
		text = text[:maxEmbedChars]
	}
	return text
}
