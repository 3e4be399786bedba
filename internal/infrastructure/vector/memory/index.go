// Package memory provides an in-process vector index. The analyze CLI uses
// it so a single contract can be scored without a running Qdrant instance.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/contraq/leakage-engine/internal/core/ports"
)

type entry struct {
	clauseID string
	vector   []float32
	order    int
}

// Index is a brute-force cosine index keyed by contract id.
type Index struct {
	mu      sync.RWMutex
	entries map[string][]entry
	nextOrd int
}

var _ ports.VectorIndex = (*Index)(nil)

func New() *Index {
	return &Index{entries: make(map[string][]entry)}
}

func (ix *Index) Upsert(_ context.Context, contractID, clauseID string, vector []float32, _ map[string]string) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty vector for clause %s", clauseID)
	}
	stored := make([]float32, len(vector))
	copy(stored, vector)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	for i, e := range ix.entries[contractID] {
		if e.clauseID == clauseID {
			ix.entries[contractID][i].vector = stored
			return nil
		}
	}
	ix.entries[contractID] = append(ix.entries[contractID], entry{
		clauseID: clauseID,
		vector:   stored,
		order:    ix.nextOrd,
	})
	ix.nextOrd++
	return nil
}

func (ix *Index) Search(_ context.Context, queryVector []float32, contractID string, topK int) ([]ports.SearchHit, error) {
	if topK <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	stored := ix.entries[contractID]
	scored := make([]struct {
		hit   ports.SearchHit
		order int
	}, 0, len(stored))
	for _, e := range stored {
		score, err := cosine(queryVector, e.vector)
		if err != nil {
			ix.mu.RUnlock()
			return nil, err
		}
		scored = append(scored, struct {
			hit   ports.SearchHit
			order int
		}{ports.SearchHit{ClauseID: e.clauseID, Score: score}, e.order})
	}
	ix.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].hit.Score != scored[j].hit.Score {
			return scored[i].hit.Score > scored[j].hit.Score
		}
		return scored[i].order < scored[j].order
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	out := make([]ports.SearchHit, 0, len(scored))
	for _, s := range scored {
		out = append(out, s.hit)
	}
	return out, nil
}

func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimensions differ: %d vs %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
