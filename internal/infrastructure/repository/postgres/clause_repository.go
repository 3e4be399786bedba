package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/contraq/leakage-engine/internal/core/domain"
)

// ClauseRepository reads the clause table written by the upstream
// extraction pipeline. The engine only adds embeddings to it.
type ClauseRepository struct {
	db *sql.DB
}

func NewClauseRepository(db *sql.DB) *ClauseRepository {
	return &ClauseRepository{db: db}
}

func (r *ClauseRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083102)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS contract_clauses (
	id TEXT PRIMARY KEY,
	contract_id TEXT NOT NULL,
	clause_type TEXT NOT NULL,
	section_number TEXT,
	original_text TEXT NOT NULL,
	normalized_summary TEXT NOT NULL,
	risk_signals JSONB NOT NULL DEFAULT '[]'::jsonb,
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	embedding JSONB
);

CREATE INDEX IF NOT EXISTS idx_contract_clauses_contract ON contract_clauses(contract_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ClauseRepository) ListByContract(ctx context.Context, contractID string) ([]domain.Clause, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, contract_id, clause_type, section_number, original_text, normalized_summary,
	risk_signals, confidence_score, embedding
FROM contract_clauses
WHERE contract_id = $1
ORDER BY section_number, id
`, contractID)
	if err != nil {
		return nil, fmt.Errorf("query clauses: %w", err)
	}
	defer rows.Close()

	var out []domain.Clause
	for rows.Next() {
		var (
			c            domain.Clause
			clauseType   string
			section      sql.NullString
			signalsRaw   []byte
			embeddingRaw []byte
		)
		if err := rows.Scan(
			&c.ID, &c.ContractID, &clauseType, &section, &c.OriginalText, &c.NormalizedSummary,
			&signalsRaw, &c.ConfidenceScore, &embeddingRaw,
		); err != nil {
			return nil, fmt.Errorf("scan clause: %w", err)
		}
		c.ClauseType = domain.ClauseType(clauseType)
		c.SectionNumber = section.String
		if len(signalsRaw) > 0 {
			if err := json.Unmarshal(signalsRaw, &c.RiskSignals); err != nil {
				return nil, fmt.Errorf("unmarshal risk signals for %s: %w", c.ID, err)
			}
		}
		if len(embeddingRaw) > 0 {
			if err := json.Unmarshal(embeddingRaw, &c.Embedding); err != nil {
				return nil, fmt.Errorf("unmarshal embedding for %s: %w", c.ID, err)
			}
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clauses: %w", err)
	}
	return out, nil
}

func (r *ClauseRepository) SaveEmbedding(ctx context.Context, contractID, clauseID string, embedding []float32) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE contract_clauses
SET embedding = $1
WHERE contract_id = $2 AND id = $3
`, raw, contractID, clauseID)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "clause.save_embedding", fmt.Errorf("clause %s", clauseID))
	}
	return nil
}
