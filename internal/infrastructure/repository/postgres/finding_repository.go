package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/contraq/leakage-engine/internal/core/domain"
)

type FindingRepository struct {
	db *sql.DB
}

func NewFindingRepository(db *sql.DB) *FindingRepository {
	return &FindingRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *FindingRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS leakage_findings (
	id TEXT PRIMARY KEY,
	contract_id TEXT NOT NULL,
	category TEXT NOT NULL,
	severity TEXT NOT NULL,
	risk_type TEXT NOT NULL,
	explanation TEXT NOT NULL,
	recommended_action TEXT,
	affected_clause_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	detection_method TEXT NOT NULL,
	rule_id TEXT,
	estimated_impact JSONB,
	assumptions JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leakage_findings_contract ON leakage_findings(contract_id);
CREATE INDEX IF NOT EXISTS idx_leakage_findings_severity ON leakage_findings(severity);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// BulkCreate inserts all findings of one detection run in a single
// transaction; partial writes would misreport a contract's exposure.
func (r *FindingRepository) BulkCreate(ctx context.Context, findings []domain.Finding) (int, error) {
	if len(findings) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin findings tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	const query = `
INSERT INTO leakage_findings (
	id, contract_id, category, severity, risk_type, explanation, recommended_action,
	affected_clause_ids, confidence_score, detection_method, rule_id, estimated_impact, assumptions, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`
	for _, f := range findings {
		clauseIDs, err := json.Marshal(f.AffectedClauseIDs)
		if err != nil {
			return 0, fmt.Errorf("marshal clause ids: %w", err)
		}
		assumptions, err := json.Marshal(f.Assumptions)
		if err != nil {
			return 0, fmt.Errorf("marshal assumptions: %w", err)
		}
		var impact any
		if f.EstimatedImpact != nil {
			raw, err := json.Marshal(f.EstimatedImpact)
			if err != nil {
				return 0, fmt.Errorf("marshal impact: %w", err)
			}
			impact = raw
		}

		if _, err := tx.ExecContext(ctx, query,
			f.ID, f.ContractID, string(f.Category), string(f.Severity), f.RiskType, f.Explanation,
			f.RecommendedAction, clauseIDs, f.ConfidenceScore, string(f.DetectionMethod),
			nullableString(f.RuleID), impact, assumptions, f.CreatedAt,
		); err != nil {
			return 0, fmt.Errorf("insert finding %s: %w", f.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit findings tx: %w", err)
	}
	return len(findings), nil
}

func (r *FindingRepository) ListByContract(ctx context.Context, contractID string) ([]domain.Finding, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, contract_id, category, severity, risk_type, explanation, recommended_action,
	affected_clause_ids, confidence_score, detection_method, rule_id, estimated_impact, assumptions, created_at
FROM leakage_findings
WHERE contract_id = $1
ORDER BY created_at, id
`, contractID)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var out []domain.Finding
	for rows.Next() {
		var (
			f              domain.Finding
			category       string
			severity       string
			method         string
			action         sql.NullString
			ruleID         sql.NullString
			clauseIDsRaw   []byte
			impactRaw      []byte
			assumptionsRaw []byte
		)
		if err := rows.Scan(
			&f.ID, &f.ContractID, &category, &severity, &f.RiskType, &f.Explanation, &action,
			&clauseIDsRaw, &f.ConfidenceScore, &method, &ruleID, &impactRaw, &assumptionsRaw, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		f.Category = domain.LeakageCategory(category)
		f.Severity = domain.Severity(severity)
		f.DetectionMethod = domain.DetectionMethod(method)
		f.RecommendedAction = action.String
		f.RuleID = ruleID.String
		if err := json.Unmarshal(clauseIDsRaw, &f.AffectedClauseIDs); err != nil {
			return nil, fmt.Errorf("unmarshal clause ids for %s: %w", f.ID, err)
		}
		if len(assumptionsRaw) > 0 {
			if err := json.Unmarshal(assumptionsRaw, &f.Assumptions); err != nil {
				return nil, fmt.Errorf("unmarshal assumptions for %s: %w", f.ID, err)
			}
		}
		if len(impactRaw) > 0 {
			var impact domain.EstimatedImpact
			if err := json.Unmarshal(impactRaw, &impact); err != nil {
				return nil, fmt.Errorf("unmarshal impact for %s: %w", f.ID, err)
			}
			f.EstimatedImpact = &impact
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate findings: %w", err)
	}
	return out, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
