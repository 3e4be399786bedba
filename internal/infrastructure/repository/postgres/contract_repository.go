package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/contraq/leakage-engine/internal/core/domain"
)

// ContractRepository resolves contract-level metadata. Contract rows are
// written by the intake system; the engine only reads them.
type ContractRepository struct {
	db *sql.DB
}

func NewContractRepository(db *sql.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

func (r *ContractRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083103)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS contracts (
	id TEXT PRIMARY KEY,
	name TEXT,
	counterparty TEXT,
	contract_type TEXT,
	contract_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	currency TEXT,
	duration_months INTEGER NOT NULL DEFAULT 0
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ContractRepository) ContractMetadata(ctx context.Context, contractID string) (domain.ContractMetadata, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, counterparty, contract_type, contract_value, currency, duration_months
FROM contracts
WHERE id = $1
`, contractID)

	var (
		meta         domain.ContractMetadata
		name         sql.NullString
		counterparty sql.NullString
		contractType sql.NullString
		currency     sql.NullString
	)
	err := row.Scan(&meta.ContractID, &name, &counterparty, &contractType, &meta.ContractValue, &currency, &meta.DurationMonths)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ContractMetadata{}, domain.WrapError(domain.ErrNotFound, "contract.metadata",
				fmt.Errorf("contract %s", contractID))
		}
		return domain.ContractMetadata{}, fmt.Errorf("query contract: %w", err)
	}
	meta.ContractName = name.String
	meta.Counterparty = counterparty.String
	meta.ContractType = contractType.String
	meta.Currency = currency.String
	return meta, nil
}
