package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"rendersync/internal/domain"
	"rendersync/internal/infra"
	"rendersync/internal/sqlinline"
)

// WalletRepositoryPG implements domain.WalletRepository as an append-only
// ledger. Idempotence comes from the (job_id, entry_type) unique index.
type WalletRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewWalletRepository(sql infra.SQLExecutor) *WalletRepositoryPG {
	return &WalletRepositoryPG{sql: sql}
}

// Append inserts a ledger entry, reporting false when the same job already
// has an entry of this type.
func (r *WalletRepositoryPG) Append(ctx context.Context, entry *domain.WalletEntry) (bool, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QInsertWalletEntry,
		entry.ID,
		entry.UserID,
		entry.JobID,
		entry.EntryType,
		entry.AmountCents,
	)
	if err != nil {
		return false, fmt.Errorf("insert wallet entry: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Balance sums the ledger for a user.
func (r *WalletRepositoryPG) Balance(ctx context.Context, userID string) (int, error) {
	var balance int
	if err := r.sql.QueryRow(ctx, sqlinline.QSelectWalletBalance, userID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("wallet balance: %w", err)
	}
	return balance, nil
}

var _ domain.WalletRepository = (*WalletRepositoryPG)(nil)
