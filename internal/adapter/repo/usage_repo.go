package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"rendersync/internal/domain"
	"rendersync/internal/infra"
	"rendersync/internal/sqlinline"
)

// UsageRepositoryPG implements domain.UsageRepository.
type UsageRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewUsageRepository(sql infra.SQLExecutor) *UsageRepositoryPG {
	return &UsageRepositoryPG{sql: sql}
}

// Insert writes a usage event, at most once per (job_id, meter).
func (r *UsageRepositoryPG) Insert(ctx context.Context, event *domain.UsageEvent) (bool, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QInsertUsageEvent,
		event.ID,
		event.JobID,
		event.UserID,
		event.Meter,
		event.Quantity,
		event.Engine,
		event.Provider,
	)
	if err != nil {
		return false, fmt.Errorf("insert usage event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

var _ domain.UsageRepository = (*UsageRepositoryPG)(nil)
