package repo

import (
	"context"

	"rendersync/internal/cache"
	"rendersync/internal/infra"
	"rendersync/internal/sqlinline"
)

// NewAdminLookup returns the database-backed permission check consumed by the
// admin cache.
func NewAdminLookup(db infra.SQLExecutor) cache.Lookup {
	return func(ctx context.Context, principal string) (bool, error) {
		var allowed bool
		if err := db.QueryRow(ctx, sqlinline.QSelectAdminPrincipal, principal).Scan(&allowed); err != nil {
			return false, err
		}
		return allowed, nil
	}
}
