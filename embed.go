// Package rendersync holds assets embedded into the service binaries.
package rendersync

import "embed"

// MigrationsFS carries the schema migrations applied at startup.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
