// Package sqlstore is the durable, Postgres-backed Workflow Store,
// grounded on kubernaut's storage stack — the richest persistence layer
// in the example pack: github.com/jackc/pgx/v5 as the driver,
// github.com/jmoiron/sqlx for struct scanning, and
// github.com/pressly/goose/v3 for schema migrations.
package sqlstore

import (
	"embed"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS
