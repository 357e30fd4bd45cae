// Package migrations embeds the PostgreSQL schema of the queue store.
// Apply it with pg.MigrateFS.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
