// Package migrations embeds the PostgreSQL schema files applied at
// startup when the postgres config store is selected.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
