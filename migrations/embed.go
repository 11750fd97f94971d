// Package migrations embeds the SQL schema migrations of the catalog store
package migrations

import "embed"

// FS holds the *.sql migration files
//
//go:embed *.sql
var FS embed.FS
