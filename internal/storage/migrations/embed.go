// Package migrations holds the SQLite schema of the local practice store.
package migrations

import "embed"

// FS embeds the numbered SQL migrations, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
