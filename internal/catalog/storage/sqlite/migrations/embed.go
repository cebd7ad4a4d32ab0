package migrations

import "embed"

// FS contains embedded SQLite migrations for catalog storage.
//
//go:embed *.sql
var FS embed.FS
