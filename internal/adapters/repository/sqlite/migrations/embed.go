package migrations

import "embed"

// FS contains embedded SQLite migrations for match and rating storage.
//
//go:embed *.sql
var FS embed.FS
