package migrations

import "embed"

// FS holds the goose SQL migrations of the rendition ledger
//
//go:embed *.sql
var FS embed.FS
