// Package migrations holds the report sink schema. The SQL files are built
// into the binaries so that cmd/migrate runs without a checkout.
package migrations

import "embed"

// FS contains every NNNNNN_name.{up,down}.sql file of this directory
//
//go:embed *.sql
var FS embed.FS
