// Package migrations embeds the compositor's SQL migrations into the binary.
package migrations

import "embed"

// FS holds the *.sql migration files at its root.
//
//go:embed *.sql
var FS embed.FS
