// Package migrations embeds the goose SQL migrations for the SQLite-backed
// storage partitions.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
