// Package migrations embeds the PostgreSQL schema for the execution store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
