// Package pgmigrations embeds the SQL migrations for the Postgres snapshot store.
package pgmigrations

import "embed"

// FS holds the golang-migrate migration files.
//
//go:embed *.sql
var FS embed.FS
