package database

import "embed"

// MigrationFS embeds the SQL migrations so cmd/migrate works from a single
// binary.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
