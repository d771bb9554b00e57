// Package migrations embeds the SQL migration files for the offline store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
