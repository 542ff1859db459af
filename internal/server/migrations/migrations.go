// Package migrations embeds the SQL migration files applied by goose at
// startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
