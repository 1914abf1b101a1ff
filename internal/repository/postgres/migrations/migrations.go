// Package migrations embeds the catalog mirror schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
