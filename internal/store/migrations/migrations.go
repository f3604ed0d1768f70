// Package migrations embeds the goose migration set applied by
// internal/store on startup.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
