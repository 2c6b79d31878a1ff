// Package migrations embeds the allocation schema for every supported dialect.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
