// Package migrations embeds the SQL migrations so binaries and tests can
// apply them without a migrations directory on disk.
package migrations

import "embed"

// FS holds every *.sql migration in this directory
//
//go:embed *.sql
var FS embed.FS
