// Package assets provides access to embedded static files such as SQL migrations.
package assets

import (
	"embed"
	"io/fs"
)

// MigrationsDir is the embedded directory holding registry schema migrations.
const MigrationsDir = "migrations"

//go:embed migrations/*.sql
var embedFS embed.FS

// FS returns the embedded assets file system.
func FS() fs.FS {
	return embedFS
}
