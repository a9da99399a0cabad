package migrations

import "embed"

// FS holds the SQL migrations, one directory per database driver.
//
//go:embed mysql/*.sql sqlite3/*.sql
var FS embed.FS
