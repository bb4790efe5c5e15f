package db

import "database/sql"

// DB wraps *sql.DB so stores depend on a package-local type.
type DB struct {
	*sql.DB
}
