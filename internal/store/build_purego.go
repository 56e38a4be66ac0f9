//go:build !cgo_sqlite

package store

// Built by default. The pure Go driver needs no C compiler and ships
// FTS5.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver name for SQLite.
	DriverName = "sqlite"

	// BuildMode describes the SQLite build configuration.
	BuildMode = "purego"
)
