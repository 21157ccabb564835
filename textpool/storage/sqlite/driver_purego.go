//go:build !sqlite_cgo

package sqlite

// Pure Go driver, no C toolchain required:
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by this build.
	DriverName = "sqlite"

	BuildMode = "purego"
)
