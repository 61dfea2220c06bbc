// Package sqlite provides a unified SQLite interface supporting both
// pure Go (modernc.org/sqlite) and CGO (mattn/go-sqlite3) implementations.
//
// Build modes:
//   - Default (CGO_ENABLED=0): Uses pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): Uses mattn/go-sqlite3
//
// Use Open() instead of sql.Open() to ensure the correct driver is used.
// Databases are opened with a single connection: the undo store is a
// single-writer workload and per-connection pragmas then hold for every
// statement.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// BusyTimeoutMillis is how long a statement waits on a locked database.
const BusyTimeoutMillis = 5000

// DriverName returns the SQL driver name to use.
func DriverName() string {
	return driverName
}

// DriverType returns a string identifying the underlying implementation.
// Returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database file using the appropriate driver.
func Open(path string) (*sql.DB, error) {
	return open(path)
}

// OpenMemory opens a private in-memory database.
func OpenMemory() (*sql.DB, error) {
	return open(":memory:")
}

// OpenReadOnly opens an existing SQLite database in read-only mode.
func OpenReadOnly(path string) (*sql.DB, error) {
	return open("file:" + path + "?mode=ro")
}

func open(dsn string) (*sql.DB, error) {
	db, err := sql.Open(DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	pragma := fmt.Sprintf("PRAGMA busy_timeout = %d", BusyTimeoutMillis)
	if _, err := db.ExecContext(ctx, pragma); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: configure: %w", err)
	}
	return db, nil
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: DriverName(),
		DriverType: DriverType(),
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
