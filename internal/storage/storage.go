// Package storage provides persistence for debate runs.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alienxp03/tradedebate/internal/core"
)

// Storage defines the interface for run persistence.
type Storage interface {
	// Initialize sets up the storage (creates tables, etc.)
	Initialize() error

	// Close closes the storage connection.
	Close() error

	// Run operations
	CreateRun(run *core.Run) error
	GetRun(id string) (*core.Run, error)
	UpdateRun(run *core.Run) error
	DeleteRun(id string) error
	ListRuns(limit, offset int) ([]*core.RunSummary, error)

	// Message operations
	AddMessage(msg *core.StoredMessage) error
	GetMessages(runID string) ([]*core.StoredMessage, error)
	GetLatestMessage(runID string) (*core.StoredMessage, error)
}

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Open connects to the configured database and creates the schema.
func Open(driver, dsn string) (Storage, error) {
	var (
		store *SQLStorage
		err   error
	)
	switch driver {
	case "", DriverSQLite, "sqlite":
		if dsn == "" {
			dsn = DefaultDBPath()
		}
		store, err = NewSQLiteStorage(dsn)
	case DriverPostgres, "postgresql":
		store, err = NewPostgresStorage(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "tradedebate.db"
	}
	return filepath.Join(home, ".tradedebate", "tradedebate.db")
}
