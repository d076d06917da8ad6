// Package ledger loads balance ledgers from CSV and defines the ports the
// storage backends implement.
package ledger

import (
	"context"
	"errors"
	"time"

	"patrimonio/internal/core"
)

var (
	// ErrNoSnapshot is returned when no statistics snapshot was saved yet.
	ErrNoSnapshot = errors.New("no statistics snapshot")
	// ErrImportNotFound is returned for an import that was pruned or superseded.
	ErrImportNotFound = errors.New("import not found")
)

// Import describes one stored ledger upload. The most recent import is the
// current ledger.
type Import struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot is a statistics table computed for an import and persisted by the
// snapshot worker. Payload is the JSON encoded table.
type Snapshot struct {
	ID         int64     `json:"id"`
	ImportID   int64     `json:"import_id"`
	ComputedAt time.Time `json:"computed_at"`
	Rows       int       `json:"rows"`
	Payload    []byte    `json:"-"`
}

// Ports for outbound adapters.
type (
	Reader interface {
		// LoadLedger returns the records of the current import, ascending by date.
		// It returns core.ErrEmptyLedger when nothing was imported yet.
		LoadLedger(ctx context.Context) (core.Ledger, error)
	}

	Writer interface {
		// ReplaceLedger stores records as a new import that supersedes the previous one.
		ReplaceLedger(ctx context.Context, source string, records core.Ledger) (Import, error)
	}

	ImportReader interface {
		// LatestImport returns the current import, or core.ErrEmptyLedger.
		LatestImport(ctx context.Context) (Import, error)
		// LoadImport returns the records of one import, or ErrImportNotFound
		// when the store no longer holds it.
		LoadImport(ctx context.Context, importID int64) (core.Ledger, error)
	}

	SnapshotStore interface {
		SaveSnapshot(ctx context.Context, s Snapshot) (int64, error)
		// LatestSnapshot returns ErrNoSnapshot when none was saved.
		LatestSnapshot(ctx context.Context) (Snapshot, error)
	}

	// Store is everything the services need from a backend.
	Store interface {
		Reader
		Writer
		ImportReader
		SnapshotStore
	}
)
