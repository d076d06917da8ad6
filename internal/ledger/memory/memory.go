// Package memory is an in-process ledger store used by the memory backend
// and by tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"patrimonio/internal/core"
	"patrimonio/internal/ledger"
)

type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	imports   []ledger.Import
	current   core.Ledger
	snapshots []ledger.Snapshot
}

var _ ledger.Store = (*Store)(nil)

func New() *Store {
	return &Store{now: time.Now}
}

// NewFromLedger returns a store whose current import holds l.
func NewFromLedger(source string, l core.Ledger) *Store {
	s := New()
	_, _ = s.ReplaceLedger(context.Background(), source, l)
	return s
}

// ReplaceLedger stores a copy of records as the new current import.
func (s *Store) ReplaceLedger(_ context.Context, source string, records core.Ledger) (ledger.Import, error) {
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return ledger.Import{}, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	imp := ledger.Import{
		ID:        int64(len(s.imports) + 1),
		Source:    source,
		Records:   len(records),
		CreatedAt: s.now().UTC(),
	}
	s.imports = append(s.imports, imp)
	s.current = core.NewLedger(records)
	return imp, nil
}

func (s *Store) LoadLedger(_ context.Context) (core.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.imports) == 0 {
		return nil, core.ErrEmptyLedger
	}
	return append(core.Ledger(nil), s.current...), nil
}

func (s *Store) LatestImport(_ context.Context) (ledger.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.imports) == 0 {
		return ledger.Import{}, core.ErrEmptyLedger
	}
	return s.imports[len(s.imports)-1], nil
}

// LoadImport only resolves the current import; older ones are not retained.
func (s *Store) LoadImport(_ context.Context, importID int64) (core.Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.imports) == 0 {
		return nil, core.ErrEmptyLedger
	}
	if s.imports[len(s.imports)-1].ID != importID {
		return nil, fmt.Errorf("%w: %d", ledger.ErrImportNotFound, importID)
	}
	return append(core.Ledger(nil), s.current...), nil
}

func (s *Store) SaveSnapshot(_ context.Context, snap ledger.Snapshot) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.ID = int64(len(s.snapshots) + 1)
	snap.Payload = append([]byte(nil), snap.Payload...)
	s.snapshots = append(s.snapshots, snap)
	return snap.ID, nil
}

func (s *Store) LatestSnapshot(_ context.Context) (ledger.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.snapshots) == 0 {
		return ledger.Snapshot{}, ledger.ErrNoSnapshot
	}
	return s.snapshots[len(s.snapshots)-1], nil
}

func (s *Store) Close() error { return nil }
