package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"patrimonio/internal/core"
	"patrimonio/internal/ledger"
	"patrimonio/internal/log"
)

// Publisher announces new imports to the snapshot worker.
type Publisher interface {
	PublishLedgerImported(ctx context.Context, importID int64, records int, source string) error
}

// LedgerService orchestrates ledger imports across the store and AMQP.
type LedgerService struct {
	store     ledger.Store
	publisher Publisher
	log       *log.Logger
	events    *log.StructuredLogger
}

// NewLedgerService wires the service. publisher may be nil when no broker is
// configured.
func NewLedgerService(store ledger.Store, publisher Publisher, logger *log.Logger) *LedgerService {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerService{
		store:     store,
		publisher: publisher,
		log:       logger.WithComponent(log.ComponentLedger),
		events:    log.NewStructuredLogger(logger),
	}
}

// Import parses a CSV ledger and stores it as the new current ledger. A file
// with a header but no records is rejected.
func (s *LedgerService) Import(ctx context.Context, source string, r io.Reader) (ledger.Import, error) {
	records, err := ledger.ParseCSV(r)
	if err != nil {
		return ledger.Import{}, err
	}
	if len(records) == 0 {
		return ledger.Import{}, &core.MalformedInputError{Line: 2, Err: core.ErrEmptyLedger}
	}

	imp, err := s.store.ReplaceLedger(ctx, source, records)
	if err != nil {
		s.events.LogError(ctx, "Failed to store ledger", err, log.ComponentLedger, log.OpImport,
			log.NewFields().WithImport(0, len(records), source))
		return ledger.Import{}, fmt.Errorf("store ledger: %w", err)
	}
	s.events.LogLedgerImported(ctx, imp.ID, imp.Records, imp.Source)

	// The import is saved; a failed publish only delays the snapshot.
	if err := s.publish(ctx, imp); err != nil {
		s.log.ErrorContext(ctx, "Failed to publish ledger imported message",
			log.FieldImportID, imp.ID, log.FieldError, err)
	}
	return imp, nil
}

func (s *LedgerService) publish(ctx context.Context, imp ledger.Import) error {
	if s.publisher == nil {
		s.log.DebugContext(ctx, "AMQP client not available, skipping ledger imported message")
		return nil
	}
	return s.publisher.PublishLedgerImported(ctx, imp.ID, imp.Records, imp.Source)
}

// Ledger returns the current ledger.
func (s *LedgerService) Ledger(ctx context.Context) (core.Ledger, error) {
	return s.store.LoadLedger(ctx)
}

// LatestImport returns the metadata of the current ledger.
func (s *LedgerService) LatestImport(ctx context.Context) (ledger.Import, error) {
	return s.store.LatestImport(ctx)
}

// LatestSnapshot returns the last statistics snapshot saved by the worker.
func (s *LedgerService) LatestSnapshot(ctx context.Context) (ledger.Snapshot, error) {
	return s.store.LatestSnapshot(ctx)
}

// IsNotFound reports errors that mean "nothing to show yet".
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrEmptyLedger) ||
		errors.Is(err, ledger.ErrNoSnapshot) ||
		errors.Is(err, ErrDateNotInLedger)
}
