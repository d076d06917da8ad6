// Package worker recomputes statistics snapshots after ledger imports.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"patrimonio/internal/amqp"
	"patrimonio/internal/analytics"
	"patrimonio/internal/core"
	"patrimonio/internal/ledger"
	"patrimonio/internal/log"
)

// Pruner is implemented by stores that can drop superseded imports.
type Pruner interface {
	PruneImports(ctx context.Context, keep int) (int64, error)
}

// SnapshotWorker computes the statistics table of the current import and
// saves it as a snapshot.
type SnapshotWorker struct {
	store ledger.Store
	now   func() time.Time
	log   *log.Logger
}

func NewSnapshotWorker(store ledger.Store, logger *log.Logger) *SnapshotWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SnapshotWorker{store: store, now: time.Now, log: logger.WithComponent(log.ComponentWorker)}
}

// HandleLedgerImported processes one AMQP message. Messages for an import
// that is no longer current are acknowledged without work.
func (w *SnapshotWorker) HandleLedgerImported(ctx context.Context, msg *amqp.LedgerImportedMessage) error {
	w.log.InfoContext(ctx, "Processing ledger imported message",
		log.FieldImportID, msg.ImportID,
		log.FieldRecords, msg.Records)

	current, err := w.store.LatestImport(ctx)
	if err != nil {
		return fmt.Errorf("get latest import: %w", err)
	}
	if current.ID != msg.ImportID {
		w.log.DebugContext(ctx, "Skipping superseded import",
			log.FieldImportID, msg.ImportID, "current_import_id", current.ID)
		return nil
	}
	_, err = w.snapshot(ctx, current)
	return err
}

// ProcessPending snapshots the current import when the latest snapshot
// belongs to an older one. It covers lost AMQP messages and backends
// without a broker. It reports whether a snapshot was saved.
func (w *SnapshotWorker) ProcessPending(ctx context.Context) (bool, error) {
	current, err := w.store.LatestImport(ctx)
	if errors.Is(err, core.ErrEmptyLedger) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get latest import: %w", err)
	}

	snap, err := w.store.LatestSnapshot(ctx)
	switch {
	case errors.Is(err, ledger.ErrNoSnapshot):
	case err != nil:
		return false, fmt.Errorf("get latest snapshot: %w", err)
	case snap.ImportID == current.ID:
		return false, nil
	}

	id, err := w.snapshot(ctx, current)
	if err != nil {
		return false, err
	}
	return id != 0, nil
}

// snapshot computes statistics for the records of imp itself. It returns 0
// when imp was superseded before its records could be read.
func (w *SnapshotWorker) snapshot(ctx context.Context, imp ledger.Import) (int64, error) {
	l, err := w.store.LoadImport(ctx, imp.ID)
	if errors.Is(err, ledger.ErrImportNotFound) {
		w.log.DebugContext(ctx, "Skipping superseded import", log.FieldImportID, imp.ID)
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load ledger: %w", err)
	}
	series, err := analytics.Aggregate(l)
	if err != nil {
		return 0, fmt.Errorf("aggregate ledger: %w", err)
	}
	table := analytics.ComputeStatistics(series)

	payload, err := json.Marshal(table)
	if err != nil {
		return 0, fmt.Errorf("marshal statistics: %w", err)
	}

	id, err := w.store.SaveSnapshot(ctx, ledger.Snapshot{
		ImportID:   imp.ID,
		ComputedAt: w.now().UTC(),
		Rows:       table.Len(),
		Payload:    payload,
	})
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}

	w.log.InfoContext(ctx, "Statistics snapshot saved",
		"snapshot_id", id,
		log.FieldImportID, imp.ID,
		log.FieldRows, table.Len(),
		log.FieldOperation, log.OpSnapshot)
	return id, nil
}
