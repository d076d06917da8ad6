package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"patrimonio/internal/log"
)

// ReconcilerConfig holds configuration for the reconciler
type ReconcilerConfig struct {
	// Interval is how often pending snapshots are checked (default: 1m)
	Interval time.Duration

	// KeepImports is how many imports are retained when pruning (default: 5).
	// Zero disables pruning.
	KeepImports int
}

// DefaultReconcilerConfig returns sensible defaults
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval:    time.Minute,
		KeepImports: 5,
	}
}

// Reconciler periodically runs SnapshotWorker.ProcessPending and prunes
// superseded imports when the store supports it.
type Reconciler struct {
	worker *SnapshotWorker
	pruner Pruner
	config ReconcilerConfig
	log    *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReconciler creates a reconciler. pruner may be nil.
func NewReconciler(worker *SnapshotWorker, pruner Pruner, config ReconcilerConfig) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = DefaultReconcilerConfig().Interval
	}
	return &Reconciler{
		worker: worker,
		pruner: pruner,
		config: config,
		log:    worker.log,
	}
}

// Start begins the loop. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	r.mu.Unlock()

	go r.runLoop(ctx)

	r.log.InfoContext(ctx, "Snapshot reconciler started",
		"interval", r.config.Interval.String(),
		"keep_imports", r.config.KeepImports)
	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to expire.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)

	select {
	case <-r.doneCh:
		r.log.InfoContext(ctx, "Snapshot reconciler stopped gracefully")
		return nil
	case <-ctx.Done():
		r.log.WarnContext(ctx, "Snapshot reconciler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the loop is active
func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reconciler) runLoop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	r.RunOnce(ctx)

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs one reconcile pass. Errors are logged, not returned.
func (r *Reconciler) RunOnce(ctx context.Context) {
	if _, err := r.worker.ProcessPending(ctx); err != nil {
		r.log.ErrorContext(ctx, "Failed to process pending snapshot", log.FieldError, err)
	}
	if r.pruner == nil || r.config.KeepImports <= 0 {
		return
	}
	if _, err := r.pruner.PruneImports(ctx, r.config.KeepImports); err != nil {
		r.log.ErrorContext(ctx, "Failed to prune imports", log.FieldError, err)
	}
}
