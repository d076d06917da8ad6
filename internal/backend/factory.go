package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"patrimonio/internal/amqp"
	"patrimonio/internal/core"
	"patrimonio/internal/ledger"
	"patrimonio/internal/ledger/memory"
	"patrimonio/internal/ledger/sheets"
	"patrimonio/internal/log"
	"patrimonio/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	result := &BackendResult{
		Store:   repo,
		Pruner:  repo,
		Pinger:  repo,
		Cleanup: repo.Close,
	}

	// AMQP is optional: without it snapshots are produced by the reconciler.
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without messaging", log.FieldError, err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Publisher = client
			result.Cleanup = func() error {
				return errors.Join(client.Close(), repo.Close())
			}
		}
	}

	f.logger.Info("Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", result.Publisher != nil)
	return result, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := sheets.New(ctx, sheets.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsFile: config.GoogleCredentialsFile,
		CredentialsJSON: config.GoogleCredentialsJSON,
	}, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets backend", "sheet", config.GoogleSheetName)
	return &BackendResult{Store: newSheetStore(cli, memory.New())}, nil
}

func (f *DefaultFactory) createMemoryBackend() (*BackendResult, error) {
	f.logger.Info("Initialized memory backend")
	return &BackendResult{Store: memory.New()}, nil
}

// sheetStore keeps the ledger on the spreadsheet and the import metadata and
// snapshots in memory. mu keeps the spreadsheet and the metadata in step.
type sheetStore struct {
	mu    sync.RWMutex
	sheet interface {
		ledger.Reader
		ledger.Writer
	}
	meta *memory.Store
}

var _ ledger.Store = (*sheetStore)(nil)

func newSheetStore(sheet interface {
	ledger.Reader
	ledger.Writer
}, meta *memory.Store) *sheetStore {
	return &sheetStore{sheet: sheet, meta: meta}
}

func (s *sheetStore) LoadLedger(ctx context.Context) (core.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sheet.LoadLedger(ctx)
}

// LoadImport reads the spreadsheet only while importID is still current;
// the sheet keeps no history.
func (s *sheetStore) LoadImport(ctx context.Context, importID int64) (core.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	imp, err := s.meta.LatestImport(ctx)
	if err != nil {
		return nil, err
	}
	if imp.ID != importID {
		return nil, fmt.Errorf("%w: %d", ledger.ErrImportNotFound, importID)
	}
	return s.sheet.LoadLedger(ctx)
}

func (s *sheetStore) ReplaceLedger(ctx context.Context, source string, records core.Ledger) (ledger.Import, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.sheet.ReplaceLedger(ctx, source, records); err != nil {
		return ledger.Import{}, err
	}
	return s.meta.ReplaceLedger(ctx, source, records)
}

func (s *sheetStore) LatestImport(ctx context.Context) (ledger.Import, error) {
	return s.meta.LatestImport(ctx)
}

func (s *sheetStore) SaveSnapshot(ctx context.Context, snap ledger.Snapshot) (int64, error) {
	return s.meta.SaveSnapshot(ctx, snap)
}

func (s *sheetStore) LatestSnapshot(ctx context.Context) (ledger.Snapshot, error) {
	return s.meta.LatestSnapshot(ctx)
}
