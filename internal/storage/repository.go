// Package storage persists ledger imports and statistics snapshots in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"patrimonio/internal/core"
	"patrimonio/internal/ledger"
	"patrimonio/internal/log"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
	log    *log.Logger
}

var _ ledger.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations before the main connection is opened.
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
		log:    logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the connection and that the schema is not left dirty.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	_, dirty, err := SchemaVersion(r.dbPath)
	if err != nil {
		return err
	}
	if dirty {
		return errors.New("database schema is dirty")
	}
	return nil
}

// ReplaceLedger implements ledger.Writer. The import and its records are
// written in one transaction.
func (r *SQLiteRepository) ReplaceLedger(ctx context.Context, source string, records core.Ledger) (ledger.Import, error) {
	imp := ledger.Import{Source: source, Records: len(records), CreatedAt: r.now().UTC()}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Import{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_imports (source, record_count, created_at) VALUES (?, ?, ?)`,
		imp.Source, imp.Records, imp.CreatedAt.Format(timeLayout))
	if err != nil {
		return ledger.Import{}, fmt.Errorf("insert import: %w", err)
	}
	if imp.ID, err = res.LastInsertId(); err != nil {
		return ledger.Import{}, fmt.Errorf("import id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO balance_records (import_id, record_date, institution, amount) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return ledger.Import{}, fmt.Errorf("prepare record insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return ledger.Import{}, fmt.Errorf("record %d: %w", i+1, err)
		}
		if _, err := stmt.ExecContext(ctx, imp.ID, rec.Date.String(), rec.Institution, rec.Amount.String()); err != nil {
			return ledger.Import{}, fmt.Errorf("insert record %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ledger.Import{}, fmt.Errorf("commit import: %w", err)
	}

	r.log.InfoContext(ctx, "Ledger saved to SQLite",
		log.FieldImportID, imp.ID,
		log.FieldRecords, imp.Records,
		log.FieldSource, imp.Source)
	return imp, nil
}

// LatestImport implements ledger.ImportReader.
func (r *SQLiteRepository) LatestImport(ctx context.Context) (ledger.Import, error) {
	var (
		imp     ledger.Import
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, source, record_count, created_at FROM ledger_imports ORDER BY id DESC LIMIT 1`).
		Scan(&imp.ID, &imp.Source, &imp.Records, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Import{}, core.ErrEmptyLedger
	}
	if err != nil {
		return ledger.Import{}, fmt.Errorf("get latest import: %w", err)
	}
	if imp.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return ledger.Import{}, fmt.Errorf("parse import time %q: %w", created, err)
	}
	return imp, nil
}

// LoadLedger implements ledger.Reader.
func (r *SQLiteRepository) LoadLedger(ctx context.Context) (core.Ledger, error) {
	imp, err := r.LatestImport(ctx)
	if err != nil {
		return nil, err
	}
	return r.loadRecords(ctx, imp.ID, imp.Records)
}

// LoadImport implements ledger.ImportReader.
func (r *SQLiteRepository) LoadImport(ctx context.Context, importID int64) (core.Ledger, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT record_count FROM ledger_imports WHERE id = ?`, importID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ledger.ErrImportNotFound, importID)
	}
	if err != nil {
		return nil, fmt.Errorf("get import %d: %w", importID, err)
	}
	return r.loadRecords(ctx, importID, count)
}

func (r *SQLiteRepository) loadRecords(ctx context.Context, importID int64, sizeHint int) (core.Ledger, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT record_date, institution, amount FROM balance_records
		 WHERE import_id = ? ORDER BY record_date, id`, importID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	out := make(core.Ledger, 0, sizeHint)
	for rows.Next() {
		var date, institution, amount string
		if err := rows.Scan(&date, &institution, &amount); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		d, err := core.ParseISODate(date)
		if err != nil {
			return nil, fmt.Errorf("stored date %q: %w", date, err)
		}
		a, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("stored amount %q: %w", amount, err)
		}
		out = append(out, core.BalanceRecord{Date: d, Institution: institution, Amount: a})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// SaveSnapshot implements ledger.SnapshotStore.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s ledger.Snapshot) (int64, error) {
	if s.ComputedAt.IsZero() {
		s.ComputedAt = r.now()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO statistics_snapshots (import_id, computed_at, row_count, payload) VALUES (?, ?, ?, ?)`,
		s.ImportID, s.ComputedAt.UTC().Format(timeLayout), s.Rows, s.Payload)
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot id: %w", err)
	}
	r.log.DebugContext(ctx, "Statistics snapshot saved", log.FieldImportID, s.ImportID, log.FieldRows, s.Rows)
	return id, nil
}

// LatestSnapshot implements ledger.SnapshotStore.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context) (ledger.Snapshot, error) {
	var (
		s        ledger.Snapshot
		computed string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, import_id, computed_at, row_count, payload FROM statistics_snapshots ORDER BY id DESC LIMIT 1`).
		Scan(&s.ID, &s.ImportID, &computed, &s.Rows, &s.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Snapshot{}, ledger.ErrNoSnapshot
	}
	if err != nil {
		return ledger.Snapshot{}, fmt.Errorf("get latest snapshot: %w", err)
	}
	if s.ComputedAt, err = time.Parse(timeLayout, computed); err != nil {
		return ledger.Snapshot{}, fmt.Errorf("parse snapshot time %q: %w", computed, err)
	}
	return s, nil
}

// PruneImports deletes every import but the newest keep ones, with their
// records and snapshots.
func (r *SQLiteRepository) PruneImports(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM ledger_imports WHERE id NOT IN (SELECT id FROM ledger_imports ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune imports: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruned rows: %w", err)
	}
	if n > 0 {
		r.log.InfoContext(ctx, "Old imports pruned", "deleted", n, "kept", keep)
	}
	return n, nil
}
