// Package export writes local SQLite snapshots of remote data. A snapshot is
// a disposable read copy for offline inspection; the remote API stays the
// source of truth.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

type Exporter struct {
	db     *sql.DB
	logger *log.Logger
}

func NewExporter(dbPath string, logger *log.Logger) (*Exporter, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.New(log.Config{Component: log.ComponentExport})
	}
	return &Exporter{db: db, logger: logger}, nil
}

func (e *Exporter) Close() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Snapshot writes one atomic snapshot and returns its id. Either every row
// lands or none do.
func (e *Exporter) Snapshot(ctx context.Context, categories []core.Category, transactions []core.Transaction) (int64, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (taken_at) VALUES (?)`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot id: %w", err)
	}

	for _, c := range categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (snapshot_id, id, name, type, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			id, c.ID, c.Name, string(c.Type), c.CreatedAt); err != nil {
			return 0, fmt.Errorf("insert category %s: %w", c.ID, err)
		}
	}

	for _, t := range transactions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO transactions
			 (snapshot_id, id, category_id, category_name, category_type,
			  amount_cents, description, date, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, t.ID, t.CategoryID, t.CategoryName, string(t.CategoryType),
			t.AmountCents, t.Description, t.Date.String(), t.CreatedAt, t.UpdatedAt); err != nil {
			return 0, fmt.Errorf("insert transaction %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot: %w", err)
	}

	e.logger.InfoContext(ctx, "Snapshot written",
		"snapshot_id", id,
		"categories", len(categories),
		"transactions", len(transactions))
	return id, nil
}

// LatestSnapshot returns the id and timestamp of the most recent snapshot.
func (e *Exporter) LatestSnapshot(ctx context.Context) (int64, time.Time, error) {
	var id int64
	var takenAt time.Time
	err := e.db.QueryRowContext(ctx,
		`SELECT id, taken_at FROM snapshots ORDER BY id DESC LIMIT 1`).Scan(&id, &takenAt)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("latest snapshot: %w", err)
	}
	return id, takenAt, nil
}

// Transactions reads back the rows of a snapshot, newest date first.
func (e *Exporter) Transactions(ctx context.Context, snapshotID int64) ([]core.Transaction, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT id, category_id, category_name, category_type,
		        amount_cents, description, date, created_at, updated_at
		 FROM transactions WHERE snapshot_id = ? ORDER BY date DESC, id DESC`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("query snapshot transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var t core.Transaction
		var typ, date string
		if err := rows.Scan(&t.ID, &t.CategoryID, &t.CategoryName, &typ,
			&t.AmountCents, &t.Description, &date, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.CategoryType = core.CategoryType(typ)
		if t.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
