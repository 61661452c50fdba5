package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// snapshotName is the single row key under which the ledger blob lives. Kept
// for compatibility with snapshots written by earlier versions.
const snapshotName = "masroufi-storage"

// SQLiteRepository persists the snapshot blob in a single-row SQLite table.
// It implements Persister.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Persister = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
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

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load returns the persisted snapshot blob, or (nil, nil) when none exists.
func (r *SQLiteRepository) Load(ctx context.Context) ([]byte, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT data FROM snapshots WHERE name = ?`, snapshotName,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return data, nil
}

// Save overwrites the snapshot row wholesale.
func (r *SQLiteRepository) Save(ctx context.Context, snapshot []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO snapshots (name, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		snapshotName, snapshot, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	slog.DebugContext(ctx, "Snapshot saved to SQLite",
		"name", snapshotName,
		"bytes", len(snapshot))
	return nil
}
