package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Slot is a named durable value. Implementations must replace a value atomically.
type Slot interface {
	Get(ctx context.Context, name string) (value []byte, found bool, err error)
	Put(ctx context.Context, name string, value []byte) error
}

// SlotInfo describes one stored slot.
type SlotInfo struct {
	Name      string
	Size      int
	UpdatedAt time.Time
}

type DB struct {
	sql  *sql.DB
	path string
}

func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS slots (
  name       TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db, path: path}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

func (d *DB) Path() string { return d.path }

func (d *DB) Get(ctx context.Context, name string) ([]byte, bool, error) {
	var value string
	err := d.sql.QueryRowContext(ctx, "SELECT value FROM slots WHERE name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (d *DB) Put(ctx context.Context, name string, value []byte) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO slots(name, value, updated_at) VALUES(?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`, name, string(value))
	return err
}

// ListSlots returns every slot with its size, ordered by name.
func (d *DB) ListSlots(ctx context.Context) ([]SlotInfo, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT name, LENGTH(value), updated_at FROM slots ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		var s SlotInfo
		var updated string
		if err := rows.Scan(&s.Name, &s.Size, &updated); err != nil {
			return nil, err
		}
		// Parse SQLite CURRENT_TIMESTAMP format
		// Try "2006-01-02 15:04:05" then RFC3339
		if t, perr := time.Parse("2006-01-02 15:04:05", updated); perr == nil {
			s.UpdatedAt = t
		} else if t2, perr2 := time.Parse(time.RFC3339, updated); perr2 == nil {
			s.UpdatedAt = t2
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
