package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"goldtracer/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ SnapshotCache = (*SQLiteStore)(nil)
var _ TranscriptStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS snapshot_cache (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	payload    TEXT    NOT NULL,
	fetched_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_turns (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT    NOT NULL UNIQUE,
	role       TEXT    NOT NULL,
	content    TEXT    NOT NULL,
	stamp      TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);`

// SQLiteStore implements SnapshotCache and TranscriptStore backed by a
// SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// tables and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// SnapshotCache implementation
// ---------------------------------------------------------------------------

// SaveSnapshot replaces the cached snapshot.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *domain.Snapshot, fetchedAt time.Time) error {
	if snap == nil {
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshot_cache (id, payload, fetched_at) VALUES (1, ?, ?)`,
		string(payload), fetchedAt.UnixMilli())
	return err
}

// LoadSnapshot returns the cached snapshot, or ErrNotFound.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (*domain.Snapshot, time.Time, error) {
	var payload string
	var ms int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, fetched_at FROM snapshot_cache WHERE id = 1`).Scan(&payload, &ms)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNotFound
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return nil, time.Time{}, fmt.Errorf("decoding cached snapshot: %w", err)
	}
	return &snap, time.UnixMilli(ms), nil
}

// ---------------------------------------------------------------------------
// TranscriptStore implementation
// ---------------------------------------------------------------------------

// AppendTurn inserts a chat turn.
func (s *SQLiteStore) AppendTurn(ctx context.Context, turn domain.ChatTurn) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chat_turns (id, role, content, stamp, created_at) VALUES (?, ?, ?, ?, ?)`,
		turn.ID, string(turn.Role), turn.Content, turn.Timestamp, turn.CreatedAt.UnixMilli())
	return err
}

// LoadTurns returns the newest limit turns in append order. A non-positive
// limit returns all turns.
func (s *SQLiteStore) LoadTurns(ctx context.Context, limit int) ([]domain.ChatTurn, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, stamp, created_at FROM (
			SELECT * FROM chat_turns ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.ChatTurn
	for rows.Next() {
		var t domain.ChatTurn
		var role string
		var ms int64
		if err := rows.Scan(&t.ID, &role, &t.Content, &t.Timestamp, &ms); err != nil {
			return nil, err
		}
		t.Role = domain.Role(role)
		t.CreatedAt = time.UnixMilli(ms)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// ClearTurns deletes every stored turn.
func (s *SQLiteStore) ClearTurns(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_turns`)
	return err
}
