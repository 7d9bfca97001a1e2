// Package store persists the last good snapshot and the chat transcript in
// SQLite, and exports macro history to Parquet.
package store

import (
	"context"
	"errors"
	"time"

	"goldtracer/internal/domain"
)

// ErrNotFound is returned when nothing has been stored yet.
var ErrNotFound = errors.New("not found")

// SnapshotCache keeps the most recent successfully fetched snapshot so a
// restarted terminal has something to show before the first poll returns.
type SnapshotCache interface {
	// SaveSnapshot replaces the cached snapshot.
	SaveSnapshot(ctx context.Context, snap *domain.Snapshot, fetchedAt time.Time) error

	// LoadSnapshot returns the cached snapshot and when it was fetched.
	LoadSnapshot(ctx context.Context) (*domain.Snapshot, time.Time, error)
}

// TranscriptStore persists chat turns in append order.
type TranscriptStore interface {
	// AppendTurn stores one turn. Appending an existing id is a no-op.
	AppendTurn(ctx context.Context, turn domain.ChatTurn) error

	// LoadTurns returns the newest limit turns, oldest first.
	LoadTurns(ctx context.Context, limit int) ([]domain.ChatTurn, error)

	// ClearTurns deletes the transcript.
	ClearTurns(ctx context.Context) error
}

// HistoryExporter writes history series to files.
type HistoryExporter interface {
	// ExportHistory writes points to a file and returns its path.
	ExportHistory(ctx context.Context, r domain.HistoryRange, points []domain.HistoryPoint, at time.Time) (string, error)
}
