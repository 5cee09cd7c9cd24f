// Package localstore persists the snapshot as a single JSON record in the
// local SQLite database. The record is a passive mirror of the in-memory
// cache: it is fully replaced on every write and only read back at startup.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/binshadcs/settle-up/internal/model"
	"github.com/binshadcs/settle-up/internal/snapshot"
)

// recordKey is the well-known key of the single snapshot row.
const recordKey = "settleup-data"

type Store struct {
	db         *sql.DB
	legacyPath string
	logger     *slog.Logger
}

// New creates a Store. legacyPath points at the flat JSON file used by the
// old persistence mechanism; pass "" when no legacy import is wanted.
func New(db *sql.DB, legacyPath string, logger *slog.Logger) *Store {
	return &Store{db: db, legacyPath: legacyPath, logger: logger}
}

// Read returns the stored snapshot, or nil when nothing has been persisted
// yet. Whatever is on disk goes through normalization, so callers always see
// a structurally valid snapshot.
func (s *Store) Read(ctx context.Context) (*model.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE key = ?`, recordKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	snap := snapshot.Decode([]byte(payload))
	return &snap, nil
}

// Write fully replaces the stored snapshot. It is durable when it returns.
func (s *Store) Write(ctx context.Context, snap model.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (key, payload, written_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, written_at = excluded.written_at`,
		recordKey, string(payload),
	)
	if err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// MigrateLegacy imports the legacy flat JSON file on first boot: when the
// store has no row yet and the legacy file exists, its content is normalized,
// written into the store, and the file is deleted. Returns the imported
// snapshot, or nil when there was nothing to migrate.
func (s *Store) MigrateLegacy(ctx context.Context) (*model.Snapshot, error) {
	if s.legacyPath == "" {
		return nil, nil
	}

	existing, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}

	data, err := os.ReadFile(s.legacyPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read legacy data: %w", err)
	}

	snap := snapshot.Decode(data)
	if err := s.Write(ctx, snap); err != nil {
		return nil, fmt.Errorf("import legacy data: %w", err)
	}

	if err := os.Remove(s.legacyPath); err != nil {
		// The import succeeded; a leftover file only means the (now ignored)
		// legacy copy sticks around.
		s.logger.Warn("remove legacy data file", "path", s.legacyPath, "error", err)
	}

	s.logger.Info("migrated legacy data file",
		"path", s.legacyPath,
		"friends", len(snap.Friends),
		"expenses", len(snap.Expenses),
	)
	return &snap, nil
}
