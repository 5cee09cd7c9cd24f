// Package remotestore mirrors snapshots to Postgres, one row per account
// holder. The row payload is the full snapshot blob; the server assigns the
// updated_at column on every upsert.
package remotestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/binshadcs/settle-up/internal/model"
	"github.com/binshadcs/settle-up/internal/snapshot"
)

// ErrTableMissing reports that the backing table does not exist. This is a
// configuration problem requiring operator action, not a transient I/O
// failure, so it is surfaced distinctly in the sync diagnostics.
var ErrTableMissing = errors.New("remote snapshot table missing (run the remote schema setup)")

// undefinedTable is the Postgres SQLSTATE for a missing relation.
const undefinedTable = "42P01"

type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to remote store: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping remote store: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Fetch returns the snapshot stored for the account, or nil when the account
// has no row yet.
func (s *Store) Fetch(ctx context.Context, accountID string) (*model.Snapshot, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT payload FROM account_snapshots WHERE account_id = $1`, accountID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapError("fetch snapshot", err)
	}
	snap := snapshot.Decode(payload)
	return &snap, nil
}

// Upsert creates or fully replaces the account's row.
func (s *Store) Upsert(ctx context.Context, accountID string, snap model.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO account_snapshots (account_id, payload, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (account_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`,
		accountID, payload,
	)
	if err != nil {
		return mapError("upsert snapshot", err)
	}
	return nil
}

func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == undefinedTable {
		return fmt.Errorf("%s: %w", op, ErrTableMissing)
	}
	return fmt.Errorf("%s: %w", op, err)
}
