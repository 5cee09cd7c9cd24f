// Package cache owns the live snapshot during a session. Ledger operations
// read a copy, transform it, and hand it back through Save; the local and
// remote stores are passive mirrors updated on background queues.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/binshadcs/settle-up/internal/ident"
	"github.com/binshadcs/settle-up/internal/model"
	"github.com/binshadcs/settle-up/internal/snapshot"
)

// LocalStore is the durable local mirror.
type LocalStore interface {
	Read(ctx context.Context) (*model.Snapshot, error)
	Write(ctx context.Context, snap model.Snapshot) error
	MigrateLegacy(ctx context.Context) (*model.Snapshot, error)
}

// RemoteWriter is the cloud mirror's write side. The cache never fetches;
// pulling remote data is the sync manager's job.
type RemoteWriter interface {
	Upsert(ctx context.Context, accountID string, snap model.Snapshot) error
}

type Cache struct {
	local  LocalStore
	remote RemoteWriter
	clock  ident.Clock
	logger *slog.Logger

	localQ  *queue
	remoteQ *queue

	initOnce sync.Once
	initErr  error

	// writeMu serializes whole read-modify-write cycles (Update, Save,
	// ApplyRemote) including their enqueues, so concurrent mutations can
	// neither lose each other's changes nor invert durable write order.
	writeMu sync.Mutex

	mu        sync.Mutex
	snap      model.Snapshot
	lastSig   string
	accountID string
}

// New creates a Cache over the given mirrors. remote may be nil when the
// build runs local-only; binding an account is then a no-op for writes.
func New(local LocalStore, remote RemoteWriter, clock ident.Clock, logger *slog.Logger) *Cache {
	return &Cache{
		local:   local,
		remote:  remote,
		clock:   clock,
		logger:  logger,
		localQ:  newQueue("local", logger),
		remoteQ: newQueue("remote", logger),
		snap:    snapshot.Normalize(model.Snapshot{}),
	}
}

// Init primes the cache from the durable layer: run the one-time legacy
// migration, read the stored snapshot, and fall back to an empty one.
// Idempotent; must complete before any read or mutation.
func (c *Cache) Init(ctx context.Context) error {
	c.initOnce.Do(func() {
		if _, err := c.local.MigrateLegacy(ctx); err != nil {
			// Migration failures leave the store empty but never block startup.
			c.logger.Error("legacy migration failed", "error", err)
		}

		stored, err := c.local.Read(ctx)
		if err != nil {
			c.initErr = fmt.Errorf("init storage: %w", err)
			return
		}

		snap := snapshot.Normalize(model.Snapshot{})
		if stored != nil {
			snap = snapshot.Normalize(*stored)
		}

		c.mu.Lock()
		c.snap = snap
		c.lastSig = snapshot.Signature(snap)
		c.mu.Unlock()
	})
	return c.initErr
}

// Load returns a deep copy of the current snapshot. It never touches the
// durable layer.
func (c *Cache) Load() model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.Clone()
}

// Update runs fn against a copy of the current snapshot and saves the
// result. The whole read-modify-write cycle is atomic with respect to other
// Update, Save, and ApplyRemote calls; ledger mutations go through here so
// concurrent HTTP requests cannot lose each other's changes.
func (c *Cache) Update(fn func(*model.Snapshot)) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	snap := c.Load()
	fn(&snap)
	c.save(snap)
}

// Save normalizes the snapshot and persists it when its content actually
// changed. An unchanged save is a no-op: it performs no durable write and
// does not bump meta.updatedAt, so it can never clobber a concurrently
// arriving remote update with a spurious timestamp. A changed save replaces
// the in-memory snapshot immediately and enqueues the local write, plus a
// remote upsert when an account is bound. Callers mutating a loaded copy
// should prefer Update; a bare Save is only atomic by itself.
func (c *Cache) Save(s model.Snapshot) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.save(s)
}

// save does the coalescing check, the swap, and the enqueues. Callers hold
// writeMu.
func (c *Cache) save(s model.Snapshot) {
	normalized := snapshot.Normalize(s)
	sig := snapshot.Signature(normalized)

	c.mu.Lock()
	if sig == c.lastSig {
		c.mu.Unlock()
		return
	}
	normalized.Meta.UpdatedAt = c.clock.Now()
	c.snap = normalized
	c.lastSig = sig
	accountID := c.accountID
	persisted := normalized.Clone()
	c.mu.Unlock()

	c.localQ.enqueue(func(ctx context.Context) error {
		return c.local.Write(ctx, persisted)
	})
	if accountID != "" && c.remote != nil {
		c.remoteQ.enqueue(func(ctx context.Context) error {
			return c.remote.Upsert(ctx, accountID, persisted)
		})
	}
}

// ApplyRemote replaces the in-memory snapshot wholesale with remote data,
// keeping the remote timestamp, and mirrors it to the local store only.
// Applying remote data must never re-trigger a remote push.
func (c *Cache) ApplyRemote(s model.Snapshot) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	normalized := snapshot.Normalize(s)

	c.mu.Lock()
	c.snap = normalized
	c.lastSig = snapshot.Signature(normalized)
	persisted := normalized.Clone()
	c.mu.Unlock()

	c.localQ.enqueue(func(ctx context.Context) error {
		return c.local.Write(ctx, persisted)
	})
}

// SetAccount binds (or, with "", unbinds) the remote account. Binding only
// affects future saves; it never deletes local data.
func (c *Cache) SetAccount(accountID string) {
	c.mu.Lock()
	c.accountID = accountID
	c.mu.Unlock()
}

// Account returns the currently bound account id, or "".
func (c *Cache) Account() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID
}

// Flush blocks until both write queues have drained.
func (c *Cache) Flush() {
	c.localQ.flush()
	c.remoteQ.flush()
}

// LastErrors reports the most recent failure of each write queue (nil after
// a subsequent success).
func (c *Cache) LastErrors() (local, remote error) {
	return c.localQ.err(), c.remoteQ.err()
}

// Close drains the queues and stops their workers.
func (c *Cache) Close() {
	c.localQ.close()
	c.remoteQ.close()
}
