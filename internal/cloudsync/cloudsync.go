// Package cloudsync decides, at sign-in time, whether local or remote data
// wins, and exposes the manual push/pull operations available once an
// account is bound. The policy is last-writer-wins over the whole snapshot,
// arbitrated solely by meta.updatedAt; there is no per-record merge, so
// concurrent edits on two devices between syncs lose the older side.
package cloudsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/binshadcs/settle-up/internal/cache"
	"github.com/binshadcs/settle-up/internal/model"
)

// Remote is the cloud store, one snapshot row per account.
type Remote interface {
	Fetch(ctx context.Context, accountID string) (*model.Snapshot, error)
	Upsert(ctx context.Context, accountID string, snap model.Snapshot) error
}

// Status is the sync diagnostics surface: presentation layers render it but
// never act on it.
type Status struct {
	Enabled   bool   `json:"enabled"`
	AccountID string `json:"account_id,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// StatusCallback is called whenever the sync status changes.
type StatusCallback func(Status)

// HydrateCallback is called whenever remote data wholesale-replaces the
// in-memory snapshot, so collaborators know to re-fetch derived views.
type HydrateCallback func()

type Manager struct {
	cache     *cache.Cache
	remote    Remote
	statusCB  StatusCallback
	hydrateCB HydrateCallback
	logger    *slog.Logger

	mu     sync.RWMutex
	status Status
}

// NewManager creates a sync manager. remote may be nil (local-only build);
// Bind then reports a configuration error for any non-empty account.
func NewManager(c *cache.Cache, remote Remote, statusCB StatusCallback, hydrateCB HydrateCallback, logger *slog.Logger) *Manager {
	return &Manager{
		cache:     c,
		remote:    remote,
		statusCB:  statusCB,
		hydrateCB: hydrateCB,
		logger:    logger,
	}
}

// Status returns the current diagnostics.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Bind sets the signed-in account and reconciles local against remote.
// An empty id unbinds: future saves stay local-only, local data is kept.
// Reconciliation outcome for a non-empty id:
//   - no remote row: the local snapshot seeds the cloud
//   - remote strictly newer: remote replaces local wholesale (hydration fires)
//   - local strictly newer: local is pushed to remote
//   - equal timestamps: nothing, the two sides are already consistent
//
// A fetch error is recorded in the diagnostics and leaves local data as-is.
func (m *Manager) Bind(ctx context.Context, accountID string) error {
	if err := m.cache.Init(ctx); err != nil {
		return err
	}

	if accountID == "" {
		m.cache.SetAccount("")
		m.setStatus(Status{})
		return nil
	}

	m.cache.SetAccount(accountID)

	if m.remote == nil {
		err := fmt.Errorf("cloud sync not configured")
		m.setStatus(Status{Enabled: false, AccountID: accountID, LastError: err.Error()})
		return err
	}

	remoteSnap, err := m.remote.Fetch(ctx, accountID)
	if err != nil {
		m.logger.Error("fetch remote snapshot", "account", accountID, "error", err)
		m.setStatus(Status{Enabled: true, AccountID: accountID, LastError: err.Error()})
		return err
	}

	local := m.cache.Load()

	switch {
	case remoteSnap == nil:
		// First sign-in from this account: seed the cloud with local data.
		if err := m.remote.Upsert(ctx, accountID, local); err != nil {
			m.logger.Error("seed remote snapshot", "account", accountID, "error", err)
			m.setStatus(Status{Enabled: true, AccountID: accountID, LastError: err.Error()})
			return err
		}

	case remoteSnap.Meta.UpdatedAt.After(local.Meta.UpdatedAt):
		m.cache.ApplyRemote(*remoteSnap)
		m.notifyHydrated()

	case local.Meta.UpdatedAt.After(remoteSnap.Meta.UpdatedAt):
		if err := m.remote.Upsert(ctx, accountID, local); err != nil {
			m.logger.Error("push local snapshot", "account", accountID, "error", err)
			m.setStatus(Status{Enabled: true, AccountID: accountID, LastError: err.Error()})
			return err
		}
	}

	m.setStatus(Status{Enabled: true, AccountID: accountID})
	return nil
}

// PushNow drains the pending write queues and force-upserts the current
// snapshot to the remote store.
func (m *Manager) PushNow(ctx context.Context) error {
	accountID := m.cache.Account()
	if accountID == "" || m.remote == nil {
		return fmt.Errorf("no account bound")
	}

	m.cache.Flush()

	if err := m.remote.Upsert(ctx, accountID, m.cache.Load()); err != nil {
		m.logger.Error("push snapshot", "account", accountID, "error", err)
		m.setStatus(Status{Enabled: true, AccountID: accountID, LastError: err.Error()})
		return err
	}
	m.setStatus(Status{Enabled: true, AccountID: accountID})
	return nil
}

// PullNow force-fetches the remote snapshot and applies it wholesale.
// It reports whether remote data existed.
func (m *Manager) PullNow(ctx context.Context) (bool, error) {
	accountID := m.cache.Account()
	if accountID == "" || m.remote == nil {
		return false, fmt.Errorf("no account bound")
	}

	remoteSnap, err := m.remote.Fetch(ctx, accountID)
	if err != nil {
		m.logger.Error("pull snapshot", "account", accountID, "error", err)
		m.setStatus(Status{Enabled: true, AccountID: accountID, LastError: err.Error()})
		return false, err
	}
	if remoteSnap == nil {
		m.setStatus(Status{Enabled: true, AccountID: accountID})
		return false, nil
	}

	m.cache.ApplyRemote(*remoteSnap)
	m.notifyHydrated()
	m.setStatus(Status{Enabled: true, AccountID: accountID})
	return true, nil
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	if m.statusCB != nil {
		m.statusCB(s)
	}
}

func (m *Manager) notifyHydrated() {
	if m.hydrateCB != nil {
		m.hydrateCB()
	}
}
