package cloudsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/binshadcs/settle-up/internal/cache"
	"github.com/binshadcs/settle-up/internal/model"
	"github.com/binshadcs/settle-up/internal/remotestore"
	"github.com/binshadcs/settle-up/internal/snapshot"
)

type fakeLocal struct {
	mu     sync.Mutex
	stored *model.Snapshot
}

func (f *fakeLocal) Read(ctx context.Context) (*model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored, nil
}

func (f *fakeLocal) Write(ctx context.Context, snap model.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = &snap
	return nil
}

func (f *fakeLocal) MigrateLegacy(ctx context.Context) (*model.Snapshot, error) {
	return nil, nil
}

type fakeRemote struct {
	mu       sync.Mutex
	rows     map[string]model.Snapshot
	fetchErr error
	upserts  int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{rows: make(map[string]model.Snapshot)}
}

func (f *fakeRemote) Fetch(ctx context.Context, accountID string) (*model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	snap, ok := f.rows[accountID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (f *fakeRemote) Upsert(ctx context.Context, accountID string, snap model.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	f.rows[accountID] = snap
	return nil
}

func (f *fakeRemote) row(accountID string) (model.Snapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.rows[accountID]
	return snap, ok
}

type clockAt struct{ t time.Time }

func (c clockAt) Now() time.Time { return c.t }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func snapshotAt(updatedAt time.Time, names ...string) model.Snapshot {
	var s model.Snapshot
	for _, n := range names {
		s.Friends = append(s.Friends, model.Friend{ID: "id-" + n, Name: n})
	}
	s = snapshot.Normalize(s)
	s.Meta.UpdatedAt = updatedAt
	return s
}

// setup returns a manager over a cache primed with the given local snapshot,
// plus a counter of hydration notifications.
func setup(t *testing.T, local *model.Snapshot, remote Remote) (*Manager, *cache.Cache, *int) {
	t.Helper()
	ls := &fakeLocal{stored: local}

	var rw cache.RemoteWriter
	if r, ok := remote.(*fakeRemote); ok && r != nil {
		rw = r
	}
	c := cache.New(ls, rw, clockAt{time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)}, testLogger())
	t.Cleanup(c.Close)

	hydrations := 0
	m := NewManager(c, remote, nil, func() { hydrations++ }, testLogger())
	return m, c, &hydrations
}

func TestBindRemoteNewerWins(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	localSnap := snapshotAt(t1, "LocalOnly")
	remote := newFakeRemote()
	remote.rows["acct"] = snapshotAt(t2, "Remote")

	m, c, hydrations := setup(t, &localSnap, remote)

	if err := m.Bind(context.Background(), "acct"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	got := c.Load()
	if len(got.Friends) != 1 || got.Friends[0].Name != "Remote" {
		t.Errorf("snapshot = %+v, want remote content", got.Friends)
	}
	if !got.Meta.UpdatedAt.Equal(t2) {
		t.Errorf("meta = %v, want remote %v", got.Meta.UpdatedAt, t2)
	}
	if *hydrations != 1 {
		t.Errorf("hydrations = %d, want exactly 1", *hydrations)
	}
	if remote.upserts != 0 {
		t.Errorf("remote upserts = %d, want 0 (remote already newest)", remote.upserts)
	}
}

func TestBindLocalNewerPushes(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	localSnap := snapshotAt(t2, "Local")
	remote := newFakeRemote()
	remote.rows["acct"] = snapshotAt(t1, "Stale")

	m, c, hydrations := setup(t, &localSnap, remote)

	if err := m.Bind(context.Background(), "acct"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	if got := c.Load(); got.Friends[0].Name != "Local" {
		t.Errorf("local snapshot was replaced by older remote: %+v", got.Friends)
	}
	if *hydrations != 0 {
		t.Errorf("hydrations = %d, want 0", *hydrations)
	}
	row, ok := remote.row("acct")
	if !ok || row.Friends[0].Name != "Local" {
		t.Errorf("remote row = %+v, want pushed local content", row.Friends)
	}
}

func TestBindEqualTimestampsNoAction(t *testing.T) {
	stamp := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	localSnap := snapshotAt(stamp, "Local")
	remote := newFakeRemote()
	remote.rows["acct"] = snapshotAt(stamp, "Remote")

	m, c, hydrations := setup(t, &localSnap, remote)

	if err := m.Bind(context.Background(), "acct"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	if got := c.Load(); got.Friends[0].Name != "Local" {
		t.Errorf("equal timestamps must leave local untouched, got %+v", got.Friends)
	}
	if remote.upserts != 0 {
		t.Errorf("equal timestamps must not push, got %d upserts", remote.upserts)
	}
	if *hydrations != 0 {
		t.Errorf("hydrations = %d, want 0", *hydrations)
	}
}

func TestBindSeedsEmptyRemote(t *testing.T) {
	localSnap := snapshotAt(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "Local")
	remote := newFakeRemote()

	m, _, _ := setup(t, &localSnap, remote)

	if err := m.Bind(context.Background(), "acct"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	row, ok := remote.row("acct")
	if !ok {
		t.Fatal("empty remote was not seeded with local data")
	}
	if row.Friends[0].Name != "Local" {
		t.Errorf("seeded row = %+v", row.Friends)
	}
}

func TestBindFetchErrorKeepsLocal(t *testing.T) {
	localSnap := snapshotAt(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "Local")
	remote := newFakeRemote()
	remote.fetchErr = errors.New("network down")

	m, c, hydrations := setup(t, &localSnap, remote)

	if err := m.Bind(context.Background(), "acct"); err == nil {
		t.Fatal("expected bind to report the fetch error")
	}

	if got := c.Load(); got.Friends[0].Name != "Local" {
		t.Error("fetch error must leave local snapshot as-is")
	}
	if *hydrations != 0 {
		t.Error("fetch error must not hydrate")
	}
	status := m.Status()
	if !status.Enabled || status.LastError == "" {
		t.Errorf("status = %+v, want enabled with recorded error", status)
	}
}

func TestBindTableMissingIsDistinguished(t *testing.T) {
	localSnap := snapshotAt(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "Local")
	remote := newFakeRemote()
	remote.fetchErr = remotestore.ErrTableMissing

	m, _, _ := setup(t, &localSnap, remote)

	err := m.Bind(context.Background(), "acct")
	if !errors.Is(err, remotestore.ErrTableMissing) {
		t.Fatalf("err = %v, want ErrTableMissing", err)
	}
	if !strings.Contains(m.Status().LastError, "table missing") {
		t.Errorf("diagnostics %q should name the configuration problem", m.Status().LastError)
	}
}

func TestBindEmptyUnbinds(t *testing.T) {
	localSnap := snapshotAt(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "Local")
	remote := newFakeRemote()

	m, c, _ := setup(t, &localSnap, remote)

	if err := m.Bind(context.Background(), "acct"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := m.Bind(context.Background(), ""); err != nil {
		t.Fatalf("unbind: %v", err)
	}

	if m.Status().Enabled {
		t.Error("status still enabled after unbind")
	}
	if got := c.Load(); got.Friends[0].Name != "Local" {
		t.Error("unbind must never delete local data")
	}

	// New saves stay local-only.
	before := remote.upserts
	c.Save(snapshotAt(time.Now(), "Local", "More"))
	c.Flush()
	if remote.upserts != before {
		t.Error("save after unbind reached the remote store")
	}
}

func TestPullNow(t *testing.T) {
	localSnap := snapshotAt(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), "Local")
	remote := newFakeRemote()

	m, c, hydrations := setup(t, &localSnap, remote)
	if err := m.Bind(context.Background(), "acct"); err != nil {
		t.Fatalf("bind: %v", err)
	}
	*hydrations = 0

	// Remote row changed out of band (e.g. another device pushed).
	remote.mu.Lock()
	remote.rows["acct"] = snapshotAt(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), "OtherDevice")
	remote.mu.Unlock()

	found, err := m.PullNow(context.Background())
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if !found {
		t.Fatal("expected remote data to be found")
	}
	if got := c.Load(); got.Friends[0].Name != "OtherDevice" {
		t.Errorf("snapshot = %+v, want pulled content", got.Friends)
	}
	if *hydrations != 1 {
		t.Errorf("hydrations = %d, want 1", *hydrations)
	}
}

func TestPullNowNoRemoteData(t *testing.T) {
	remote := newFakeRemote()
	m, _, hydrations := setup(t, nil, remote)
	if err := m.Bind(context.Background(), "acct"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	// Seed row removed out of band.
	remote.mu.Lock()
	delete(remote.rows, "acct")
	remote.mu.Unlock()

	found, err := m.PullNow(context.Background())
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if found {
		t.Error("expected no remote data")
	}
	if *hydrations != 0 {
		t.Error("missing remote data must not hydrate")
	}
}

func TestPushNowRequiresAccount(t *testing.T) {
	m, _, _ := setup(t, nil, newFakeRemote())
	if err := m.PushNow(context.Background()); err == nil {
		t.Error("expected error when no account is bound")
	}
	if _, err := m.PullNow(context.Background()); err == nil {
		t.Error("expected error when no account is bound")
	}
}

func TestPushNowUpsertsCurrentSnapshot(t *testing.T) {
	remote := newFakeRemote()
	m, c, _ := setup(t, nil, remote)
	if err := m.Bind(context.Background(), "acct"); err != nil {
		t.Fatalf("bind: %v", err)
	}

	c.Save(snapshotAt(time.Now(), "New"))
	if err := m.PushNow(context.Background()); err != nil {
		t.Fatalf("push: %v", err)
	}

	row, ok := remote.row("acct")
	if !ok || len(row.Friends) != 1 || row.Friends[0].Name != "New" {
		t.Errorf("remote row = %+v, want current snapshot", row.Friends)
	}
}
