package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gatehouse-analytics/internal/model"
	"gatehouse-analytics/internal/store"
)

// fakeStore never fires on its own; tests deliver snapshots by invoking the
// captured callbacks directly.
type fakeStore struct {
	mu        sync.Mutex
	subs      map[slotKey]func(store.Snapshot, error)
	cancelled int
}

func newFakeStore() *fakeStore {
	return &fakeStore{subs: make(map[slotKey]func(store.Snapshot, error))}
}

func (f *fakeStore) GetTenant(context.Context, uuid.UUID) (model.Tenant, error) {
	return model.Tenant{}, store.ErrTenantNotFound
}

func (f *fakeStore) ListTenants(context.Context, store.TenantFilter) ([]model.Tenant, error) {
	return nil, nil
}

func (f *fakeStore) FetchSnapshot(context.Context, uuid.UUID, store.Collection, store.RecordFilter) (store.Snapshot, error) {
	return store.Snapshot{}, nil
}

func (f *fakeStore) Subscribe(_ context.Context, tenantID uuid.UUID, col store.Collection, _ store.RecordFilter, fn func(store.Snapshot, error)) store.CancelFunc {
	key := slotKey{tenant: tenantID, collection: col}
	f.mu.Lock()
	f.subs[key] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, key)
		f.cancelled++
		f.mu.Unlock()
	}
}

func (f *fakeStore) push(t *testing.T, tenantID uuid.UUID, col store.Collection, snap store.Snapshot, err error) {
	t.Helper()
	f.mu.Lock()
	fn, ok := f.subs[slotKey{tenant: tenantID, collection: col}]
	f.mu.Unlock()
	if !ok {
		t.Fatalf("no subscription for %s/%s", tenantID, col)
	}
	fn(snap, err)
}

// callbacks returns a copy of the currently registered callbacks so a test
// can replay them after the epoch has moved on.
func (f *fakeStore) callbacks() map[slotKey]func(store.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make(map[slotKey]func(store.Snapshot, error), len(f.subs))
	for key, fn := range f.subs {
		copied[key] = fn
	}
	return copied
}

var (
	liveNow     = time.Date(2026, time.August, 31, 14, 30, 0, 0, time.Local)
	liveTenantA = model.Tenant{ID: uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001"), Name: "Matriz"}
	liveTenantB = model.Tenant{ID: uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002"), Name: "Filial"}
)

func liveParams(t *testing.T, tenants ...model.Tenant) Params {
	t.Helper()
	rng, err := model.ResolveRange(model.RangeToday, liveNow, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("resolve range: %v", err)
	}
	return Params{Tenants: tenants, Range: rng}
}

func liveEntries(tenant model.Tenant, n int) store.Snapshot {
	snap := store.Snapshot{}
	for i := 0; i < n; i++ {
		snap.Entries = append(snap.Entries, model.EntryRecord{
			ID:        uuid.New(),
			TenantID:  tenant.ID,
			EntryTime: liveNow.Add(-time.Duration(i+1) * time.Hour),
		})
	}
	return snap
}

func newTestMultiplexer(st store.DocumentStore, got *[]model.MetricsSnapshot) *Multiplexer {
	m := New(st, zerolog.Nop(), func(snapshot model.MetricsSnapshot) {
		*got = append(*got, snapshot)
	})
	m.now = func() time.Time { return liveNow }
	return m
}

func pushEmptyAux(t *testing.T, fake *fakeStore, tenants ...model.Tenant) {
	t.Helper()
	for _, tenant := range tenants {
		fake.push(t, tenant.ID, store.CollectionOccurrences, store.Snapshot{}, nil)
		fake.push(t, tenant.ID, store.CollectionDrivers, store.Snapshot{}, nil)
	}
}

func TestAllLoadedGate(t *testing.T) {
	fake := newFakeStore()
	var got []model.MetricsSnapshot
	m := newTestMultiplexer(fake, &got)

	m.Start(context.Background(), liveParams(t, liveTenantA, liveTenantB))

	fake.push(t, liveTenantA.ID, store.CollectionEntries, liveEntries(liveTenantA, 2), nil)
	pushEmptyAux(t, fake, liveTenantA)
	fake.push(t, liveTenantB.ID, store.CollectionEntries, liveEntries(liveTenantB, 1), nil)
	fake.push(t, liveTenantB.ID, store.CollectionOccurrences, store.Snapshot{}, nil)

	if len(got) != 0 {
		t.Fatalf("snapshot fired before every slot loaded")
	}
	if _, ok := m.Current(); ok {
		t.Fatalf("Current should report not-ready before the gate opens")
	}

	fake.push(t, liveTenantB.ID, store.CollectionDrivers, store.Snapshot{}, nil)

	if len(got) != 1 {
		t.Fatalf("expected 1 snapshot after last slot, got %d", len(got))
	}
	if got[0].TotalEntries != 3 {
		t.Fatalf("merged total = %d, want 3", got[0].TotalEntries)
	}
	if current, ok := m.Current(); !ok || current.TotalEntries != 3 {
		t.Fatalf("Current = %v/%v, want ready with 3 entries", current.TotalEntries, ok)
	}
}

func TestStaleEpochCallbackDiscarded(t *testing.T) {
	fake := newFakeStore()
	var got []model.MetricsSnapshot
	m := newTestMultiplexer(fake, &got)

	m.Start(context.Background(), liveParams(t, liveTenantA, liveTenantB))
	stale := fake.callbacks()

	m.Start(context.Background(), liveParams(t, liveTenantA))
	fake.push(t, liveTenantA.ID, store.CollectionEntries, liveEntries(liveTenantA, 1), nil)
	pushEmptyAux(t, fake, liveTenantA)

	if len(got) != 1 || got[0].TotalEntries != 1 {
		t.Fatalf("new epoch snapshot missing or wrong: %+v", got)
	}

	// replay a callback from the superseded epoch with a large payload
	key := slotKey{tenant: liveTenantB.ID, collection: store.CollectionEntries}
	stale[key](liveEntries(liveTenantB, 50), nil)

	if len(got) != 1 {
		t.Fatalf("stale callback triggered a recomputation")
	}
	if current, ok := m.Current(); !ok || current.TotalEntries != 1 {
		t.Fatalf("stale data leaked into current snapshot: %v/%v", current.TotalEntries, ok)
	}
}

func TestTenantRemovalClearsState(t *testing.T) {
	fake := newFakeStore()
	var got []model.MetricsSnapshot
	m := newTestMultiplexer(fake, &got)

	m.Start(context.Background(), liveParams(t, liveTenantA, liveTenantB))
	fake.push(t, liveTenantA.ID, store.CollectionEntries, liveEntries(liveTenantA, 3), nil)
	fake.push(t, liveTenantB.ID, store.CollectionEntries, liveEntries(liveTenantB, 3), nil)
	pushEmptyAux(t, fake, liveTenantA, liveTenantB)

	if len(got) != 1 || got[0].TotalEntries != 6 {
		t.Fatalf("two-tenant snapshot = %+v, want 6 entries", got)
	}

	// narrowing the scope to one tenant must not carry the other's records
	m.Start(context.Background(), liveParams(t, liveTenantA))
	fake.push(t, liveTenantA.ID, store.CollectionEntries, liveEntries(liveTenantA, 3), nil)
	pushEmptyAux(t, fake, liveTenantA)

	last := got[len(got)-1]
	if last.TotalEntries != 3 {
		t.Fatalf("narrowed snapshot total = %d, want 3", last.TotalEntries)
	}
	if last.Companies != nil {
		t.Fatalf("single-tenant snapshot should omit company stats")
	}
}

func TestSlotFailureDegradesTenant(t *testing.T) {
	fake := newFakeStore()
	var got []model.MetricsSnapshot
	m := newTestMultiplexer(fake, &got)

	m.Start(context.Background(), liveParams(t, liveTenantA, liveTenantB))
	fake.push(t, liveTenantA.ID, store.CollectionEntries, liveEntries(liveTenantA, 2), nil)
	pushEmptyAux(t, fake, liveTenantA)
	fake.push(t, liveTenantB.ID, store.CollectionEntries, store.Snapshot{}, errors.New("query timeout"))
	pushEmptyAux(t, fake, liveTenantB)

	if len(got) != 1 {
		t.Fatalf("failed slot should still open the gate, got %d snapshots", len(got))
	}
	snapshot := got[0]
	if snapshot.TotalEntries != 2 {
		t.Fatalf("healthy tenant entries = %d, want 2", snapshot.TotalEntries)
	}
	if len(snapshot.DegradedTenants) != 1 || snapshot.DegradedTenants[0] != liveTenantB.ID {
		t.Fatalf("degraded tenants = %v, want [%s]", snapshot.DegradedTenants, liveTenantB.ID)
	}

	// a later successful poll clears the degraded mark
	fake.push(t, liveTenantB.ID, store.CollectionEntries, liveEntries(liveTenantB, 1), nil)
	last := got[len(got)-1]
	if len(last.DegradedTenants) != 0 {
		t.Fatalf("recovered tenant still degraded: %v", last.DegradedTenants)
	}
	if last.TotalEntries != 3 {
		t.Fatalf("recovered total = %d, want 3", last.TotalEntries)
	}
}

func TestStopCancelsEverything(t *testing.T) {
	fake := newFakeStore()
	var got []model.MetricsSnapshot
	m := newTestMultiplexer(fake, &got)

	m.Start(context.Background(), liveParams(t, liveTenantA))
	stale := fake.callbacks()
	m.Stop()

	fake.mu.Lock()
	cancelled := fake.cancelled
	remaining := len(fake.subs)
	fake.mu.Unlock()
	if cancelled != len(store.Collections()) || remaining != 0 {
		t.Fatalf("cancelled %d subscriptions with %d remaining", cancelled, remaining)
	}

	key := slotKey{tenant: liveTenantA.ID, collection: store.CollectionEntries}
	stale[key](liveEntries(liveTenantA, 1), nil)
	if len(got) != 0 {
		t.Fatalf("callback after Stop produced a snapshot")
	}
	if _, ok := m.Current(); ok {
		t.Fatalf("Current should report not-ready after Stop")
	}
}
