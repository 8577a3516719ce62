// Package live maintains one subscription per (tenant, collection) pair and
// recomputes the metrics snapshot whenever a slot reports. Each parameter set
// gets its own epoch; a late callback from a superseded epoch is discarded so
// stale tenant data can never leak into a newer aggregation pass.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gatehouse-analytics/internal/aggregate"
	"gatehouse-analytics/internal/model"
	"gatehouse-analytics/internal/store"
)

// Params is one subscription epoch's configuration.
type Params struct {
	Tenants     []model.Tenant
	Range       model.DateRange
	Durations   model.DurationConfig
	RecentLimit int
}

type slotKey struct {
	tenant     uuid.UUID
	collection store.Collection
}

type slot struct {
	loaded bool
	failed bool
	data   store.Snapshot
}

type Multiplexer struct {
	store      store.DocumentStore
	log        zerolog.Logger
	onSnapshot func(model.MetricsSnapshot)
	now        func() time.Time

	mu      sync.Mutex
	epoch   uint64
	params  Params
	slots   map[slotKey]*slot
	cancels []store.CancelFunc
}

// New builds a multiplexer. onSnapshot fires after every recomputation once
// all slots of the current epoch have reported at least once.
func New(st store.DocumentStore, log zerolog.Logger, onSnapshot func(model.MetricsSnapshot)) *Multiplexer {
	return &Multiplexer{
		store:      st,
		log:        log,
		onSnapshot: onSnapshot,
		now:        time.Now,
	}
}

// Start opens a new epoch for the given parameters. All subscriptions of the
// previous epoch are cancelled and their accumulated slot state is dropped
// before the new ones open.
func (m *Multiplexer) Start(ctx context.Context, params Params) {
	m.mu.Lock()
	m.epoch++
	epoch := m.epoch
	old := m.cancels
	m.cancels = nil
	m.params = params
	m.slots = make(map[slotKey]*slot, len(params.Tenants)*len(store.Collections()))
	for _, tenant := range params.Tenants {
		for _, col := range store.Collections() {
			m.slots[slotKey{tenant: tenant.ID, collection: col}] = &slot{}
		}
	}
	m.mu.Unlock()

	for _, cancel := range old {
		cancel()
	}

	for _, tenant := range params.Tenants {
		for _, col := range store.Collections() {
			key := slotKey{tenant: tenant.ID, collection: col}
			filter := subscriptionFilter(col, params)
			cancel := m.store.Subscribe(ctx, tenant.ID, col, filter, func(snap store.Snapshot, err error) {
				m.onUpdate(epoch, key, snap, err)
			})
			m.register(epoch, cancel)
		}
	}
}

// Stop cancels the current epoch entirely.
func (m *Multiplexer) Stop() {
	m.mu.Lock()
	m.epoch++
	old := m.cancels
	m.cancels = nil
	m.slots = nil
	m.mu.Unlock()

	for _, cancel := range old {
		cancel()
	}
}

// Current returns the snapshot computed from the present slot contents. The
// second return is false while the all-loaded gate is still closed.
func (m *Multiplexer) Current() (model.MetricsSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.allLoadedLocked() {
		return model.MetricsSnapshot{}, false
	}
	return m.computeLocked(), true
}

// register adds a cancel func to the epoch it was opened under. If the epoch
// was superseded while the subscription was being opened, the subscription is
// cancelled immediately instead.
func (m *Multiplexer) register(epoch uint64, cancel store.CancelFunc) {
	m.mu.Lock()
	if epoch == m.epoch {
		m.cancels = append(m.cancels, cancel)
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	cancel()
}

func (m *Multiplexer) onUpdate(epoch uint64, key slotKey, snap store.Snapshot, err error) {
	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		return
	}
	s, ok := m.slots[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	if err != nil {
		// the failing slot contributes an empty record set; the other
		// tenants keep aggregating
		s.loaded = true
		s.failed = true
		s.data = store.Snapshot{}
		m.log.Warn().Err(err).
			Str("tenant", key.tenant.String()).
			Str("collection", string(key.collection)).
			Msg("subscription failed")
	} else {
		s.loaded = true
		s.failed = false
		s.data = snap
	}

	if !m.allLoadedLocked() {
		m.mu.Unlock()
		return
	}
	result := m.computeLocked()
	fn := m.onSnapshot
	m.mu.Unlock()

	if fn != nil {
		fn(result)
	}
}

// allLoadedLocked is the gate that defers aggregation until every resolved
// tenant has produced at least one snapshot for every collection, avoiding
// transient undercounts while a large tenant set is still loading.
func (m *Multiplexer) allLoadedLocked() bool {
	if len(m.slots) == 0 {
		return false
	}
	for _, s := range m.slots {
		if !s.loaded {
			return false
		}
	}
	return true
}

func (m *Multiplexer) computeLocked() model.MetricsSnapshot {
	input := aggregate.Input{
		Tenants:     m.params.Tenants,
		Entries:     make(map[uuid.UUID][]model.EntryRecord, len(m.params.Tenants)),
		Occurrences: make(map[uuid.UUID][]model.OccurrenceRecord, len(m.params.Tenants)),
		Drivers:     make(map[uuid.UUID][]model.DriverRecord, len(m.params.Tenants)),
	}
	for _, tenant := range m.params.Tenants {
		degraded := false
		for _, col := range store.Collections() {
			s := m.slots[slotKey{tenant: tenant.ID, collection: col}]
			if s == nil {
				continue
			}
			if s.failed {
				degraded = true
			}
			switch col {
			case store.CollectionEntries:
				input.Entries[tenant.ID] = s.data.Entries
			case store.CollectionOccurrences:
				input.Occurrences[tenant.ID] = s.data.Occurrences
			case store.CollectionDrivers:
				input.Drivers[tenant.ID] = s.data.Drivers
			}
		}
		if degraded {
			input.Degraded = append(input.Degraded, tenant.ID)
		}
	}
	return aggregate.Compute(input, m.params.Range, m.params.Durations, m.now())
}

func subscriptionFilter(col store.Collection, params Params) store.RecordFilter {
	filter := store.RecordFilter{}
	switch col {
	case store.CollectionEntries:
		filter.Range = params.Range
		if params.Range.Selector == model.RangeRecent {
			filter.Limit = params.RecentLimit
		}
	case store.CollectionOccurrences:
		filter.Range = params.Range
	case store.CollectionDrivers:
		// drivers are always unfiltered
	}
	return filter
}
