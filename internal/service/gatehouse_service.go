package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"gatehouse-analytics/internal/aggregate"
	"gatehouse-analytics/internal/live"
	"gatehouse-analytics/internal/model"
	"gatehouse-analytics/internal/scope"
	"gatehouse-analytics/internal/store"
)

var ErrPermissionDenied = errors.New("permission denied")

// DashboardQuery carries the caller-selected window and duration boundaries.
// Zero duration fields fall back to the service defaults.
type DashboardQuery struct {
	Selector       model.RangeSelector
	CustomFrom     time.Time
	CustomTo       time.Time
	ExplicitTenant *uuid.UUID
	Durations      model.DurationConfig
}

type GatehouseService struct {
	store       store.DocumentStore
	resolver    *scope.Resolver
	durations   model.DurationConfig
	recentLimit int
	log         zerolog.Logger
	now         func() time.Time
}

func NewGatehouseService(st store.DocumentStore, resolver *scope.Resolver, durations model.DurationConfig, recentLimit int, log zerolog.Logger) *GatehouseService {
	return &GatehouseService{
		store:       st,
		resolver:    resolver,
		durations:   durations.Normalize(),
		recentLimit: recentLimit,
		log:         log,
		now:         time.Now,
	}
}

// GetDashboard computes a metrics snapshot synchronously from the current
// store contents. A tenant whose data cannot be read contributes an empty
// record set and is reported as degraded; it never aborts the others.
func (s *GatehouseService) GetDashboard(ctx context.Context, principal model.Principal, query DashboardQuery) (*model.MetricsSnapshot, error) {
	tenants, err := s.resolveScope(ctx, principal, query.ExplicitTenant)
	if err != nil {
		return nil, err
	}

	rng, err := s.resolveRange(query)
	if err != nil {
		return nil, err
	}
	cfg := s.durationsFor(query)

	input := aggregate.Input{
		Tenants:     tenants,
		Entries:     make(map[uuid.UUID][]model.EntryRecord, len(tenants)),
		Occurrences: make(map[uuid.UUID][]model.OccurrenceRecord, len(tenants)),
		Drivers:     make(map[uuid.UUID][]model.DriverRecord, len(tenants)),
	}

	for _, tenant := range tenants {
		degraded := false
		for _, col := range store.Collections() {
			snap, err := s.store.FetchSnapshot(ctx, tenant.ID, col, snapshotFilter(col, rng, s.recentLimit))
			if err != nil {
				degraded = true
				s.log.Warn().Err(err).
					Str("tenant", tenant.ID.String()).
					Str("collection", string(col)).
					Msg("snapshot fetch failed")
				continue
			}
			switch col {
			case store.CollectionEntries:
				input.Entries[tenant.ID] = snap.Entries
			case store.CollectionOccurrences:
				input.Occurrences[tenant.ID] = snap.Occurrences
			case store.CollectionDrivers:
				input.Drivers[tenant.ID] = snap.Drivers
			}
		}
		if degraded {
			input.Degraded = append(input.Degraded, tenant.ID)
		}
	}

	snapshot := aggregate.Compute(input, rng, cfg, s.now())
	return &snapshot, nil
}

// StreamDashboard opens a live subscription epoch for the query and forwards
// every recomputed snapshot to fn. It blocks until ctx is cancelled; the
// epoch and all its subscriptions are torn down before returning.
func (s *GatehouseService) StreamDashboard(ctx context.Context, principal model.Principal, query DashboardQuery, fn func(model.MetricsSnapshot)) error {
	tenants, err := s.resolveScope(ctx, principal, query.ExplicitTenant)
	if err != nil {
		return err
	}
	rng, err := s.resolveRange(query)
	if err != nil {
		return err
	}

	mux := live.New(s.store, s.log, fn)
	mux.Start(ctx, live.Params{
		Tenants:     tenants,
		Range:       rng,
		Durations:   s.durationsFor(query),
		RecentLimit: s.recentLimit,
	})
	defer mux.Stop()

	<-ctx.Done()
	return nil
}

// ListEntries returns the flattened entry listing, newest first. Cached
// fields are the primary source; the live driver record fills gaps only when
// the cache is absent.
func (s *GatehouseService) ListEntries(ctx context.Context, principal model.Principal, query DashboardQuery) ([]model.EntryView, error) {
	tenants, err := s.resolveScope(ctx, principal, query.ExplicitTenant)
	if err != nil {
		return nil, err
	}

	if query.Selector == "" {
		query.Selector = model.RangeRecent
	}
	rng, err := s.resolveRange(query)
	if err != nil {
		return nil, err
	}

	views := make([]model.EntryView, 0)
	for _, tenant := range tenants {
		entrySnap, err := s.store.FetchSnapshot(ctx, tenant.ID, store.CollectionEntries, snapshotFilter(store.CollectionEntries, rng, s.recentLimit))
		if err != nil {
			return nil, err
		}

		var drivers []model.DriverRecord
		if needsDriverJoin(entrySnap.Entries) {
			driverSnap, err := s.store.FetchSnapshot(ctx, tenant.ID, store.CollectionDrivers, store.RecordFilter{})
			if err == nil {
				drivers = driverSnap.Drivers
			}
		}

		driversByID := make(map[uuid.UUID]model.DriverRecord, len(drivers))
		for _, driver := range drivers {
			driversByID[driver.ID] = driver
		}

		for _, entry := range entrySnap.Entries {
			view := model.EntryView{
				ID:             entry.ID,
				TenantID:       entry.TenantID,
				EntryTime:      entry.EntryTime,
				ExitTime:       entry.ExitTime,
				DriverName:     entry.Cached.DriverName,
				DriverDocument: entry.Cached.DriverDocument,
				VehiclePlate:   entry.Cached.VehiclePlate,
				VehicleModel:   entry.Cached.VehicleModel,
				OnPremises:     entry.OnPremises(),
			}
			if view.DriverName == "" && entry.DriverID != nil {
				if driver, ok := driversByID[*entry.DriverID]; ok {
					view.DriverName = driver.Name
					if view.DriverDocument == "" {
						view.DriverDocument = driver.Document
					}
				}
			}
			views = append(views, view)
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].EntryTime.After(views[j].EntryTime)
	})
	if rng.Selector == model.RangeRecent && s.recentLimit > 0 && len(views) > s.recentLimit {
		views = views[:s.recentLimit]
	}

	return views, nil
}

// GetScope exposes the caller's resolved tenant list for the company
// selector.
func (s *GatehouseService) GetScope(ctx context.Context, principal model.Principal) ([]model.Tenant, error) {
	return s.resolveScope(ctx, principal, nil)
}

func (s *GatehouseService) resolveScope(ctx context.Context, principal model.Principal, explicit *uuid.UUID) ([]model.Tenant, error) {
	if !principal.KnownRole() {
		return nil, ErrPermissionDenied
	}
	return s.resolver.Resolve(ctx, principal, explicit)
}

func (s *GatehouseService) resolveRange(query DashboardQuery) (model.DateRange, error) {
	selector := query.Selector
	if selector == "" {
		selector = model.RangeToday
	}
	return model.ResolveRange(selector, s.now(), query.CustomFrom, query.CustomTo)
}

func (s *GatehouseService) durationsFor(query DashboardQuery) model.DurationConfig {
	cfg := s.durations
	if query.Durations.ShortLimitHours > 0 {
		cfg.ShortLimitHours = query.Durations.ShortLimitHours
	}
	if query.Durations.MediumLimitHours > 0 {
		cfg.MediumLimitHours = query.Durations.MediumLimitHours
	}
	if query.Durations.DelayedThresholdHours > 0 {
		cfg.DelayedThresholdHours = query.Durations.DelayedThresholdHours
	}
	return cfg.Normalize()
}

func snapshotFilter(col store.Collection, rng model.DateRange, recentLimit int) store.RecordFilter {
	filter := store.RecordFilter{}
	switch col {
	case store.CollectionEntries:
		filter.Range = rng
		if rng.Selector == model.RangeRecent {
			filter.Limit = recentLimit
		}
	case store.CollectionOccurrences:
		filter.Range = rng
	}
	return filter
}

func needsDriverJoin(entries []model.EntryRecord) bool {
	for _, entry := range entries {
		if entry.Cached.DriverName == "" && entry.DriverID != nil {
			return true
		}
	}
	return false
}
