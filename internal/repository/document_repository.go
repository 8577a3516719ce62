package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"gatehouse-analytics/internal/model"
	"gatehouse-analytics/internal/store"
)

const defaultPollInterval = 5 * time.Second

// DocumentRepository implements store.DocumentStore on PostgreSQL. Live
// subscriptions are polling queries: an immediate fetch followed by periodic
// refetches, each delivered as a whole-slot replacement snapshot.
type DocumentRepository struct {
	db           *gorm.DB
	pollInterval time.Duration
	log          zerolog.Logger
}

func NewDocumentRepository(db *gorm.DB, pollInterval time.Duration, log zerolog.Logger) *DocumentRepository {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &DocumentRepository{db: db, pollInterval: pollInterval, log: log}
}

func (r *DocumentRepository) GetTenant(ctx context.Context, id uuid.UUID) (model.Tenant, error) {
	var tenant model.Tenant
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Tenant{}, store.ErrTenantNotFound
	}
	if err != nil {
		return model.Tenant{}, err
	}
	return tenant, nil
}

func (r *DocumentRepository) ListTenants(ctx context.Context, filter store.TenantFilter) ([]model.Tenant, error) {
	query := r.db.WithContext(ctx).Model(&model.Tenant{}).Order("created_at ASC")
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.ParentID != nil {
		query = query.Where("parent_id = ?", *filter.ParentID)
	}
	var tenants []model.Tenant
	if err := query.Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

func (r *DocumentRepository) FetchSnapshot(ctx context.Context, tenantID uuid.UUID, col store.Collection, filter store.RecordFilter) (store.Snapshot, error) {
	switch col {
	case store.CollectionEntries:
		entries, err := r.fetchEntries(ctx, tenantID, filter)
		return store.Snapshot{Entries: entries}, err
	case store.CollectionOccurrences:
		occurrences, err := r.fetchOccurrences(ctx, tenantID, filter)
		return store.Snapshot{Occurrences: occurrences}, err
	case store.CollectionDrivers:
		drivers, err := r.fetchDrivers(ctx, tenantID)
		return store.Snapshot{Drivers: drivers}, err
	}
	return store.Snapshot{}, errors.New("unknown collection")
}

func (r *DocumentRepository) fetchEntries(ctx context.Context, tenantID uuid.UUID, filter store.RecordFilter) ([]model.EntryRecord, error) {
	query := r.db.WithContext(ctx).
		Model(&model.EntryRecord{}).
		Where("tenant_id = ?", tenantID)

	if filter.Limit > 0 {
		// recent mode: newest page by insertion order, no time bounds
		query = query.Order("created_at DESC").Limit(filter.Limit)
	} else {
		query = applyRange(query, "entry_time", filter.Range).Order("entry_time ASC")
	}

	var entries []model.EntryRecord
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *DocumentRepository) fetchOccurrences(ctx context.Context, tenantID uuid.UUID, filter store.RecordFilter) ([]model.OccurrenceRecord, error) {
	query := r.db.WithContext(ctx).
		Model(&model.OccurrenceRecord{}).
		Where("tenant_id = ?", tenantID)
	query = applyRange(query, "created_at", filter.Range).Order("created_at ASC")

	var occurrences []model.OccurrenceRecord
	if err := query.Find(&occurrences).Error; err != nil {
		return nil, err
	}
	return occurrences, nil
}

func (r *DocumentRepository) fetchDrivers(ctx context.Context, tenantID uuid.UUID) ([]model.DriverRecord, error) {
	var drivers []model.DriverRecord
	err := r.db.WithContext(ctx).
		Model(&model.DriverRecord{}).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Find(&drivers).Error
	if err != nil {
		return nil, err
	}
	return drivers, nil
}

func applyRange(query *gorm.DB, column string, rng model.DateRange) *gorm.DB {
	if rng.Unbounded() {
		return query
	}
	if !rng.From.IsZero() {
		query = query.Where(column+" >= ?", rng.From)
	}
	if !rng.OpenEnded && !rng.To.IsZero() {
		query = query.Where(column+" <= ?", rng.To)
	}
	return query
}

// Subscribe starts a polling live query. Cancellation blocks until any
// in-flight callback returns, so once the cancel func has returned no further
// callbacks fire.
func (r *DocumentRepository) Subscribe(ctx context.Context, tenantID uuid.UUID, col store.Collection, filter store.RecordFilter, fn func(store.Snapshot, error)) store.CancelFunc {
	sub := &subscription{done: make(chan struct{})}

	go func() {
		deliver := func() {
			snap, err := r.FetchSnapshot(ctx, tenantID, col, filter)
			sub.deliver(snap, err, fn)
		}

		deliver()

		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.done:
				return
			case <-ticker.C:
				deliver()
			}
		}
	}()

	return sub.cancel
}

type subscription struct {
	mu        sync.Mutex
	cancelled bool
	once      sync.Once
	done      chan struct{}
}

func (s *subscription) deliver(snap store.Snapshot, err error, fn func(store.Snapshot, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	fn(snap, err)
}

func (s *subscription) cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.done) })
}
