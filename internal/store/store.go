// Package store defines the document-store collaborator the analytics layer
// reads from. The engine never writes through this interface.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"gatehouse-analytics/internal/model"
)

var ErrTenantNotFound = errors.New("tenant not found")

type Collection string

const (
	CollectionEntries     Collection = "entries"
	CollectionOccurrences Collection = "occurrences"
	CollectionDrivers     Collection = "drivers"
)

func Collections() []Collection {
	return []Collection{CollectionEntries, CollectionOccurrences, CollectionDrivers}
}

// TenantFilter narrows ListTenants. Nil fields are ignored.
type TenantFilter struct {
	OwnerID  *uuid.UUID
	ParentID *uuid.UUID
}

// RecordFilter applies server-side range/limit matching. The range bounds
// entries by entry_time and occurrences by created_at; drivers are always
// unfiltered. Limit caps entries by insertion order in recent mode.
type RecordFilter struct {
	Range model.DateRange
	Limit int
}

// Snapshot is one full replacement value for a (tenant, collection) slot.
// Only the field matching the subscribed collection is populated.
type Snapshot struct {
	Entries     []model.EntryRecord
	Occurrences []model.OccurrenceRecord
	Drivers     []model.DriverRecord
}

type CancelFunc func()

// DocumentStore is the read-only persistence collaborator.
//
// Subscribe delivers an initial snapshot and then a fresh one on every change
// poll until cancelled. The returned CancelFunc guarantees that no further
// callbacks fire once it has returned.
type DocumentStore interface {
	GetTenant(ctx context.Context, id uuid.UUID) (model.Tenant, error)
	ListTenants(ctx context.Context, filter TenantFilter) ([]model.Tenant, error)
	FetchSnapshot(ctx context.Context, tenantID uuid.UUID, col Collection, filter RecordFilter) (Snapshot, error)
	Subscribe(ctx context.Context, tenantID uuid.UUID, col Collection, filter RecordFilter, fn func(Snapshot, error)) CancelFunc
}
