// Package scope resolves the set of tenants an aggregation runs over.
package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gatehouse-analytics/internal/model"
	"gatehouse-analytics/internal/store"
)

// ErrResolution marks a scope that could not be determined because tenant
// metadata could not be read. Callers must be able to tell this apart from a
// valid-but-empty scope, so resolution never returns an empty list on error.
var ErrResolution = errors.New("cannot determine tenant scope")

// TenantDirectory is the slice of the document store the resolver needs.
type TenantDirectory interface {
	GetTenant(ctx context.Context, id uuid.UUID) (model.Tenant, error)
	ListTenants(ctx context.Context, filter store.TenantFilter) ([]model.Tenant, error)
}

type Resolver struct {
	directory TenantDirectory
}

func NewResolver(directory TenantDirectory) *Resolver {
	return &Resolver{directory: directory}
}

// Resolve produces the ordered, de-duplicated tenant list for a principal.
// Precedence: explicit tenant, then the profile allow-list (no hierarchical
// expansion), then admin ownership, then the user's own tenant plus its
// direct branches. ParentID links are followed one level only and dangling or
// self-referencing links are ignored.
func (r *Resolver) Resolve(ctx context.Context, principal model.Principal, explicit *uuid.UUID) ([]model.Tenant, error) {
	if explicit != nil {
		tenant, err := r.directory.GetTenant(ctx, *explicit)
		if err != nil {
			return nil, fmt.Errorf("%w: explicit tenant %s: %v", ErrResolution, *explicit, err)
		}
		return []model.Tenant{tenant}, nil
	}

	if len(principal.AllowedTenants) > 0 {
		tenants := make([]model.Tenant, 0, len(principal.AllowedTenants))
		for _, id := range principal.AllowedTenants {
			tenant, err := r.directory.GetTenant(ctx, id)
			if errors.Is(err, store.ErrTenantNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("%w: allowed tenant %s: %v", ErrResolution, id, err)
			}
			tenants = append(tenants, tenant)
		}
		return dedup(tenants), nil
	}

	if principal.IsAdmin() {
		owner := principal.UserID
		tenants, err := r.directory.ListTenants(ctx, store.TenantFilter{OwnerID: &owner})
		if err != nil {
			return nil, fmt.Errorf("%w: owned tenants: %v", ErrResolution, err)
		}
		return r.withFallback(ctx, principal, dedup(tenants))
	}

	ownID := principal.UserID
	if principal.TenantID != nil {
		ownID = *principal.TenantID
	}

	var tenants []model.Tenant
	own, err := r.directory.GetTenant(ctx, ownID)
	if err == nil {
		tenants = append(tenants, own)
	} else if !errors.Is(err, store.ErrTenantNotFound) {
		return nil, fmt.Errorf("%w: own tenant %s: %v", ErrResolution, ownID, err)
	}

	branches, err := r.directory.ListTenants(ctx, store.TenantFilter{ParentID: &ownID})
	if err != nil {
		return nil, fmt.Errorf("%w: branches of %s: %v", ErrResolution, ownID, err)
	}
	for _, branch := range branches {
		if branch.ID == ownID {
			// self-referencing parent link, tolerated but never followed
			continue
		}
		tenants = append(tenants, branch)
	}

	return r.withFallback(ctx, principal, dedup(tenants))
}

// withFallback retries the bare profile tenant as a last resort when the
// resolved set came out empty.
func (r *Resolver) withFallback(ctx context.Context, principal model.Principal, tenants []model.Tenant) ([]model.Tenant, error) {
	if len(tenants) > 0 || principal.TenantID == nil {
		return tenants, nil
	}
	tenant, err := r.directory.GetTenant(ctx, *principal.TenantID)
	if errors.Is(err, store.ErrTenantNotFound) {
		return tenants, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: fallback tenant %s: %v", ErrResolution, *principal.TenantID, err)
	}
	return []model.Tenant{tenant}, nil
}

func dedup(tenants []model.Tenant) []model.Tenant {
	seen := make(map[uuid.UUID]struct{}, len(tenants))
	result := make([]model.Tenant, 0, len(tenants))
	for _, tenant := range tenants {
		if _, ok := seen[tenant.ID]; ok {
			continue
		}
		seen[tenant.ID] = struct{}{}
		result = append(result, tenant)
	}
	return result
}
