package model

import (
	"time"

	"github.com/google/uuid"
)

type TenantType string

const (
	TenantHeadOffice TenantType = "matriz"
	TenantBranch     TenantType = "filial"
)

// Tenant is one company/site scope. A head office may have branch tenants
// pointing back at it through ParentID; the link is a plain lookup relation
// and may dangle or cycle, so consumers must never follow it recursively.
type Tenant struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Type      TenantType `json:"type"`
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	OwnerID   *uuid.UUID `json:"owner_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (Tenant) TableName() string { return "tenants" }

func (t Tenant) IsBranch() bool { return t.Type == TenantBranch }
