package model

import "github.com/google/uuid"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Principal is the authenticated caller as seen by the analytics layer.
// AllowedTenants, when non-empty, is an explicit allow-list that overrides
// ownership and branch expansion during scope resolution.
type Principal struct {
	UserID         uuid.UUID
	TenantID       *uuid.UUID
	AllowedTenants []uuid.UUID
	AllowedPages   []string
	Role           Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

func (p Principal) KnownRole() bool {
	switch p.Role {
	case RoleAdmin, RoleOperator, RoleViewer:
		return true
	}
	return false
}
