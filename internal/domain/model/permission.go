package model

import (
	"github.com/google/uuid"
)

// AdminRole distinguishes platform-wide admins from category-scoped ones.
type AdminRole string

const (
	AdminRoleSuper    AdminRole = "super"
	AdminRoleCategory AdminRole = "category"
)

func (r AdminRole) String() string { return string(r) }

// Admin is an administrative-role record backing permission derivation.
type Admin struct {
	PrincipalID uuid.UUID
	Role        AdminRole
	CategoryID  *int64
}

// Permission is the derived permission set for a principal: a role name
// plus an optional category scope. Computed from the admin lookup and
// cached under its own namespace.
type Permission struct {
	Role       string `json:"role"`
	CategoryID *int64 `json:"category_id,omitempty"`
}

// Permission role names.
const (
	RoleUser          = "user"
	RoleSuperAdmin    = "super_admin"
	RoleCategoryAdmin = "category_admin"
)

// DerivePermission computes the permission set for a principal given its
// admin record, which may be nil for regular users.
func DerivePermission(admin *Admin) Permission {
	if admin == nil {
		return Permission{Role: RoleUser}
	}
	switch admin.Role {
	case AdminRoleSuper:
		return Permission{Role: RoleSuperAdmin}
	case AdminRoleCategory:
		return Permission{Role: RoleCategoryAdmin, CategoryID: admin.CategoryID}
	default:
		return Permission{Role: RoleUser}
	}
}
