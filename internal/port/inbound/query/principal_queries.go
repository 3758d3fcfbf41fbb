package query

import (
	"context"

	"github.com/google/uuid"

	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
)

// GetPrincipal retrieves a principal's profile by ID.
type GetPrincipal struct {
	PrincipalID uuid.UUID
}

func (q GetPrincipal) QueryName() string {
	return "auth.get_principal"
}

// GetPrincipalResult contains the principal.
type GetPrincipalResult struct {
	Principal *model.Principal
}

// GetPrincipalHandler handles the GetPrincipal query.
type GetPrincipalHandler interface {
	Handle(ctx context.Context, qry GetPrincipal) (GetPrincipalResult, error)
}

// GetPrincipalBatch retrieves profiles for several principals at once.
type GetPrincipalBatch struct {
	PrincipalIDs []uuid.UUID
}

func (q GetPrincipalBatch) QueryName() string {
	return "auth.get_principal_batch"
}

// GetPrincipalBatchResult maps found ids to principals; missing ids are
// simply absent.
type GetPrincipalBatchResult struct {
	Principals map[uuid.UUID]*model.Principal
}

// GetPrincipalBatchHandler handles the GetPrincipalBatch query.
type GetPrincipalBatchHandler interface {
	Handle(ctx context.Context, qry GetPrincipalBatch) (GetPrincipalBatchResult, error)
}

// GetPermissions retrieves the derived permission set for a principal.
type GetPermissions struct {
	PrincipalID uuid.UUID
}

func (q GetPermissions) QueryName() string {
	return "auth.get_permissions"
}

// GetPermissionsResult contains the permission set.
type GetPermissionsResult struct {
	Permission *model.Permission
}

// GetPermissionsHandler handles the GetPermissions query.
type GetPermissionsHandler interface {
	Handle(ctx context.Context, qry GetPermissions) (GetPermissionsResult, error)
}
