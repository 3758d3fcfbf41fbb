package query

import (
	"context"

	"github.com/yunhaishang/Mallorn-sub002/internal/app/service"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/inbound/query"
)

// getPrincipalHandler implements query.GetPrincipalHandler.
type getPrincipalHandler struct {
	userCache service.UserCache
}

// NewGetPrincipalHandler creates a new GetPrincipalHandler.
func NewGetPrincipalHandler(userCache service.UserCache) query.GetPrincipalHandler {
	return &getPrincipalHandler{userCache: userCache}
}

func (h *getPrincipalHandler) Handle(ctx context.Context, qry query.GetPrincipal) (query.GetPrincipalResult, error) {
	principal, err := h.userCache.GetProfile(ctx, qry.PrincipalID)
	if err != nil {
		return query.GetPrincipalResult{}, err
	}
	return query.GetPrincipalResult{Principal: principal}, nil
}

// getPrincipalBatchHandler implements query.GetPrincipalBatchHandler.
type getPrincipalBatchHandler struct {
	userCache service.UserCache
}

// NewGetPrincipalBatchHandler creates a new GetPrincipalBatchHandler.
func NewGetPrincipalBatchHandler(userCache service.UserCache) query.GetPrincipalBatchHandler {
	return &getPrincipalBatchHandler{userCache: userCache}
}

func (h *getPrincipalBatchHandler) Handle(ctx context.Context, qry query.GetPrincipalBatch) (query.GetPrincipalBatchResult, error) {
	principals, err := h.userCache.GetMany(ctx, qry.PrincipalIDs)
	if err != nil {
		return query.GetPrincipalBatchResult{}, err
	}
	return query.GetPrincipalBatchResult{Principals: principals}, nil
}

// getPermissionsHandler implements query.GetPermissionsHandler.
type getPermissionsHandler struct {
	userCache service.UserCache
}

// NewGetPermissionsHandler creates a new GetPermissionsHandler.
func NewGetPermissionsHandler(userCache service.UserCache) query.GetPermissionsHandler {
	return &getPermissionsHandler{userCache: userCache}
}

func (h *getPermissionsHandler) Handle(ctx context.Context, qry query.GetPermissions) (query.GetPermissionsResult, error) {
	permission, err := h.userCache.GetPermissions(ctx, qry.PrincipalID)
	if err != nil {
		return query.GetPermissionsResult{}, err
	}
	return query.GetPermissionsResult{Permission: permission}, nil
}
