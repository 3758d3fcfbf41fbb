package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
)

// PrincipalRepository defines the interface for principal persistence.
// Consumed through simple CRUD-style calls; schema ownership lives with
// the persistence collaborator.
type PrincipalRepository interface {
	// FindByID retrieves a principal by its ID.
	FindByID(ctx context.Context, id uuid.UUID) (*model.Principal, error)

	// FindByEmail retrieves a principal by login email.
	FindByEmail(ctx context.Context, email string) (*model.Principal, error)

	// FindByIDs retrieves principals for the given IDs in a single
	// batched call. IDs with no record are simply absent from the result.
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Principal, error)

	// FindAdmin retrieves the administrative-role record for a principal.
	// Returns ErrNotFound for regular users.
	FindAdmin(ctx context.Context, principalID uuid.UUID) (*model.Admin, error)
}
