package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
)

// CredentialRepository defines the interface for refresh credential
// persistence. Performance precondition: unique index on token_hash,
// composite indexes on (principal_id, revoked, expires_at) and
// (device_id, principal_id, revoked).
type CredentialRepository interface {
	// Create persists a new refresh credential.
	Create(ctx context.Context, cred *model.RefreshCredential) error

	// FindByTokenHash retrieves a credential by its token hash.
	FindByTokenHash(ctx context.Context, hash string) (*model.RefreshCredential, error)

	// FindByID retrieves a credential by its ID.
	FindByID(ctx context.Context, id uuid.UUID) (*model.RefreshCredential, error)

	// Rotate atomically marks the credential identified by id as replaced
	// by successor and inserts the successor row, in one transaction. The
	// transition is guarded by a conditional update: it succeeds only if
	// the row is still unrevoked with no replaced_by set. Exactly one of
	// any number of concurrent callers wins; the rest get
	// ErrStaleTransition. This guarantee holds across process instances.
	Rotate(ctx context.Context, id uuid.UUID, successor *model.RefreshCredential) error

	// Revoke marks a credential revoked with a reason and actor.
	// Idempotent: revoking an already revoked credential is a no-op.
	Revoke(ctx context.Context, id uuid.UUID, reason, actor string) error

	// RevokeChain revokes the credential and every successor reachable
	// through replaced_by links. Returns the number of credentials
	// transitioned to revoked.
	RevokeChain(ctx context.Context, id uuid.UUID, reason, actor string) (int, error)

	// RevokeAllForPrincipal revokes every active credential belonging to
	// a principal. Returns the number revoked.
	RevokeAllForPrincipal(ctx context.Context, principalID uuid.UUID, reason, actor string) (int, error)

	// DeleteExpired removes credentials that are both expired and
	// revoked or rotated, and whose expiry lies further in the past than
	// the retention window. Returns the number deleted. Safe to call
	// repeatedly and concurrently with issuance and rotation.
	DeleteExpired(ctx context.Context, retention time.Duration) (int, error)
}
