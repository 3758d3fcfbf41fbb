package command

import (
	"context"
	"errors"
	"time"

	domainerror "github.com/yunhaishang/Mallorn-sub002/internal/domain/error"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/event"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/inbound/command"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/cache"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/messaging"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/repository"
	"go.uber.org/zap"
)

// TokenHasher provides refresh token hashing capability.
type TokenHasher interface {
	HashRefreshToken(token string) string
}

// revokeTokenHandler implements command.RevokeTokenHandler.
type revokeTokenHandler struct {
	credentialRepo repository.CredentialRepository
	blacklist      cache.TokenBlacklist
	tokenHasher    TokenHasher
	publisher      messaging.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewRevokeTokenHandler creates a new RevokeTokenHandler.
func NewRevokeTokenHandler(
	credentialRepo repository.CredentialRepository,
	blacklist cache.TokenBlacklist,
	tokenHasher TokenHasher,
	publisher messaging.EventPublisher,
	logger *zap.Logger,
) command.RevokeTokenHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &revokeTokenHandler{
		credentialRepo: credentialRepo,
		blacklist:      blacklist,
		tokenHasher:    tokenHasher,
		publisher:      publisher,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (h *revokeTokenHandler) Handle(ctx context.Context, cmd command.RevokeToken) (command.RevokeTokenResult, error) {
	if cmd.RefreshToken == "" {
		return command.RevokeTokenResult{}, domainerror.ErrRefreshTokenRequired
	}

	tokenHash := h.tokenHasher.HashRefreshToken(cmd.RefreshToken)

	credential, err := h.credentialRepo.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return command.RevokeTokenResult{}, domainerror.ErrRefreshTokenInvalid
		}
		return command.RevokeTokenResult{}, err
	}

	reason := cmd.Reason
	if reason == "" {
		reason = "logout"
	}

	// Blacklist the companion access token for its remaining lifetime so
	// it dies with the session instead of riding out its expiry. The write
	// is best-effort: a cache outage must not block the logout itself.
	if cmd.AccessTokenID != "" {
		if ttl := cmd.AccessTokenExpiresAt.Sub(h.now()); ttl > 0 {
			if err := h.blacklist.Add(ctx, cmd.AccessTokenID, ttl); err != nil {
				h.logger.Warn("access token blacklist write failed",
					zap.String("token_id", cmd.AccessTokenID),
					zap.Error(err))
			}
		}
	}

	// Already revoked: succeed without a second event (idempotent).
	if credential.Revoked() {
		return command.RevokeTokenResult{CredentialID: credential.ID()}, nil
	}

	if err := h.credentialRepo.Revoke(ctx, credential.ID(), reason, "user"); err != nil {
		return command.RevokeTokenResult{}, err
	}

	_ = h.publisher.Publish(ctx, event.NewTokenRevoked(credential.ID(), credential.PrincipalID(), reason))

	return command.RevokeTokenResult{CredentialID: credential.ID()}, nil
}
