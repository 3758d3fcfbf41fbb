package command

import (
	"context"

	"github.com/google/uuid"

	domainerror "github.com/yunhaishang/Mallorn-sub002/internal/domain/error"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/event"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/inbound/command"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/messaging"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/repository"

	"github.com/yunhaishang/Mallorn-sub002/internal/app/service"
)

// revokeAllTokensHandler implements command.RevokeAllTokensHandler.
type revokeAllTokensHandler struct {
	credentialRepo repository.CredentialRepository
	userCache      service.UserCache
	publisher      messaging.EventPublisher
}

// NewRevokeAllTokensHandler creates a new RevokeAllTokensHandler.
func NewRevokeAllTokensHandler(
	credentialRepo repository.CredentialRepository,
	userCache service.UserCache,
	publisher messaging.EventPublisher,
) command.RevokeAllTokensHandler {
	return &revokeAllTokensHandler{
		credentialRepo: credentialRepo,
		userCache:      userCache,
		publisher:      publisher,
	}
}

func (h *revokeAllTokensHandler) Handle(ctx context.Context, cmd command.RevokeAllTokens) (command.RevokeAllTokensResult, error) {
	if cmd.PrincipalID == uuid.Nil {
		return command.RevokeAllTokensResult{}, domainerror.ErrPrincipalIDRequired
	}

	reason := cmd.Reason
	if reason == "" {
		reason = "revoke_all"
	}

	revokedCount, err := h.credentialRepo.RevokeAllForPrincipal(ctx, cmd.PrincipalID, reason, "system")
	if err != nil {
		return command.RevokeAllTokensResult{}, err
	}

	// Cached security info derives from the now-stale credential state.
	_ = h.userCache.InvalidateAll(ctx, cmd.PrincipalID)

	_ = h.publisher.Publish(ctx, event.NewTokenRevoked(cmd.PrincipalID, cmd.PrincipalID, reason))

	return command.RevokeAllTokensResult{RevokedCount: revokedCount}, nil
}
