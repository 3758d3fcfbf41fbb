package command

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	domainerror "github.com/yunhaishang/Mallorn-sub002/internal/domain/error"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/event"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/inbound/command"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/messaging"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/repository"

	"github.com/yunhaishang/Mallorn-sub002/internal/app/service"
)

// issueTokenPairHandler implements command.IssueTokenPairHandler.
type issueTokenPairHandler struct {
	principalRepo  repository.PrincipalRepository
	credentialRepo repository.CredentialRepository
	tokenService   service.TokenService
	publisher      messaging.EventPublisher
	credConfig     model.CredentialConfig
	now            func() time.Time
}

// NewIssueTokenPairHandler creates a new IssueTokenPairHandler.
func NewIssueTokenPairHandler(
	principalRepo repository.PrincipalRepository,
	credentialRepo repository.CredentialRepository,
	tokenService service.TokenService,
	publisher messaging.EventPublisher,
	credConfig model.CredentialConfig,
) command.IssueTokenPairHandler {
	if credConfig.Lifetime <= 0 {
		credConfig = model.DefaultCredentialConfig()
	}
	return &issueTokenPairHandler{
		principalRepo:  principalRepo,
		credentialRepo: credentialRepo,
		tokenService:   tokenService,
		publisher:      publisher,
		credConfig:     credConfig,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (h *issueTokenPairHandler) Handle(ctx context.Context, cmd command.IssueTokenPair) (command.TokenPairResult, error) {
	if cmd.PrincipalID == uuid.Nil {
		return command.TokenPairResult{}, domainerror.ErrPrincipalIDRequired
	}
	if cmd.DeviceID == "" {
		return command.TokenPairResult{}, domainerror.ErrDeviceIDRequired
	}

	principal, err := h.principalRepo.FindByID(ctx, cmd.PrincipalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return command.TokenPairResult{}, domainerror.ErrPrincipalNotFound
		}
		return command.TokenPairResult{}, err
	}

	if err := principal.CanAuthenticate(h.now()); err != nil {
		return command.TokenPairResult{}, err
	}

	refreshToken, refreshTokenHash, err := h.tokenService.GenerateRefreshToken()
	if err != nil {
		return command.TokenPairResult{}, err
	}

	credential, err := model.NewRefreshCredential(principal.ID(), refreshTokenHash, cmd.DeviceID, h.credConfig)
	if err != nil {
		return command.TokenPairResult{}, err
	}

	if err := h.credentialRepo.Create(ctx, credential); err != nil {
		return command.TokenPairResult{}, err
	}

	accessToken, claims, err := h.tokenService.GenerateAccessToken(principal)
	if err != nil {
		return command.TokenPairResult{}, err
	}

	_ = h.publisher.Publish(ctx, event.NewTokenPairIssued(credential.ID(), principal.ID(), cmd.DeviceID))

	return command.TokenPairResult{
		AccessToken:          accessToken,
		RefreshToken:         refreshToken,
		AccessTokenExpiresAt: claims.ExpiresAt.Time,
		CredentialID:         credential.ID(),
	}, nil
}
