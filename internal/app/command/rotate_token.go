package command

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	domainerror "github.com/yunhaishang/Mallorn-sub002/internal/domain/error"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/event"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/inbound/command"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/messaging"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/repository"

	"github.com/yunhaishang/Mallorn-sub002/internal/app/service"
)

// Reuse revocation scopes. On replay, either the whole rotation chain or
// just the presented credential is revoked.
const (
	ReuseRevocationChain  = "chain"
	ReuseRevocationSingle = "single"
)

// RotationConfig controls rotation behavior.
type RotationConfig struct {
	Credential model.CredentialConfig

	// ReuseRevocationScope selects what gets revoked when a rotated
	// credential is presented again.
	ReuseRevocationScope string
}

// DefaultRotationConfig returns default rotation configuration.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		Credential:           model.DefaultCredentialConfig(),
		ReuseRevocationScope: ReuseRevocationChain,
	}
}

// rotateTokenHandler implements command.RotateTokenHandler.
type rotateTokenHandler struct {
	principalRepo  repository.PrincipalRepository
	credentialRepo repository.CredentialRepository
	tokenService   service.TokenService
	publisher      messaging.EventPublisher
	config         RotationConfig
	logger         *zap.Logger
	now            func() time.Time
}

// NewRotateTokenHandler creates a new RotateTokenHandler.
func NewRotateTokenHandler(
	principalRepo repository.PrincipalRepository,
	credentialRepo repository.CredentialRepository,
	tokenService service.TokenService,
	publisher messaging.EventPublisher,
	config RotationConfig,
	logger *zap.Logger,
) command.RotateTokenHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Credential.Lifetime <= 0 {
		config.Credential = model.DefaultCredentialConfig()
	}
	if config.ReuseRevocationScope == "" {
		config.ReuseRevocationScope = ReuseRevocationChain
	}
	return &rotateTokenHandler{
		principalRepo:  principalRepo,
		credentialRepo: credentialRepo,
		tokenService:   tokenService,
		publisher:      publisher,
		config:         config,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (h *rotateTokenHandler) Handle(ctx context.Context, cmd command.RotateToken) (command.TokenPairResult, error) {
	if cmd.RefreshToken == "" {
		return command.TokenPairResult{}, domainerror.ErrRefreshTokenRequired
	}

	tokenHash := h.tokenService.HashRefreshToken(cmd.RefreshToken)

	credential, err := h.credentialRepo.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		// Unknown token: the rejection never reveals whether the hash
		// ever existed.
		if errors.Is(err, repository.ErrNotFound) {
			return command.TokenPairResult{}, domainerror.ErrRefreshTokenInvalid
		}
		return command.TokenPairResult{}, err
	}

	// Replay takes precedence over every other rejection: a rotated
	// credential presented again means the token leaked.
	if credential.IsRotated() {
		return command.TokenPairResult{}, h.handleReuse(ctx, credential, cmd.DeviceID)
	}

	if err := credential.Validate(h.now()); err != nil {
		return command.TokenPairResult{}, err
	}

	if !credential.MatchesDevice(cmd.DeviceID) {
		return command.TokenPairResult{}, domainerror.ErrDeviceMismatch
	}

	principal, err := h.principalRepo.FindByID(ctx, credential.PrincipalID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return command.TokenPairResult{}, domainerror.ErrPrincipalNotFound
		}
		return command.TokenPairResult{}, err
	}
	if err := principal.CanAuthenticate(h.now()); err != nil {
		return command.TokenPairResult{}, err
	}

	newRefreshToken, newRefreshTokenHash, err := h.tokenService.GenerateRefreshToken()
	if err != nil {
		return command.TokenPairResult{}, err
	}

	successor, err := model.NewRefreshCredential(principal.ID(), newRefreshTokenHash, cmd.DeviceID, h.config.Credential)
	if err != nil {
		return command.TokenPairResult{}, err
	}

	// The persistence layer decides the race: only one concurrent caller
	// can transition the credential to rotated.
	if err := h.credentialRepo.Rotate(ctx, credential.ID(), successor); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			// A concurrent caller consumed the credential between our
			// read and the transition. For this caller that is reuse;
			// the full revocation response only fires if the stale token
			// is presented again.
			return command.TokenPairResult{}, domainerror.ErrTokenReuseDetected
		}
		return command.TokenPairResult{}, err
	}

	accessToken, claims, err := h.tokenService.GenerateAccessToken(principal)
	if err != nil {
		return command.TokenPairResult{}, err
	}

	_ = h.publisher.Publish(ctx, event.NewTokenRotated(credential.ID(), successor.ID(), principal.ID()))

	return command.TokenPairResult{
		AccessToken:          accessToken,
		RefreshToken:         newRefreshToken,
		AccessTokenExpiresAt: claims.ExpiresAt.Time,
		CredentialID:         successor.ID(),
	}, nil
}

// handleReuse revokes per the configured scope, publishes the security
// event, and returns the rejection. Revocation failures are logged, not
// surfaced: the caller is rejected either way.
func (h *rotateTokenHandler) handleReuse(ctx context.Context, credential *model.RefreshCredential, deviceID string) error {
	var (
		revoked int
		err     error
	)
	switch h.config.ReuseRevocationScope {
	case ReuseRevocationSingle:
		err = h.credentialRepo.Revoke(ctx, credential.ID(), "reuse_detected", "system")
		if err == nil {
			revoked = 1
		}
	default:
		revoked, err = h.credentialRepo.RevokeChain(ctx, credential.ID(), "reuse_detected", "system")
	}
	if err != nil {
		h.logger.Error("reuse revocation failed",
			zap.String("credential_id", credential.ID().String()),
			zap.Error(err))
	}

	h.logger.Warn("refresh token reuse detected",
		zap.String("credential_id", credential.ID().String()),
		zap.String("principal_id", credential.PrincipalID().String()),
		zap.String("device_id", deviceID),
		zap.Int("revoked", revoked))

	_ = h.publisher.Publish(ctx, event.NewTokenReuseDetected(
		credential.ID(), credential.PrincipalID(), deviceID, revoked))

	return domainerror.ErrTokenReuseDetected
}
