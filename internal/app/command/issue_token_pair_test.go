package command

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	domainerror "github.com/yunhaishang/Mallorn-sub002/internal/domain/error"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/event"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/inbound/command"
	"github.com/yunhaishang/Mallorn-sub002/tests/testutil"
	"github.com/yunhaishang/Mallorn-sub002/tests/testutil/mocks"

	"github.com/yunhaishang/Mallorn-sub002/internal/app/service"
)

func newTestTokenService(t *testing.T) service.TokenService {
	t.Helper()

	config := service.DefaultTokenConfig()
	config.SigningKey = []byte("test-signing-key-32-bytes-long!!")

	svc, err := service.NewTokenService(config)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestIssueTokenPair(t *testing.T) {
	t.Run("issues a usable pair", func(t *testing.T) {
		principalRepo := mocks.NewPrincipalRepository()
		credentialRepo := mocks.NewCredentialRepository()
		publisher := mocks.NewEventPublisher()
		tokens := newTestTokenService(t)
		principal := testutil.Fixtures.Principal()
		principalRepo.Seed(principal)

		handler := NewIssueTokenPairHandler(principalRepo, credentialRepo, tokens, publisher, model.DefaultCredentialConfig())

		result, err := handler.Handle(context.Background(), command.IssueTokenPair{
			PrincipalID: principal.ID(),
			DeviceID:    "device-1",
		})
		if err != nil {
			t.Fatalf("Handle returned error: %v", err)
		}
		if result.AccessToken == "" || result.RefreshToken == "" {
			t.Fatal("expected non-empty token pair")
		}

		// The access token verifies against the same service.
		claims, err := tokens.ValidateAccessToken(result.AccessToken)
		if err != nil {
			t.Fatalf("ValidateAccessToken returned error: %v", err)
		}
		gotID, err := claims.PrincipalID()
		if err != nil || gotID != principal.ID() {
			t.Errorf("claims principal = %v (%v), want %v", gotID, err, principal.ID())
		}

		// The refresh token is stored hashed, never raw.
		stored := credentialRepo.Get(result.CredentialID)
		if stored == nil {
			t.Fatal("credential was not persisted")
		}
		if stored.TokenHash() == result.RefreshToken {
			t.Error("refresh token stored raw")
		}
		if stored.TokenHash() != tokens.HashRefreshToken(result.RefreshToken) {
			t.Error("stored hash does not match issued token")
		}
		if stored.DeviceID() != "device-1" {
			t.Errorf("DeviceID = %q, want %q", stored.DeviceID(), "device-1")
		}

		if got := len(publisher.EventsOfType(event.EventTypeTokenPairIssued)); got != 1 {
			t.Errorf("issued events = %d, want 1", got)
		}
	})

	t.Run("rejects unknown principal", func(t *testing.T) {
		handler := NewIssueTokenPairHandler(
			mocks.NewPrincipalRepository(), mocks.NewCredentialRepository(),
			newTestTokenService(t), mocks.NewEventPublisher(), model.DefaultCredentialConfig())

		_, err := handler.Handle(context.Background(), command.IssueTokenPair{
			PrincipalID: uuid.New(),
			DeviceID:    "device-1",
		})
		if !errors.Is(err, domainerror.ErrPrincipalNotFound) {
			t.Fatalf("error = %v, want ErrPrincipalNotFound", err)
		}
	})

	t.Run("rejects inactive principal", func(t *testing.T) {
		principalRepo := mocks.NewPrincipalRepository()
		principal := testutil.Fixtures.InactivePrincipal()
		principalRepo.Seed(principal)

		handler := NewIssueTokenPairHandler(
			principalRepo, mocks.NewCredentialRepository(),
			newTestTokenService(t), mocks.NewEventPublisher(), model.DefaultCredentialConfig())

		_, err := handler.Handle(context.Background(), command.IssueTokenPair{
			PrincipalID: principal.ID(),
			DeviceID:    "device-1",
		})
		if !errors.Is(err, domainerror.ErrPrincipalInactive) {
			t.Fatalf("error = %v, want ErrPrincipalInactive", err)
		}
	})

	t.Run("rejects missing device", func(t *testing.T) {
		handler := NewIssueTokenPairHandler(
			mocks.NewPrincipalRepository(), mocks.NewCredentialRepository(),
			newTestTokenService(t), mocks.NewEventPublisher(), model.DefaultCredentialConfig())

		_, err := handler.Handle(context.Background(), command.IssueTokenPair{
			PrincipalID: uuid.New(),
		})
		if !errors.Is(err, domainerror.ErrDeviceIDRequired) {
			t.Fatalf("error = %v, want ErrDeviceIDRequired", err)
		}
	})
}
