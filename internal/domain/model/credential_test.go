package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	domainerror "github.com/yunhaishang/Mallorn-sub002/internal/domain/error"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
)

func TestNewRefreshCredential(t *testing.T) {
	t.Run("valid inputs", func(t *testing.T) {
		principalID := uuid.New()
		config := model.DefaultCredentialConfig()

		cred, err := model.NewRefreshCredential(principalID, "somehash123", "device-1", config)
		if err != nil {
			t.Fatalf("NewRefreshCredential() error = %v", err)
		}
		if cred.ID() == uuid.Nil {
			t.Error("credential ID should not be empty")
		}
		if cred.PrincipalID() != principalID {
			t.Errorf("PrincipalID = %v, want %v", cred.PrincipalID(), principalID)
		}
		if cred.DeviceID() != "device-1" {
			t.Errorf("DeviceID = %v, want device-1", cred.DeviceID())
		}
		if cred.State() != model.CredentialStateActive {
			t.Errorf("State = %v, want active", cred.State())
		}
		if cred.Revoked() {
			t.Error("new credential should not be revoked")
		}
		if cred.IsRotated() {
			t.Error("new credential should not be rotated")
		}
		if got := cred.ExpiresAt().Sub(cred.IssuedAt()); got != config.Lifetime {
			t.Errorf("lifetime = %v, want %v", got, config.Lifetime)
		}
	})

	t.Run("rejects empty principal", func(t *testing.T) {
		_, err := model.NewRefreshCredential(uuid.Nil, "hash", "device-1", model.DefaultCredentialConfig())
		if !errors.Is(err, domainerror.ErrPrincipalIDRequired) {
			t.Fatalf("error = %v, want ErrPrincipalIDRequired", err)
		}
	})

	t.Run("rejects empty token hash", func(t *testing.T) {
		_, err := model.NewRefreshCredential(uuid.New(), "", "device-1", model.DefaultCredentialConfig())
		if !errors.Is(err, domainerror.ErrRefreshTokenInvalid) {
			t.Fatalf("error = %v, want ErrRefreshTokenInvalid", err)
		}
	})

	t.Run("rejects empty device", func(t *testing.T) {
		_, err := model.NewRefreshCredential(uuid.New(), "hash", "", model.DefaultCredentialConfig())
		if !errors.Is(err, domainerror.ErrDeviceIDRequired) {
			t.Fatalf("error = %v, want ErrDeviceIDRequired", err)
		}
	})
}

func TestRefreshCredential_Validate(t *testing.T) {
	now := time.Now().UTC()

	t.Run("active credential validates", func(t *testing.T) {
		cred := mustNewCredential(t)
		if err := cred.Validate(now); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	})

	t.Run("revoked credential fails with TOKEN_REVOKED", func(t *testing.T) {
		cred := mustNewCredential(t)
		cred.Revoke("logout", "user")

		err := cred.Validate(now)
		if !errors.Is(err, domainerror.ErrTokenRevoked) {
			t.Fatalf("error = %v, want ErrTokenRevoked", err)
		}
	})

	t.Run("rotated credential fails with TOKEN_REUSE_DETECTED", func(t *testing.T) {
		cred := mustNewCredential(t)
		cred.MarkRotated(uuid.New())

		err := cred.Validate(now)
		if !errors.Is(err, domainerror.ErrTokenReuseDetected) {
			t.Fatalf("error = %v, want ErrTokenReuseDetected", err)
		}
	})

	t.Run("expired credential fails with TOKEN_EXPIRED", func(t *testing.T) {
		cred := mustNewCredential(t)

		err := cred.Validate(now.Add(8 * 24 * time.Hour))
		if !errors.Is(err, domainerror.ErrTokenExpired) {
			t.Fatalf("error = %v, want ErrTokenExpired", err)
		}
	})

	t.Run("revoked wins over rotated", func(t *testing.T) {
		cred := mustNewCredential(t)
		cred.MarkRotated(uuid.New())
		cred.Revoke("reuse_detected", "system")

		if cred.State() != model.CredentialStateRevoked {
			t.Errorf("State = %v, want revoked", cred.State())
		}
	})
}

func TestRefreshCredential_Revoke(t *testing.T) {
	t.Run("records reason and actor", func(t *testing.T) {
		cred := mustNewCredential(t)
		cred.Revoke("logout", "user")

		if !cred.Revoked() {
			t.Fatal("credential should be revoked")
		}
		if cred.RevokedReason() != "logout" {
			t.Errorf("RevokedReason = %q, want logout", cred.RevokedReason())
		}
		if cred.RevokedBy() != "user" {
			t.Errorf("RevokedBy = %q, want user", cred.RevokedBy())
		}
		if cred.RevokedAt() == nil {
			t.Error("RevokedAt should be set")
		}
	})

	t.Run("idempotent, keeps first reason", func(t *testing.T) {
		cred := mustNewCredential(t)
		cred.Revoke("logout", "user")
		first := *cred.RevokedAt()

		cred.Revoke("theft", "system")

		if cred.RevokedReason() != "logout" {
			t.Errorf("RevokedReason = %q, want logout", cred.RevokedReason())
		}
		if !cred.RevokedAt().Equal(first) {
			t.Error("RevokedAt should not change on second revoke")
		}
	})
}

func TestRefreshCredential_MatchesDevice(t *testing.T) {
	cred := mustNewCredential(t)

	if !cred.MatchesDevice("device-1") {
		t.Error("expected device-1 to match")
	}
	if cred.MatchesDevice("device-2") {
		t.Error("expected device-2 not to match")
	}
}

func mustNewCredential(t *testing.T) *model.RefreshCredential {
	t.Helper()
	cred, err := model.NewRefreshCredential(uuid.New(), "hash123", "device-1", model.DefaultCredentialConfig())
	if err != nil {
		t.Fatalf("NewRefreshCredential() error = %v", err)
	}
	return cred
}
