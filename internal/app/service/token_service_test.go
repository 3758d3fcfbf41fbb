package service

import (
	"errors"
	"testing"
	"time"

	domainerror "github.com/yunhaishang/Mallorn-sub002/internal/domain/error"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
)

func newTestTokenService(t *testing.T) TokenService {
	t.Helper()

	config := DefaultTokenConfig()
	config.SigningKey = []byte("test-signing-key-32-bytes-long!!")

	svc, err := NewTokenService(config)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func newTestPrincipal(t *testing.T) *model.Principal {
	t.Helper()

	principal, err := model.NewPrincipal("trader@example.com", "trader", "$2a$10$hash")
	if err != nil {
		t.Fatalf("NewPrincipal: %v", err)
	}
	return principal
}

func TestTokenService_AccessTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t)
	principal := newTestPrincipal(t)

	token, issued, err := svc.GenerateAccessToken(principal)
	if err != nil {
		t.Fatalf("GenerateAccessToken returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if issued.TokenID() == "" {
		t.Error("expected a token id claim")
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken returned error: %v", err)
	}

	principalID, err := claims.PrincipalID()
	if err != nil {
		t.Fatalf("PrincipalID returned error: %v", err)
	}
	if principalID != principal.ID() {
		t.Errorf("PrincipalID = %v, want %v", principalID, principal.ID())
	}
	if claims.TokenID() != issued.TokenID() {
		t.Errorf("TokenID = %q, want %q", claims.TokenID(), issued.TokenID())
	}
	if !claims.Active {
		t.Error("expected active claim to be true")
	}
	if claims.EmailVerified {
		t.Error("expected email_verified claim to be false")
	}
	if claims.CreditScore != 100 {
		t.Errorf("CreditScore = %d, want 100", claims.CreditScore)
	}
}

func TestTokenService_ValidateAccessToken(t *testing.T) {
	t.Run("expired token", func(t *testing.T) {
		svc := newTestTokenService(t).(*tokenService)
		principal := newTestPrincipal(t)

		issued := time.Now().UTC().Add(-3 * time.Hour)
		svc.now = func() time.Time { return issued }
		token, _, err := svc.GenerateAccessToken(principal)
		if err != nil {
			t.Fatalf("GenerateAccessToken returned error: %v", err)
		}

		svc.now = func() time.Time { return time.Now().UTC() }
		_, err = svc.ValidateAccessToken(token)
		if !errors.Is(err, domainerror.ErrTokenExpired) {
			t.Fatalf("error = %v, want ErrTokenExpired", err)
		}
	})

	t.Run("tampered signature", func(t *testing.T) {
		svc := newTestTokenService(t)
		principal := newTestPrincipal(t)

		token, _, err := svc.GenerateAccessToken(principal)
		if err != nil {
			t.Fatalf("GenerateAccessToken returned error: %v", err)
		}

		otherConfig := DefaultTokenConfig()
		otherConfig.SigningKey = []byte("a-completely-different-key!!!!!!")
		other, err := NewTokenService(otherConfig)
		if err != nil {
			t.Fatalf("NewTokenService: %v", err)
		}

		_, err = other.ValidateAccessToken(token)
		if !errors.Is(err, domainerror.ErrTokenInvalid) {
			t.Fatalf("error = %v, want ErrTokenInvalid", err)
		}
	})

	t.Run("wrong issuer", func(t *testing.T) {
		issuerConfig := DefaultTokenConfig()
		issuerConfig.SigningKey = []byte("test-signing-key-32-bytes-long!!")
		issuerConfig.Issuer = "someone-else"
		issuer, err := NewTokenService(issuerConfig)
		if err != nil {
			t.Fatalf("NewTokenService: %v", err)
		}

		token, _, err := issuer.GenerateAccessToken(newTestPrincipal(t))
		if err != nil {
			t.Fatalf("GenerateAccessToken returned error: %v", err)
		}

		svc := newTestTokenService(t)
		_, err = svc.ValidateAccessToken(token)
		if !errors.Is(err, domainerror.ErrTokenInvalid) {
			t.Fatalf("error = %v, want ErrTokenInvalid", err)
		}
	})

	t.Run("garbage input", func(t *testing.T) {
		svc := newTestTokenService(t)

		_, err := svc.ValidateAccessToken("not-a-token")
		if !errors.Is(err, domainerror.ErrTokenInvalid) {
			t.Fatalf("error = %v, want ErrTokenInvalid", err)
		}
	})
}

func TestTokenService_RefreshTokens(t *testing.T) {
	svc := newTestTokenService(t)

	token, hash, err := svc.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken returned error: %v", err)
	}
	if token == "" || hash == "" {
		t.Fatal("expected non-empty token and hash")
	}
	if token == hash {
		t.Error("hash must differ from the raw token")
	}

	// Hashing is deterministic so lookups can use the hash as key.
	if got := svc.HashRefreshToken(token); got != hash {
		t.Errorf("HashRefreshToken = %q, want %q", got, hash)
	}
	if len(hash) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(hash))
	}

	// Consecutive tokens never collide.
	second, secondHash, err := svc.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("GenerateRefreshToken returned error: %v", err)
	}
	if second == token || secondHash == hash {
		t.Error("expected distinct refresh tokens")
	}
}

func TestTokenService_RequiresSigningKey(t *testing.T) {
	_, err := NewTokenService(TokenConfig{})
	if err == nil {
		t.Fatal("expected error for missing signing key")
	}
}
