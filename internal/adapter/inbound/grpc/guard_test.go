package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/yunhaishang/Mallorn-sub002/internal/app/service"
	"github.com/yunhaishang/Mallorn-sub002/tests/testutil"
	"github.com/yunhaishang/Mallorn-sub002/tests/testutil/mocks"
)

func newGuardTokenService(t *testing.T) service.TokenService {
	t.Helper()
	config := service.DefaultTokenConfig()
	config.SigningKey = []byte("guard-test-signing-key")
	svc, err := service.NewTokenService(config)
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return svc
}

func mintToken(t *testing.T, svc service.TokenService) (string, *service.AccessTokenClaims) {
	t.Helper()
	token, claims, err := svc.GenerateAccessToken(testutil.Fixtures.Principal())
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	return token, claims
}

func contextWithBearer(token string) context.Context {
	md := metadata.Pairs(authorizationHeader, bearerScheme+" "+token)
	return metadata.NewIncomingContext(context.Background(), md)
}

func invokeUnary(t *testing.T, guard *Guard, ctx context.Context) (bool, error) {
	t.Helper()
	called := false
	handler := func(ctx context.Context, req any) (any, error) {
		called = true
		return "ok", nil
	}
	info := &grpc.UnaryServerInfo{FullMethod: "/mallorn.auth.v1.AuthService/GetProfile"}
	_, err := guard.Unary()(ctx, nil, info, handler)
	return called, err
}

func TestGuardUnary(t *testing.T) {
	svc := newGuardTokenService(t)

	t.Run("blacklisted token is rejected before verification", func(t *testing.T) {
		blacklist := mocks.NewTokenBlacklist()
		guard := NewGuard(blacklist, DefaultGuardConfig(), zap.NewNop())
		token, claims := mintToken(t, svc)
		if err := blacklist.Add(context.Background(), claims.TokenID(), time.Hour); err != nil {
			t.Fatalf("Add() error = %v", err)
		}

		called, err := invokeUnary(t, guard, contextWithBearer(token))
		if called {
			t.Error("handler was invoked for a blacklisted token")
		}
		if status.Code(err) != codes.Unauthenticated {
			t.Fatalf("status code = %v, want Unauthenticated", status.Code(err))
		}
	})

	t.Run("clean token proceeds with context annotations", func(t *testing.T) {
		blacklist := mocks.NewTokenBlacklist()
		guard := NewGuard(blacklist, DefaultGuardConfig(), zap.NewNop())
		token, claims := mintToken(t, svc)

		var gotSubject, gotTokenID string
		handler := func(ctx context.Context, req any) (any, error) {
			gotSubject, _ = SubjectFromContext(ctx)
			gotTokenID, _ = TokenIDFromContext(ctx)
			return "ok", nil
		}
		info := &grpc.UnaryServerInfo{FullMethod: "/mallorn.auth.v1.AuthService/GetProfile"}
		_, err := guard.Unary()(contextWithBearer(token), nil, info, handler)
		if err != nil {
			t.Fatalf("Unary() error = %v", err)
		}
		if gotSubject != claims.Subject {
			t.Errorf("subject = %q, want %q", gotSubject, claims.Subject)
		}
		if gotTokenID != claims.TokenID() {
			t.Errorf("token id = %q, want %q", gotTokenID, claims.TokenID())
		}
	})

	t.Run("request without a token proceeds", func(t *testing.T) {
		blacklist := mocks.NewTokenBlacklist()
		guard := NewGuard(blacklist, DefaultGuardConfig(), zap.NewNop())

		called, err := invokeUnary(t, guard, context.Background())
		if err != nil {
			t.Fatalf("Unary() error = %v", err)
		}
		if !called {
			t.Error("handler was not invoked")
		}
		if blacklist.Calls.IsBlacklisted != 0 {
			t.Errorf("IsBlacklisted calls = %d, want 0", blacklist.Calls.IsBlacklisted)
		}
	})

	t.Run("malformed token is waved through", func(t *testing.T) {
		blacklist := mocks.NewTokenBlacklist()
		guard := NewGuard(blacklist, DefaultGuardConfig(), zap.NewNop())

		called, err := invokeUnary(t, guard, contextWithBearer("not-a-jwt"))
		if err != nil {
			t.Fatalf("Unary() error = %v", err)
		}
		if !called {
			t.Error("handler was not invoked for a malformed token")
		}
	})

	t.Run("blacklist outage does not block requests", func(t *testing.T) {
		blacklist := mocks.NewTokenBlacklist()
		blacklist.Errors.IsBlacklisted = errors.New("redis down")
		guard := NewGuard(blacklist, DefaultGuardConfig(), zap.NewNop())
		token, _ := mintToken(t, svc)

		called, err := invokeUnary(t, guard, contextWithBearer(token))
		if err != nil {
			t.Fatalf("Unary() error = %v", err)
		}
		if !called {
			t.Error("handler was not invoked during blacklist outage")
		}
	})

	t.Run("wrong auth scheme proceeds untouched", func(t *testing.T) {
		blacklist := mocks.NewTokenBlacklist()
		guard := NewGuard(blacklist, DefaultGuardConfig(), zap.NewNop())
		token, _ := mintToken(t, svc)

		md := metadata.Pairs(authorizationHeader, "Basic "+token)
		ctx := metadata.NewIncomingContext(context.Background(), md)
		called, err := invokeUnary(t, guard, ctx)
		if err != nil {
			t.Fatalf("Unary() error = %v", err)
		}
		if !called {
			t.Error("handler was not invoked")
		}
		if blacklist.Calls.IsBlacklisted != 0 {
			t.Errorf("IsBlacklisted calls = %d, want 0", blacklist.Calls.IsBlacklisted)
		}
	})
}

func TestGuardStream(t *testing.T) {
	svc := newGuardTokenService(t)

	t.Run("blacklisted token is rejected", func(t *testing.T) {
		blacklist := mocks.NewTokenBlacklist()
		guard := NewGuard(blacklist, DefaultGuardConfig(), zap.NewNop())
		token, claims := mintToken(t, svc)
		if err := blacklist.Add(context.Background(), claims.TokenID(), time.Hour); err != nil {
			t.Fatalf("Add() error = %v", err)
		}

		called := false
		handler := func(srv any, ss grpc.ServerStream) error {
			called = true
			return nil
		}
		info := &grpc.StreamServerInfo{FullMethod: "/mallorn.auth.v1.AuthService/WatchProfile"}
		err := guard.Stream()(nil, &stubStream{ctx: contextWithBearer(token)}, info, handler)
		if called {
			t.Error("handler was invoked for a blacklisted token")
		}
		if status.Code(err) != codes.Unauthenticated {
			t.Fatalf("status code = %v, want Unauthenticated", status.Code(err))
		}
	})

	t.Run("clean token annotates the stream context", func(t *testing.T) {
		blacklist := mocks.NewTokenBlacklist()
		guard := NewGuard(blacklist, DefaultGuardConfig(), zap.NewNop())
		token, claims := mintToken(t, svc)

		var gotTokenID string
		handler := func(srv any, ss grpc.ServerStream) error {
			gotTokenID, _ = TokenIDFromContext(ss.Context())
			return nil
		}
		info := &grpc.StreamServerInfo{FullMethod: "/mallorn.auth.v1.AuthService/WatchProfile"}
		if err := guard.Stream()(nil, &stubStream{ctx: contextWithBearer(token)}, info, handler); err != nil {
			t.Fatalf("Stream() error = %v", err)
		}
		if gotTokenID != claims.TokenID() {
			t.Errorf("token id = %q, want %q", gotTokenID, claims.TokenID())
		}
	})
}

func TestGuardExpiryAdvisory(t *testing.T) {
	t.Run("flags a token inside the warning window", func(t *testing.T) {
		guard := NewGuard(mocks.NewTokenBlacklist(), GuardConfig{ExpiryWarningWindow: 10 * time.Minute}, zap.NewNop())
		if !guard.expiringSoon(time.Now().UTC().Add(5 * time.Minute)) {
			t.Error("expiringSoon() = false for a token expiring in 5m with a 10m window")
		}
	})

	t.Run("ignores a token far from expiry", func(t *testing.T) {
		guard := NewGuard(mocks.NewTokenBlacklist(), GuardConfig{ExpiryWarningWindow: 10 * time.Minute}, zap.NewNop())
		if guard.expiringSoon(time.Now().UTC().Add(2 * time.Hour)) {
			t.Error("expiringSoon() = true for a token expiring in 2h")
		}
	})

	t.Run("ignores a token without an expiry claim", func(t *testing.T) {
		guard := NewGuard(mocks.NewTokenBlacklist(), DefaultGuardConfig(), zap.NewNop())
		if guard.expiringSoon(time.Time{}) {
			t.Error("expiringSoon() = true for a zero expiry")
		}
	})
}

// stubStream is a minimal grpc.ServerStream for interceptor tests.
type stubStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *stubStream) Context() context.Context        { return s.ctx }
func (s *stubStream) SetHeader(md metadata.MD) error  { return nil }
func (s *stubStream) SendHeader(md metadata.MD) error { return nil }
func (s *stubStream) SetTrailer(md metadata.MD)       {}
