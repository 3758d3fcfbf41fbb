package grpc

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/yunhaishang/Mallorn-sub002/internal/app/service"
	domainerror "github.com/yunhaishang/Mallorn-sub002/internal/domain/error"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/cache"
)

// Metadata keys used by the guard.
const (
	authorizationHeader = "authorization"
	bearerScheme        = "Bearer"

	// ErrorCodeHeader carries the machine-readable rejection code.
	ErrorCodeHeader = "x-auth-error-code"

	// TokenExpiringHeader is an advisory flag set when the presented
	// token expires within the configured warning window.
	TokenExpiringHeader = "x-token-expiring"
)

// GuardConfig holds configuration for the request-time guard.
type GuardConfig struct {
	// ExpiryWarningWindow is how close to expiry a token must be before
	// the advisory header is attached.
	ExpiryWarningWindow time.Duration
}

// DefaultGuardConfig returns default guard configuration.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{ExpiryWarningWindow: 5 * time.Minute}
}

// Guard inspects bearer tokens ahead of cryptographic verification. It
// parses the token structurally, rejects blacklisted token ids, and
// attaches a near-expiry advisory header. It never verifies signatures;
// a token it waves through must still pass the downstream verifier.
type Guard struct {
	blacklist cache.TokenBlacklist
	config    GuardConfig
	logger    *zap.Logger
	parser    *jwt.Parser
	now       func() time.Time
}

// NewGuard creates a new request-time guard.
func NewGuard(blacklist cache.TokenBlacklist, config GuardConfig, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ExpiryWarningWindow <= 0 {
		config.ExpiryWarningWindow = DefaultGuardConfig().ExpiryWarningWindow
	}
	return &Guard{
		blacklist: blacklist,
		config:    config,
		logger:    logger,
		parser:    jwt.NewParser(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type guardVerdict struct {
	tokenID     string
	subject     string
	expiresAt   time.Time
	blacklisted bool
}

// inspect structurally parses the token and consults the blacklist.
// The second return value is false when the request should simply
// proceed untouched: no token, malformed token, or missing claims.
func (g *Guard) inspect(ctx context.Context, token string) (guardVerdict, bool) {
	if token == "" {
		return guardVerdict{}, false
	}

	claims := &service.AccessTokenClaims{}
	if _, _, err := g.parser.ParseUnverified(token, claims); err != nil {
		// Structurally invalid tokens are the downstream verifier's
		// problem, not the guard's.
		return guardVerdict{}, false
	}
	if claims.ID == "" {
		return guardVerdict{}, false
	}

	verdict := guardVerdict{
		tokenID: claims.ID,
		subject: claims.Subject,
	}
	if claims.ExpiresAt != nil {
		verdict.expiresAt = claims.ExpiresAt.Time
	}

	blacklisted, err := g.blacklist.IsBlacklisted(ctx, claims.ID)
	if err != nil {
		g.logger.Warn("blacklist check failed, proceeding without it",
			zap.String("token_id", claims.ID),
			zap.Error(err),
		)
		return verdict, true
	}
	verdict.blacklisted = blacklisted

	return verdict, true
}

func (g *Guard) expiringSoon(expiresAt time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return expiresAt.Sub(g.now()) <= g.config.ExpiryWarningWindow
}

func (g *Guard) reject(ctx context.Context, verdict guardVerdict, method string) error {
	g.logger.Warn("blacklisted token rejected",
		zap.String("subject", verdict.subject),
		zap.String("token_id", verdict.tokenID),
		zap.String("method", method),
	)
	// SetHeader fails outside a server transport; the rejection itself
	// still stands.
	_ = grpc.SetHeader(ctx, metadata.Pairs(ErrorCodeHeader, string(domainerror.CodeTokenRevoked)))
	return status.Error(codes.Unauthenticated, domainerror.ErrTokenRevoked.Message())
}

func (g *Guard) admit(ctx context.Context, verdict guardVerdict, method string) context.Context {
	if g.expiringSoon(verdict.expiresAt) {
		_ = grpc.SetHeader(ctx, metadata.Pairs(TokenExpiringHeader, "true"))
	}
	g.logger.Info("bearer token presented",
		zap.String("subject", verdict.subject),
		zap.String("method", method),
	)
	return WithTokenID(WithSubject(ctx, verdict.subject), verdict.tokenID)
}

// Unary returns the unary server interceptor form of the guard.
func (g *Guard) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		verdict, ok := g.inspect(ctx, bearerFromContext(ctx))
		if !ok {
			return handler(ctx, req)
		}
		if verdict.blacklisted {
			return nil, g.reject(ctx, verdict, info.FullMethod)
		}
		return handler(g.admit(ctx, verdict, info.FullMethod), req)
	}
}

// Stream returns the stream server interceptor form of the guard.
func (g *Guard) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		verdict, ok := g.inspect(ctx, bearerFromContext(ctx))
		if !ok {
			return handler(srv, ss)
		}
		if verdict.blacklisted {
			return g.reject(ctx, verdict, info.FullMethod)
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: g.admit(ctx, verdict, info.FullMethod)})
	}
}

// bearerFromContext extracts the bearer token from incoming metadata,
// or "" when the request carries none.
func bearerFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(authorizationHeader)
	if len(values) == 0 {
		return ""
	}
	scheme, token, found := strings.Cut(values[0], " ")
	if !found || !strings.EqualFold(scheme, bearerScheme) {
		return ""
	}
	return strings.TrimSpace(token)
}

// wrappedStream overrides the stream context with guard annotations.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedStream) Context() context.Context { return w.ctx }
