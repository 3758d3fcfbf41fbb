package command

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IssueTokenPair issues a fresh access/refresh pair for a principal on a
// device.
type IssueTokenPair struct {
	PrincipalID uuid.UUID
	DeviceID    string
}

func (c IssueTokenPair) CommandName() string {
	return "auth.issue_token_pair"
}

// TokenPairResult contains an issued access/refresh pair.
type TokenPairResult struct {
	AccessToken          string
	RefreshToken         string
	AccessTokenExpiresAt time.Time
	CredentialID         uuid.UUID
}

// IssueTokenPairHandler handles the IssueTokenPair command.
type IssueTokenPairHandler interface {
	Handle(ctx context.Context, cmd IssueTokenPair) (TokenPairResult, error)
}

// RotateToken exchanges a refresh token for a new pair. Presenting an
// already-rotated token is treated as replay.
type RotateToken struct {
	RefreshToken string
	DeviceID     string
}

func (c RotateToken) CommandName() string {
	return "auth.rotate_token"
}

// RotateTokenHandler handles the RotateToken command.
type RotateTokenHandler interface {
	Handle(ctx context.Context, cmd RotateToken) (TokenPairResult, error)
}

// RevokeToken revokes a refresh credential (logout) and blacklists the
// companion access token for its remaining lifetime.
type RevokeToken struct {
	RefreshToken string

	// AccessTokenID and AccessTokenExpiresAt identify the access token to
	// blacklist. Both optional: a bare refresh revocation skips the
	// blacklist.
	AccessTokenID        string
	AccessTokenExpiresAt time.Time

	Reason string
}

func (c RevokeToken) CommandName() string {
	return "auth.revoke_token"
}

// RevokeTokenResult reports the revoked credential.
type RevokeTokenResult struct {
	CredentialID uuid.UUID
}

// RevokeTokenHandler handles the RevokeToken command.
type RevokeTokenHandler interface {
	Handle(ctx context.Context, cmd RevokeToken) (RevokeTokenResult, error)
}

// RevokeAllTokens revokes every active credential of a principal.
type RevokeAllTokens struct {
	PrincipalID uuid.UUID
	Reason      string
}

func (c RevokeAllTokens) CommandName() string {
	return "auth.revoke_all_tokens"
}

// RevokeAllTokensResult reports how many credentials were revoked.
type RevokeAllTokensResult struct {
	RevokedCount int
}

// RevokeAllTokensHandler handles the RevokeAllTokens command.
type RevokeAllTokensHandler interface {
	Handle(ctx context.Context, cmd RevokeAllTokens) (RevokeAllTokensResult, error)
}
