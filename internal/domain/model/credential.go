package model

import (
	"time"

	"github.com/google/uuid"

	domainerror "github.com/yunhaishang/Mallorn-sub002/internal/domain/error"
)

// CredentialState is the lifecycle state of a refresh credential.
type CredentialState string

const (
	// CredentialStateActive means the credential may be rotated.
	CredentialStateActive CredentialState = "active"
	// CredentialStateRotated means the credential has been replaced by a
	// successor; further presentation implies replay.
	CredentialStateRotated CredentialState = "rotated"
	// CredentialStateRevoked means the credential was explicitly revoked.
	CredentialStateRevoked CredentialState = "revoked"
)

// RefreshCredential is one durable session grant. The opaque token value
// is stored only as a SHA-256 hash; the hash carries the unique index.
// State machine: Active -> {Rotated, Revoked}; both reject further use.
// Rows leave the table only through the reaper once expired and past the
// retention window.
type RefreshCredential struct {
	id            uuid.UUID
	principalID   uuid.UUID
	tokenHash     string
	deviceID      string
	issuedAt      time.Time
	expiresAt     time.Time
	revoked       bool
	revokedAt     *time.Time
	revokedReason string
	revokedBy     string
	replacedBy    *uuid.UUID
	rotatedAt     *time.Time
}

// CredentialConfig holds configuration for refresh credential creation.
type CredentialConfig struct {
	Lifetime time.Duration
}

// DefaultCredentialConfig returns default refresh credential configuration.
func DefaultCredentialConfig() CredentialConfig {
	return CredentialConfig{
		Lifetime: 7 * 24 * time.Hour,
	}
}

// NewRefreshCredential creates a new active RefreshCredential bound to a
// device.
func NewRefreshCredential(
	principalID uuid.UUID,
	tokenHash string,
	deviceID string,
	config CredentialConfig,
) (*RefreshCredential, error) {
	if principalID == uuid.Nil {
		return nil, domainerror.ErrPrincipalIDRequired
	}
	if tokenHash == "" {
		return nil, domainerror.ErrRefreshTokenInvalid
	}
	if deviceID == "" {
		return nil, domainerror.ErrDeviceIDRequired
	}

	now := time.Now().UTC()

	return &RefreshCredential{
		id:          uuid.New(),
		principalID: principalID,
		tokenHash:   tokenHash,
		deviceID:    deviceID,
		issuedAt:    now,
		expiresAt:   now.Add(config.Lifetime),
	}, nil
}

// ReconstructRefreshCredential creates a RefreshCredential from persisted
// data (bypasses validation).
func ReconstructRefreshCredential(
	id uuid.UUID,
	principalID uuid.UUID,
	tokenHash string,
	deviceID string,
	issuedAt time.Time,
	expiresAt time.Time,
	revoked bool,
	revokedAt *time.Time,
	revokedReason string,
	revokedBy string,
	replacedBy *uuid.UUID,
	rotatedAt *time.Time,
) *RefreshCredential {
	return &RefreshCredential{
		id:            id,
		principalID:   principalID,
		tokenHash:     tokenHash,
		deviceID:      deviceID,
		issuedAt:      issuedAt,
		expiresAt:     expiresAt,
		revoked:       revoked,
		revokedAt:     revokedAt,
		revokedReason: revokedReason,
		revokedBy:     revokedBy,
		replacedBy:    replacedBy,
		rotatedAt:     rotatedAt,
	}
}

// Getters

func (c *RefreshCredential) ID() uuid.UUID          { return c.id }
func (c *RefreshCredential) PrincipalID() uuid.UUID { return c.principalID }
func (c *RefreshCredential) TokenHash() string      { return c.tokenHash }
func (c *RefreshCredential) DeviceID() string       { return c.deviceID }
func (c *RefreshCredential) IssuedAt() time.Time    { return c.issuedAt }
func (c *RefreshCredential) ExpiresAt() time.Time   { return c.expiresAt }
func (c *RefreshCredential) Revoked() bool          { return c.revoked }
func (c *RefreshCredential) RevokedAt() *time.Time  { return c.revokedAt }
func (c *RefreshCredential) RevokedReason() string  { return c.revokedReason }
func (c *RefreshCredential) RevokedBy() string      { return c.revokedBy }
func (c *RefreshCredential) ReplacedBy() *uuid.UUID { return c.replacedBy }
func (c *RefreshCredential) RotatedAt() *time.Time  { return c.rotatedAt }

// Queries

func (c *RefreshCredential) IsExpired(now time.Time) bool {
	return now.After(c.expiresAt)
}

// IsRotated reports whether the credential has been replaced by a
// successor. Rotated is distinct from revoked: a rotated credential was
// consumed legitimately; presenting it again is replay.
func (c *RefreshCredential) IsRotated() bool {
	return c.replacedBy != nil
}

// State returns the lifecycle state. Wall-clock expiry is not a state
// write; callers combine State with IsExpired.
func (c *RefreshCredential) State() CredentialState {
	switch {
	case c.revoked:
		return CredentialStateRevoked
	case c.replacedBy != nil:
		return CredentialStateRotated
	default:
		return CredentialStateActive
	}
}

// Validate returns the reason the credential may not be rotated, or nil.
func (c *RefreshCredential) Validate(now time.Time) error {
	if c.revoked {
		return domainerror.ErrTokenRevoked
	}
	if c.IsRotated() {
		return domainerror.ErrTokenReuseDetected
	}
	if c.IsExpired(now) {
		return domainerror.ErrTokenExpired
	}
	return nil
}

// MatchesDevice reports whether the presented device is the one the
// credential was issued to.
func (c *RefreshCredential) MatchesDevice(deviceID string) bool {
	return c.deviceID == deviceID
}

// Commands

// Revoke marks the credential revoked. Idempotent: revoking an already
// revoked credential keeps the original reason and timestamp.
func (c *RefreshCredential) Revoke(reason, actor string) {
	if c.revoked {
		return
	}
	now := time.Now().UTC()
	c.revoked = true
	c.revokedAt = &now
	c.revokedReason = reason
	c.revokedBy = actor
}

// MarkRotated records the successor reference. The authoritative
// transition happens in the persistence layer via a conditional update;
// this mirrors it on the in-memory copy.
func (c *RefreshCredential) MarkRotated(successorID uuid.UUID) {
	now := time.Now().UTC()
	c.replacedBy = &successorID
	c.rotatedAt = &now
}
