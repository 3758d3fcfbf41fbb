package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
)

// principalRow mirrors the users table for scanning.
type principalRow struct {
	ID               uuid.UUID
	Email            string
	Username         string
	PasswordHash     string
	CreditScore      int
	Active           bool
	Locked           bool
	LockoutEnd       *time.Time
	FailedAttempts   int
	SecurityStamp    string
	TwoFactorEnabled bool
	EmailVerified    bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (r principalRow) toModel() *model.Principal {
	return model.ReconstructPrincipal(
		r.ID,
		r.Email,
		r.Username,
		r.PasswordHash,
		r.CreditScore,
		r.Active,
		r.Locked,
		r.LockoutEnd,
		r.FailedAttempts,
		r.SecurityStamp,
		r.TwoFactorEnabled,
		r.EmailVerified,
		r.CreatedAt,
		r.UpdatedAt,
	)
}

// credentialRow mirrors the refresh_credentials table for scanning.
type credentialRow struct {
	ID            uuid.UUID
	PrincipalID   uuid.UUID
	TokenHash     string
	DeviceID      string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Revoked       bool
	RevokedAt     *time.Time
	RevokedReason *string
	RevokedBy     *string
	ReplacedBy    *uuid.UUID
	RotatedAt     *time.Time
}

func (r credentialRow) toModel() *model.RefreshCredential {
	return model.ReconstructRefreshCredential(
		r.ID,
		r.PrincipalID,
		r.TokenHash,
		r.DeviceID,
		r.IssuedAt,
		r.ExpiresAt,
		r.Revoked,
		r.RevokedAt,
		derefString(r.RevokedReason),
		derefString(r.RevokedBy),
		r.ReplacedBy,
		r.RotatedAt,
	)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
