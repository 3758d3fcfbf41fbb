package model

import (
	"time"

	"github.com/google/uuid"

	domainerror "github.com/yunhaishang/Mallorn-sub002/internal/domain/error"
)

// Principal is the identity record for a platform user. The authoritative
// copy lives in the persistence collaborator; caches hold bounded-lifetime
// copies only.
type Principal struct {
	id               uuid.UUID
	email            string
	username         string
	passwordHash     string
	creditScore      int
	active           bool
	locked           bool
	lockoutEnd       *time.Time
	failedAttempts   int
	securityStamp    string
	twoFactorEnabled bool
	emailVerified    bool
	createdAt        time.Time
	updatedAt        time.Time
}

// NewPrincipal creates a new active Principal.
func NewPrincipal(email, username, passwordHash string) (*Principal, error) {
	if email == "" {
		return nil, domainerror.New(domainerror.KindValidation, domainerror.CodePrincipalIDRequired, "email is required")
	}

	now := time.Now().UTC()

	return &Principal{
		id:            uuid.New(),
		email:         email,
		username:      username,
		passwordHash:  passwordHash,
		creditScore:   defaultCreditScore,
		active:        true,
		securityStamp: uuid.NewString(),
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

const defaultCreditScore = 100

// ReconstructPrincipal creates a Principal from persisted data (bypasses
// validation). Used by the repository and cache layers when loading.
func ReconstructPrincipal(
	id uuid.UUID,
	email string,
	username string,
	passwordHash string,
	creditScore int,
	active bool,
	locked bool,
	lockoutEnd *time.Time,
	failedAttempts int,
	securityStamp string,
	twoFactorEnabled bool,
	emailVerified bool,
	createdAt time.Time,
	updatedAt time.Time,
) *Principal {
	return &Principal{
		id:               id,
		email:            email,
		username:         username,
		passwordHash:     passwordHash,
		creditScore:      creditScore,
		active:           active,
		locked:           locked,
		lockoutEnd:       lockoutEnd,
		failedAttempts:   failedAttempts,
		securityStamp:    securityStamp,
		twoFactorEnabled: twoFactorEnabled,
		emailVerified:    emailVerified,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

// Getters

func (p *Principal) ID() uuid.UUID          { return p.id }
func (p *Principal) Email() string          { return p.email }
func (p *Principal) Username() string       { return p.username }
func (p *Principal) PasswordHash() string   { return p.passwordHash }
func (p *Principal) CreditScore() int       { return p.creditScore }
func (p *Principal) Active() bool           { return p.active }
func (p *Principal) Locked() bool           { return p.locked }
func (p *Principal) LockoutEnd() *time.Time { return p.lockoutEnd }
func (p *Principal) FailedAttempts() int    { return p.failedAttempts }
func (p *Principal) SecurityStamp() string  { return p.securityStamp }
func (p *Principal) TwoFactorEnabled() bool { return p.twoFactorEnabled }
func (p *Principal) EmailVerified() bool    { return p.emailVerified }
func (p *Principal) CreatedAt() time.Time   { return p.createdAt }
func (p *Principal) UpdatedAt() time.Time   { return p.updatedAt }

// Queries

// IsLockedOut reports whether the principal is currently locked out.
// A lockout with a past end time no longer blocks authentication.
func (p *Principal) IsLockedOut(now time.Time) bool {
	if !p.locked {
		return false
	}
	if p.lockoutEnd == nil {
		return true
	}
	return now.Before(*p.lockoutEnd)
}

// CanAuthenticate returns the reason the principal may not authenticate,
// or nil when authentication is allowed.
func (p *Principal) CanAuthenticate(now time.Time) error {
	if !p.active {
		return domainerror.ErrPrincipalInactive
	}
	if p.IsLockedOut(now) {
		return domainerror.ErrPrincipalLocked
	}
	return nil
}

// Commands

// RotateSecurityStamp invalidates every credential derived from the
// previous stamp. Called after credential-affecting changes.
func (p *Principal) RotateSecurityStamp() {
	p.securityStamp = uuid.NewString()
	p.updatedAt = time.Now().UTC()
}

// SecurityInfo is the security-sensitive subset of a Principal, cached
// under its own namespace with a shorter TTL than the full profile.
type SecurityInfo struct {
	PrincipalID      uuid.UUID  `json:"principal_id"`
	PasswordHash     string     `json:"password_hash"`
	SecurityStamp    string     `json:"security_stamp"`
	Locked           bool       `json:"locked"`
	LockoutEnd       *time.Time `json:"lockout_end,omitempty"`
	FailedAttempts   int        `json:"failed_attempts"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
}

// SecurityInfo extracts the security-sensitive subset.
func (p *Principal) SecurityInfo() SecurityInfo {
	return SecurityInfo{
		PrincipalID:      p.id,
		PasswordHash:     p.passwordHash,
		SecurityStamp:    p.securityStamp,
		Locked:           p.locked,
		LockoutEnd:       p.lockoutEnd,
		FailedAttempts:   p.failedAttempts,
		TwoFactorEnabled: p.twoFactorEnabled,
	}
}
