package event

import (
	"github.com/google/uuid"
)

// TokenPairIssued is emitted when a new access/refresh pair is issued.
type TokenPairIssued struct {
	BaseEvent
	CredentialID uuid.UUID `json:"credential_id"`
	PrincipalID  uuid.UUID `json:"principal_id"`
	DeviceID     string    `json:"device_id"`
}

// NewTokenPairIssued creates a new TokenPairIssued event.
func NewTokenPairIssued(credentialID, principalID uuid.UUID, deviceID string) TokenPairIssued {
	return TokenPairIssued{
		BaseEvent:    NewBaseEvent(EventTypeTokenPairIssued, credentialID, AggregateTypeCredential),
		CredentialID: credentialID,
		PrincipalID:  principalID,
		DeviceID:     deviceID,
	}
}

// TokenRotated is emitted when a refresh credential is rotated.
type TokenRotated struct {
	BaseEvent
	CredentialID uuid.UUID `json:"credential_id"`
	SuccessorID  uuid.UUID `json:"successor_id"`
	PrincipalID  uuid.UUID `json:"principal_id"`
}

// NewTokenRotated creates a new TokenRotated event.
func NewTokenRotated(credentialID, successorID, principalID uuid.UUID) TokenRotated {
	return TokenRotated{
		BaseEvent:    NewBaseEvent(EventTypeTokenRotated, credentialID, AggregateTypeCredential),
		CredentialID: credentialID,
		SuccessorID:  successorID,
		PrincipalID:  principalID,
	}
}

// TokenRevoked is emitted when a refresh credential is revoked.
type TokenRevoked struct {
	BaseEvent
	CredentialID uuid.UUID `json:"credential_id"`
	PrincipalID  uuid.UUID `json:"principal_id"`
	Reason       string    `json:"reason"`
}

// NewTokenRevoked creates a new TokenRevoked event.
func NewTokenRevoked(credentialID, principalID uuid.UUID, reason string) TokenRevoked {
	return TokenRevoked{
		BaseEvent:    NewBaseEvent(EventTypeTokenRevoked, credentialID, AggregateTypeCredential),
		CredentialID: credentialID,
		PrincipalID:  principalID,
		Reason:       reason,
	}
}

// TokenReuseDetected is emitted when an already-rotated refresh credential
// is presented again, implying possible theft. Security relevant.
type TokenReuseDetected struct {
	BaseEvent
	CredentialID uuid.UUID `json:"credential_id"`
	PrincipalID  uuid.UUID `json:"principal_id"`
	DeviceID     string    `json:"device_id"`
	RevokedCount int       `json:"revoked_count"`
}

// NewTokenReuseDetected creates a new TokenReuseDetected event.
func NewTokenReuseDetected(credentialID, principalID uuid.UUID, deviceID string, revokedCount int) TokenReuseDetected {
	return TokenReuseDetected{
		BaseEvent:    NewBaseEvent(EventTypeTokenReuseDetected, credentialID, AggregateTypeCredential),
		CredentialID: credentialID,
		PrincipalID:  principalID,
		DeviceID:     deviceID,
		RevokedCount: revokedCount,
	}
}

// UserCacheInvalidated is emitted when every cached namespace for a
// principal is dropped, so sibling instances can drop their fast tiers.
type UserCacheInvalidated struct {
	BaseEvent
	PrincipalID uuid.UUID `json:"principal_id"`
}

// NewUserCacheInvalidated creates a new UserCacheInvalidated event.
func NewUserCacheInvalidated(principalID uuid.UUID) UserCacheInvalidated {
	return UserCacheInvalidated{
		BaseEvent:   NewBaseEvent(EventTypeUserCacheInvalidated, principalID, AggregateTypePrincipal),
		PrincipalID: principalID,
	}
}
