// Package mocks provides mock implementations of ports for testing.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/repository"
)

// --- PrincipalRepository Mock ---

// PrincipalRepository is a mock implementation of
// repository.PrincipalRepository.
type PrincipalRepository struct {
	mu sync.RWMutex

	// Storage
	principals map[uuid.UUID]*model.Principal
	byEmail    map[string]uuid.UUID
	admins     map[uuid.UUID]*model.Admin

	// Call tracking
	Calls struct {
		FindByID    int
		FindByEmail int
		FindByIDs   int
		FindAdmin   int
	}

	// Error injection
	Errors struct {
		FindByID    error
		FindByEmail error
		FindByIDs   error
		FindAdmin   error
	}
}

// NewPrincipalRepository creates a new mock PrincipalRepository.
func NewPrincipalRepository() *PrincipalRepository {
	return &PrincipalRepository{
		principals: make(map[uuid.UUID]*model.Principal),
		byEmail:    make(map[string]uuid.UUID),
		admins:     make(map[uuid.UUID]*model.Admin),
	}
}

// Seed stores a principal for later lookups.
func (m *PrincipalRepository) Seed(principals ...*model.Principal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range principals {
		m.principals[p.ID()] = p
		m.byEmail[p.Email()] = p.ID()
	}
}

// SeedAdmin stores an admin record for later lookups.
func (m *PrincipalRepository) SeedAdmin(admins ...*model.Admin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range admins {
		m.admins[a.PrincipalID] = a
	}
}

func (m *PrincipalRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.FindByID++

	if m.Errors.FindByID != nil {
		return nil, m.Errors.FindByID
	}

	principal, ok := m.principals[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return principal, nil
}

func (m *PrincipalRepository) FindByEmail(ctx context.Context, email string) (*model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.FindByEmail++

	if m.Errors.FindByEmail != nil {
		return nil, m.Errors.FindByEmail
	}

	id, ok := m.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.principals[id], nil
}

func (m *PrincipalRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*model.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.FindByIDs++

	if m.Errors.FindByIDs != nil {
		return nil, m.Errors.FindByIDs
	}

	result := make([]*model.Principal, 0, len(ids))
	for _, id := range ids {
		if principal, ok := m.principals[id]; ok {
			result = append(result, principal)
		}
	}
	return result, nil
}

func (m *PrincipalRepository) FindAdmin(ctx context.Context, principalID uuid.UUID) (*model.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.FindAdmin++

	if m.Errors.FindAdmin != nil {
		return nil, m.Errors.FindAdmin
	}

	admin, ok := m.admins[principalID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return admin, nil
}

// --- CredentialRepository Mock ---

// credentialRecord is the mock's mutable view of a stored credential.
type credentialRecord struct {
	cred       *model.RefreshCredential
	revoked    bool
	replacedBy *uuid.UUID
}

// CredentialRepository is a mock implementation of
// repository.CredentialRepository. Rotation runs the same conditional
// transition as the real store, under one mutex, so concurrency tests
// observe the exactly-one-winner guarantee.
type CredentialRepository struct {
	mu sync.Mutex

	// Storage
	records map[uuid.UUID]*credentialRecord
	byHash  map[string]uuid.UUID

	// Call tracking
	Calls struct {
		Create                int
		FindByTokenHash       int
		FindByID              int
		Rotate                int
		Revoke                int
		RevokeChain           int
		RevokeAllForPrincipal int
		DeleteExpired         int
	}

	// Error injection
	Errors struct {
		Create                error
		FindByTokenHash       error
		FindByID              error
		Rotate                error
		Revoke                error
		RevokeChain           error
		RevokeAllForPrincipal error
		DeleteExpired         error
	}
}

// NewCredentialRepository creates a new mock CredentialRepository.
func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{
		records: make(map[uuid.UUID]*credentialRecord),
		byHash:  make(map[string]uuid.UUID),
	}
}

// Seed stores credentials directly, bypassing call tracking.
func (m *CredentialRepository) Seed(creds ...*model.RefreshCredential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cred := range creds {
		m.store(cred)
	}
}

func (m *CredentialRepository) store(cred *model.RefreshCredential) {
	m.records[cred.ID()] = &credentialRecord{
		cred:       cred,
		revoked:    cred.Revoked(),
		replacedBy: cred.ReplacedBy(),
	}
	m.byHash[cred.TokenHash()] = cred.ID()
}

// view materializes the record's current state as a domain model.
func (r *credentialRecord) view() *model.RefreshCredential {
	c := r.cred
	var revokedAt *time.Time
	revokedReason, revokedBy := "", ""
	if r.revoked {
		if c.Revoked() {
			revokedAt = c.RevokedAt()
			revokedReason = c.RevokedReason()
			revokedBy = c.RevokedBy()
		} else {
			now := time.Now().UTC()
			revokedAt = &now
			revokedReason = "revoked"
		}
	}
	var rotatedAt *time.Time
	if r.replacedBy != nil {
		if c.RotatedAt() != nil {
			rotatedAt = c.RotatedAt()
		} else {
			now := time.Now().UTC()
			rotatedAt = &now
		}
	}
	return model.ReconstructRefreshCredential(
		c.ID(), c.PrincipalID(), c.TokenHash(), c.DeviceID(),
		c.IssuedAt(), c.ExpiresAt(),
		r.revoked, revokedAt, revokedReason, revokedBy,
		r.replacedBy, rotatedAt,
	)
}

func (m *CredentialRepository) Create(ctx context.Context, cred *model.RefreshCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Create++

	if m.Errors.Create != nil {
		return m.Errors.Create
	}

	m.store(cred)
	return nil
}

func (m *CredentialRepository) FindByTokenHash(ctx context.Context, hash string) (*model.RefreshCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.FindByTokenHash++

	if m.Errors.FindByTokenHash != nil {
		return nil, m.Errors.FindByTokenHash
	}

	id, ok := m.byHash[hash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.records[id].view(), nil
}

func (m *CredentialRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RefreshCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.FindByID++

	if m.Errors.FindByID != nil {
		return nil, m.Errors.FindByID
	}

	record, ok := m.records[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return record.view(), nil
}

func (m *CredentialRepository) Rotate(ctx context.Context, id uuid.UUID, successor *model.RefreshCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Rotate++

	if m.Errors.Rotate != nil {
		return m.Errors.Rotate
	}

	record, ok := m.records[id]
	if !ok {
		return repository.ErrNotFound
	}

	// Same guard as the conditional UPDATE: only an unrevoked,
	// unreplaced row can transition.
	if record.revoked || record.replacedBy != nil {
		return repository.ErrStaleTransition
	}

	successorID := successor.ID()
	record.replacedBy = &successorID
	m.store(successor)
	return nil
}

func (m *CredentialRepository) Revoke(ctx context.Context, id uuid.UUID, reason, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.Revoke++

	if m.Errors.Revoke != nil {
		return m.Errors.Revoke
	}

	if record, ok := m.records[id]; ok && !record.revoked {
		record.cred.Revoke(reason, actor)
		record.revoked = true
	}
	return nil
}

func (m *CredentialRepository) RevokeChain(ctx context.Context, id uuid.UUID, reason, actor string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.RevokeChain++

	if m.Errors.RevokeChain != nil {
		return 0, m.Errors.RevokeChain
	}

	revoked := 0
	next := &id
	for next != nil {
		record, ok := m.records[*next]
		if !ok {
			break
		}
		if !record.revoked {
			record.cred.Revoke(reason, actor)
			record.revoked = true
			revoked++
		}
		next = record.replacedBy
	}
	return revoked, nil
}

func (m *CredentialRepository) RevokeAllForPrincipal(ctx context.Context, principalID uuid.UUID, reason, actor string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.RevokeAllForPrincipal++

	if m.Errors.RevokeAllForPrincipal != nil {
		return 0, m.Errors.RevokeAllForPrincipal
	}

	revoked := 0
	for _, record := range m.records {
		if record.cred.PrincipalID() == principalID && !record.revoked {
			record.cred.Revoke(reason, actor)
			record.revoked = true
			revoked++
		}
	}
	return revoked, nil
}

func (m *CredentialRepository) DeleteExpired(ctx context.Context, retention time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls.DeleteExpired++

	if m.Errors.DeleteExpired != nil {
		return 0, m.Errors.DeleteExpired
	}

	cutoff := time.Now().UTC().Add(-retention)
	deleted := 0
	for id, record := range m.records {
		if record.cred.ExpiresAt().Before(cutoff) {
			delete(m.byHash, record.cred.TokenHash())
			delete(m.records, id)
			deleted++
		}
	}
	return deleted, nil
}

// Get returns the stored state of a credential, or nil when absent.
func (m *CredentialRepository) Get(id uuid.UUID) *model.RefreshCredential {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return nil
	}
	return record.view()
}

var _ repository.PrincipalRepository = (*PrincipalRepository)(nil)
var _ repository.CredentialRepository = (*CredentialRepository)(nil)
