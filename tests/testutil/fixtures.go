// Package testutil provides testing utilities for the auth subsystem.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
)

// Fake provides generators for fake test data.
var Fake = &fakeGenerator{}

type fakeGenerator struct {
	counter atomic.Int64
}

// String generates a random string with the given prefix.
func (f *fakeGenerator) String(prefix string) string {
	return fmt.Sprintf("%s_%d_%s", prefix, f.counter.Add(1), f.randomHex(4))
}

// Email generates a fake email address.
func (f *fakeGenerator) Email() string {
	return fmt.Sprintf("user%d_%s@example.com", f.counter.Add(1), f.randomHex(4))
}

// Hex generates a random hex string of the given byte length.
func (f *fakeGenerator) Hex(byteLength int) string {
	return f.randomHex(byteLength)
}

func (f *fakeGenerator) randomHex(byteLength int) string {
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		panic("testutil: failed to read random bytes: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

// Fixtures provides builders for domain models in tests.
var Fixtures = &fixtures{}

type fixtures struct{}

// Principal builds an active principal with defaults.
func (f *fixtures) Principal() *model.Principal {
	principal, err := model.NewPrincipal(Fake.Email(), Fake.String("user"), "$2a$10$"+Fake.Hex(16))
	if err != nil {
		panic("fixtures: failed to create principal: " + err.Error())
	}
	return principal
}

// InactivePrincipal builds a deactivated principal.
func (f *fixtures) InactivePrincipal() *model.Principal {
	p := f.Principal()
	now := time.Now().UTC()
	return model.ReconstructPrincipal(
		p.ID(), p.Email(), p.Username(), p.PasswordHash(),
		p.CreditScore(), false, false, nil, 0,
		p.SecurityStamp(), false, false, now, now,
	)
}

// Credential builds an active refresh credential for the principal.
func (f *fixtures) Credential(principalID uuid.UUID) *model.RefreshCredential {
	cred, err := model.NewRefreshCredential(principalID, Fake.Hex(32), Fake.String("device"), model.DefaultCredentialConfig())
	if err != nil {
		panic("fixtures: failed to create credential: " + err.Error())
	}
	return cred
}

// ExpiredCredential builds a credential whose lifetime has already passed.
func (f *fixtures) ExpiredCredential(principalID uuid.UUID) *model.RefreshCredential {
	now := time.Now().UTC()
	return model.ReconstructRefreshCredential(
		uuid.New(), principalID, Fake.Hex(32), Fake.String("device"),
		now.Add(-8*24*time.Hour), now.Add(-time.Hour),
		false, nil, "", "", nil, nil,
	)
}

// SuperAdmin builds a platform-wide admin record.
func (f *fixtures) SuperAdmin(principalID uuid.UUID) *model.Admin {
	return &model.Admin{PrincipalID: principalID, Role: model.AdminRoleSuper}
}

// CategoryAdmin builds a category-scoped admin record.
func (f *fixtures) CategoryAdmin(principalID uuid.UUID, categoryID int64) *model.Admin {
	return &model.Admin{PrincipalID: principalID, Role: model.AdminRoleCategory, CategoryID: &categoryID}
}
