package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainerror "github.com/yunhaishang/Mallorn-sub002/internal/domain/error"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/event"
	"github.com/yunhaishang/Mallorn-sub002/internal/domain/model"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/cache"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/messaging"
	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/repository"
)

// Cache key namespaces. Each namespace is filled and invalidated
// independently.
const (
	profileKeyPrefix    = "user:profile:"
	securityKeyPrefix   = "user:security:"
	permissionKeyPrefix = "user:perm:"
)

// UserCacheConfig holds TTLs per namespace. Security info is the most
// sensitive to staleness and carries the shortest TTL.
type UserCacheConfig struct {
	ProfileTTL    time.Duration
	SecurityTTL   time.Duration
	PermissionTTL time.Duration
}

// DefaultUserCacheConfig returns default user cache configuration.
func DefaultUserCacheConfig() UserCacheConfig {
	return UserCacheConfig{
		ProfileTTL:    30 * time.Minute,
		SecurityTTL:   5 * time.Minute,
		PermissionTTL: 15 * time.Minute,
	}
}

// UserCache serves principal data through two tiers: an in-process fast
// tier for full profiles and the shared cache for all namespaces, with
// the repository as the source of truth.
type UserCache interface {
	// GetProfile returns the principal's profile, filling both tiers on
	// a miss. Missing principals are negative-cached.
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Principal, error)

	// SetProfile writes a profile through both tiers.
	SetProfile(ctx context.Context, principal *model.Principal) error

	// GetSecurityInfo returns the security-sensitive subset.
	GetSecurityInfo(ctx context.Context, id uuid.UUID) (*model.SecurityInfo, error)

	// GetPermissions returns the derived permission set. Regular users
	// resolve to the base role rather than an error.
	GetPermissions(ctx context.Context, id uuid.UUID) (*model.Permission, error)

	// GetMany returns profiles for the given ids with at most one
	// repository round trip for all cache misses combined.
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Principal, error)

	// RefreshProfile reloads the profile from the repository, bypassing
	// cached entries.
	RefreshProfile(ctx context.Context, id uuid.UUID) (*model.Principal, error)

	// RefreshSecurityInfo reloads the security subset from the repository.
	RefreshSecurityInfo(ctx context.Context, id uuid.UUID) (*model.SecurityInfo, error)

	// RefreshPermissions rederives the permission set from the repository.
	RefreshPermissions(ctx context.Context, id uuid.UUID) (*model.Permission, error)

	// InvalidateAll drops every cached namespace for the principal.
	InvalidateAll(ctx context.Context, id uuid.UUID) error

	// InvalidateMany drops every cached namespace for all given ids.
	InvalidateMany(ctx context.Context, ids []uuid.UUID) error
}

// userCache implements UserCache.
type userCache struct {
	repo      repository.PrincipalRepository
	cache     cache.Cache
	publisher messaging.EventPublisher
	config    UserCacheConfig
	logger    *zap.Logger

	// fastTier holds full profiles only, keyed by principal id. Other
	// namespaces always go through the shared cache.
	fastTier sync.Map

	// One fill lock per namespace. Serializing fills per namespace
	// rather than per key keeps the lock table bounded; distinct
	// namespaces never block each other.
	profileMu    sync.Mutex
	securityMu   sync.Mutex
	permissionMu sync.Mutex
}

// NewUserCache creates a new UserCache.
func NewUserCache(
	repo repository.PrincipalRepository,
	c cache.Cache,
	publisher messaging.EventPublisher,
	config UserCacheConfig,
	logger *zap.Logger,
) UserCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultUserCacheConfig()
	if config.ProfileTTL <= 0 {
		config.ProfileTTL = defaults.ProfileTTL
	}
	if config.SecurityTTL <= 0 {
		config.SecurityTTL = defaults.SecurityTTL
	}
	if config.PermissionTTL <= 0 {
		config.PermissionTTL = defaults.PermissionTTL
	}
	return &userCache{
		repo:      repo,
		cache:     c,
		publisher: publisher,
		config:    config,
		logger:    logger,
	}
}

// cachedProfile is the serialized form of a Principal for cache storage.
type cachedProfile struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	Username         string     `json:"username"`
	PasswordHash     string     `json:"password_hash"`
	CreditScore      int        `json:"credit_score"`
	Active           bool       `json:"active"`
	Locked           bool       `json:"locked"`
	LockoutEnd       *time.Time `json:"lockout_end,omitempty"`
	FailedAttempts   int        `json:"failed_attempts"`
	SecurityStamp    string     `json:"security_stamp"`
	TwoFactorEnabled bool       `json:"two_factor_enabled"`
	EmailVerified    bool       `json:"email_verified"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func newCachedProfile(p *model.Principal) *cachedProfile {
	return &cachedProfile{
		ID:               p.ID(),
		Email:            p.Email(),
		Username:         p.Username(),
		PasswordHash:     p.PasswordHash(),
		CreditScore:      p.CreditScore(),
		Active:           p.Active(),
		Locked:           p.Locked(),
		LockoutEnd:       p.LockoutEnd(),
		FailedAttempts:   p.FailedAttempts(),
		SecurityStamp:    p.SecurityStamp(),
		TwoFactorEnabled: p.TwoFactorEnabled(),
		EmailVerified:    p.EmailVerified(),
		CreatedAt:        p.CreatedAt(),
		UpdatedAt:        p.UpdatedAt(),
	}
}

func (c cachedProfile) toModel() *model.Principal {
	return model.ReconstructPrincipal(
		c.ID,
		c.Email,
		c.Username,
		c.PasswordHash,
		c.CreditScore,
		c.Active,
		c.Locked,
		c.LockoutEnd,
		c.FailedAttempts,
		c.SecurityStamp,
		c.TwoFactorEnabled,
		c.EmailVerified,
		c.CreatedAt,
		c.UpdatedAt,
	)
}

func profileKey(id uuid.UUID) string    { return profileKeyPrefix + id.String() }
func securityKey(id uuid.UUID) string   { return securityKeyPrefix + id.String() }
func permissionKey(id uuid.UUID) string { return permissionKeyPrefix + id.String() }

func (u *userCache) GetProfile(ctx context.Context, id uuid.UUID) (*model.Principal, error) {
	if id == uuid.Nil {
		return nil, domainerror.ErrPrincipalIDRequired
	}

	if cached, ok := u.fastTier.Load(id); ok {
		return cached.(*model.Principal), nil
	}

	u.profileMu.Lock()
	defer u.profileMu.Unlock()

	// A concurrent fill may have landed while we waited on the lock.
	if cached, ok := u.fastTier.Load(id); ok {
		return cached.(*model.Principal), nil
	}

	profile, err := cache.GetOrCreate(ctx, u.cache, u.logger, profileKey(id), u.config.ProfileTTL,
		func(ctx context.Context) (*cachedProfile, error) {
			return u.loadProfile(ctx, id)
		})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, domainerror.ErrPrincipalNotFound
	}

	principal := profile.toModel()
	u.fastTier.Store(id, principal)
	return principal, nil
}

func (u *userCache) loadProfile(ctx context.Context, id uuid.UUID) (*cachedProfile, error) {
	principal, err := u.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return newCachedProfile(principal), nil
}

func (u *userCache) SetProfile(ctx context.Context, principal *model.Principal) error {
	if principal == nil {
		return domainerror.ErrPrincipalIDRequired
	}

	data, err := cache.EncodeEntry(newCachedProfile(principal))
	if err != nil {
		return err
	}
	if err := u.cache.Set(ctx, profileKey(principal.ID()), data, u.config.ProfileTTL); err != nil {
		u.logger.Warn("profile cache write failed",
			zap.String("principal_id", principal.ID().String()),
			zap.Error(err))
	}

	u.fastTier.Store(principal.ID(), principal)
	return nil
}

func (u *userCache) GetSecurityInfo(ctx context.Context, id uuid.UUID) (*model.SecurityInfo, error) {
	if id == uuid.Nil {
		return nil, domainerror.ErrPrincipalIDRequired
	}

	u.securityMu.Lock()
	defer u.securityMu.Unlock()

	info, err := cache.GetOrCreate(ctx, u.cache, u.logger, securityKey(id), u.config.SecurityTTL,
		func(ctx context.Context) (*model.SecurityInfo, error) {
			return u.loadSecurityInfo(ctx, id)
		})
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, domainerror.ErrPrincipalNotFound
	}
	return info, nil
}

func (u *userCache) loadSecurityInfo(ctx context.Context, id uuid.UUID) (*model.SecurityInfo, error) {
	principal, err := u.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	info := principal.SecurityInfo()
	return &info, nil
}

func (u *userCache) GetPermissions(ctx context.Context, id uuid.UUID) (*model.Permission, error) {
	if id == uuid.Nil {
		return nil, domainerror.ErrPrincipalIDRequired
	}

	u.permissionMu.Lock()
	defer u.permissionMu.Unlock()

	perm, err := cache.GetOrCreate(ctx, u.cache, u.logger, permissionKey(id), u.config.PermissionTTL,
		func(ctx context.Context) (*model.Permission, error) {
			return u.loadPermissions(ctx, id)
		})
	if err != nil {
		return nil, err
	}
	if perm == nil {
		// Permission derivation never stores a negative entry; treat a
		// sentinel left by older code as the base role.
		base := model.DerivePermission(nil)
		return &base, nil
	}
	return perm, nil
}

func (u *userCache) loadPermissions(ctx context.Context, id uuid.UUID) (*model.Permission, error) {
	admin, err := u.repo.FindAdmin(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	perm := model.DerivePermission(admin)
	return &perm, nil
}

// GetMany resolves profiles for a batch of ids: fast tier first, then one
// bulk cache probe, then a single repository call for everything still
// missing. Ids with no record are absent from the result and
// negative-cached.
func (u *userCache) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Principal, error) {
	result := make(map[uuid.UUID]*model.Principal, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var missing []uuid.UUID
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == uuid.Nil {
			continue
		}
		seen[id] = struct{}{}

		if cached, ok := u.fastTier.Load(id); ok {
			result[id] = cached.(*model.Principal)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}

	// Share the profile fill lock with GetProfile so the namespace sends
	// at most one concurrent fetch to the backing store.
	u.profileMu.Lock()
	defer u.profileMu.Unlock()

	// Concurrent fills may have landed while we waited on the lock.
	still := missing[:0]
	for _, id := range missing {
		if cached, ok := u.fastTier.Load(id); ok {
			result[id] = cached.(*model.Principal)
			continue
		}
		still = append(still, id)
	}
	missing = still
	if len(missing) == 0 {
		return result, nil
	}

	missing = u.probeCacheTier(ctx, missing, result)
	if len(missing) == 0 {
		return result, nil
	}

	principals, err := u.repo.FindByIDs(ctx, missing)
	if err != nil {
		return nil, err
	}

	found := make(map[uuid.UUID]struct{}, len(principals))
	for _, principal := range principals {
		found[principal.ID()] = struct{}{}
		result[principal.ID()] = principal
		u.fastTier.Store(principal.ID(), principal)
		u.storeProfile(ctx, principal.ID(), newCachedProfile(principal))
	}

	for _, id := range missing {
		if _, ok := found[id]; !ok {
			u.storeProfile(ctx, id, nil)
		}
	}

	return result, nil
}

// probeCacheTier resolves what it can from the shared cache and returns
// the ids still unresolved. Cache errors degrade to a full miss.
func (u *userCache) probeCacheTier(ctx context.Context, ids []uuid.UUID, result map[uuid.UUID]*model.Principal) []uuid.UUID {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKey(id)
	}

	entries, err := u.cache.GetMany(ctx, keys)
	if err != nil {
		u.logger.Warn("cache probe failed, falling back to repository",
			zap.Int("keys", len(keys)),
			zap.Error(err))
		return ids
	}

	var unresolved []uuid.UUID
	for i, id := range ids {
		data, ok := entries[keys[i]]
		if !ok {
			unresolved = append(unresolved, id)
			continue
		}

		profile, ok := cache.DecodeEntry[cachedProfile](data)
		if !ok {
			unresolved = append(unresolved, id)
			continue
		}
		if profile == nil {
			// Negative entry: the principal is known to not exist.
			continue
		}

		principal := profile.toModel()
		result[id] = principal
		u.fastTier.Store(id, principal)
	}
	return unresolved
}

func (u *userCache) storeProfile(ctx context.Context, id uuid.UUID, profile *cachedProfile) {
	data, err := cache.EncodeEntry(profile)
	if err != nil {
		return
	}
	if err := u.cache.Set(ctx, profileKey(id), data, u.config.ProfileTTL); err != nil {
		u.logger.Warn("profile cache write failed",
			zap.String("principal_id", id.String()),
			zap.Error(err))
	}
}

func (u *userCache) RefreshProfile(ctx context.Context, id uuid.UUID) (*model.Principal, error) {
	if id == uuid.Nil {
		return nil, domainerror.ErrPrincipalIDRequired
	}

	principal, err := u.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			u.fastTier.Delete(id)
			u.storeProfile(ctx, id, nil)
			return nil, domainerror.ErrPrincipalNotFound
		}
		return nil, err
	}

	u.fastTier.Store(id, principal)
	u.storeProfile(ctx, id, newCachedProfile(principal))
	return principal, nil
}

func (u *userCache) RefreshSecurityInfo(ctx context.Context, id uuid.UUID) (*model.SecurityInfo, error) {
	if id == uuid.Nil {
		return nil, domainerror.ErrPrincipalIDRequired
	}

	info, err := u.loadSecurityInfo(ctx, id)
	if err != nil {
		return nil, err
	}

	data, encodeErr := cache.EncodeEntry(info)
	if encodeErr == nil {
		if err := u.cache.Set(ctx, securityKey(id), data, u.config.SecurityTTL); err != nil {
			u.logger.Warn("security cache write failed",
				zap.String("principal_id", id.String()),
				zap.Error(err))
		}
	}

	if info == nil {
		return nil, domainerror.ErrPrincipalNotFound
	}
	return info, nil
}

func (u *userCache) RefreshPermissions(ctx context.Context, id uuid.UUID) (*model.Permission, error) {
	if id == uuid.Nil {
		return nil, domainerror.ErrPrincipalIDRequired
	}

	perm, err := u.loadPermissions(ctx, id)
	if err != nil {
		return nil, err
	}

	data, encodeErr := cache.EncodeEntry(perm)
	if encodeErr == nil {
		if err := u.cache.Set(ctx, permissionKey(id), data, u.config.PermissionTTL); err != nil {
			u.logger.Warn("permission cache write failed",
				zap.String("principal_id", id.String()),
				zap.Error(err))
		}
	}
	return perm, nil
}

func (u *userCache) InvalidateAll(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return domainerror.ErrPrincipalIDRequired
	}

	u.fastTier.Delete(id)

	var errs []error
	for _, key := range []string{profileKey(id), securityKey(id), permissionKey(id)} {
		if err := u.cache.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		u.logger.Warn("cache invalidation incomplete",
			zap.String("principal_id", id.String()),
			zap.Errors("errors", errs))
		return errors.Join(errs...)
	}

	u.publishInvalidated(ctx, id)
	return nil
}

func (u *userCache) InvalidateMany(ctx context.Context, ids []uuid.UUID) error {
	var errs []error
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if err := u.InvalidateAll(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (u *userCache) publishInvalidated(ctx context.Context, id uuid.UUID) {
	if u.publisher == nil {
		return
	}
	if err := u.publisher.Publish(ctx, event.NewUserCacheInvalidated(id)); err != nil {
		u.logger.Warn("publish cache invalidation event failed",
			zap.String("principal_id", id.String()),
			zap.Error(err))
	}
}
