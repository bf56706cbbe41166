// Package keycache fronts the key-management provider with a
// short-TTL, per-tenant in-memory cache of signing key material.
package keycache

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

const (
	DefaultPrivateTTL = 60 * time.Minute
	DefaultPublicTTL  = 24 * time.Hour
)

// entry is one tenant's cached active key.
type entry struct {
	handle    core.KeyHandle
	expiresAt time.Time
}

// Cache holds per-tenant signing keys. Reads for one tenant never
// block another tenant's entries; a miss for a single tenant is
// coalesced so at most one provider call is in flight per tenant.
type Cache struct {
	provider core.KeyProvider

	privateTTL time.Duration
	publicTTL  time.Duration

	group singleflight.Group

	mu sync.RWMutex
	// active holds plaintext key material for the cache TTL only.
	active map[string]*entry
	// wrapped is the encrypted form of each tenant's current seed,
	// used to repopulate the cache after expiry.
	wrapped map[string]wrappedKey
	// history keeps rotated public halves forever; they verify
	// historically signed evidence.
	history map[string][]core.KeyHandle

	// now is swappable for tests.
	now func() time.Time
}

type wrappedKey struct {
	keyID      string
	ciphertext []byte
	createdAt  time.Time
}

func New(provider core.KeyProvider, privateTTL, publicTTL time.Duration) *Cache {
	if privateTTL <= 0 {
		privateTTL = DefaultPrivateTTL
	}
	if publicTTL <= 0 {
		publicTTL = DefaultPublicTTL
	}
	return &Cache{
		provider:   provider,
		privateTTL: privateTTL,
		publicTTL:  publicTTL,
		active:     make(map[string]*entry),
		wrapped:    make(map[string]wrappedKey),
		history:    make(map[string][]core.KeyHandle),
		now:        time.Now,
	}
}

// GetSigningKey returns the tenant's active signing key, cache-first.
// On miss the stored wrapped seed is decrypted through the provider;
// the very first call for a tenant generates fresh key material.
func (c *Cache) GetSigningKey(ctx context.Context, tenantID string) (core.KeyHandle, error) {
	if tenantID == "" {
		return core.KeyHandle{}, core.ErrMissingTenantID
	}

	c.mu.RLock()
	e, ok := c.active[tenantID]
	if ok && c.now().Before(e.expiresAt) {
		handle := callerHandle(e.handle)
		c.mu.RUnlock()
		return handle, nil
	}
	c.mu.RUnlock()

	// Coalesce concurrent misses per tenant: the provider round-trip
	// is expensive and must happen at most once.
	v, err, _ := c.group.Do(tenantID, func() (any, error) {
		return c.populate(ctx, tenantID)
	})
	if err != nil {
		return core.KeyHandle{}, err
	}
	return v.(core.KeyHandle), nil
}

func (c *Cache) populate(ctx context.Context, tenantID string) (core.KeyHandle, error) {
	// Re-check under the flight: a sibling caller may have populated.
	c.mu.RLock()
	if e, ok := c.active[tenantID]; ok && c.now().Before(e.expiresAt) {
		handle := callerHandle(e.handle)
		c.mu.RUnlock()
		return handle, nil
	}
	wk, haveWrapped := c.wrapped[tenantID]
	c.mu.RUnlock()

	var (
		seed  []byte
		keyID string
	)
	if haveWrapped {
		plaintext, err := c.provider.Decrypt(ctx, wk.ciphertext, tenantID)
		if err != nil {
			return core.KeyHandle{}, fmt.Errorf("%w: %w", core.ErrKeyProviderUnavailable, err)
		}
		if len(plaintext) != seedSize {
			return core.KeyHandle{}, fmt.Errorf("provider returned %d-byte seed, want %d", len(plaintext), seedSize)
		}
		seed = plaintext
		keyID = wk.keyID
	} else {
		plaintext, ciphertext, err := c.provider.GenerateDataKey(ctx, tenantID)
		if err != nil {
			return core.KeyHandle{}, fmt.Errorf("%w: %w", core.ErrKeyProviderUnavailable, err)
		}
		// Validate before persisting: a bad ciphertext stored here
		// would fail every later repopulation for the tenant.
		if len(plaintext) != seedSize {
			return core.KeyHandle{}, fmt.Errorf("provider returned %d-byte seed, want %d", len(plaintext), seedSize)
		}
		seed = plaintext
		keyID = xid.New().String()

		c.mu.Lock()
		c.wrapped[tenantID] = wrappedKey{
			keyID:      keyID,
			ciphertext: ciphertext,
			createdAt:  c.now(),
		}
		c.mu.Unlock()

		log.Info().Str("tenant", tenantID).Str("key_id", keyID).Msg("generated tenant signing key")
	}

	private := ed25519.NewKeyFromSeed(seed)
	zero(seed)

	handle := core.KeyHandle{
		KeyID:     keyID,
		TenantID:  tenantID,
		State:     core.KeyActive,
		Private:   private,
		Public:    private.Public().(ed25519.PublicKey),
		CreatedAt: c.now(),
	}

	c.mu.Lock()
	c.active[tenantID] = &entry{
		handle:    handle,
		expiresAt: c.now().Add(c.privateTTL),
	}
	c.mu.Unlock()

	return callerHandle(handle), nil
}

// callerHandle gives the caller its own copy of the private bytes.
// The cache zeroes its copy on evict or rotate; a handle held across
// either must keep signing correctly.
func callerHandle(h core.KeyHandle) core.KeyHandle {
	if h.Private != nil {
		h.Private = append(ed25519.PrivateKey(nil), h.Private...)
	}
	return h
}

// RotateKey generates new key material for the tenant and returns the
// new key id. The previous key is marked rotated and its public half
// kept forever; its cache entry is invalidated immediately. Provider
// failure aborts the rotation and leaves the existing key active.
func (c *Cache) RotateKey(ctx context.Context, tenantID string) (string, error) {
	if tenantID == "" {
		return "", core.ErrMissingTenantID
	}

	// Resolve the current key first so its public half survives.
	current, err := c.GetSigningKey(ctx, tenantID)
	if err != nil {
		return "", err
	}

	seed, ciphertext, err := c.provider.GenerateDataKey(ctx, tenantID)
	if err != nil {
		log.Error().Err(err).Str("tenant", tenantID).Msg("key rotation aborted, keeping existing key")
		return "", fmt.Errorf("%w: %w", core.ErrKeyProviderUnavailable, err)
	}
	if len(seed) != seedSize {
		return "", fmt.Errorf("provider returned %d-byte seed, want %d", len(seed), seedSize)
	}

	newKeyID := xid.New().String()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Retire the old key: public half only, private material gone.
	retired := core.KeyHandle{
		KeyID:     current.KeyID,
		TenantID:  tenantID,
		State:     core.KeyRotated,
		Public:    current.Public,
		CreatedAt: current.CreatedAt,
	}
	c.history[tenantID] = append(c.history[tenantID], retired)

	if e, ok := c.active[tenantID]; ok {
		zero(e.handle.Private)
		delete(c.active, tenantID)
	}

	c.wrapped[tenantID] = wrappedKey{
		keyID:      newKeyID,
		ciphertext: ciphertext,
		createdAt:  c.now(),
	}
	zero(seed)

	log.Info().
		Str("tenant", tenantID).
		Str("old_key_id", current.KeyID).
		Str("new_key_id", newKeyID).
		Msg("rotated tenant signing key")
	return newKeyID, nil
}

// PublicKey resolves the public half of any key the tenant has ever
// held, active or rotated.
func (c *Cache) PublicKey(ctx context.Context, tenantID, keyID string) (ed25519.PublicKey, error) {
	c.mu.RLock()
	for _, h := range c.history[tenantID] {
		if h.KeyID == keyID {
			pub := h.Public
			c.mu.RUnlock()
			return pub, nil
		}
	}
	c.mu.RUnlock()

	handle, err := c.GetSigningKey(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if handle.KeyID != keyID {
		return nil, fmt.Errorf("%w: %s", core.ErrKeyNotFound, keyID)
	}
	return handle.Public, nil
}

// EvictExpired drops expired cache entries and zeroes their private
// material. The background eviction task calls this periodically.
func (c *Cache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for tenant, e := range c.active {
		if now.Before(e.expiresAt) {
			continue
		}
		zero(e.handle.Private)
		delete(c.active, tenant)
		evicted++
	}
	return evicted
}

// zero overwrites key material in place. Best-effort; the runtime may
// have copied the bytes already.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
