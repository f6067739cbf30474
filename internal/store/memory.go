package store

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/model"
	tokens "github.com/dropDatabas3/gatejohn/internal/security/token"
)

const handleBytes = 32

// grantTTL returns how long a grant should remain cached.
func grantTTL(creation time.Time, lifetimeSeconds int, now time.Time) time.Duration {
	ttl := creation.Add(time.Duration(lifetimeSeconds) * time.Second).Sub(now)
	if ttl <= 0 {
		// Let the cache expire it immediately rather than rejecting the write.
		return time.Nanosecond
	}
	return ttl
}

// MemoryAuthorizationCodeStore keeps codes in an in-process cache.
// Handles are stored under their sha256 so a memory dump does not leak
// redeemable codes.
type MemoryAuthorizationCodeStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
	clk   clock.Clock
}

func NewMemoryAuthorizationCodeStore(clk clock.Clock) *MemoryAuthorizationCodeStore {
	return &MemoryAuthorizationCodeStore{
		cache: gocache.New(gocache.NoExpiration, time.Minute),
		clk:   clk,
	}
}

func (s *MemoryAuthorizationCodeStore) Store(ctx context.Context, code *model.AuthorizationCode) (string, error) {
	handle, err := tokens.GenerateOpaqueToken(handleBytes)
	if err != nil {
		return "", err
	}
	ttl := grantTTL(code.CreationTime, code.Lifetime, s.clk.Now())
	s.cache.Set(tokens.SHA256Base64URL(handle), code, ttl)
	return handle, nil
}

// Take holds the store mutex across lookup and delete so two concurrent
// redemptions of the same code cannot both succeed.
func (s *MemoryAuthorizationCodeStore) Take(ctx context.Context, handle string) (*model.AuthorizationCode, error) {
	key := tokens.SHA256Base64URL(handle)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	s.cache.Delete(key)
	return v.(*model.AuthorizationCode), nil
}

// MemoryRefreshTokenStore keeps refresh tokens in an in-process cache.
type MemoryRefreshTokenStore struct {
	cache *gocache.Cache
	clk   clock.Clock
}

func NewMemoryRefreshTokenStore(clk clock.Clock) *MemoryRefreshTokenStore {
	return &MemoryRefreshTokenStore{
		cache: gocache.New(gocache.NoExpiration, time.Minute),
		clk:   clk,
	}
}

func (s *MemoryRefreshTokenStore) Store(ctx context.Context, token *model.RefreshToken) (string, error) {
	handle, err := tokens.GenerateOpaqueToken(handleBytes)
	if err != nil {
		return "", err
	}
	ttl := grantTTL(token.CreationTime, token.Lifetime, s.clk.Now())
	if token.Lifetime == 0 {
		ttl = gocache.NoExpiration
	}
	s.cache.Set(tokens.SHA256Base64URL(handle), token, ttl)
	return handle, nil
}

func (s *MemoryRefreshTokenStore) Get(ctx context.Context, handle string) (*model.RefreshToken, error) {
	v, ok := s.cache.Get(tokens.SHA256Base64URL(handle))
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*model.RefreshToken), nil
}

func (s *MemoryRefreshTokenStore) Update(ctx context.Context, handle string, token *model.RefreshToken) error {
	ttl := grantTTL(token.CreationTime, token.Lifetime, s.clk.Now())
	if token.Lifetime == 0 {
		ttl = gocache.NoExpiration
	}
	s.cache.Set(tokens.SHA256Base64URL(handle), token, ttl)
	return nil
}

func (s *MemoryRefreshTokenStore) Remove(ctx context.Context, handle string) error {
	s.cache.Delete(tokens.SHA256Base64URL(handle))
	return nil
}

// MemoryReferenceTokenStore keeps reference access tokens in an
// in-process cache.
type MemoryReferenceTokenStore struct {
	cache *gocache.Cache
	clk   clock.Clock
}

func NewMemoryReferenceTokenStore(clk clock.Clock) *MemoryReferenceTokenStore {
	return &MemoryReferenceTokenStore{
		cache: gocache.New(gocache.NoExpiration, time.Minute),
		clk:   clk,
	}
}

func (s *MemoryReferenceTokenStore) Store(ctx context.Context, token *model.ReferenceToken) (string, error) {
	handle, err := tokens.GenerateOpaqueToken(handleBytes)
	if err != nil {
		return "", err
	}
	ttl := grantTTL(token.CreationTime, token.Lifetime, s.clk.Now())
	s.cache.Set(tokens.SHA256Base64URL(handle), token, ttl)
	return handle, nil
}

func (s *MemoryReferenceTokenStore) Get(ctx context.Context, handle string) (*model.ReferenceToken, error) {
	v, ok := s.cache.Get(tokens.SHA256Base64URL(handle))
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*model.ReferenceToken), nil
}

func (s *MemoryReferenceTokenStore) Remove(ctx context.Context, handle string) error {
	s.cache.Delete(tokens.SHA256Base64URL(handle))
	return nil
}

// MemoryDeviceCodeStore keeps device codes in an in-process cache with a
// secondary user_code index.
type MemoryDeviceCodeStore struct {
	mu    sync.Mutex
	cache *gocache.Cache
	clk   clock.Clock
}

func NewMemoryDeviceCodeStore(clk clock.Clock) *MemoryDeviceCodeStore {
	return &MemoryDeviceCodeStore{
		cache: gocache.New(gocache.NoExpiration, time.Minute),
		clk:   clk,
	}
}

func (s *MemoryDeviceCodeStore) Store(ctx context.Context, code *model.DeviceCode) (string, error) {
	handle, err := tokens.GenerateOpaqueToken(handleBytes)
	if err != nil {
		return "", err
	}
	ttl := grantTTL(code.CreationTime, code.Lifetime, s.clk.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set("dc:"+tokens.SHA256Base64URL(handle), code, ttl)
	if code.UserCode != "" {
		s.cache.Set("uc:"+code.UserCode, handle, ttl)
	}
	return handle, nil
}

func (s *MemoryDeviceCodeStore) Get(ctx context.Context, handle string) (*model.DeviceCode, error) {
	v, ok := s.cache.Get("dc:" + tokens.SHA256Base64URL(handle))
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*model.DeviceCode), nil
}

func (s *MemoryDeviceCodeStore) FindByUserCode(ctx context.Context, userCode string) (*model.DeviceCode, string, error) {
	v, ok := s.cache.Get("uc:" + userCode)
	if !ok {
		return nil, "", ErrNotFound
	}
	handle := v.(string)
	dc, err := s.Get(ctx, handle)
	if err != nil {
		return nil, "", err
	}
	return dc, handle, nil
}

func (s *MemoryDeviceCodeStore) Update(ctx context.Context, handle string, code *model.DeviceCode) error {
	ttl := grantTTL(code.CreationTime, code.Lifetime, s.clk.Now())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set("dc:"+tokens.SHA256Base64URL(handle), code, ttl)
	return nil
}

func (s *MemoryDeviceCodeStore) Remove(ctx context.Context, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cache.Get("dc:" + tokens.SHA256Base64URL(handle)); ok {
		if dc, ok := v.(*model.DeviceCode); ok && dc.UserCode != "" {
			s.cache.Delete("uc:" + dc.UserCode)
		}
	}
	s.cache.Delete("dc:" + tokens.SHA256Base64URL(handle))
	return nil
}

// MemoryReplayCache remembers seen jti values until their expiry.
type MemoryReplayCache struct {
	cache *gocache.Cache
	clk   clock.Clock
}

func NewMemoryReplayCache(clk clock.Clock) *MemoryReplayCache {
	return &MemoryReplayCache{
		cache: gocache.New(gocache.NoExpiration, time.Minute),
		clk:   clk,
	}
}

func (c *MemoryReplayCache) Exists(ctx context.Context, purpose, id string) (bool, error) {
	_, ok := c.cache.Get(purpose + ":" + id)
	return ok, nil
}

func (c *MemoryReplayCache) Add(ctx context.Context, purpose, id string, expiry time.Time) error {
	ttl := expiry.Sub(c.clk.Now())
	if ttl <= 0 {
		return nil
	}
	c.cache.Set(purpose+":"+id, struct{}{}, ttl)
	return nil
}

// MemoryThrottleCache tracks device-flow poll instants.
type MemoryThrottleCache struct {
	cache *gocache.Cache
}

func NewMemoryThrottleCache() *MemoryThrottleCache {
	return &MemoryThrottleCache{cache: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (c *MemoryThrottleCache) LastPoll(ctx context.Context, handle string) (time.Time, bool, error) {
	v, ok := c.cache.Get(handle)
	if !ok {
		return time.Time{}, false, nil
	}
	return v.(time.Time), true, nil
}

func (c *MemoryThrottleCache) SetLastPoll(ctx context.Context, handle string, at time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Nanosecond
	}
	c.cache.Set(handle, at, ttl)
	return nil
}
