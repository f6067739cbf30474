package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/gatejohn/internal/clock"
	"github.com/dropDatabas3/gatejohn/internal/model"
	tokens "github.com/dropDatabas3/gatejohn/internal/security/token"
)

// RedisConfig configures the Redis-backed grant stores.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisClient opens and pings a Redis connection.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("store: redis ping failed: %w", err)
	}
	return rdb, nil
}

type redisGrants struct {
	rdb    *redis.Client
	prefix string
	clk    clock.Clock
}

func (r redisGrants) key(kind, k string) string {
	if r.prefix == "" {
		return kind + ":" + k
	}
	return r.prefix + ":" + kind + ":" + k
}

// RedisAuthorizationCodeStore stores codes in Redis keyed by the sha256 of
// the handle. Take uses GETDEL so two concurrent redemptions cannot both
// observe the code.
type RedisAuthorizationCodeStore struct {
	redisGrants
}

func NewRedisAuthorizationCodeStore(rdb *redis.Client, prefix string, clk clock.Clock) *RedisAuthorizationCodeStore {
	return &RedisAuthorizationCodeStore{redisGrants{rdb: rdb, prefix: prefix, clk: clk}}
}

func (s *RedisAuthorizationCodeStore) Store(ctx context.Context, code *model.AuthorizationCode) (string, error) {
	handle, err := tokens.GenerateOpaqueToken(handleBytes)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(code)
	if err != nil {
		return "", err
	}
	ttl := grantTTL(code.CreationTime, code.Lifetime, s.clk.Now())
	if err := s.rdb.Set(ctx, s.key("code", tokens.SHA256Base64URL(handle)), data, ttl).Err(); err != nil {
		return "", err
	}
	return handle, nil
}

func (s *RedisAuthorizationCodeStore) Take(ctx context.Context, handle string) (*model.AuthorizationCode, error) {
	data, err := s.rdb.GetDel(ctx, s.key("code", tokens.SHA256Base64URL(handle))).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var code model.AuthorizationCode
	if err := json.Unmarshal(data, &code); err != nil {
		return nil, err
	}
	return &code, nil
}

// RedisRefreshTokenStore stores refresh tokens in Redis.
type RedisRefreshTokenStore struct {
	redisGrants
}

func NewRedisRefreshTokenStore(rdb *redis.Client, prefix string, clk clock.Clock) *RedisRefreshTokenStore {
	return &RedisRefreshTokenStore{redisGrants{rdb: rdb, prefix: prefix, clk: clk}}
}

func (s *RedisRefreshTokenStore) set(ctx context.Context, handle string, token *model.RefreshToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if token.Lifetime > 0 {
		ttl = grantTTL(token.CreationTime, token.Lifetime, s.clk.Now())
	}
	return s.rdb.Set(ctx, s.key("rt", tokens.SHA256Base64URL(handle)), data, ttl).Err()
}

func (s *RedisRefreshTokenStore) Store(ctx context.Context, token *model.RefreshToken) (string, error) {
	handle, err := tokens.GenerateOpaqueToken(handleBytes)
	if err != nil {
		return "", err
	}
	if err := s.set(ctx, handle, token); err != nil {
		return "", err
	}
	return handle, nil
}

func (s *RedisRefreshTokenStore) Get(ctx context.Context, handle string) (*model.RefreshToken, error) {
	data, err := s.rdb.Get(ctx, s.key("rt", tokens.SHA256Base64URL(handle))).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var token model.RefreshToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *RedisRefreshTokenStore) Update(ctx context.Context, handle string, token *model.RefreshToken) error {
	return s.set(ctx, handle, token)
}

func (s *RedisRefreshTokenStore) Remove(ctx context.Context, handle string) error {
	return s.rdb.Del(ctx, s.key("rt", tokens.SHA256Base64URL(handle))).Err()
}

// RedisReferenceTokenStore stores reference access tokens in Redis.
type RedisReferenceTokenStore struct {
	redisGrants
}

func NewRedisReferenceTokenStore(rdb *redis.Client, prefix string, clk clock.Clock) *RedisReferenceTokenStore {
	return &RedisReferenceTokenStore{redisGrants{rdb: rdb, prefix: prefix, clk: clk}}
}

func (s *RedisReferenceTokenStore) Store(ctx context.Context, token *model.ReferenceToken) (string, error) {
	handle, err := tokens.GenerateOpaqueToken(handleBytes)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(token)
	if err != nil {
		return "", err
	}
	ttl := grantTTL(token.CreationTime, token.Lifetime, s.clk.Now())
	if err := s.rdb.Set(ctx, s.key("at", tokens.SHA256Base64URL(handle)), data, ttl).Err(); err != nil {
		return "", err
	}
	return handle, nil
}

func (s *RedisReferenceTokenStore) Get(ctx context.Context, handle string) (*model.ReferenceToken, error) {
	data, err := s.rdb.Get(ctx, s.key("at", tokens.SHA256Base64URL(handle))).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var token model.ReferenceToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *RedisReferenceTokenStore) Remove(ctx context.Context, handle string) error {
	return s.rdb.Del(ctx, s.key("at", tokens.SHA256Base64URL(handle))).Err()
}

// RedisDeviceCodeStore stores device codes with a secondary user_code key,
// both expiring with the code.
type RedisDeviceCodeStore struct {
	redisGrants
}

func NewRedisDeviceCodeStore(rdb *redis.Client, prefix string, clk clock.Clock) *RedisDeviceCodeStore {
	return &RedisDeviceCodeStore{redisGrants{rdb: rdb, prefix: prefix, clk: clk}}
}

func (s *RedisDeviceCodeStore) Store(ctx context.Context, code *model.DeviceCode) (string, error) {
	handle, err := tokens.GenerateOpaqueToken(handleBytes)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(code)
	if err != nil {
		return "", err
	}
	ttl := grantTTL(code.CreationTime, code.Lifetime, s.clk.Now())
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.key("dc", tokens.SHA256Base64URL(handle)), data, ttl)
	if code.UserCode != "" {
		pipe.Set(ctx, s.key("uc", code.UserCode), handle, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}
	return handle, nil
}

func (s *RedisDeviceCodeStore) Get(ctx context.Context, handle string) (*model.DeviceCode, error) {
	data, err := s.rdb.Get(ctx, s.key("dc", tokens.SHA256Base64URL(handle))).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var code model.DeviceCode
	if err := json.Unmarshal(data, &code); err != nil {
		return nil, err
	}
	return &code, nil
}

func (s *RedisDeviceCodeStore) FindByUserCode(ctx context.Context, userCode string) (*model.DeviceCode, string, error) {
	handle, err := s.rdb.Get(ctx, s.key("uc", userCode)).Result()
	if err == redis.Nil {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	code, err := s.Get(ctx, handle)
	if err != nil {
		return nil, "", err
	}
	return code, handle, nil
}

func (s *RedisDeviceCodeStore) Update(ctx context.Context, handle string, code *model.DeviceCode) error {
	data, err := json.Marshal(code)
	if err != nil {
		return err
	}
	ttl := grantTTL(code.CreationTime, code.Lifetime, s.clk.Now())
	return s.rdb.Set(ctx, s.key("dc", tokens.SHA256Base64URL(handle)), data, ttl).Err()
}

func (s *RedisDeviceCodeStore) Remove(ctx context.Context, handle string) error {
	code, err := s.Get(ctx, handle)
	if err == nil && code.UserCode != "" {
		_ = s.rdb.Del(ctx, s.key("uc", code.UserCode)).Err()
	}
	return s.rdb.Del(ctx, s.key("dc", tokens.SHA256Base64URL(handle))).Err()
}

// RedisReplayCache remembers seen jti values using SET NX with expiry.
type RedisReplayCache struct {
	redisGrants
}

func NewRedisReplayCache(rdb *redis.Client, prefix string, clk clock.Clock) *RedisReplayCache {
	return &RedisReplayCache{redisGrants{rdb: rdb, prefix: prefix, clk: clk}}
}

func (c *RedisReplayCache) Exists(ctx context.Context, purpose, id string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.key("replay", purpose+":"+id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisReplayCache) Add(ctx context.Context, purpose, id string, expiry time.Time) error {
	ttl := expiry.Sub(c.clk.Now())
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, c.key("replay", purpose+":"+id), "1", ttl).Err()
}

// RedisThrottleCache tracks device-flow poll instants.
type RedisThrottleCache struct {
	redisGrants
}

func NewRedisThrottleCache(rdb *redis.Client, prefix string, clk clock.Clock) *RedisThrottleCache {
	return &RedisThrottleCache{redisGrants{rdb: rdb, prefix: prefix, clk: clk}}
}

func (c *RedisThrottleCache) LastPoll(ctx context.Context, handle string) (time.Time, bool, error) {
	v, err := c.rdb.Get(ctx, c.key("poll", tokens.SHA256Base64URL(handle))).Int64()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(0, v).UTC(), true, nil
}

func (c *RedisThrottleCache) SetLastPoll(ctx context.Context, handle string, at time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, c.key("poll", tokens.SHA256Base64URL(handle)), at.UnixNano(), ttl).Err()
}
