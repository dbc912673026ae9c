package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CacheService wraps Redis for analytics payload caching. A nil client or
// disabled flag turns every call into a no-op so handlers never branch.
type CacheService struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
	logger  *zap.Logger
}

// NewCacheService constructs the service.
func NewCacheService(client *redis.Client, ttl time.Duration, enabled bool, logger *zap.Logger) *CacheService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CacheService{client: client, ttl: ttl, enabled: enabled && client != nil, logger: logger}
}

// Get unmarshals a cached value into dest. The boolean reports a hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.enabled {
		return false, nil
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores a value under key for the configured TTL. Failures are logged,
// not propagated; the cache is advisory.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if !s.enabled {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate drops one or more keys.
func (s *CacheService) Invalidate(ctx context.Context, keys ...string) {
	if !s.enabled || len(keys) == 0 {
		return
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
