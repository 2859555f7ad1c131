package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig configures the optional shared cache tier.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// RedisCache is a shared market-data cache behind the in-process tier, with a
// circuit breaker for graceful degradation: after maxFailures consecutive
// errors the cache reports misses without touching Redis, and a background
// ping re-closes the circuit once Redis recovers.
type RedisCache struct {
	client *redis.Client
	logger zerolog.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewRedisCache connects to Redis. A failed initial connection is not an
// error; the cache starts in degraded mode and recovers on its own.
func NewRedisCache(cfg RedisConfig, logger zerolog.Logger) *RedisCache {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     poolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	rc := &RedisCache{
		client:        client,
		logger:        logger.With().Str("component", "RedisCache").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		rc.logger.Warn().Err(err).Msg("initial redis connection failed, starting degraded")
		return rc
	}

	rc.healthy = true
	rc.lastCheck = time.Now()
	rc.logger.Info().Str("address", cfg.Address).Msg("redis connected")
	return rc
}

// IsHealthy reports whether the circuit is closed.
func (rc *RedisCache) IsHealthy() bool {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return rc.healthy
}

// Get returns the cached bytes for key, or a miss when absent, expired, or
// the circuit is open.
func (rc *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !rc.IsHealthy() {
		rc.checkHealth()
		return nil, false
	}

	data, err := rc.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		rc.recordSuccess()
		return nil, false
	}
	if err != nil {
		rc.recordFailure(err)
		return nil, false
	}

	rc.recordSuccess()
	return data, true
}

// Set stores the bytes under key with the given TTL. Failures only feed the
// circuit breaker; callers never see them.
func (rc *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !rc.IsHealthy() {
		rc.checkHealth()
		return
	}

	if err := rc.client.Set(ctx, key, value, ttl).Err(); err != nil {
		rc.recordFailure(err)
		return
	}
	rc.recordSuccess()
}

// Close releases the underlying client.
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

func (rc *RedisCache) recordFailure(err error) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.failureCount++
	if rc.failureCount >= rc.maxFailures && rc.healthy {
		rc.logger.Warn().Err(err).Int("failures", rc.failureCount).Msg("circuit breaker open, redis marked unhealthy")
		rc.healthy = false
	}
}

func (rc *RedisCache) recordSuccess() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if !rc.healthy {
		rc.logger.Info().Msg("circuit breaker closed, redis recovered")
	}
	rc.healthy = true
	rc.failureCount = 0
	rc.lastCheck = time.Now()
}

// checkHealth pings Redis in the background once the check interval has
// passed since the circuit opened.
func (rc *RedisCache) checkHealth() {
	rc.mu.RLock()
	shouldCheck := !rc.healthy && time.Since(rc.lastCheck) >= rc.checkInterval
	rc.mu.RUnlock()

	if !shouldCheck {
		return
	}

	rc.mu.Lock()
	rc.lastCheck = time.Now()
	rc.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := rc.client.Ping(ctx).Err(); err == nil {
			rc.recordSuccess()
		}
	}()
}
