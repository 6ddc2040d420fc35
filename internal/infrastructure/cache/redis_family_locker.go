package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/config"
)

const (
	defaultLockKeyPrefix     = "variation:lock:"
	defaultLockTTL           = 5 * time.Minute
	defaultLockRetryInterval = 100 * time.Millisecond
	releaseTimeout           = 5 * time.Second
)

// releaseScript deletes the lock only while it still holds the caller's token,
// so an expired lock re-acquired by another worker is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisFamilyLocker implements variation.FamilyLocker with a Redis key per
// family. Suitable when several worker instances share the same families.
type RedisFamilyLocker struct {
	client        *redis.Client
	keyPrefix     string
	ttl           time.Duration
	retryInterval time.Duration
	logger        *zap.Logger
}

// RedisLockerOption configures a RedisFamilyLocker
type RedisLockerOption func(*RedisFamilyLocker)

// WithKeyPrefix sets the key namespace
func WithKeyPrefix(prefix string) RedisLockerOption {
	return func(l *RedisFamilyLocker) {
		if prefix != "" {
			l.keyPrefix = prefix
		}
	}
}

// WithLockTTL bounds how long a crashed holder can block a family
func WithLockTTL(ttl time.Duration) RedisLockerOption {
	return func(l *RedisFamilyLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryInterval sets how often a waiting Lock call retries
func WithRetryInterval(d time.Duration) RedisLockerOption {
	return func(l *RedisFamilyLocker) {
		if d > 0 {
			l.retryInterval = d
		}
	}
}

// WithLockLogger sets the logger
func WithLockLogger(logger *zap.Logger) RedisLockerOption {
	return func(l *RedisFamilyLocker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisFamilyLocker creates a locker over an existing client
func NewRedisFamilyLocker(client *redis.Client, opts ...RedisLockerOption) *RedisFamilyLocker {
	l := &RedisFamilyLocker{
		client:        client,
		keyPrefix:     defaultLockKeyPrefix,
		ttl:           defaultLockTTL,
		retryInterval: defaultLockRetryInterval,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock acquires the family's key with SET NX PX, retrying until ctx is done
func (l *RedisFamilyLocker) Lock(ctx context.Context, familyID uuid.UUID) (func(), error) {
	key := l.keyPrefix + familyID.String()
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to acquire lock for family %s: %w", familyID, err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisFamilyLocker) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			// Release must succeed even when the caller's context is already done.
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
				l.logger.Warn("Failed to release family lock", zap.String("key", key), zap.Error(err))
			}
		})
	}
}

// Close closes the Redis client
func (l *RedisFamilyLocker) Close() error {
	return l.client.Close()
}

var _ variation.FamilyLocker = (*RedisFamilyLocker)(nil)
