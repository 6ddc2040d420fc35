package cache

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/config"
)

// ClosableLocker is a FamilyLocker owning resources that must be released
type ClosableLocker interface {
	variation.FamilyLocker
	io.Closer
}

// LockerFactory creates family lockers based on configuration
type LockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	connect               func(config.RedisConfig) (ClosableLocker, error)
}

// LockerFactoryOption is a functional option for configuring the factory
type LockerFactoryOption func(*LockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-process locker
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) LockerFactoryOption {
	return func(f *LockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewLockerFactory creates a new factory
func NewLockerFactory(cfg config.RedisConfig, opts ...LockerFactoryOption) *LockerFactory {
	f := &LockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.connect == nil {
		f.connect = f.connectRedis
	}
	return f
}

func (f *LockerFactory) connectRedis(cfg config.RedisConfig) (ClosableLocker, error) {
	client, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisFamilyLocker(client,
		WithKeyPrefix(cfg.KeyPrefix),
		WithLockTTL(cfg.LockTTL),
		WithLockLogger(f.logger),
	), nil
}

// CreateLocker returns a Redis locker when Redis is enabled and reachable.
// Otherwise it falls back to the in-process locker if fallback is allowed.
func (f *LockerFactory) CreateLocker() (ClosableLocker, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory family locker")
		return NewInMemoryFamilyLocker(), nil
	}

	locker, err := f.connect(f.redisConfig)
	if err == nil {
		f.logger.Info("Using Redis family locker", zap.String("addr", f.redisConfig.Addr()))
		return locker, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for family locking but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory family locker. "+
		"Concurrent workers may sync the same family twice.",
		zap.Error(err),
	)
	return NewInMemoryFamilyLocker(), nil
}
