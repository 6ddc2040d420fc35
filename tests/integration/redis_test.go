//go:build integration

package integration

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/cache"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/config"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/tests/testutil"
)

// newTestRedis starts a Redis container and returns a config pointing at it
func newTestRedis(t *testing.T) config.RedisConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	return config.RedisConfig{
		Enabled:   true,
		Host:      host,
		Port:      port.Int(),
		KeyPrefix: "variation:lock:",
		LockTTL:   2 * time.Second,
	}
}

func TestRedisFamilyLocker_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := newTestRedis(t)
	locker, err := cache.NewLockerFactory(cfg, cache.WithInMemoryFallback(false)).CreateLocker()
	require.NoError(t, err)
	t.Cleanup(func() { _ = locker.Close() })
	_, isRedis := locker.(*cache.RedisFamilyLocker)
	require.True(t, isRedis, "factory should return the Redis locker")

	familyID := testutil.NewTestUUID("locked-family")

	t.Run("serializes holders", func(t *testing.T) {
		var inside, maxInside atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ctx, cancel := testutil.ContextWithTimeout(t, 10*time.Second)
				defer cancel()
				unlock, err := locker.Lock(ctx, familyID)
				if !assert.NoError(t, err) {
					return
				}
				n := inside.Add(1)
				if n > maxInside.Load() {
					maxInside.Store(n)
				}
				time.Sleep(20 * time.Millisecond)
				inside.Add(-1)
				unlock()
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxInside.Load())
	})

	t.Run("waiter gives up with its context", func(t *testing.T) {
		unlock, err := locker.Lock(context.Background(), familyID)
		require.NoError(t, err)
		defer unlock()

		ctx, cancel := testutil.ContextWithTimeout(t, 100*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(ctx, familyID)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("expired lock can be taken over", func(t *testing.T) {
		other := testutil.NewTestUUID("crashed-holder")
		_, err := locker.Lock(context.Background(), other)
		require.NoError(t, err)

		// the holder never releases; the TTL frees the key
		var acquired atomic.Bool
		go func() {
			ctx, cancel := testutil.ContextWithTimeout(t, 10*time.Second)
			defer cancel()
			if unlock, err := locker.Lock(ctx, other); err == nil {
				acquired.Store(true)
				unlock()
			}
		}()
		testutil.RequireEventually(t, acquired.Load, 5*time.Second, 50*time.Millisecond)
	})
}
