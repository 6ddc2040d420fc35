//go:build integration

// Package integration runs the persistence, locking and publication paths
// against real PostgreSQL and Redis containers started by testcontainers.
package integration

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/logger"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/migration"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/persistence"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/migrations"
)

// appTables are truncated between tests, children first
var appTables = []string{"listing_snapshots", "feed_submissions", "variation_families"}

// postgresContainer is started once per package run and reused by every test
var postgresContainer struct {
	sync.Mutex
	container *tcpostgres.PostgresContainer
	dsn       string
}

// TestDB is a migrated connection to the package's PostgreSQL container
type TestDB struct {
	*persistence.Database
	t *testing.T
}

// NewSharedTestDB connects to the package container, starting and migrating it
// on first use. Tests share rows, so call CleanTables before seeding.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	dsn := sharedDSN(t)

	level := gormlogger.Silent
	if os.Getenv("TEST_DB_DEBUG") != "" {
		level = gormlogger.Info
	}
	gdb, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: logger.NewGormLogger(zaptest.NewLogger(t), level),
	})
	require.NoError(t, err, "connect to test database")

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	db := &TestDB{Database: &persistence.Database{DB: gdb}, t: t}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sharedDSN(t *testing.T) string {
	postgresContainer.Lock()
	defer postgresContainer.Unlock()
	if postgresContainer.container != nil {
		return postgresContainer.dsn
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("variation_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err, "start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqlDB, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	migrator, err := migration.NewFromFS(sqlDB, migrations.FS, zap.NewNop())
	require.NoError(t, err, "create migrator")
	require.NoError(t, migrator.Up(), "apply migrations")
	require.NoError(t, migrator.Close())

	postgresContainer.container = container
	postgresContainer.dsn = dsn
	return dsn
}

// CleanTables empties the application tables; schema_migrations is kept
func (db *TestDB) CleanTables() {
	db.t.Helper()
	err := db.DB.Exec("TRUNCATE TABLE " + strings.Join(appTables, ", ") + " CASCADE").Error
	require.NoError(db.t, err, "truncate application tables")
}

// CleanupSharedContainer terminates the package container. Call it from TestMain.
func CleanupSharedContainer() {
	postgresContainer.Lock()
	defer postgresContainer.Unlock()
	if postgresContainer.container == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = postgresContainer.container.Terminate(ctx)
	postgresContainer.container = nil
	postgresContainer.dsn = ""
}
