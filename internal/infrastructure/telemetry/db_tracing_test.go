package telemetry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/telemetry"
)

func TestRegisterDBTracing(t *testing.T) {
	open := func(t *testing.T) *gorm.DB {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		require.NoError(t, err)
		return db
	}

	t.Run("disabled adds no spans", func(t *testing.T) {
		recorder := withRecorder(t)
		db := open(t)

		require.NoError(t, telemetry.RegisterDBTracing(db, telemetry.DBTracingConfig{}, zap.NewNop()))
		require.NoError(t, db.Exec("SELECT 1").Error)
		assert.Empty(t, recorder.Ended())
	})

	t.Run("enabled spans statements", func(t *testing.T) {
		recorder := withRecorder(t)
		db := open(t)

		cfg := telemetry.DBTracingConfig{Enabled: true, DBName: "variations"}
		require.NoError(t, telemetry.RegisterDBTracing(db, cfg, zap.NewNop()))
		require.NoError(t, db.Exec("SELECT 1").Error)

		spans := recorder.Ended()
		require.NotEmpty(t, spans)
		var component string
		for _, kv := range spans[0].Attributes() {
			if kv.Key == "db.component" {
				component = kv.Value.AsString()
			}
		}
		assert.Equal(t, "variation-store", component)
	})
}
