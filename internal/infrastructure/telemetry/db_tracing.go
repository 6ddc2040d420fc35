package telemetry

import (
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls the otelgorm plugin
type DBTracingConfig struct {
	Enabled bool
	DBName  string
	// WithSQLVars puts bound values (SKUs, feed ids) on spans
	WithSQLVars bool
	// Provider defaults to the global tracer provider when nil or disabled
	Provider *TracerProvider
}

func (c DBTracingConfig) options() []otelgorm.Option {
	opts := []otelgorm.Option{
		otelgorm.WithAttributes(attribute.String("db.component", "variation-store")),
	}
	if c.DBName != "" {
		opts = append(opts, otelgorm.WithDBName(c.DBName))
	}
	if !c.WithSQLVars {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if c.Provider != nil && c.Provider.Enabled() {
		opts = append(opts, otelgorm.WithTracerProvider(c.Provider.provider))
	}
	return opts
}

// RegisterDBTracing spans every GORM statement on db. It is a no-op unless
// cfg.Enabled is set.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, log *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if err := db.Use(otelgorm.NewPlugin(cfg.options()...)); err != nil {
		return fmt.Errorf("register otelgorm: %w", err)
	}
	log.Info("Database tracing enabled", zap.String("db_name", cfg.DBName), zap.Bool("sql_vars", cfg.WithSQLVars))
	return nil
}
