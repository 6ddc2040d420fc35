package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
	SPAPI     SPAPIConfig
	Detection DetectionConfig
	Feed      FeedConfig
	Sync      SyncConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
	LockTTL   time.Duration // expiry of a per-family sync lock
}

// StorageConfig holds S3-compatible object storage settings for the feed archive
type StorageConfig struct {
	Enabled           bool
	Endpoint          string
	Region            string
	Bucket            string
	AccessKeyID       string
	SecretAccessKey   string
	UseSSL            bool
	ForcePathStyle    bool
	PresignExpiration time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool
	MetricsInterval   time.Duration
	LogsEnabled       bool // export zap logs over OTLP
	DBTraceEnabled    bool
	DBSlowQueryThresh time.Duration
	ProfilingEnabled  bool
	ProfilingAddress  string // Pyroscope server address
}

// SPAPIConfig holds selling-partner API settings
type SPAPIConfig struct {
	Endpoint        string
	SellerID        string
	MarketplaceID   string
	AccessToken     string
	Timeout         time.Duration
	MaxResponseSize int64
}

// DetectionConfig holds variation detection settings
type DetectionConfig struct {
	Workers                     int
	RequestInterval             time.Duration // pause between catalog requests
	FetchRetries                int
	RetryBackoff                time.Duration
	MinPopulatedAttributes      int
	SizeSaturation              int
	LookupExistingRelationships bool
	VocabularyFile              string // empty means the embedded default
}

// FeedConfig holds relationship feed settings
type FeedConfig struct {
	MerchantID      string
	FeedType        string
	RelationType    string
	PurgeAndReplace bool
	PollInterval    time.Duration
	Timeout         time.Duration
	SuccessMarkers  []string
	ErrorMarkers    []string
	ArchiveEnabled  bool
}

// SyncConfig holds inventory and pricing sync settings
type SyncConfig struct {
	Enabled         bool
	Interval        time.Duration // per-family sync period
	RefreshInterval time.Duration // how often the schedule is rebuilt from the store
	JobTimeout      time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with VARIATION_ prefix (e.g., VARIATION_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("VARIATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:   v.GetBool("redis.enabled"),
			Host:      v.GetString("redis.host"),
			Port:      v.GetInt("redis.port"),
			Password:  v.GetString("redis.password"),
			DB:        v.GetInt("redis.db"),
			KeyPrefix: v.GetString("redis.key_prefix"),
			LockTTL:   v.GetDuration("redis.lock_ttl"),
		},
		Storage: StorageConfig{
			Enabled:           v.GetBool("storage.enabled"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKeyID:       v.GetString("storage.access_key_id"),
			SecretAccessKey:   v.GetString("storage.secret_access_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			ForcePathStyle:    v.GetBool("storage.force_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingAddress:  v.GetString("telemetry.profiling_address"),
		},
		SPAPI: SPAPIConfig{
			Endpoint:        v.GetString("spapi.endpoint"),
			SellerID:        v.GetString("spapi.seller_id"),
			MarketplaceID:   v.GetString("spapi.marketplace_id"),
			AccessToken:     v.GetString("spapi.access_token"),
			Timeout:         v.GetDuration("spapi.timeout"),
			MaxResponseSize: v.GetInt64("spapi.max_response_size"),
		},
		Detection: DetectionConfig{
			Workers:                     v.GetInt("detection.workers"),
			RequestInterval:             v.GetDuration("detection.request_interval"),
			FetchRetries:                v.GetInt("detection.fetch_retries"),
			RetryBackoff:                v.GetDuration("detection.retry_backoff"),
			MinPopulatedAttributes:      v.GetInt("detection.min_populated_attributes"),
			SizeSaturation:              v.GetInt("detection.size_saturation"),
			LookupExistingRelationships: v.GetBool("detection.lookup_existing_relationships"),
			VocabularyFile:              v.GetString("detection.vocabulary_file"),
		},
		Feed: FeedConfig{
			MerchantID:      v.GetString("feed.merchant_id"),
			FeedType:        v.GetString("feed.feed_type"),
			RelationType:    v.GetString("feed.relation_type"),
			PurgeAndReplace: v.GetBool("feed.purge_and_replace"),
			PollInterval:    v.GetDuration("feed.poll_interval"),
			Timeout:         v.GetDuration("feed.timeout"),
			SuccessMarkers:  v.GetStringSlice("feed.success_markers"),
			ErrorMarkers:    v.GetStringSlice("feed.error_markers"),
			ArchiveEnabled:  v.GetBool("feed.archive_enabled"),
		},
		Sync: SyncConfig{
			Enabled:         v.GetBool("sync.enabled"),
			Interval:        v.GetDuration("sync.interval"),
			RefreshInterval: v.GetDuration("sync.refresh_interval"),
			JobTimeout:      v.GetDuration("sync.job_timeout"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "variationd"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "variation"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "variation:lock:"
	}
	if cfg.Redis.LockTTL == 0 {
		cfg.Redis.LockTTL = 5 * time.Minute
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "variation-feeds"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "variationd"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.ProfilingAddress == "" {
		cfg.Telemetry.ProfilingAddress = "http://localhost:4040"
	}
	if cfg.SPAPI.Endpoint == "" {
		cfg.SPAPI.Endpoint = "https://sellingpartnerapi-eu.amazon.com"
	}
	if cfg.SPAPI.Timeout == 0 {
		cfg.SPAPI.Timeout = 30 * time.Second
	}
	if cfg.SPAPI.MaxResponseSize == 0 {
		cfg.SPAPI.MaxResponseSize = 10 << 20 // 10MB
	}
	if cfg.Detection.Workers == 0 {
		cfg.Detection.Workers = 4
	}
	if cfg.Detection.RequestInterval == 0 {
		cfg.Detection.RequestInterval = 500 * time.Millisecond
	}
	if cfg.Detection.FetchRetries == 0 {
		cfg.Detection.FetchRetries = 3
	}
	if cfg.Detection.RetryBackoff == 0 {
		cfg.Detection.RetryBackoff = time.Second
	}
	if cfg.Detection.MinPopulatedAttributes == 0 {
		cfg.Detection.MinPopulatedAttributes = 1
	}
	if cfg.Detection.SizeSaturation == 0 {
		cfg.Detection.SizeSaturation = 10
	}
	if cfg.Feed.FeedType == "" {
		cfg.Feed.FeedType = "POST_PRODUCT_RELATIONSHIP_DATA"
	}
	if cfg.Feed.RelationType == "" {
		cfg.Feed.RelationType = "Variation"
	}
	if cfg.Feed.PollInterval == 0 {
		cfg.Feed.PollInterval = 30 * time.Second
	}
	if cfg.Feed.Timeout == 0 {
		cfg.Feed.Timeout = 300 * time.Second
	}
	if len(cfg.Feed.SuccessMarkers) == 0 {
		cfg.Feed.SuccessMarkers = []string{"success", "processed successfully"}
	}
	if len(cfg.Feed.ErrorMarkers) == 0 {
		cfg.Feed.ErrorMarkers = []string{"error", "failed", "rejected"}
	}
	if cfg.Sync.Interval == 0 {
		cfg.Sync.Interval = time.Hour
	}
	if cfg.Sync.RefreshInterval == 0 {
		cfg.Sync.RefreshInterval = 10 * time.Minute
	}
	if cfg.Sync.JobTimeout == 0 {
		cfg.Sync.JobTimeout = 5 * time.Minute
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.Detection.Workers < 1 {
		return fmt.Errorf("detection.workers must be at least 1")
	}
	if c.Detection.FetchRetries < 0 {
		return fmt.Errorf("detection.fetch_retries cannot be negative")
	}
	if c.Feed.PollInterval <= 0 || c.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.poll_interval and feed.timeout must be positive")
	}
	if c.Feed.PollInterval > c.Feed.Timeout {
		return fmt.Errorf("feed.poll_interval (%s) cannot exceed feed.timeout (%s)", c.Feed.PollInterval, c.Feed.Timeout)
	}
	if c.Sync.Enabled && c.Sync.Interval < time.Minute {
		return fmt.Errorf("sync.interval must be at least 1m, got %s", c.Sync.Interval)
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.SPAPI.SellerID == "" || c.SPAPI.AccessToken == "" {
			return fmt.Errorf("spapi.seller_id and spapi.access_token are required in production")
		}
		if c.Feed.MerchantID == "" {
			return fmt.Errorf("feed.merchant_id is required in production")
		}
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the redis host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
