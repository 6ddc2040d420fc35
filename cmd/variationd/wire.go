package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appvariation "github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/application/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/domain/variation"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/cache"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/config"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/logger"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/persistence"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/spapi"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/storage"
	"github.com/msylla54/ECOMSIMPLY-Prod-V1.10-sub002/internal/infrastructure/telemetry"
)

// memoryArchiveCapacity bounds the in-process archive used when S3 is disabled
const memoryArchiveCapacity = 512

// app holds every long-lived component of the worker
type app struct {
	cfg *config.Config
	log *zap.Logger

	db          *persistence.Database
	locker      cache.ClosableLocker
	families    *persistence.GormFamilyRepository
	submissions *persistence.GormFeedSubmissionRepository

	detection *appvariation.DetectionService
	service   *appvariation.FamilyService
	sync      *appvariation.SyncCoordinator

	closers []func(context.Context) error
}

// newApp builds the logger, telemetry pipelines and services. On error the
// parts already started are shut down.
func newApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.close(context.Background())
		}
	}()

	otlp := telemetry.Config{
		ServiceName:     cfg.Telemetry.ServiceName,
		Endpoint:        cfg.Telemetry.CollectorEndpoint,
		Insecure:        cfg.Telemetry.Insecure,
		Traces:          cfg.Telemetry.Enabled,
		SamplingRatio:   cfg.Telemetry.SamplingRatio,
		Metrics:         cfg.Telemetry.Enabled,
		MetricsInterval: cfg.Telemetry.MetricsInterval,
		Logs:            cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
	}

	logsProvider, err := telemetry.NewLoggerProvider(ctx, otlp)
	if err != nil {
		return a, fmt.Errorf("init log exporter: %w", err)
	}
	a.closers = append(a.closers, logsProvider.Shutdown)

	a.log, err = logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, logsProvider.ZapCore(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		return a, fmt.Errorf("init logger: %w", err)
	}
	log := a.log

	tracer, err := telemetry.NewTracerProvider(ctx, otlp, log)
	if err != nil {
		return a, fmt.Errorf("init tracer: %w", err)
	}
	a.closers = append(a.closers, tracer.Shutdown)

	meters, err := telemetry.NewMeterProvider(ctx, otlp, log)
	if err != nil {
		return a, fmt.Errorf("init meter: %w", err)
	}
	a.closers = append(a.closers, meters.Shutdown)

	metrics, err := telemetry.NewPipelineMetrics(meters.Meter("variation"))
	if err != nil {
		return a, fmt.Errorf("init pipeline metrics: %w", err)
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		return a, fmt.Errorf("init profiler: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return profiler.Stop() })
	if profiler.Enabled() && tracer.Enabled() {
		tracer.EnableSpanProfiles()
	}

	a.db, err = persistence.NewDatabase(ctx, &cfg.Database, persistence.Options{
		Logger:        log,
		LogLevel:      logger.MapGormLogLevel(cfg.Log.Level),
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		Tracing: telemetry.DBTracingConfig{
			Enabled:  cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			DBName:   cfg.Database.DBName,
			Provider: tracer,
		},
	})
	if err != nil {
		return a, err
	}
	a.closers = append(a.closers, func(context.Context) error { return a.db.Close() })
	log.Info("Database connected", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

	a.locker, err = cache.NewLockerFactory(cfg.Redis, cache.WithLogger(log)).CreateLocker()
	if err != nil {
		return a, fmt.Errorf("init family locker: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return a.locker.Close() })

	archive, err := newArchive(ctx, cfg, log)
	if err != nil {
		return a, err
	}

	client, err := spapi.NewClient(spapi.Config{
		Endpoint:        cfg.SPAPI.Endpoint,
		SellerID:        cfg.SPAPI.SellerID,
		AccessToken:     cfg.SPAPI.AccessToken,
		Timeout:         cfg.SPAPI.Timeout,
		MaxResponseSize: cfg.SPAPI.MaxResponseSize,
	}, spapi.WithLogger(log))
	if err != nil {
		return a, fmt.Errorf("init provider client: %w", err)
	}

	vocab, err := config.LoadVocabulary(cfg.Detection.VocabularyFile)
	if err != nil {
		return a, err
	}
	analysis := variation.DefaultAnalysisConfig()
	analysis.MinPopulatedAttributes = cfg.Detection.MinPopulatedAttributes
	analysis.SizeSaturation = cfg.Detection.SizeSaturation
	engine, err := variation.NewEngine(vocab, analysis)
	if err != nil {
		return a, err
	}

	a.families = persistence.NewGormFamilyRepository(a.db.DB)
	a.submissions = persistence.NewGormFeedSubmissionRepository(a.db.DB)
	submissions := a.submissions
	snapshots := persistence.NewGormListingSnapshotRepository(a.db.DB)

	a.detection = appvariation.NewDetectionService(engine, spapi.NewCatalogClient(client), appvariation.DetectionConfig{
		Workers:                     cfg.Detection.Workers,
		RequestInterval:             cfg.Detection.RequestInterval,
		FetchRetries:                cfg.Detection.FetchRetries,
		RetryBackoff:                cfg.Detection.RetryBackoff,
		LookupExistingRelationships: cfg.Detection.LookupExistingRelationships,
	}, log, appvariation.WithDetectionMetrics(metrics))

	feeds := spapi.NewFeedClient(client)
	publisherOpts := []appvariation.PublisherOption{appvariation.WithPublisherMetrics(metrics)}
	monitorOpts := []appvariation.MonitorOption{
		appvariation.WithSubmissionStore(submissions),
		appvariation.WithMonitorMetrics(metrics),
	}
	serviceOpts := []appvariation.FamilyServiceOption{
		appvariation.WithFamilyLocker(a.locker),
		appvariation.WithOutcomeWriter(persistence.NewGormFeedOutcomeWriter(a.db)),
	}
	if archive != nil {
		publisherOpts = append(publisherOpts, appvariation.WithPayloadArchive(archive))
		monitorOpts = append(monitorOpts, appvariation.WithReportArchive(archive))
		serviceOpts = append(serviceOpts, appvariation.WithArchive(archive))
	}

	publisher := appvariation.NewFeedPublisher(feeds,
		spapi.NewXMLFeedSerializer(cfg.Feed.MerchantID, cfg.Feed.RelationType, cfg.Feed.PurgeAndReplace),
		cfg.Feed.FeedType, log, publisherOpts...)
	monitor, err := appvariation.NewFeedMonitor(feeds, appvariation.FeedMonitorConfig{
		PollInterval:   cfg.Feed.PollInterval,
		Timeout:        cfg.Feed.Timeout,
		SuccessMarkers: cfg.Feed.SuccessMarkers,
		ErrorMarkers:   cfg.Feed.ErrorMarkers,
	}, log, monitorOpts...)
	if err != nil {
		return a, err
	}

	a.service = appvariation.NewFamilyService(a.families, submissions,
		variation.NewRelationshipBuilder(engine.Vocabulary()), publisher, monitor, log, serviceOpts...)

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Detection.RequestInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Detection.RequestInterval), 1)
	}
	listings := spapi.NewListingsSyncChannel(client, snapshots, limiter)
	a.sync = appvariation.NewSyncCoordinator(a.families, listings, listings, a.locker, log,
		appvariation.WithSyncMetrics(metrics))

	return a, nil
}

// newArchive returns nil when archiving is disabled
func newArchive(ctx context.Context, cfg *config.Config, log *zap.Logger) (variation.FeedArchive, error) {
	if !cfg.Feed.ArchiveEnabled {
		return nil, nil
	}
	if !cfg.Storage.Enabled {
		log.Warn("Object storage disabled, archiving feeds in memory",
			zap.Int("capacity", memoryArchiveCapacity))
		return storage.NewMemoryFeedArchive(memoryArchiveCapacity), nil
	}

	s3Archive, err := storage.NewS3FeedArchive(&cfg.Storage,
		storage.WithLogger(log),
		storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
	)
	if err != nil {
		return nil, fmt.Errorf("init feed archive: %w", err)
	}
	if err := s3Archive.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure feed archive bucket: %w", err)
	}
	log.Info("Feed archive ready", zap.String("bucket", cfg.Storage.Bucket))
	return s3Archive, nil
}

// close shuts components down in reverse start order
func (a *app) close(ctx context.Context) {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil && a.log != nil {
		a.log.Error("Shutdown errors", zap.Error(err))
	}
	if a.log != nil {
		_ = logger.Sync(a.log)
	}
}

// shutdownContext bounds the time spent flushing exporters
func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
