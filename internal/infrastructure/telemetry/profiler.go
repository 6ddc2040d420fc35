package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilingLabelStage tags profiles with the pipeline stage being run
const ProfilingLabelStage = "stage"

// ProfilerConfig holds Pyroscope continuous profiling settings
type ProfilerConfig struct {
	Enabled         bool
	ServerAddress   string // e.g. "http://pyroscope:4040"
	ApplicationName string
	// ProfileTypes defaults to CPU, alloc space, inuse space and goroutines
	ProfileTypes []pyroscope.ProfileType
}

var defaultProfileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
}

// Profiler pushes continuous profiles to Pyroscope. The zero value, returned
// when profiling is disabled, does nothing.
type Profiler struct {
	profiler *pyroscope.Profiler
	log      *zap.Logger
	stopOnce sync.Once
	stopErr  error
}

// NewProfiler starts a Pyroscope session when cfg.Enabled is set
func NewProfiler(cfg ProfilerConfig, log *zap.Logger) (*Profiler, error) {
	p := &Profiler{log: log}
	if !cfg.Enabled {
		log.Info("Profiling disabled")
		return p, nil
	}
	if cfg.ServerAddress == "" || cfg.ApplicationName == "" {
		return nil, errors.New("profiler: server address and application name are required")
	}

	types := cfg.ProfileTypes
	if len(types) == 0 {
		types = defaultProfileTypes
	}
	tags := map[string]string{}
	if host, _ := os.Hostname(); host != "" {
		tags["hostname"] = host
	}

	// SugaredLogger already has the Infof/Debugf/Errorf shape pyroscope wants
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ApplicationName,
		ServerAddress:   cfg.ServerAddress,
		Logger:          log.Named("pyroscope").Sugar(),
		Tags:            tags,
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}
	p.profiler = profiler

	log.Info("Profiling enabled",
		zap.String("server_address", cfg.ServerAddress),
		zap.Int("profile_types", len(types)),
	)
	return p, nil
}

// Enabled reports whether profiles are being pushed
func (p *Profiler) Enabled() bool { return p.profiler != nil }

// Stop flushes the last profiles. Later calls return the first result.
func (p *Profiler) Stop() error {
	p.stopOnce.Do(func() {
		if p.profiler == nil {
			return
		}
		if err := p.profiler.Stop(); err != nil {
			p.stopErr = fmt.Errorf("stop pyroscope: %w", err)
		}
	})
	return p.stopErr
}

// WithStageLabel runs fn under a pprof "stage" label so profiles split by
// detection, publish, monitor or sync.
func WithStageLabel(ctx context.Context, stage string, fn func(context.Context)) {
	if stage == "" {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(ProfilingLabelStage, stage), fn)
}
