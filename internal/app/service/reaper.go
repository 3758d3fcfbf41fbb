package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/yunhaishang/Mallorn-sub002/internal/port/outbound/repository"
)

var (
	reaperRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_reaper_runs_total",
		Help: "Completed reaper sweeps.",
	})
	reaperSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_reaper_skips_total",
		Help: "Sweeps skipped because the previous one was still running.",
	})
	reaperFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_reaper_failures_total",
		Help: "Sweeps that ended in an error.",
	})
	reaperPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auth_reaper_purged_total",
		Help: "Expired refresh credentials removed.",
	})
)

// ReaperConfig holds configuration for the credential reaper.
type ReaperConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

// DefaultReaperConfig returns default reaper configuration.
func DefaultReaperConfig() ReaperConfig {
	return ReaperConfig{
		Interval:  1 * time.Hour,
		Retention: 30 * 24 * time.Hour,
	}
}

// Reaper purges expired refresh credentials on a fixed interval. Sweeps
// never overlap: if a sweep is still running when the ticker fires, the
// tick is skipped. Failures are logged and the loop continues.
type Reaper struct {
	repo    repository.CredentialRepository
	config  ReaperConfig
	logger  *zap.Logger
	running atomic.Bool
}

// NewReaper creates a new Reaper.
func NewReaper(repo repository.CredentialRepository, config ReaperConfig, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultReaperConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	return &Reaper{
		repo:   repo,
		config: config,
		logger: logger,
	}
}

// Run blocks, sweeping on every tick until ctx is cancelled. Intended to
// be launched in its own goroutine.
func (r *Reaper) Run(ctx context.Context) {
	r.logger.Info("reaper started",
		zap.Duration("interval", r.config.Interval),
		zap.Duration("retention", r.config.Retention))

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one purge pass. Returns the number of credentials removed;
// a sweep that finds another sweep in flight returns immediately.
func (r *Reaper) Sweep(ctx context.Context) int {
	if !r.running.CompareAndSwap(false, true) {
		reaperSkips.Inc()
		r.logger.Debug("reaper sweep skipped, previous sweep still running")
		return 0
	}
	defer r.running.Store(false)

	started := time.Now()
	purged, err := r.repo.DeleteExpired(ctx, r.config.Retention)
	if err != nil {
		reaperFailures.Inc()
		r.logger.Error("reaper sweep failed", zap.Error(err))
		return 0
	}

	reaperRuns.Inc()
	reaperPurged.Add(float64(purged))
	r.logger.Info("reaper sweep complete",
		zap.Int("purged", purged),
		zap.Duration("elapsed", time.Since(started)))
	return purged
}
