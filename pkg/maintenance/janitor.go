package maintenance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/cantor/pkg/observability"
)

// DefaultSchedule runs the janitor every ten minutes
const DefaultSchedule = "*/10 * * * *"

const defaultRunTimeout = time.Minute

// Purger deletes rows that can no longer authenticate anyone.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// StatsSource exposes connection pool statistics
type StatsSource interface {
	Stats() sql.DBStats
}

// Target is one table the janitor cleans
type Target struct {
	Table  string
	Purger Purger
}

// Config configures a Janitor
type Config struct {
	// Schedule is a standard five-field cron spec or a descriptor such as @hourly
	Schedule string
	// RunTimeout bounds a single pass
	RunTimeout time.Duration
}

// Result summarizes a janitor pass
type Result struct {
	Purged   map[string]int64
	Duration time.Duration
}

// Janitor periodically removes expired sessions and stale reset tokens and
// samples database pool statistics.
type Janitor struct {
	targets []Target
	stats   StatsSource
	metrics *observability.Metrics
	logger  *observability.Logger
	timeout time.Duration

	schedule cron.Schedule
	spec     string

	mu      sync.Mutex
	cron    *cron.Cron
	baseCtx context.Context
	cancel  context.CancelFunc
}

// Option configures a Janitor
type Option func(*Janitor)

// WithMetrics records purge counts, run outcomes and pool gauges
func WithMetrics(m *observability.Metrics) Option {
	return func(j *Janitor) { j.metrics = m }
}

// WithLogger sets the janitor's logger
func WithLogger(l *observability.Logger) Option {
	return func(j *Janitor) { j.logger = l }
}

// WithStats samples pool statistics on every pass
func WithStats(s StatsSource) Option {
	return func(j *Janitor) { j.stats = s }
}

// New creates a janitor over targets. The schedule is parsed eagerly so a
// bad spec fails at startup.
func New(cfg Config, targets []Target, opts ...Option) (*Janitor, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = defaultRunTimeout
	}
	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse janitor schedule %q: %w", cfg.Schedule, err)
	}

	j := &Janitor{
		targets:  targets,
		timeout:  cfg.RunTimeout,
		schedule: schedule,
		spec:     cfg.Schedule,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.logger == nil {
		j.logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	j.logger = j.logger.WithField("component", "janitor")
	return j, nil
}

// RunOnce performs a single pass over every target. A failing target does
// not stop the others; their errors are joined.
func (j *Janitor) RunOnce(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	res := Result{Purged: make(map[string]int64, len(j.targets))}
	var errs []error

	for _, t := range j.targets {
		n, err := t.Purger.PurgeExpired(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.Table, err))
			continue
		}
		res.Purged[t.Table] = n
		j.metrics.RecordPurge(ctx, t.Table, n)
	}

	if j.stats != nil {
		j.metrics.UpdateDBStats(j.stats.Stats())
	}

	res.Duration = time.Since(start)
	err := errors.Join(errs...)
	j.metrics.RecordJanitorRun(res.Duration, err)
	return res, err
}

func (j *Janitor) run() {
	defer observability.RecoverPanic(j.logger, "janitor run")

	j.mu.Lock()
	ctx := j.baseCtx
	j.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	res, err := j.RunOnce(ctx)
	log := j.logger.WithFields(map[string]interface{}{
		"purged":      res.Purged,
		"duration_ms": res.Duration.Milliseconds(),
	})
	if err != nil {
		log.WithError(err).Error("janitor pass failed")
		return
	}
	log.Debug("janitor pass complete")
}

// Start schedules the janitor. Passes that would overlap a still-running
// one are skipped. Calling Start twice is an error.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cron != nil {
		return errors.New("janitor already started")
	}

	j.baseCtx, j.cancel = context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{j.logger})))
	c.Schedule(j.schedule, cron.FuncJob(j.run))
	c.Start()
	j.cron = c

	j.logger.WithField("schedule", j.spec).Info("janitor started")
	return nil
}

// Stop halts scheduling and waits for an in-flight pass, or until ctx is
// done. Stopping a janitor that never started is a no-op.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	c, cancel := j.cron, j.cancel
	j.cron, j.cancel = nil, nil
	j.mu.Unlock()

	if c == nil {
		return nil
	}

	done := c.Stop()
	select {
	case <-done.Done():
		cancel()
		j.logger.Info("janitor stopped")
		return nil
	case <-ctx.Done():
		cancel()
		return fmt.Errorf("janitor stop: %w", ctx.Err())
	}
}

// cronLogger adapts the structured logger to cron.Logger
type cronLogger struct {
	logger *observability.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
