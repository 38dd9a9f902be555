package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mbd888/distrokit/internal/metrics"
	"github.com/mbd888/distrokit/internal/traces"
)

// Timer runs a job after a startup delay and then once per interval.
type Timer struct {
	job          Job
	startupDelay time.Duration
	interval     time.Duration
	logger       *slog.Logger
	stop         chan struct{}
	stopOnce     sync.Once
	running      atomic.Bool
}

// NewTimer creates a timer for job.
func NewTimer(job Job, startupDelay, interval time.Duration, logger *slog.Logger) *Timer {
	return &Timer{
		job:          job,
		startupDelay: startupDelay,
		interval:     interval,
		logger:       logger.With("job", job.Name()),
		stop:         make(chan struct{}),
	}
}

// Name returns the job name.
func (t *Timer) Name() string {
	return t.job.Name()
}

// Running reports whether the timer loop is actively running.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the job loop. Call in a goroutine. It returns when ctx is done
// or Stop is called.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	metrics.RunningJobs.Inc()
	defer func() {
		t.running.Store(false)
		metrics.RunningJobs.Dec()
	}()

	t.logger.Info("billing job scheduled", "startup_delay", t.startupDelay, "interval", t.interval)
	if !t.wait(ctx, t.startupDelay) {
		return
	}
	for {
		t.safeRun(ctx)
		if !t.wait(ctx, t.interval) {
			return
		}
	}
}

// Stop signals the timer to stop. Safe to call more than once.
func (t *Timer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}

// wait sleeps for d and reports whether the loop should continue.
func (t *Timer) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		case <-t.stop:
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.stop:
		return false
	case <-timer.C:
		return true
	}
}

func (t *Timer) safeRun(ctx context.Context) {
	name := t.job.Name()
	start := time.Now()
	defer func() {
		jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			jobRunsTotal.WithLabelValues(name, "panic").Inc()
			t.logger.Error("panic in billing job", "panic", fmt.Sprint(r))
		}
	}()

	ctx, span := traces.StartSpan(ctx, "billing.job."+name, traces.Job(name))
	defer span.End()

	err := t.job.RunOnce(ctx)
	switch {
	case err == nil:
		jobRunsTotal.WithLabelValues(name, "ok").Inc()
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		jobRunsTotal.WithLabelValues(name, "cancelled").Inc()
		t.logger.Info("billing job cancelled")
	default:
		jobRunsTotal.WithLabelValues(name, "error").Inc()
		span.RecordError(err)
		t.logger.Warn("billing job failed", "error", err)
	}
}
