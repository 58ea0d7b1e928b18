package cron

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Task is one run of a periodic job
type Task func(ctx context.Context) error

// Job runs a task on a fixed interval until stopped. Ticks come from the
// injected clock.
type Job struct {
	name       string
	task       Task
	interval   time.Duration
	runTimeout time.Duration
	clock      clock.Clock
	logger     zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	forceCh chan struct{}
	wg      sync.WaitGroup
}

// NewJob creates a job. A zero runTimeout leaves each run bounded only by
// the parent context.
func NewJob(name string, interval, runTimeout time.Duration, task Task, clk clock.Clock, logger zerolog.Logger) *Job {
	if interval <= 0 {
		interval = time.Minute
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Job{
		name:       name,
		task:       task,
		interval:   interval,
		runTimeout: runTimeout,
		clock:      clk,
		logger:     logger.With().Str("component", "cron").Str("job", name).Logger(),
	}
}

// Start launches the background loop and returns immediately (non-blocking).
// Safe to call multiple times; subsequent calls are no-ops.
func (j *Job) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}
	if j.task == nil {
		return errors.New("cron: task must be non-nil")
	}

	j.stopCh = make(chan struct{})
	j.forceCh = make(chan struct{}, 1)
	j.running = true
	j.wg.Add(1)

	go j.run(ctx, j.clock.Ticker(j.interval))
	return nil
}

// Stop signals the loop to exit and waits for it to finish.
// Safe to call multiple times.
func (j *Job) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	close(j.stopCh)
	j.running = false
	j.mu.Unlock()
	j.wg.Wait()
}

// Trigger requests an immediate run without waiting for the next tick.
// It never blocks; a pending request absorbs further triggers.
func (j *Job) Trigger() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	select {
	case j.forceCh <- struct{}{}:
	default:
	}
}

// Running reports whether the loop is active
func (j *Job) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *Job) run(parent context.Context, t *clock.Ticker) {
	defer j.wg.Done()
	defer t.Stop()

	j.logger.Debug().Dur("interval", j.interval).Msg("job started")

	for {
		select {
		case <-parent.Done():
			j.logger.Debug().Msg("context canceled; stopping")
			return
		case <-j.stopCh:
			j.logger.Debug().Msg("stop requested; stopping")
			return
		case <-t.C:
			j.runOnce(parent)
		case <-j.forceCh:
			j.runOnce(parent)
		}
	}
}

func (j *Job) runOnce(parent context.Context) {
	ctx := parent
	if j.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, j.runTimeout)
		defer cancel()
	}
	if err := j.task(ctx); err != nil {
		j.logger.Warn().Err(err).Msg("job run failed")
	}
}
