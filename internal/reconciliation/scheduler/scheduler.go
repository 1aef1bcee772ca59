// Package scheduler runs the background jobs on fixed intervals. A job never
// overlaps with its own previous run, every run is bounded by a timeout, and
// failures are reported through a hook instead of stopping the scheduler.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrAlreadyRunning = errors.New("job is already running")
	ErrJobTimeout     = errors.New("job exceeded its timeout")
	ErrUnknownJob     = errors.New("unknown job")
)

// Job is one unit of scheduled background work
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// FailureHook is called after a run returned an error, timed out or panicked
type FailureHook func(ctx context.Context, job string, err error)

type entry struct {
	job      Job
	interval time.Duration
	timeout  time.Duration
	running  atomic.Bool
}

type Scheduler struct {
	logger    *slog.Logger
	onFailure FailureHook
	entries   []*entry
	wg        sync.WaitGroup
}

func New(logger *slog.Logger, onFailure FailureHook) *Scheduler {
	return &Scheduler{
		logger:    logger,
		onFailure: onFailure,
	}
}

// Register adds a job. It must be called before Start.
func (s *Scheduler) Register(job Job, interval, timeout time.Duration) {
	s.entries = append(s.entries, &entry{job: job, interval: interval, timeout: timeout})
}

// Start launches one ticker loop per job and returns immediately
func (s *Scheduler) Start(ctx context.Context) {
	for _, e := range s.entries {
		s.wg.Add(1)
		go func(e *entry) {
			defer s.wg.Done()
			s.loop(ctx, e)
		}(e)
	}
}

// Wait blocks until every loop has stopped and in-flight runs have returned
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	logger := s.logger.With("job", e.job.Name())
	logger.Info("Starting scheduled job", "interval", e.interval.String(), "timeout", e.timeout.String())

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Scheduled job stopping due to context cancellation.")
			return
		case <-ticker.C:
			// Runs in its own goroutine so a slow run skips ticks instead of queueing them
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				if err := s.tryRun(ctx, e); err != nil && !errors.Is(err, ErrAlreadyRunning) {
					logger.Error("Scheduled job failed", "error", err)
				}
			}()
		}
	}
}

// RunOnce runs the named job immediately, honouring the overlap guard and timeout
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	for _, e := range s.entries {
		if e.job.Name() == name {
			return s.tryRun(ctx, e)
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownJob, name)
}

func (s *Scheduler) tryRun(ctx context.Context, e *entry) error {
	name := e.job.Name()
	if !e.running.CompareAndSwap(false, true) {
		s.logger.Warn("Skipping tick, previous run still active", "job", name)
		return ErrAlreadyRunning
	}
	defer e.running.Store(false)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	err := runSafely(runCtx, e.job)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %s: %w", ErrJobTimeout, e.timeout, err)
	}

	if err != nil {
		if ctx.Err() == nil && s.onFailure != nil {
			s.onFailure(ctx, name, err)
		}
		return err
	}

	s.logger.Debug("Scheduled job completed", "job", name, "duration", time.Since(start).String())
	return nil
}

func runSafely(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v\n%s", job.Name(), r, debug.Stack())
		}
	}()
	return job.Run(ctx)
}
