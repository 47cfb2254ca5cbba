package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/wallet-portfolio/internal/logging"
)

// Runner is a job the scheduler can run on an interval
type Runner interface {
	Run(ctx context.Context) (*RunResult, error)
}

// Scheduler runs a refresh job every interval. Runs never overlap: a tick
// that fires while a run is still going is skipped.
type Scheduler struct {
	job      Runner
	interval time.Duration

	mu        sync.RWMutex
	sched     gocron.Scheduler
	cancel    context.CancelFunc
	running   bool
	runs      int
	lastRun   time.Time
	lastError error
}

// SchedulerStatus reports the scheduler state
type SchedulerStatus struct {
	Running   bool          `json:"running"`
	Interval  time.Duration `json:"interval"`
	Runs      int           `json:"runs"`
	LastRun   time.Time     `json:"lastRun"`
	LastError string        `json:"lastError,omitempty"`
}

// NewScheduler creates a scheduler for job
func NewScheduler(job Runner, interval time.Duration) (*Scheduler, error) {
	if job == nil {
		return nil, fmt.Errorf("job cannot be nil")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", interval)
	}
	return &Scheduler{job: job, interval: interval}, nil
}

// Start schedules the job and runs it once immediately
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.tick(runCtx) }),
		gocron.WithName("wallet-refresh"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		_ = sched.Shutdown()
		return fmt.Errorf("failed to schedule refresh job: %w", err)
	}

	sched.Start()
	s.sched = sched
	s.cancel = cancel
	s.running = true

	logging.FromContext(ctx).WithComponent("scheduler").
		WithField("interval", s.interval.String()).Info("Refresh scheduler started")
	return nil
}

func (s *Scheduler) tick(ctx context.Context) {
	res, err := s.job.Run(ctx)

	s.mu.Lock()
	s.runs++
	s.lastRun = time.Now()
	s.lastError = err
	s.mu.Unlock()

	if err != nil {
		logger := logging.FromContext(ctx).WithComponent("scheduler").WithError(err)
		if res != nil {
			logger = logger.WithField("run_id", res.RunID)
		}
		logger.Error("Refresh run failed")
	}
}

// Stop cancels an in-flight run and waits for the scheduler to shut down
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	sched, cancel := s.sched, s.cancel
	s.running = false
	s.mu.Unlock()

	cancel()
	if err := sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}

// GetStatus returns the scheduler state
func (s *Scheduler) GetStatus() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		Running:  s.running,
		Interval: s.interval,
		Runs:     s.runs,
		LastRun:  s.lastRun,
	}
	if s.lastError != nil {
		status.LastError = s.lastError.Error()
	}
	return status
}
