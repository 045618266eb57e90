package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/reugn/go-quartz/job"
	"github.com/reugn/go-quartz/quartz"
)

// Logger interface for optional logging support.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Scheduler runs named cron jobs on site-local time. It wraps the
// quartz scheduler with name-based cancellation so rule reloads can
// replace the whole job set.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	sched  quartz.Scheduler
	loc    *time.Location
	logger Logger

	mu   sync.Mutex
	jobs map[string]*quartz.JobKey
}

// New creates a scheduler evaluating cron expressions in loc.
func New(loc *time.Location, logger Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = noopLogger{}
	}

	return &Scheduler{
		sched:  quartz.NewStdScheduler(),
		loc:    loc,
		logger: logger,
		jobs:   make(map[string]*quartz.JobKey),
	}
}

// Start begins executing scheduled jobs. Jobs stop when ctx is
// cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.sched.Start(ctx)
}

// Stop halts job execution.
func (s *Scheduler) Stop() {
	s.sched.Stop()
}

// Schedule registers fn to run on the cron expression under the given
// name. Scheduling an existing name replaces the previous job.
func (s *Scheduler) Schedule(name, cronExpr string, fn func(context.Context) error) error {
	normalized, err := NormalizeCron(cronExpr)
	if err != nil {
		return err
	}

	trigger, err := quartz.NewCronTriggerWithLoc(normalized, s.loc)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrBadCronExpression, cronExpr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if key, ok := s.jobs[name]; ok {
		if err := s.sched.DeleteJob(key); err != nil {
			s.logger.Warn("replacing scheduled job", "name", name, "error", err)
		}
		delete(s.jobs, name)
	}

	jobName := name
	fnJob := job.NewFunctionJob(func(ctx context.Context) (bool, error) {
		if err := fn(ctx); err != nil {
			s.logger.Warn("scheduled job failed", "name", jobName, "error", err)
			return false, err
		}
		return true, nil
	})

	key := quartz.NewJobKey(name)
	if err := s.sched.ScheduleJob(quartz.NewJobDetail(fnJob, key), trigger); err != nil {
		return fmt.Errorf("scheduling %q: %w", name, err)
	}
	s.jobs[name] = key

	s.logger.Info("job scheduled", "name", name, "cron", normalized)
	return nil
}

// Cancel removes a scheduled job by name.
func (s *Scheduler) Cancel(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job %q: %w", name, ErrJobNotFound)
	}
	if err := s.sched.DeleteJob(key); err != nil {
		return fmt.Errorf("cancelling %q: %w", name, err)
	}
	delete(s.jobs, name)
	return nil
}

// CancelAll removes every scheduled job, for wholesale reloads.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, key := range s.jobs {
		if err := s.sched.DeleteJob(key); err != nil {
			s.logger.Warn("cancelling job", "name", name, "error", err)
		}
	}
	s.jobs = make(map[string]*quartz.JobKey)
}

// Names returns the names of currently scheduled jobs.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	return names
}

// NormalizeCron accepts both classic five-field cron expressions
// (minute hour day month weekday) and quartz six/seven-field ones.
// Five-field expressions gain a leading "0" seconds field.
func NormalizeCron(expr string) (string, error) {
	fields := strings.Fields(expr)
	switch len(fields) {
	case 5:
		return "0 " + strings.Join(fields, " "), nil
	case 6, 7:
		return strings.Join(fields, " "), nil
	default:
		return "", fmt.Errorf("%w: %q has %d fields", ErrBadCronExpression, expr, len(fields))
	}
}
