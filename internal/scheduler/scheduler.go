// Package scheduler drives periodic Blob/Version Store GC and Job Registry
// cleanup (spec.md §4.8/§9), grounded on internal/daemon/scheduler.go's
// per-schedule bookkeeping (run/error counts, last error, next run) but
// using github.com/go-co-op/gocron/v2 for actual cron/interval dispatch
// instead of the teacher's hand-rolled time.Ticker loop.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/stubborncoder/vdocs/internal/verrors"
)

// Task is one unit of scheduled work (a GC sweep).
type Task func(ctx context.Context) error

// JobStats is the bookkeeping kept for one scheduled task, mirroring the
// teacher's Schedule struct's run/error accounting.
type JobStats struct {
	ID         string
	Name       string
	RunCount   int64
	ErrorCount int64
	LastError  string
	LastRun    *time.Time
}

// Scheduler wraps a gocron.Scheduler, adding named-task bookkeeping.
type Scheduler struct {
	gs gocron.Scheduler

	mu    sync.RWMutex
	stats map[string]*JobStats
}

// New constructs a Scheduler. Call Start to begin dispatching.
func New() (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, verrors.Internal("create gocron scheduler", err)
	}
	return &Scheduler{gs: gs, stats: make(map[string]*JobStats)}, nil
}

func (s *Scheduler) wrap(name string, task Task) gocron.Task {
	return gocron.NewTask(func() {
		ctx := context.Background()
		err := task(ctx)
		now := time.Now()

		s.mu.Lock()
		defer s.mu.Unlock()
		st := s.stats[name]
		st.RunCount++
		st.LastRun = &now
		if err != nil {
			st.ErrorCount++
			st.LastError = err.Error()
			slog.Error("scheduled task failed", "task", name, "error", err)
			return
		}
		st.LastError = ""
	})
}

// AddCron schedules task to run on a standard 5-field cron expression.
func (s *Scheduler) AddCron(name, cronExpr string, task Task) (string, error) {
	j, err := s.gs.NewJob(
		gocron.CronJob(cronExpr, false),
		s.wrap(name, task),
		gocron.WithName(name),
	)
	if err != nil {
		return "", verrors.Internal("schedule cron job", err)
	}
	s.register(j, name)
	return j.ID().String(), nil
}

// AddInterval schedules task to run every interval.
func (s *Scheduler) AddInterval(name string, interval time.Duration, task Task) (string, error) {
	j, err := s.gs.NewJob(
		gocron.DurationJob(interval),
		s.wrap(name, task),
		gocron.WithName(name),
	)
	if err != nil {
		return "", verrors.Internal("schedule interval job", err)
	}
	s.register(j, name)
	return j.ID().String(), nil
}

func (s *Scheduler) register(j gocron.Job, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[name] = &JobStats{ID: j.ID().String(), Name: name}
}

// Start begins dispatching scheduled tasks.
func (s *Scheduler) Start() { s.gs.Start() }

// Stop gracefully shuts the scheduler down, waiting for in-flight tasks.
func (s *Scheduler) Stop() error {
	if err := s.gs.Shutdown(); err != nil {
		return verrors.Internal("shutdown scheduler", err)
	}
	return nil
}

// Stats returns bookkeeping for every registered task, keyed by name.
func (s *Scheduler) Stats() map[string]JobStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]JobStats, len(s.stats))
	for name, st := range s.stats {
		out[name] = *st
	}
	return out
}
