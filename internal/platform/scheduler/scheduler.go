// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

// TaskStatus is a snapshot of a registered task.
type TaskStatus struct {
	Name       string    `json:"name"`
	Schedule   string    `json:"schedule"`
	LastRun    time.Time `json:"last_run,omitempty"`
	NextRun    time.Time `json:"next_run,omitempty"`
	RunCount   int64     `json:"run_count"`
	ErrorCount int64     `json:"error_count"`
	LastError  string    `json:"last_error,omitempty"`
}

type task struct {
	status  TaskStatus
	job     Job
	entryID cron.EntryID
}

type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger

	mu    sync.RWMutex
	tasks map[string]*task
	ctx   context.Context
}

func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger.With().Str("component", "scheduler").Logger(),
		tasks:  make(map[string]*task),
		ctx:    context.Background(),
	}
}

// Add registers a job under a standard five-field cron spec or a descriptor
// such as "@hourly".
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[name]; exists {
		return fmt.Errorf("task %s already exists", name)
	}
	t := &task{status: TaskStatus{Name: name, Schedule: spec}, job: job}
	id, err := s.cron.AddFunc(spec, func() { s.execute(t) })
	if err != nil {
		return fmt.Errorf("schedule task %s: %w", name, err)
	}
	t.entryID = id
	s.tasks[name] = t
	return nil
}

// Start runs the cron loop until ctx is cancelled. Jobs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	n := len(s.tasks)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("tasks", n).Msg("scheduler started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// RunNow executes a task immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.RLock()
	t, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("task %s not found", name)
	}
	return s.run(ctx, t)
}

func (s *Scheduler) execute(t *task) {
	s.mu.RLock()
	ctx := s.ctx
	s.mu.RUnlock()
	_ = s.run(ctx, t)
}

func (s *Scheduler) run(ctx context.Context, t *task) error {
	start := time.Now()
	err := t.job(ctx)

	s.mu.Lock()
	t.status.LastRun = start.UTC()
	t.status.RunCount++
	if err != nil {
		t.status.ErrorCount++
		t.status.LastError = err.Error()
	} else {
		t.status.LastError = ""
	}
	s.mu.Unlock()

	log := s.logger.Info()
	if err != nil {
		log = s.logger.Error().Err(err)
	}
	log.Str("task", t.status.Name).Dur("duration", time.Since(start)).Msg("task finished")
	return err
}

// Tasks returns the registered tasks sorted by name.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, t := range s.tasks {
		st := t.status
		st.NextRun = s.cron.Entry(t.entryID).Next
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
