// Package scheduler drives the periodic settlement jobs. Each task runs on
// its own ticker; a run never overlaps with the next run of the same task.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	tomb "gopkg.in/tomb.v2"
)

// ErrAlreadyStarted is returned by Start on a running scheduler
var ErrAlreadyStarted = errors.New("scheduler already started")

// Task is one periodic unit of work
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler runs tasks until stopped
type Scheduler struct {
	tasks  []Task
	logger *zap.Logger
	t      *tomb.Tomb
}

// New creates a scheduler for tasks
func New(logger *zap.Logger, tasks ...Task) *Scheduler {
	return &Scheduler{tasks: tasks, logger: logger}
}

// Start launches one loop per task. The loops stop when ctx is cancelled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.t != nil {
		return ErrAlreadyStarted
	}
	for _, task := range s.tasks {
		if task.Interval <= 0 || task.Run == nil {
			return fmt.Errorf("task %q needs a positive interval and a run function", task.Name)
		}
	}

	t, ctx := tomb.WithContext(ctx)
	s.t = t
	for _, task := range s.tasks {
		task := task
		t.Go(func() error {
			s.loop(ctx, t, task)
			return nil
		})
	}

	s.logger.Info("Scheduler started", zap.Int("tasks", len(s.tasks)))
	return nil
}

func (s *Scheduler) loop(ctx context.Context, t *tomb.Tomb, task Task) {
	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	// Runs are never cancelled midway; the ledger bounds them with its own timeouts.
	runCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-t.Dying():
			return
		case <-ticker.C:
			// A tick that races with shutdown is skipped.
			if ctx.Err() != nil {
				return
			}
			if err := task.Run(runCtx); err != nil {
				s.logger.Error("Scheduled task failed",
					zap.String("job", task.Name),
					zap.Error(err))
			}
		}
	}
}

// Stop signals every loop and waits for in-flight runs to return
func (s *Scheduler) Stop() error {
	if s.t == nil {
		return nil
	}
	s.t.Kill(nil)
	err := s.t.Wait()
	s.logger.Info("Scheduler stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
