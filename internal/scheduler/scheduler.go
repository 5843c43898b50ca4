// Package scheduler implements the task scheduler (C10): one SCHEDULER
// worker running a ticker-per-task loop. It also hosts the auto irrigation
// service (C11), which rides the auto_irrigation_tick task.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lukassojak/Smart-Irrigation-System/internal/threadmanager"
)

// Default task intervals (§4.9).
const (
	RefreshStateInterval        = 5 * time.Second
	AutoIrrigationTickInterval  = 1 * time.Minute
	WeatherCacheRefreshInterval = 10 * time.Minute
)

// Task is one periodically-invoked callback.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Scheduler runs every registered Task on its own ticker, all inside a
// single SCHEDULER worker (§4.9, §5 "1 SCHEDULER worker").
type Scheduler struct {
	threads *threadmanager.Manager
	tasks   []Task
	log     zerolog.Logger
}

// New builds a Scheduler. Register tasks with AddTask before calling Start.
func New(threads *threadmanager.Manager, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		threads: threads,
		log:     log.With().Str("component", "scheduler").Logger(),
	}
}

// AddTask registers a periodic task. Call before Start.
func (s *Scheduler) AddTask(task Task) {
	s.tasks = append(s.tasks, task)
}

// Start spawns the single SCHEDULER worker. It is a no-op if already
// running (WorkerAlreadyExists is logged, not propagated, since Start is
// typically called once at bootstrap).
func (s *Scheduler) Start() {
	err := s.threads.Start(threadmanager.TaskScheduler, "main", s.run, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("scheduler already running")
	}
}

// Stop signals the SCHEDULER worker to stop and waits up to waitFor.
func (s *Scheduler) Stop(waitFor time.Duration) error {
	return s.threads.Stop(threadmanager.TaskScheduler, "main", waitFor)
}

// run hosts one ticker goroutine per registered task, all joined under the
// single SCHEDULER worker the thread manager tracks. Each ticker fires
// independently at its own interval, same shape as the hourly/daily ticker
// goroutines this package's scheduler was adapted from.
func (s *Scheduler) run(ctx context.Context) error {
	var wg sync.WaitGroup

	for _, task := range s.tasks {
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()

			ticker := time.NewTicker(task.Interval)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					task.Run(ctx)
				}
			}
		}(task)
	}

	wg.Wait()
	return nil
}
