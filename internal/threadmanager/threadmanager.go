// Package threadmanager implements the typed worker registry (C6): a
// (task_type, key)-addressed set of cancellable goroutines with bounded-wait
// stop and join-all, built on a worker-pool start/stop/mutex pattern.
package threadmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lukassojak/Smart-Irrigation-System/internal/ierrors"
)

// TaskType distinguishes the three worker kinds the controller spawns (§4.6).
type TaskType string

const (
	TaskIrrigation TaskType = "IRRIGATION"
	TaskExecutor   TaskType = "EXECUTOR"
	TaskScheduler  TaskType = "SCHEDULER"
)

type workerKey struct {
	taskType TaskType
	key      string
}

// Result is handed to a worker's on_finish callback once its closure
// returns or panics.
type Result struct {
	Err   error
	Panic interface{}
}

type worker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager is the concurrent worker registry. The zero value is not usable;
// construct with New.
type Manager struct {
	mu      sync.Mutex
	workers map[workerKey]*worker
	log     zerolog.Logger
}

// New builds an empty Manager.
func New(log zerolog.Logger) *Manager {
	return &Manager{
		workers: make(map[workerKey]*worker),
		log:     log.With().Str("component", "thread_manager").Logger(),
	}
}

// Start spawns closure(ctx) on its own goroutine identified by
// (taskType, key). It fails with *ierrors.WorkerAlreadyExists if that pair
// is already registered. onFinish is called exactly once, after closure
// returns (normally or via panic) and after the worker has deregistered
// itself, so list_active never shows a worker mid-teardown.
func (m *Manager) Start(taskType TaskType, key string, closure func(ctx context.Context) error, onFinish func(Result)) error {
	m.mu.Lock()

	wk := workerKey{taskType: taskType, key: key}
	if _, exists := m.workers[wk]; exists {
		m.mu.Unlock()
		return &ierrors.WorkerAlreadyExists{TaskType: string(taskType), Key: key}
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{cancel: cancel, done: make(chan struct{})}
	m.workers[wk] = w
	m.mu.Unlock()

	go m.run(wk, w, ctx, closure, onFinish)
	return nil
}

func (m *Manager) run(wk workerKey, w *worker, ctx context.Context, closure func(ctx context.Context) error, onFinish func(Result)) {
	result := Result{}

	func() {
		defer func() {
			if r := recover(); r != nil {
				result.Panic = r
				m.log.Error().Interface("panic", r).Str("task_type", string(wk.taskType)).Str("key", wk.key).
					Msg("worker panicked")
			}
		}()
		result.Err = closure(ctx)
	}()

	m.mu.Lock()
	delete(m.workers, wk)
	m.mu.Unlock()
	close(w.done)

	if onFinish != nil {
		onFinish(result)
	}
}

// Stop signals cancellation to the worker at (taskType, key) and waits up to
// waitFor for it to deregister. It fails with *ierrors.WorkerStopTimeout on
// overrun; the worker keeps running in the background in that case.
func (m *Manager) Stop(taskType TaskType, key string, waitFor time.Duration) error {
	m.mu.Lock()
	wk := workerKey{taskType: taskType, key: key}
	w, exists := m.workers[wk]
	m.mu.Unlock()

	if !exists {
		return nil
	}

	w.cancel()

	select {
	case <-w.done:
		return nil
	case <-time.After(waitFor):
		return &ierrors.WorkerStopTimeout{TaskType: string(taskType), Key: key, Waited: waitFor.String()}
	}
}

// ListActive returns the keys of every registered worker of the given type.
func (m *Manager) ListActive(taskType TaskType) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for wk := range m.workers {
		if wk.taskType == taskType {
			keys = append(keys, wk.key)
		}
	}
	return keys
}

// ActiveCount returns the number of registered workers of the given type,
// used by the controller to derive its own state (§3 Controller state).
func (m *Manager) ActiveCount(taskType TaskType) int {
	return len(m.ListActive(taskType))
}

// JoinAll cancels and waits for every worker of taskType to finish, within
// deadline. It returns an error naming the first worker that failed to stop
// in time, having already attempted to cancel every one of them.
func (m *Manager) JoinAll(taskType TaskType, deadline time.Duration) error {
	m.mu.Lock()
	var keys []string
	for wk := range m.workers {
		if wk.taskType == taskType {
			keys = append(keys, wk.key)
		}
	}
	m.mu.Unlock()

	deadlineAt := time.Now().Add(deadline)
	var firstErr error

	for _, key := range keys {
		remaining := time.Until(deadlineAt)
		if remaining < 0 {
			remaining = 0
		}
		if err := m.Stop(taskType, key, remaining); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("join_all(%s): %w", taskType, err)
		}
	}

	return firstErr
}
