package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is a named unit of background work submitted by a service after its
// primary write has committed.
type Task struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Runner executes side effects (occupancy logging, alert evaluation,
// broadcasts that need a DB read) off the request path, under supervision:
// failures are logged and counted instead of silently discarded, and
// submission never blocks a handler.
type Runner struct {
	logger    zerolog.Logger
	queue     chan Task
	timeout   time.Duration
	onFailure func(task string)

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

type Option func(*Runner)

// WithFailureHook registers a callback invoked with the task name whenever a
// task errors or is dropped. Used to feed the failure counter.
func WithFailureHook(fn func(task string)) Option {
	return func(r *Runner) { r.onFailure = fn }
}

// WithTaskTimeout bounds how long a single task may run.
func WithTaskTimeout(d time.Duration) Option {
	return func(r *Runner) { r.timeout = d }
}

func NewRunner(logger zerolog.Logger, buffer int, opts ...Option) *Runner {
	if buffer <= 0 {
		buffer = 64
	}
	r := &Runner{
		logger:  logger.With().Str("component", "tasks").Logger(),
		queue:   make(chan Task, buffer),
		timeout: 10 * time.Second,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start launches the worker goroutines. Subsequent calls are no-ops.
func (r *Runner) Start(ctx context.Context, workers int) {
	r.startOnce.Do(func() {
		if workers <= 0 {
			workers = 2
		}
		for i := 0; i < workers; i++ {
			r.wg.Add(1)
			go r.work(ctx)
		}
	})
}

func (r *Runner) work(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case task := <-r.queue:
			r.run(ctx, task)
		}
	}
}

func (r *Runner) run(ctx context.Context, task Task) {
	taskCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().
				Str("task", task.Name).
				Interface("panic", rec).
				Msg("side effect panicked")
			r.fail(task.Name)
		}
	}()

	if err := task.Fn(taskCtx); err != nil {
		r.logger.Error().Err(err).Str("task", task.Name).Msg("side effect failed")
		r.fail(task.Name)
	}
}

func (r *Runner) fail(name string) {
	if r.onFailure != nil {
		r.onFailure(name)
	}
}

// Submit enqueues a task without blocking. If the queue is full the task is
// dropped, logged, and counted as a failure; side effects are best effort and
// must never stall a request.
func (r *Runner) Submit(name string, fn func(ctx context.Context) error) bool {
	select {
	case r.queue <- Task{Name: name, Fn: fn}:
		return true
	default:
		r.logger.Warn().Str("task", name).Msg("task queue full, dropping side effect")
		r.fail(name)
		return false
	}
}

// Stop signals the workers to exit and waits for in-flight tasks to finish.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
	r.wg.Wait()
}
