// Package scheduler provides the agent's cooperative event loop.
//
// A single goroutine runs the loop. Each turn it waits on the protocol
// engine's I/O for at most the configured timeout (100ms by default, less when
// a task is due sooner), then runs every task that has become due. Tasks run
// to completion and never overlap, so all object state they touch has a single
// writer.
//
// Other goroutines hand work to the loop with Schedule; the task always runs
// on the loop goroutine. Feeder goroutines started with Go are cancelled and
// joined before Run returns.
//
//	loop := scheduler.New(engine, scheduler.Options{})
//	loop.ScheduleTask(poll, time.Now().Add(2*time.Second))
//	loop.Go(func(ctx context.Context) { readCommands(ctx, loop) })
//	err := loop.Run(ctx)
package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-agent/internal/infrastructure/metrics"
)

// DefaultTimeout is the upper bound of one I/O wait.
const DefaultTimeout = 100 * time.Millisecond

var (
	// ErrEngineIO wraps a fatal error returned by the I/O service. It ends
	// Run.
	ErrEngineIO = errors.New("scheduler: engine I/O failure")

	// ErrAlreadyRunning is returned by Run when the loop is already running.
	ErrAlreadyRunning = errors.New("scheduler: loop already running")
)

// Task is a unit of work run on the loop goroutine. A task that wants to
// repeat schedules itself again.
type Task func(ctx context.Context, l *Loop)

// IOService is the engine I/O the loop waits on. Poll must return within
// roughly timeout; a non-nil error is fatal.
type IOService interface {
	Poll(ctx context.Context, timeout time.Duration) error
}

// waker is implemented by I/O services whose Poll can be cut short.
type waker interface {
	Wake()
}

// Logger defines the logging interface used by the Loop.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options configures a Loop.
type Options struct {
	// Timeout bounds each I/O wait. Zero means DefaultTimeout.
	Timeout time.Duration

	// Logger receives task panics and lifecycle messages.
	Logger Logger
}

// Loop is the cooperative scheduler. The zero value is not usable; call New.
type Loop struct {
	io      IOService
	timeout time.Duration
	logger  Logger

	mu    sync.Mutex
	tasks taskHeap
	seq   uint64

	interrupted atomic.Bool
	running     atomic.Bool
	wake        chan struct{}

	feeders       sync.WaitGroup
	feederCtx     context.Context
	cancelFeeders context.CancelFunc
}

// New creates a loop around io. A nil io makes the loop wait on its own
// timer.
func New(io IOService, opts Options) *Loop {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		io:            io,
		timeout:       opts.Timeout,
		logger:        opts.Logger,
		wake:          make(chan struct{}, 1),
		feederCtx:     ctx,
		cancelFeeders: cancel,
	}
}

// ScheduleTask queues task to run at or after at. Tasks with the same at run
// in the order they were scheduled. Safe from any goroutine.
func (l *Loop) ScheduleTask(task Task, at time.Time) {
	l.mu.Lock()
	l.seq++
	heap.Push(&l.tasks, &entry{at: at, seq: l.seq, task: task})
	l.mu.Unlock()

	l.notify()
}

// ScheduleAfter queues task to run once d has elapsed.
func (l *Loop) ScheduleAfter(task Task, d time.Duration) {
	l.ScheduleTask(task, time.Now().Add(d))
}

// Schedule hands task to the loop to run as soon as possible. This is how
// feeder goroutines inject work. Safe from any goroutine.
func (l *Loop) Schedule(task Task) {
	l.ScheduleTask(task, time.Now())
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tasks.Len()
}

// Interrupt asks Run to return after the current turn. Safe from any
// goroutine.
func (l *Loop) Interrupt() {
	l.interrupted.Store(true)
	l.notify()
}

// Go starts a feeder goroutine. Its context is cancelled when Run returns,
// and Run waits for it to exit.
func (l *Loop) Go(fn func(ctx context.Context)) {
	l.feeders.Add(1)
	go func() {
		defer l.feeders.Done()
		fn(l.feederCtx)
	}()
}

// notify cuts the current wait short.
func (l *Loop) notify() {
	if w, ok := l.io.(waker); ok {
		w.Wake()
	}
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run drives the loop until Interrupt is called, ctx is cancelled or the I/O
// service fails. Before returning it cancels every feeder and waits for them
// to exit.
//
// Returns:
//   - error: nil on interrupt or cancellation, ErrEngineIO wrapping the cause
//     on I/O failure, ErrAlreadyRunning if called concurrently
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)
	defer l.teardown()

	l.logger.Debug("event loop started", "timeout", l.timeout)

	for {
		if l.interrupted.Load() {
			l.logger.Info("event loop interrupted")
			return nil
		}
		if ctx.Err() != nil {
			l.logger.Info("event loop cancelled")
			return nil
		}

		if err := l.wait(ctx, l.nextWait()); err != nil {
			l.logger.Error("engine I/O failed, stopping event loop", "error", err)
			return fmt.Errorf("%w: %w", ErrEngineIO, err)
		}

		l.runDue(ctx)
	}
}

func (l *Loop) teardown() {
	l.cancelFeeders()
	l.feeders.Wait()
	l.logger.Debug("event loop stopped, feeders joined")
}

// nextWait returns the timeout shortened to the next due task.
func (l *Loop) nextWait() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.tasks.Len() == 0 {
		return l.timeout
	}
	until := time.Until(l.tasks[0].at)
	if until < 0 {
		return 0
	}
	return min(until, l.timeout)
}

func (l *Loop) wait(ctx context.Context, d time.Duration) error {
	// Drain a stale wake-up so it does not cut the next wait short.
	select {
	case <-l.wake:
		if d > 0 && !l.interrupted.Load() {
			d = 0
		}
	default:
	}

	if l.io != nil {
		return l.io.Poll(ctx, d)
	}

	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-l.wake:
	case <-ctx.Done():
	}
	return nil
}

// runDue runs the tasks due at the start of the call. Tasks they schedule
// for now run in the next turn.
func (l *Loop) runDue(ctx context.Context) {
	now := time.Now()

	l.mu.Lock()
	var due []*entry
	for l.tasks.Len() > 0 && !l.tasks[0].at.After(now) {
		due = append(due, heap.Pop(&l.tasks).(*entry))
	}
	l.mu.Unlock()

	for i, e := range due {
		if l.interrupted.Load() || ctx.Err() != nil {
			l.logger.Debug("dropping due tasks on shutdown", "count", len(due)-i)
			return
		}
		l.runTask(ctx, e.task)
	}
}

func (l *Loop) runTask(ctx context.Context, task Task) {
	start := time.Now()
	panicked := false
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			l.logger.Error("scheduled task panicked", "panic", r)
		}
		metrics.RecordTask(time.Since(start), panicked)
	}()

	task(ctx, l)
}

type entry struct {
	at   time.Time
	seq  uint64
	task Task
}

// taskHeap orders entries by fire time, then by submission order.
type taskHeap []*entry

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
