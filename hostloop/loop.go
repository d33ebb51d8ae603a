// Package hostloop provides a minimal cooperative event loop for driving a
// zone engine: a single goroutine that executes submitted tasks, fires timers
// from a min-heap, and drains a deferred queue at the trailing edge of every
// task. It is the in-process stand-in for the host runtimes zones normally
// ride on, and the backing scheduler for the timers patch.
//
// All callbacks execute on the loop goroutine, except that a Shutdown before
// Run executes the tasks already submitted on the caller's goroutine. Submit
// and timer registration are safe to call from any goroutine; Defer is
// loop-goroutine only.
package hostloop

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// Standard errors.
var (
	// ErrLoopAlreadyRunning is returned when Run is called on a loop that is
	// already running.
	ErrLoopAlreadyRunning = errors.New("hostloop: loop is already running")

	// ErrLoopTerminated is returned when operations are attempted on a
	// terminated loop.
	ErrLoopTerminated = errors.New("hostloop: loop has been terminated")

	// ErrTimerNotFound is returned when cancelling a timer that does not
	// exist or has already fired.
	ErrTimerNotFound = errors.New("hostloop: timer not found")
)

// LoopState represents the current state of the event loop.
//
// State machine:
//
//	Awake (0) → Running        [Run]
//	Running   → Terminating    [Shutdown / ctx cancellation]
//	Terminating → Terminated   [drain complete]
//	Awake → Terminated         [Shutdown before Run]
//
// Temporary transitions use CAS; Terminated is stored unconditionally once
// the drain completes.
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake LoopState = iota
	// StateRunning indicates the loop is processing tasks and timers.
	StateRunning
	// StateTerminating indicates shutdown has been requested but the final
	// drain has not completed.
	StateTerminating
	// StateTerminated indicates the loop is fully stopped.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// TimerID identifies a scheduled timer for cancellation.
type TimerID uint64

// timer is one scheduled callback.
type timer struct {
	id   TimerID
	when time.Time
	fn   func()
}

// timerHeap is a min-heap of timers ordered by deadline.
type timerHeap []*timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(*timer))
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return x
}

// Loop is the cooperative event loop.
type Loop struct {
	// Prevent copying
	_ [0]func()

	state atomic.Uint64

	tasks chan func()
	wake  chan struct{}

	// deferred is the trailing-edge queue consumed after each task; it is
	// owned by the loop goroutine.
	deferred []func()

	timersMu sync.Mutex
	timers   timerHeap
	live     map[TimerID]struct{}
	timerSeq atomic.Uint64

	// loopDone signals termination to Shutdown waiters.
	loopDone chan struct{}
	stopOnce sync.Once

	logger *logiface.Logger[logiface.Event]

	// OnPanic, when set, receives panic values recovered from task and timer
	// callbacks. Defaults to logging through the loop's logger.
	OnPanic func(v any)
}

// loopOptions holds configuration options for Loop creation.
type loopOptions struct {
	logger     *logiface.Logger[logiface.Event]
	taskBuffer int
}

// Option configures a Loop instance.
type Option interface {
	applyLoop(*loopOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (o *optionImpl) applyLoop(opts *loopOptions) error {
	return o.applyLoopFunc(opts)
}

// WithLogger attaches a structured logger; panics recovered from callbacks
// and lifecycle transitions are reported through it.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *loopOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithTaskBuffer sets the capacity of the submission queue (default 1024).
func WithTaskBuffer(n int) Option {
	return &optionImpl{func(opts *loopOptions) error {
		if n <= 0 {
			return errors.New("hostloop: task buffer must be positive")
		}
		opts.taskBuffer = n
		return nil
	}}
}

func resolveLoopOptions(opts []Option) (*loopOptions, error) {
	cfg := &loopOptions{taskBuffer: 1024}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// New creates a new loop in the Awake state.
func New(opts ...Option) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	l := &Loop{
		tasks:    make(chan func(), cfg.taskBuffer),
		wake:     make(chan struct{}, 1),
		live:     make(map[TimerID]struct{}),
		loopDone: make(chan struct{}),
		logger:   cfg.logger,
	}
	l.OnPanic = func(v any) {
		l.logger.Err().
			Str("category", "task").
			Any("panic", v).
			Log("hostloop: callback panicked")
	}
	return l, nil
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	return LoopState(l.state.Load())
}

// Run runs the event loop and blocks until the loop terminates via Shutdown
// or ctx cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(uint64(StateAwake), uint64(StateRunning)) {
		if l.State() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}
	defer close(l.loopDone)
	defer l.state.Store(uint64(StateTerminated))

	for {
		l.drainDeferred()

		if l.State() == StateTerminating {
			l.drainRemaining()
			return nil
		}

		next, fired := l.fireDueTimers()
		if fired {
			continue
		}

		if next > 0 {
			t := time.NewTimer(next)
			select {
			case fn := <-l.tasks:
				l.execute(fn)
			case <-t.C:
			case <-l.wake:
			case <-ctx.Done():
				t.Stop()
				l.state.Store(uint64(StateTerminating))
				l.drainRemaining()
				return ctx.Err()
			}
			t.Stop()
			continue
		}

		select {
		case fn := <-l.tasks:
			l.execute(fn)
		case <-l.wake:
		case <-ctx.Done():
			l.state.Store(uint64(StateTerminating))
			l.drainRemaining()
			return ctx.Err()
		}
	}
}

// Shutdown requests termination and blocks until the loop finishes its final
// drain or ctx expires.
func (l *Loop) Shutdown(ctx context.Context) error {
	var requested bool
	l.stopOnce.Do(func() {
		requested = true
		for {
			state := l.State()
			if state == StateTerminated || state == StateTerminating {
				return
			}
			if state == StateAwake {
				if l.state.CompareAndSwap(uint64(StateAwake), uint64(StateTerminated)) {
					// No loop goroutine will run: execute what was submitted
					// before Run here so it is not dropped.
					l.drainRemaining()
					close(l.loopDone)
					return
				}
				continue
			}
			if l.state.CompareAndSwap(uint64(state), uint64(StateTerminating)) {
				l.wakeUp()
				return
			}
		}
	})
	if !requested && l.State() == StateTerminated {
		return ErrLoopTerminated
	}
	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit queues fn for execution on the loop goroutine.
func (l *Loop) Submit(fn func()) error {
	if fn == nil {
		return nil
	}
	state := l.State()
	if state == StateTerminated || state == StateTerminating {
		return ErrLoopTerminated
	}
	l.tasks <- fn
	l.wakeUp()
	return nil
}

// Defer queues fn on the trailing-edge queue, consumed after the currently
// executing task and before the next one. This is the deferred-resolution
// primitive the timers patch registers as the microtask drain trigger.
//
// Defer must be called from the loop goroutine.
func (l *Loop) Defer(fn func()) {
	if fn == nil {
		return
	}
	l.deferred = append(l.deferred, fn)
}

// ScheduleTimer schedules fn to run on the loop goroutine after delay.
func (l *Loop) ScheduleTimer(delay time.Duration, fn func()) TimerID {
	if delay < 0 {
		delay = 0
	}
	id := TimerID(l.timerSeq.Add(1))
	t := &timer{id: id, when: time.Now().Add(delay), fn: fn}
	l.timersMu.Lock()
	heap.Push(&l.timers, t)
	l.live[id] = struct{}{}
	l.timersMu.Unlock()
	l.wakeUp()
	return id
}

// CancelTimer cancels a scheduled timer. Returns ErrTimerNotFound if the
// timer does not exist or has already fired.
func (l *Loop) CancelTimer(id TimerID) error {
	l.timersMu.Lock()
	defer l.timersMu.Unlock()
	if _, ok := l.live[id]; !ok {
		return ErrTimerNotFound
	}
	delete(l.live, id)
	return nil
}

// wakeUp nudges the loop out of a blocking select. Signal coalescing keeps
// this non-blocking.
func (l *Loop) wakeUp() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// fireDueTimers runs every expired timer and reports the delay until the next
// deadline (0 when no timers are pending) plus whether anything fired.
func (l *Loop) fireDueTimers() (next time.Duration, fired bool) {
	now := time.Now()
	for {
		l.timersMu.Lock()
		if len(l.timers) == 0 {
			l.timersMu.Unlock()
			return 0, fired
		}
		t := l.timers[0]
		if t.when.After(now) {
			next = t.when.Sub(now)
			l.timersMu.Unlock()
			return next, fired
		}
		heap.Pop(&l.timers)
		_, alive := l.live[t.id]
		delete(l.live, t.id)
		l.timersMu.Unlock()
		if alive {
			l.execute(t.fn)
			fired = true
		}
	}
}

// drainDeferred consumes the trailing-edge queue, including entries appended
// while draining.
func (l *Loop) drainDeferred() {
	for len(l.deferred) > 0 {
		queue := l.deferred
		l.deferred = nil
		for _, fn := range queue {
			l.execute(fn)
		}
	}
}

// drainRemaining executes everything still queued before termination so
// submitted work is never silently dropped.
func (l *Loop) drainRemaining() {
	for {
		l.drainDeferred()
		select {
		case fn := <-l.tasks:
			l.execute(fn)
		default:
			l.drainDeferred()
			return
		}
	}
}

// execute runs a callback with panic recovery.
func (l *Loop) execute(fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			if l.OnPanic != nil {
				l.OnPanic(r)
			}
		}
	}()
	fn()
	l.drainDeferred()
}
