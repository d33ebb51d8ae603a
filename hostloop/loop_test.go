package hostloop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l, err := New()
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Shutdown(ctx)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("loop did not stop")
		}
	})
	return l
}

func TestLoop_SubmitExecutesOnLoop(t *testing.T) {
	l := startLoop(t)
	ran := make(chan struct{})
	require.NoError(t, l.Submit(func() { close(ran) }))
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("submitted task did not run")
	}
}

func TestLoop_SubmitOrdering(t *testing.T) {
	l := startLoop(t)
	var order []int
	done := make(chan struct{})
	for i := 1; i <= 3; i++ {
		i := i
		require.NoError(t, l.Submit(func() {
			order = append(order, i)
			if i == 3 {
				close(done)
			}
		}))
	}
	<-done
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestLoop_TimerFires(t *testing.T) {
	l := startLoop(t)
	fired := make(chan time.Time, 1)
	start := time.Now()
	l.ScheduleTimer(20*time.Millisecond, func() { fired <- time.Now() })

	select {
	case at := <-fired:
		assert.GreaterOrEqual(t, at.Sub(start), 15*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestLoop_TimerCancel(t *testing.T) {
	l := startLoop(t)
	var fired atomic.Bool
	id := l.ScheduleTimer(30*time.Millisecond, func() { fired.Store(true) })
	require.NoError(t, l.CancelTimer(id))

	time.Sleep(80 * time.Millisecond)
	assert.False(t, fired.Load())

	// Second cancel reports not found.
	assert.ErrorIs(t, l.CancelTimer(id), ErrTimerNotFound)
}

func TestLoop_CancelUnknownTimer(t *testing.T) {
	l := startLoop(t)
	assert.ErrorIs(t, l.CancelTimer(TimerID(9999)), ErrTimerNotFound)
}

func TestLoop_TimerOrdering(t *testing.T) {
	l := startLoop(t)
	var order []string
	done := make(chan struct{})
	l.ScheduleTimer(40*time.Millisecond, func() {
		order = append(order, "late")
		close(done)
	})
	l.ScheduleTimer(10*time.Millisecond, func() { order = append(order, "early") })
	<-done
	assert.Equal(t, []string{"early", "late"}, order)
}

// Defer runs at the trailing edge of the current task, before the next one.
func TestLoop_DeferRunsBeforeNextTask(t *testing.T) {
	l := startLoop(t)
	var order []string
	done := make(chan struct{})
	require.NoError(t, l.Submit(func() {
		l.Defer(func() { order = append(order, "deferred") })
		order = append(order, "task1")
	}))
	require.NoError(t, l.Submit(func() {
		order = append(order, "task2")
		close(done)
	}))
	<-done
	assert.Equal(t, []string{"task1", "deferred", "task2"}, order)
}

func TestLoop_DeferNestedDrains(t *testing.T) {
	l := startLoop(t)
	var order []string
	done := make(chan struct{})
	require.NoError(t, l.Submit(func() {
		l.Defer(func() {
			order = append(order, "d1")
			l.Defer(func() {
				order = append(order, "d2")
				close(done)
			})
		})
	}))
	<-done
	assert.Equal(t, []string{"d1", "d2"}, order)
}

func TestLoop_PanicRecovery(t *testing.T) {
	l := startLoop(t)
	var recovered atomic.Value
	l.OnPanic = func(v any) { recovered.Store(v) }

	ran := make(chan struct{})
	require.NoError(t, l.Submit(func() { panic(errors.New("task panic")) }))
	require.NoError(t, l.Submit(func() { close(ran) }))
	<-ran
	require.NotNil(t, recovered.Load())
	assert.Contains(t, recovered.Load().(error).Error(), "task panic")
}

func TestLoop_RunTwiceFails(t *testing.T) {
	l := startLoop(t)
	// Give Run a moment to take the state.
	time.Sleep(10 * time.Millisecond)
	assert.ErrorIs(t, l.Run(context.Background()), ErrLoopAlreadyRunning)
}

func TestLoop_ShutdownDrainsPending(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	executed := make(chan struct{})
	require.NoError(t, l.Submit(func() {
		time.Sleep(20 * time.Millisecond)
	}))
	require.NoError(t, l.Submit(func() { close(executed) }))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.Shutdown(ctx))
	<-done

	select {
	case <-executed:
	case <-time.After(time.Second):
		t.Fatal("pending task dropped during shutdown")
	}
	assert.Equal(t, StateTerminated, l.State())
}

func TestLoop_SubmitAfterShutdownFails(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	go func() { _ = l.Run(context.Background()) }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, l.Shutdown(ctx))

	assert.ErrorIs(t, l.Submit(func() {}), ErrLoopTerminated)
}

func TestLoop_ShutdownBeforeRun(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, l.Shutdown(ctx))
	assert.Equal(t, StateTerminated, l.State())
	assert.ErrorIs(t, l.Run(context.Background()), ErrLoopTerminated)
}

func TestLoop_ContextCancellationStops(t *testing.T) {
	l, err := New()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on context cancellation")
	}
	assert.Equal(t, StateTerminated, l.State())
}

func TestLoopState_String(t *testing.T) {
	assert.Equal(t, "Awake", StateAwake.String())
	assert.Equal(t, "Running", StateRunning.String())
	assert.Equal(t, "Terminating", StateTerminating.String())
	assert.Equal(t, "Terminated", StateTerminated.String())
	assert.Equal(t, "Unknown", LoopState(99).String())
}

func TestWithTaskBuffer_Validation(t *testing.T) {
	_, err := New(WithTaskBuffer(0))
	assert.Error(t, err)
	l, err := New(WithTaskBuffer(8))
	require.NoError(t, err)
	assert.NotNil(t, l)
}
