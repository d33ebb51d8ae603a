package zone

import (
	"errors"
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEvent is a minimal logiface.Event implementation for asserting that the
// engine emits structured events.
type testEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	fields map[string]any
}

func (e *testEvent) Level() logiface.Level        { return e.level }
func (e *testEvent) AddField(key string, val any) { e.fields[key] = val }

func newCapturingLogger(sink *[]*testEvent) *logiface.Logger[logiface.Event] {
	typed := logiface.New[*testEvent](
		logiface.WithEventFactory[*testEvent](logiface.NewEventFactoryFunc(func(level logiface.Level) *testEvent {
			return &testEvent{level: level, fields: make(map[string]any)}
		})),
		logiface.WithWriter[*testEvent](logiface.NewWriterFunc(func(event *testEvent) error {
			*sink = append(*sink, event)
			return nil
		})),
		logiface.WithLevel[*testEvent](logiface.LevelTrace),
	)
	return typed.Logger()
}

func TestNewEngine_IsolatedUniverses(t *testing.T) {
	e1 := newTestEngine(t)
	e2 := newTestEngine(t)

	assert.NotSame(t, e1.Root(), e2.Root())
	z1 := e1.Root().Fork(&Spec{Name: "z1"})
	z1.Run(func(args ...any) any {
		// Entering a zone in one universe leaves the other untouched.
		assert.Same(t, z1, e1.Current())
		assert.Same(t, e2.Root(), e2.Current())
		return nil
	})
}

func TestEngine_FrameStackAcrossMixedExits(t *testing.T) {
	e := newTestEngine(t)
	a := e.Root().Fork(&Spec{Name: "a"})
	b := a.Fork(&Spec{
		Name:          "b",
		OnHandleError: func(parent *Delegate, current, target *Zone, err error) bool { return false },
	})
	bottom := e.currentFrame

	a.Run(func(args ...any) any {
		// Guarded-and-suppressed exit below a normal frame.
		b.RunGuarded(func(args ...any) any { panic(errors.New("suppressed")) })
		assert.Same(t, a, e.Current())
		return nil
	})
	assert.Same(t, bottom, e.currentFrame)

	// Exceptional exit through both frames.
	assert.Panics(t, func() {
		a.Run(func(args ...any) any {
			return b.Run(func(args ...any) any { panic(errors.New("boom")) })
		})
	})
	assert.Same(t, bottom, e.currentFrame)
}

func TestEngine_RunTaskFrameRestoredOnPanic(t *testing.T) {
	e := newTestEngine(t)
	z := e.Root().Fork(&Spec{Name: "z"})
	bottom := e.currentFrame

	task := z.ScheduleMacroTask("t", func(args ...any) any {
		panic(errors.New("task boom"))
	}, nil, func(*Task) {}, nil)

	assert.Panics(t, func() { z.RunTask(task) })
	assert.Same(t, bottom, e.currentFrame)
	assert.Nil(t, e.CurrentTask())
}

func TestEngine_WithLogger_EmitsStructuredEvents(t *testing.T) {
	var events []*testEvent
	e, err := NewEngine(WithLogger(newCapturingLogger(&events)))
	require.NoError(t, err)

	// Engine installation is logged at construction.
	require.NotEmpty(t, events)
	assert.Equal(t, "engine", events[0].fields["category"])

	// Microtask scheduling and drains emit trace events.
	rec := &deferredRecorder{}
	e.API().SetNativeDeferred(rec.schedule)
	before := len(events)
	e.Root().ScheduleMicroTask("logged", noop, nil, nil)
	rec.fire(t)
	assert.Greater(t, len(events), before)
}

func TestEngine_UnhandledErrorLogged(t *testing.T) {
	var events []*testEvent
	e, err := NewEngine(WithLogger(newCapturingLogger(&events)))
	require.NoError(t, err)
	rec := &deferredRecorder{}
	e.API().SetNativeDeferred(rec.schedule)

	e.Root().ScheduleMicroTask("bad", func(args ...any) any {
		panic(errors.New("unhandled"))
	}, nil, nil)
	rec.fire(t)

	var sawError bool
	for _, ev := range events {
		if ev.level == logiface.LevelError {
			sawError = true
		}
	}
	assert.True(t, sawError, "unhandled microtask error should be logged")
}

func TestEngine_UnhandledErrorSuppressedByFlag(t *testing.T) {
	var events []*testEvent
	e, err := NewEngine(WithLogger(newCapturingLogger(&events)))
	require.NoError(t, err)
	rec := &deferredRecorder{}
	e.API().SetNativeDeferred(rec.schedule)
	e.Global().SetFlag(Symbol("ignoreConsoleErrorUncaughtError"), true)

	e.Root().ScheduleMicroTask("bad", func(args ...any) any {
		panic(errors.New("unhandled"))
	}, nil, nil)
	rec.fire(t)

	for _, ev := range events {
		assert.NotEqual(t, logiface.LevelError, ev.level)
	}
}

func TestResolveEngineOptions_NilOptionSkipped(t *testing.T) {
	e, err := NewEngine(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, e.Root())
}
