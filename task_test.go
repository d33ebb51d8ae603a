package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine()
	require.NoError(t, err)
	return e
}

func noop(args ...any) any { return nil }

func TestNewTask_RequiresCallback(t *testing.T) {
	require.PanicsWithError(t, ErrCallbackNotDefined.Error(), func() {
		newTask(MacroTask, "test", nil, nil, nil, nil)
	})
}

func TestTask_InitialState(t *testing.T) {
	task := newTask(MacroTask, "test", noop, nil, nil, nil)
	assert.Equal(t, NotScheduled, task.State())
	assert.Nil(t, task.Zone())
	assert.EqualValues(t, 0, task.RunCount())
}

func TestTask_TransitionTo_Legal(t *testing.T) {
	task := newTask(MacroTask, "test", noop, nil, nil, nil)
	task.transitionTo(Scheduling, NotScheduled)
	assert.Equal(t, Scheduling, task.State())
	task.transitionTo(Scheduled, Scheduling)
	assert.Equal(t, Scheduled, task.State())
	task.transitionTo(Running, Scheduled)
	assert.Equal(t, Running, task.State())
}

// Scenario S6: an illegal transition is fatal with a descriptive message.
func TestTask_TransitionTo_IllegalIsFatal(t *testing.T) {
	task := newTask(MacroTask, "test", noop, nil, nil, nil)
	task.transitionTo(Scheduling, NotScheduled)
	task.transitionTo(Scheduled, Scheduling)
	task.transitionTo(Running, Scheduled)

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected illegal transition to panic")
		err, ok := r.(error)
		require.True(t, ok, "panic value should be an error, got %T", r)
		assert.Contains(t, err.Error(), "can not transition to 'scheduled', expecting state 'notScheduled'")
		assert.Contains(t, err.Error(), "was 'running'")
	}()
	task.transitionTo(Scheduled, NotScheduled)
}

func TestTask_TransitionTo_SecondFromState(t *testing.T) {
	task := newTask(MacroTask, "test", noop, nil, nil, nil)
	// notScheduled matches the second allowed source state.
	task.transitionTo(Unknown, Scheduling, NotScheduled)
	assert.Equal(t, Unknown, task.State())
}

func TestTask_TransitionTo_ErrorNamesBothStates(t *testing.T) {
	task := newTask(EventTask, "listener", noop, nil, nil, nil)
	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.Contains(t, r.(error).Error(), "expecting state 'scheduled' or 'running'")
		assert.Contains(t, r.(error).Error(), "eventTask 'listener'")
	}()
	task.transitionTo(Canceling, Scheduled, Running)
}

func TestTask_CancelScheduleRequest(t *testing.T) {
	task := newTask(MacroTask, "test", noop, nil, nil, nil)
	task.transitionTo(Scheduling, NotScheduled)
	task.CancelScheduleRequest()
	assert.Equal(t, NotScheduled, task.State())

	// Only legal from scheduling.
	assert.Panics(t, func() { task.CancelScheduleRequest() })
}

func TestTask_TransitionToNotScheduled_ReleasesDelegates(t *testing.T) {
	e := newTestEngine(t)
	task := newTask(MacroTask, "test", noop, nil, nil, nil)
	task.zoneDelegates = []*Delegate{e.Root().delegate}
	task.transitionTo(Scheduling, NotScheduled)
	task.CancelScheduleRequest()
	assert.Nil(t, task.zoneDelegates)
}

// The per-task invoke closure forwards into the static entry point.
func TestTask_Invoke_Closure(t *testing.T) {
	e := newTestEngine(t)
	var got []any
	task := e.Root().ScheduleMacroTask("test", func(args ...any) any {
		got = args
		return "result"
	}, nil, func(*Task) {}, nil)

	result := task.Invoke(1, "two")
	assert.Equal(t, "result", result)
	assert.Equal(t, []any{1, "two"}, got)
	assert.Equal(t, NotScheduled, task.State())
}

// Event tasks constructed with UseG share the static entry point; the host
// must pass the task first.
func TestTask_Invoke_UseG(t *testing.T) {
	e := newTestEngine(t)
	var got []any
	task := e.Root().ScheduleEventTask("listener", func(args ...any) any {
		got = args
		return len(args)
	}, &TaskData{UseG: true}, func(*Task) {}, func(*Task) {})

	result := task.Invoke(task, "payload")
	assert.Equal(t, 1, result)
	assert.Equal(t, []any{"payload"}, got)
	// Event tasks return to scheduled after a run.
	assert.Equal(t, Scheduled, task.State())
}

func TestTask_Invoke_UseG_MissingTaskArgument(t *testing.T) {
	e := newTestEngine(t)
	task := e.Root().ScheduleEventTask("listener", noop, &TaskData{UseG: true}, func(*Task) {}, func(*Task) {})
	assert.Panics(t, func() { task.Invoke() })
	assert.Panics(t, func() { task.Invoke("not a task") })
	e.Root().CancelTask(task)
}

func TestTask_String(t *testing.T) {
	task := newTask(MacroTask, "setTimeout", noop, &TaskData{HandleID: 42}, nil, nil)
	assert.Equal(t, "42", task.String())

	plain := newTask(MicroTask, "then", noop, nil, nil, nil)
	assert.Contains(t, plain.String(), "microTask")
	assert.Contains(t, plain.String(), "then")
}
