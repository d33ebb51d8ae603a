package zone

import (
	"fmt"
	"time"
)

// TaskType classifies the three kinds of work a zone can schedule.
type TaskType string

const (
	// MicroTask is non-cancellable work run at the trailing edge of the
	// current task, before control returns to the host.
	MicroTask TaskType = "microTask"
	// MacroTask is cancellable work run after a host-governed delay; it may
	// be periodic.
	MacroTask TaskType = "macroTask"
	// EventTask is a listener whose callback may fire zero or more times at
	// unpredictable intervals.
	EventTask TaskType = "eventTask"
)

// TaskState is the lifecycle state of a [Task].
//
// State machine:
//
//	notScheduled → scheduling → scheduled → running → scheduled     (periodic macro / event)
//	                                                → notScheduled  (one-shot)
//	scheduled|running → canceling → notScheduled
//	any scheduling-or-canceling error → unknown
//
// Transitions are enforced by transitionTo, which panics with a
// [TaskStateError] when the current state matches none of the allowed source
// states.
type TaskState string

const (
	NotScheduled TaskState = "notScheduled"
	Scheduling   TaskState = "scheduling"
	Scheduled    TaskState = "scheduled"
	Running      TaskState = "running"
	Canceling    TaskState = "canceling"
	Unknown      TaskState = "unknown"
)

// TaskData carries optional scheduling metadata for a task. All fields are
// opaque to the core except where noted.
type TaskData struct {
	// IsPeriodic marks a macro task that reschedules itself after each run
	// (interval semantics). Periodic tasks return to the scheduled state
	// instead of completing.
	IsPeriodic bool

	// Delay is the host-governed delay before a macro task fires.
	Delay time.Duration

	// HandleID is the host's handle for the scheduled work, stored by the
	// schedule function so the cancel function can find it.
	HandleID any

	// UseG selects the shared static entry point for event tasks, avoiding a
	// per-task closure allocation. The host MUST then invoke [Task.Invoke]
	// with the task itself as the first argument.
	UseG bool

	// Values is an open bag for layered zone specs that need to attach state
	// to a task without owning its type.
	Values map[string]any
}

// ScheduleFunc installs a task with the host scheduler.
type ScheduleFunc func(*Task)

// CancelFunc revokes a task from the host scheduler.
type CancelFunc func(*Task)

// Task is a first-class handle for a deferred unit of work. Tasks are created
// through the Zone.ScheduleMicroTask / ScheduleMacroTask / ScheduleEventTask
// constructors and owned by the zone that scheduled them.
type Task struct {
	// Type is the task kind, fixed at construction.
	Type TaskType

	// Source is a debug string describing where the task came from.
	Source string

	// Callback is the user function the task runs.
	Callback Callback

	// Data optionally carries scheduling metadata.
	Data *TaskData

	// ScheduleFn installs the task with the host; nil for microtasks, which
	// default onto the engine's microtask queue.
	ScheduleFn ScheduleFunc

	// CancelFn revokes the task from the host. Cleared on one-shot macro
	// tasks once they start running.
	CancelFn CancelFunc

	// Invoke is the thunk the host uses to enter the task. For event tasks
	// constructed with Data.UseG it is the shared static entry point and the
	// host must pass the task itself as the first argument; otherwise it is a
	// per-task closure that forwards its arguments.
	Invoke func(args ...any) any

	state          TaskState
	zone           *Zone
	runCount       int64
	zoneDelegates  []*Delegate
	delegatesEpoch uint64
}

func newTask(taskType TaskType, source string, callback Callback, data *TaskData, scheduleFn ScheduleFunc, cancelFn CancelFunc) *Task {
	if callback == nil {
		panic(ErrCallbackNotDefined)
	}
	t := &Task{
		Type:       taskType,
		Source:     source,
		Callback:   callback,
		Data:       data,
		ScheduleFn: scheduleFn,
		CancelFn:   cancelFn,
		state:      NotScheduled,
	}
	if taskType == EventTask && data != nil && data.UseG {
		t.Invoke = invokeTaskEntry
	} else {
		t.Invoke = func(args ...any) any {
			return InvokeTask(t, args...)
		}
	}
	return t
}

// invokeTaskEntry is the shared entry point used for event tasks constructed
// with Data.UseG. Hosts that miss the task-first contract mis-dispatch, so
// the argument is validated.
func invokeTaskEntry(args ...any) any {
	if len(args) == 0 {
		panic(fmt.Errorf("zone: shared task entry point invoked without a task argument"))
	}
	task, ok := args[0].(*Task)
	if !ok {
		panic(fmt.Errorf("zone: shared task entry point expects *Task as first argument, got %T", args[0]))
	}
	return InvokeTask(task, args[1:]...)
}

// InvokeTask is the static entry point through which a host enters a task.
// It tracks the nested-task-frame depth and, when the outermost frame
// unwinds, drains the microtask queue before the host regains control.
func InvokeTask(task *Task, args ...any) any {
	e := task.zone.engine
	e.nestedTaskFrames++
	defer func() {
		if e.nestedTaskFrames == 1 {
			e.drainMicroTaskQueue()
		}
		e.nestedTaskFrames--
	}()
	task.runCount++
	return task.zone.RunTask(task, args...)
}

// State returns the task's current lifecycle state.
func (t *Task) State() TaskState {
	return t.state
}

// Zone returns the zone the task was scheduled in, or nil before the first
// scheduling.
func (t *Task) Zone() *Zone {
	return t.zone
}

// RunCount returns how many times the task has been executed. It resets to
// zero when a one-shot task completes or any task is cancelled.
func (t *Task) RunCount() int64 {
	return t.runCount
}

// CancelScheduleRequest reverses a scheduling in progress. It is legal only
// while the task is in the scheduling state, and lets an OnScheduleTask hook
// reject the task without parking it in unknown.
func (t *Task) CancelScheduleRequest() {
	t.transitionTo(NotScheduled, Scheduling)
}

// transitionTo moves the task to a new state, enforcing that the current
// state matches one of the allowed source states. Reaching notScheduled
// releases the delegate list.
func (t *Task) transitionTo(to TaskState, from ...TaskState) {
	for _, f := range from {
		if t.state == f {
			t.state = to
			if to == NotScheduled {
				t.zoneDelegates = nil
			}
			return
		}
	}
	panic(&TaskStateError{Task: t, To: to, From: from, Was: t.state})
}

// String implements fmt.Stringer.
func (t *Task) String() string {
	if t.Data != nil && t.Data.HandleID != nil {
		return fmt.Sprint(t.Data.HandleID)
	}
	return fmt.Sprintf("Task{type: %s, source: %s, state: %s}", t.Type, t.Source, t.state)
}
