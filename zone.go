package zone

// Zone is a named execution context that persists across asynchronous
// boundaries. Zones form a rooted tree; each node is immutable after
// construction and reachable only through the engine's current-zone stack and
// explicit references. There is no child enumeration.
type Zone struct {
	parent     *Zone
	name       string
	properties map[string]any
	delegate   *Delegate
	engine     *Engine
}

// newZone constructs a zone node. Only the engine's root has a nil parent and
// a nil spec.
func newZone(engine *Engine, parent *Zone, spec *Spec) *Zone {
	z := &Zone{engine: engine, parent: parent}
	switch {
	case spec == nil:
		z.name = "<root>"
	case spec.Name != "":
		z.name = spec.Name
	default:
		z.name = "unnamed"
	}
	if spec != nil {
		z.properties = spec.Properties
	}
	var parentDelegate *Delegate
	if parent != nil {
		parentDelegate = parent.delegate
	}
	z.delegate = newDelegate(z, parentDelegate, spec)
	return z
}

// Parent returns the parent zone, or nil for the root.
func (z *Zone) Parent() *Zone {
	return z.parent
}

// Name returns the zone's name.
func (z *Zone) Name() string {
	return z.name
}

// Engine returns the engine whose universe this zone belongs to.
func (z *Zone) Engine() *Engine {
	return z.engine
}

// Get returns the value for key from the closest zone, walking from this zone
// to the root, or nil if no ancestor defines it.
func (z *Zone) Get(key string) any {
	if owner := z.GetZoneWith(key); owner != nil {
		return owner.properties[key]
	}
	return nil
}

// GetZoneWith returns the zone that owns the property key, walking from this
// zone to the root, or nil if no ancestor defines it.
func (z *Zone) GetZoneWith(key string) *Zone {
	for current := z; current != nil; current = current.parent {
		if _, ok := current.properties[key]; ok {
			return current
		}
	}
	return nil
}

// Fork creates a child zone configured by spec, routing through the onFork
// chain. The spec is required.
func (z *Zone) Fork(spec *Spec) *Zone {
	if spec == nil {
		panic(ErrSpecRequired)
	}
	return z.delegate.Fork(z, spec)
}

// Wrap captures this zone into the returned callback: every later invocation
// re-enters the zone via RunGuarded. The callback is rewritten once, up
// front, through the onIntercept chain.
func (z *Zone) Wrap(callback Callback, source string) Callback {
	if callback == nil {
		panic(ErrCallbackNotDefined)
	}
	intercepted := z.delegate.Intercept(z, callback, source)
	return func(args ...any) any {
		return z.runGuarded(intercepted, args, source)
	}
}

// Run executes callback synchronously inside this zone and returns its
// result. Errors (panics) propagate unchanged; the zone frame pushed on entry
// is popped on every exit path.
func (z *Zone) Run(callback Callback, args ...any) any {
	return z.run(callback, args, "")
}

// RunWithSource is Run with an explicit source string for the onInvoke chain.
func (z *Zone) RunWithSource(source string, callback Callback, args ...any) any {
	return z.run(callback, args, source)
}

func (z *Zone) run(callback Callback, args []any, source string) any {
	e := z.engine
	e.pushFrame(z)
	defer e.popFrame()
	return z.delegate.Invoke(z, callback, args, source)
}

// RunGuarded is Run with error capture: a panic from the callback is routed
// through the handleError chain, which decides whether it propagates
// (true) or is suppressed (false, returning nil).
func (z *Zone) RunGuarded(callback Callback, args ...any) any {
	return z.runGuarded(callback, args, "")
}

// RunGuardedWithSource is RunGuarded with an explicit source string.
func (z *Zone) RunGuardedWithSource(source string, callback Callback, args ...any) any {
	return z.runGuarded(callback, args, source)
}

func (z *Zone) runGuarded(callback Callback, args []any, source string) (result any) {
	e := z.engine
	e.pushFrame(z)
	defer e.popFrame()
	defer func() {
		if r := recover(); r != nil {
			if z.delegate.HandleError(z, toError(r)) {
				panic(r)
			}
			result = nil
		}
	}()
	return z.delegate.Invoke(z, callback, args, source)
}

// ScheduleTask transitions the task through scheduling and installs it with
// the host via the onScheduleTask chain. The task must be unowned, owned by
// this zone, or owned by a zone that is not an ancestor of this one;
// scheduling a task into a descendant of its owning zone is fatal.
func (z *Zone) ScheduleTask(task *Task) *Task {
	if task.zone != nil && task.zone != z {
		// Walking up from here, finding the owning zone as a proper ancestor
		// means this zone is inside the owner's subtree: rescheduling may
		// only hoist a task towards the root, never push it deeper.
		for newZone := z; newZone != nil; newZone = newZone.parent {
			if newZone == task.zone {
				panic(&RescheduleError{Target: z, Owner: task.zone})
			}
		}
	}
	task.transitionTo(Scheduling, NotScheduled)
	task.zoneDelegates = nil
	task.delegatesEpoch++
	epoch := task.delegatesEpoch
	task.zone = z

	var returned *Task
	func() {
		defer func() {
			if r := recover(); r != nil {
				// The error may come from a reschedule, so the source state
				// may already be notScheduled.
				task.transitionTo(Unknown, Scheduling, NotScheduled)
				z.delegate.HandleError(z, toError(r))
				panic(r)
			}
		}()
		returned = z.delegate.ScheduleTask(z, task)
	}()

	// Counters apply only when the hook kept the same task object and did not
	// internally reschedule it (which installs a fresh delegate list).
	if returned == task && task.delegatesEpoch == epoch {
		z.updateTaskCount(task, 1)
	}
	if returned.state == Scheduling {
		returned.transitionTo(Scheduled, Scheduling)
	}
	return returned
}

// ScheduleMicroTask constructs a microtask and schedules it in this zone.
// Without a custom schedule function the task lands on the engine's
// microtask queue.
func (z *Zone) ScheduleMicroTask(source string, callback Callback, data *TaskData, customSchedule ScheduleFunc) *Task {
	return z.ScheduleTask(newTask(MicroTask, source, callback, data, customSchedule, nil))
}

// ScheduleMacroTask constructs a macrotask and schedules it in this zone.
func (z *Zone) ScheduleMacroTask(source string, callback Callback, data *TaskData, customSchedule ScheduleFunc, customCancel CancelFunc) *Task {
	return z.ScheduleTask(newTask(MacroTask, source, callback, data, customSchedule, customCancel))
}

// ScheduleEventTask constructs an event task and schedules it in this zone.
func (z *Zone) ScheduleEventTask(source string, callback Callback, data *TaskData, customSchedule ScheduleFunc, customCancel CancelFunc) *Task {
	return z.ScheduleTask(newTask(EventTask, source, callback, data, customSchedule, customCancel))
}

// RunTask executes a scheduled task in this zone, which must be the task's
// zone of creation. The current task and zone frame are swapped in for the
// duration and restored on every exit path; when the run leaves a one-shot
// task complete, its counters are released.
func (z *Zone) RunTask(task *Task, args ...any) any {
	if task.zone != z {
		panic(&WrongZoneError{Op: "run", Creation: task.zone, Execution: z})
	}
	// Event listeners race with cancellation: the host may dispatch after the
	// listener was already removed.
	if task.state == NotScheduled && task.Type == EventTask {
		return nil
	}
	reEntryGuard := task.state != Running
	if reEntryGuard {
		task.transitionTo(Running, Scheduled)
	}
	task.runCount++
	e := z.engine
	previousTask := e.currentTask
	e.currentTask = task
	e.pushFrame(z)
	defer func() {
		// If the task was cancelled mid-run or failed scheduling, leave its
		// state alone.
		if task.state != NotScheduled && task.state != Unknown {
			if task.Type == EventTask || (task.Data != nil && task.Data.IsPeriodic) {
				if reEntryGuard {
					task.transitionTo(Scheduled, Running)
				}
			} else {
				task.runCount = 0
				z.updateTaskCount(task, -1)
				if reEntryGuard {
					task.transitionTo(NotScheduled, Running, NotScheduled)
				}
			}
		}
		e.popFrame()
		e.currentTask = previousTask
	}()
	// A one-shot timer cannot be cancelled once it has started running.
	if task.Type == MacroTask && (task.Data == nil || !task.Data.IsPeriodic) {
		task.CancelFn = nil
	}
	var result any
	func() {
		defer func() {
			if r := recover(); r != nil {
				if z.delegate.HandleError(z, toError(r)) {
					panic(r)
				}
			}
		}()
		result = z.delegate.InvokeTask(z, task, args)
	}()
	return result
}

// CancelTask revokes a scheduled or running task, which must belong to this
// zone. On return the task is notScheduled with a zero run count and its
// counters released; cancellation is synchronous and effective.
func (z *Zone) CancelTask(task *Task) any {
	if task.zone != z {
		panic(&WrongZoneError{Op: "cancelled", Creation: task.zone, Execution: z})
	}
	task.transitionTo(Canceling, Scheduled, Running)
	var value any
	func() {
		defer func() {
			if r := recover(); r != nil {
				task.transitionTo(Unknown, Canceling)
				z.delegate.HandleError(z, toError(r))
				panic(r)
			}
		}()
		value = z.delegate.CancelTask(z, task)
	}()
	z.updateTaskCount(task, -1)
	task.transitionTo(NotScheduled, Canceling)
	task.runCount = 0
	return value
}

// updateTaskCount fans a counter delta out to every delegate registered on
// the task. A decrement releases the task's delegate list.
func (z *Zone) updateTaskCount(task *Task, count int64) {
	delegates := task.zoneDelegates
	if count == -1 {
		task.zoneDelegates = nil
	}
	for _, d := range delegates {
		d.updateTaskCount(task.Type, count)
	}
}

// String implements fmt.Stringer.
func (z *Zone) String() string {
	return z.name
}
