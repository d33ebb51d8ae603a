package zone

// delegatingSpec forwards the task hooks through the delegate chain without
// adding behavior. It is installed in place of unset task hooks whenever the
// owning spec or an ancestor registers OnHasTask, so that every task
// scheduled in the subtree reaches the counting delegate. This is the only
// place where short-circuit dispatch yields to correctness.
var delegatingSpec = &Spec{
	Name: "",
	OnHasTask: func(parent *Delegate, _, target *Zone, state HasTaskState) {
		parent.HasTask(target, state)
	},
	OnScheduleTask: func(parent *Delegate, _, target *Zone, task *Task) *Task {
		return parent.ScheduleTask(target, task)
	},
	OnInvokeTask: func(parent *Delegate, _, target *Zone, task *Task, args []any) any {
		return parent.InvokeTask(target, task, args)
	},
	OnCancelTask: func(parent *Delegate, _, target *Zone, task *Task) any {
		return parent.CancelTask(target, task)
	},
}

// taskCounts tracks outstanding tasks per kind for one delegate.
type taskCounts struct {
	microTask int64
	macroTask int64
	eventTask int64
}

func (c *taskCounts) get(taskType TaskType) int64 {
	switch taskType {
	case MicroTask:
		return c.microTask
	case MacroTask:
		return c.macroTask
	default:
		return c.eventTask
	}
}

func (c *taskCounts) set(taskType TaskType, count int64) {
	switch taskType {
	case MicroTask:
		c.microTask = count
	case MacroTask:
		c.macroTask = count
	default:
		c.eventTask = count
	}
}

// Delegate performs hook dispatch on behalf of its owning zone.
//
// For each hook it caches, at construction, the nearest ancestor spec that
// implements the hook together with the delegate and zone to hand that spec.
// Dispatch is therefore O(1) regardless of tree depth: either the cached spec
// is invoked, or the documented default action runs directly.
type Delegate struct {
	zone *Zone

	forkSpec     *Spec
	forkDelegate *Delegate
	forkZone     *Zone

	interceptSpec     *Spec
	interceptDelegate *Delegate
	interceptZone     *Zone

	invokeSpec     *Spec
	invokeDelegate *Delegate
	invokeZone     *Zone

	handleErrorSpec     *Spec
	handleErrorDelegate *Delegate
	handleErrorZone     *Zone

	scheduleTaskSpec     *Spec
	scheduleTaskDelegate *Delegate
	scheduleTaskZone     *Zone

	invokeTaskSpec     *Spec
	invokeTaskDelegate *Delegate
	invokeTaskZone     *Zone

	cancelTaskSpec     *Spec
	cancelTaskDelegate *Delegate
	cancelTaskZone     *Zone

	hasTaskSpec     *Spec
	hasTaskDelegate *Delegate
	hasTaskZone     *Zone

	// hasTaskOwner is the delegate registered on tasks for ref-counting when
	// any zone in the chain wants hasTask notifications.
	hasTaskOwner *Delegate

	counts taskCounts
}

// newDelegate resolves the hook triples for a zone. Only the root zone has a
// nil spec; a nil spec leaves every triple empty so the defaults apply.
func newDelegate(zone *Zone, parentDelegate *Delegate, spec *Spec) *Delegate {
	d := &Delegate{zone: zone}

	if spec != nil {
		if spec.OnFork != nil {
			d.forkSpec, d.forkDelegate, d.forkZone = spec, parentDelegate, zone
		} else {
			d.forkSpec, d.forkDelegate, d.forkZone = parentDelegate.forkSpec, parentDelegate.forkDelegate, parentDelegate.forkZone
		}
		if spec.OnIntercept != nil {
			d.interceptSpec, d.interceptDelegate, d.interceptZone = spec, parentDelegate, zone
		} else {
			d.interceptSpec, d.interceptDelegate, d.interceptZone = parentDelegate.interceptSpec, parentDelegate.interceptDelegate, parentDelegate.interceptZone
		}
		if spec.OnInvoke != nil {
			d.invokeSpec, d.invokeDelegate, d.invokeZone = spec, parentDelegate, zone
		} else {
			d.invokeSpec, d.invokeDelegate, d.invokeZone = parentDelegate.invokeSpec, parentDelegate.invokeDelegate, parentDelegate.invokeZone
		}
		if spec.OnHandleError != nil {
			d.handleErrorSpec, d.handleErrorDelegate, d.handleErrorZone = spec, parentDelegate, zone
		} else {
			d.handleErrorSpec, d.handleErrorDelegate, d.handleErrorZone = parentDelegate.handleErrorSpec, parentDelegate.handleErrorDelegate, parentDelegate.handleErrorZone
		}
		if spec.OnScheduleTask != nil {
			d.scheduleTaskSpec, d.scheduleTaskDelegate, d.scheduleTaskZone = spec, parentDelegate, zone
		} else {
			d.scheduleTaskSpec, d.scheduleTaskDelegate, d.scheduleTaskZone = parentDelegate.scheduleTaskSpec, parentDelegate.scheduleTaskDelegate, parentDelegate.scheduleTaskZone
		}
		if spec.OnInvokeTask != nil {
			d.invokeTaskSpec, d.invokeTaskDelegate, d.invokeTaskZone = spec, parentDelegate, zone
		} else {
			d.invokeTaskSpec, d.invokeTaskDelegate, d.invokeTaskZone = parentDelegate.invokeTaskSpec, parentDelegate.invokeTaskDelegate, parentDelegate.invokeTaskZone
		}
		if spec.OnCancelTask != nil {
			d.cancelTaskSpec, d.cancelTaskDelegate, d.cancelTaskZone = spec, parentDelegate, zone
		} else {
			d.cancelTaskSpec, d.cancelTaskDelegate, d.cancelTaskZone = parentDelegate.cancelTaskSpec, parentDelegate.cancelTaskDelegate, parentDelegate.cancelTaskZone
		}
	}

	// Ref-counting amplification: if this spec or any ancestor wants hasTask
	// notifications, force the three task hooks to route through the
	// delegate chain so every task transition in the subtree is observed.
	specHasTask := spec != nil && spec.OnHasTask != nil
	parentHasTask := parentDelegate != nil && parentDelegate.hasTaskSpec != nil
	if specHasTask || parentHasTask {
		if specHasTask {
			d.hasTaskSpec = spec
		} else {
			d.hasTaskSpec = delegatingSpec
		}
		d.hasTaskDelegate = parentDelegate
		d.hasTaskZone = zone
		d.hasTaskOwner = d
		if spec.OnScheduleTask == nil {
			d.scheduleTaskSpec = delegatingSpec
			d.scheduleTaskDelegate = parentDelegate
			d.scheduleTaskZone = zone
		}
		if spec.OnInvokeTask == nil {
			d.invokeTaskSpec = delegatingSpec
			d.invokeTaskDelegate = parentDelegate
			d.invokeTaskZone = zone
		}
		if spec.OnCancelTask == nil {
			d.cancelTaskSpec = delegatingSpec
			d.cancelTaskDelegate = parentDelegate
			d.cancelTaskZone = zone
		}
	}

	return d
}

// Zone returns the zone this delegate dispatches for.
func (d *Delegate) Zone() *Zone {
	return d.zone
}

// Fork creates a child of target, routing through the onFork chain.
func (d *Delegate) Fork(target *Zone, spec *Spec) *Zone {
	if d.forkSpec != nil {
		return d.forkSpec.OnFork(d.forkDelegate, d.forkZone, target, spec)
	}
	return newZone(target.engine, target, spec)
}

// Intercept rewrites a callback captured by Zone.Wrap, routing through the
// onIntercept chain. The default returns the callback unchanged.
func (d *Delegate) Intercept(target *Zone, callback Callback, source string) Callback {
	if d.interceptSpec != nil {
		return d.interceptSpec.OnIntercept(d.interceptDelegate, d.interceptZone, target, callback, source)
	}
	return callback
}

// Invoke executes a callback, routing through the onInvoke chain. The default
// applies the callback directly.
func (d *Delegate) Invoke(target *Zone, callback Callback, args []any, source string) any {
	if d.invokeSpec != nil {
		return d.invokeSpec.OnInvoke(d.invokeDelegate, d.invokeZone, target, callback, args, source)
	}
	return callback(args...)
}

// HandleError routes a caught error through the onHandleError chain. The
// returned bool decides propagation: true rethrows, false suppresses. The
// default propagates.
func (d *Delegate) HandleError(target *Zone, err error) bool {
	if d.handleErrorSpec != nil {
		return d.handleErrorSpec.OnHandleError(d.handleErrorDelegate, d.handleErrorZone, target, err)
	}
	return true
}

// ScheduleTask installs a task with the host, routing through the
// onScheduleTask chain. Absent any hook, the task's own schedule function
// runs; microtasks without one land on the engine's microtask queue, and
// anything else is a fatal error.
func (d *Delegate) ScheduleTask(target *Zone, task *Task) *Task {
	returnTask := task
	if d.scheduleTaskSpec != nil {
		if d.hasTaskSpec != nil {
			returnTask.zoneDelegates = append(returnTask.zoneDelegates, d.hasTaskOwner)
		}
		returnTask = d.scheduleTaskSpec.OnScheduleTask(d.scheduleTaskDelegate, d.scheduleTaskZone, target, task)
		if returnTask == nil {
			returnTask = task
		}
	} else {
		switch {
		case task.ScheduleFn != nil:
			task.ScheduleFn(task)
		case task.Type == MicroTask:
			d.zone.engine.scheduleMicroTask(task)
		default:
			panic(ErrMissingScheduleFn)
		}
	}
	return returnTask
}

// InvokeTask executes a task's callback, routing through the onInvokeTask
// chain.
func (d *Delegate) InvokeTask(target *Zone, task *Task, args []any) any {
	if d.invokeTaskSpec != nil {
		return d.invokeTaskSpec.OnInvokeTask(d.invokeTaskDelegate, d.invokeTaskZone, target, task, args)
	}
	return task.Callback(args...)
}

// CancelTask revokes a task from the host, routing through the onCancelTask
// chain. Absent any hook, a task without a cancel function is a fatal error.
func (d *Delegate) CancelTask(target *Zone, task *Task) any {
	if d.cancelTaskSpec != nil {
		return d.cancelTaskSpec.OnCancelTask(d.cancelTaskDelegate, d.cancelTaskZone, target, task)
	}
	if task.CancelFn == nil {
		panic(ErrNotCancelable)
	}
	task.CancelFn(task)
	return nil
}

// HasTask delivers a counter snapshot to the onHasTask chain. Errors raised
// by the hook are routed through HandleError rather than propagating into the
// counter updater.
func (d *Delegate) HasTask(target *Zone, state HasTaskState) {
	defer func() {
		if r := recover(); r != nil {
			d.HandleError(target, toError(r))
		}
	}()
	if d.hasTaskSpec != nil {
		d.hasTaskSpec.OnHasTask(d.hasTaskDelegate, d.hasTaskZone, target, state)
	}
}

// updateTaskCount adjusts the per-kind counter and fires HasTask on every
// empty/non-empty boundary crossing. A counter below zero is a fatal
// invariant violation.
func (d *Delegate) updateTaskCount(taskType TaskType, count int64) {
	prev := d.counts.get(taskType)
	next := prev + count
	d.counts.set(taskType, next)
	if next < 0 {
		panic(ErrNegativeTaskCount)
	}
	if prev == 0 || next == 0 {
		d.HasTask(d.zone, HasTaskState{
			MicroTask: d.counts.microTask > 0,
			MacroTask: d.counts.macroTask > 0,
			EventTask: d.counts.eventTask > 0,
			Change:    taskType,
		})
	}
}
