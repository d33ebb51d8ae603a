package zone

import "time"

// scheduleMicroTask enqueues a task on the engine's microtask queue. If
// nothing will drain the queue — no task frame is active and the queue was
// empty — the drain is bootstrapped through the native deferred primitive.
// At most one drain is armed at a time: arming happens only on the
// empty-queue, zero-depth path.
func (e *Engine) scheduleMicroTask(task *Task) {
	if e.nestedTaskFrames == 0 && len(e.microTaskQueue) == 0 {
		e.nativeScheduleMicroTask(e.drainMicroTaskQueue)
	}
	if task != nil {
		e.microTaskQueue = append(e.microTaskQueue, task)
		e.logger.microtaskScheduled(task, len(e.microTaskQueue))
	}
}

// nativeScheduleMicroTask defers fn to the trailing edge of the current host
// turn. It prefers the host-registered deferred primitive, then an original
// zero-delay timer stashed under the setTimeout symbol, then a zero-delay
// runtime timer as a last resort.
//
// The last resort fires on a separate goroutine; hosts that care about the
// single-threaded discipline must register a deferred primitive via
// [API.SetNativeDeferred].
func (e *Engine) nativeScheduleMicroTask(fn func()) {
	if e.nativeDeferred != nil {
		e.nativeDeferred(fn)
		return
	}
	if v, ok := e.global.Get(Symbol("setTimeout")); ok {
		if setTimeout, ok := v.(func(time.Duration, func())); ok {
			setTimeout(0, fn)
			return
		}
	}
	time.AfterFunc(0, fn)
}

// drainMicroTaskQueue runs every queued microtask in insertion order,
// including those enqueued while draining. Errors never interrupt the drain;
// they are dispatched to the unhandled-error hook. Reentrant calls are
// no-ops.
func (e *Engine) drainMicroTaskQueue() {
	if e.drainingMicrotasks {
		return
	}
	e.drainingMicrotasks = true
	for len(e.microTaskQueue) > 0 {
		// Swap the queue out so microtasks enqueued during the drain land on
		// a fresh list and run in a later round, preserving FIFO order.
		queue := e.microTaskQueue
		e.microTaskQueue = nil
		for _, task := range queue {
			e.runMicroTask(task)
		}
	}
	e.logger.microtaskDrainDone()
	e.api.MicrotaskDrainDone()
	e.drainingMicrotasks = false
}

func (e *Engine) runMicroTask(task *Task) {
	defer func() {
		if r := recover(); r != nil {
			e.api.OnUnhandledError(toError(r))
		}
	}()
	task.zone.RunTask(task)
}
