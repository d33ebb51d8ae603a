// Package zone provides a hierarchical execution-context system for
// single-goroutine, event-loop-driven hosts: a tree of named contexts
// ("zones") that persist across asynchronous boundaries, intercept the
// scheduling, invocation and cancellation of deferred work, and expose
// lifecycle hooks so ambient concerns (error capture, task tracking, test
// synchronization) can be layered on without touching business code.
//
// # Architecture
//
// A [Zone] is an immutable tree node carrying a name, a property map, and a
// [Delegate]. The delegate caches, for each of eight hook points, the nearest
// ancestor [Spec] that implements the hook, making dispatch O(1) regardless
// of tree depth. An [Engine] owns the process-wide mutable state of one zone
// universe: the current-zone stack, the current [Task], the nested-task-frame
// counter, and the microtask queue. The package-level API (e.g. [Current],
// [Root], [LoadPatch]) operates on a default engine constructed at package
// initialization.
//
// Deferred work is modeled as first-class [Task] handles in three kinds —
// microtasks, macrotasks and event tasks — moving through a strict six-state
// lifecycle. Task scheduling and cancellation are reference-counted per
// delegate, and the OnHasTask hook observes every empty/non-empty transition
// of a zone subtree's task set.
//
// # Execution Model
//
// The core is single-threaded and cooperative: an engine must be driven from
// one goroutine, and nothing in the core blocks. Microtasks are drained in
// strict FIFO order on the trailing edge of every outermost task invocation,
// before the host regains control. Outside any task frame, the drain is
// bootstrapped through a host-registered deferred primitive (see
// [API.SetNativeDeferred]) or a zero-delay timer.
//
// # Host Integration
//
// Host APIs enter the system exclusively through the patch extension point,
// [Engine.LoadPatch]: a patch stashes original host primitives under minted
// symbol keys (see [Symbol]) on the host [Global] and wires task schedule and
// cancel functions to them. The hostloop and patches/timers packages in this
// module provide a minimal cooperative host loop and the matching timer
// patch.
//
// # Usage
//
//	z := zone.Root().Fork(&zone.Spec{
//	    Name: "request",
//	    Properties: map[string]any{"id": 42},
//	    OnHandleError: func(parent *zone.Delegate, current, target *zone.Zone, err error) bool {
//	        log.Printf("request %v failed: %v", target.Get("id"), err)
//	        return false
//	    },
//	})
//
//	z.Run(func(args ...any) any {
//	    // zone.Current() == z anywhere below this frame, including inside
//	    // tasks scheduled here and their microtasks.
//	    return nil
//	})
//
// # Error Types
//
// Invariant violations panic with typed errors: [TaskStateError] for illegal
// lifecycle transitions, [RescheduleError] for rescheduling into a subtree,
// [WrongZoneError] for running or cancelling a task outside its zone, and
// sentinel errors such as [ErrMissingScheduleFn] and [ErrNotCancelable].
// Panics recovered from user code travel the handleError chain as errors,
// wrapped in [PanicError] when the panic value is not an error.
package zone
