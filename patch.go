package zone

import "fmt"

// disablePatchPrefix gates patch loading: a truthy host-global flag named
// "__Zone_disable_<name>" skips the patch silently.
const disablePatchPrefix = "__Zone_disable_"

// zoneAwarePromisePatch is the well-known patch name AssertZonePatched checks
// against the host global's Promise.
const zoneAwarePromisePatch = "ZoneAwarePromise"

// PatchFunc installs one host-API patch. It receives the host global, the
// engine, and the private API, and returns an arbitrary handle stored in the
// patches registry for later lookup.
type PatchFunc func(global *Global, engine *Engine, api *API) any

// LoadPatch runs a named patch module against this engine. Loading the same
// name twice is fatal; a truthy "__Zone_disable_<name>" host-global flag
// skips the patch silently.
func (e *Engine) LoadPatch(name string, fn PatchFunc) {
	if _, ok := e.patches[name]; ok {
		panic(fmt.Errorf("Already loaded patch: %s", name))
	}
	if e.global.Flag(disablePatchPrefix + name) {
		e.logger.patchSkipped(name)
		return
	}
	perfName := "Zone:" + name
	e.api.Mark(perfName)
	e.patches[name] = fn(e.global, e, e.api)
	e.api.Measure(perfName, perfName)
	e.logger.patchLoaded(name)
}

// Patch returns the handle a previously loaded patch stored, if any.
func (e *Engine) Patch(name string) (any, bool) {
	v, ok := e.patches[name]
	return v, ok
}

// AssertZonePatched verifies that the host global's Promise is still the one
// the ZoneAwarePromise patch registered. A mismatch means a Promise
// implementation was loaded after the patch and microtasks would bypass the
// zone, which is fatal.
func (e *Engine) AssertZonePatched() {
	promise, _ := e.global.Get("Promise")
	if promise != e.patches[zoneAwarePromisePatch] {
		panic(ErrPromiseOverwritten)
	}
}

// LoadPatch runs a named patch module against the default engine.
func LoadPatch(name string, fn PatchFunc) {
	defaultEngine.LoadPatch(name, fn)
}

// AssertZonePatched verifies the default engine's Promise patch is intact.
func AssertZonePatched() {
	defaultEngine.AssertZonePatched()
}

// API is the private surface handed to patch modules. The function-valued
// fields default to no-ops (or a minimal built-in behavior) and are
// overwritten by the patches that implement them.
type API struct {
	engine *Engine

	// OnUnhandledError receives errors from microtask execution that nothing
	// else will see. The built-in default reports through the engine logger
	// unless ShowUncaughtError is off.
	OnUnhandledError func(err error)

	// MicrotaskDrainDone fires after each complete drain of the microtask
	// queue, giving test synchronization layers a stable hook.
	MicrotaskDrainDone func()

	// ShowUncaughtError reports whether unhandled errors should surface,
	// consulting the ignoreConsoleErrorUncaughtError host flag.
	ShowUncaughtError func() bool

	// Mark and Measure bracket expensive bootstrap phases for profiling
	// layers; both default to no-ops.
	Mark    func(name string)
	Measure func(name, label string)

	// PatchEventTarget, PatchOnProperties, PatchMethod and BindArguments are
	// the utility hooks patch modules share with each other. All default to
	// no-ops here; the patches that need them install real implementations.
	PatchEventTarget  func(global *Global, api *API, targets ...any) bool
	PatchOnProperties func(target any, properties []string)
	PatchMethod       func(target any, name string, patchFn func(original any) any) any
	BindArguments     func(args []any, source string) []any
}

func newAPI(e *Engine) *API {
	a := &API{engine: e}
	a.ShowUncaughtError = func() bool {
		return !e.global.Flag(Symbol("ignoreConsoleErrorUncaughtError"))
	}
	a.OnUnhandledError = func(err error) {
		if a.ShowUncaughtError() {
			e.logger.unhandledError(err)
		}
	}
	a.MicrotaskDrainDone = func() {}
	a.Mark = func(string) {}
	a.Measure = func(string, string) {}
	a.PatchEventTarget = func(*Global, *API, ...any) bool { return false }
	a.PatchOnProperties = func(any, []string) {}
	a.PatchMethod = func(any, string, func(any) any) any { return nil }
	a.BindArguments = func(args []any, _ string) []any { return args }
	return a
}

// CurrentZoneFrame returns the top of the engine's current-zone stack.
func (a *API) CurrentZoneFrame() *Frame {
	return a.engine.currentFrame
}

// Symbol mints a namespaced host-global key; identical to the package-level
// Symbol.
func (a *API) Symbol(name string) string {
	return Symbol(name)
}

// ScheduleMicroTask enqueues a task on the engine's microtask queue, arming
// the drain trigger if nothing else will drain it.
func (a *API) ScheduleMicroTask(task *Task) {
	a.engine.scheduleMicroTask(task)
}

// SetNativeDeferred registers the host's deferred-resolution primitive used
// to bootstrap the microtask drain. Patches call this with a handle that is
// immune to later host-API patching, the analogue of stashing a native
// resolved promise.
func (a *API) SetNativeDeferred(fn func(func())) {
	a.engine.nativeDeferred = fn
}
