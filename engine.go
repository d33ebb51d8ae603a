package zone

// Frame is an element of the singly-linked current-zone stack. The bottom
// frame always references the root zone and has a nil Parent.
type Frame struct {
	Parent *Frame
	Zone   *Zone
}

// Engine owns all mutable state for one zone universe: the zone tree root,
// the current-zone stack, the current task, the nested-task-frame counter,
// the microtask queue, and the patches registry.
//
// An engine must be driven from a single goroutine (the host loop goroutine);
// the core performs no locking. This mirrors the cooperative single-threaded
// model of the host runtimes zones were designed for.
//
// The package-level API (Current, Root, LoadPatch, ...) operates on the
// default engine constructed at package initialization. Additional engines
// may be created with NewEngine for embedding and testing; every Zone carries
// its engine, so instance methods never consult ambient state.
type Engine struct {
	root         *Zone
	currentFrame *Frame
	currentTask  *Task

	// nestedTaskFrames detects outermost task boundaries: the microtask
	// queue drains when the counter unwinds through one.
	nestedTaskFrames int

	microTaskQueue     []*Task
	drainingMicrotasks bool

	// nativeDeferred is the host-registered deferred-resolution primitive
	// used to bootstrap the microtask drain outside any task frame.
	nativeDeferred func(func())

	patches map[string]any
	global  *Global
	api     *API

	logger zoneLogger
}

// defaultEngine backs the package-level API. Constructed eagerly so the
// public surface is usable from init time onward.
var defaultEngine = mustNewEngine()

func mustNewEngine() *Engine {
	e, err := NewEngine()
	if err != nil {
		panic(err)
	}
	return e
}

// NewEngine constructs an isolated zone universe: a fresh root zone, current
// stack, microtask queue, and host global. Installing the engine onto a host
// global that already carries one is fatal.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg, err := resolveEngineOptions(opts)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		patches: make(map[string]any),
		global:  cfg.global,
		logger:  zoneLogger{logger: cfg.logger},
	}
	if e.global == nil {
		e.global = NewGlobal()
	}
	e.root = newZone(e, nil, nil)
	e.currentFrame = &Frame{Zone: e.root}
	e.api = newAPI(e)
	e.install()
	return e, nil
}

// install publishes the engine on its host global under the Zone symbol.
// Finding one already published means two cores are fighting over the same
// host, which is fatal.
func (e *Engine) install() {
	key := Symbol("Zone")
	if e.global.Has(key) {
		panic(ErrAlreadyLoaded)
	}
	e.global.Set(key, e)
	e.logger.engineInstalled()
}

// Default returns the engine backing the package-level API.
func Default() *Engine {
	return defaultEngine
}

// Root returns the engine's root zone.
func (e *Engine) Root() *Zone {
	return e.root
}

// Current returns the zone of the top stack frame.
func (e *Engine) Current() *Zone {
	return e.currentFrame.Zone
}

// CurrentTask returns the task being executed, or nil outside any task.
func (e *Engine) CurrentTask() *Task {
	return e.currentTask
}

// Global returns the engine's host global.
func (e *Engine) Global() *Global {
	return e.global
}

// API returns the private API handed to patch modules.
func (e *Engine) API() *API {
	return e.api
}

func (e *Engine) pushFrame(z *Zone) {
	e.currentFrame = &Frame{Parent: e.currentFrame, Zone: z}
}

func (e *Engine) popFrame() {
	e.currentFrame = e.currentFrame.Parent
}

// Current returns the zone of the default engine's top stack frame.
func Current() *Zone {
	return defaultEngine.Current()
}

// CurrentTask returns the task the default engine is executing, or nil.
func CurrentTask() *Task {
	return defaultEngine.CurrentTask()
}

// Root returns the default engine's root zone.
func Root() *Zone {
	return defaultEngine.Root()
}
