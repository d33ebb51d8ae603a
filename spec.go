package zone

// Callback is a unit of user work executed within a zone.
type Callback func(args ...any) any

// HasTaskState is the counter snapshot delivered to OnHasTask whenever a
// zone's task set of some kind becomes empty or non-empty.
type HasTaskState struct {
	// MicroTask, MacroTask and EventTask report whether at least one task of
	// the respective kind is outstanding in the zone's subtree.
	MicroTask bool
	MacroTask bool
	EventTask bool

	// Change names the task kind whose counter just crossed the 0/1 boundary.
	Change TaskType
}

// Spec configures a zone created by [Zone.Fork]. It is consumed once during
// delegate construction and never mutated by the core afterwards.
//
// Every hook is optional. A hook receives the parent delegate (to continue
// the chain), the zone whose spec defines the hook (current), and the zone
// the operation was originally invoked on (target).
type Spec struct {
	// Name identifies the zone for debugging; "unnamed" when left empty.
	Name string

	// Properties seeds the zone's property map, resolved hierarchically by
	// Zone.Get and Zone.GetZoneWith.
	Properties map[string]any

	// OnFork intercepts the creation of child zones.
	OnFork func(parent *Delegate, current, target *Zone, spec *Spec) *Zone

	// OnIntercept wraps callbacks captured by Zone.Wrap.
	OnIntercept func(parent *Delegate, current, target *Zone, callback Callback, source string) Callback

	// OnInvoke intercepts synchronous callback invocation.
	OnInvoke func(parent *Delegate, current, target *Zone, callback Callback, args []any, source string) any

	// OnHandleError intercepts errors caught by RunGuarded, RunTask, and the
	// scheduling/cancellation paths. Returning true propagates the error,
	// false suppresses it.
	OnHandleError func(parent *Delegate, current, target *Zone, err error) bool

	// OnScheduleTask intercepts task scheduling. The returned task replaces
	// the scheduled one; returning nil keeps the original.
	OnScheduleTask func(parent *Delegate, current, target *Zone, task *Task) *Task

	// OnInvokeTask intercepts task execution.
	OnInvokeTask func(parent *Delegate, current, target *Zone, task *Task, args []any) any

	// OnCancelTask intercepts task cancellation.
	OnCancelTask func(parent *Delegate, current, target *Zone, task *Task) any

	// OnHasTask observes empty/non-empty transitions of the task counters
	// for the zone's subtree. Registering it disables task-hook
	// short-circuiting below this zone.
	OnHasTask func(parent *Delegate, current, target *Zone, state HasTaskState)
}
