// Package timers is the host-timer patch: it teaches a zone engine to
// schedule macrotasks on a hostloop.Loop and registers the loop's deferred
// queue as the engine's microtask drain trigger.
//
// The patch is loaded through the standard extension point and is therefore
// subject to the "__Zone_disable_timers" host-global flag. Loading stashes
// the loop's original scheduling primitives under minted symbol keys, where
// they stay reachable even if the public names are later replaced.
package timers

import (
	"time"

	zone "github.com/attax1994/zone.js"
	"github.com/attax1994/zone.js/hostloop"
)

// PatchName is the name the patch registers under.
const PatchName = "timers"

// Patch is the handle stored in the engine's patches registry.
type Patch struct {
	loop *hostloop.Loop
}

// Loop returns the host loop backing the patch.
func (p *Patch) Loop() *hostloop.Loop {
	return p.loop
}

// Install loads the timers patch onto the engine, backed by loop. The loop's
// original primitives are stashed on the host global under minted symbols and
// its deferred queue becomes the native microtask trigger.
func Install(e *zone.Engine, loop *hostloop.Loop) {
	e.LoadPatch(PatchName, func(g *zone.Global, _ *zone.Engine, api *zone.API) any {
		g.Set(zone.Symbol("setTimeout"), func(delay time.Duration, fn func()) {
			loop.ScheduleTimer(delay, fn)
		})
		g.Set(zone.Symbol("clearTimeout"), func(id hostloop.TimerID) {
			_ = loop.CancelTimer(id)
		})
		api.SetNativeDeferred(loop.Defer)
		return &Patch{loop: loop}
	})
}

// SetTimeout schedules callback as a one-shot macrotask in z, fired by the
// host loop after delay. The returned task can be cancelled with
// [ClearTimeout] until it starts running.
func SetTimeout(z *zone.Zone, loop *hostloop.Loop, delay time.Duration, callback zone.Callback) *zone.Task {
	data := &zone.TaskData{Delay: delay}
	return z.ScheduleMacroTask("setTimeout", callback, data,
		func(t *zone.Task) {
			t.Data.HandleID = loop.ScheduleTimer(delay, func() {
				t.Invoke()
			})
		},
		cancelTimerTask(loop),
	)
}

// SetInterval schedules callback as a periodic macrotask in z, re-armed by
// its own invocation thunk after every run until cancelled.
func SetInterval(z *zone.Zone, loop *hostloop.Loop, delay time.Duration, callback zone.Callback) *zone.Task {
	data := &zone.TaskData{Delay: delay, IsPeriodic: true}
	return z.ScheduleMacroTask("setInterval", callback, data,
		func(t *zone.Task) {
			var arm func()
			arm = func() {
				t.Data.HandleID = loop.ScheduleTimer(delay, func() {
					t.Invoke()
					// Re-arm unless the run cancelled the task.
					if t.State() == zone.Scheduled {
						arm()
					}
				})
			}
			arm()
		},
		cancelTimerTask(loop),
	)
}

// ClearTimeout cancels a task created by SetTimeout or SetInterval.
func ClearTimeout(t *zone.Task) {
	t.Zone().CancelTask(t)
}

func cancelTimerTask(loop *hostloop.Loop) zone.CancelFunc {
	return func(t *zone.Task) {
		if id, ok := t.Data.HandleID.(hostloop.TimerID); ok {
			_ = loop.CancelTimer(id)
		}
	}
}
