// Structured logging for the zone engine.
//
// Logging is an infrastructure cross-cutting concern: the engine accepts a
// logiface logger via WithLogger and reports lifecycle events through it.
// Every call site is nil-safe, so the default (no logger) costs a nil check
// per event and nothing else.
package zone

import (
	"github.com/joeycumines/logiface"
)

// zoneLogger wraps the engine's optional logiface logger with the small set
// of events the core reports. All methods tolerate a nil logger.
type zoneLogger struct {
	logger *logiface.Logger[logiface.Event]
}

func (l zoneLogger) engineInstalled() {
	l.logger.Debug().
		Str("category", "engine").
		Log("zone engine installed on host global")
}

func (l zoneLogger) patchLoaded(name string) {
	l.logger.Debug().
		Str("category", "patch").
		Str("patch", name).
		Log("patch loaded")
}

func (l zoneLogger) patchSkipped(name string) {
	l.logger.Debug().
		Str("category", "patch").
		Str("patch", name).
		Log("patch disabled by host flag")
}

func (l zoneLogger) microtaskScheduled(task *Task, queued int) {
	l.logger.Trace().
		Str("category", "microtask").
		Str("source", task.Source).
		Int("queued", queued).
		Log("microtask scheduled")
}

func (l zoneLogger) microtaskDrainDone() {
	l.logger.Trace().
		Str("category", "microtask").
		Log("microtask queue drained")
}

func (l zoneLogger) unhandledError(err error) {
	l.logger.Err().
		Str("category", "task").
		Err(err).
		Log("unhandled error in microtask")
}
