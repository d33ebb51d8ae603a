package zonespecs

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	zone "github.com/attax1994/zone.js"
)

// longStackTraceKey is where the captured chain lives in a task's data bag.
const longStackTraceKey = "longStackTrace"

// stackCapture is one link in a long stack trace chain: the stack at a
// scheduling edge plus when it was captured.
type stackCapture struct {
	at    time.Time
	stack string
	prev  *stackCapture
}

// LongStackTrace chains stack traces across asynchronous boundaries: every
// task scheduling captures the current stack and links it to the chain of the
// task that scheduled it. When an error reaches the handleError hook, the
// rendered chain is attached so the log shows the full causal history, not
// just the frame the host happened to be in.
type LongStackTrace struct {
	// Limit caps how many async hops are rendered; 0 means DefaultLimit.
	Limit int
}

// DefaultLimit is the default number of async hops rendered.
const DefaultLimit = 10

// LongStackTraceError decorates an error with its async causal chain.
type LongStackTraceError struct {
	Err   error
	Trace string
}

// Error implements the error interface.
func (e *LongStackTraceError) Error() string {
	return e.Err.Error() + "\n" + e.Trace
}

// Unwrap returns the original error.
func (e *LongStackTraceError) Unwrap() error {
	return e.Err
}

// Spec returns the zone spec implementing long stack traces.
func (l *LongStackTrace) Spec() *zone.Spec {
	return &zone.Spec{
		Name: "long-stack-trace",
		OnScheduleTask: func(parent *zone.Delegate, _, target *zone.Zone, task *zone.Task) *zone.Task {
			capture := &stackCapture{
				at:    time.Now(),
				stack: callerStack(),
				prev:  l.currentChain(target),
			}
			if task.Data == nil {
				task.Data = &zone.TaskData{}
			}
			if task.Data.Values == nil {
				task.Data.Values = make(map[string]any)
			}
			task.Data.Values[longStackTraceKey] = capture
			return parent.ScheduleTask(target, task)
		},
		OnHandleError: func(parent *zone.Delegate, _, target *zone.Zone, err error) bool {
			if chain := l.currentChain(target); chain != nil {
				err = &LongStackTraceError{Err: err, Trace: l.render(chain)}
			}
			return parent.HandleError(target, err)
		},
	}
}

// currentChain returns the chain of the task currently executing in the
// zone's universe, if it carries one.
func (l *LongStackTrace) currentChain(z *zone.Zone) *stackCapture {
	task := z.Engine().CurrentTask()
	if task == nil || task.Data == nil || task.Data.Values == nil {
		return nil
	}
	capture, _ := task.Data.Values[longStackTraceKey].(*stackCapture)
	return capture
}

// render flattens a chain into the familiar elapsed-time separated form.
func (l *LongStackTrace) render(chain *stackCapture) string {
	limit := l.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	var b strings.Builder
	now := time.Now()
	for hop := 0; chain != nil && hop < limit; hop++ {
		if hop > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "-------------   Elapsed: %v\n", now.Sub(chain.at).Round(time.Millisecond))
		b.WriteString(chain.stack)
		chain = chain.prev
	}
	return b.String()
}

// callerStack captures the current goroutine's stack, trimmed of the capture
// machinery itself.
func callerStack() string {
	buf := make([]byte, 16*1024)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])
	// Drop the header line and the frames for this package's capture path;
	// the interesting frames are the scheduling call site and below.
	lines := strings.Split(stack, "\n")
	if len(lines) > 5 {
		lines = append(lines[:1], lines[5:]...)
	}
	return strings.Join(lines, "\n")
}
