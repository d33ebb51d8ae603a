package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/joeycumines/logiface"
)

// demoEvent is a minimal logiface.Event implementation that collects fields
// for plain-text output.
type demoEvent struct {
	logiface.UnimplementedEvent
	level  logiface.Level
	msg    string
	fields map[string]any
}

func (e *demoEvent) Level() logiface.Level { return e.level }

func (e *demoEvent) AddField(key string, val any) {
	if key == "msg" {
		e.msg = fmt.Sprint(val)
		return
	}
	e.fields[key] = val
}

// newLogger builds a line-oriented structured logger writing to out, at the
// given level.
func newLogger(out io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	typed := logiface.New[*demoEvent](
		logiface.WithEventFactory[*demoEvent](logiface.NewEventFactoryFunc(func(level logiface.Level) *demoEvent {
			return &demoEvent{level: level, fields: make(map[string]any)}
		})),
		logiface.WithWriter[*demoEvent](logiface.NewWriterFunc(func(event *demoEvent) error {
			keys := make([]string, 0, len(event.fields))
			for k := range event.fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var b strings.Builder
			fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(event.level.String()), event.msg)
			for _, k := range keys {
				fmt.Fprintf(&b, " %s=%v", k, event.fields[k])
			}
			_, err := fmt.Fprintln(out, b.String())
			return err
		})),
		logiface.WithLevel[*demoEvent](level),
	)
	return typed.Logger()
}
