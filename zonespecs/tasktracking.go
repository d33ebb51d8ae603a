// Package zonespecs provides stock Spec layers for common ambient concerns:
// outstanding-task tracking, long stack traces across async boundaries, and
// synchronous-test enforcement. Each layer composes through the ordinary
// delegate chain and needs no support from business code.
package zonespecs

import (
	zone "github.com/attax1994/zone.js"
)

// TaskTracking records every outstanding task scheduled in its zone's
// subtree, by kind. Test harnesses use it to answer "is there still pending
// async work?" and to flush leaked event listeners.
//
// Like the engine it observes, a TaskTracking instance must only be used from
// the goroutine driving the zone universe.
type TaskTracking struct {
	microTasks []*zone.Task
	macroTasks []*zone.Task
	eventTasks []*zone.Task
}

// NewTaskTracking returns an empty tracker. Attach it to a zone by forking
// with its Spec.
func NewTaskTracking() *TaskTracking {
	return &TaskTracking{}
}

// Spec returns the zone spec that feeds this tracker.
func (t *TaskTracking) Spec() *zone.Spec {
	return &zone.Spec{
		Name: "TaskTrackingZone",
		OnScheduleTask: func(parent *zone.Delegate, _, target *zone.Zone, task *zone.Task) *zone.Task {
			scheduled := parent.ScheduleTask(target, task)
			t.add(scheduled)
			return scheduled
		},
		OnInvokeTask: func(parent *zone.Delegate, _, target *zone.Zone, task *zone.Task, args []any) any {
			// Event tasks stay tracked across invocations; everything else
			// is consumed by running.
			if task.Type != zone.EventTask {
				t.remove(task)
			}
			return parent.InvokeTask(target, task, args)
		},
		OnCancelTask: func(parent *zone.Delegate, _, target *zone.Zone, task *zone.Task) any {
			value := parent.CancelTask(target, task)
			t.remove(task)
			return value
		},
	}
}

// MicroTasks returns a copy of the outstanding microtasks.
func (t *TaskTracking) MicroTasks() []*zone.Task {
	return append([]*zone.Task(nil), t.microTasks...)
}

// MacroTasks returns a copy of the outstanding macrotasks.
func (t *TaskTracking) MacroTasks() []*zone.Task {
	return append([]*zone.Task(nil), t.macroTasks...)
}

// EventTasks returns a copy of the outstanding event tasks.
func (t *TaskTracking) EventTasks() []*zone.Task {
	return append([]*zone.Task(nil), t.eventTasks...)
}

// ClearEvents cancels every tracked event task. Test teardown uses this to
// release listeners the code under test leaked.
func (t *TaskTracking) ClearEvents() {
	events := t.EventTasks()
	for _, task := range events {
		task.Zone().CancelTask(task)
	}
}

func (t *TaskTracking) add(task *zone.Task) {
	switch task.Type {
	case zone.MicroTask:
		t.microTasks = append(t.microTasks, task)
	case zone.MacroTask:
		t.macroTasks = append(t.macroTasks, task)
	case zone.EventTask:
		t.eventTasks = append(t.eventTasks, task)
	}
}

func (t *TaskTracking) remove(task *zone.Task) {
	switch task.Type {
	case zone.MicroTask:
		t.microTasks = removeTask(t.microTasks, task)
	case zone.MacroTask:
		t.macroTasks = removeTask(t.macroTasks, task)
	case zone.EventTask:
		t.eventTasks = removeTask(t.eventTasks, task)
	}
}

func removeTask(tasks []*zone.Task, task *zone.Task) []*zone.Task {
	for i, candidate := range tasks {
		if candidate == task {
			return append(tasks[:i], tasks[i+1:]...)
		}
	}
	return tasks
}
