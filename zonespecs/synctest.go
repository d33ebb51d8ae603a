package zonespecs

import (
	"fmt"

	zone "github.com/attax1994/zone.js"
)

// SyncTest returns a zone spec that rejects any non-micro task scheduled in
// its subtree. Synchronous test bodies fork through it so that an accidental
// timer or listener registration fails loudly instead of leaking into later
// tests.
func SyncTest(namePrefix string) *zone.Spec {
	return &zone.Spec{
		Name: "syncTestZone for " + namePrefix,
		OnScheduleTask: func(parent *zone.Delegate, _, target *zone.Zone, task *zone.Task) *zone.Task {
			if task.Type != zone.MicroTask {
				panic(fmt.Errorf("Cannot call %s from within a sync test.", task.Source))
			}
			return parent.ScheduleTask(target, task)
		},
	}
}
