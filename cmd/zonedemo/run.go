package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/spf13/cobra"

	zone "github.com/attax1994/zone.js"
	"github.com/attax1994/zone.js/config"
	"github.com/attax1994/zone.js/hostloop"
	"github.com/attax1994/zone.js/patches/timers"
	"github.com/attax1994/zone.js/zonespecs"
)

// runCmd wires an engine to the host loop and runs a scripted scenario.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scripted zone scenario",
	Long: `Creates an isolated zone engine, loads the timers patch backed by the
in-process host loop, forks a tracked child zone, and schedules macro tasks
whose microtasks drain at each task boundary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		verbose, _ := cmd.Flags().GetBool("verbose")
		return runScenario(configPath, verbose)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runScenario(configPath string, verbose bool) error {
	level := logiface.LevelInformational
	if verbose {
		level = logiface.LevelTrace
	}
	logger := newLogger(os.Stdout, level)

	global := zone.NewGlobal()
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg.Apply(global)
	}

	engine, err := zone.NewEngine(zone.WithGlobal(global), zone.WithLogger(logger))
	if err != nil {
		return err
	}

	loop, err := hostloop.New(hostloop.WithLogger(logger))
	if err != nil {
		return err
	}
	timers.Install(engine, loop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	tracking := zonespecs.NewTaskTracking()
	done := make(chan struct{})

	err = loop.Submit(func() {
		app := engine.Root().Fork(tracking.Spec()).Fork(&zone.Spec{
			Name: "app",
			OnHasTask: func(parent *zone.Delegate, _, target *zone.Zone, state zone.HasTaskState) {
				logger.Info().
					Str("zone", target.Name()).
					Str("change", string(state.Change)).
					Bool("macroTask", state.MacroTask).
					Log("task set changed")
				parent.HasTask(target, state)
			},
		})

		app.Run(func(args ...any) any {
			logger.Info().Str("zone", engine.Current().Name()).Log("scenario start")

			timers.SetTimeout(app, loop, 10*time.Millisecond, func(args ...any) any {
				logger.Info().Str("zone", engine.Current().Name()).Log("macro task fired")

				app.ScheduleMicroTask("demo.micro1", func(args ...any) any {
					logger.Info().Log("microtask 1 (drains before the host regains control)")
					return nil
				}, nil, nil)
				app.ScheduleMicroTask("demo.micro2", func(args ...any) any {
					logger.Info().Log("microtask 2")
					close(done)
					return nil
				}, nil, nil)
				return nil
			})
			return nil
		})
	})
	if err != nil {
		return err
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("zonedemo: scenario timed out")
	}

	if err := loop.Shutdown(context.Background()); err != nil && err != hostloop.ErrLoopTerminated {
		return err
	}
	<-loopDone

	fmt.Printf("outstanding macro tasks after drain: %d\n", len(tracking.MacroTasks()))
	return nil
}
