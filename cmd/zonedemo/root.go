package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "zonedemo",
	Short: "zonedemo exercises the zone execution-context core",
	Long: `zonedemo wires a zone engine to the in-process host loop, loads the
timers patch, and runs a scripted scenario: forked zones, macro tasks,
microtasks drained at task boundaries, and task-count tracking.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML file of host-global zone flags")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable structured trace logging")
}
