// Package cli defines the autogov command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"autogov/internal/config"
)

var (
	cfgPath string
	cfg     config.Config

	rootCmd = &cobra.Command{
		Use:   "autogov",
		Short: "Governed task scheduling with an adaptive autonomy envelope",
		Long: `autogov runs an agent task core under explicit autonomy governance:
a priority scheduler gated by a hysteresis envelope, an outcome evaluator
for self-revisions, and a reputation gate that caps autonomy from history.

Run the governor:
  autogov run --config autogov.yaml

Inspect a run's telemetry:
  autogov inspect outcomes --db autogov.db --run <run-id>

Replay a recorded trace:
  autogov replay trace.json`,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to YAML config (defaults apply when empty)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(replayCmd)
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
}
