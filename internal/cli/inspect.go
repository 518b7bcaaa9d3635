package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"autogov/internal/telemetry"
)

var (
	inspectDB    string
	inspectRun   string
	inspectLimit int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect a run's persisted telemetry",
}

var inspectOutcomesCmd = &cobra.Command{
	Use:   "outcomes",
	Short: "Show recent self-revision outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openInspectStore()
		if err != nil {
			return err
		}
		defer store.Close()

		outcomes, err := store.RecentOutcomes(inspectRun, inspectLimit)
		if err != nil {
			return err
		}
		if len(outcomes) == 0 {
			fmt.Println("no outcomes recorded")
			return nil
		}
		for _, o := range outcomes {
			fmt.Printf("%s  %s  %-10s trust %+0.4f  error %+0.4f\n",
				telemetry.FromMs(o.EvaluatedAtMs).Format(time.RFC3339),
				o.RevisionID, o.Class, o.TrustDelta, o.ErrorDelta)
		}
		return nil
	},
}

var inspectEnvelopeCmd = &cobra.Command{
	Use:   "envelope",
	Short: "Show the envelope transition log",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openInspectStore()
		if err != nil {
			return err
		}
		defer store.Close()

		transitions, err := store.EnvelopeTransitions(inspectRun, inspectLimit)
		if err != nil {
			return err
		}
		if len(transitions) == 0 {
			fmt.Println("no envelope transitions recorded")
			return nil
		}
		for _, t := range transitions {
			fmt.Printf("%s  %-7s -> %-7s score=%.3f cap=%.3f\n",
				telemetry.FromMs(t.TsMs).Format(time.RFC3339),
				t.From, t.To, t.Score, t.Cap)
		}
		return nil
	},
}

func openInspectStore() (*telemetry.Store, error) {
	db := inspectDB
	if db == "" {
		db = cfg.DBPath
	}
	if inspectRun == "" {
		return nil, fmt.Errorf("--run is required")
	}
	return telemetry.NewStore(db)
}

func init() {
	inspectCmd.PersistentFlags().StringVar(&inspectDB, "db", "", "telemetry database path (defaults to config db_path)")
	inspectCmd.PersistentFlags().StringVar(&inspectRun, "run", "", "run id to inspect")
	inspectCmd.PersistentFlags().IntVar(&inspectLimit, "limit", 20, "maximum rows to show")

	inspectCmd.AddCommand(inspectOutcomesCmd)
	inspectCmd.AddCommand(inspectEnvelopeCmd)
}
