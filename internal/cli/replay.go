package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"autogov/internal/replay"
)

var replayVerbose bool

var replayCmd = &cobra.Command{
	Use:   "replay <trace.json>",
	Short: "Replay a recorded governance trace deterministically",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fixture, err := replay.LoadFixture(args[0])
		if err != nil {
			return err
		}

		results, summary := replay.Replay(fixture.ToEvents(), fixture.ToReplayConfig())

		if fixture.Description != "" {
			fmt.Println(fixture.Description)
		}
		if replayVerbose {
			for _, r := range results {
				fmt.Printf("%4d %-9s state=%-7s effective=%.3f cap=%.3f",
					r.Index, r.Type, r.State, r.Effective, r.Cap)
				if r.Type == replay.EventSubmit {
					fmt.Printf(" admitted=%v", r.Admitted)
				}
				fmt.Println()
			}
		}

		fmt.Printf("events=%d transitions=%d admitted=%d rejected=%d final=%s effective=%.3f\n",
			summary.Events, summary.Transitions, summary.Admitted, summary.Rejected,
			summary.FinalState, summary.FinalEffective)

		exp := fixture.Expected
		if exp.FinalState != "" && exp.FinalState != string(summary.FinalState) {
			return fmt.Errorf("final state mismatch: expected %s, got %s", exp.FinalState, summary.FinalState)
		}
		return nil
	},
}

func init() {
	replayCmd.Flags().BoolVarP(&replayVerbose, "verbose", "v", false, "print every event result")
}
