package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"autogov/internal/governor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the governor until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		gov, err := governor.New(cfg)
		if err != nil {
			return err
		}
		defer gov.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := gov.Start(ctx); err != nil {
			return err
		}

		fmt.Printf("governor running, run=%s (Ctrl+C to stop)\n", gov.RunID())
		<-ctx.Done()

		gov.Stop()
		return nil
	},
}
