package commands

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"budgetledger/internal/amqp"
	"budgetledger/internal/core"
)

func newEventsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Follow import events published on the message broker",
		Long:  "Print import progress events as they arrive until interrupted. Requires AMQP_URL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.app.Events == nil {
				if opts.app.Config.AMQPURL == "" {
					return core.Configf("AMQP_URL is not set")
				}
				return core.Configf("message broker at AMQP_URL is unreachable")
			}

			out := cmd.OutOrStdout()
			err := opts.app.Events.ConsumeImportEvents(cmd.Context(), func(ev *amqp.ImportEvent) error {
				printf(out, "%s %-16s %s %s: %d processed, %d accepted, %d rejected, %d duplicates",
					ev.Timestamp.Format("15:04:05"), ev.Type, ev.ImportID, ev.File,
					ev.Processed, ev.Accepted, ev.Rejected, ev.Duplicates)
				if ev.Error != "" {
					printf(out, " (%s)", ev.Error)
				}
				printf(out, "\n")
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}
