package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagActor string

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Anchor stored images whose ledger write failed",
	Args:  cobra.NoArgs,
	RunE:  runBackfill,
}

func init() {
	backfillCmd.Flags().StringVar(&flagActor, "actor", "cli", "name recorded in the audit log")
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	n, err := newNode()
	if err != nil {
		return err
	}
	defer closeNode(n)

	summary, err := n.coordinator.Backfill(ctx, flagActor)
	fmt.Fprintf(cmd.OutOrStdout(), "pending %d, anchored %d, unconfirmed %d, failed %d\n", summary.Pending, summary.Anchored, summary.Unconfirmed, summary.Failed)
	return err
}
