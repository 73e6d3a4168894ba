package cmd

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/docker/go-units"
	"github.com/ethereum/go-ethereum/params"
	"github.com/spf13/cobra"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module/ledger"
	"github.com/pixanchor/pixanchor/module/metrics"
)

var (
	flagOffset uint64
	flagLimit  uint64
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Query and administer the provenance registry contract",
}

// ledgerFunc runs a command against a ledger client that is closed
// afterwards.
type ledgerFunc func(ctx context.Context, cmd *cobra.Command, client *ledger.Client, args []string) error

func withLedger(f ledgerFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		client, err := initLedger(metrics.NewNoopCollector())
		if err != nil {
			return err
		}
		defer client.Close()
		return f(ctx, cmd, client, args)
	}
}

func ledgerCommand(use string, short string, args cobra.PositionalArgs, f ledgerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE:  withLedger(f),
	}
}

func init() {
	listCmd := ledgerCommand("list", "List anchored fingerprints", cobra.NoArgs, runLedgerList)
	listCmd.Flags().Uint64Var(&flagOffset, "offset", 0, "index of the first fingerprint")
	listCmd.Flags().Uint64Var(&flagLimit, "limit", 100, "maximum number of fingerprints")

	verifyCmd := ledgerCommand("verify <fingerprint>", "Mark a record as verified", cobra.ExactArgs(1), runLedgerVerify)
	verifyCmd.Flags().BoolVar(&flagUnverify, "unverify", false, "clear the verification status instead")

	ledgerCmd.AddCommand(
		ledgerCommand("status", "Check the connection to the ledger", cobra.NoArgs, runLedgerStatus),
		ledgerCommand("balance", "Check the balance of the signing account", cobra.NoArgs, runLedgerBalance),
		ledgerCommand("count", "Print the number of anchored records", cobra.NoArgs, runLedgerCount),
		ledgerCommand("exists <fingerprint>", "Check whether a record exists", cobra.ExactArgs(1), runLedgerExists),
		ledgerCommand("get <fingerprint>", "Print an anchored record", cobra.ExactArgs(1), runLedgerGet),
		listCmd,
		ledgerCommand("authorized <account>", "Check whether an account may upload", cobra.ExactArgs(1), runLedgerAuthorized),
		ledgerCommand("paused", "Check whether the contract is paused", cobra.NoArgs, runLedgerPaused),
		ledgerCommand("pause", "Pause the contract", cobra.NoArgs, runLedgerPause),
		ledgerCommand("unpause", "Unpause the contract", cobra.NoArgs, runLedgerUnpause),
		ledgerCommand("authorize <account>", "Authorize an uploader", cobra.ExactArgs(1), runLedgerAuthorize),
		ledgerCommand("revoke <account>", "Revoke an uploader", cobra.ExactArgs(1), runLedgerRevoke),
		ledgerCommand("transfer-ownership <account>", "Transfer contract ownership", cobra.ExactArgs(1), runLedgerTransferOwnership),
		verifyCmd,
		ledgerCommand("update <fingerprint> <Real|Fake|Unknown> <confidence>", "Replace the classification of a record", cobra.ExactArgs(3), runLedgerUpdate),
		ledgerCommand("delete <fingerprint>", "Delete a record", cobra.ExactArgs(1), runLedgerDelete),
	)
}

func runLedgerStatus(ctx context.Context, cmd *cobra.Command, client *ledger.Client, _ []string) error {
	status, err := client.CheckConnection(ctx)
	if err != nil {
		return err
	}
	gwei := new(big.Float).Quo(new(big.Float).SetInt(status.GasPrice), big.NewFloat(params.GWei))
	fmt.Fprintf(cmd.OutOrStdout(), "endpoint %s\nchain id %s\nblock %d\ngas price %s gwei\n",
		status.Endpoint, status.ChainID, status.BlockNumber, gwei.Text('f', 2))
	return nil
}

func runLedgerBalance(ctx context.Context, cmd *cobra.Command, client *ledger.Client, _ []string) error {
	status, err := client.CheckBalance(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "account %s\nbalance %.6f ETH\nrequired %.6f ETH\nsufficient %t\n",
		status.Account.Hex(), ledger.WeiToEther(status.Balance), ledger.WeiToEther(status.Required), status.Sufficient)
	return nil
}

func runLedgerCount(ctx context.Context, cmd *cobra.Command, client *ledger.Client, _ []string) error {
	count, err := client.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), count)
	return nil
}

func runLedgerExists(ctx context.Context, cmd *cobra.Command, client *ledger.Client, args []string) error {
	fp, err := provenance.ParseFingerprint(args[0])
	if err != nil {
		return err
	}
	exists, err := client.Exists(ctx, fp)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), exists)
	return nil
}

func runLedgerGet(ctx context.Context, cmd *cobra.Command, client *ledger.Client, args []string) error {
	fp, err := provenance.ParseFingerprint(args[0])
	if err != nil {
		return err
	}
	record, err := client.Record(ctx, fp)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "fingerprint %s\ntimestamp %s (%s ago)\nsubmitter %s\nverified %t\nlabel %s\nconfidence %d\n",
		record.Fingerprint, record.Timestamp.UTC(), units.HumanDuration(time.Since(record.Timestamp)),
		record.Submitter, record.Verified, record.Label, record.Confidence)
	return nil
}

func runLedgerList(ctx context.Context, cmd *cobra.Command, client *ledger.Client, _ []string) error {
	fps, err := client.ListPaginated(ctx, flagOffset, flagLimit)
	if err != nil {
		return err
	}
	for _, fp := range fps {
		fmt.Fprintln(cmd.OutOrStdout(), fp)
	}
	return nil
}

func runLedgerAuthorized(ctx context.Context, cmd *cobra.Command, client *ledger.Client, args []string) error {
	authorized, err := client.IsAuthorized(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), authorized)
	return nil
}

func runLedgerPaused(ctx context.Context, cmd *cobra.Command, client *ledger.Client, _ []string) error {
	paused, err := client.IsPaused(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), paused)
	return nil
}

// printTx returns a function printing the outcome of a ledger mutation.
func printTx(cmd *cobra.Command) func(provenance.TxOutcome, error) error {
	return func(tx provenance.TxOutcome, err error) error {
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tx.String())
		return nil
	}
}

func runLedgerPause(ctx context.Context, cmd *cobra.Command, client *ledger.Client, _ []string) error {
	return printTx(cmd)(client.Pause(ctx))
}

func runLedgerUnpause(ctx context.Context, cmd *cobra.Command, client *ledger.Client, _ []string) error {
	return printTx(cmd)(client.Unpause(ctx))
}

func runLedgerAuthorize(ctx context.Context, cmd *cobra.Command, client *ledger.Client, args []string) error {
	return printTx(cmd)(client.AddAuthorized(ctx, args[0]))
}

func runLedgerRevoke(ctx context.Context, cmd *cobra.Command, client *ledger.Client, args []string) error {
	return printTx(cmd)(client.RemoveAuthorized(ctx, args[0]))
}

func runLedgerTransferOwnership(ctx context.Context, cmd *cobra.Command, client *ledger.Client, args []string) error {
	return printTx(cmd)(client.TransferOwnership(ctx, args[0]))
}

func runLedgerVerify(ctx context.Context, cmd *cobra.Command, client *ledger.Client, args []string) error {
	fp, err := provenance.ParseFingerprint(args[0])
	if err != nil {
		return err
	}
	return printTx(cmd)(client.SetVerified(ctx, fp, !flagUnverify))
}

func runLedgerUpdate(ctx context.Context, cmd *cobra.Command, client *ledger.Client, args []string) error {
	fp, err := provenance.ParseFingerprint(args[0])
	if err != nil {
		return err
	}
	classification, err := parseClassification(args[1], args[2])
	if err != nil {
		return err
	}
	return printTx(cmd)(client.UpdateRecord(ctx, fp, classification))
}

func runLedgerDelete(ctx context.Context, cmd *cobra.Command, client *ledger.Client, args []string) error {
	fp, err := provenance.ParseFingerprint(args[0])
	if err != nil {
		return err
	}
	return printTx(cmd)(client.DeleteRecord(ctx, fp))
}
