package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pixanchor/pixanchor/config"
)

var (
	flagConfig string

	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "pixanchor",
	Short:             "Anchor image provenance on a ledger and reject duplicate submissions",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaults, err := config.DefaultConfig()
	if err != nil {
		panic(fmt.Sprintf("invalid default config: %v", err))
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML config file")
	config.InitializeFlags(rootCmd.PersistentFlags(), defaults)

	log = zerolog.New(zerolog.NewConsoleWriter())

	rootCmd.AddCommand(ingestCmd, compareCmd, backfillCmd, imagesCmd, ledgerCmd)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(flagConfig, cmd.Flags())
	if err != nil {
		return err
	}
	level, err := zerolog.ParseLevel(loaded.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	cfg = loaded
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}

// signalContext is cancelled on interrupt, so that in-flight ledger waits
// end promptly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
