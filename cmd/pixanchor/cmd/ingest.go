package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/atomic"

	"github.com/pixanchor/pixanchor/engine/ingestion"
)

var (
	flagSubmitter string
	flagProgress  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Submit images: reject duplicates, classify, anchor and store the rest",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&flagSubmitter, "submitter", "", "hex account address recorded as the uploader")
	ingestCmd.Flags().BoolVar(&flagProgress, "progress", false, "show a progress bar instead of per image logs")
}

type ingestCounts struct {
	accepted   atomic.Int64
	unanchored atomic.Int64
	duplicates atomic.Int64
	invalid    atomic.Int64
	failed     atomic.Int64
}

func runIngest(_ *cobra.Command, files []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	// per image logs are reduced to warnings while the bar is shown
	var bar *progressbar.ProgressBar
	summary := log
	if flagProgress {
		bar = progressbar.Default(int64(len(files)), "ingesting")
		log = log.Level(zerolog.WarnLevel)
	}

	n, err := newNode()
	if err != nil {
		return err
	}
	defer closeNode(n)

	counts := &ingestCounts{}
	pool := workerpool.New(cfg.Ingestion.Workers)
	for _, file := range files {
		file := file
		pool.Submit(func() {
			ingestFile(ctx, n.coordinator, file, counts)
			if bar != nil {
				_ = bar.Add(1)
			}
		})
	}
	pool.StopWait()
	if bar != nil {
		_ = bar.Finish()
	}

	summary.Info().
		Int64("accepted", counts.accepted.Load()).
		Int64("unanchored", counts.unanchored.Load()).
		Int64("duplicates", counts.duplicates.Load()).
		Int64("invalid", counts.invalid.Load()).
		Int64("failed", counts.failed.Load()).
		Msg("ingestion completed")

	if counts.failed.Load() > 0 {
		return fmt.Errorf("%d of %d submissions failed", counts.failed.Load(), len(files))
	}
	return nil
}

func ingestFile(ctx context.Context, coordinator *ingestion.Coordinator, file string, counts *ingestCounts) {
	lg := log.With().Str("file", file).Logger()
	if ctx.Err() != nil {
		counts.failed.Inc()
		return
	}

	data, err := os.ReadFile(file)
	if err != nil {
		lg.Error().Err(err).Msg("could not read image")
		counts.failed.Inc()
		return
	}

	res, err := coordinator.Submit(ctx, ingestion.Submission{
		Image:     data,
		Submitter: flagSubmitter,
		Name:      filepath.Base(file),
	})
	switch {
	case ingestion.IsValidationError(err):
		lg.Warn().Err(err).Msg("image rejected")
		counts.invalid.Inc()
	case err != nil:
		lg.Error().Err(err).Msg("submission failed")
		counts.failed.Inc()
	case res.Rejection != nil:
		lg.Info().
			Str("duplicate_type", res.Rejection.DuplicateType).
			Str("stage", string(res.Rejection.Stage)).
			Float64("similarity", res.Rejection.Similarity).
			Uint64("matched_id", uint64(res.Rejection.MatchedID)).
			Msg("duplicate rejected")
		counts.duplicates.Inc()
	case res.Anchor == nil:
		lg.Warn().Uint64("image_id", uint64(res.Image.ID)).Msg("accepted without ledger anchor, run backfill later")
		counts.unanchored.Inc()
	default:
		lg.Info().
			Uint64("image_id", uint64(res.Image.ID)).
			Str("fingerprint", res.Image.Fingerprint.String()).
			Str("label", string(res.Image.Label)).
			Str("anchor", res.Anchor.String()).
			Msg("accepted")
		counts.accepted.Inc()
	}
}
