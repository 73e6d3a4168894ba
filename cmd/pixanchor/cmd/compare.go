package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module/features"
	"github.com/pixanchor/pixanchor/module/similarity"
)

var compareCmd = &cobra.Command{
	Use:   "compare <a> <b>",
	Short: "Print the perceptual similarity of two images",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompare,
}

func runCompare(cmd *cobra.Command, args []string) error {
	extractor := features.NewExtractor(log, cfg.ExtractorConfig())
	out := cmd.OutOrStdout()

	var fps [2]provenance.Fingerprint
	var sets [2]*provenance.FeatureSet
	for i, file := range args {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("could not read %s: %w", file, err)
		}
		fps[i] = features.FingerprintBytes(data)
		sets[i], err = extractor.Extract(data)
		if err != nil {
			return fmt.Errorf("could not extract features of %s: %w", file, err)
		}
		fmt.Fprintf(out, "%s\t%s\t%d keypoints\n", file, fps[i], sets[i].Len())
	}

	score := similarity.Score(sets[0], sets[1])
	verdict := "distinct"
	switch {
	case fps[0] == fps[1]:
		verdict = "exact duplicate"
	case score >= cfg.Detection.SimilarityThreshold:
		verdict = "near duplicate"
	}
	fmt.Fprintf(out, "similarity %.4f (threshold %.2f): %s\n", score, cfg.Detection.SimilarityThreshold, verdict)
	return nil
}
