package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/storage"
)

var (
	flagUnverify bool

	flagListLabel     string
	flagListVerified  bool
	flagListSubmitter string
	flagListOffset    uint
	flagListLimit     uint
)

var imagesCmd = &cobra.Command{
	Use:   "images",
	Short: "Inspect and administer stored images",
}

func init() {
	imagesCmd.PersistentFlags().StringVar(&flagActor, "actor", "cli", "name recorded in the audit log")

	verifyImageCmd.Flags().BoolVar(&flagUnverify, "unverify", false, "clear the verification status instead")

	listImagesCmd.Flags().StringVar(&flagListLabel, "label", "", "only list images with this label (Real, Fake or Unknown)")
	listImagesCmd.Flags().BoolVar(&flagListVerified, "verified", false, "only list images with this verification status")
	listImagesCmd.Flags().StringVar(&flagListSubmitter, "submitter", "", "only list images uploaded by this account")
	listImagesCmd.Flags().UintVar(&flagListOffset, "offset", 0, "number of matching images to skip")
	listImagesCmd.Flags().UintVar(&flagListLimit, "limit", 0, "maximum number of images to list, 0 for all")

	imagesCmd.AddCommand(
		listImagesCmd,
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a stored image",
			Args:  cobra.ExactArgs(1),
			RunE:  runShowImage,
		},
		&cobra.Command{
			Use:   "reclassify <id> <Real|Fake|Unknown> <confidence>",
			Short: "Replace the classification of an image, on the ledger if anchored",
			Args:  cobra.ExactArgs(3),
			RunE:  runReclassify,
		},
		verifyImageCmd,
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Remove a stored image. Its ledger record is not retracted.",
			Args:  cobra.ExactArgs(1),
			RunE:  runRemoveImage,
		},
		&cobra.Command{
			Use:   "audit",
			Short: "Print the audit log, oldest first",
			Args:  cobra.NoArgs,
			RunE:  runAudit,
		},
	)
}

var listImagesCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored images in insertion order",
	Args:  cobra.NoArgs,
	RunE:  runListImages,
}

var verifyImageCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Mark an anchored image as verified",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerifyImage,
}

func parseImageID(s string) (provenance.ImageID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid image id %q", s)
	}
	return provenance.ImageID(id), nil
}

func parseClassification(label string, confidence string) (provenance.Classification, error) {
	l, err := provenance.ParseLabel(label)
	if err != nil {
		return provenance.Classification{}, err
	}
	c, err := strconv.ParseFloat(confidence, 64)
	if err != nil {
		return provenance.Classification{}, fmt.Errorf("invalid confidence %q: %w", confidence, err)
	}
	return provenance.Classification{Label: l, Confidence: c}, nil
}

func printImage(cmd *cobra.Command, img *provenance.Image) {
	reference := img.TransactionReference
	switch {
	case reference == "":
		reference = "-"
	case img.AnchorPending:
		reference += " (pending)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%.2f\tverified=%t\t%s\t%s\n",
		img.ID, img.Fingerprint, img.Label, img.Confidence, img.Verified, reference, img.UploadedAt.Format(time.RFC3339))
}

// imageFilter selects a page of the stored images. Zero values match
// everything.
type imageFilter struct {
	label     provenance.Label
	verified  *bool
	submitter string
	offset    uint
	limit     uint
}

func imageFilterFromFlags(cmd *cobra.Command) (imageFilter, error) {
	f := imageFilter{
		submitter: flagListSubmitter,
		offset:    flagListOffset,
		limit:     flagListLimit,
	}
	if flagListLabel != "" {
		label, err := provenance.ParseLabel(flagListLabel)
		if err != nil {
			return f, err
		}
		f.label = label
	}
	if cmd.Flags().Changed("verified") {
		verified := flagListVerified
		f.verified = &verified
	}
	return f, nil
}

func (f imageFilter) matches(img *provenance.Image) bool {
	if f.label != "" && img.Label != f.label {
		return false
	}
	if f.verified != nil && img.Verified != *f.verified {
		return false
	}
	// account addresses are compared regardless of their checksum casing
	if f.submitter != "" && !strings.EqualFold(img.Submitter, f.submitter) {
		return false
	}
	return true
}

// list calls fn for the matching images of the given iteration, skipping the
// first offset matches and stopping after limit.
func (f imageFilter) list(iterate func(func(*provenance.Image) error) error, fn func(*provenance.Image)) error {
	var skipped, listed uint
	err := iterate(func(img *provenance.Image) error {
		if !f.matches(img) {
			return nil
		}
		if skipped < f.offset {
			skipped++
			return nil
		}
		if f.limit > 0 && listed == f.limit {
			return storage.ErrStopIteration
		}
		fn(img)
		listed++
		return nil
	})
	if errors.Is(err, storage.ErrStopIteration) {
		return nil
	}
	return err
}

func runListImages(cmd *cobra.Command, _ []string) error {
	filter, err := imageFilterFromFlags(cmd)
	if err != nil {
		return err
	}
	n, err := newNode()
	if err != nil {
		return err
	}
	defer closeNode(n)

	return filter.list(n.storage.Images.Iterate, func(img *provenance.Image) {
		printImage(cmd, img)
	})
}

func runShowImage(cmd *cobra.Command, args []string) error {
	id, err := parseImageID(args[0])
	if err != nil {
		return err
	}
	n, err := newNode()
	if err != nil {
		return err
	}
	defer closeNode(n)

	img, err := n.storage.Images.ByID(id)
	if err != nil {
		return err
	}
	printImage(cmd, img)
	if img.Features != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "features: %d keypoints\n", len(img.Features.Descriptors))
	}
	return nil
}

func runReclassify(cmd *cobra.Command, args []string) error {
	id, err := parseImageID(args[0])
	if err != nil {
		return err
	}
	classification, err := parseClassification(args[1], args[2])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	n, err := newNode()
	if err != nil {
		return err
	}
	defer closeNode(n)

	tx, err := n.coordinator.Reclassify(ctx, flagActor, id, classification)
	if err != nil {
		return err
	}
	printOutcome(cmd, tx)
	return nil
}

func runVerifyImage(cmd *cobra.Command, args []string) error {
	id, err := parseImageID(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	n, err := newNode()
	if err != nil {
		return err
	}
	defer closeNode(n)

	tx, err := n.coordinator.SetVerified(ctx, flagActor, id, !flagUnverify)
	if err != nil {
		return err
	}
	printOutcome(cmd, tx)
	return nil
}

func runRemoveImage(_ *cobra.Command, args []string) error {
	id, err := parseImageID(args[0])
	if err != nil {
		return err
	}
	n, err := newNode()
	if err != nil {
		return err
	}
	defer closeNode(n)

	return n.coordinator.Remove(flagActor, id)
}

func runAudit(cmd *cobra.Command, _ []string) error {
	n, err := newNode()
	if err != nil {
		return err
	}
	defer closeNode(n)

	return n.storage.AuditLogs.Iterate(func(entry *provenance.AuditEntry) error {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%d\t%s\n",
			entry.Timestamp.Format(time.RFC3339), entry.Actor, entry.Action, entry.ImageID, entry.Detail)
		return nil
	})
}

func printOutcome(cmd *cobra.Command, tx *provenance.TxOutcome) {
	if tx == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "stored locally, image is not anchored")
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), tx.String())
}
