package ledger

import (
	"context"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/utils/logging"
)

// StoreRecord anchors the provenance record of fp on the ledger, retrying
// failed attempts with the configured backoff.
//
// Outcomes:
//   - TxConfirmed: the record was written.
//   - TxPending: the transaction was broadcast but not confirmed within the
//     confirmation timeout. It may still be mined.
//   - TxAlreadyAnchored: the ledger already held a record for fp. Nothing
//     was written.
//
// Expected errors:
//   - OperationError if every attempt failed. It wraps the error of the last
//     attempt, which is a ConnectionError if the ledger could not be reached.
func (c *Client) StoreRecord(ctx context.Context, fp provenance.Fingerprint, classification provenance.Classification) (provenance.TxOutcome, error) {
	log := c.log.With().
		Str("fingerprint", logging.Fingerprint(fp)).
		Str("operation", methodStore).
		Logger()

	if c.signer == nil {
		return provenance.TxOutcome{}, NewOperationErrorf("cannot store %s: no signing key configured", fp)
	}

	// the pre-check is best effort, a failure only means we attempt the write
	exists, err := c.Exists(ctx, fp)
	if err != nil {
		log.Warn().Err(err).Msg("existence pre-check failed, attempting store anyway")
	} else if exists {
		c.metrics.StoreAlreadyAnchored()
		log.Info().Msg("record already anchored, skipping store")
		return provenance.TxOutcome{Status: provenance.TxAlreadyAnchored}, nil
	}

	c.diagnose(ctx, log)

	label, confidence := sanitizeClassification(log, classification)

	var outcome provenance.TxOutcome
	attempt := 0
	err = retry.Do(ctx, c.backoff(c.cfg.Retry), func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			c.metrics.StoreRetried()
		}

		var err error
		outcome, err = c.transact(ctx, methodStore, fp.String(), string(label), new(big.Int).SetUint64(confidence))
		if err != nil {
			log.Warn().Err(err).
				Int("attempt", attempt).
				Uint64("max_retries", c.cfg.Retry.MaxRetries).
				Msg("store attempt failed")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err == nil {
		return outcome, nil
	}

	if isAlreadyExists(err) {
		c.metrics.StoreAlreadyAnchored()
		log.Info().Msg("ledger reports record already exists")
		return provenance.TxOutcome{Status: provenance.TxAlreadyAnchored}, nil
	}

	log.Error().Err(err).Int("attempts", attempt).Msg("store failed")
	return provenance.TxOutcome{}, NewOperationErrorf("could not store record %s after %d attempts: %w", fp, attempt, err)
}

// sanitizeClassification returns the label and the fixed point confidence to
// store. Unexpected labels are stored as given. Confidence values outside
// [0, 1] are clamped.
func sanitizeClassification(log zerolog.Logger, c provenance.Classification) (provenance.Label, uint64) {
	if !c.Label.Valid() {
		log.Warn().
			Str("label", string(c.Label)).
			Interface("expected", provenance.Labels).
			Msg("unexpected classification label, storing as is")
	}
	confidence, clamped := provenance.ClampConfidence(c.Confidence)
	if clamped {
		log.Warn().
			Float64("confidence", c.Confidence).
			Float64("clamped", confidence).
			Msg("confidence out of range, clamped")
	}
	return c.Label, provenance.ConfidenceToFixedPoint(confidence)
}

// diagnose logs the state of the connection and the signing account. It
// never blocks the write.
func (c *Client) diagnose(ctx context.Context, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectionTimeout)
	defer cancel()

	start := time.Now()
	status, err := c.CheckConnection(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("ledger connection check failed")
		return
	}
	log.Debug().
		Str("chain_id", status.ChainID.String()).
		Uint64("block", status.BlockNumber).
		Dur("duration", time.Since(start)).
		Msg("ledger connection ok")

	balance, err := c.CheckBalance(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("balance check failed")
		return
	}
	if !balance.Sufficient {
		log.Warn().
			Str("account", balance.Account.Hex()).
			Str("balance_wei", balance.Balance.String()).
			Str("required_wei", balance.Required.String()).
			Msg("signing account balance may not cover the transaction")
	}
}
