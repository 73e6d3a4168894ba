package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	gethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sethvargo/go-retry"

	"github.com/pixanchor/pixanchor/model/provenance"
)

// transact runs the lifecycle of a single contract transaction:
//
//	nonce -> build -> sign -> broadcast (broadcast timeout) -> wait for receipt
//
// The steps up to the broadcast hold the submit lock of the signing account.
// The receipt wait is bounded by the confirmation timeout minus the time
// already spent in this call. When no receipt arrives in time the pending
// outcome is returned without error.
func (c *Client) transact(ctx context.Context, method string, args ...interface{}) (provenance.TxOutcome, error) {
	if c.signer == nil {
		return provenance.TxOutcome{}, NewOperationErrorf("cannot send %s: no signing key configured", method)
	}
	start := time.Now()

	data, err := c.contract.pack(method, args...)
	if err != nil {
		return provenance.TxOutcome{}, NewOperationErrorf("could not build %s transaction: %w", method, err)
	}

	backend, chainID, err := c.conn.Backend(ctx)
	if err != nil {
		return provenance.TxOutcome{}, err
	}

	tx, err := c.broadcast(ctx, backend, chainID, data)
	if err != nil {
		c.metrics.TransactionFailed(method)
		return provenance.TxOutcome{}, fmt.Errorf("%s: %w", method, err)
	}
	c.metrics.TransactionSubmitted(method)

	log := c.log.With().
		Str("operation", method).
		Str("tx_hash", tx.Hash().Hex()).
		Uint64("nonce", tx.Nonce()).
		Logger()
	log.Debug().Msg("transaction broadcast")

	broadcastAt := time.Now()
	receipt, err := c.waitMined(ctx, backend, tx, c.confirmationBudget(start))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			c.metrics.TransactionPending(method)
			log.Warn().
				Dur("confirmation_timeout", c.cfg.ConfirmationTimeout).
				Msg("transaction not confirmed in time, it may still be mined")
			return provenance.TxOutcome{Status: provenance.TxPending, TxHash: tx.Hash().Hex()}, nil
		}
		c.metrics.TransactionFailed(method)
		return provenance.TxOutcome{}, fmt.Errorf("could not wait for %s transaction %s: %w", method, tx.Hash().Hex(), err)
	}

	if receipt.Status != gethTypes.ReceiptStatusSuccessful {
		c.metrics.TransactionFailed(method)
		reason := c.replayRevert(ctx, backend, tx, receipt)
		log.Warn().
			Uint64("block", receipt.BlockNumber.Uint64()).
			Str("reason", reason).
			Msg("transaction reverted")
		return provenance.TxOutcome{}, fmt.Errorf("%s transaction %s reverted: %w", method, tx.Hash().Hex(), RevertError{Reason: reason})
	}

	c.metrics.TransactionConfirmed(method, time.Since(broadcastAt))
	log.Info().
		Uint64("block", receipt.BlockNumber.Uint64()).
		Uint64("gas_used", receipt.GasUsed).
		Msg("transaction confirmed")

	return provenance.TxOutcome{Status: provenance.TxConfirmed, TxHash: tx.Hash().Hex()}, nil
}

// broadcast acquires the nonce, then builds, signs and sends the
// transaction while holding the submit lock of the signing account. The nonce
// is read fresh on every call so that an abandoned broadcast does not leave a
// captured nonce behind.
func (c *Client) broadcast(ctx context.Context, backend Backend, chainID *big.Int, data []byte) (*gethTypes.Transaction, error) {
	lock := submitLock(c.signer.Address())
	lock.Lock()
	defer lock.Unlock()

	nonce, err := c.pendingNonce(ctx, backend)
	if err != nil {
		return nil, err
	}
	gasPrice := c.gasPrice(ctx, backend)

	to := c.contract.Address()
	tx := gethTypes.NewTx(&gethTypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      c.cfg.GasLimit,
		To:       &to,
		Value:    new(big.Int),
		Data:     data,
	})
	signed, err := c.signer.Sign(tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("could not sign transaction: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.cfg.BroadcastTimeout)
	defer cancel()
	err = backend.SendTransaction(sendCtx, signed)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("broadcast timed out after %s: %w", c.cfg.BroadcastTimeout, err)
		}
		return nil, fmt.Errorf("could not broadcast transaction: %w", err)
	}
	return signed, nil
}

// pendingNonce reads the next nonce of the signing account, retrying
// transient failures with a short constant delay.
func (c *Client) pendingNonce(ctx context.Context, backend Backend) (uint64, error) {
	var nonce uint64
	attempt := 0
	backoff := retry.WithMaxRetries(c.cfg.NonceAttempts-1, retry.NewConstant(c.cfg.NonceRetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var err error
		nonce, err = backend.PendingNonceAt(ctx, c.signer.Address())
		if err != nil {
			c.log.Warn().Err(err).Int("attempt", attempt).Msg("could not read account nonce")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("could not read nonce of %s after %d attempts: %w", c.signer.Address().Hex(), attempt, err)
	}
	return nonce, nil
}

// gasPrice returns the recommended gas price, or the configured price if the
// network cannot be queried. It never fails.
func (c *Client) gasPrice(ctx context.Context, backend Backend) *big.Int {
	price, err := c.recommendedGasPrice(ctx, backend)
	if err != nil {
		fallback := c.configuredGasPrice()
		c.log.Warn().Err(err).
			Str("fallback_wei", fallback.String()).
			Msg("could not query gas price, using configured price")
		return fallback
	}
	return price
}

func (c *Client) recommendedGasPrice(ctx context.Context, backend Backend) (*big.Int, error) {
	current, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	percent := big.NewInt(int64(c.cfg.GasPriceMultiplier*100 + 0.5))
	price := new(big.Int).Mul(current, percent)
	return price.Div(price, big.NewInt(100)), nil
}

func (c *Client) configuredGasPrice() *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(c.cfg.GasPriceGwei), big.NewInt(params.GWei))
}

// confirmationBudget returns what is left of the confirmation timeout after
// the time spent since start. At least a short wait is always granted so a
// slow broadcast still gets its receipt checked once.
func (c *Client) confirmationBudget(start time.Time) time.Duration {
	floor := time.Second
	if c.cfg.ConfirmationTimeout < floor {
		floor = c.cfg.ConfirmationTimeout
	}
	budget := c.cfg.ConfirmationTimeout - time.Since(start)
	if budget < floor {
		return floor
	}
	return budget
}

func (c *Client) waitMined(ctx context.Context, backend Backend, tx *gethTypes.Transaction, budget time.Duration) (*gethTypes.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	return bind.WaitMined(ctx, backend, tx)
}

// replayRevert recovers the revert reason of a failed transaction by
// re-executing its call against the state the transaction ran on.
func (c *Client) replayRevert(ctx context.Context, backend Backend, tx *gethTypes.Transaction, receipt *gethTypes.Receipt) string {
	var block *big.Int
	if receipt.BlockNumber != nil && receipt.BlockNumber.Sign() > 0 {
		block = new(big.Int).Sub(receipt.BlockNumber, big.NewInt(1))
	}
	msg := ethereum.CallMsg{
		From:     c.signer.Address(),
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}
	_, err := backend.CallContract(ctx, msg, block)
	if err == nil {
		return "unknown"
	}
	if reason, ok := RevertReason(err); ok {
		return reason
	}
	c.log.Debug().Err(err).Str("tx_hash", tx.Hash().Hex()).Msg("could not recover revert reason")
	return "unknown"
}

