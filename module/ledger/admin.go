package ledger

import (
	"context"
	"fmt"
	"math/big"

	gethCommon "github.com/ethereum/go-ethereum/common"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/utils/logging"
)

// Mutations other than StoreRecord run a single attempt without existence
// pre-check. Failures surface immediately as OperationErrors, or
// ConnectionErrors if the ledger could not be reached. A transaction that
// was broadcast but not confirmed in time yields a pending outcome.

// UpdateRecord replaces the classification of an anchored record.
func (c *Client) UpdateRecord(ctx context.Context, fp provenance.Fingerprint, classification provenance.Classification) (provenance.TxOutcome, error) {
	log := c.log.With().Str("fingerprint", logging.Fingerprint(fp)).Str("operation", methodUpdate).Logger()
	label, confidence := sanitizeClassification(log, classification)
	return c.mutate(ctx, methodUpdate, fp.String(), string(label), new(big.Int).SetUint64(confidence))
}

// DeleteRecord removes the record of fp from the ledger.
func (c *Client) DeleteRecord(ctx context.Context, fp provenance.Fingerprint) (provenance.TxOutcome, error) {
	return c.mutate(ctx, methodDelete, fp.String())
}

// SetVerified changes the verification status of an anchored record.
func (c *Client) SetVerified(ctx context.Context, fp provenance.Fingerprint, verified bool) (provenance.TxOutcome, error) {
	return c.mutate(ctx, methodVerify, fp.String(), verified)
}

// Pause stops the contract from accepting mutations.
func (c *Client) Pause(ctx context.Context) (provenance.TxOutcome, error) {
	return c.mutate(ctx, methodPause)
}

func (c *Client) Unpause(ctx context.Context) (provenance.TxOutcome, error) {
	return c.mutate(ctx, methodUnpause)
}

// AddAuthorized allows the account to store records.
func (c *Client) AddAuthorized(ctx context.Context, account string) (provenance.TxOutcome, error) {
	address, err := parseAccount(account)
	if err != nil {
		return provenance.TxOutcome{}, err
	}
	return c.mutate(ctx, methodAddAuthorized, address)
}

func (c *Client) RemoveAuthorized(ctx context.Context, account string) (provenance.TxOutcome, error) {
	address, err := parseAccount(account)
	if err != nil {
		return provenance.TxOutcome{}, err
	}
	return c.mutate(ctx, methodRevoke, address)
}

// TransferOwnership hands the contract over to another account.
func (c *Client) TransferOwnership(ctx context.Context, account string) (provenance.TxOutcome, error) {
	address, err := parseAccount(account)
	if err != nil {
		return provenance.TxOutcome{}, err
	}
	return c.mutate(ctx, methodTransferOwner, address)
}

func (c *Client) mutate(ctx context.Context, method string, args ...interface{}) (provenance.TxOutcome, error) {
	outcome, err := c.transact(ctx, method, args...)
	if err != nil {
		c.log.Error().Err(err).Str("operation", method).Msg("ledger mutation failed")
		if IsConnectionError(err) || IsOperationError(err) {
			return provenance.TxOutcome{}, err
		}
		return provenance.TxOutcome{}, NewOperationErrorf("%s failed: %w", method, err)
	}
	return outcome, nil
}

func parseAccount(account string) (gethCommon.Address, error) {
	if !gethCommon.IsHexAddress(account) {
		return gethCommon.Address{}, fmt.Errorf("invalid account address: %q", account)
	}
	return gethCommon.HexToAddress(account), nil
}
