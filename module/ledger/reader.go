package ledger

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	gethCommon "github.com/ethereum/go-ethereum/common"

	"github.com/pixanchor/pixanchor/model/provenance"
)

// Reads are single shot. Connection failures are ConnectionErrors, every
// other failure is an OperationError.

// Exists returns true if the ledger holds a record for the fingerprint.
func (c *Client) Exists(ctx context.Context, fp provenance.Fingerprint) (bool, error) {
	out, err := c.call(ctx, methodExists, fp.String())
	if err != nil {
		return false, err
	}
	exists, ok := out[0].(bool)
	if !ok {
		return false, NewOperationErrorf("unexpected %s result type %T", methodExists, out[0])
	}
	return exists, nil
}

// Record returns the on-chain record of the fingerprint, or
// ErrRecordNotFound.
func (c *Client) Record(ctx context.Context, fp provenance.Fingerprint) (*provenance.OnChainRecord, error) {
	out, err := c.call(ctx, methodGet, fp.String())
	if err != nil {
		if !IsConnectionError(err) && isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, fp)
		}
		return nil, err
	}

	timestamp, ok1 := out[0].(*big.Int)
	uploader, ok2 := out[1].(gethCommon.Address)
	verified, ok3 := out[2].(bool)
	label, ok4 := out[3].(string)
	confidence, ok5 := out[4].(*big.Int)
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return nil, NewOperationErrorf("unexpected %s result types", methodGet)
	}

	return &provenance.OnChainRecord{
		Fingerprint: fp,
		Timestamp:   time.Unix(timestamp.Int64(), 0).UTC(),
		Submitter:   uploader.Hex(),
		Verified:    verified,
		Label:       provenance.Label(label),
		Confidence:  confidence.Uint64(),
	}, nil
}

// Count returns the number of records held by the ledger.
func (c *Client) Count(ctx context.Context) (uint64, error) {
	out, err := c.call(ctx, methodCount)
	if err != nil {
		return 0, err
	}
	count, ok := out[0].(*big.Int)
	if !ok {
		return 0, NewOperationErrorf("unexpected %s result type %T", methodCount, out[0])
	}
	return count.Uint64(), nil
}

// ListPaginated returns up to limit fingerprints starting at offset, in the
// order the ledger stored them.
func (c *Client) ListPaginated(ctx context.Context, offset, limit uint64) ([]provenance.Fingerprint, error) {
	out, err := c.call(ctx, methodListPaginated, new(big.Int).SetUint64(offset), new(big.Int).SetUint64(limit))
	if err != nil {
		return nil, err
	}
	hashes, ok := out[0].([]string)
	if !ok {
		return nil, NewOperationErrorf("unexpected %s result type %T", methodListPaginated, out[0])
	}
	fps := make([]provenance.Fingerprint, 0, len(hashes))
	for _, h := range hashes {
		fps = append(fps, provenance.Fingerprint(h))
	}
	return fps, nil
}

// IsAuthorized returns true if the account may store records.
func (c *Client) IsAuthorized(ctx context.Context, account string) (bool, error) {
	if !gethCommon.IsHexAddress(account) {
		return false, fmt.Errorf("invalid account address: %q", account)
	}
	out, err := c.call(ctx, methodIsAuthorized, gethCommon.HexToAddress(account))
	if err != nil {
		return false, err
	}
	authorized, ok := out[0].(bool)
	if !ok {
		return false, NewOperationErrorf("unexpected %s result type %T", methodIsAuthorized, out[0])
	}
	return authorized, nil
}

// IsPaused returns true if the contract rejects mutations.
func (c *Client) IsPaused(ctx context.Context) (bool, error) {
	out, err := c.call(ctx, methodIsPaused)
	if err != nil {
		return false, err
	}
	paused, ok := out[0].(bool)
	if !ok {
		return false, NewOperationErrorf("unexpected %s result type %T", methodIsPaused, out[0])
	}
	return paused, nil
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	backend, err := c.backend(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.contract.pack(method, args...)
	if err != nil {
		return nil, NewOperationErrorf("could not call %s: %w", method, err)
	}

	to := c.contract.Address()
	output, err := backend.CallContract(ctx, ethereum.CallMsg{From: c.from(), To: &to, Data: data}, nil)
	if err != nil {
		if reason, ok := RevertReason(err); ok {
			err = RevertError{Reason: reason}
		}
		return nil, NewOperationErrorf("%s call failed: %w", method, err)
	}

	out, err := c.contract.unpack(method, output)
	if err != nil {
		return nil, NewOperationErrorf("could not call %s: %w", method, err)
	}
	return out, nil
}
