package ledger

import (
	"context"
	"fmt"
	"math/big"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"golang.org/x/sync/errgroup"
)

// ConnectionStatus describes the ledger endpoint as last observed.
type ConnectionStatus struct {
	Endpoint    string
	ChainID     *big.Int
	BlockNumber uint64
	GasPrice    *big.Int
}

// BalanceStatus compares the balance of the signing account with the cost of
// one transaction at the configured gas limit.
type BalanceStatus struct {
	Account    gethCommon.Address
	Balance    *big.Int
	Required   *big.Int
	Sufficient bool
}

// CheckConnection queries chain id, head block and gas price concurrently.
func (c *Client) CheckConnection(ctx context.Context) (*ConnectionStatus, error) {
	backend, chainID, err := c.conn.Backend(ctx)
	if err != nil {
		return nil, err
	}

	status := &ConnectionStatus{Endpoint: c.cfg.Endpoint}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		current, err := backend.ChainID(gctx)
		if err != nil {
			return fmt.Errorf("could not get chain id: %w", err)
		}
		if current.Cmp(chainID) != 0 {
			return fmt.Errorf("chain id changed from %s to %s", chainID, current)
		}
		status.ChainID = current
		return nil
	})
	g.Go(func() error {
		block, err := backend.BlockNumber(gctx)
		if err != nil {
			return fmt.Errorf("could not get block number: %w", err)
		}
		status.BlockNumber = block
		return nil
	})
	g.Go(func() error {
		price, err := backend.SuggestGasPrice(gctx)
		if err != nil {
			return fmt.Errorf("could not get gas price: %w", err)
		}
		status.GasPrice = price
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, NewOperationErrorf("ledger connection check failed: %w", err)
	}
	return status, nil
}

// CheckBalance compares the balance of the signing account with gas limit
// times the gas price a transaction would currently be sent with. The
// balance is reported to the metrics.
func (c *Client) CheckBalance(ctx context.Context) (*BalanceStatus, error) {
	if c.signer == nil {
		return nil, NewOperationErrorf("no signing key configured")
	}
	backend, err := c.backend(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := backend.BalanceAt(ctx, c.signer.Address(), nil)
	if err != nil {
		return nil, NewOperationErrorf("could not get balance of %s: %w", c.signer.Address().Hex(), err)
	}
	required := new(big.Int).Mul(new(big.Int).SetUint64(c.cfg.GasLimit), c.gasPrice(ctx, backend))

	status := &BalanceStatus{
		Account:    c.signer.Address(),
		Balance:    balance,
		Required:   required,
		Sufficient: balance.Cmp(required) >= 0,
	}
	c.metrics.SigningAccountBalance(WeiToEther(balance))
	c.metrics.InsufficientBalance(!status.Sufficient)
	return status, nil
}

// RecommendedGasPrice returns the network gas price raised by the configured
// multiplier.
func (c *Client) RecommendedGasPrice(ctx context.Context) (*big.Int, error) {
	backend, err := c.backend(ctx)
	if err != nil {
		return nil, err
	}
	price, err := c.recommendedGasPrice(ctx, backend)
	if err != nil {
		return nil, NewOperationErrorf("could not get gas price: %w", err)
	}
	return price, nil
}

// WeiToEther converts an amount in wei to ether. Precision is lost beyond
// float64 resolution, the result is meant for display and metrics.
func WeiToEther(wei *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	return f
}
