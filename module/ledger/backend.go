package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	gethCommon "github.com/ethereum/go-ethereum/common"
	gethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of the JSON-RPC client the ledger client uses.
// *ethclient.Client implements it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account gethCommon.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account gethCommon.Address) (uint64, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SendTransaction(ctx context.Context, tx *gethTypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash gethCommon.Hash) (*gethTypes.Receipt, error)
	CodeAt(ctx context.Context, account gethCommon.Address, blockNumber *big.Int) ([]byte, error)
	Close()
}

var _ Backend = (*ethclient.Client)(nil)

// DialFunc opens a backend for the endpoint. The context bounds the dial.
type DialFunc func(ctx context.Context, endpoint string) (Backend, error)

// DialRPC dials an Ethereum JSON-RPC endpoint over HTTP(S), WebSocket or IPC.
func DialRPC(ctx context.Context, endpoint string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return client, nil
}
