// Package ledgertest provides an in-process ledger backend for tests. It
// decodes calldata with the registry ABI and simulates the registry
// contract, including reverts carrying ABI encoded revert data.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"

	"github.com/pixanchor/pixanchor/module/ledger"
)

// Revert reasons of the simulated registry.
const (
	ReasonAlreadyExists = "Image with this hash already exists"
	ReasonNotFound      = "Image does not exist"
	ReasonUnauthorized  = "Caller is not authorized"
	ReasonNotOwner      = "Caller is not the owner"
	ReasonPaused        = "Contract is paused"
)

// TestKey is the hex private key of the owner account of every simulated
// registry. It must never hold funds on a real network.
const TestKey = "8f2a55949038a9610f50fb23b5883af3b4ecb3c3bb792cbcefbe1542c692be63"

// DefaultChainID is the chain id served by a new backend.
var DefaultChainID = big.NewInt(1337)

// SendHook is called for every SendTransaction before the transaction is
// processed. n counts the calls starting at 1. A non-nil error fails the
// broadcast without the transaction being accepted.
type SendHook func(ctx context.Context, n int, tx *gethTypes.Transaction) error

type record struct {
	timestamp  *big.Int
	uploader   gethCommon.Address
	verified   bool
	label      string
	confidence *big.Int
}

type pendingTx struct {
	tx     *gethTypes.Transaction
	sender gethCommon.Address
}

// Backend implements ledger.Backend. It is safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	abi      abi.ABI
	chainID  *big.Int
	contract gethCommon.Address
	owner    gethCommon.Address
	gasPrice *big.Int

	records    map[string]*record
	order      []string
	authorized map[gethCommon.Address]bool
	paused     bool
	nonces     map[gethCommon.Address]uint64
	balances   map[gethCommon.Address]*big.Int

	block    uint64
	mining   bool
	pool     []pendingTx
	receipts map[gethCommon.Hash]*gethTypes.Receipt

	sendHook      SendHook
	sends         int
	accepted      []*gethTypes.Transaction
	dials         int
	closed        bool
	dialErr       error
	chainIDErr    error
	gasPriceErr   error
	nonceFailures int
}

var _ ledger.Backend = (*Backend)(nil)

// NewBackend creates a registry deployed at contract and owned by the
// account of TestKey. The owner is funded with 100 ether. Transactions are
// mined as soon as they are accepted.
func NewBackend(contract string) *Backend {
	parsed, err := ledger.ParseRegistryABI()
	if err != nil {
		panic(fmt.Sprintf("could not parse registry abi: %v", err))
	}
	b := &Backend{
		abi:        parsed,
		chainID:    new(big.Int).Set(DefaultChainID),
		contract:   gethCommon.HexToAddress(contract),
		owner:      Address(TestKey),
		gasPrice:   big.NewInt(params.GWei),
		records:    make(map[string]*record),
		authorized: make(map[gethCommon.Address]bool),
		nonces:     make(map[gethCommon.Address]uint64),
		balances:   make(map[gethCommon.Address]*big.Int),
		mining:     true,
		receipts:   make(map[gethCommon.Hash]*gethTypes.Receipt),
	}
	b.balances[b.owner] = new(big.Int).Mul(big.NewInt(100), big.NewInt(params.Ether))
	return b
}

// Address returns the account of a hex private key.
func Address(hexKey string) gethCommon.Address {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		panic(fmt.Sprintf("invalid key: %v", err))
	}
	return crypto.PubkeyToAddress(key.PublicKey)
}

// Dial implements ledger.DialFunc. Dialing reopens a closed backend.
func (b *Backend) Dial(_ context.Context, _ string) (ledger.Backend, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	b.closed = false
	return b, nil
}

// Dials returns the number of Dial calls.
func (b *Backend) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// Sends returns the number of SendTransaction calls, failed ones included.
func (b *Backend) Sends() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sends
}

// Accepted returns the transactions accepted so far.
func (b *Backend) Accepted() []*gethTypes.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*gethTypes.Transaction(nil), b.accepted...)
}

func (b *Backend) SetSendHook(hook SendHook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendHook = hook
}

// SetMining switches automatic mining. While disabled, accepted transactions
// stay in the pool and have no receipt until Mine is called.
func (b *Backend) SetMining(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mining = enabled
}

// Mine executes all pooled transactions in one block.
func (b *Backend) Mine() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mineLocked()
}

func (b *Backend) FailDial(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dialErr = err
}

func (b *Backend) FailChainID(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainIDErr = err
}

func (b *Backend) FailGasPrice(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gasPriceErr = err
}

// FailNonce fails the next n nonce reads.
func (b *Backend) FailNonce(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonceFailures = n
}

func (b *Backend) SetGasPrice(price *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gasPrice = price
}

func (b *Backend) SetBalance(account gethCommon.Address, balance *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = balance
}

// SetChainID changes the chain id, as if the endpoint was pointed at another
// network.
func (b *Backend) SetChainID(id *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chainID = id
}

// Authorize adds an account to the authorized uploaders without a
// transaction.
func (b *Backend) Authorize(account gethCommon.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.authorized[account] = true
}

// Seed stores a record without a transaction.
func (b *Backend) Seed(hash string, label string, confidence uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putRecord(hash, b.owner, label, new(big.Int).SetUint64(confidence))
}

// Record returns the stored label and confidence of hash.
func (b *Backend) Record(hash string) (label string, confidence uint64, verified bool, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.records[hash]
	if !ok {
		return "", 0, false, false
	}
	return r.label, r.confidence.Uint64(), r.verified, true
}

func (b *Backend) Paused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.paused
}

func (b *Backend) Owner() gethCommon.Address {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.owner
}

func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *Backend) checkOpen(ctx context.Context) error {
	if b.closed {
		return errors.New("client is closed")
	}
	return ctx.Err()
}

func (b *Backend) ChainID(ctx context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(ctx); err != nil {
		return nil, err
	}
	if b.chainIDErr != nil {
		return nil, b.chainIDErr
	}
	return new(big.Int).Set(b.chainID), nil
}

func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(ctx); err != nil {
		return 0, err
	}
	return b.block, nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(ctx); err != nil {
		return nil, err
	}
	if b.gasPriceErr != nil {
		return nil, b.gasPriceErr
	}
	return new(big.Int).Set(b.gasPrice), nil
}

func (b *Backend) BalanceAt(ctx context.Context, account gethCommon.Address, _ *big.Int) (*big.Int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(ctx); err != nil {
		return nil, err
	}
	if balance, ok := b.balances[account]; ok {
		return new(big.Int).Set(balance), nil
	}
	return new(big.Int), nil
}

func (b *Backend) PendingNonceAt(ctx context.Context, account gethCommon.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(ctx); err != nil {
		return 0, err
	}
	if b.nonceFailures > 0 {
		b.nonceFailures--
		return 0, errors.New("nonce unavailable")
	}
	return b.nonces[account], nil
}

func (b *Backend) CodeAt(ctx context.Context, account gethCommon.Address, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(ctx); err != nil {
		return nil, err
	}
	if account == b.contract {
		return []byte{0x60, 0x80}, nil
	}
	return nil, nil
}

// CallContract executes a read against the current state. The block number
// is ignored.
func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(ctx); err != nil {
		return nil, err
	}
	if call.To == nil || *call.To != b.contract {
		return nil, nil
	}
	out, reason, err := b.execute(call.From, call.Data, false)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return nil, newRevertError(reason)
	}
	return out, nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *gethTypes.Transaction) error {
	b.mu.Lock()
	b.sends++
	n, hook := b.sends, b.sendHook
	b.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, n, tx); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(ctx); err != nil {
		return err
	}
	if tx.ChainId().Cmp(b.chainID) != 0 {
		return fmt.Errorf("invalid chain id %s, expected %s", tx.ChainId(), b.chainID)
	}
	sender, err := gethTypes.Sender(gethTypes.LatestSignerForChainID(b.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if expected := b.nonces[sender]; tx.Nonce() != expected {
		return fmt.Errorf("invalid nonce %d for %s, expected %d", tx.Nonce(), sender.Hex(), expected)
	}
	cost := new(big.Int).Mul(tx.GasPrice(), new(big.Int).SetUint64(tx.Gas()))
	balance, ok := b.balances[sender]
	if !ok || balance.Cmp(cost) < 0 {
		return fmt.Errorf("insufficient funds for gas * price + value")
	}

	b.nonces[sender]++
	b.accepted = append(b.accepted, tx)
	b.pool = append(b.pool, pendingTx{tx: tx, sender: sender})
	if b.mining {
		b.mineLocked()
	}
	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, hash gethCommon.Hash) (*gethTypes.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkOpen(ctx); err != nil {
		return nil, err
	}
	receipt, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (b *Backend) mineLocked() {
	if len(b.pool) == 0 {
		return
	}
	b.block++
	for i, p := range b.pool {
		status := gethTypes.ReceiptStatusSuccessful
		if p.tx.To() == nil || *p.tx.To() != b.contract {
			status = gethTypes.ReceiptStatusFailed
		} else if _, reason, err := b.execute(p.sender, p.tx.Data(), true); err != nil || reason != "" {
			status = gethTypes.ReceiptStatusFailed
		}
		b.receipts[p.tx.Hash()] = &gethTypes.Receipt{
			Type:             gethTypes.LegacyTxType,
			Status:           status,
			TxHash:           p.tx.Hash(),
			GasUsed:          50_000,
			BlockNumber:      new(big.Int).SetUint64(b.block),
			TransactionIndex: uint(i),
		}
	}
	b.pool = nil
}

// execute runs a contract function. Mutations are applied only if commit is
// set. A revert is reported by a non-empty reason.
func (b *Backend) execute(from gethCommon.Address, data []byte, commit bool) ([]byte, string, error) {
	if len(data) < 4 {
		return nil, "", errors.New("missing method selector")
	}
	method, err := b.abi.MethodById(data[:4])
	if err != nil {
		return nil, "", err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, "", fmt.Errorf("could not decode %s arguments: %w", method.Name, err)
	}

	revert := func(reason string) ([]byte, string, error) { return nil, reason, nil }
	done := func(values ...interface{}) ([]byte, string, error) {
		out, err := method.Outputs.Pack(values...)
		return out, "", err
	}

	switch method.Name {
	case "imageExists":
		_, ok := b.records[args[0].(string)]
		return done(ok)
	case "getImageFeatures":
		r, ok := b.records[args[0].(string)]
		if !ok {
			return revert(ReasonNotFound)
		}
		return done(r.timestamp, r.uploader, r.verified, r.label, r.confidence)
	case "getImageCount":
		return done(big.NewInt(int64(len(b.order))))
	case "getImageHashesPaginated":
		start, limit := args[0].(*big.Int).Uint64(), args[1].(*big.Int).Uint64()
		page := []string{}
		for i := start; i < uint64(len(b.order)) && i < start+limit; i++ {
			page = append(page, b.order[i])
		}
		return done(page)
	case "isAuthorized":
		account := args[0].(gethCommon.Address)
		return done(account == b.owner || b.authorized[account])
	case "isPaused":
		return done(b.paused)
	}

	// mutations
	switch method.Name {
	case "storeImageFeatures", "updateImageFeatures", "deleteImageFeatures", "verifyImage":
		if b.paused {
			return revert(ReasonPaused)
		}
		if from != b.owner && !b.authorized[from] {
			return revert(ReasonUnauthorized)
		}
	default:
		if from != b.owner {
			return revert(ReasonNotOwner)
		}
	}

	hash := ""
	if len(args) > 0 {
		hash, _ = args[0].(string)
	}
	r, exists := b.records[hash]

	switch method.Name {
	case "storeImageFeatures":
		if exists {
			return revert(ReasonAlreadyExists)
		}
		if commit {
			b.putRecord(hash, from, args[1].(string), args[2].(*big.Int))
		}
	case "updateImageFeatures":
		if !exists {
			return revert(ReasonNotFound)
		}
		if commit {
			r.label, r.confidence = args[1].(string), args[2].(*big.Int)
		}
	case "deleteImageFeatures":
		if !exists {
			return revert(ReasonNotFound)
		}
		if commit {
			delete(b.records, hash)
			for i, h := range b.order {
				if h == hash {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		}
	case "verifyImage":
		if !exists {
			return revert(ReasonNotFound)
		}
		if commit {
			r.verified = args[1].(bool)
		}
	case "pauseContract", "unpauseContract":
		if commit {
			b.paused = method.Name == "pauseContract"
		}
	case "addAuthorizedUser", "removeAuthorizedUser":
		if commit {
			b.authorized[args[0].(gethCommon.Address)] = method.Name == "addAuthorizedUser"
		}
	case "transferOwnership":
		if commit {
			b.owner = args[0].(gethCommon.Address)
		}
	default:
		return nil, "", fmt.Errorf("unsupported method %s", method.Name)
	}
	return nil, "", nil
}

func (b *Backend) putRecord(hash string, uploader gethCommon.Address, label string, confidence *big.Int) {
	b.records[hash] = &record{
		timestamp:  big.NewInt(time.Now().Unix()),
		uploader:   uploader,
		label:      label,
		confidence: new(big.Int).Set(confidence),
	}
	b.order = append(b.order, hash)
}

// RevertError is returned by calls that revert. It carries the ABI encoded
// Error(string) payload as JSON-RPC error data, like Ethereum nodes do.
type RevertError struct {
	reason string
	data   string
}

func newRevertError(reason string) *RevertError {
	return &RevertError{reason: reason, data: hexutil.Encode(EncodeRevert(reason))}
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.reason
}

func (e *RevertError) ErrorCode() int {
	return 3
}

func (e *RevertError) ErrorData() interface{} {
	return e.data
}

// EncodeRevert returns the Error(string) revert payload for reason.
func EncodeRevert(reason string) []byte {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	encoded, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	return append(crypto.Keccak256([]byte("Error(string)"))[:4], encoded...)
}
