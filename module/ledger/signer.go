package ledger

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	gethCommon "github.com/ethereum/go-ethereum/common"
	gethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the signing identity transactions are sent from.
type Signer struct {
	key     *ecdsa.PrivateKey
	address gethCommon.Address
}

// NewSigner parses a hex encoded secp256k1 private key, with or without 0x
// prefix.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid signing key: %w", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *Signer) Address() gethCommon.Address {
	return s.address
}

// Sign signs the transaction with replay protection for the chain.
func (s *Signer) Sign(tx *gethTypes.Transaction, chainID *big.Int) (*gethTypes.Transaction, error) {
	return gethTypes.SignTx(tx, gethTypes.LatestSignerForChainID(chainID), s.key)
}

// submitLocks serializes nonce acquisition and broadcast per signing
// account across all clients of the process.
var submitLocks sync.Map

func submitLock(address gethCommon.Address) *sync.Mutex {
	lock, _ := submitLocks.LoadOrStore(address, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
