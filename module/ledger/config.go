package ledger

import (
	"fmt"
	"time"

	gethCommon "github.com/ethereum/go-ethereum/common"
)

// Defaults target a local development chain. Production deployments must
// override endpoint, key and contract address.
const (
	DefaultEndpoint            = "http://127.0.0.1:7545"
	DefaultContractAddress     = "0x1B76D3aAF8D286179cCB2BD359bBb9B63B15f9AD"
	DefaultGasLimit            = 6_000_000
	DefaultGasPriceGwei        = 1
	DefaultGasPriceMultiplier  = 1.2
	DefaultConnectionTimeout   = 10 * time.Second
	DefaultBroadcastTimeout    = 30 * time.Second
	DefaultConfirmationTimeout = 30 * time.Second
	DefaultMaxRetries          = 3
	DefaultInitialRetryDelay   = 2 * time.Second
	DefaultNonceAttempts       = 3
	DefaultNonceRetryDelay     = time.Second
)

type Config struct {
	Endpoint        string
	PrivateKey      string // hex encoded, optional for read-only use
	ContractAddress string
	GasLimit        uint64
	// GasPriceGwei is used when the network gas price cannot be queried.
	GasPriceGwei uint64
	// GasPriceMultiplier is applied to the network gas price to obtain the
	// recommended price.
	GasPriceMultiplier  float64
	ConnectionTimeout   time.Duration
	BroadcastTimeout    time.Duration
	ConfirmationTimeout time.Duration
	Retry               RetryPolicy
	// NonceAttempts bounds the reads of the account nonce within one store
	// attempt.
	NonceAttempts   uint64
	NonceRetryDelay time.Duration
}

// RetryPolicy bounds the attempts of StoreRecord: after a failed attempt i
// (counting from 0) the next one starts after InitialDelay * 2^i, for at most
// MaxRetries additional attempts.
type RetryPolicy struct {
	MaxRetries   uint64
	InitialDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		Endpoint:            DefaultEndpoint,
		ContractAddress:     DefaultContractAddress,
		GasLimit:            DefaultGasLimit,
		GasPriceGwei:        DefaultGasPriceGwei,
		GasPriceMultiplier:  DefaultGasPriceMultiplier,
		ConnectionTimeout:   DefaultConnectionTimeout,
		BroadcastTimeout:    DefaultBroadcastTimeout,
		ConfirmationTimeout: DefaultConfirmationTimeout,
		Retry: RetryPolicy{
			MaxRetries:   DefaultMaxRetries,
			InitialDelay: DefaultInitialRetryDelay,
		},
		NonceAttempts:   DefaultNonceAttempts,
		NonceRetryDelay: DefaultNonceRetryDelay,
	}
}

func (c Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("ledger endpoint must not be empty")
	}
	if !gethCommon.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("invalid contract address: %q", c.ContractAddress)
	}
	if c.GasLimit == 0 {
		return fmt.Errorf("gas limit must be positive")
	}
	if c.GasPriceMultiplier < 1 {
		return fmt.Errorf("gas price multiplier must be at least 1, got %v", c.GasPriceMultiplier)
	}
	if c.ConnectionTimeout <= 0 || c.BroadcastTimeout <= 0 || c.ConfirmationTimeout <= 0 {
		return fmt.Errorf("ledger timeouts must be positive")
	}
	if c.Retry.InitialDelay <= 0 {
		return fmt.Errorf("initial retry delay must be positive")
	}
	if c.NonceAttempts == 0 || c.NonceRetryDelay <= 0 {
		return fmt.Errorf("nonce attempts and nonce retry delay must be positive")
	}
	return nil
}
