// Package ledger anchors provenance records in the registry contract of an
// EVM ledger and reads them back.
package ledger

import (
	"context"
	"fmt"

	gethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/pixanchor/pixanchor/module"
)

// BackoffFactory builds the backoff used between store attempts. It is
// called once per StoreRecord.
type BackoffFactory func(policy RetryPolicy) retry.Backoff

// ExponentialBackoff waits InitialDelay * 2^i after the i-th failed attempt,
// for at most MaxRetries retries.
func ExponentialBackoff(policy RetryPolicy) retry.Backoff {
	return retry.WithMaxRetries(policy.MaxRetries, retry.NewExponential(policy.InitialDelay))
}

type Option func(*Client)

// WithBackoff replaces the backoff between store attempts.
func WithBackoff(backoff BackoffFactory) Option {
	return func(c *Client) {
		c.backoff = backoff
	}
}

// Client implements module.Ledger and module.LedgerReader against the
// provenance registry contract. It is safe for concurrent use. Transactions
// of all clients sharing a signing account are serialized from nonce
// acquisition to broadcast.
type Client struct {
	log      zerolog.Logger
	metrics  module.LedgerMetrics
	cfg      Config
	conn     *Connection
	contract *Contract
	signer   *Signer // nil for read-only clients
	backoff  BackoffFactory
}

var _ module.Ledger = (*Client)(nil)
var _ module.LedgerReader = (*Client)(nil)

func NewClient(log zerolog.Logger, metrics module.LedgerMetrics, cfg Config, dial DialFunc, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ledger configuration: %w", err)
	}
	contract, err := NewContract(cfg.ContractAddress)
	if err != nil {
		return nil, err
	}

	var signer *Signer
	if cfg.PrivateKey != "" {
		signer, err = NewSigner(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
	}

	log = log.With().Str("component", "ledger_client").Logger()
	c := &Client{
		log:      log,
		metrics:  metrics,
		cfg:      cfg,
		conn:     NewConnection(log, metrics, dial, cfg.Endpoint, cfg.ConnectionTimeout),
		contract: contract,
		signer:   signer,
		backoff:  ExponentialBackoff,
	}
	for _, apply := range opts {
		apply(c)
	}

	if signer == nil {
		c.log.Info().Msg("no signing key configured, ledger client is read-only")
	}
	return c, nil
}

// Address returns the signing account, if any.
func (c *Client) Address() (gethCommon.Address, bool) {
	if c.signer == nil {
		return gethCommon.Address{}, false
	}
	return c.signer.Address(), true
}

// Connection returns the underlying connection.
func (c *Client) Connection() *Connection {
	return c.conn
}

// Close releases the connection. Later calls reconnect.
func (c *Client) Close() {
	c.conn.Close()
}

func (c *Client) from() gethCommon.Address {
	if c.signer == nil {
		return gethCommon.Address{}
	}
	return c.signer.Address()
}

func (c *Client) backend(ctx context.Context) (Backend, error) {
	backend, _, err := c.conn.Backend(ctx)
	return backend, err
}
