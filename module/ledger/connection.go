package ledger

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/pixanchor/pixanchor/module"
)

// Connection is the process wide connection to the ledger endpoint. It is
// dialed lazily, checked for liveness before every use and redialed when
// stale.
//
//	Disconnected --connect(timeout)--> Connected --stale--> Disconnected
type Connection struct {
	log      zerolog.Logger
	metrics  module.LedgerMetrics
	dial     DialFunc
	endpoint string
	timeout  time.Duration

	mu         sync.RWMutex
	backend    Backend
	chainID    *big.Int
	generation *atomic.Uint64 // incremented on every established connection
}

func NewConnection(log zerolog.Logger, metrics module.LedgerMetrics, dial DialFunc, endpoint string, timeout time.Duration) *Connection {
	return &Connection{
		log:        log.With().Str("component", "ledger_connection").Str("endpoint", endpoint).Logger(),
		metrics:    metrics,
		dial:       dial,
		endpoint:   endpoint,
		timeout:    timeout,
		generation: atomic.NewUint64(0),
	}
}

// Backend returns a live backend and the chain id it serves, connecting or
// reconnecting as needed. Failures are ConnectionErrors.
func (c *Connection) Backend(ctx context.Context) (Backend, *big.Int, error) {
	c.mu.RLock()
	backend, chainID, generation := c.backend, c.chainID, c.generation.Load()
	c.mu.RUnlock()

	if backend != nil {
		if c.alive(ctx, backend, chainID) {
			return backend, chainID, nil
		}
		c.log.Warn().Msg("ledger connection is stale, reconnecting")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// another caller reconnected while we waited for the lock
	if c.generation.Load() != generation && c.backend != nil {
		return c.backend, c.chainID, nil
	}

	if c.backend != nil {
		c.backend.Close()
		c.backend, c.chainID = nil, nil
	}

	backend, chainID, err := c.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	c.backend, c.chainID = backend, chainID
	c.generation.Inc()
	c.metrics.Reconnected()

	c.log.Info().
		Str("chain_id", chainID.String()).
		Uint64("generation", c.generation.Load()).
		Msg("connected to ledger")

	return backend, chainID, nil
}

// Generation returns the number of connections established so far.
func (c *Connection) Generation() uint64 {
	return c.generation.Load()
}

func (c *Connection) connect(ctx context.Context) (Backend, *big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	backend, err := c.dial(ctx, c.endpoint)
	if err != nil {
		return nil, nil, NewConnectionErrorf("could not dial ledger endpoint %s: %w", c.endpoint, err)
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		backend.Close()
		return nil, nil, NewConnectionErrorf("ledger handshake with %s failed: %w", c.endpoint, err)
	}
	return backend, chainID, nil
}

// alive checks that the backend still answers and serves the same chain.
func (c *Connection) alive(ctx context.Context, backend Backend, chainID *big.Int) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	current, err := backend.ChainID(ctx)
	if err != nil {
		c.log.Debug().Err(err).Msg("liveness check failed")
		return false
	}
	if current.Cmp(chainID) != 0 {
		c.log.Warn().
			Str("expected", chainID.String()).
			Str("actual", current.String()).
			Msg("ledger endpoint changed chain id")
		return false
	}
	return true
}

// Close closes the current backend, if any. A later use reconnects.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.backend != nil {
		c.backend.Close()
		c.backend, c.chainID = nil, nil
	}
}
