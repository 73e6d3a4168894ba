package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	gethCommon "github.com/ethereum/go-ethereum/common"
	gethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixanchor/pixanchor/model/provenance"
	"github.com/pixanchor/pixanchor/module/ledger"
	"github.com/pixanchor/pixanchor/module/ledger/ledgertest"
	"github.com/pixanchor/pixanchor/module/metrics"
	"github.com/pixanchor/pixanchor/utils/unittest"
)

func testConfig() ledger.Config {
	cfg := ledger.DefaultConfig()
	cfg.PrivateKey = ledgertest.TestKey
	cfg.ConnectionTimeout = time.Second
	cfg.BroadcastTimeout = time.Second
	cfg.ConfirmationTimeout = 2 * time.Second
	cfg.Retry = ledger.RetryPolicy{MaxRetries: 3, InitialDelay: 5 * time.Millisecond}
	cfg.NonceRetryDelay = time.Millisecond
	return cfg
}

func newClient(t *testing.T, backend *ledgertest.Backend, cfg ledger.Config, opts ...ledger.Option) *ledger.Client {
	client, err := ledger.NewClient(unittest.Logger(), metrics.NewNoopCollector(), cfg, backend.Dial, opts...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func newBackend() *ledgertest.Backend {
	return ledgertest.NewBackend(ledger.DefaultContractAddress)
}

// recordingBackoff wraps the exponential backoff and records every delay
// that is waited.
func recordingBackoff(delays *[]time.Duration) ledger.BackoffFactory {
	return func(policy ledger.RetryPolicy) retry.Backoff {
		inner := ledger.ExponentialBackoff(policy)
		return retry.BackoffFunc(func() (time.Duration, bool) {
			d, stop := inner.Next()
			if !stop {
				*delays = append(*delays, d)
			}
			return d, stop
		})
	}
}

func TestStoreRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmed", func(t *testing.T) {
		backend := newBackend()
		client := newClient(t, backend, testConfig())
		fp := unittest.FingerprintFixture()

		outcome, err := client.StoreRecord(ctx, fp, provenance.Classification{Label: provenance.LabelFake, Confidence: 0.92})
		require.NoError(t, err)
		assert.Equal(t, provenance.TxConfirmed, outcome.Status)
		assert.Equal(t, backend.Accepted()[0].Hash().Hex(), outcome.TxHash)
		assert.Equal(t, outcome.TxHash, outcome.Reference())

		label, confidence, verified, ok := backend.Record(fp.String())
		require.True(t, ok)
		assert.Equal(t, "Fake", label)
		assert.Equal(t, uint64(92), confidence)
		assert.False(t, verified)

		tx := backend.Accepted()[0]
		assert.Equal(t, gethCommon.HexToAddress(ledger.DefaultContractAddress), *tx.To())
		assert.Equal(t, uint64(ledger.DefaultGasLimit), tx.Gas())
		assert.Equal(t, uint8(gethTypes.LegacyTxType), tx.Type())
	})

	t.Run("second store of the same fingerprint sends nothing", func(t *testing.T) {
		backend := newBackend()
		client := newClient(t, backend, testConfig())
		fp := unittest.FingerprintFixture()
		c := provenance.Classification{Label: provenance.LabelReal, Confidence: 0.5}

		first, err := client.StoreRecord(ctx, fp, c)
		require.NoError(t, err)
		require.Equal(t, provenance.TxConfirmed, first.Status)
		require.Equal(t, 1, backend.Sends())

		second, err := client.StoreRecord(ctx, fp, c)
		require.NoError(t, err)
		assert.Equal(t, provenance.TxAlreadyAnchored, second.Status)
		assert.Equal(t, provenance.AlreadyAnchoredReference, second.Reference())
		assert.NotEqual(t, first.Reference(), second.Reference())
		assert.Equal(t, 1, backend.Sends())
	})

	t.Run("broadcast timeouts are retried with exponential backoff", func(t *testing.T) {
		backend := newBackend()
		cfg := testConfig()
		cfg.BroadcastTimeout = 50 * time.Millisecond
		cfg.Retry = ledger.RetryPolicy{MaxRetries: 3, InitialDelay: 20 * time.Millisecond}

		var delays []time.Duration
		client := newClient(t, backend, cfg, ledger.WithBackoff(recordingBackoff(&delays)))

		backend.SetSendHook(func(ctx context.Context, n int, _ *gethTypes.Transaction) error {
			if n <= 2 {
				<-ctx.Done()
				return ctx.Err()
			}
			return nil
		})

		start := time.Now()
		outcome, err := client.StoreRecord(ctx, unittest.FingerprintFixture(), provenance.Classification{Label: provenance.LabelReal, Confidence: 0.7})
		require.NoError(t, err)
		assert.Equal(t, provenance.TxConfirmed, outcome.Status)
		assert.Equal(t, 3, backend.Sends())
		assert.Len(t, backend.Accepted(), 1)
		assert.Equal(t, []time.Duration{20 * time.Millisecond, 40 * time.Millisecond}, delays)
		assert.GreaterOrEqual(t, time.Since(start), 2*cfg.BroadcastTimeout+60*time.Millisecond)
	})

	t.Run("confirmation timeout returns the pending transaction", func(t *testing.T) {
		backend := newBackend()
		backend.SetMining(false)
		cfg := testConfig()
		cfg.ConfirmationTimeout = 200 * time.Millisecond
		client := newClient(t, backend, cfg)
		fp := unittest.FingerprintFixture()

		outcome, err := client.StoreRecord(ctx, fp, provenance.Classification{Label: provenance.LabelFake, Confidence: 0.3})
		require.NoError(t, err)
		assert.Equal(t, provenance.TxPending, outcome.Status)
		require.Len(t, backend.Accepted(), 1)
		assert.Equal(t, backend.Accepted()[0].Hash().Hex(), outcome.Reference())
		assert.Equal(t, 1, backend.Sends())

		// the transaction lands later
		backend.Mine()
		exists, err := client.Exists(ctx, fp)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("already exists revert after retries is an idempotent success", func(t *testing.T) {
		backend := newBackend()
		cfg := testConfig()
		cfg.Retry.MaxRetries = 2
		client := newClient(t, backend, cfg)
		fp := unittest.FingerprintFixture()

		// a concurrent writer anchors the record between pre-check and broadcast
		backend.SetSendHook(func(_ context.Context, n int, _ *gethTypes.Transaction) error {
			if n == 1 {
				backend.Seed(fp.String(), "Real", 10)
			}
			return nil
		})

		outcome, err := client.StoreRecord(ctx, fp, provenance.Classification{Label: provenance.LabelFake, Confidence: 0.9})
		require.NoError(t, err)
		assert.Equal(t, provenance.TxAlreadyAnchored, outcome.Status)
		assert.Equal(t, 3, backend.Sends())

		label, confidence, _, ok := backend.Record(fp.String())
		require.True(t, ok)
		assert.Equal(t, "Real", label)
		assert.Equal(t, uint64(10), confidence)
	})

	t.Run("exhausted retries surface the last revert", func(t *testing.T) {
		backend := newBackend()
		cfg := testConfig()
		cfg.Retry.MaxRetries = 1
		client := newClient(t, backend, cfg)

		_, err := client.Pause(ctx)
		require.NoError(t, err)
		sends := backend.Sends()

		_, err = client.StoreRecord(ctx, unittest.FingerprintFixture(), provenance.Classification{Label: provenance.LabelReal, Confidence: 1})
		require.Error(t, err)
		assert.True(t, ledger.IsOperationError(err))

		var revertErr ledger.RevertError
		require.ErrorAs(t, err, &revertErr)
		assert.Equal(t, ledgertest.ReasonPaused, revertErr.Reason)
		assert.Equal(t, sends+2, backend.Sends())
	})

	t.Run("unreachable ledger after retries is an operation error", func(t *testing.T) {
		backend := newBackend()
		backend.FailDial(errors.New("connection refused"))
		client := newClient(t, backend, testConfig())

		_, err := client.StoreRecord(ctx, unittest.FingerprintFixture(), provenance.Classification{Label: provenance.LabelFake, Confidence: 0.5})
		require.Error(t, err)
		assert.True(t, ledger.IsOperationError(err))
		// the cause stays visible through the wrapping
		assert.True(t, ledger.IsConnectionError(err))
		assert.Equal(t, 0, backend.Sends())
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		backend := newBackend()
		cfg := testConfig()
		cfg.Retry = ledger.RetryPolicy{MaxRetries: 10, InitialDelay: time.Hour}
		client := newClient(t, backend, cfg)
		backend.SetSendHook(func(context.Context, int, *gethTypes.Transaction) error {
			return errors.New("node unavailable")
		})

		ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		var err error
		unittest.RequireReturnsBefore(t, func() {
			_, err = client.StoreRecord(ctx, unittest.FingerprintFixture(), provenance.Classification{Label: provenance.LabelReal})
		}, 5*time.Second)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, backend.Sends())
	})

	t.Run("read-only client cannot store", func(t *testing.T) {
		backend := newBackend()
		cfg := testConfig()
		cfg.PrivateKey = ""
		client := newClient(t, backend, cfg)

		_, err := client.StoreRecord(ctx, unittest.FingerprintFixture(), provenance.Classification{Label: provenance.LabelReal})
		require.Error(t, err)
		assert.True(t, ledger.IsOperationError(err))
		assert.Equal(t, 0, backend.Sends())
	})
}

func TestStoreRecord_Sanitization(t *testing.T) {
	cases := []struct {
		name       string
		in         provenance.Classification
		label      string
		confidence uint64
	}{
		{"in range", provenance.Classification{Label: provenance.LabelFake, Confidence: 0.92}, "Fake", 92},
		{"truncated", provenance.Classification{Label: provenance.LabelReal, Confidence: 0.999}, "Real", 99},
		{"above range", provenance.Classification{Label: provenance.LabelReal, Confidence: 1.7}, "Real", 100},
		{"below range", provenance.Classification{Label: provenance.LabelFake, Confidence: -0.2}, "Fake", 0},
		{"unexpected label", provenance.Classification{Label: "Morphed", Confidence: 0.4}, "Morphed", 40},
	}

	backend := newBackend()
	client := newClient(t, backend, testConfig())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fp := unittest.FingerprintFixture()
			_, err := client.StoreRecord(context.Background(), fp, tc.in)
			require.NoError(t, err)

			label, confidence, _, ok := backend.Record(fp.String())
			require.True(t, ok)
			assert.Equal(t, tc.label, label)
			assert.Equal(t, tc.confidence, confidence)
		})
	}
}

func TestStoreRecord_Nonce(t *testing.T) {
	ctx := context.Background()

	t.Run("transient nonce failures are retried", func(t *testing.T) {
		backend := newBackend()
		client := newClient(t, backend, testConfig())
		backend.FailNonce(2)

		outcome, err := client.StoreRecord(ctx, unittest.FingerprintFixture(), provenance.Classification{Label: provenance.LabelReal, Confidence: 0.1})
		require.NoError(t, err)
		assert.Equal(t, provenance.TxConfirmed, outcome.Status)
		assert.Equal(t, 1, backend.Sends())
	})

	t.Run("persistent nonce failure fails the attempt", func(t *testing.T) {
		backend := newBackend()
		cfg := testConfig()
		cfg.Retry.MaxRetries = 0
		client := newClient(t, backend, cfg)
		backend.FailNonce(int(cfg.NonceAttempts))

		_, err := client.StoreRecord(ctx, unittest.FingerprintFixture(), provenance.Classification{Label: provenance.LabelReal, Confidence: 0.1})
		require.Error(t, err)
		assert.True(t, ledger.IsOperationError(err))
		assert.Equal(t, 0, backend.Sends())
	})

	t.Run("concurrent stores use consecutive nonces", func(t *testing.T) {
		backend := newBackend()
		client := newClient(t, backend, testConfig())
		other := newClient(t, backend, testConfig())

		const n = 10
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			c := client
			if i%2 == 1 {
				c = other
			}
			wg.Add(1)
			go func(c *ledger.Client) {
				defer wg.Done()
				outcome, err := c.StoreRecord(ctx, unittest.FingerprintFixture(), provenance.Classification{Label: provenance.LabelReal, Confidence: 0.5})
				if err == nil && outcome.Status != provenance.TxConfirmed {
					err = fmt.Errorf("unexpected outcome %s", outcome)
				}
				errs <- err
			}(c)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		accepted := backend.Accepted()
		require.Len(t, accepted, n)
		for i, tx := range accepted {
			assert.Equal(t, uint64(i), tx.Nonce())
		}
		assert.Equal(t, n, backend.Sends())
	})
}

func TestStoreRecord_GasPrice(t *testing.T) {
	ctx := context.Background()

	t.Run("recommended price", func(t *testing.T) {
		backend := newBackend()
		backend.SetGasPrice(big.NewInt(10 * params.GWei))
		client := newClient(t, backend, testConfig())

		_, err := client.StoreRecord(ctx, unittest.FingerprintFixture(), provenance.Classification{Label: provenance.LabelReal})
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(12*params.GWei).String(), backend.Accepted()[0].GasPrice().String())

		price, err := client.RecommendedGasPrice(ctx)
		require.NoError(t, err)
		assert.Equal(t, big.NewInt(12*params.GWei).String(), price.String())
	})

	t.Run("configured price when the network price is unavailable", func(t *testing.T) {
		backend := newBackend()
		backend.FailGasPrice(errors.New("method not supported"))
		cfg := testConfig()
		cfg.GasPriceGwei = 3
		client := newClient(t, backend, cfg)

		outcome, err := client.StoreRecord(ctx, unittest.FingerprintFixture(), provenance.Classification{Label: provenance.LabelReal})
		require.NoError(t, err)
		assert.Equal(t, provenance.TxConfirmed, outcome.Status)
		assert.Equal(t, big.NewInt(3*params.GWei).String(), backend.Accepted()[0].GasPrice().String())
	})
}
