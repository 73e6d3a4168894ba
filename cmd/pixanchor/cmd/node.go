package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/pixanchor/pixanchor/engine/ingestion"
	"github.com/pixanchor/pixanchor/module"
	"github.com/pixanchor/pixanchor/module/classifier"
	"github.com/pixanchor/pixanchor/module/dedup"
	"github.com/pixanchor/pixanchor/module/features"
	"github.com/pixanchor/pixanchor/module/ledger"
	"github.com/pixanchor/pixanchor/module/metrics"
	"github.com/pixanchor/pixanchor/storage"
	bstorage "github.com/pixanchor/pixanchor/storage/badger"
)

type metricsCollectors struct {
	detection module.DetectionMetrics
	ledger    module.LedgerMetrics
	ingestion module.IngestionMetrics
	cache     module.CacheMetrics
	server    *metrics.Server
}

// initMetrics returns noop collectors unless a metrics port is configured.
func initMetrics() (*metricsCollectors, error) {
	if cfg.MetricsPort == 0 {
		noop := metrics.NewNoopCollector()
		return &metricsCollectors{detection: noop, ledger: noop, ingestion: noop, cache: noop}, nil
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mc := &metricsCollectors{
		detection: metrics.NewDetectionCollector(registry),
		ledger:    metrics.NewLedgerCollector(registry),
		ingestion: metrics.NewIngestionCollector(registry),
		cache:     metrics.NewCacheCollector(registry),
		server:    metrics.NewServer(log, cfg.MetricsPort, registry),
	}
	err := mc.server.Start()
	if err != nil {
		return nil, fmt.Errorf("could not start metrics server: %w", err)
	}
	return mc, nil
}

func (mc *metricsCollectors) close() error {
	if mc.server == nil {
		return nil
	}
	return mc.server.Shutdown(context.Background())
}

func initLedger(ledgerMetrics module.LedgerMetrics) (*ledger.Client, error) {
	client, err := ledger.NewClient(log, ledgerMetrics, cfg.LedgerClientConfig(), ledger.DialRPC)
	if err != nil {
		return nil, fmt.Errorf("could not create ledger client: %w", err)
	}
	return client, nil
}

func initStorage(cacheMetrics module.CacheMetrics) (*badger.DB, *storage.All, error) {
	err := os.MkdirAll(cfg.DataDir, 0o700)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create data directory: %w", err)
	}
	opts := badger.DefaultOptions(cfg.DataDir).WithKeepL0InMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open database at %s: %w", cfg.DataDir, err)
	}
	all, err := bstorage.InitAll(cacheMetrics, db)
	if err != nil {
		return nil, nil, multierr.Append(err, db.Close())
	}
	return db, all, nil
}

func initClassifier() module.Classifier {
	if cfg.Classifier.Endpoint == "" {
		return classifier.NewUnavailable(log)
	}
	return classifier.NewRemote(log, cfg.ClassifierConfig())
}

// node wires storage, detection, classification and the ledger client into
// an ingestion coordinator.
type node struct {
	metrics     *metricsCollectors
	db          *badger.DB
	storage     *storage.All
	ledger      *ledger.Client
	detector    *dedup.Detector
	coordinator *ingestion.Coordinator
}

func newNode() (*node, error) {
	n := &node{}
	var err error

	n.metrics, err = initMetrics()
	if err != nil {
		return nil, err
	}

	n.db, n.storage, err = initStorage(n.metrics.cache)
	if err != nil {
		return nil, multierr.Append(err, n.close())
	}

	n.ledger, err = initLedger(n.metrics.ledger)
	if err != nil {
		return nil, multierr.Append(err, n.close())
	}

	extractor := features.NewExtractor(log, cfg.ExtractorConfig())
	n.detector, err = dedup.NewDetector(log, n.metrics.detection, n.metrics.cache, n.storage.Images, extractor, cfg.DetectorConfig())
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("could not create duplicate detector: %w", err), n.close())
	}

	n.coordinator = ingestion.NewCoordinator(
		log,
		n.metrics.ingestion,
		n.detector,
		initClassifier(),
		n.ledger,
		n.storage.Images,
		n.storage.AuditLogs,
		cfg.IngestionConfig(),
	)
	return n, nil
}

// close releases whatever was initialized, in reverse order.
func (n *node) close() error {
	var err error
	if n.detector != nil {
		n.detector.Stop()
	}
	if n.ledger != nil {
		n.ledger.Close()
	}
	if n.storage != nil {
		if images, ok := n.storage.Images.(*bstorage.Images); ok {
			err = multierr.Append(err, images.Close())
		}
	}
	if n.db != nil {
		err = multierr.Append(err, n.db.Close())
	}
	if n.metrics != nil {
		err = multierr.Append(err, n.metrics.close())
	}
	return err
}

// closeNode logs shutdown failures of a node that has done its work.
func closeNode(n *node) {
	if err := n.close(); err != nil {
		log.Error().Err(err).Msg("could not shut down cleanly")
	}
}
