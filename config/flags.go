package config

import (
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// All constant strings are used for CLI flag names and corresponding keys for
// config values.
const (
	dataDir     = "datadir"
	logLevel    = "log-level"
	metricsPort = "metrics-port"

	maxImageSize     = "ingestion.max-image-size"
	ingestionWorkers = "ingestion.workers"

	similarityThreshold = "detection.similarity-threshold"
	detectionWorkers    = "detection.workers"

	classifierEndpoint = "classifier.endpoint"
	classifierTimeout  = "classifier.timeout"

	ledgerEndpoint            = "ledger.endpoint"
	ledgerPrivateKey          = "ledger.private-key"
	ledgerContractAddress     = "ledger.contract-address"
	ledgerGasLimit            = "ledger.gas-limit"
	ledgerGasPriceGwei        = "ledger.gas-price-gwei"
	ledgerConfirmationTimeout = "ledger.confirmation-timeout"
	ledgerStoreRetries        = "ledger.store-retries"
)

// flagNames maps the flags registered by InitializeFlags to their config
// keys.
var flagNames = map[string]string{
	"datadir":              dataDir,
	"log-level":            logLevel,
	"metrics-port":         metricsPort,
	"max-image-size":       maxImageSize,
	"workers":              ingestionWorkers,
	"similarity-threshold": similarityThreshold,
	"scan-workers":         detectionWorkers,
	"classifier":           classifierEndpoint,
	"classifier-timeout":   classifierTimeout,
	"rpc":                  ledgerEndpoint,
	"private-key":          ledgerPrivateKey,
	"contract":             ledgerContractAddress,
	"gas-limit":            ledgerGasLimit,
	"gas-price-gwei":       ledgerGasPriceGwei,
	"tx-timeout":           ledgerConfirmationTimeout,
	"store-retries":        ledgerStoreRetries,
}

// InitializeFlags registers the command line flags on the provided flag set,
// using the values of config as flag defaults.
func InitializeFlags(flags *pflag.FlagSet, config *Config) {
	flags.String("datadir", config.DataDir, "directory of the image database")
	flags.String("log-level", config.LogLevel, "log level (trace, debug, info, warn, error)")
	flags.Uint("metrics-port", config.MetricsPort, "port of the prometheus metrics endpoint, 0 disables it")
	flags.String("max-image-size", config.Ingestion.MaxImageSize.String(), "maximum size of a submitted image, e.g. 16MB")
	flags.Int("workers", config.Ingestion.Workers, "number of submissions processed concurrently by batch commands")
	flags.Float64("similarity-threshold", config.Detection.SimilarityThreshold, "similarity at or above which an image is a near duplicate")
	flags.Int("scan-workers", config.Detection.Workers, "number of workers scoring the corpus during a duplicate check")
	flags.String("classifier", config.Classifier.Endpoint, "URL of the deepfake model server, empty disables classification")
	flags.Duration("classifier-timeout", config.Classifier.Timeout, "timeout of a classification request")
	flags.String("rpc", config.Ledger.Endpoint, "JSON-RPC endpoint of the ledger")
	flags.String("private-key", config.Ledger.PrivateKey, "hex encoded key of the signing account, empty for read-only use")
	flags.String("contract", config.Ledger.ContractAddress, "address of the provenance registry contract")
	flags.Uint64("gas-limit", config.Ledger.GasLimit, "gas limit of ledger transactions")
	flags.Uint64("gas-price-gwei", config.Ledger.GasPriceGwei, "gas price used when the network price is unavailable")
	flags.Duration("tx-timeout", config.Ledger.ConfirmationTimeout, "time to wait for a transaction receipt")
	flags.Uint64("store-retries", config.Ledger.StoreRetries, "additional attempts of a failed record store")
}

// bindFlags binds every registered flag present in the flag set to its config
// key. Flags only take precedence once set on the command line.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagNames {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		err := v.BindPFlag(key, flag)
		if err != nil {
			return fmt.Errorf("could not bind flag %s: %w", name, err)
		}
	}
	return nil
}
