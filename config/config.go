// Package config loads the pixanchor configuration from the embedded
// defaults, an optional config file, the environment and command line flags,
// in increasing order of precedence.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pixanchor/pixanchor/engine/ingestion"
	"github.com/pixanchor/pixanchor/module/classifier"
	"github.com/pixanchor/pixanchor/module/dedup"
	"github.com/pixanchor/pixanchor/module/features"
	"github.com/pixanchor/pixanchor/module/ledger"
)

//go:embed default-config.yml
var defaultConfig []byte

// Config is the complete pixanchor configuration.
type Config struct {
	DataDir     string `validate:"required" mapstructure:"datadir"`
	LogLevel    string `validate:"oneof=trace debug info warn error" mapstructure:"log-level"`
	MetricsPort uint   `validate:"lte=65535" mapstructure:"metrics-port"`

	Ingestion  IngestionConfig  `mapstructure:"ingestion"`
	Features   FeaturesConfig   `mapstructure:"features"`
	Detection  DetectionConfig  `mapstructure:"detection"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
}

type IngestionConfig struct {
	MaxImageSize ByteSize `validate:"gt=0" mapstructure:"max-image-size"`
	// Workers bounds the submissions processed concurrently by batch ingest.
	Workers int `validate:"gte=1" mapstructure:"workers"`
}

type FeaturesConfig struct {
	MaxKeypoints  int     `validate:"gt=0" mapstructure:"max-keypoints"`
	MaxDimension  int     `validate:"gte=64" mapstructure:"max-dimension"`
	PyramidLevels int     `validate:"gte=1" mapstructure:"pyramid-levels"`
	ScaleFactor   float64 `validate:"gt=1" mapstructure:"scale-factor"`
	FastThreshold int     `validate:"gt=0,lt=255" mapstructure:"fast-threshold"`
}

type DetectionConfig struct {
	SimilarityThreshold float64 `validate:"gt=0,lte=1" mapstructure:"similarity-threshold"`
	Workers             int     `validate:"gte=1" mapstructure:"workers"`
	ChunkSize           int     `validate:"gt=0" mapstructure:"chunk-size"`
	CacheSize           int     `validate:"gte=0" mapstructure:"cache-size"`
}

type ClassifierConfig struct {
	Endpoint       string               `validate:"omitempty,url" mapstructure:"endpoint"`
	Timeout        time.Duration        `validate:"gt=0" mapstructure:"timeout"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit-breaker"`
}

// CircuitBreakerConfig stops calls to the model server after repeated
// failures until the restore timeout elapsed.
type CircuitBreakerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	MaxFailures    uint32        `validate:"gt=0" mapstructure:"max-failures"`
	MaxRequests    uint32        `validate:"gt=0" mapstructure:"max-requests"`
	RestoreTimeout time.Duration `validate:"gt=0" mapstructure:"restore-timeout"`
}

type LedgerConfig struct {
	Endpoint            string        `validate:"required,url" mapstructure:"endpoint"`
	PrivateKey          string        `validate:"omitempty,hexadecimal" mapstructure:"private-key"`
	ContractAddress     string        `validate:"required,eth_addr" mapstructure:"contract-address"`
	GasLimit            uint64        `validate:"gt=0" mapstructure:"gas-limit"`
	GasPriceGwei        uint64        `validate:"gt=0" mapstructure:"gas-price-gwei"`
	GasPriceMultiplier  float64       `validate:"gte=1" mapstructure:"gas-price-multiplier"`
	ConnectionTimeout   time.Duration `validate:"gt=0" mapstructure:"connection-timeout"`
	BroadcastTimeout    time.Duration `validate:"gt=0" mapstructure:"broadcast-timeout"`
	ConfirmationTimeout time.Duration `validate:"gt=0" mapstructure:"confirmation-timeout"`
	StoreRetries        uint64        `mapstructure:"store-retries"`
	RetryDelay          time.Duration `validate:"gt=0" mapstructure:"retry-delay"`
	NonceAttempts       uint64        `validate:"gte=1" mapstructure:"nonce-attempts"`
	NonceRetryDelay     time.Duration `validate:"gt=0" mapstructure:"nonce-retry-delay"`
}

// envBindings maps ledger settings to the environment variables deployments
// already use for them.
var envBindings = map[string]string{
	"ledger.endpoint":             "BLOCKCHAIN_RPC",
	"ledger.private-key":          "BLOCKCHAIN_PRIVATE_KEY",
	"ledger.contract-address":     "CONTRACT_ADDRESS",
	"ledger.gas-limit":            "GAS_LIMIT",
	"ledger.gas-price-gwei":       "GAS_PRICE_GWEI",
	"ledger.confirmation-timeout": "BLOCKCHAIN_TX_TIMEOUT",
	"ledger.connection-timeout":   "BLOCKCHAIN_CONN_TIMEOUT",
	"ledger.broadcast-timeout":    "BLOCKCHAIN_BROADCAST_TIMEOUT",
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return unmarshal(v)
}

// Load reads the configuration. A non-empty path names a YAML file merged
// over the defaults. Environment variables override the file, flags that
// were set on the command line override everything.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		err = v.MergeInConfig()
		if err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix("PIXANCHOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		err = v.BindEnv(key, env)
		if err != nil {
			return nil, fmt.Errorf("could not bind %s to %s: %w", key, env, err)
		}
	}

	if flags != nil {
		err = bindFlags(v, flags)
		if err != nil {
			return nil, err
		}
	}

	return unmarshal(v)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	err := v.ReadConfig(bytes.NewReader(defaultConfig))
	if err != nil {
		return nil, fmt.Errorf("could not read default config: %w", err)
	}
	return v, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		StringToByteSizeHookFunc(),
		SecondsToDurationHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return nil, fmt.Errorf("could not decode config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration. Field constraints are declared in the
// struct tags.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return NewInvalidConfigErrorf("%d invalid field(s): %s", len(fieldErrs), describe(fieldErrs))
		}
		return fmt.Errorf("could not validate config: %w", err)
	}
	return nil
}

func describe(fieldErrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s (%s=%v, got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return strings.Join(parts, "; ")
}

// LedgerClientConfig converts the ledger section into the client config.
func (c *Config) LedgerClientConfig() ledger.Config {
	l := c.Ledger
	return ledger.Config{
		Endpoint:            l.Endpoint,
		PrivateKey:          strings.TrimPrefix(l.PrivateKey, "0x"),
		ContractAddress:     l.ContractAddress,
		GasLimit:            l.GasLimit,
		GasPriceGwei:        l.GasPriceGwei,
		GasPriceMultiplier:  l.GasPriceMultiplier,
		ConnectionTimeout:   l.ConnectionTimeout,
		BroadcastTimeout:    l.BroadcastTimeout,
		ConfirmationTimeout: l.ConfirmationTimeout,
		Retry: ledger.RetryPolicy{
			MaxRetries:   l.StoreRetries,
			InitialDelay: l.RetryDelay,
		},
		NonceAttempts:   l.NonceAttempts,
		NonceRetryDelay: l.NonceRetryDelay,
	}
}

func (c *Config) ExtractorConfig() features.Config {
	f := c.Features
	return features.Config{
		MaxKeypoints:  f.MaxKeypoints,
		MaxDimension:  f.MaxDimension,
		Levels:        f.PyramidLevels,
		ScaleFactor:   f.ScaleFactor,
		FastThreshold: f.FastThreshold,
	}
}

func (c *Config) DetectorConfig() dedup.Config {
	d := c.Detection
	return dedup.Config{
		Threshold: d.SimilarityThreshold,
		Workers:   d.Workers,
		ChunkSize: d.ChunkSize,
		CacheSize: d.CacheSize,
	}
}

func (c *Config) IngestionConfig() ingestion.Config {
	return ingestion.Config{MaxImageSize: uint64(c.Ingestion.MaxImageSize)}
}

func (c *Config) ClassifierConfig() classifier.Config {
	cl := c.Classifier
	return classifier.Config{
		Endpoint: cl.Endpoint,
		Timeout:  cl.Timeout,
		CircuitBreaker: classifier.CircuitBreakerConfig{
			Enabled:        cl.CircuitBreaker.Enabled,
			MaxFailures:    cl.CircuitBreaker.MaxFailures,
			MaxRequests:    cl.CircuitBreaker.MaxRequests,
			RestoreTimeout: cl.CircuitBreaker.RestoreTimeout,
		},
	}
}
