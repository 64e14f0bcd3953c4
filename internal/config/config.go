// Package config loads and validates process configuration.
//
// Values come from an optional YAML/JSON file, overlaid by COPYTRADER_*
// environment variables (nested keys joined with "_"). A .env file, when
// present, is loaded into the environment first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"solana-copy-trader/internal/domain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "COPYTRADER"

// Config is the full process configuration.
type Config struct {
	RPCURL               string   `mapstructure:"rpc_url" validate:"omitempty,url"`
	WSURL                string   `mapstructure:"ws_url" validate:"omitempty,url"`
	TargetWallets        []string `mapstructure:"target_wallets" validate:"dive,required"`
	CopyWalletPrivateKey string   `mapstructure:"copy_wallet_private_key"`

	Execution  ExecutionConfig  `mapstructure:"execution_config"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	Normalizer NormalizerConfig `mapstructure:"normalizer"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Log        LogConfig        `mapstructure:"log"`
}

// ExecutionConfig holds the copy-trade policy and retry settings.
type ExecutionConfig struct {
	Enabled                      bool          `mapstructure:"enabled"`
	MinTradeAmount               float64       `mapstructure:"min_trade_amount" validate:"gte=0"`
	MaxTradeAmount               float64       `mapstructure:"max_trade_amount" validate:"gtefield=MinTradeAmount"`
	MaxPositionSize              float64       `mapstructure:"max_position_size" validate:"gt=0"`
	SlippageTolerance            float64       `mapstructure:"slippage_tolerance" validate:"gte=0,lt=1"`
	GasPriceMultiplier           float64       `mapstructure:"gas_price_multiplier" validate:"gte=1"`
	BasePriorityFeeMicroLamports uint64        `mapstructure:"base_priority_fee_micro_lamports"`
	ComputeUnitLimit             uint32        `mapstructure:"compute_unit_limit" validate:"gt=0,lte=1400000"`
	MaxAttempts                  int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	RetryInitialInterval         time.Duration `mapstructure:"retry_initial_interval" validate:"gt=0"`
	RetryMaxInterval             time.Duration `mapstructure:"retry_max_interval" validate:"gtefield=RetryInitialInterval"`
	Workers                      int           `mapstructure:"workers" validate:"gte=1"`
	SubmitTimeout                time.Duration `mapstructure:"submit_timeout" validate:"gt=0"`
}

// MonitorConfig configures the live stream.
type MonitorConfig struct {
	QueueSize         int           `mapstructure:"queue_size" validate:"gte=1"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay" validate:"gt=0"`
	MaxReconnectDelay time.Duration `mapstructure:"max_reconnect_delay" validate:"gtefield=ReconnectDelay"`
	PingInterval      time.Duration `mapstructure:"ping_interval" validate:"gt=0"`
	Commitment        string        `mapstructure:"commitment" validate:"oneof=processed confirmed finalized"`
}

// NormalizerConfig configures signature deduplication.
type NormalizerConfig struct {
	DedupSize int           `mapstructure:"dedup_size" validate:"gte=1"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisTTL  time.Duration `mapstructure:"redis_ttl" validate:"gt=0"`
}

// LedgerConfig selects the ledger backend and its mirrors.
type LedgerConfig struct {
	Backend       string `mapstructure:"backend" validate:"oneof=memory badger postgres"`
	Path          string `mapstructure:"path"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickhouseDSN string `mapstructure:"clickhouse_dsn"`
	// RedisStream publishes records to a Redis stream on normalizer.redis_addr.
	RedisStream string `mapstructure:"redis_stream"`
}

// KafkaConfig enables the Kafka record publisher when Brokers is set.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// HTTPConfig configures the operator API.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// Options controls where Load reads from.
type Options struct {
	// Path is a config file. Empty means defaults plus environment only.
	Path string
	// EnvFile is loaded into the environment before reading. Missing files are ignored.
	EnvFile string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc_url", "")
	v.SetDefault("ws_url", "")
	v.SetDefault("target_wallets", []string{})
	v.SetDefault("copy_wallet_private_key", "")

	v.SetDefault("execution_config.enabled", false)
	v.SetDefault("execution_config.min_trade_amount", 0.01)
	v.SetDefault("execution_config.max_trade_amount", 1.0)
	v.SetDefault("execution_config.max_position_size", 5.0)
	v.SetDefault("execution_config.slippage_tolerance", 0.01)
	v.SetDefault("execution_config.gas_price_multiplier", 1.5)
	v.SetDefault("execution_config.base_priority_fee_micro_lamports", 10_000)
	v.SetDefault("execution_config.compute_unit_limit", 200_000)
	v.SetDefault("execution_config.max_attempts", 3)
	v.SetDefault("execution_config.retry_initial_interval", "500ms")
	v.SetDefault("execution_config.retry_max_interval", "5s")
	v.SetDefault("execution_config.workers", 4)
	v.SetDefault("execution_config.submit_timeout", "30s")

	v.SetDefault("monitor.queue_size", 4096)
	v.SetDefault("monitor.reconnect_delay", "1s")
	v.SetDefault("monitor.max_reconnect_delay", "30s")
	v.SetDefault("monitor.ping_interval", "30s")
	v.SetDefault("monitor.commitment", "confirmed")

	v.SetDefault("normalizer.dedup_size", 100_000)
	v.SetDefault("normalizer.redis_addr", "")
	v.SetDefault("normalizer.redis_ttl", "24h")

	v.SetDefault("ledger.backend", "badger")
	v.SetDefault("ledger.path", "data/ledger")
	v.SetDefault("ledger.postgres_dsn", "")
	v.SetDefault("ledger.clickhouse_dsn", "")
	v.SetDefault("ledger.redis_stream", "")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "copytrader.trade-records")

	v.SetDefault("http.addr", ":9090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads, overlays and validates configuration.
func Load(opts Options) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", opts.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Path != "" {
		v.SetConfigFile(opts.Path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.Path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.TargetWallets = splitList(cfg.TargetWallets)
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	if cfg.WSURL == "" && cfg.RPCURL != "" {
		ws, err := DeriveWSURL(cfg.RPCURL)
		if err != nil {
			return nil, err
		}
		cfg.WSURL = ws
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.WatchSet(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Ledger.Backend {
	case "postgres":
		if c.Ledger.PostgresDSN == "" {
			return errors.New("invalid config: ledger.postgres_dsn is required for the postgres backend")
		}
	case "badger":
		if c.Ledger.Path == "" {
			return errors.New("invalid config: ledger.path is required for the badger backend")
		}
	}
	if c.Ledger.RedisStream != "" && c.Normalizer.RedisAddr == "" {
		return errors.New("invalid config: ledger.redis_stream requires normalizer.redis_addr")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("invalid config: kafka.topic is required when brokers are set")
	}
	return nil
}

// ValidateLive checks the settings only the live mode needs.
func (c *Config) ValidateLive() error {
	if c.RPCURL == "" {
		return errors.New("invalid config: rpc_url is required")
	}
	if len(c.TargetWallets) == 0 {
		return errors.New("invalid config: at least one target wallet is required")
	}
	if c.Execution.Enabled && c.CopyWalletPrivateKey == "" {
		return errors.New("invalid config: copy_wallet_private_key is required when execution is enabled")
	}
	return nil
}

// Policy converts the execution settings to the read-only policy.
func (c *Config) Policy() domain.ExecutionPolicy {
	e := c.Execution
	return domain.ExecutionPolicy{
		Enabled:            e.Enabled,
		MinTradeAmount:     decimal.NewFromFloat(e.MinTradeAmount),
		MaxTradeAmount:     decimal.NewFromFloat(e.MaxTradeAmount),
		MaxPositionSize:    decimal.NewFromFloat(e.MaxPositionSize),
		SlippageTolerance:  decimal.NewFromFloat(e.SlippageTolerance),
		GasPriceMultiplier: decimal.NewFromFloat(e.GasPriceMultiplier),
		BasePriorityFee:    e.BasePriorityFeeMicroLamports,
		ComputeUnitLimit:   e.ComputeUnitLimit,
	}
}

// WatchSet builds the validated set of target wallets.
func (c *Config) WatchSet() (domain.WatchSet, error) {
	return domain.NewWatchSet(c.TargetWallets)
}

// DeriveWSURL maps an http(s) RPC URL to its ws(s) counterpart.
func DeriveWSURL(rpcURL string) (string, error) {
	u, err := url.Parse(rpcURL)
	if err != nil {
		return "", fmt.Errorf("parse rpc_url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("rpc_url: unsupported scheme %q", u.Scheme)
	}
	return u.String(), nil
}

// splitList accepts both list values and comma-separated environment strings.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
