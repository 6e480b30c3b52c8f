package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cryptofolio/pkg/binance"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Binance   BinanceConfig   `mapstructure:"binance"`
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	Log       LogConfig       `mapstructure:"log"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
}

type BinanceConfig struct {
	REST      RESTConfig `mapstructure:"rest"`
	WS        WSConfig   `mapstructure:"ws"`
	APIKey    string     `mapstructure:"api_key"`
	APISecret string     `mapstructure:"api_secret"`
	SSM       SSMConfig  `mapstructure:"ssm"`
}

type RESTConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RecvWindow time.Duration `mapstructure:"recv_window"`
	// TickerAttempts is how many times a price lookup is tried; 1 disables retries.
	TickerAttempts int `mapstructure:"ticker_attempts"`
}

type WSConfig struct {
	URL     string `mapstructure:"url"`
	Enabled bool   `mapstructure:"enabled"` // refresh cached prices from the mini ticker stream in watch mode
}

// SSMConfig names the Parameter Store entries holding the API key pair in prod.
type SSMConfig struct {
	APIKeyParam    string `mapstructure:"api_key_param"`
	APISecretParam string `mapstructure:"api_secret_param"`
}

type PortfolioConfig struct {
	QuoteAsset          string        `mapstructure:"quote_asset"`          // settlement currency, e.g. "USDT"
	BridgeAsset         string        `mapstructure:"bridge_asset"`         // two-hop pricing, e.g. "BTC"
	PriceTTL            time.Duration `mapstructure:"price_ttl"`            // price cache lifetime
	MinValue            float64       `mapstructure:"min_value"`            // dust threshold in quote asset
	SkipPrefixes        []string      `mapstructure:"skip_prefixes"`        // spot symbols mirroring earn positions
	KnownEarnAssets     []string      `mapstructure:"known_earn_assets"`    // looked up one by one if the bulk listing misses them
	TargetedConcurrency int           `mapstructure:"targeted_concurrency"` // parallel per-asset lookups
	PageSize            int           `mapstructure:"page_size"`            // earn listing page size
	Interval            time.Duration `mapstructure:"interval"`             // cycle period in watch mode
}

// MinValueDecimal returns the dust threshold as a decimal.
func (p PortfolioConfig) MinValueDecimal() decimal.Decimal {
	return decimal.NewFromFloat(p.MinValue)
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("binance.rest.base_url", binance.DefaultBaseURL)
	v.SetDefault("binance.rest.timeout", binance.DefaultTimeout)
	v.SetDefault("binance.rest.recv_window", 0)
	v.SetDefault("binance.rest.ticker_attempts", 1)
	v.SetDefault("binance.ws.url", binance.DefaultWSURL)
	v.SetDefault("binance.ws.enabled", false)
	v.SetDefault("binance.api_key", "")
	v.SetDefault("binance.api_secret", "")
	v.SetDefault("binance.ssm.api_key_param", "")
	v.SetDefault("binance.ssm.api_secret_param", "")

	v.SetDefault("portfolio.quote_asset", "USDT")
	v.SetDefault("portfolio.bridge_asset", "BTC")
	v.SetDefault("portfolio.price_ttl", 5*time.Minute)
	v.SetDefault("portfolio.min_value", 1.0)
	v.SetDefault("portfolio.skip_prefixes", []string{"LD"})
	v.SetDefault("portfolio.known_earn_assets", []string{})
	v.SetDefault("portfolio.targeted_concurrency", 4)
	v.SetDefault("portfolio.page_size", 100)
	v.SetDefault("portfolio.interval", time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_file", "")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.retention", 0)
}

// Load loads application configuration using Viper.
// It reads from path, or config.yaml next to the binary when path is empty,
// and overrides with environment variables. A missing default config file is
// not an error: every setting can come from the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")

		ex, _ := os.Executable()
		if strings.Contains(ex, "go-build") {
			pwd, _ := os.Getwd()
			v.AddConfigPath(filepath.Join(pwd, "../../config"))
		} else {
			v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
		}
		v.AddConfigPath("./config")
	}

	// Support environment variables with dot notation (e.g., BINANCE_API_KEY)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the preconditions that must hold before any network call.
func (c *Config) Validate() error {
	if c.Binance.APIKey == "" || c.Binance.APISecret == "" {
		return fmt.Errorf("binance.api_key / binance.api_secret: %w", binance.ErrMissingCredentials)
	}
	if c.Portfolio.QuoteAsset == "" {
		return errors.New("portfolio.quote_asset is required")
	}
	if c.Portfolio.QuoteAsset == c.Portfolio.BridgeAsset {
		return fmt.Errorf("portfolio.bridge_asset must differ from quote asset %s", c.Portfolio.QuoteAsset)
	}
	if c.Portfolio.Interval <= 0 {
		return fmt.Errorf("portfolio.interval must be positive, got %s", c.Portfolio.Interval)
	}
	if c.Portfolio.MinValue < 0 {
		return fmt.Errorf("portfolio.min_value must not be negative, got %v", c.Portfolio.MinValue)
	}
	return nil
}

// TickerPolicy returns the retry policy for price lookups.
func (c *Config) TickerPolicy() binance.RetryPolicy {
	if c.Binance.REST.TickerAttempts <= 1 {
		return binance.SinglePolicy
	}
	p := binance.TargetedPolicy
	p.MaxAttempts = c.Binance.REST.TickerAttempts
	return p
}

// Credentials returns the Binance key pair.
func (c *Config) Credentials() binance.Credentials {
	return binance.Credentials{APIKey: c.Binance.APIKey, APISecret: c.Binance.APISecret}
}
