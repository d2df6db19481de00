// Package ingest downloads daily price history from market-data providers
// and persists it as raw CSV under the data directory.
package ingest

import (
	"time"

	"github.com/Isaadqurashi/mlops-project/internal/model"
)

// DefaultYahooSuffixes mark exchanges Alpha Vantage does not cover.
var DefaultYahooSuffixes = []string{".KA", ".NS", ".L", ".T", ".HK", ".DE"}

// Config controls providers, history length and retry behaviour.
type Config struct {
	HistoryDays int `yaml:"history_days" default:"730" validate:"gt=0"`

	AlphaVantageURL string `yaml:"alpha_vantage_url" default:"https://www.alphavantage.co/query" validate:"url"`
	AlphaVantageKey string `yaml:"alpha_vantage_key"`
	// OutputSize is "compact" (about 100 bars) or "full".
	OutputSize string        `yaml:"output_size" default:"compact" validate:"oneof=compact full"`
	Timeout    time.Duration `yaml:"timeout" default:"30s"`

	Retries    int           `yaml:"retries" default:"3" validate:"gte=1"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"60s"`

	BreakerFailures int           `yaml:"breaker_failures" default:"3" validate:"gte=0"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" default:"5m"`

	YahooSuffixes []string `yaml:"yahoo_suffixes" default:"[\".KA\",\".NS\",\".L\",\".T\",\".HK\",\".DE\"]"`
}

// DefaultConfig returns the standard provider settings without an API key.
func DefaultConfig() Config {
	return Config{
		HistoryDays:     730,
		AlphaVantageURL: "https://www.alphavantage.co/query",
		OutputSize:      "compact",
		Timeout:         30 * time.Second,
		Retries:         3,
		RetryDelay:      time.Minute,
		BreakerFailures: 3,
		BreakerCooldown: 5 * time.Minute,
		YahooSuffixes:   append([]string(nil), DefaultYahooSuffixes...),
	}
}

// NewSource assembles the provider chain described by cfg.
func NewSource(cfg Config) *FallbackSource {
	var primary model.PriceSource
	if cfg.AlphaVantageKey != "" {
		primary = NewAlphaVantageSource(cfg.AlphaVantageURL, cfg.AlphaVantageKey, cfg.OutputSize, cfg.Timeout)
	}
	return NewFallbackSource(primary, NewYahooSource(), cfg.YahooSuffixes,
		NewCircuitBreaker("alphavantage", cfg.BreakerFailures, cfg.BreakerCooldown))
}
