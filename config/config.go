// Package config loads the single configuration record shared by every
// command: a YAML file, struct-tag defaults, a .env file and environment
// overrides, validated once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Isaadqurashi/mlops-project/internal/features"
	"github.com/Isaadqurashi/mlops-project/internal/ingest"
	"github.com/Isaadqurashi/mlops-project/internal/logger"
	"github.com/Isaadqurashi/mlops-project/internal/monitor"
	"github.com/Isaadqurashi/mlops-project/internal/notification"
	"github.com/Isaadqurashi/mlops-project/internal/trainer"
)

// Region groups the default tickers of one market.
type Region struct {
	Name    string   `yaml:"name" validate:"required"`
	Symbols []string `yaml:"symbols" validate:"min=1,dive,required"`
}

// Config holds all application configuration.
type Config struct {
	Log logger.Config `yaml:"log"`

	DataDir      string `yaml:"data_dir" default:"data" validate:"required"`
	RawDir       string `yaml:"raw_dir"`
	ProcessedDir string `yaml:"processed_dir"`
	ModelsDir    string `yaml:"models_dir" default:"models" validate:"required"`
	ReportsDir   string `yaml:"reports_dir" default:"reports" validate:"required"`

	Features features.Config     `yaml:"features"`
	Trainer  trainer.Config      `yaml:"trainer"`
	Ingest   ingest.Config       `yaml:"ingest"`
	Monitor  monitor.Config      `yaml:"monitor"`
	Notify   notification.Config `yaml:"notify"`

	MetricsAddr string `yaml:"metrics_addr" default:":9090"`

	// Tickers is the universe processed when no symbols are given.
	Tickers []Region `yaml:"tickers" validate:"dive"`
	// Symbols overrides Tickers when set, e.g. from SYMBOLS.
	Symbols []string `yaml:"symbols" validate:"dive,required"`
	// Names maps tickers to display names used in alerts.
	Names map[string]string `yaml:"names"`
}

// SetDefaults fills what struct tags cannot express. It runs after the
// tag defaults.
func (c *Config) SetDefaults() {
	if defaults.CanUpdate(c.RawDir) {
		c.RawDir = filepath.Join(c.DataDir, "raw")
	}
	if defaults.CanUpdate(c.ProcessedDir) {
		c.ProcessedDir = filepath.Join(c.DataDir, "processed")
	}
	if len(c.Tickers) == 0 {
		c.Tickers = DefaultTickers()
	}
	if c.Names == nil {
		c.Names = DefaultNames()
	}
}

// DefaultTickers returns the built-in ticker universe by region.
func DefaultTickers() []Region {
	return []Region{
		{Name: "USA", Symbols: []string{"AAPL", "GOOGL", "MSFT", "NVDA", "TSLA", "AMZN"}},
		{Name: "Pakistan", Symbols: []string{"OGDC.KA", "LUCK.KA", "TRG.KA", "ENGRO.KA", "SYS.KA"}},
		{Name: "India", Symbols: []string{"RELIANCE.NS", "TCS.NS", "HDFCBANK.NS", "INFY.NS"}},
		{Name: "UK", Symbols: []string{"RR.L", "AZN.L", "HSBA.L", "BP.L"}},
		{Name: "Japan", Symbols: []string{"7203.T", "6758.T", "9984.T"}},
		{Name: "Hong Kong", Symbols: []string{"0700.HK", "9988.HK", "1810.HK"}},
		{Name: "Germany", Symbols: []string{"SAP.DE", "SIE.DE", "VOW3.DE"}},
	}
}

// DefaultNames returns display names for the built-in tickers.
func DefaultNames() map[string]string {
	return map[string]string{
		"AAPL":        "Apple (AAPL)",
		"GOOGL":       "Alphabet (GOOGL)",
		"MSFT":        "Microsoft (MSFT)",
		"NVDA":        "NVIDIA (NVDA)",
		"TSLA":        "Tesla (TSLA)",
		"AMZN":        "Amazon (AMZN)",
		"OGDC.KA":     "OGDC (OGDC.KA)",
		"LUCK.KA":     "Lucky Cement (LUCK.KA)",
		"TRG.KA":      "TRG Pakistan (TRG.KA)",
		"ENGRO.KA":    "Engro (ENGRO.KA)",
		"SYS.KA":      "Systems Limited (SYS.KA)",
		"RELIANCE.NS": "Reliance Industries (RELIANCE.NS)",
		"TCS.NS":      "Tata Consultancy Services (TCS.NS)",
		"HDFCBANK.NS": "HDFC Bank (HDFCBANK.NS)",
		"INFY.NS":     "Infosys (INFY.NS)",
		"RR.L":        "Rolls-Royce (RR.L)",
		"AZN.L":       "AstraZeneca (AZN.L)",
		"HSBA.L":      "HSBC (HSBA.L)",
		"BP.L":        "BP (BP.L)",
		"7203.T":      "Toyota (7203.T)",
		"6758.T":      "Sony (6758.T)",
		"9984.T":      "SoftBank Group (9984.T)",
		"0700.HK":     "Tencent (0700.HK)",
		"9988.HK":     "Alibaba (9988.HK)",
		"1810.HK":     "Xiaomi (1810.HK)",
		"SAP.DE":      "SAP (SAP.DE)",
		"SIE.DE":      "Siemens (SIE.DE)",
		"VOW3.DE":     "Volkswagen (VOW3.DE)",
	}
}

// Load reads the YAML file at path (optional), applies defaults, loads a
// .env file from the working directory if present, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	_ = godotenv.Load()
	cfg.loadFromEnv()

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration with every default applied and no
// file or environment input.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) loadFromEnv() {
	c.Ingest.AlphaVantageKey = getEnv("ALPHA_VANTAGE_API_KEY", c.Ingest.AlphaVantageKey)
	c.Notify.DiscordWebhookURL = getEnv("DISCORD_WEBHOOK_URL", c.Notify.DiscordWebhookURL)
	c.Notify.TelegramBotToken = getEnv("TELEGRAM_BOT_TOKEN", c.Notify.TelegramBotToken)
	c.Notify.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.Notify.TelegramChatID)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.ModelsDir = getEnv("MODELS_DIR", c.ModelsDir)
	c.ReportsDir = getEnv("REPORTS_DIR", c.ReportsDir)
	c.MetricsAddr = getEnv("METRICS_ADDR", c.MetricsAddr)

	if v := getEnv("SYMBOLS", ""); v != "" {
		c.Symbols = splitList(v)
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("featurecol", func(fl validator.FieldLevel) bool {
		return features.IsFeatureColumn(fl.Field().String())
	})
	return v
}

// Validate checks field constraints and the telegram pairing.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if (c.Notify.TelegramBotToken == "") != (c.Notify.TelegramChatID == "") {
		return errors.New("telegram bot token and chat id must be set together")
	}
	return nil
}

// AllTickers returns Symbols when set, otherwise every region's tickers in
// order, without duplicates.
func (c *Config) AllTickers() []string {
	if len(c.Symbols) > 0 {
		return c.Symbols
	}
	seen := make(map[string]bool)
	var out []string
	for _, r := range c.Tickers {
		for _, s := range r.Symbols {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

// DisplayName returns the configured name of symbol, or symbol itself.
func (c *Config) DisplayName(symbol string) string {
	if n := c.Names[symbol]; n != "" {
		return n
	}
	return symbol
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
