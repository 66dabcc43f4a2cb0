package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the metrics fetcher.
type Config struct {
	// API keys. A missing key disables that provider, it is not an error.
	FMPAPIKey          string `mapstructure:"fmp_api_key"`
	EODHDAPIKey        string `mapstructure:"eodhd_api_key"`
	AlphavantageAPIKey string `mapstructure:"alphavantage_api_key"`
	TavilyAPIKey       string `mapstructure:"tavily_api_key"`

	// Base URLs for API endpoints (configurable for testing)
	YahooBaseURL        string `mapstructure:"yahoo_base_url" validate:"required,url"`
	FMPBaseURL          string `mapstructure:"fmp_base_url" validate:"required,url"`
	EODHDBaseURL        string `mapstructure:"eodhd_base_url" validate:"required,url"`
	AlphavantageBaseURL string `mapstructure:"alphavantage_base_url" validate:"required,url"`
	TavilyBaseURL       string `mapstructure:"tavily_base_url" validate:"required,url"`

	// Aggregation tuning
	PerSourceTimeout  time.Duration `mapstructure:"per_source_timeout" validate:"gt=0"`
	GapFillTimeout    time.Duration `mapstructure:"gap_fill_timeout" validate:"gt=0"`
	FXCacheTTL        time.Duration `mapstructure:"fx_cache_ttl" validate:"gt=0"`
	CoverageThreshold float64       `mapstructure:"coverage_threshold" validate:"gt=0,lte=1"`
	MaxGapFillFields  int           `mapstructure:"max_gap_fill_fields" validate:"gte=1,lte=16"`
	RescueSuffixes    []string      `mapstructure:"rescue_suffixes" validate:"dive,startswith=."`

	// Circuit breakers on the paid APIs
	BreakerFailures int           `mapstructure:"breaker_failures" validate:"gte=1"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" validate:"gt=0"`

	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"oneof=json console pretty"`
	HTTPAddr  string `mapstructure:"http_addr" validate:"required"`
}

// defaults are applied before the environment and the config file.
var defaults = map[string]any{
	"yahoo_base_url":        "https://query2.finance.yahoo.com",
	"fmp_base_url":          "https://financialmodelingprep.com/stable",
	"eodhd_base_url":        "https://eodhd.com/api",
	"alphavantage_base_url": "https://www.alphavantage.co/query",
	"tavily_base_url":       "https://api.tavily.com",
	"per_source_timeout":    "15s",
	"gap_fill_timeout":      "5s",
	"fx_cache_ttl":          "1h",
	"coverage_threshold":    0.70,
	"max_gap_fill_fields":   5,
	"rescue_suffixes":       []string{".HK", ".TW", ".KS", ".T"},
	"breaker_failures":      3,
	"breaker_cooldown":      "60s",
	"log_level":             "info",
	"log_format":            "json",
	"http_addr":             ":8080",
	"fmp_api_key":           "",
	"eodhd_api_key":         "",
	"alphavantage_api_key":  "",
	"tavily_api_key":        "",
}

// Load reads configuration from a .env file, environment variables and an
// optional config file. Environment variables take precedence over config
// file values, and variables already set win over the .env file.
//
// Recognized environment variables are the upper-cased keys, e.g.
//   - FMP_API_KEY, EODHD_API_KEY, ALPHAVANTAGE_API_KEY, TAVILY_API_KEY
//   - YAHOO_BASE_URL, FMP_BASE_URL, EODHD_BASE_URL, ALPHAVANTAGE_BASE_URL, TAVILY_BASE_URL
//   - PER_SOURCE_TIMEOUT, GAP_FILL_TIMEOUT, FX_CACHE_TTL
//   - COVERAGE_THRESHOLD, MAX_GAP_FILL_FIELDS, RESCUE_SUFFIXES (comma separated)
//   - BREAKER_FAILURES, BREAKER_COOLDOWN
//   - LOG_LEVEL, LOG_FORMAT, HTTP_ADDR
func Load(envFiles ...string) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	// Optionally read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.metricsfetcher")
	_ = v.ReadInConfig()

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.LogLevel = strings.ToLower(config.LogLevel)
	config.LogFormat = strings.ToLower(config.LogFormat)
	for i, s := range config.RescueSuffixes {
		config.RescueSuffixes[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}
