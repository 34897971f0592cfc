// Package config handles configuration loading for FinInsight.
// It supports YAML config files, a .env file and environment variable
// overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. FININSIGHT_API_PORT.
const EnvPrefix = "FININSIGHT"

// LegacyNewsKeyEnv is the variable the command-line tool has always read
// the NewsAPI key from.
const LegacyNewsKeyEnv = "NEWS_API_KEY"

// Config represents the complete application configuration.
type Config struct {
	News     NewsConfig     `mapstructure:"news"     yaml:"news"`
	Market   MarketConfig   `mapstructure:"market"   yaml:"market"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing"  yaml:"tracing"`
}

// NewsConfig holds the news provider settings. Without an API key the
// RSS feed is used.
type NewsConfig struct {
	APIKey     string  `mapstructure:"api_key"      yaml:"api_key"`
	BaseURL    string  `mapstructure:"base_url"     yaml:"base_url"     validate:"required,url"`
	PageSize   int     `mapstructure:"page_size"    yaml:"page_size"    validate:"min=1,max=100"`
	RSSURL     string  `mapstructure:"rss_url"      yaml:"rss_url"      validate:"required,contains={ticker}"`
	TimeoutSec int     `mapstructure:"timeout_sec"  yaml:"timeout_sec"  validate:"min=1,max=300"`
	RatePerSec float64 `mapstructure:"rate_per_sec" yaml:"rate_per_sec" validate:"gte=0"`
}

// MarketConfig holds the Yahoo Finance client settings.
type MarketConfig struct {
	BaseURL    string  `mapstructure:"base_url"     yaml:"base_url"     validate:"required,url"`
	CookieURL  string  `mapstructure:"cookie_url"   yaml:"cookie_url"   validate:"required,url"`
	TimeoutSec int     `mapstructure:"timeout_sec"  yaml:"timeout_sec"  validate:"min=1,max=300"`
	RatePerSec float64 `mapstructure:"rate_per_sec" yaml:"rate_per_sec" validate:"gte=0"`
}

// AnalysisConfig holds analysis engine settings.
type AnalysisConfig struct {
	CacheTTL          int `mapstructure:"cache_ttl"          yaml:"cache_ttl"          validate:"gte=0"` // seconds, 0 disables
	ConcurrentFetches int `mapstructure:"concurrent_fetches" yaml:"concurrent_fetches" validate:"min=1,max=64"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         validate:"min=1,max=65535"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level       string `mapstructure:"level"        yaml:"level"        validate:"oneof=trace debug info warn error"`
	Format      string `mapstructure:"format"       yaml:"format"       validate:"oneof=json pretty"`
	FileEnabled bool   `mapstructure:"file_enabled" yaml:"file_enabled"`
	FilePath    string `mapstructure:"file_path"    yaml:"file_path"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"  validate:"gte=0"`
	MaxAgeDays  int    `mapstructure:"max_age_days" yaml:"max_age_days" validate:"gte=0"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"      yaml:"enabled"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name" validate:"required"`
}

// Timeout returns the news request timeout.
func (c NewsConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSec) * time.Second }

// Timeout returns the market data request timeout.
func (c MarketConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSec) * time.Second }

// CacheDuration returns the provider cache lifetime.
func (c AnalysisConfig) CacheDuration() time.Duration { return time.Duration(c.CacheTTL) * time.Second }

// Addr returns the listen address.
func (c APIConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.fininsight/config.yaml (home directory)
//  3. /etc/fininsight/config.yaml (system)
//
// A .env file in the working directory is loaded first; it never replaces
// variables already set in the environment. Environment variables override
// config file values.
// Format: FININSIGHT_<SECTION>_<KEY>, e.g., FININSIGHT_API_PORT
func Load() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".fininsight"))
	v.AddConfigPath("/etc/fininsight")

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// News defaults
	v.SetDefault("news.api_key", "")
	v.SetDefault("news.base_url", "https://newsapi.org")
	v.SetDefault("news.page_size", 5)
	v.SetDefault("news.rss_url", "https://feeds.finance.yahoo.com/rss/2.0/headline?s={ticker}&region=US&lang=en-US")
	v.SetDefault("news.timeout_sec", 15)
	v.SetDefault("news.rate_per_sec", 2)

	// Market data defaults
	v.SetDefault("market.base_url", "https://query2.finance.yahoo.com")
	v.SetDefault("market.cookie_url", "https://fc.yahoo.com")
	v.SetDefault("market.timeout_sec", 30)
	v.SetDefault("market.rate_per_sec", 5)

	// Analysis defaults
	v.SetDefault("analysis.cache_ttl", 300) // 5 minutes
	v.SetDefault("analysis.concurrent_fetches", 4)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file_enabled", false)
	v.SetDefault("logging.file_path", "logs")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_age_days", 14)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "fininsight")
}

// overrideFromEnv fills the NewsAPI key from the legacy variable when no
// prefixed variable or config value provides one.
func overrideFromEnv(cfg *Config) {
	if cfg.News.APIKey != "" {
		return
	}
	if key := os.Getenv(LegacyNewsKeyEnv); key != "" {
		cfg.News.APIKey = key
	}
}

// loadDotEnv loads path into the environment if it exists.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
