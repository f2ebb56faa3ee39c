package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Cache    CacheConfig    `mapstructure:"cache"`
	Data     DataConfig     `mapstructure:"data"`
	DocStore DocStoreConfig `mapstructure:"docstore"`
	TMDB     TMDBConfig     `mapstructure:"tmdb"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	API      APIConfig      `mapstructure:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CacheConfig holds the on-disk response cache settings
type CacheConfig struct {
	Dir string `mapstructure:"dir"`
	// MaxUsedPct stops cache writes when the filesystem is fuller than this
	MaxUsedPct float64 `mapstructure:"max_used_pct"`
}

// DataConfig holds local data directory settings
type DataConfig struct {
	Dir string `mapstructure:"dir"`
}

// DocStoreConfig holds document store connection settings
type DocStoreConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// TMDBConfig holds TMDB API settings
type TMDBConfig struct {
	Token    string `mapstructure:"token"`
	Language string `mapstructure:"language"`
	// RateConcurrent requests per RateDuration shared by every TMDB caller
	RateConcurrent int           `mapstructure:"rate_concurrent"`
	RateDuration   time.Duration `mapstructure:"rate_duration"`
}

// HTTPConfig holds outbound HTTP settings
type HTTPConfig struct {
	TimeoutMS int `mapstructure:"timeout_ms"`
	Retries   int `mapstructure:"retries"`
}

// Timeout returns the per-attempt timeout as a duration
func (h HTTPConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutMS) * time.Millisecond
}

// JobsConfig holds scheduler intervals
type JobsConfig struct {
	SyncInterval       time.Duration `mapstructure:"sync_interval"`
	MergeInterval      time.Duration `mapstructure:"merge_interval"`
	MergeFirstDelay    time.Duration `mapstructure:"merge_first_delay"`
	CachePurgeInterval time.Duration `mapstructure:"cache_purge_interval"`
	ShutdownGrace      time.Duration `mapstructure:"shutdown_grace"`
	SyncConcurrency    int           `mapstructure:"sync_concurrency"`
}

// APIConfig holds API server settings
type APIConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

var cfg *Config

// bindEnvWithAlternatives binds a viper key to environment variables with
// alternative names, so both STREAMHUB_DOCSTORE_URI and DOCSTORE_URI work
func bindEnvWithAlternatives(key string, alternatives ...string) {
	viper.BindEnv(key)
	for _, alt := range alternatives {
		if value := os.Getenv(alt); value != "" {
			viper.Set(key, value)
			break
		}
	}
}

// Load reads configuration from file and environment variables
func Load() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/streamhub")

	setDefaults()

	viper.SetEnvPrefix("STREAMHUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Docker-style env vars alongside the STREAMHUB_ prefix
	bindEnvWithAlternatives("cache.dir", "CACHE_DIR")
	viper.BindEnv("cache.max_used_pct")
	bindEnvWithAlternatives("data.dir", "DATA_DIR")
	bindEnvWithAlternatives("docstore.uri", "DOCSTORE_URI")
	bindEnvWithAlternatives("docstore.database", "DOCSTORE_DB")
	bindEnvWithAlternatives("tmdb.token", "TMDB_TOKEN")
	viper.BindEnv("tmdb.language")
	viper.BindEnv("tmdb.rate_concurrent")
	viper.BindEnv("tmdb.rate_duration")
	bindEnvWithAlternatives("http.timeout_ms", "HTTP_TIMEOUT_MS")
	bindEnvWithAlternatives("http.retries", "HTTP_RETRIES")
	bindEnvWithAlternatives("jobs.sync_interval", "SYNC_INTERVAL")
	bindEnvWithAlternatives("jobs.merge_interval", "MERGE_INTERVAL")
	bindEnvWithAlternatives("jobs.merge_first_delay", "MERGE_FIRST_DELAY")
	viper.BindEnv("jobs.cache_purge_interval")
	viper.BindEnv("jobs.shutdown_grace")
	viper.BindEnv("jobs.sync_concurrency")
	bindEnvWithAlternatives("api.port", "API_PORT")
	bindEnvWithAlternatives("logging.level", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		return &Config{}
	}
	return cfg
}

// Set replaces the current configuration (primarily for testing)
func Set(c *Config) {
	cfg = c
}

func setDefaults() {
	viper.SetDefault("cache.dir", "./data/cache")
	viper.SetDefault("cache.max_used_pct", 95.0)
	viper.SetDefault("data.dir", "./data")

	viper.SetDefault("docstore.database", "streamhub")

	viper.SetDefault("tmdb.language", "en-US")
	viper.SetDefault("tmdb.rate_concurrent", 45)
	viper.SetDefault("tmdb.rate_duration", "1s")

	viper.SetDefault("http.timeout_ms", 10000)
	viper.SetDefault("http.retries", 3)

	viper.SetDefault("jobs.sync_interval", "1h")
	viper.SetDefault("jobs.merge_interval", "3m")
	viper.SetDefault("jobs.merge_first_delay", "30s")
	viper.SetDefault("jobs.cache_purge_interval", "15m")
	viper.SetDefault("jobs.shutdown_grace", "30s")
	viper.SetDefault("jobs.sync_concurrency", 0)

	viper.SetDefault("api.port", 8080)

	viper.SetDefault("logging.level", "info")
}

func validate() error {
	if cfg.DocStore.URI == "" {
		return fmt.Errorf("docstore.uri is required")
	}
	if cfg.DocStore.Database == "" {
		return fmt.Errorf("docstore.database is required")
	}
	if cfg.TMDB.Token == "" {
		return fmt.Errorf("tmdb.token is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level != "" && !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	if cfg.HTTP.TimeoutMS <= 0 {
		return fmt.Errorf("http.timeout_ms must be positive")
	}
	if cfg.HTTP.Retries < 1 {
		return fmt.Errorf("http.retries must be at least 1")
	}
	if cfg.Jobs.SyncInterval <= 0 || cfg.Jobs.MergeInterval <= 0 {
		return fmt.Errorf("job intervals must be positive")
	}

	return nil
}
