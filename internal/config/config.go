package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Brave     BraveConfig     `yaml:"brave" mapstructure:"brave"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Intel     IntelConfig     `yaml:"intel" mapstructure:"intel"`
	LocalInfo LocalInfoConfig `yaml:"local_info" mapstructure:"local_info"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	Model         string `yaml:"model" mapstructure:"model"`
	DocumentModel string `yaml:"document_model" mapstructure:"document_model"`
	MaxTokens     int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// BraveConfig holds Brave Search API settings.
type BraveConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// FetchConfig configures the page fetcher.
type FetchConfig struct {
	UserAgent        string `yaml:"user_agent" mapstructure:"user_agent"`
	HomeTimeoutSecs  int    `yaml:"home_timeout_secs" mapstructure:"home_timeout_secs"`
	PageTimeoutSecs  int    `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	PDFTimeoutSecs   int    `yaml:"pdf_timeout_secs" mapstructure:"pdf_timeout_secs"`
	HomepageAttempts int    `yaml:"homepage_attempts" mapstructure:"homepage_attempts"`
}

// IntelConfig configures the company intelligence pipeline.
type IntelConfig struct {
	MaxInternalPages int    `yaml:"max_internal_pages" mapstructure:"max_internal_pages"`
	MaxExternalPages int    `yaml:"max_external_pages" mapstructure:"max_external_pages"`
	MaxQueries       int    `yaml:"max_queries" mapstructure:"max_queries"`
	MaxPDFCandidates int    `yaml:"max_pdf_candidates" mapstructure:"max_pdf_candidates"`
	StaleAgeYears    int    `yaml:"stale_age_years" mapstructure:"stale_age_years"`
	ScorerWeights    string `yaml:"scorer_weights" mapstructure:"scorer_weights"` // optional yaml file
}

// LocalInfoConfig configures the local dashboard data service.
type LocalInfoConfig struct {
	CacheTTLMinutes int `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port          int      `yaml:"port" mapstructure:"port"`
	SessionCookie string   `yaml:"session_cookie" mapstructure:"session_cookie"`
	CORSOrigins   []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("KAISHA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "kaisha-intel.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.session_cookie", "kaisha_session")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.document_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 800)
	v.SetDefault("brave.base_url", "https://api.search.brave.com/res/v1")
	v.SetDefault("brave.timeout_secs", 12)
	v.SetDefault("brave.max_retries", 2)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("fetch.home_timeout_secs", 15)
	v.SetDefault("fetch.page_timeout_secs", 12)
	v.SetDefault("fetch.pdf_timeout_secs", 25)
	v.SetDefault("fetch.homepage_attempts", 3)
	v.SetDefault("intel.max_internal_pages", 10)
	v.SetDefault("intel.max_external_pages", 10)
	v.SetDefault("intel.max_queries", 6)
	v.SetDefault("intel.max_pdf_candidates", 5)
	v.SetDefault("intel.stale_age_years", 2)
	v.SetDefault("local_info.cache_ttl_minutes", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
