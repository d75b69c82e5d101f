package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Amendment  AmendmentConfig  `yaml:"amendment" mapstructure:"amendment"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Review     ReviewConfig     `yaml:"review" mapstructure:"review"`
	Document   DocumentConfig   `yaml:"document" mapstructure:"document"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key          string  `yaml:"key" mapstructure:"key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	Model        string  `yaml:"model" mapstructure:"model"`
	MaxTokens    int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature  float64 `yaml:"temperature" mapstructure:"temperature"`
	RateLimitRPS float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
}

// PipelineConfig configures extraction behavior.
type PipelineConfig struct {
	ClassifyMaxChars int      `yaml:"classify_max_chars" mapstructure:"classify_max_chars"`
	ExtractMaxChars  int      `yaml:"extract_max_chars" mapstructure:"extract_max_chars"`
	CallTimeoutSecs  int      `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	ReviewThreshold  float64  `yaml:"review_threshold" mapstructure:"review_threshold"`
	Domains          []string `yaml:"domains" mapstructure:"domains"`
}

// CallTimeout returns the per-call timeout as a duration.
func (p PipelineConfig) CallTimeout() time.Duration {
	return time.Duration(p.CallTimeoutSecs) * time.Second
}

// AmendmentConfig tunes amendment detection.
type AmendmentConfig struct {
	WindowChars      int     `yaml:"window_chars" mapstructure:"window_chars"`
	OverlapThreshold float64 `yaml:"overlap_threshold" mapstructure:"overlap_threshold"`
	ReviewThreshold  float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
}

// ValidationConfig points at an optional validation rules file.
type ValidationConfig struct {
	RulesPath string `yaml:"rules_path" mapstructure:"rules_path"`
}

// RetryConfig configures retries around completion calls.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownS int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// ReviewConfig holds the review webhook settings.
type ReviewConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// DocumentConfig configures document loading.
type DocumentConfig struct {
	PDFProvider   string `yaml:"pdf_provider" mapstructure:"pdf_provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// MonitoringConfig configures run health alerting.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	ReviewRateThreshold  float64 `yaml:"review_rate_threshold" mapstructure:"review_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
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
	v.SetEnvPrefix("CONTRACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("anthropic.temperature", 0)
	v.SetDefault("anthropic.rate_limit_rps", 2)
	v.SetDefault("pipeline.classify_max_chars", 15000)
	v.SetDefault("pipeline.extract_max_chars", 60000)
	v.SetDefault("pipeline.call_timeout_secs", 60)
	v.SetDefault("pipeline.review_threshold", 0.7)
	v.SetDefault("pipeline.domains", []string{"general", "financial", "product", "facility"})
	v.SetDefault("amendment.window_chars", 2000)
	v.SetDefault("amendment.overlap_threshold", 0.5)
	v.SetDefault("amendment.review_threshold", 0.7)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.breaker_threshold", 5)
	v.SetDefault("retry.breaker_cooldown_secs", 30)
	v.SetDefault("document.pdf_provider", "native")
	v.SetDefault("document.pdftotext_path", "pdftotext")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "contracts.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.review_rate_threshold", 0.5)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

var knownDomains = map[string]bool{"general": true, "financial": true, "product": true, "facility": true}

// Validate checks that the keys a command needs are present and that
// tunables are in range. mode is one of extract, serve, runs or store.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "extract":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	case "serve":
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "runs", "store":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be sqlite or postgres", c.Store.Driver))
	}

	if t := c.Pipeline.ReviewThreshold; t < 0 || t > 1 {
		errs = append(errs, "pipeline.review_threshold must be between 0 and 1")
	}
	if t := c.Amendment.OverlapThreshold; t < 0 || t > 1 {
		errs = append(errs, "amendment.overlap_threshold must be between 0 and 1")
	}
	if t := c.Amendment.ReviewThreshold; t < 0 || t > 1 {
		errs = append(errs, "amendment.review_threshold must be between 0 and 1")
	}
	if t := c.Monitoring.FailureRateThreshold; t < 0 || t > 1 {
		errs = append(errs, "monitoring.failure_rate_threshold must be between 0 and 1")
	}
	if t := c.Monitoring.ReviewRateThreshold; t < 0 || t > 1 {
		errs = append(errs, "monitoring.review_rate_threshold must be between 0 and 1")
	}
	if c.Amendment.WindowChars < 0 {
		errs = append(errs, "amendment.window_chars must be >= 0")
	}
	if c.Anthropic.RateLimitRPS < 0 {
		errs = append(errs, "anthropic.rate_limit_rps must be >= 0")
	}
	for _, d := range c.Pipeline.Domains {
		if !knownDomains[d] {
			errs = append(errs, fmt.Sprintf("pipeline.domains: unknown domain %q", d))
		}
	}
	switch c.Document.PDFProvider {
	case "", "native", "pdftotext":
	default:
		errs = append(errs, fmt.Sprintf("document.pdf_provider %q must be native or pdftotext", c.Document.PDFProvider))
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
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
