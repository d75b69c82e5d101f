package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "contracts.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, int64(4096), cfg.Anthropic.MaxTokens)
	assert.InDelta(t, 2.0, cfg.Anthropic.RateLimitRPS, 0.001)
	assert.Equal(t, 15000, cfg.Pipeline.ClassifyMaxChars)
	assert.Equal(t, 60000, cfg.Pipeline.ExtractMaxChars)
	assert.Equal(t, time.Minute, cfg.Pipeline.CallTimeout())
	assert.InDelta(t, 0.7, cfg.Pipeline.ReviewThreshold, 0.001)
	assert.Equal(t, []string{"general", "financial", "product", "facility"}, cfg.Pipeline.Domains)
	assert.Equal(t, 2000, cfg.Amendment.WindowChars)
	assert.InDelta(t, 0.5, cfg.Amendment.OverlapThreshold, 0.001)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 500, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, "native", cfg.Document.PDFProvider)
	assert.Equal(t, "pdftotext", cfg.Document.PdfToTextPath)
	assert.InDelta(t, 0.2, cfg.Monitoring.FailureRateThreshold, 0.001)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.Equal(t, 24, cfg.Monitoring.LookbackWindowHours)
	assert.Empty(t, cfg.Monitoring.WebhookURL)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/contracts
log:
  level: debug
  format: console
server:
  port: 9090
pipeline:
  domains: [general, financial]
pricing:
  anthropic:
    claude-haiku-4-5-20251001:
      input: 1.0
      output: 5.0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"general", "financial"}, cfg.Pipeline.Domains)
	require.Contains(t, cfg.Pricing.Anthropic, "claude-haiku-4-5-20251001")
	assert.InDelta(t, 5.0, cfg.Pricing.Anthropic["claude-haiku-4-5-20251001"].Output, 0.001)
	// Defaults still apply for unset values
	assert.Equal(t, 2000, cfg.Amendment.WindowChars)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CONTRACT_STORE_DRIVER", "postgres")
	t.Setenv("CONTRACT_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CONTRACT_SERVER_PORT", "3000")
	t.Setenv("CONTRACT_ANTHROPIC_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "contracts.db"
	cfg.Pipeline.ReviewThreshold = 0.7
	cfg.Pipeline.Domains = []string{"general", "financial", "product", "facility"}
	cfg.Amendment.WindowChars = 2000
	cfg.Amendment.OverlapThreshold = 0.5
	cfg.Amendment.ReviewThreshold = 0.7
	cfg.Document.PDFProvider = "native"
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateExtract_AllPresent(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"

	assert.NoError(t, cfg.Validate("extract"))
}

func TestValidateExtract_MissingKey(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("extract")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Anthropic.Key = "sk-ant-key"
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateRuns_NoKeyNeeded(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("runs"))
	assert.NoError(t, cfg.Validate("store"))
}

func TestValidateStore(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	err := cfg.Validate("runs")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg = validDefaults()
	cfg.Store.Driver = "mysql"
	err = cfg.Validate("runs")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must be sqlite or postgres")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateThresholds(t *testing.T) {
	cfg := validDefaults()

	cfg.Pipeline.ReviewThreshold = 1.1
	err := cfg.Validate("runs")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline.review_threshold")

	cfg.Pipeline.ReviewThreshold = 0.7
	cfg.Amendment.OverlapThreshold = -0.1
	err = cfg.Validate("runs")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "amendment.overlap_threshold")

	cfg.Amendment.OverlapThreshold = 0.5
	cfg.Monitoring.ReviewRateThreshold = 2
	err = cfg.Validate("runs")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring.review_rate_threshold")

	cfg.Monitoring.ReviewRateThreshold = 0.5
	assert.NoError(t, cfg.Validate("runs"))
}

func TestValidateDomainsAndProvider(t *testing.T) {
	cfg := validDefaults()
	cfg.Pipeline.Domains = []string{"general", "pricing"}
	cfg.Document.PDFProvider = "mistral"

	err := cfg.Validate("runs")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `unknown domain "pricing"`)
	assert.Contains(t, err.Error(), `pdf_provider "mistral"`)
}
