package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-cli/internal/config"
	"github.com/sells-group/contract-cli/internal/document"
	"github.com/sells-group/contract-cli/internal/model"
	"github.com/sells-group/contract-cli/internal/pipeline"
	"github.com/sells-group/contract-cli/internal/store"
	"github.com/sells-group/contract-cli/internal/validate"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Anthropic: config.AnthropicConfig{Model: "claude-sonnet-4-5-20250929", MaxTokens: 1024},
		Pipeline: config.PipelineConfig{
			ClassifyMaxChars: 15000,
			ExtractMaxChars:  60000,
			CallTimeoutSecs:  30,
			ReviewThreshold:  0.7,
			Domains:          []string{"general", "financial"},
		},
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "contracts.db"),
		},
		Server: config.ServerConfig{Port: 8080},
	}
}

func TestPipelineEnv_Close_Nil(t *testing.T) {
	pe := &pipelineEnv{}
	assert.NotPanics(t, func() {
		pe.Close()
	})
}

func TestInitStore(t *testing.T) {
	cfg = testConfig(t)

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(context.Background(), model.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestInitStore_UnknownDriver(t *testing.T) {
	cfg = testConfig(t)
	cfg.Store.Driver = "mysql"

	st, err := initStore(context.Background())
	assert.Nil(t, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestInitPipeline_RequiresAnthropicKey(t *testing.T) {
	cfg = testConfig(t)

	env, err := initPipeline(context.Background(), envOptions{Mode: "extract"})
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")
}

func TestInitPipeline_DryRunSkipsKey(t *testing.T) {
	cfg = testConfig(t)

	env, err := initPipeline(context.Background(), envOptions{Mode: "extract", DryRun: true})
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Store)
	assert.NotNil(t, env.Pipeline)
	assert.NotNil(t, env.Loader)
	assert.Equal(t, "claude-sonnet-4-5-20250929", env.Model)
}

func TestInitPipeline_NoStore(t *testing.T) {
	cfg = testConfig(t)
	cfg.Anthropic.Key = "sk-test"

	env, err := initPipeline(context.Background(), envOptions{Mode: "extract", NoStore: true})
	require.NoError(t, err)
	defer env.Close()

	assert.Nil(t, env.Store)
	assert.NotNil(t, env.Pipeline)
}

func TestInitPipeline_BadRulesFile(t *testing.T) {
	cfg = testConfig(t)
	cfg.Validation.RulesPath = filepath.Join(t.TempDir(), "missing.yaml")

	env, err := initPipeline(context.Background(), envOptions{Mode: "extract", DryRun: true, NoStore: true})
	assert.Nil(t, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read rules")
}

func TestNewAnthropicCompleter(t *testing.T) {
	c := testConfig(t)
	c.Anthropic.Key = "sk-test"
	c.Anthropic.BaseURL = "http://localhost:1"
	c.Anthropic.RateLimitRPS = 5

	assert.NotNil(t, newAnthropicCompleter(c))
}

func TestBuildPipeline_DomainSubset(t *testing.T) {
	c := testConfig(t)
	p := buildPipeline(c, &pipeline.StubCompleter{}, validate.DefaultRules())

	res, err := p.Run(context.Background(), sampleContract, "rebate.txt")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Fields[model.DomainGeneral])
	assert.NotEmpty(t, res.Fields[model.DomainFinancial])
	assert.Empty(t, res.Fields[model.DomainProduct])
	assert.Empty(t, res.Fields[model.DomainFacility])
}

func TestPricingRates(t *testing.T) {
	_, ok := pricingRates(config.PricingConfig{}).Anthropic["claude-sonnet-4-5-20250929"]
	assert.True(t, ok, "empty pricing falls back to the built-in table")

	rates := pricingRates(config.PricingConfig{Anthropic: map[string]config.ModelPricing{
		"custom": {Input: 1, Output: 2, CacheWriteMul: 1.25, CacheReadMul: 0.1},
	}})
	require.Len(t, rates.Anthropic, 1)
	assert.Equal(t, 2.0, rates.Anthropic["custom"].Output)
	assert.Equal(t, 1.25, rates.Anthropic["custom"].CacheWriteMul)
}

func TestProcess_RecordsRun(t *testing.T) {
	env := newTestEnv(t, pipeline.Config{})
	ctx := context.Background()

	runID, res, err := env.process(ctx, document.FromText("rebate.txt", sampleContract))
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	require.NotNil(t, res)

	run, err := env.Store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.InDelta(t, res.OverallConfidence, run.OverallConfidence, 1e-9)

	fields, err := env.Store.ListFields(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, fields, res.FieldCount())
}

func TestProcess_WithoutStore(t *testing.T) {
	env := newTestEnv(t, pipeline.Config{})
	env.Store = nil

	runID, res, err := env.process(context.Background(), document.FromText("rebate.txt", sampleContract))
	require.NoError(t, err)
	assert.Empty(t, runID)
	assert.NotNil(t, res)
}

func TestProcess_NotifiesReview(t *testing.T) {
	var calls atomic.Int32
	var notice pipeline.ReviewNotice
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewDecoder(r.Body).Decode(&notice)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	// A threshold above every stub confidence forces review.
	env := newTestEnv(t, pipeline.Config{ReviewThreshold: 0.99})
	env.WebhookURL = srv.URL

	runID, res, err := env.process(context.Background(), document.FromText("rebate.txt", sampleContract))
	require.NoError(t, err)
	require.True(t, res.RequiresReview)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, runID, notice.RunID)
	assert.Equal(t, "rebate.txt", notice.FileName)
	assert.NotEmpty(t, notice.Reasons)
}

func TestProcess_WebhookFailureDoesNotFailRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	env := newTestEnv(t, pipeline.Config{ReviewThreshold: 0.99})
	env.WebhookURL = srv.URL

	runID, _, err := env.process(context.Background(), document.FromText("rebate.txt", sampleContract))
	require.NoError(t, err)

	run, err := env.Store.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.True(t, run.RequiresReview)
}

func TestProcess_PipelineErrorFailsRun(t *testing.T) {
	env := newTestEnv(t, pipeline.Config{})
	env.Pipeline = pipeline.New(nil, pipeline.Config{}, nil, nil)
	ctx := context.Background()

	_, _, err := env.process(ctx, document.FromText("rebate.txt", sampleContract))
	require.Error(t, err)

	runs, err := env.Store.ListRuns(ctx, model.RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "no completer")
}

// completeFailStore fails every CompleteRun and delegates the rest.
type completeFailStore struct {
	store.Store
}

func (s *completeFailStore) CompleteRun(context.Context, string, *model.PipelineResult) error {
	return errors.New("disk full")
}

func TestProcess_CompleteRunErrorFailsRun(t *testing.T) {
	env := newTestEnv(t, pipeline.Config{})
	env.Store = &completeFailStore{Store: env.Store}
	ctx := context.Background()

	runID, _, err := env.process(ctx, document.FromText("rebate.txt", sampleContract))
	require.Error(t, err)
	require.NotEmpty(t, runID)

	run, err := env.Store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "disk full")
}

func TestExecute_CancelledContextFailsRun(t *testing.T) {
	env := newTestEnv(t, pipeline.Config{})
	run, err := env.Store.CreateRun(context.Background(), "rebate.txt")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = env.execute(ctx, run.ID, document.FromText("rebate.txt", sampleContract))
	require.Error(t, err)

	got, err := env.Store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
}
