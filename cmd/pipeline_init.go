package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contract-cli/internal/amendment"
	"github.com/sells-group/contract-cli/internal/completion"
	"github.com/sells-group/contract-cli/internal/config"
	"github.com/sells-group/contract-cli/internal/cost"
	"github.com/sells-group/contract-cli/internal/document"
	"github.com/sells-group/contract-cli/internal/model"
	"github.com/sells-group/contract-cli/internal/pipeline"
	"github.com/sells-group/contract-cli/internal/resilience"
	"github.com/sells-group/contract-cli/internal/store"
	"github.com/sells-group/contract-cli/internal/validate"
	anthropicpkg "github.com/sells-group/contract-cli/pkg/anthropic"
)

// pipelineEnv holds the store, loader and pipeline needed by the extract
// and serve commands.
type pipelineEnv struct {
	Store      store.Store // nil when persistence is disabled
	Pipeline   *pipeline.Pipeline
	Loader     *document.Loader
	Costs      *cost.Calculator
	Model      string
	WebhookURL string
}

// envOptions selects how initPipeline wires the environment.
type envOptions struct {
	// Mode is the config validation mode (extract or serve).
	Mode string
	// DryRun swaps the Anthropic client for canned responses.
	DryRun bool
	// NoStore skips opening the store.
	NoStore bool
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initPipeline validates config, opens the store and builds the pipeline.
// Callers should defer env.Close().
func initPipeline(ctx context.Context, opts envOptions) (*pipelineEnv, error) {
	mode := opts.Mode
	if opts.DryRun {
		mode = "runs"
	}
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	loader, err := document.NewLoader(cfg.Document)
	if err != nil {
		return nil, err
	}

	rules, err := validate.LoadRules(cfg.Validation.RulesPath)
	if err != nil {
		return nil, err
	}

	var completer completion.Completer
	if opts.DryRun {
		zap.L().Info("dry run: using stub completions")
		completer = &pipeline.StubCompleter{}
	} else {
		completer = newAnthropicCompleter(cfg)
	}

	env := &pipelineEnv{
		Pipeline:   buildPipeline(cfg, completer, rules),
		Loader:     loader,
		Costs:      cost.NewCalculator(pricingRates(cfg.Pricing)),
		Model:      cfg.Anthropic.Model,
		WebhookURL: cfg.Review.WebhookURL,
	}

	if !opts.NoStore {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}

	return env, nil
}

// newAnthropicCompleter builds the rate-limited, retrying Claude completer.
func newAnthropicCompleter(c *config.Config) *completion.Anthropic {
	clientOpts := []anthropicpkg.ClientOption{
		anthropicpkg.WithRateLimit(c.Anthropic.RateLimitRPS),
		anthropicpkg.WithMaxRetries(0),
	}
	if c.Anthropic.BaseURL != "" {
		clientOpts = append(clientOpts, anthropicpkg.WithBaseURL(c.Anthropic.BaseURL))
	}
	client := anthropicpkg.NewClient(c.Anthropic.Key, clientOpts...)

	temp := c.Anthropic.Temperature
	return completion.NewAnthropic(client, completion.AnthropicConfig{
		Model:       c.Anthropic.Model,
		MaxTokens:   c.Anthropic.MaxTokens,
		Temperature: &temp,
		Retry:       resilience.PolicyFromConfig(c.Retry.MaxAttempts, c.Retry.InitialBackoffMs),
		Breaker: resilience.NewBreaker("anthropic",
			c.Retry.BreakerThreshold,
			time.Duration(c.Retry.BreakerCooldownS)*time.Second,
		),
	})
}

// buildPipeline assembles the pipeline stages from config.
func buildPipeline(c *config.Config, completer completion.Completer, rules validate.Rules) *pipeline.Pipeline {
	domains := make([]model.Domain, 0, len(c.Pipeline.Domains))
	for _, d := range c.Pipeline.Domains {
		domains = append(domains, model.Domain(d))
	}

	detector := amendment.NewDetector(amendment.Config{
		WindowChars:      c.Amendment.WindowChars,
		OverlapThreshold: c.Amendment.OverlapThreshold,
		ReviewThreshold:  c.Amendment.ReviewThreshold,
	})

	return pipeline.New(completer, pipeline.Config{
		ClassifyChars:   c.Pipeline.ClassifyMaxChars,
		ExtractChars:    c.Pipeline.ExtractMaxChars,
		CallTimeout:     c.Pipeline.CallTimeout(),
		ReviewThreshold: c.Pipeline.ReviewThreshold,
		Domains:         domains,
	}, detector, validate.NewEngine(rules))
}

// pricingRates converts configured pricing to calculator rates, falling
// back to the built-in table when none is configured.
func pricingRates(p config.PricingConfig) cost.Rates {
	if len(p.Anthropic) == 0 {
		return cost.DefaultRates()
	}
	rates := cost.Rates{Anthropic: make(map[string]cost.ModelRate, len(p.Anthropic))}
	for id, m := range p.Anthropic {
		rates.Anthropic[id] = cost.ModelRate{
			Input:         m.Input,
			Output:        m.Output,
			CacheWriteMul: m.CacheWriteMul,
			CacheReadMul:  m.CacheReadMul,
		}
	}
	return rates
}

// process runs the pipeline for doc, recording the run when a store is
// configured and notifying the review webhook when the result needs review.
// runID is empty without a store.
func (pe *pipelineEnv) process(ctx context.Context, doc model.RawDocument) (string, *model.PipelineResult, error) {
	var runID string
	if pe.Store != nil {
		run, err := pe.Store.CreateRun(ctx, doc.FileName)
		if err != nil {
			return "", nil, eris.Wrap(err, "create run")
		}
		runID = run.ID
	}
	result, err := pe.execute(ctx, runID, doc)
	return runID, result, err
}

// failRunTimeout bounds the write that records a failed run.
const failRunTimeout = 10 * time.Second

// execute runs the pipeline for an already-created run. Any error after the
// run is created marks it failed so it never stays in extracting.
func (pe *pipelineEnv) execute(ctx context.Context, runID string, doc model.RawDocument) (*model.PipelineResult, error) {
	log := zap.L().With(zap.String("file", doc.FileName), zap.String("run_id", runID))

	if pe.Store != nil {
		if err := pe.Store.UpdateRunStatus(ctx, runID, model.RunStatusExtracting); err != nil {
			pe.failRun(ctx, runID, err)
			return nil, eris.Wrap(err, "update run status")
		}
	}

	result, err := pe.Pipeline.RunDocument(ctx, doc)
	if err != nil {
		pe.failRun(ctx, runID, err)
		return nil, err
	}

	if pe.Store != nil {
		if err := pe.Store.CompleteRun(ctx, runID, result); err != nil {
			pe.failRun(ctx, runID, err)
			return nil, eris.Wrap(err, "complete run")
		}
	}

	if pe.Costs != nil {
		pe.Costs.LogRun(pe.Model, doc.FileName, result.Usage)
	}

	if err := pipeline.NotifyReview(ctx, pe.WebhookURL, runID, result); err != nil {
		log.Warn("review webhook failed", zap.Error(err))
	}

	log.Info("extraction complete",
		zap.String("document_type", string(result.Classification.DocumentType)),
		zap.Int("fields", result.FieldCount()),
		zap.Int("conflicts", len(result.Conflicts)),
		zap.Float64("overall_confidence", result.OverallConfidence),
		zap.Bool("requires_review", result.RequiresReview),
	)
	return result, nil
}

// failRun records cause on the run. It detaches from ctx so a cancelled
// request or shutdown still gets the run out of extracting.
func (pe *pipelineEnv) failRun(ctx context.Context, runID string, cause error) {
	if pe.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failRunTimeout)
	defer cancel()
	if err := pe.Store.FailRun(ctx, runID, cause.Error()); err != nil {
		zap.L().Error("failed to record run failure",
			zap.String("run_id", runID),
			zap.Error(err),
		)
	}
}
