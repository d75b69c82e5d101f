package completion

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contract-cli/internal/model"
	"github.com/sells-group/contract-cli/internal/resilience"
	"github.com/sells-group/contract-cli/pkg/anthropic"
)

// AnthropicConfig configures the Anthropic-backed Completer.
type AnthropicConfig struct {
	Model       string
	MaxTokens   int64
	Temperature *float64
	Retry       resilience.Policy
	Breaker     *resilience.Breaker
}

// Anthropic implements Completer over the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	cfg    AnthropicConfig
}

// NewAnthropic creates a Completer backed by client.
func NewAnthropic(client anthropic.Client, cfg AnthropicConfig) *Anthropic {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = resilience.DefaultPolicy()
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewBreaker("anthropic", 0, 0)
	}
	return &Anthropic{client: client, cfg: cfg}
}

// Complete sends req as a single user message. The schema is appended to the
// prompt so the model knows the exact shape to return.
func (a *Anthropic) Complete(ctx context.Context, req Request) (*Response, error) {
	prompt, err := withSchema(req.Prompt, req.Schema)
	if err != nil {
		return nil, err
	}

	msg := anthropic.MessageRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: a.cfg.Temperature,
	}
	if req.MaxTokens > 0 {
		msg.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		msg.Temperature = req.Temperature
	}
	if req.System != "" {
		msg.System = anthropic.CachedSystem(req.System)
	}

	policy := a.cfg.Retry
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.LogRetry("completion: " + req.Name)
	}

	resp, err := resilience.Retry(ctx, policy, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return resilience.Call(ctx, a.cfg.Breaker, func(ctx context.Context) (*anthropic.MessageResponse, error) {
			r, err := a.client.CreateMessage(ctx, msg)
			if err != nil {
				if code := anthropic.StatusCode(err); resilience.IsTransientStatus(code) {
					return nil, resilience.NewTransientError(err, code)
				}
				return nil, err
			}
			return r, nil
		})
	})
	if err != nil {
		return nil, eris.Wrapf(err, "completion: %s", req.Name)
	}

	out := &Response{
		Text: resp.Text(),
		Usage: model.TokenUsage{
			InputTokens:         int(resp.Usage.InputTokens),
			OutputTokens:        int(resp.Usage.OutputTokens),
			CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
			CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
		},
	}
	if resp.StopReason == "max_tokens" {
		zap.L().Warn("completion: response truncated at max tokens",
			zap.String("call", req.Name),
			zap.Int64("max_tokens", msg.MaxTokens),
		)
	}
	return out, nil
}

func withSchema(prompt string, schema map[string]any) (string, error) {
	if len(schema) == 0 {
		return prompt, nil
	}
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "completion: marshal schema")
	}
	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n\nRespond with a single JSON object, and nothing else, that conforms to this JSON schema:\n")
	sb.Write(b)
	return sb.String(), nil
}
