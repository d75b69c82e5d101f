// Package completion is the boundary to the external structured completion
// service. Everything the service returns is validated against a JSON schema
// here; callers only ever see a tagged Result.
package completion

import (
	"context"

	"github.com/sells-group/contract-cli/internal/model"
)

// Request is one structured completion call.
type Request struct {
	// Name identifies the call in logs and diagnostics, e.g. "classify".
	Name        string
	System      string
	Prompt      string
	Schema      map[string]any
	MaxTokens   int64
	Temperature *float64
}

// Response is the raw text returned by the service.
type Response struct {
	Text  string
	Usage model.TokenUsage
}

// Completer performs a completion. Implementations must be safe for
// concurrent use.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (*Response, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
