package pipeline

import (
	"context"
	"strings"

	"github.com/sells-group/contract-cli/internal/completion"
	"github.com/sells-group/contract-cli/internal/model"
)

// Compile-time interface check.
var _ completion.Completer = (*StubCompleter)(nil)

// StubCompleter implements completion.Completer with canned responses keyed
// by request name. It backs dry runs and never contacts the service.
type StubCompleter struct{}

var stubResponses = map[string]string{
	"classify":          `{"document_type": "rebate_agreement", "confidence": 0.9, "contains_financial_data": true, "contains_product_data": false}`,
	"extract_general":   `{"contract_number": "STUB-0001", "contract_title": "Stub Rebate Agreement", "effective_date": "2024-01-01", "expiration_date": "2026-12-31", "source_quote": "stub response", "confidence": 0.75}`,
	"extract_financial": `{"rebate_tiers": [{"tier_name": "Base", "percentage": 5, "min_threshold": 0, "source_quote": "stub response", "confidence": 0.75}], "payment_frequency": "quarterly", "confidence": 0.75}`,
	"extract_product":   `{"products": []}`,
	"extract_facility":  `{"facilities": []}`,
}

// Complete implements completion.Completer.
func (s *StubCompleter) Complete(_ context.Context, req completion.Request) (*completion.Response, error) {
	text, ok := stubResponses[req.Name]
	if !ok {
		text = `{}`
	}
	return &completion.Response{
		Text: text,
		Usage: model.TokenUsage{
			InputTokens:  len(strings.Fields(req.Prompt)),
			OutputTokens: 50,
		},
	}, nil
}
