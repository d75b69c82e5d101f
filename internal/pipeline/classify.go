package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contract-cli/internal/completion"
	"github.com/sells-group/contract-cli/internal/model"
)

// DefaultClassifyChars is how much of the document the classifier sees.
const DefaultClassifyChars = 15000

const classifySystemPrompt = `You classify healthcare commercial contract documents into exactly one of these categories: rebate_agreement, pricing_agreement, purchase_agreement, gpo_agreement, service_agreement, amendment, invoice, claim, other. Also report whether the document contains financial terms (rebates, fees, pricing) and whether it lists products. Respond with a valid JSON object: {"document_type": "<category>", "confidence": <0.0-1.0>, "contains_financial_data": <bool>, "contains_product_data": <bool>}`

const classifyUserPrompt = `File: %s

Document text (first %d characters):
%s`

// ClassifyDocument labels text with a document type. It never fails: an
// empty document, a service error or a non-conforming answer all yield
// DocumentTypeOther with zero confidence and Error set. The returned
// Result carries usage and the raw answer for diagnostics.
func ClassifyDocument(ctx context.Context, c completion.Completer, fileName, text string, maxChars int) (model.Classification, completion.Result) {
	if strings.TrimSpace(text) == "" {
		return model.Classification{
			DocumentType: model.DocumentTypeOther,
			Error:        "empty document text",
		}, completion.Result{Kind: completion.KindOK}
	}
	if maxChars <= 0 {
		maxChars = DefaultClassifyChars
	}

	res := completion.Structured(ctx, c, completion.Request{
		Name:   "classify",
		System: classifySystemPrompt,
		Prompt: fmt.Sprintf(classifyUserPrompt, fileName, maxChars, truncateRunes(text, maxChars)),
		Schema: classifySchema,
	})
	if !res.OK() {
		zap.L().Warn("pipeline: classification failed",
			zap.String("file", fileName),
			zap.String("kind", string(res.Kind)),
			zap.Error(res.Err),
		)
		return model.Classification{
			DocumentType: model.DocumentTypeOther,
			Error:        errorText(res),
		}, res
	}

	cls, err := parseClassification(res.Payload)
	if err != nil {
		// Unreachable once the schema passed, but keep the fallback total.
		res.Kind = completion.KindSchemaError
		res.Err = err
		return model.Classification{DocumentType: model.DocumentTypeOther, Error: err.Error()}, res
	}
	return cls, res
}

// parseClassification decodes a classifier payload. Unknown document types
// fall back to DocumentTypeOther.
func parseClassification(payload []byte) (model.Classification, error) {
	var raw struct {
		DocumentType          string  `json:"document_type"`
		Confidence            float64 `json:"confidence"`
		ContainsFinancialData bool    `json:"contains_financial_data"`
		ContainsProductData   bool    `json:"contains_product_data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return model.Classification{}, eris.Wrap(err, "classify: decode")
	}

	dt := model.DocumentType(strings.ToLower(strings.TrimSpace(raw.DocumentType)))
	if !dt.Valid() {
		dt = model.DocumentTypeOther
	}
	return model.Classification{
		DocumentType:          dt,
		Confidence:            clamp01(raw.Confidence),
		ContainsFinancialData: raw.ContainsFinancialData,
		ContainsProductData:   raw.ContainsProductData,
	}, nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func errorText(res completion.Result) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	return string(res.Kind)
}
