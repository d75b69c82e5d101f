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

// DefaultExtractChars is how much of the document each domain call sees.
const DefaultExtractChars = 100000

const extractSystemPrompt = `You extract structured data from healthcare commercial contracts. Only report values stated in the document; use null for anything not present. For every value include a short verbatim source_quote, the source_page when the text carries page markers, and a confidence between 0.0 and 1.0. Respond with a single valid JSON object and nothing else.`

const extractUserPrompt = `File: %s

Task: %s

Document text:
%s`

var domainTasks = map[model.Domain]string{
	model.DomainGeneral: `Extract the general contract terms: contract_number, contract_title, manufacturer_name, counterparty_name, effective_date, expiration_date, execution_date (all dates as YYYY-MM-DD), payment_terms and auto_renewal. Return one object with an overall confidence.`,
	model.DomainFinancial: `Extract the financial terms: every rebate tier (tier_name, percentage as a number such as 5.5 for 5.5%, min_threshold and max_threshold in dollars) under "rebate_tiers", the admin_fee_percentage and the payment_frequency. Report the tiers as currently stated in the base agreement.`,
	model.DomainProduct: `Extract every covered product under "products": ndc, name, package_size and price in dollars.`,
	model.DomainFacility: `Extract every covered facility or location under "facilities": name, address and dea_number.`,
}

var domainSchemas = map[model.Domain]map[string]any{
	model.DomainGeneral:   generalSchema,
	model.DomainFinancial: financialSchema,
	model.DomainProduct:   productSchema,
	model.DomainFacility:  facilitySchema,
}

// DomainOutcome is the result of one domain extraction call.
type DomainOutcome struct {
	Domain model.Domain
	Result completion.Result
	// Items is the number of values the domain produced. A successful call
	// with zero items contributes nothing to the overall confidence.
	Items      int
	Confidence float64
}

// Contributes reports whether the outcome counts toward overall confidence.
func (o DomainOutcome) Contributes() bool {
	return o.Result.OK() && o.Items > 0
}

// ExtractDomain runs one domain extraction and merges a successful payload
// into baseline. baseline is only written on success.
func ExtractDomain(ctx context.Context, c completion.Completer, domain model.Domain, doc model.RawDocument, maxChars int, baseline *model.Baseline) DomainOutcome {
	out := DomainOutcome{Domain: domain}
	task, ok := domainTasks[domain]
	if !ok {
		out.Result = completion.Result{Kind: completion.KindServiceError, Err: eris.Errorf("extract: unknown domain %q", domain)}
		return out
	}
	if strings.TrimSpace(doc.Text) == "" {
		out.Result = completion.Result{Kind: completion.KindOK}
		return out
	}
	if maxChars <= 0 {
		maxChars = DefaultExtractChars
	}

	out.Result = completion.Structured(ctx, c, completion.Request{
		Name:   "extract_" + string(domain),
		System: extractSystemPrompt,
		Prompt: fmt.Sprintf(extractUserPrompt, doc.FileName, task, truncateRunes(doc.Text, maxChars)),
		Schema: domainSchemas[domain],
	})
	if !out.Result.OK() {
		zap.L().Warn("pipeline: domain extraction failed",
			zap.String("file", doc.FileName),
			zap.String("domain", string(domain)),
			zap.String("kind", string(out.Result.Kind)),
			zap.Error(out.Result.Err),
		)
		return out
	}

	confs, err := decodeDomain(domain, out.Result.Payload, baseline)
	if err != nil {
		out.Result.Kind = completion.KindSchemaError
		out.Result.Err = err
		return out
	}
	out.Items = len(confs)
	out.Confidence = mean(confs)
	return out
}

// decodeDomain writes the domain payload into b and returns one confidence
// per produced item.
func decodeDomain(domain model.Domain, payload json.RawMessage, b *model.Baseline) ([]float64, error) {
	switch domain {
	case model.DomainGeneral:
		var g model.GeneralTerms
		if err := json.Unmarshal(payload, &g); err != nil {
			return nil, eris.Wrap(err, "extract: decode general")
		}
		g.Confidence = clamp01(g.Confidence)
		b.General = &g
		n := generalItems(g)
		confs := make([]float64, n)
		for i := range confs {
			confs[i] = g.Confidence
		}
		return confs, nil

	case model.DomainFinancial:
		var f model.FinancialTerms
		if err := json.Unmarshal(payload, &f); err != nil {
			return nil, eris.Wrap(err, "extract: decode financial")
		}
		f.Confidence = clamp01(f.Confidence)
		var confs []float64
		for i := range f.Tiers {
			f.Tiers[i].Confidence = clamp01(f.Tiers[i].Confidence)
			confs = append(confs, f.Tiers[i].Confidence)
		}
		if f.AdminFeePercentage != nil {
			confs = append(confs, f.Confidence)
		}
		if f.PaymentFrequency != "" {
			confs = append(confs, f.Confidence)
		}
		b.Financial = &f
		return confs, nil

	case model.DomainProduct:
		var p struct {
			Products []model.Product `json:"products"`
		}
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, eris.Wrap(err, "extract: decode products")
		}
		confs := make([]float64, len(p.Products))
		for i := range p.Products {
			p.Products[i].Confidence = clamp01(p.Products[i].Confidence)
			confs[i] = p.Products[i].Confidence
		}
		b.Products = p.Products
		return confs, nil

	case model.DomainFacility:
		var f struct {
			Facilities []model.Facility `json:"facilities"`
		}
		if err := json.Unmarshal(payload, &f); err != nil {
			return nil, eris.Wrap(err, "extract: decode facilities")
		}
		confs := make([]float64, len(f.Facilities))
		for i := range f.Facilities {
			f.Facilities[i].Confidence = clamp01(f.Facilities[i].Confidence)
			confs[i] = f.Facilities[i].Confidence
		}
		b.Facilities = f.Facilities
		return confs, nil
	}
	return nil, eris.Errorf("extract: unknown domain %q", domain)
}

func generalItems(g model.GeneralTerms) int {
	n := 0
	for _, v := range []string{
		g.ContractNumber, g.ContractTitle, g.ManufacturerName, g.CounterpartyName,
		g.EffectiveDate, g.ExpirationDate, g.ExecutionDate, g.PaymentTerms,
	} {
		if v != "" {
			n++
		}
	}
	if g.AutoRenewal != nil {
		n++
	}
	return n
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
