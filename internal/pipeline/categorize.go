package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/contract-cli/internal/amendment"
	"github.com/sells-group/contract-cli/internal/model"
)

// Categorize flattens a baseline into labeled fields, in domain order.
// Field names are stable "<domain>.<key>" identifiers; repeated items are
// numbered from 1. Dates are normalized to YYYY-MM-DD where recognizable.
// When a value has a source quote but no page, the page is located in doc.
func Categorize(b model.Baseline, doc model.RawDocument) []model.ExtractedField {
	c := categorizer{doc: doc}

	if g := b.General; g != nil {
		p := g.Provenance
		c.text(model.DomainGeneral, "contract_number", "Contract Number", g.ContractNumber, p)
		c.text(model.DomainGeneral, "contract_title", "Contract Title", g.ContractTitle, p)
		c.text(model.DomainGeneral, "manufacturer_name", "Manufacturer", g.ManufacturerName, p)
		c.text(model.DomainGeneral, "counterparty_name", "Counterparty", g.CounterpartyName, p)
		c.date(model.DomainGeneral, "effective_date", "Effective Date", g.EffectiveDate, p)
		c.date(model.DomainGeneral, "expiration_date", "Expiration Date", g.ExpirationDate, p)
		c.date(model.DomainGeneral, "execution_date", "Execution Date", g.ExecutionDate, p)
		c.text(model.DomainGeneral, "payment_terms", "Payment Terms", g.PaymentTerms, p)
		if g.AutoRenewal != nil {
			c.add(model.DomainGeneral, "auto_renewal", "Auto Renewal", model.ValueTypeJSON, *g.AutoRenewal, p)
		}
	}

	if f := b.Financial; f != nil {
		for i, t := range f.Tiers {
			n := i + 1
			label := fmt.Sprintf("Tier %d", n)
			if t.TierName != "" {
				label = fmt.Sprintf("Tier %d (%s)", n, t.TierName)
			}
			c.add(model.DomainFinancial, fmt.Sprintf("tier_%d_percentage", n), label+" Rebate Percentage", model.ValueTypeNumber, t.Percentage, t.Provenance)
			c.number(model.DomainFinancial, fmt.Sprintf("tier_%d_min_threshold", n), label+" Minimum Threshold", t.MinThreshold, t.Provenance)
			c.number(model.DomainFinancial, fmt.Sprintf("tier_%d_max_threshold", n), label+" Maximum Threshold", t.MaxThreshold, t.Provenance)
		}
		c.number(model.DomainFinancial, "admin_fee_percentage", "Admin Fee Percentage", f.AdminFeePercentage, f.Provenance)
		c.text(model.DomainFinancial, "payment_frequency", "Payment Frequency", f.PaymentFrequency, f.Provenance)
	}

	for i, p := range b.Products {
		n := i + 1
		c.text(model.DomainProduct, fmt.Sprintf("product_%d_ndc", n), fmt.Sprintf("Product %d NDC", n), p.NDC, p.Provenance)
		c.text(model.DomainProduct, fmt.Sprintf("product_%d_name", n), fmt.Sprintf("Product %d Name", n), p.Name, p.Provenance)
		c.text(model.DomainProduct, fmt.Sprintf("product_%d_package_size", n), fmt.Sprintf("Product %d Package Size", n), p.PackageSize, p.Provenance)
		c.number(model.DomainProduct, fmt.Sprintf("product_%d_price", n), fmt.Sprintf("Product %d Price", n), p.Price, p.Provenance)
	}

	for i, f := range b.Facilities {
		n := i + 1
		c.text(model.DomainFacility, fmt.Sprintf("facility_%d_name", n), fmt.Sprintf("Facility %d Name", n), f.Name, f.Provenance)
		c.text(model.DomainFacility, fmt.Sprintf("facility_%d_address", n), fmt.Sprintf("Facility %d Address", n), f.Address, f.Provenance)
		c.text(model.DomainFacility, fmt.Sprintf("facility_%d_dea_number", n), fmt.Sprintf("Facility %d DEA Number", n), f.DEANumber, f.Provenance)
	}

	return c.fields
}

type categorizer struct {
	doc    model.RawDocument
	fields []model.ExtractedField
}

func (c *categorizer) add(domain model.Domain, key, label string, vt model.ValueType, value any, p model.Provenance) {
	c.fields = append(c.fields, model.ExtractedField{
		Category:    domain,
		Name:        string(domain) + "." + key,
		Label:       label,
		ValueType:   vt,
		Value:       value,
		SourceQuote: p.SourceQuote,
		SourcePage:  c.page(p),
		Confidence:  p.Confidence,
	})
}

func (c *categorizer) text(domain model.Domain, key, label, value string, p model.Provenance) {
	if value = strings.TrimSpace(value); value != "" {
		c.add(domain, key, label, model.ValueTypeText, value, p)
	}
}

func (c *categorizer) date(domain model.Domain, key, label, value string, p model.Provenance) {
	if value = strings.TrimSpace(value); value != "" {
		c.add(domain, key, label, model.ValueTypeDate, amendment.NormalizeDate(value), p)
	}
}

func (c *categorizer) number(domain model.Domain, key, label string, value *float64, p model.Provenance) {
	if value != nil {
		c.add(domain, key, label, model.ValueTypeNumber, *value, p)
	}
}

func (c *categorizer) page(p model.Provenance) *int {
	if p.SourcePage != nil || p.SourceQuote == "" {
		return p.SourcePage
	}
	idx := strings.Index(c.doc.Text, p.SourceQuote)
	if idx < 0 {
		return nil
	}
	return c.doc.PageAt(idx)
}
