package model

// Domain names the extraction domains issued to the completion service.
type Domain string

const (
	DomainGeneral   Domain = "general"
	DomainFinancial Domain = "financial"
	DomainProduct   Domain = "product"
	DomainFacility  Domain = "facility"
)

// AllDomains returns the extraction domains in their fixed extraction order.
func AllDomains() []Domain {
	return []Domain{DomainGeneral, DomainFinancial, DomainProduct, DomainFacility}
}

// Provenance locates an extracted value in the source text.
type Provenance struct {
	SourceQuote string  `json:"source_quote,omitempty"`
	SourcePage  *int    `json:"source_page,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// GeneralTerms holds the general-terms domain payload.
type GeneralTerms struct {
	Provenance
	ContractNumber   string `json:"contract_number,omitempty"`
	ContractTitle    string `json:"contract_title,omitempty"`
	ManufacturerName string `json:"manufacturer_name,omitempty"`
	CounterpartyName string `json:"counterparty_name,omitempty"`
	EffectiveDate    string `json:"effective_date,omitempty"`
	ExpirationDate   string `json:"expiration_date,omitempty"`
	ExecutionDate    string `json:"execution_date,omitempty"`
	PaymentTerms     string `json:"payment_terms,omitempty"`
	AutoRenewal      *bool  `json:"auto_renewal,omitempty"`
}

// RebateTier is a single rebate tier from the financial domain.
type RebateTier struct {
	Provenance
	TierName     string   `json:"tier_name,omitempty"`
	Percentage   float64  `json:"percentage"`
	MinThreshold *float64 `json:"min_threshold,omitempty"`
	MaxThreshold *float64 `json:"max_threshold,omitempty"`
}

// FinancialTerms holds the financial domain payload.
type FinancialTerms struct {
	Provenance
	Tiers              []RebateTier `json:"rebate_tiers"`
	AdminFeePercentage *float64     `json:"admin_fee_percentage,omitempty"`
	PaymentFrequency   string       `json:"payment_frequency,omitempty"`
}

// Product is a single product line from the product domain.
type Product struct {
	Provenance
	NDC         string   `json:"ndc,omitempty"`
	Name        string   `json:"name,omitempty"`
	PackageSize string   `json:"package_size,omitempty"`
	Price       *float64 `json:"price,omitempty"`
}

// Facility is a single covered facility from the facility domain.
type Facility struct {
	Provenance
	Name      string `json:"name,omitempty"`
	Address   string `json:"address,omitempty"`
	DEANumber string `json:"dea_number,omitempty"`
}

// Baseline is the structured output of field extraction: the contract's
// apparent current values before amendment cross-checking. A nil domain
// pointer or empty slice means that domain is absent.
type Baseline struct {
	General    *GeneralTerms   `json:"general,omitempty"`
	Financial  *FinancialTerms `json:"financial,omitempty"`
	Products   []Product       `json:"products,omitempty"`
	Facilities []Facility      `json:"facilities,omitempty"`
}

// TierPercentages returns the percentage of every rebate tier in the baseline.
func (b Baseline) TierPercentages() []float64 {
	if b.Financial == nil {
		return nil
	}
	out := make([]float64, 0, len(b.Financial.Tiers))
	for _, t := range b.Financial.Tiers {
		out = append(out, t.Percentage)
	}
	return out
}

// ContractDates returns the non-empty effective, expiration and execution
// dates, in that order.
func (b Baseline) ContractDates() []string {
	if b.General == nil {
		return nil
	}
	var out []string
	for _, d := range []string{b.General.EffectiveDate, b.General.ExpirationDate, b.General.ExecutionDate} {
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}
