package model

import "sort"

// DocumentType represents a classified contract document category.
type DocumentType string

const (
	DocumentTypeRebateAgreement   DocumentType = "rebate_agreement"
	DocumentTypePricingAgreement  DocumentType = "pricing_agreement"
	DocumentTypePurchaseAgreement DocumentType = "purchase_agreement"
	DocumentTypeGPOAgreement      DocumentType = "gpo_agreement"
	DocumentTypeServiceAgreement  DocumentType = "service_agreement"
	DocumentTypeAmendment         DocumentType = "amendment"
	DocumentTypeInvoice           DocumentType = "invoice"
	DocumentTypeClaim             DocumentType = "claim"
	DocumentTypeOther             DocumentType = "other"
)

// AllDocumentTypes returns all defined document types.
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypeRebateAgreement,
		DocumentTypePricingAgreement,
		DocumentTypePurchaseAgreement,
		DocumentTypeGPOAgreement,
		DocumentTypeServiceAgreement,
		DocumentTypeAmendment,
		DocumentTypeInvoice,
		DocumentTypeClaim,
		DocumentTypeOther,
	}
}

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	for _, known := range AllDocumentTypes() {
		if known == t {
			return true
		}
	}
	return false
}

// Classification is the output of the document classifier.
type Classification struct {
	DocumentType          DocumentType `json:"document_type"`
	Confidence            float64      `json:"confidence"`
	ContainsFinancialData bool         `json:"contains_financial_data"`
	ContainsProductData   bool         `json:"contains_product_data"`
	Error                 string       `json:"error,omitempty"`
}

// RawDocument is the immutable input to the pipeline. PageOffsets holds the
// starting character offset of each page, ascending; nil when unknown.
type RawDocument struct {
	FileName    string `json:"file_name"`
	Text        string `json:"-"`
	PageOffsets []int  `json:"page_offsets,omitempty"`
}

// PageAt returns the 1-based page containing the character offset, or nil
// when the document carries no page information.
func (d RawDocument) PageAt(offset int) *int {
	if len(d.PageOffsets) == 0 || offset < 0 {
		return nil
	}
	// First page whose start is beyond offset; the page before it holds offset.
	idx := sort.SearchInts(d.PageOffsets, offset+1)
	page := idx
	if page < 1 {
		page = 1
	}
	return &page
}
