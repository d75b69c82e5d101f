package model

// AmendmentType classifies what an amendment changes.
type AmendmentType string

const (
	AmendmentTierRateChange    AmendmentType = "tier_rate_change"
	AmendmentDateChange        AmendmentType = "date_change"
	AmendmentFacilityAddition  AmendmentType = "facility_addition"
	AmendmentFacilityRemoval   AmendmentType = "facility_removal"
	AmendmentProductAddition   AmendmentType = "product_addition"
	AmendmentProductRemoval    AmendmentType = "product_removal"
	AmendmentTermModification  AmendmentType = "term_modification"
	AmendmentPaymentTermChange AmendmentType = "payment_term_change"
	AmendmentOther             AmendmentType = "other"
)

// Reconcilable reports whether amendments of this type have a baseline
// counterpart that a conflict can be raised against.
func (t AmendmentType) Reconcilable() bool {
	switch t {
	case AmendmentTierRateChange, AmendmentDateChange, AmendmentPaymentTermChange:
		return true
	}
	return false
}

// Amendment is a single detected change to a previously stated value.
// AmendmentNumber 0 marks an inline change found outside any section.
type Amendment struct {
	AmendmentNumber int           `json:"amendment_number"`
	AmendmentDate   *string       `json:"amendment_date"`
	AmendmentType   AmendmentType `json:"amendment_type"`
	AffectedField   string        `json:"affected_field"`
	OriginalValue   any           `json:"original_value"`
	RevisedValue    any           `json:"revised_value"`
	Description     string        `json:"description"`
	SourceQuote     string        `json:"source_quote"`
	SourcePage      *int          `json:"source_page,omitempty"`
	Confidence      float64       `json:"confidence"`
}

// AmendmentDetectionResult is the output of amendment detection.
type AmendmentDetectionResult struct {
	HasAmendments       bool        `json:"has_amendments"`
	Amendments          []Amendment `json:"amendments"`
	ConflictCount       int         `json:"conflict_count"`
	RequiresReview      bool        `json:"requires_review"`
	DetectionConfidence float64     `json:"detection_confidence"`
}

// Conflict flags a baseline value that an amendment has superseded.
type Conflict struct {
	Amendment           Amendment `json:"amendment"`
	ConflictDescription string    `json:"conflict_description"`
}
