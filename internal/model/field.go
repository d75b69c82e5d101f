package model

// ValueType is the type tag of an extracted field value.
type ValueType string

const (
	ValueTypeText   ValueType = "text"
	ValueTypeNumber ValueType = "number"
	ValueTypeDate   ValueType = "date"
	ValueTypeJSON   ValueType = "json"
)

// ExtractedField is a single labeled value produced by the field categorizer.
type ExtractedField struct {
	Category    Domain    `json:"category"`
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	ValueType   ValueType `json:"value_type"`
	Value       any       `json:"value"`
	SourceQuote string    `json:"source_quote,omitempty"`
	SourcePage  *int      `json:"source_page,omitempty"`
	Confidence  float64   `json:"confidence"`
}

// GroupFields groups fields by category, preserving order within a group.
func GroupFields(fields []ExtractedField) map[Domain][]ExtractedField {
	out := make(map[Domain][]ExtractedField)
	for _, f := range fields {
		out[f.Category] = append(out[f.Category], f)
	}
	return out
}
