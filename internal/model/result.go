package model

// Diagnostic records a degraded pipeline stage.
type Diagnostic struct {
	Stage   string `json:"stage"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Raw     string `json:"raw,omitempty"`
}

// PipelineResult is the terminal aggregate returned by one pipeline run.
type PipelineResult struct {
	FileName          string                      `json:"file_name"`
	Classification    Classification              `json:"classification"`
	Fields            map[Domain][]ExtractedField `json:"fields"`
	Amendments        AmendmentDetectionResult    `json:"amendments"`
	Conflicts         []Conflict                  `json:"conflicts"`
	Validations       []ValidationResult          `json:"validations"`
	OverallConfidence float64                     `json:"overall_confidence"`
	RequiresReview    bool                        `json:"requires_review"`
	ReviewReasons     []string                    `json:"review_reasons,omitempty"`
	Diagnostics       []Diagnostic                `json:"diagnostics,omitempty"`
	Usage             TokenUsage                  `json:"usage"`
}

// FieldCount returns the total number of extracted fields.
func (r *PipelineResult) FieldCount() int {
	n := 0
	for _, fs := range r.Fields {
		n += len(fs)
	}
	return n
}

// OrderedFields returns the extracted fields flattened in domain order.
func (r *PipelineResult) OrderedFields() []ExtractedField {
	var out []ExtractedField
	for _, d := range AllDomains() {
		out = append(out, r.Fields[d]...)
	}
	return out
}
