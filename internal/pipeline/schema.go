package pipeline

// JSON schemas for every structured completion the pipeline issues. They
// are validated at the completion boundary before any payload is decoded.

func nullable(t string) map[string]any {
	return map[string]any{"type": []any{t, "null"}}
}

func confidenceProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0, "maximum": 1}
}

func provenanceProps(props map[string]any) map[string]any {
	props["source_quote"] = nullable("string")
	props["source_page"] = nullable("integer")
	props["confidence"] = confidenceProp()
	return props
}

func objectSchema(required []any, props map[string]any) map[string]any {
	return map[string]any{
		"type":       "object",
		"required":   required,
		"properties": props,
	}
}

// The document type is deliberately not an enum here: unknown labels are
// mapped to "other" after decoding rather than rejected.
var classifySchema = objectSchema(
	[]any{"document_type", "confidence"},
	map[string]any{
		"document_type":           map[string]any{"type": "string"},
		"confidence":              confidenceProp(),
		"contains_financial_data": map[string]any{"type": "boolean"},
		"contains_product_data":   map[string]any{"type": "boolean"},
	},
)

var generalSchema = objectSchema(
	[]any{"confidence"},
	provenanceProps(map[string]any{
		"contract_number":   nullable("string"),
		"contract_title":    nullable("string"),
		"manufacturer_name": nullable("string"),
		"counterparty_name": nullable("string"),
		"effective_date":    nullable("string"),
		"expiration_date":   nullable("string"),
		"execution_date":    nullable("string"),
		"payment_terms":     nullable("string"),
		"auto_renewal":      nullable("boolean"),
	}),
)

var financialSchema = objectSchema(
	[]any{"rebate_tiers"},
	provenanceProps(map[string]any{
		"rebate_tiers": map[string]any{
			"type": "array",
			"items": objectSchema(
				[]any{"percentage", "confidence"},
				provenanceProps(map[string]any{
					"tier_name":     nullable("string"),
					"percentage":    map[string]any{"type": "number"},
					"min_threshold": nullable("number"),
					"max_threshold": nullable("number"),
				}),
			),
		},
		"admin_fee_percentage": nullable("number"),
		"payment_frequency":    nullable("string"),
	}),
)

var productSchema = objectSchema(
	[]any{"products"},
	map[string]any{
		"products": map[string]any{
			"type": "array",
			"items": objectSchema(
				[]any{"confidence"},
				provenanceProps(map[string]any{
					"ndc":          nullable("string"),
					"name":         nullable("string"),
					"package_size": nullable("string"),
					"price":        nullable("number"),
				}),
			),
		},
	},
)

var facilitySchema = objectSchema(
	[]any{"facilities"},
	map[string]any{
		"facilities": map[string]any{
			"type": "array",
			"items": objectSchema(
				[]any{"name", "confidence"},
				provenanceProps(map[string]any{
					"name":       map[string]any{"type": "string"},
					"address":    nullable("string"),
					"dea_number": nullable("string"),
				}),
			),
		},
	},
)
