package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-cli/internal/completion"
	"github.com/sells-group/contract-cli/internal/model"
)

func extractWith(t *testing.T, domain model.Domain, response string) (DomainOutcome, model.Baseline) {
	t.Helper()
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, named("extract_"+string(domain))).Return(textResponse(response), nil)

	var b model.Baseline
	out := ExtractDomain(context.Background(), c, domain, model.RawDocument{FileName: "c.txt", Text: "contract text"}, 0, &b)
	c.AssertExpectations(t)
	return out, b
}

func TestExtractDomain_General(t *testing.T) {
	t.Parallel()

	out, b := extractWith(t, model.DomainGeneral,
		`{"contract_number": "RA-100", "manufacturer_name": "Acme Pharma", "effective_date": "2024-01-01", "auto_renewal": true, "confidence": 0.8}`)

	require.True(t, out.Contributes())
	assert.Equal(t, 4, out.Items)
	assert.InDelta(t, 0.8, out.Confidence, 1e-9)
	require.NotNil(t, b.General)
	assert.Equal(t, "RA-100", b.General.ContractNumber)
	require.NotNil(t, b.General.AutoRenewal)
	assert.True(t, *b.General.AutoRenewal)
}

func TestExtractDomain_FinancialMeanOfItems(t *testing.T) {
	t.Parallel()

	out, b := extractWith(t, model.DomainFinancial, `{
		"rebate_tiers": [
			{"tier_name": "Base", "percentage": 5, "min_threshold": 0, "confidence": 0.9},
			{"tier_name": "Growth", "percentage": 7.5, "min_threshold": 1000000, "confidence": 0.7}
		],
		"admin_fee_percentage": 3,
		"confidence": 0.5
	}`)

	assert.Equal(t, 3, out.Items)
	assert.InDelta(t, (0.9+0.7+0.5)/3, out.Confidence, 1e-9)
	require.NotNil(t, b.Financial)
	assert.Equal(t, []float64{5, 7.5}, b.TierPercentages())
}

func TestExtractDomain_EmptyListContributesNothing(t *testing.T) {
	t.Parallel()

	out, b := extractWith(t, model.DomainProduct, `{"products": []}`)
	assert.True(t, out.Result.OK())
	assert.False(t, out.Contributes())
	assert.Zero(t, out.Confidence)
	assert.Empty(t, b.Products)
}

func TestExtractDomain_SchemaErrorLeavesBaseline(t *testing.T) {
	t.Parallel()

	// Facilities require a name.
	out, b := extractWith(t, model.DomainFacility, `{"facilities": [{"address": "1 Main St", "confidence": 0.9}]}`)
	assert.Equal(t, completion.KindSchemaError, out.Result.Kind)
	assert.False(t, out.Contributes())
	assert.Nil(t, b.Facilities)
	assert.NotEmpty(t, out.Result.Raw)
}

func TestExtractDomain_ServiceError(t *testing.T) {
	t.Parallel()

	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything).Return(nil, errUnavailable)

	var b model.Baseline
	out := ExtractDomain(context.Background(), c, model.DomainGeneral, model.RawDocument{Text: "x"}, 0, &b)
	assert.Equal(t, completion.KindServiceError, out.Result.Kind)
	assert.Nil(t, b.General)
}

func TestExtractDomain_EmptyTextSkipsService(t *testing.T) {
	t.Parallel()

	c := &mockCompleter{}
	var b model.Baseline
	out := ExtractDomain(context.Background(), c, model.DomainProduct, model.RawDocument{Text: ""}, 0, &b)
	assert.True(t, out.Result.OK())
	assert.False(t, out.Contributes())
	c.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestExtractDomain_RejectsOutOfRangeConfidence(t *testing.T) {
	t.Parallel()

	out, b := extractWith(t, model.DomainProduct,
		`{"products": [{"ndc": "12345-6789-01", "name": "Drug A", "price": 12.5, "confidence": 0.95}, {"name": "Drug B", "confidence": 1.5}]}`)
	assert.Equal(t, completion.KindSchemaError, out.Result.Kind)
	assert.Nil(t, b.Products)
}
