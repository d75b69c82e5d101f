package amendment

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-cli/internal/model"
)

func detect(text string) model.AmendmentDetectionResult {
	return NewDetector(Config{}).Detect(model.RawDocument{FileName: "contract.txt", Text: text})
}

func TestDetect_TierRateScenario(t *testing.T) {
	t.Parallel()

	text := "MASTER REBATE AGREEMENT\n\n" +
		"Amendment 1 dated 03/01/2024\n" +
		"The parties agree that the rebate rate of 5% increased to 8% for all qualifying purchases.\n"

	res := detect(text)
	require.True(t, res.HasAmendments)
	require.Len(t, res.Amendments, 1)

	a := res.Amendments[0]
	assert.Equal(t, model.AmendmentTierRateChange, a.AmendmentType)
	assert.Equal(t, 1, a.AmendmentNumber)
	assert.Equal(t, 5.0, a.OriginalValue)
	assert.Equal(t, 8.0, a.RevisedValue)
	require.NotNil(t, a.AmendmentDate)
	assert.Equal(t, "2024-03-01", *a.AmendmentDate)
	assert.Equal(t, "rebate_percentage", a.AffectedField)
	assert.Equal(t, "5% increased to 8%", a.SourceQuote)
	assert.InDelta(t, 0.9, a.Confidence, 1e-9)

	assert.Equal(t, 1, res.ConflictCount)
	assert.True(t, res.RequiresReview)
	assert.InDelta(t, 0.9, res.DetectionConfidence, 1e-9)

	conflicts := Reconcile(res.Amendments, model.Baseline{
		Financial: &model.FinancialTerms{Tiers: []model.RebateTier{{TierName: "Tier 1", Percentage: 5}}},
	})
	require.Len(t, conflicts, 1)
	assert.Contains(t, conflicts[0].ConflictDescription, "5%")
	assert.Contains(t, conflicts[0].ConflictDescription, "8%")
}

func TestDetect_NoAmendmentVocabulary(t *testing.T) {
	t.Parallel()

	res := detect("This Pricing Agreement sets prices for the period from 2024 to 2025. Net 30 days.")
	assert.False(t, res.HasAmendments)
	assert.NotNil(t, res.Amendments)
	assert.Empty(t, res.Amendments)
	assert.Zero(t, res.ConflictCount)
	assert.Zero(t, res.DetectionConfidence)
	assert.False(t, res.RequiresReview)
}

func TestDetect_MixedSection(t *testing.T) {
	t.Parallel()

	text := "Amendment No. 2 effective 06/01/2024\n" +
		"The expiration date is hereby extended from 12/31/2024 to 12/31/2025.\n" +
		"Add the following facility: Mercy General Hospital, Springfield IL.\n" +
		"Remove product: NDC 12345-6789-01 Amoxicillin 500mg.\n" +
		"Payment terms are changed from Net 30 days to Net 45 days.\n"

	res := detect(text)
	require.Len(t, res.Amendments, 4)

	types := make([]model.AmendmentType, 0, len(res.Amendments))
	for _, a := range res.Amendments {
		types = append(types, a.AmendmentType)
		assert.Equal(t, 2, a.AmendmentNumber)
		require.NotNil(t, a.AmendmentDate)
		assert.Equal(t, "2024-06-01", *a.AmendmentDate)
	}
	assert.Equal(t, []model.AmendmentType{
		model.AmendmentDateChange,
		model.AmendmentFacilityAddition,
		model.AmendmentProductRemoval,
		model.AmendmentPaymentTermChange,
	}, types)

	date := res.Amendments[0]
	assert.Equal(t, "expiration_date", date.AffectedField)
	assert.Equal(t, "2024-12-31", date.OriginalValue)
	assert.Equal(t, "2025-12-31", date.RevisedValue)

	facility := res.Amendments[1]
	assert.Nil(t, facility.OriginalValue)
	assert.Equal(t, "Mercy General Hospital, Springfield IL", facility.RevisedValue)

	product := res.Amendments[2]
	assert.Equal(t, "NDC 12345-6789-01 Amoxicillin 500mg", product.RevisedValue)

	payment := res.Amendments[3]
	assert.Equal(t, "Net 30 days", payment.OriginalValue)
	assert.Equal(t, "Net 45 days", payment.RevisedValue)

	assert.Equal(t, 2, res.ConflictCount)
	assert.InDelta(t, 0.825, res.DetectionConfidence, 1e-9)
	assert.True(t, res.RequiresReview)
}

func TestDetect_ExtendThroughWithoutOriginal(t *testing.T) {
	t.Parallel()

	res := detect("First Amendment\nThe term of the Agreement is extended through 06/30/2026.\n")
	require.Len(t, res.Amendments, 1)
	a := res.Amendments[0]
	assert.Equal(t, model.AmendmentDateChange, a.AmendmentType)
	assert.Nil(t, a.OriginalValue)
	assert.Equal(t, "2026-06-30", a.RevisedValue)
	assert.Equal(t, 1, a.AmendmentNumber)
}

func TestDetect_NetDaysChange(t *testing.T) {
	t.Parallel()

	res := detect("Modification 3\nNet 30 days is changed to Net 60 days for all invoices.\n")
	require.Len(t, res.Amendments, 1)
	a := res.Amendments[0]
	assert.Equal(t, model.AmendmentPaymentTermChange, a.AmendmentType)
	assert.Equal(t, "Net 30", a.OriginalValue)
	assert.Equal(t, "Net 60", a.RevisedValue)
	assert.Equal(t, 3, a.AmendmentNumber)
	assert.InDelta(t, 0.85, a.Confidence, 1e-9)
}

func TestDetect_TierNumberAndInlineOverlap(t *testing.T) {
	t.Parallel()

	res := detect("Amendment 3\nTier 2 rebate changed from 4% to 6%.\n")
	require.Len(t, res.Amendments, 1)
	a := res.Amendments[0]
	assert.Equal(t, model.AmendmentTierRateChange, a.AmendmentType)
	assert.Equal(t, "tier_2_percentage", a.AffectedField)
	assert.Equal(t, 4.0, a.OriginalValue)
	assert.Equal(t, 6.0, a.RevisedValue)
}

func TestDetect_InlineChange(t *testing.T) {
	t.Parallel()

	res := detect("Amendment\nThe minimum threshold of $100,000 is hereby revised to $150,000.\n")
	require.Len(t, res.Amendments, 1)

	a := res.Amendments[0]
	assert.Equal(t, 0, a.AmendmentNumber)
	assert.Equal(t, model.AmendmentOther, a.AmendmentType)
	assert.Nil(t, a.AmendmentDate)
	assert.Equal(t, "$100,000", a.OriginalValue)
	assert.Equal(t, "$150,000", a.RevisedValue)
	assert.LessOrEqual(t, a.Confidence, 0.6)

	assert.Zero(t, res.ConflictCount)
	assert.True(t, res.RequiresReview)
}

func TestDetect_InlineIgnoresDigitlessPhrases(t *testing.T) {
	t.Parallel()

	res := detect("Amendment\nPrices may change from time to time as agreed.\n")
	assert.False(t, res.HasAmendments)
	assert.Empty(t, res.Amendments)
}

func TestDetect_VocabularyWithoutAmendmentsRequiresReview(t *testing.T) {
	t.Parallel()

	res := detect("This Agreement may only be changed by a written amendment signed by both parties.\n")
	assert.False(t, res.HasAmendments)
	assert.Empty(t, res.Amendments)
	assert.Zero(t, res.ConflictCount)
	assert.Zero(t, res.DetectionConfidence)
	assert.True(t, res.RequiresReview)
}

func TestDetect_AddendumAfterNumberedAmendment(t *testing.T) {
	t.Parallel()

	res := detect("Amendment No. 1\nTier 1 rebate changed from 5% to 8%.\n" +
		"ADDENDUM\nTier 2 rebate changed from 3% to 4%.\n")
	require.Len(t, res.Amendments, 2)

	first, second := res.Amendments[0], res.Amendments[1]
	assert.Equal(t, 1, first.AmendmentNumber)
	assert.Equal(t, "tier_1_percentage", first.AffectedField)
	assert.Equal(t, 5.0, first.OriginalValue)

	assert.Equal(t, 2, second.AmendmentNumber)
	assert.Equal(t, "tier_2_percentage", second.AffectedField)
	assert.Equal(t, 3.0, second.OriginalValue)
}

func TestDetect_UnnumberedSectionDoesNotReuseNumber(t *testing.T) {
	t.Parallel()

	text := "Amendment No. 2\nTier 1 rebate changed from 5% to 8%.\n" +
		strings.Repeat("General terms continue unchanged. ", 80) + "\n" +
		"ADDENDUM\nTier 2 rebate changed from 3% to 4%.\n"

	res := detect(text)
	require.Len(t, res.Amendments, 2)
	assert.Equal(t, 2, res.Amendments[0].AmendmentNumber)
	assert.Equal(t, 3, res.Amendments[1].AmendmentNumber)
}

func TestDetect_TierLabelDoesNotLeakAcrossChanges(t *testing.T) {
	t.Parallel()

	res := detect("Amendment 4\nThe Tier 2 rebate moves from 5% to 8%, and 3% to 4% for Tier 1.\n")
	var fields []string
	for _, a := range res.Amendments {
		if a.AmendmentType == model.AmendmentTierRateChange {
			fields = append(fields, a.AffectedField)
		}
	}
	assert.Equal(t, []string{"tier_2_percentage", "tier_1_percentage"}, fields)
}

func TestDetect_RebateWordRequired(t *testing.T) {
	t.Parallel()

	res := detect("Amendment 1\nThe late fee of 1% is raised to 2% per month.\n")
	for _, a := range res.Amendments {
		assert.NotEqual(t, model.AmendmentTierRateChange, a.AmendmentType)
	}
}

func TestDetect_SourcePage(t *testing.T) {
	t.Parallel()

	page1 := "Original agreement terms.\n"
	text := page1 + "Amendment 1\nRebate tier 1 reduced from 6% to 4%.\n"
	doc := model.RawDocument{Text: text, PageOffsets: []int{0, len(page1)}}

	res := NewDetector(Config{}).Detect(doc)
	require.NotEmpty(t, res.Amendments)
	require.NotNil(t, res.Amendments[0].SourcePage)
	assert.Equal(t, 2, *res.Amendments[0].SourcePage)
}

func TestDetect_Deterministic(t *testing.T) {
	t.Parallel()

	text := "Amendment 1 dated 01/15/2024\nRebate tier 1 changed from 3% to 4%.\n" +
		"Revision 2\nThe effective date changed from 01/01/2024 to 02/01/2024.\n" +
		"Unit price 12.50 amended to 13.75.\n"
	d := NewDetector(Config{})
	first := d.Detect(model.RawDocument{Text: text})
	second := d.Detect(model.RawDocument{Text: text})
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first.Amendments)
}
