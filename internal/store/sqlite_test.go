package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-cli/internal/config"
	"github.com/sells-group/contract-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleResult() *model.PipelineResult {
	page := 3
	return &model.PipelineResult{
		FileName:       "rebate.pdf",
		Classification: model.Classification{DocumentType: model.DocumentTypeRebateAgreement, Confidence: 0.9},
		Fields: map[model.Domain][]model.ExtractedField{
			model.DomainFinancial: {
				{Category: model.DomainFinancial, Name: "financial.tier_1_percentage", Label: "Tier 1 Rebate Percentage", ValueType: model.ValueTypeNumber, Value: 5.0, Confidence: 0.9, SourcePage: &page, SourceQuote: "5% rebate"},
			},
			model.DomainGeneral: {
				{Category: model.DomainGeneral, Name: "general.contract_number", Label: "Contract Number", ValueType: model.ValueTypeText, Value: "RA-100", Confidence: 0.8},
				{Category: model.DomainGeneral, Name: "general.auto_renewal", Label: "Auto Renewal", ValueType: model.ValueTypeJSON, Value: true, Confidence: 0.8},
			},
		},
		Amendments:        model.AmendmentDetectionResult{Amendments: []model.Amendment{}},
		Conflicts:         []model.Conflict{},
		Validations:       []model.ValidationResult{},
		OverallConfidence: 0.62,
		RequiresReview:    true,
		ReviewReasons:     []string{"overall confidence 0.62 below 0.70"},
	}
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "rebate.pdf")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusExtracting))
	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusExtracting, got.Status)
	assert.Nil(t, got.Result)

	require.NoError(t, st.CompleteRun(ctx, run.ID, sampleResult()))
	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.True(t, got.RequiresReview)
	assert.InDelta(t, 0.62, got.OverallConfidence, 1e-9)
	require.NotNil(t, got.Result)
	assert.Equal(t, "rebate.pdf", got.Result.FileName)
	assert.Equal(t, 3, got.Result.FieldCount())
}

func TestSQLite_ListFieldsInDomainOrder(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "rebate.pdf")
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, run.ID, sampleResult()))

	fields, err := st.ListFields(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, "general.contract_number", fields[0].Name)
	assert.Equal(t, "RA-100", fields[0].Value)
	assert.Nil(t, fields[0].SourcePage)
	assert.Equal(t, true, fields[1].Value)
	assert.Equal(t, "financial.tier_1_percentage", fields[2].Name)
	assert.Equal(t, 5.0, fields[2].Value)
	require.NotNil(t, fields[2].SourcePage)
	assert.Equal(t, 3, *fields[2].SourcePage)

	// Completing again replaces the fields.
	res := sampleResult()
	res.Fields = map[model.Domain][]model.ExtractedField{}
	require.NoError(t, st.CompleteRun(ctx, run.ID, res))
	fields, err = st.ListFields(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestSQLite_FailRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "broken.pdf")
	require.NoError(t, err)
	require.NoError(t, st.FailRun(ctx, run.ID, "document: no extractable text"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "document: no extractable text", got.Error)
}

func TestSQLite_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	err = st.UpdateRunStatus(ctx, "missing", model.RunStatusFailed)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = st.CompleteRun(ctx, "missing", sampleResult())
	assert.True(t, errors.Is(err, ErrNotFound))

	err = st.FailRun(ctx, "missing", "x")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ListRunsFilters(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "a.pdf")
	require.NoError(t, err)
	b, err := st.CreateRun(ctx, "b.pdf")
	require.NoError(t, err)
	_, err = st.CreateRun(ctx, "c.pdf")
	require.NoError(t, err)

	require.NoError(t, st.CompleteRun(ctx, a.ID, sampleResult()))
	clean := sampleResult()
	clean.RequiresReview = false
	require.NoError(t, st.CompleteRun(ctx, b.ID, clean))

	all, err := st.ListRuns(ctx, model.RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	complete, err := st.ListRuns(ctx, model.RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	assert.Len(t, complete, 2)

	review := true
	flagged, err := st.ListRuns(ctx, model.RunFilter{RequiresReview: &review})
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, a.ID, flagged[0].ID)

	page, err := st.ListRuns(ctx, model.RunFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestOpen(t *testing.T) {
	st, err := Open(context.Background(), config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "o.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, st)
	require.NoError(t, st.Close())

	_, err = Open(context.Background(), config.StoreConfig{Driver: "mongo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown driver "mongo"`)
}
