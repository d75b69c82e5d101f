package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-cli/internal/model"
)

func reviewResult() *model.PipelineResult {
	return &model.PipelineResult{
		FileName:          "rebate.pdf",
		Classification:    model.Classification{DocumentType: model.DocumentTypeRebateAgreement},
		OverallConfidence: 0.55,
		RequiresReview:    true,
		ReviewReasons:     []string{"overall confidence 0.55 below 0.70"},
	}
}

func TestNotifyReview(t *testing.T) {
	t.Parallel()

	var got ReviewNotice
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NotifyReview(context.Background(), srv.URL, "run-1", reviewResult())
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "rebate.pdf", got.FileName)
	assert.Equal(t, model.DocumentTypeRebateAgreement, got.DocumentType)
	assert.Equal(t, []string{"overall confidence 0.55 below 0.70"}, got.Reasons)
}

func TestNotifyReview_NoOp(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer srv.Close()

	clean := reviewResult()
	clean.RequiresReview = false

	require.NoError(t, NotifyReview(context.Background(), "", "run-1", reviewResult()))
	require.NoError(t, NotifyReview(context.Background(), srv.URL, "run-1", clean))
	require.NoError(t, NotifyReview(context.Background(), srv.URL, "run-1", nil))
	assert.False(t, called)
}

func TestNotifyReview_ErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NotifyReview(context.Background(), srv.URL, "", reviewResult())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
