package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contract-cli/internal/model"
)

var webhookClient = &http.Client{Timeout: 10 * time.Second}

// ReviewNotice is the payload posted to the review webhook.
type ReviewNotice struct {
	RunID             string             `json:"run_id,omitempty"`
	FileName          string             `json:"file_name"`
	DocumentType      model.DocumentType `json:"document_type"`
	OverallConfidence float64            `json:"overall_confidence"`
	Reasons           []string           `json:"reasons"`
	Conflicts         []model.Conflict   `json:"conflicts,omitempty"`
}

// NotifyReview posts a ReviewNotice for result to webhookURL. It is a no-op
// when the URL is empty or the result does not require review.
func NotifyReview(ctx context.Context, webhookURL, runID string, result *model.PipelineResult) error {
	if webhookURL == "" || result == nil || !result.RequiresReview {
		return nil
	}

	body, err := json.Marshal(ReviewNotice{
		RunID:             runID,
		FileName:          result.FileName,
		DocumentType:      result.Classification.DocumentType,
		OverallConfidence: result.OverallConfidence,
		Reasons:           result.ReviewReasons,
		Conflicts:         result.Conflicts,
	})
	if err != nil {
		return eris.Wrap(err, "review: marshal notice")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "review: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := webhookClient.Do(req)
	if err != nil {
		return eris.Wrap(err, "review: post webhook")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 300 {
		return eris.New(fmt.Sprintf("review: webhook returned %d", resp.StatusCode))
	}

	zap.L().Info("review: notice sent",
		zap.String("file", result.FileName),
		zap.String("run_id", runID),
		zap.Int("reasons", len(result.ReviewReasons)),
	)
	return nil
}
