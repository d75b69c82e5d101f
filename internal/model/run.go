package model

import "time"

// RunStatus represents the current state of an extraction run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusExtracting RunStatus = "extracting"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is a persisted pipeline invocation for one file.
type Run struct {
	ID                string          `json:"id"`
	FileName          string          `json:"file_name"`
	Status            RunStatus       `json:"status"`
	RequiresReview    bool            `json:"requires_review"`
	OverallConfidence float64         `json:"overall_confidence"`
	Result            *PipelineResult `json:"result,omitempty"`
	Error             string          `json:"error,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// RunFilter narrows run listings.
type RunFilter struct {
	Status         RunStatus
	RequiresReview *bool
	Limit          int
	Offset         int
}
