// Package monitoring watches extraction run health and raises webhook
// alerts when failure, review or cost thresholds are breached.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contract-cli/internal/cost"
	"github.com/sells-group/contract-cli/internal/model"
)

// maxCollectRuns bounds how many recent runs one snapshot inspects.
const maxCollectRuns = 10000

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	RunsTotal     int     `json:"runs_total"`
	RunsComplete  int     `json:"runs_complete"`
	RunsFailed    int     `json:"runs_failed"`
	RunsInFlight  int     `json:"runs_in_flight"`
	FailRate      float64 `json:"fail_rate"`
	ReviewCount   int     `json:"review_count"`
	ReviewRate    float64 `json:"review_rate"`
	AvgConfidence float64 `json:"avg_confidence"`
	TotalTokens   int     `json:"total_tokens"`
	CostUSD       float64 `json:"cost_usd"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the store method the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter model.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the run store.
type Collector struct {
	runs    RunLister
	costs   *cost.Calculator
	modelID string
	now     func() time.Time
}

// NewCollector creates a metrics collector. costs may be nil, in which case
// no cost is attributed.
func NewCollector(runs RunLister, costs *cost.Calculator, modelID string) *Collector {
	return &Collector{runs: runs, costs: costs, modelID: modelID, now: time.Now}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, model.RunFilter{Limit: maxCollectRuns})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	var totalConfidence float64
	for _, r := range runs {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++

		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
			totalConfidence += r.OverallConfidence
			if r.RequiresReview {
				snap.ReviewCount++
			}
		case model.RunStatusFailed:
			snap.RunsFailed++
		default:
			snap.RunsInFlight++
		}

		if r.Result != nil {
			u := r.Result.Usage
			snap.TotalTokens += u.InputTokens + u.OutputTokens + u.CacheCreationTokens + u.CacheReadTokens
			if c.costs != nil {
				snap.CostUSD += c.costs.Claude(c.modelID, u)
			}
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.FailRate = float64(snap.RunsFailed) / float64(finished)
	}
	if snap.RunsComplete > 0 {
		snap.ReviewRate = float64(snap.ReviewCount) / float64(snap.RunsComplete)
		snap.AvgConfidence = totalConfidence / float64(snap.RunsComplete)
	}

	return snap, nil
}
