package pipeline

import (
	"fmt"

	"github.com/sells-group/contract-cli/internal/model"
)

// DefaultReviewThreshold is the overall confidence below which a result is
// routed to human review.
const DefaultReviewThreshold = 0.7

// Scores carries every confidence signal produced by one run.
type Scores struct {
	Classification model.Classification
	Domains        []DomainOutcome
	Detection      model.AmendmentDetectionResult
}

// Aggregate returns the mean of the confidences that are actually present.
// A failed classifier, a failed or empty domain, and a detection pass that
// found nothing contribute no term. With no terms the result is 0.
func Aggregate(s Scores) float64 {
	var terms []float64
	if s.Classification.Error == "" {
		terms = append(terms, s.Classification.Confidence)
	}
	for _, d := range s.Domains {
		if d.Contributes() {
			terms = append(terms, d.Confidence)
		}
	}
	if s.Detection.HasAmendments {
		terms = append(terms, s.Detection.DetectionConfidence)
	}
	return mean(terms)
}

// ReviewDecision reports whether a run needs human review and why. A run is
// flagged when overall confidence is under threshold, when any stage
// failed, or when amendment detection flagged it.
func ReviewDecision(s Scores, overall, threshold float64) (bool, []string) {
	if threshold <= 0 {
		threshold = DefaultReviewThreshold
	}

	var reasons []string
	if overall < threshold {
		reasons = append(reasons, fmt.Sprintf("overall confidence %.2f below %.2f", overall, threshold))
	}
	if s.Classification.Error != "" {
		reasons = append(reasons, "classification failed: "+s.Classification.Error)
	}
	for _, d := range s.Domains {
		if !d.Result.OK() {
			reasons = append(reasons, fmt.Sprintf("%s extraction failed (%s)", d.Domain, d.Result.Kind))
		}
	}
	if s.Detection.RequiresReview {
		switch {
		case s.Detection.ConflictCount > 0:
			reasons = append(reasons, fmt.Sprintf("%d amendment(s) change reconcilable terms", s.Detection.ConflictCount))
		case !s.Detection.HasAmendments:
			reasons = append(reasons, "amendment language found but no amendments extracted")
		default:
			reasons = append(reasons, fmt.Sprintf("amendment detection confidence %.2f below threshold", s.Detection.DetectionConfidence))
		}
	}
	return len(reasons) > 0, reasons
}
