// Package amendment finds amendment sections in contract text, extracts the
// typed changes they make, and cross-checks them against a baseline.
package amendment

import (
	"regexp"

	"go.uber.org/zap"

	"github.com/sells-group/contract-cli/internal/model"
)

const (
	// DefaultWindowChars bounds the span captured after a heading.
	DefaultWindowChars = 2000
	// DefaultOverlapThreshold is the overlap ratio above which two sections
	// are treated as duplicates.
	DefaultOverlapThreshold = 0.5
	// DefaultReviewThreshold is the detection confidence below which a
	// document with amendments is routed to review.
	DefaultReviewThreshold = 0.7
)

// Config tunes the detector. Zero values fall back to the defaults.
type Config struct {
	WindowChars      int
	OverlapThreshold float64
	ReviewThreshold  float64
}

// Detector extracts amendments from raw text. It holds no per-document
// state and is safe for concurrent use.
type Detector struct {
	cfg        Config
	extractors []extractor
}

// NewDetector creates a Detector with the given configuration.
func NewDetector(cfg Config) *Detector {
	if cfg.WindowChars <= 0 {
		cfg.WindowChars = DefaultWindowChars
	}
	if cfg.OverlapThreshold <= 0 {
		cfg.OverlapThreshold = DefaultOverlapThreshold
	}
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = DefaultReviewThreshold
	}
	return &Detector{cfg: cfg, extractors: defaultExtractors()}
}

var reSectionDate = regexp.MustCompile(`(?i)\b(?:dated|effective(?:\s+as\s+of)?|as\s+of)\s*:?\s*(` + datePattern + `)`)
var reAnyDate = regexp.MustCompile(datePattern)

// Detect scans doc for amendments. Documents without any amendment
// vocabulary yield an empty result.
func (d *Detector) Detect(doc model.RawDocument) model.AmendmentDetectionResult {
	result := model.AmendmentDetectionResult{Amendments: []model.Amendment{}}
	if !hasHeading(doc.Text) {
		return result
	}

	sections := dedupeSections(discoverSections(doc.Text, d.cfg.WindowChars), d.cfg.OverlapThreshold)

	type seenKey struct {
		start int
		kind  model.AmendmentType
	}
	seen := make(map[seenKey]bool)
	var typed []change

	for _, sec := range sections {
		date := sectionDate(sec.text)
		for _, ex := range d.extractors {
			for _, c := range ex.extract(sec.text) {
				c.start += sec.start
				c.end += sec.start
				// Sections may still overlap below the dedupe threshold.
				key := seenKey{start: c.start, kind: c.kind}
				if seen[key] {
					continue
				}
				seen[key] = true
				typed = append(typed, c)
				result.Amendments = append(result.Amendments, d.toAmendment(doc, c, sec.number, date))
			}
		}
	}

	for _, c := range findInlineChanges(doc.Text, typed) {
		result.Amendments = append(result.Amendments, d.toAmendment(doc, c, 0, nil))
	}

	summarize(&result, d.cfg.ReviewThreshold)

	zap.L().Debug("amendment: detection complete",
		zap.String("file", doc.FileName),
		zap.Int("sections", len(sections)),
		zap.Int("amendments", len(result.Amendments)),
		zap.Float64("confidence", result.DetectionConfidence),
	)
	return result
}

func (d *Detector) toAmendment(doc model.RawDocument, c change, number int, date *string) model.Amendment {
	return model.Amendment{
		AmendmentNumber: number,
		AmendmentDate:   date,
		AmendmentType:   c.kind,
		AffectedField:   c.affectedField,
		OriginalValue:   c.original,
		RevisedValue:    c.revised,
		Description:     c.description,
		SourceQuote:     quote(doc.Text[c.start:c.end]),
		SourcePage:      doc.PageAt(c.start),
		Confidence:      c.confidence,
	}
}

// sectionDate returns the normalized date a section is dated or effective
// as of, falling back to the first date near the heading.
func sectionDate(text string) *string {
	if m := reSectionDate.FindStringSubmatch(text); m != nil {
		v := NormalizeDate(m[1])
		return &v
	}
	head := text
	if len(head) > 200 {
		head = head[:200]
	}
	if m := reAnyDate.FindString(head); m != "" {
		v := NormalizeDate(m)
		return &v
	}
	return nil
}

// summarize fills the aggregate fields. ConflictCount counts amendments of a
// reconcilable type before any baseline comparison happens. Detection
// confidence is 0 when nothing was found, so a document that mentions
// amendments but yields none is routed to review.
func summarize(r *model.AmendmentDetectionResult, reviewThreshold float64) {
	r.HasAmendments = len(r.Amendments) > 0
	var sum float64
	for _, a := range r.Amendments {
		sum += a.Confidence
		if a.AmendmentType.Reconcilable() {
			r.ConflictCount++
		}
	}
	if r.HasAmendments {
		r.DetectionConfidence = sum / float64(len(r.Amendments))
	}
	r.RequiresReview = r.ConflictCount > 0 || r.DetectionConfidence < reviewThreshold
}
