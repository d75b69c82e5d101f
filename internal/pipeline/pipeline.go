// Package pipeline runs the contract extraction pipeline: classification,
// per-domain field extraction, amendment detection and reconciliation,
// validation and confidence aggregation.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/contract-cli/internal/amendment"
	"github.com/sells-group/contract-cli/internal/completion"
	"github.com/sells-group/contract-cli/internal/model"
	"github.com/sells-group/contract-cli/internal/validate"
)

// DefaultCallTimeout bounds every individual completion call.
const DefaultCallTimeout = 2 * time.Minute

const maxDiagnosticRaw = 500

// Config tunes a Pipeline. Zero values fall back to the package defaults.
type Config struct {
	ClassifyChars   int
	ExtractChars    int
	CallTimeout     time.Duration
	ReviewThreshold float64
	// Domains restricts extraction to a subset. Empty means all domains.
	// Extraction order is always the fixed domain order.
	Domains []model.Domain
}

// Pipeline orchestrates one extraction run. It holds no per-run state and
// may be shared across goroutines.
type Pipeline struct {
	completer completion.Completer
	cfg       Config
	detector  *amendment.Detector
	validator *validate.Engine
}

// New creates a Pipeline. A nil detector or validator gets the defaults.
func New(c completion.Completer, cfg Config, detector *amendment.Detector, validator *validate.Engine) *Pipeline {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = DefaultReviewThreshold
	}
	if detector == nil {
		detector = amendment.NewDetector(amendment.Config{})
	}
	if validator == nil {
		validator = validate.NewEngine(validate.DefaultRules())
	}
	return &Pipeline{completer: c, cfg: cfg, detector: detector, validator: validator}
}

// Run extracts a PipelineResult from raw contract text.
func (p *Pipeline) Run(ctx context.Context, rawText, fileName string) (*model.PipelineResult, error) {
	return p.RunDocument(ctx, model.RawDocument{FileName: fileName, Text: rawText})
}

// RunDocument is Run for a document that carries page offsets. Stage
// failures degrade the result rather than failing the run; the only error
// is a misconfigured pipeline.
func (p *Pipeline) RunDocument(ctx context.Context, doc model.RawDocument) (*model.PipelineResult, error) {
	if p == nil || p.completer == nil {
		return nil, eris.New("pipeline: no completer configured")
	}

	log := zap.L().With(zap.String("file", doc.FileName))
	log.Info("pipeline: starting extraction", zap.Int("chars", len(doc.Text)))
	start := time.Now()

	timed := func(stage string, fn func()) {
		t := time.Now()
		fn()
		log.Debug("pipeline: stage complete",
			zap.String("stage", stage),
			zap.Int64("duration_ms", time.Since(t).Milliseconds()),
		)
	}

	domains := p.domains()
	var (
		cls       model.Classification
		clsResult completion.Result
		outcomes  = make([]DomainOutcome, len(domains))
		partials  = make([]model.Baseline, len(domains))
		detection model.AmendmentDetectionResult
	)

	// Stages are independent; each writes only its own slot.
	var g errgroup.Group
	g.Go(func() error {
		timed("classify", func() {
			callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
			defer cancel()
			cls, clsResult = ClassifyDocument(callCtx, p.completer, doc.FileName, doc.Text, p.cfg.ClassifyChars)
		})
		return nil
	})
	for i, d := range domains {
		g.Go(func() error {
			timed("extract_"+string(d), func() {
				callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
				defer cancel()
				outcomes[i] = ExtractDomain(callCtx, p.completer, d, doc, p.cfg.ExtractChars, &partials[i])
			})
			return nil
		})
	}
	g.Go(func() error {
		timed("detect_amendments", func() {
			detection = p.detector.Detect(doc)
		})
		return nil
	})
	_ = g.Wait()

	var baseline model.Baseline
	for i := range partials {
		mergeBaseline(&baseline, partials[i])
	}

	result := &model.PipelineResult{
		FileName:       doc.FileName,
		Classification: cls,
		Amendments:     detection,
	}

	var fields []model.ExtractedField
	timed("categorize", func() {
		fields = Categorize(baseline, doc)
		result.Fields = model.GroupFields(fields)
	})
	timed("reconcile", func() {
		result.Conflicts = amendment.Reconcile(detection.Amendments, baseline)
	})
	timed("validate", func() {
		result.Validations = p.validator.Validate(fields)
	})

	scores := Scores{Classification: cls, Domains: outcomes, Detection: detection}
	result.OverallConfidence = Aggregate(scores)
	result.RequiresReview, result.ReviewReasons = ReviewDecision(scores, result.OverallConfidence, p.cfg.ReviewThreshold)

	result.Usage.Add(clsResult.Usage)
	if d := diagnostic("classify", clsResult); d != nil {
		result.Diagnostics = append(result.Diagnostics, *d)
	}
	for _, o := range outcomes {
		result.Usage.Add(o.Result.Usage)
		if d := diagnostic("extract_"+string(o.Domain), o.Result); d != nil {
			result.Diagnostics = append(result.Diagnostics, *d)
		}
	}

	log.Info("pipeline: extraction complete",
		zap.String("document_type", string(cls.DocumentType)),
		zap.Int("fields", len(fields)),
		zap.Int("amendments", len(detection.Amendments)),
		zap.Int("conflicts", len(result.Conflicts)),
		zap.Float64("overall_confidence", result.OverallConfidence),
		zap.Bool("requires_review", result.RequiresReview),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return result, nil
}

func (p *Pipeline) domains() []model.Domain {
	if len(p.cfg.Domains) == 0 {
		return model.AllDomains()
	}
	want := make(map[model.Domain]bool, len(p.cfg.Domains))
	for _, d := range p.cfg.Domains {
		want[d] = true
	}
	var out []model.Domain
	for _, d := range model.AllDomains() {
		if want[d] {
			out = append(out, d)
		}
	}
	return out
}

func mergeBaseline(dst *model.Baseline, src model.Baseline) {
	if src.General != nil {
		dst.General = src.General
	}
	if src.Financial != nil {
		dst.Financial = src.Financial
	}
	if len(src.Products) > 0 {
		dst.Products = src.Products
	}
	if len(src.Facilities) > 0 {
		dst.Facilities = src.Facilities
	}
}

func diagnostic(stage string, r completion.Result) *model.Diagnostic {
	if r.Kind == "" || r.OK() {
		return nil
	}
	return &model.Diagnostic{
		Stage:   stage,
		Kind:    string(r.Kind),
		Message: errorText(r),
		Raw:     truncateRunes(r.Raw, maxDiagnosticRaw),
	}
}
