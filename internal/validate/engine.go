// Package validate runs format and range checks over extracted fields.
package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/sells-group/contract-cli/internal/model"
)

// Field names of the pair checked by the date range validator.
const (
	EffectiveDateField  = "general.effective_date"
	ExpirationDateField = "general.expiration_date"
)

// validator is either a single-field check selected by name, or a
// field-pair check bound to exact field names.
type validator struct {
	name   string
	match  func(field string) bool
	fields []string
	check  func(values ...any) model.ValidationResult
}

// Engine dispatches extracted fields to validators.
type Engine struct {
	rules      Rules
	now        func() time.Time
	validators []validator
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used by the date plausibility window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine using rules.
func NewEngine(rules Rules, opts ...Option) *Engine {
	e := &Engine{rules: rules, now: time.Now}
	for _, o := range opts {
		o(e)
	}
	e.validators = []validator{
		{name: "percentage", match: contains("percentage"), check: e.numeric(rules.checkPercentage)},
		{name: "date", match: contains("date"), check: e.date},
		{name: "ndc", match: contains("ndc"), check: e.ndc},
		{name: "amount", match: contains("amount", "threshold", "cap", "price"), check: e.numeric(rules.checkAmount)},
		{name: "date_range", fields: []string{EffectiveDateField, ExpirationDateField}, check: e.dateRange},
	}
	return e
}

// Validate returns one result per field that a single-field validator
// claims, in field order, followed by one result per field pair whose
// members are all present.
func (e *Engine) Validate(fields []model.ExtractedField) []model.ValidationResult {
	results := []model.ValidationResult{}
	values := make(map[string]any, len(fields))

	for _, f := range fields {
		if f.Value == nil {
			continue
		}
		values[f.Name] = f.Value
		name := strings.ToLower(f.Name)
		for _, v := range e.validators {
			if v.match == nil || !v.match(name) {
				continue
			}
			r := v.check(f.Value)
			r.Field = f.Name
			results = append(results, r)
			break
		}
	}

	for _, v := range e.validators {
		if len(v.fields) == 0 {
			continue
		}
		args := make([]any, 0, len(v.fields))
		for _, name := range v.fields {
			if val, ok := values[name]; ok {
				args = append(args, val)
			}
		}
		if len(args) != len(v.fields) {
			continue
		}
		r := v.check(args...)
		r.Field = strings.Join(v.fields, ",")
		results = append(results, r)
	}
	return results
}

func contains(subs ...string) func(string) bool {
	return func(name string) bool {
		for _, s := range subs {
			if strings.Contains(name, s) {
				return true
			}
		}
		return false
	}
}

func (e *Engine) numeric(check func(float64) model.ValidationResult) func(...any) model.ValidationResult {
	return func(values ...any) model.ValidationResult {
		f, ok := toFloat(values[0])
		if !ok {
			return fail(fmt.Sprintf("value %v is not a number", values[0]))
		}
		return check(f)
	}
}

func (e *Engine) date(values ...any) model.ValidationResult {
	return e.rules.checkDate(fmt.Sprint(values[0]), e.now())
}

func (e *Engine) ndc(values ...any) model.ValidationResult {
	return checkNDC(fmt.Sprint(values[0]))
}

func (e *Engine) dateRange(values ...any) model.ValidationResult {
	return e.rules.checkDateRange(fmt.Sprint(values[0]), fmt.Sprint(values[1]))
}
