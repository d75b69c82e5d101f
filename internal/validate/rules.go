package validate

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rules holds the tunable thresholds used by the validators.
type Rules struct {
	Percentage PercentageRules `yaml:"percentage"`
	Date       DateRules       `yaml:"date"`
	Amount     AmountRules     `yaml:"amount"`
	DateRange  DateRangeRules  `yaml:"date_range"`
}

// PercentageRules bounds percentage fields.
type PercentageRules struct {
	Min       float64 `yaml:"min"`
	Max       float64 `yaml:"max"`
	WarnAbove float64 `yaml:"warn_above"`
}

// DateRules sets the plausibility window around today.
type DateRules struct {
	PlausibleYears int `yaml:"plausible_years"`
}

// AmountRules bounds monetary and threshold fields.
type AmountRules struct {
	WarnAbove float64 `yaml:"warn_above"`
}

// DateRangeRules bounds the span between effective and expiration dates.
type DateRangeRules struct {
	MinDays int `yaml:"min_days"`
	MaxDays int `yaml:"max_days"`
}

// DefaultRules returns the built-in thresholds.
func DefaultRules() Rules {
	return Rules{
		Percentage: PercentageRules{Min: 0, Max: 100, WarnAbove: 50},
		Date:       DateRules{PlausibleYears: 10},
		Amount:     AmountRules{WarnAbove: 10_000_000},
		DateRange:  DateRangeRules{MinDays: 30, MaxDays: 3650},
	}
}

// LoadRules reads validation rules from a YAML file with a top-level
// "validation" key. Unset thresholds keep their defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, eris.Wrapf(err, "validate: read rules %s", path)
	}

	var wrapper struct {
		Validation struct {
			Percentage struct {
				Min       *float64 `yaml:"min"`
				Max       *float64 `yaml:"max"`
				WarnAbove *float64 `yaml:"warn_above"`
			} `yaml:"percentage"`
			Date      DateRules      `yaml:"date"`
			Amount    AmountRules    `yaml:"amount"`
			DateRange DateRangeRules `yaml:"date_range"`
		} `yaml:"validation"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return rules, eris.Wrap(err, "validate: parse rules")
	}

	v := wrapper.Validation
	// Percentage bounds may legitimately be zero, so they are pointers.
	if v.Percentage.Min != nil {
		rules.Percentage.Min = *v.Percentage.Min
	}
	if v.Percentage.Max != nil {
		rules.Percentage.Max = *v.Percentage.Max
	}
	if v.Percentage.WarnAbove != nil {
		rules.Percentage.WarnAbove = *v.Percentage.WarnAbove
	}
	if v.Date.PlausibleYears > 0 {
		rules.Date.PlausibleYears = v.Date.PlausibleYears
	}
	if v.Amount.WarnAbove > 0 {
		rules.Amount.WarnAbove = v.Amount.WarnAbove
	}
	if v.DateRange.MinDays > 0 {
		rules.DateRange.MinDays = v.DateRange.MinDays
	}
	if v.DateRange.MaxDays > 0 {
		rules.DateRange.MaxDays = v.DateRange.MaxDays
	}
	return rules, nil
}
