package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/contract-cli/internal/model"
)

const isoLayout = "2006-01-02"

var (
	reISODate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	ndcShapes = []*regexp.Regexp{
		regexp.MustCompile(`^\d{5}-\d{4}-\d{2}$`),
		regexp.MustCompile(`^\d{5}-\d{3}-\d{2}$`),
		regexp.MustCompile(`^\d{4}-\d{4}-\d{2}$`),
		regexp.MustCompile(`^\d{5}-\d{4}-\d{1}$`),
		regexp.MustCompile(`^\d{11}$`),
	}
)

func ok(msg string) model.ValidationResult {
	return model.ValidationResult{IsValid: true, Level: model.LevelInfo, Message: msg}
}

func warn(msg string) model.ValidationResult {
	return model.ValidationResult{IsValid: true, Level: model.LevelWarning, Message: msg}
}

func fail(msg string) model.ValidationResult {
	return model.ValidationResult{IsValid: false, Level: model.LevelError, Message: msg}
}

// ValidatePercentage checks a percentage against the default rules.
func ValidatePercentage(v float64) model.ValidationResult {
	return DefaultRules().checkPercentage(v)
}

// ValidateDate checks an ISO-8601 date against the default rules.
func ValidateDate(s string) model.ValidationResult {
	return DefaultRules().checkDate(s, time.Now())
}

// ValidateNDC checks a National Drug Code against the accepted shapes.
func ValidateNDC(s string) model.ValidationResult {
	return checkNDC(s)
}

// ValidateAmount checks a monetary or threshold amount against the default rules.
func ValidateAmount(v float64) model.ValidationResult {
	return DefaultRules().checkAmount(v)
}

// ValidateDateRange checks that effective precedes expiration and that the
// span is plausible.
func ValidateDateRange(effective, expiration string) model.ValidationResult {
	return DefaultRules().checkDateRange(effective, expiration)
}

func (r Rules) checkPercentage(v float64) model.ValidationResult {
	switch {
	case v < r.Percentage.Min || v > r.Percentage.Max:
		return fail(fmt.Sprintf("percentage %s outside [%s, %s]",
			formatFloat(v), formatFloat(r.Percentage.Min), formatFloat(r.Percentage.Max)))
	case v == 0:
		return warn("percentage is zero")
	case v > r.Percentage.WarnAbove:
		return warn(fmt.Sprintf("percentage %s is unusually high", formatFloat(v)))
	}
	return ok("percentage within range")
}

func (r Rules) checkDate(s string, now time.Time) model.ValidationResult {
	s = strings.TrimSpace(s)
	if !reISODate.MatchString(s) {
		return fail(fmt.Sprintf("date %q is not YYYY-MM-DD", s))
	}
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return fail(fmt.Sprintf("date %q is not a calendar date", s))
	}
	years := r.Date.PlausibleYears
	if t.Before(now.AddDate(-years, 0, 0)) || t.After(now.AddDate(years, 0, 0)) {
		return warn(fmt.Sprintf("date %s is more than %d years from today", s, years))
	}
	return ok("date is plausible")
}

func checkNDC(s string) model.ValidationResult {
	s = strings.TrimSpace(s)
	for _, re := range ndcShapes {
		if re.MatchString(s) {
			return ok("ndc format recognized")
		}
	}
	return fail(fmt.Sprintf("ndc %q does not match a known format", s))
}

func (r Rules) checkAmount(v float64) model.ValidationResult {
	switch {
	case v < 0:
		return fail(fmt.Sprintf("amount %s is negative", formatFloat(v)))
	case v > r.Amount.WarnAbove:
		return warn(fmt.Sprintf("amount %s exceeds %s", formatFloat(v), formatFloat(r.Amount.WarnAbove)))
	}
	return ok("amount within range")
}

func (r Rules) checkDateRange(effective, expiration string) model.ValidationResult {
	eff, err := time.Parse(isoLayout, strings.TrimSpace(effective))
	if err != nil {
		return fail(fmt.Sprintf("effective date %q is not YYYY-MM-DD", effective))
	}
	exp, err := time.Parse(isoLayout, strings.TrimSpace(expiration))
	if err != nil {
		return fail(fmt.Sprintf("expiration date %q is not YYYY-MM-DD", expiration))
	}
	if !eff.Before(exp) {
		return fail(fmt.Sprintf("effective date %s is not before expiration date %s", effective, expiration))
	}
	days := int(exp.Sub(eff).Hours() / 24)
	if days < r.DateRange.MinDays || days > r.DateRange.MaxDays {
		return warn(fmt.Sprintf("contract term of %d days is outside %d-%d days",
			days, r.DateRange.MinDays, r.DateRange.MaxDays))
	}
	return ok("contract term is plausible")
}

// toFloat coerces extracted values, tolerating "%", "$" and thousands separators.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		s := strings.NewReplacer("%", "", "$", "", ",", "").Replace(strings.TrimSpace(n))
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return f, err == nil
	}
	return 0, false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
