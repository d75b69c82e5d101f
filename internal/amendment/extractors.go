package amendment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/contract-cli/internal/model"
)

// Fixed per-family confidences. They track how literally the source phrase
// has to match for each pattern family.
const (
	confidenceTier     = 0.9
	confidenceDate     = 0.85
	confidencePayment  = 0.85
	confidenceFacility = 0.8
	confidenceProduct  = 0.8
	confidenceInline   = 0.6
)

// maxQuoteLen caps source quotes copied into amendments.
const maxQuoteLen = 300

// change is a single typed match inside a section, with offsets relative to
// the text that was scanned.
type change struct {
	start, end    int
	kind          model.AmendmentType
	affectedField string
	original      any
	revised       any
	description   string
	confidence    float64
}

// extractor is one typed pattern family.
type extractor struct {
	name    string
	extract func(text string) []change
}

var (
	reTierChange = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%[^%\n]{0,60}?\bto\s+(\d+(?:\.\d+)?)\s*%`)
	reTierWord   = regexp.MustCompile(`(?i)\b(?:tier|rebate)s?\b`)
	reTierNumber = regexp.MustCompile(`(?i)\btier\s*(\d+)\b`)
	reTierAfter  = regexp.MustCompile(`(?i)^[^.;%\n]{0,30}?\b(?:for|in|on|of)\s+tier\s*(\d+)\b`)

	reDateChange = regexp.MustCompile(`(?i)\b(effective|expiration|termination|end)\s+date\b[^.\n]{0,80}?\b(?:changed|extended|amended|modified|revised)\s+from\s+(` + datePattern + `)\s+to\s+(` + datePattern + `)`)
	reDateExtend = regexp.MustCompile(`(?i)\bextend(?:ed|s)?\b[^.\n]{0,80}?\b(?:through|to|until)\s+(` + datePattern + `)`)

	reFacility = regexp.MustCompile(`(?i)\b(add|adds|added|adding|include|includes|included|including|remove|removes|removed|removing|delete|deletes|deleted|deleting)\b[^:\n]{0,40}?\b(?:facility|facilities|locations?)\b\s*:?\s*([^;\n]+)`)
	reProduct  = regexp.MustCompile(`(?i)\b(add|adds|added|adding|include|includes|included|including|remove|removes|removed|removing|delete|deletes|deleted|deleting)\b[^:\n]{0,40}?\b(?:products?|ndcs?|skus?)\b\s*:?\s*([^;\n]+)`)
	reNDC      = regexp.MustCompile(`\b\d{4,5}-\d{3,4}-\d{1,2}\b`)
	reSKU      = regexp.MustCompile(`(?i)\bsku\s*[:#]?\s*[a-z0-9][a-z0-9-]*`)

	rePaymentTerms = regexp.MustCompile(`(?i)\bpayment\s+(?:due|terms?)\b[^.\n]{0,60}?\b(?:changed|amended|revised|modified)\s+from\s+([^.;\n]+?)\s+to\s+([^.;\n]+)`)
	rePaymentNet   = regexp.MustCompile(`(?i)\bnet\s*(\d+)(?:\s*days)?\s+(?:(?:is|shall\s+be|has\s+been|was)\s+)?(?:changed|amended|revised|modified)\s+to\s+net\s*(\d+)(?:\s*days)?`)
)

// defaultExtractors returns the typed battery in its fixed run order.
func defaultExtractors() []extractor {
	return []extractor{
		{name: "tier_rate", extract: extractTierChanges},
		{name: "date", extract: extractDateChanges},
		{name: "facility", extract: extractFacilityChanges},
		{name: "product", extract: extractProductChanges},
		{name: "payment", extract: extractPaymentChanges},
	}
}

func extractTierChanges(text string) []change {
	var out []change
	prevEnd := 0
	for _, m := range reTierChange.FindAllStringSubmatchIndex(text, -1) {
		lo, hi := m[0]-100, m[1]+100
		if lo < 0 {
			lo = 0
		}
		if hi > len(text) {
			hi = len(text)
		}
		if !reTierWord.MatchString(text[lo:hi]) {
			continue
		}
		orig, err1 := strconv.ParseFloat(text[m[2]:m[3]], 64)
		rev, err2 := strconv.ParseFloat(text[m[4]:m[5]], 64)
		if err1 != nil || err2 != nil {
			continue
		}

		// The tier label is looked for before the match, but never inside
		// the previous match, then right after it ("... for Tier 2").
		back := lo
		if prevEnd > back {
			back = prevEnd
		}
		prevEnd = m[1]

		field := "rebate_percentage"
		label := "Rebate percentage"
		tm := lastMatch(reTierNumber, text[back:m[1]])
		if tm == nil {
			tm = reTierAfter.FindStringSubmatch(text[m[1]:])
		}
		if tm != nil {
			field = "tier_" + tm[1] + "_percentage"
			label = "Tier " + tm[1] + " rebate percentage"
		}
		out = append(out, change{
			start:         m[0],
			end:           m[1],
			kind:          model.AmendmentTierRateChange,
			affectedField: field,
			original:      orig,
			revised:       rev,
			description:   fmt.Sprintf("%s changed from %s%% to %s%%", label, formatNumber(orig), formatNumber(rev)),
			confidence:    confidenceTier,
		})
	}
	return out
}

func extractDateChanges(text string) []change {
	var out []change
	for _, m := range reDateChange.FindAllStringSubmatchIndex(text, -1) {
		kind := strings.ToLower(text[m[2]:m[3]])
		orig := NormalizeDate(text[m[4]:m[5]])
		rev := NormalizeDate(text[m[6]:m[7]])
		out = append(out, change{
			start:         m[0],
			end:           m[1],
			kind:          model.AmendmentDateChange,
			affectedField: kind + "_date",
			original:      orig,
			revised:       rev,
			description:   fmt.Sprintf("%s date changed from %s to %s", capitalize(kind), orig, rev),
			confidence:    confidenceDate,
		})
	}
	for _, m := range reDateExtend.FindAllStringSubmatchIndex(text, -1) {
		if overlapsAny(m[0], m[1], out) {
			continue
		}
		rev := NormalizeDate(text[m[2]:m[3]])
		out = append(out, change{
			start:         m[0],
			end:           m[1],
			kind:          model.AmendmentDateChange,
			affectedField: "expiration_date",
			revised:       rev,
			description:   fmt.Sprintf("Term extended through %s", rev),
			confidence:    confidenceDate,
		})
	}
	return out
}

func extractFacilityChanges(text string) []change {
	var out []change
	for _, m := range reFacility.FindAllStringSubmatchIndex(text, -1) {
		value := trimValue(text[m[4]:m[5]])
		if value == "" {
			continue
		}
		c := change{
			start:         m[0],
			end:           m[1],
			kind:          model.AmendmentFacilityAddition,
			affectedField: "facilities",
			revised:       value,
			description:   "Facility added: " + value,
			confidence:    confidenceFacility,
		}
		if isRemoval(text[m[2]:m[3]]) {
			c.kind = model.AmendmentFacilityRemoval
			c.description = "Facility removed: " + value
		}
		out = append(out, c)
	}
	return out
}

func extractProductChanges(text string) []change {
	var out []change
	for _, m := range reProduct.FindAllStringSubmatchIndex(text, -1) {
		value := trimValue(text[m[4]:m[5]])
		if !reNDC.MatchString(value) && !reSKU.MatchString(value) {
			continue
		}
		c := change{
			start:         m[0],
			end:           m[1],
			kind:          model.AmendmentProductAddition,
			affectedField: "products",
			revised:       value,
			description:   "Product added: " + value,
			confidence:    confidenceProduct,
		}
		if isRemoval(text[m[2]:m[3]]) {
			c.kind = model.AmendmentProductRemoval
			c.description = "Product removed: " + value
		}
		out = append(out, c)
	}
	return out
}

func extractPaymentChanges(text string) []change {
	var out []change
	for _, m := range rePaymentTerms.FindAllStringSubmatchIndex(text, -1) {
		orig := trimValue(text[m[2]:m[3]])
		rev := trimValue(text[m[4]:m[5]])
		if orig == "" || rev == "" {
			continue
		}
		out = append(out, change{
			start:         m[0],
			end:           m[1],
			kind:          model.AmendmentPaymentTermChange,
			affectedField: "payment_terms",
			original:      orig,
			revised:       rev,
			description:   fmt.Sprintf("Payment terms changed from %s to %s", orig, rev),
			confidence:    confidencePayment,
		})
	}
	for _, m := range rePaymentNet.FindAllStringSubmatchIndex(text, -1) {
		if overlapsAny(m[0], m[1], out) {
			continue
		}
		orig := "Net " + text[m[2]:m[3]]
		rev := "Net " + text[m[4]:m[5]]
		out = append(out, change{
			start:         m[0],
			end:           m[1],
			kind:          model.AmendmentPaymentTermChange,
			affectedField: "payment_terms",
			original:      orig,
			revised:       rev,
			description:   fmt.Sprintf("Payment terms changed from %s to %s", orig, rev),
			confidence:    confidencePayment,
		})
	}
	return out
}

func isRemoval(verb string) bool {
	v := strings.ToLower(verb)
	return strings.HasPrefix(v, "remov") || strings.HasPrefix(v, "delet")
}

func lastMatch(re *regexp.Regexp, s string) []string {
	all := re.FindAllStringSubmatch(s, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

func overlapsAny(start, end int, changes []change) bool {
	for _, c := range changes {
		if start < c.end && c.start < end {
			return true
		}
	}
	return false
}

// trimValue strips whitespace and trailing sentence punctuation.
func trimValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ".,;: ")
	s = strings.TrimLeft(s, ":- ")
	return strings.TrimSpace(s)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func quote(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > maxQuoteLen {
		s = string([]rune(s)[:maxQuoteLen])
	}
	return s
}
