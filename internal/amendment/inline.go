package amendment

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/sells-group/contract-cli/internal/model"
)

// Inline values must carry a digit, which keeps phrases like "from time to
// time" out.
const inlineValue = `([^\s;:()]*\d[^\s;:()]*)`

var inlinePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)` + inlineValue + `\s+(?:(?:is|are|was|were|has\s+been|have\s+been|shall\s+be)\s+)?(?:hereby\s+)?(?:revised|changed|amended|modified)\s+to\s+` + inlineValue),
	regexp.MustCompile(`(?i)\bfrom\s+` + inlineValue + `\s+to\s+` + inlineValue),
}

// findInlineChanges scans the whole document for loose "X changed to Y" and
// "from X to Y" phrasing. Matches overlapping a typed change, or an earlier
// inline match, are dropped.
func findInlineChanges(text string, typed []change) []change {
	var candidates []change
	for _, re := range inlinePatterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			orig := trimValue(text[m[2]:m[3]])
			rev := trimValue(text[m[4]:m[5]])
			if orig == "" || rev == "" {
				continue
			}
			candidates = append(candidates, change{
				start:         m[0],
				end:           m[1],
				kind:          model.AmendmentOther,
				affectedField: "unspecified",
				original:      orig,
				revised:       rev,
				description:   fmt.Sprintf("Value changed from %s to %s", orig, rev),
				confidence:    confidenceInline,
			})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].start < candidates[j].start
	})

	var out []change
	for _, c := range candidates {
		if overlapsAny(c.start, c.end, typed) || overlapsAny(c.start, c.end, out) {
			continue
		}
		out = append(out, c)
	}
	return out
}
