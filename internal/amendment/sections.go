package amendment

import (
	"regexp"
	"sort"
	"strconv"
)

// headingPatterns are matched independently so that one heading can be
// picked up more than once; dedupe collapses the duplicates.
var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bamendments?\b(?:\s*(?:no\.?|number|#)?\s*(\d+))?`),
	regexp.MustCompile(`(?i)\baddend(?:um|a)\b(?:\s*(?:no\.?|number|#)?\s*(\d+))?`),
	regexp.MustCompile(`(?i)\brevisions?\b(?:\s*(?:no\.?|number|#)?\s*(\d+))?`),
	regexp.MustCompile(`(?i)\bmodifications?\b(?:\s*(?:no\.?|number|#)?\s*(\d+))?`),
}

// section is a heading-anchored span of the document.
type section struct {
	text   string
	start  int
	end    int
	number int
	// pattern is the heading pattern index, used only for ordering.
	pattern int
}

type heading struct {
	start, end int
	number     int
	pattern    int
}

func (s section) length() int { return s.end - s.start }

// hasHeading reports whether the text mentions any amendment vocabulary.
func hasHeading(text string) bool {
	for _, re := range headingPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func findHeadings(text string) []heading {
	var out []heading
	for pi, re := range headingPatterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			h := heading{start: m[0], end: m[1], pattern: pi}
			if m[2] >= 0 {
				h.number, _ = strconv.Atoi(text[m[2]:m[3]])
			}
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].start != out[j].start {
			return out[i].start < out[j].start
		}
		return out[i].pattern < out[j].pattern
	})
	return out
}

// discoverSections captures a window of at most windowChars starting at
// each heading. A window is cut short at the next heading that is numbered
// or opens a line. A bare keyword mid-sentence is a reference to an
// amendment, not the start of a new one.
func discoverSections(text string, windowChars int) []section {
	headings := findHeadings(text)
	out := make([]section, 0, len(headings))
	for i, h := range headings {
		end := h.start + windowChars
		if end > len(text) {
			end = len(text)
		}
		for _, next := range headings[i+1:] {
			if next.start >= end {
				break
			}
			if next.start >= h.end && (next.number > 0 || atLineStart(text, next.start)) {
				end = next.start
				break
			}
		}
		out = append(out, section{
			text:    text[h.start:end],
			start:   h.start,
			end:     end,
			number:  h.number,
			pattern: h.pattern,
		})
	}
	return out
}

// atLineStart reports whether only spaces or tabs separate pos from the
// start of its line.
func atLineStart(text string, pos int) bool {
	for i := pos - 1; i >= 0; i-- {
		switch text[i] {
		case '\n', '\r':
			return true
		case ' ', '\t':
			continue
		default:
			return false
		}
	}
	return true
}

// overlapRatio is the overlap length divided by the shorter span's length.
func overlapRatio(a, b section) float64 {
	lo, hi := a.start, a.end
	if b.start > lo {
		lo = b.start
	}
	if b.end < hi {
		hi = b.end
	}
	if hi <= lo {
		return 0
	}
	shorter := a.length()
	if b.length() < shorter {
		shorter = b.length()
	}
	if shorter <= 0 {
		return 0
	}
	return float64(hi-lo) / float64(shorter)
}

// dedupeSections keeps the first-seen section of every cluster whose
// pairwise overlap ratio exceeds threshold. Unnumbered survivors are
// numbered in document order after the highest explicit number, so no two
// sections share a number.
func dedupeSections(candidates []section, threshold float64) []section {
	var kept []section
	for _, c := range candidates {
		dup := false
		for _, k := range kept {
			if overlapRatio(c, k) > threshold {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
		}
	}
	next := 0
	for _, k := range kept {
		if k.number > next {
			next = k.number
		}
	}
	for i := range kept {
		if kept[i].number == 0 {
			next++
			kept[i].number = next
		}
	}
	return kept
}
