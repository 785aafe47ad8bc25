// Package markup renders outbound response content according to the
// session's speech-pacing configuration: literal dash-pause tokens around
// protected digit spans, and optionally a boundary pause token appended at
// segment boundaries.
//
// Grounded on the Python speech planner's dash_pause/_find_protected_spans/
// _apply_protected_span_formatting behavior: phone numbers, prices, and
// times are located first so a later generic-digits pass doesn't re-mark
// them, then phone and generic-digit spans are rendered as single digits
// joined by " - ".
package markup

import (
	"regexp"
	"sort"
	"strings"

	"github.com/corvid-labs/callbrain/config"
)

var (
	pricePattern  = regexp.MustCompile(`\$\s*\d+(?:\.\d+)?`)
	phonePattern  = regexp.MustCompile(`\b\d{3}[\s\-)]*\d{3}[\s\-]*\d{4}\b`)
	timePattern   = regexp.MustCompile(`(?i)\b\d{1,2}(?::\d{2})?\s*(am|pm)\b`)
	digitsPattern = regexp.MustCompile(`\d+`)
	nonDigitRun   = regexp.MustCompile(`\D+`)
)

type spanKind int

const (
	kindPhone spanKind = iota
	kindPrice
	kindTime
	kindDigits
)

type protectedSpan struct {
	kind       spanKind
	start, end int
}

// Render applies mode and scope to content before it is enqueued for the
// client. RAW_TEXT and SSML are both passthrough: this module never emits
// SSML markup, matching spec's "SSML is not emitted by default" — callers
// configuring SSML get the same un-annotated text RAW_TEXT would produce.
func Render(content string, mode config.MarkupMode, scope config.DashPauseScope) string {
	if content == "" {
		return content
	}
	if mode == config.MarkupRawText || mode == config.MarkupSSML {
		return content
	}

	out := applyProtectedSpans(content)
	if scope == config.DashPauseSegmentBoundary {
		out += dashPause(1)
	}
	return out
}

// dashPause renders units pause tokens. Each unit is exactly " - "; the
// Retell wire protocol expects the surrounding spaces, so repeating units
// yields double spaces between dashes naturally (" -  -  - ").
func dashPause(units int) string {
	if units <= 0 {
		return ""
	}
	return strings.Repeat(" - ", units)
}

func applyProtectedSpans(text string) string {
	spans := findProtectedSpans(text)
	if len(spans) == 0 {
		return text
	}

	var b strings.Builder
	cur := 0
	for _, sp := range spans {
		b.WriteString(text[cur:sp.start])
		chunk := text[sp.start:sp.end]
		if sp.kind == kindPhone || sp.kind == kindDigits {
			digits := nonDigitRun.ReplaceAllString(chunk, "")
			if digits != "" {
				b.WriteString(dashJoinDigits(digits))
			} else {
				b.WriteString(chunk)
			}
		} else {
			b.WriteString(chunk)
		}
		cur = sp.end
	}
	b.WriteString(text[cur:])
	return b.String()
}

// dashJoinDigits renders a digit run as "d - d - d - d", mirroring
// " - ".join(list(digits)) in the source planner.
func dashJoinDigits(digits string) string {
	parts := make([]string, len(digits))
	for i, d := range digits {
		parts[i] = string(d)
	}
	return strings.Join(parts, " - ")
}

// findProtectedSpans locates phone/price/time spans first, then adds a span
// for any remaining digit run not already covered, so a phone number's
// digits aren't double-marked by the generic digits pass.
func findProtectedSpans(text string) []protectedSpan {
	var spans []protectedSpan
	for _, m := range phonePattern.FindAllStringIndex(text, -1) {
		spans = append(spans, protectedSpan{kind: kindPhone, start: m[0], end: m[1]})
	}
	for _, m := range pricePattern.FindAllStringIndex(text, -1) {
		spans = append(spans, protectedSpan{kind: kindPrice, start: m[0], end: m[1]})
	}
	for _, m := range timePattern.FindAllStringIndex(text, -1) {
		spans = append(spans, protectedSpan{kind: kindTime, start: m[0], end: m[1]})
	}

	covered := make([]bool, len(text)+1)
	for _, s := range spans {
		for i := s.start; i < s.end && i < len(covered); i++ {
			covered[i] = true
		}
	}

	for _, m := range digitsPattern.FindAllStringIndex(text, -1) {
		if anyCovered(covered, m[0], m[1]) {
			continue
		}
		spans = append(spans, protectedSpan{kind: kindDigits, start: m[0], end: m[1]})
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end < spans[j].end
	})
	return spans
}

func anyCovered(covered []bool, start, end int) bool {
	for i := start; i < end; i++ {
		if i < len(covered) && covered[i] {
			return true
		}
	}
	return false
}
