package liveness

import (
	"regexp"
	"strings"
)

// errorLineRe tags log lines that report failures.
var errorLineRe = regexp.MustCompile(`(?i)\b(error|err|fatal|panic|fail|failed|failure|exception|traceback)\b`)

// Normalization patterns for signature extraction. Volatile fragments
// collapse so that the "same" error produces the same signature across
// occurrences.
var (
	sigTimestampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`)
	sigHexRe       = regexp.MustCompile(`\b0x[0-9a-fA-F]+\b|\b[0-9a-fA-F]{8,}\b`)
	sigNumberRe    = regexp.MustCompile(`\d+`)
	sigQuotedRe    = regexp.MustCompile(`"[^"]*"|'[^']*'`)
	sigSpaceRe     = regexp.MustCompile(`\s+`)
)

// minErrorWindow is the fewest error-tagged lines that can establish a
// repeating-error condition.
const minErrorWindow = 5

// isErrorLine reports whether a log line is error-tagged.
func isErrorLine(line string) bool {
	return errorLineRe.MatchString(line)
}

// errorSignature collapses a log line to a stable signature: lowercase,
// with timestamps, addresses, counters, and quoted operands replaced by
// placeholders.
func errorSignature(line string) string {
	s := strings.ToLower(strings.TrimSpace(line))
	s = sigTimestampRe.ReplaceAllString(s, "<ts>")
	s = sigQuotedRe.ReplaceAllString(s, "<q>")
	s = sigHexRe.ReplaceAllString(s, "<hex>")
	s = sigNumberRe.ReplaceAllString(s, "<n>")
	s = sigSpaceRe.ReplaceAllString(s, " ")
	return s
}

// dominantErrorSignature inspects the trailing log window for a
// repeating-error condition: at least minErrorWindow error-tagged lines,
// of which at least 4 of the last 5 collapse to no more than 2 distinct
// signatures. It returns the most recent signature when the condition
// holds.
func dominantErrorSignature(lines []string) (string, bool) {
	var sigs []string
	for _, line := range lines {
		if isErrorLine(line) {
			sigs = append(sigs, errorSignature(line))
		}
	}
	if len(sigs) < minErrorWindow {
		return "", false
	}

	recent := sigs[len(sigs)-minErrorWindow:]
	counts := make(map[string]int, len(recent))
	for _, s := range recent {
		counts[s]++
	}
	if len(counts) > 2 {
		return "", false
	}
	top := 0
	for _, n := range counts {
		if n > top {
			top = n
		}
	}
	if top < minErrorWindow-1 {
		return "", false
	}
	return recent[len(recent)-1], true
}
