// Package sanitize provides regex guardrails for data pulled out of scanned
// pharmaceutical documents: page-artifact cleanup for raw text and per-field
// validators that replace garbage values with an explicit missing marker
// rather than letting them flow downstream.
package sanitize

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	pageOfRe     = regexp.MustCompile(`(?i)Page\s+\d+\s+of\s+\d+`)
	pageSlashRe  = regexp.MustCompile(`\n\s*\d+\s*/\s*\d+\s*\n`)
	multiBlankRe = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText cleans artifacts common in PDF-extracted text: mixed line
// endings, page headers like "Page 1 of 5" or bare "1/5" lines, control
// characters, and runs of blank lines. The result is stable under repeated
// application.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	// Strip control characters first so artifact removal and blank-line
	// collapsing see the text they will see on a second pass.
	var b strings.Builder
	b.Grow(len(text))
	for _, ch := range text {
		if ch == '\n' || ch == '\t' || unicode.IsPrint(ch) {
			b.WriteRune(ch)
		}
	}
	text = b.String()

	// Removing one artifact can expose another: adjacent "N/M" lines share a
	// newline, a removed "N/M" line can splice a "Page N of M" back together,
	// and a removed header can do the same for its neighbor. Iterate both
	// removals to a joint fixpoint.
	for {
		next := pageOfRe.ReplaceAllString(text, "")
		next = pageSlashRe.ReplaceAllString(next, "\n")
		if next == text {
			break
		}
		text = next
	}

	text = multiBlankRe.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
