package sanitize

import (
	"regexp"
	"strings"
)

// Missing marks a field whose extracted value failed validation. It is a
// visible placeholder, not an empty string, so reviewers can tell "absent"
// from "rejected".
const Missing = "-------"

var (
	assayValueRe   = regexp.MustCompile(`(\d+\.?\d*\s*%)`)
	codeFullRe     = regexp.MustCompile(`^[A-Z]{2,5}(?:[-/][A-Z0-9]{2,5})+(?:[-/]\d{3,4})?$`)
	codeEmbeddedRe = regexp.MustCompile(`[A-Z]{2,5}(?:[-/][A-Z0-9]{2,5})+[-/]\d{3,4}`)
)

// CleanAssay rejects assay criteria that are prose rather than a percentage.
// The value must contain '%'; the first numeric percentage is kept, everything
// else becomes Missing.
func CleanAssay(value string) string {
	if value == "" {
		return Missing
	}
	if !strings.Contains(value, "%") {
		return Missing
	}
	if m := assayValueRe.FindString(value); m != "" {
		return m
	}
	return Missing
}

// CleanLimit passes acceptance criteria through, including cross-references
// like "As per in-house specification" which are acceptable per current
// industry practice. Only empty values become Missing.
func CleanLimit(value string) string {
	if value == "" {
		return Missing
	}
	return value
}

// CleanPH enforces that a pH criterion carries at least one digit and is not
// a bare cross-reference.
func CleanPH(value string) string {
	if value == "" {
		return Missing
	}
	if !strings.ContainsAny(value, "0123456789") {
		return Missing
	}
	if strings.Contains(strings.ToLower(value), "as per") {
		return Missing
	}
	return value
}

// SanitizeCode normalizes a product code to upper case and validates it
// against the in-house code grammar (e.g. KPL/CI/010, FU/002). When the whole
// value does not match, a code embedded in surrounding text is extracted.
// Unrecoverable values become Missing.
func SanitizeCode(value string) string {
	if value == "" {
		return Missing
	}
	value = strings.ToUpper(strings.TrimSpace(value))
	if codeFullRe.MatchString(value) {
		return value
	}
	if m := codeEmbeddedRe.FindString(value); m != "" {
		return m
	}
	return Missing
}
