// Package validate checks extracted records for structural completeness.
// Errors mark a record unusable for compliance reasoning; warnings flag
// quality issues a reviewer should see but that do not block the verdict.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"pharmadoc/internal/classify"
	"pharmadoc/internal/doctree"
	"pharmadoc/internal/logging"
	"pharmadoc/internal/sanitize"
)

// Report is the outcome of validating one extracted record.
type Report struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

var strictCodeRe = regexp.MustCompile(`^[A-Z]{2,4}(?:/[A-Z]{2,4})?/\d{3}$`)

// Extraction validates a record according to its document type.
func Extraction(record *doctree.Mapping, docType classify.DocType) Report {
	master := record
	if record != nil {
		if m := record.GetMapping("master_definition"); m != nil {
			master = m
		}
	}

	var errs, warnings []string
	switch docType {
	case classify.STP:
		errs, warnings = validateSTP(master)
	case classify.MFR:
		errs, warnings = validateMFR(master)
	}

	report := Report{IsValid: len(errs) == 0, Errors: errs, Warnings: warnings}
	logging.Validate("%s validation: valid=%v errors=%d warnings=%d",
		docType, report.IsValid, len(errs), len(warnings))
	return report
}

func validateSTP(master *doctree.Mapping) (errs, warnings []string) {
	for _, field := range []string{"product_name", "product_code"} {
		if fieldMissing(master, field) {
			errs = append(errs, fmt.Sprintf("Missing required field: %s", field))
		}
	}

	tests := master.GetSequence("tests")
	if tests.Len() == 0 {
		warnings = append(warnings, "No tests found in STP")
	} else {
		for i, item := range tests.Items {
			test, ok := item.(*doctree.Mapping)
			if !ok {
				continue
			}
			name := test.GetString("test_name")
			if name == "" {
				warnings = append(warnings, fmt.Sprintf("Test %d missing test name", i+1))
			}
			if test.GetString("acceptance_criteria") == "" {
				if name == "" {
					name = "Unknown"
				}
				warnings = append(warnings, fmt.Sprintf("Test '%s' missing acceptance criteria", name))
			}
		}
	}

	code := master.GetString("product_code")
	if code != "" && code != sanitize.Missing && !strictCodeRe.MatchString(code) {
		warnings = append(warnings, fmt.Sprintf(
			"Product code '%s' doesn't match expected format (XX/XXX or XX/YYY/XXX)", code))
	}
	return errs, warnings
}

func validateMFR(master *doctree.Mapping) (errs, warnings []string) {
	for _, field := range []string{"product_name", "batch_size"} {
		if fieldMissing(master, field) {
			errs = append(errs, fmt.Sprintf("Missing required field: %s", field))
		}
	}

	if master.GetSequence("manufacturing_steps").Len() == 0 {
		warnings = append(warnings, "No manufacturing steps found")
	}
	if master.GetSequence("raw_materials").Len() == 0 {
		warnings = append(warnings, "No raw materials found")
	}

	if size := master.GetString("batch_size"); size != "" && !hasBatchUnit(size) {
		warnings = append(warnings, fmt.Sprintf("Batch size '%s' may be missing unit", size))
	}
	return errs, warnings
}

func fieldMissing(master *doctree.Mapping, field string) bool {
	return master.GetString(field) == ""
}

var batchUnits = []string{"liter", "litre", "l", "kg", "g", "ml", "vial", "tablet", "capsule"}

func hasBatchUnit(size string) bool {
	lower := strings.ToLower(size)
	for _, unit := range batchUnits {
		if strings.Contains(lower, unit) {
			return true
		}
	}
	return false
}
