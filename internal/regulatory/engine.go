package regulatory

import (
	"fmt"
	"strings"

	"pharmadoc/internal/doctree"
	"pharmadoc/internal/logging"
)

// minBatches is the regulatory floor for demonstrating process consistency.
const minBatches = 3

// Evaluate renders the validation verdict for the assembled batch evidence.
// Rules are checked in order and the first match wins: absence of evidence,
// insufficient batch count, any failed batch, missing QC data, then success.
func Evaluate(batches []Batch) Decision {
	if len(batches) == 0 {
		logging.Regulatory("verdict: INCONCLUSIVE (no execution data)")
		return Decision{
			ConclusionStatement: "PROCESS VALIDATION INCONCLUSIVE",
			IsValid:             false,
			Justification:       "No batch execution data (MFR/BMR) was available or extracted. Validation cannot be evaluated without execution evidence.",
			Recommendations:     []string{"Process requires comprehensive validation with three consecutive batches."},
			ComplianceLevel:     Inconclusive,
		}
	}

	if len(batches) < minBatches {
		logging.Regulatory("verdict: INCONCLUSIVE (%d batches)", len(batches))
		return Decision{
			ConclusionStatement: "PROCESS VALIDATION INCONCLUSIVE (Insufficient Data)",
			IsValid:             false,
			Justification: fmt.Sprintf(
				"Only %d batches were available. Regulatory standards require a minimum of three consecutive batches to demonstrate consistency.",
				len(batches)),
			Recommendations: []string{
				"Continue validation with remaining batches.",
				"Do not release batches for commercial distribution until 3 consecutive batches are validated.",
			},
			ComplianceLevel: Inconclusive,
		}
	}

	var failed []string
	for _, b := range batches {
		if b.OverallResult == StatusFail {
			name := b.BatchNumber
			if name == "" {
				name = "Unknown"
			}
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		logging.Regulatory("verdict: NON_COMPLIANT (failed batches: %s)", strings.Join(failed, ", "))
		return Decision{
			ConclusionStatement: "PROCESS NOT VALIDATED",
			IsValid:             false,
			Justification: fmt.Sprintf(
				"Critical deviations/OOS observed in batches: %s. The process has failed to demonstrate a state of control.",
				strings.Join(failed, ", ")),
			Recommendations: []string{
				"Raise Non-Conformance Reference (NCR).",
				"Conduct Root Cause Analysis (RCA).",
				"Process optimization and re-validation required.",
			},
			ComplianceLevel: NonCompliant,
		}
	}

	for _, b := range batches {
		if len(b.TestResults) == 0 {
			logging.Regulatory("verdict: INCONCLUSIVE (missing QC data for %s)", b.BatchNumber)
			return Decision{
				ConclusionStatement: "PROCESS VALIDATION INCONCLUSIVE (Missing QC Data)",
				IsValid:             false,
				Justification:       "Testing results (QC data) were not available for one or more batches. Compliance cannot be verified.",
				Recommendations:     []string{"Ensure all QC testing is completed and recorded prior to final report generation."},
				ComplianceLevel:     Inconclusive,
			}
		}
	}

	logging.Regulatory("verdict: COMPLIANT (%d passing batches)", len(batches))
	return Decision{
		ConclusionStatement: "PROCESS VALIDATED",
		IsValid:             true,
		Justification:       "Three consecutive batches (n=3) were executed successfully. All Critical Process Parameters (CPPs) and Critical Quality Attributes (CQAs) met the predetermined acceptance criteria. No critical deviations were observed.",
		Recommendations: []string{
			"The manufacturing process is considered validated and suitable for commercial manufacturing.",
			"Routine monitoring shall continue as per the standard protocol.",
			"Any change in the process, equipment, or materials shall be handled via Change Control.",
		},
		ComplianceLevel: Compliant,
	}
}

// SanityCheck cross-verifies a rendered conclusion against the underlying
// batch evidence. It is the last line of defense against a report that claims
// success the data does not support.
func SanityCheck(conclusion string, batches []Batch) []string {
	var issues []string

	claimsValidated := strings.Contains(conclusion, "PROCESS VALIDATED")
	if claimsValidated && len(batches) < minBatches {
		issues = append(issues, "CRITICAL: Conclusion claims Validated but fewer than 3 batches found.")
	}
	if claimsValidated {
		for _, b := range batches {
			if b.OverallResult == StatusFail {
				issues = append(issues, "CRITICAL: Conclusion claims Validated but Failed batches exist.")
				break
			}
		}
	}
	return issues
}

// CrossReference compares identifying fields between the STP and MFR master
// definitions and reports discrepancies.
func CrossReference(stpMaster, mfrMaster *doctree.Mapping) []string {
	var discrepancies []string

	stpCode := strings.ToUpper(strings.TrimSpace(stpMaster.GetString("product_code")))
	mfrCode := strings.ToUpper(strings.TrimSpace(mfrMaster.GetString("product_code")))
	if stpCode != "" && mfrCode != "" && stpCode != mfrCode {
		discrepancies = append(discrepancies,
			fmt.Sprintf("Product Code mismatch: STP='%s' vs MFR='%s'", stpCode, mfrCode))
	}
	return discrepancies
}
