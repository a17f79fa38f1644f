// Package regulatory renders the compliance verdict for a process validation.
// The engine is a strict, deterministic gatekeeper: it never calls the oracle,
// and when the evidence does not support a conclusion it returns inconclusive
// or failure states rather than guessing.
package regulatory

// ComplianceLevel classifies a validation decision.
type ComplianceLevel string

const (
	Compliant    ComplianceLevel = "COMPLIANT"
	Inconclusive ComplianceLevel = "INCONCLUSIVE"
	NonCompliant ComplianceLevel = "NON_COMPLIANT"
)

// Test result statuses.
const (
	StatusPass = "PASS"
	StatusFail = "FAIL"
)

// TestResult is one QC measurement on a batch, joined with the specification
// it was tested against.
type TestResult struct {
	TestName      string `json:"test_name"`
	Result        string `json:"result"`
	Status        string `json:"status"`
	Specification string `json:"specification"`
}

// Batch is the assembled execution evidence for one manufactured batch.
type Batch struct {
	BatchNumber       string       `json:"batch_number"`
	ManufacturingDate string       `json:"manufacturing_date"`
	ExpiryDate        string       `json:"expiry_date"`
	BatchSize         string       `json:"batch_size"`
	TestResults       []TestResult `json:"test_results"`
	OverallResult     string       `json:"overall_result"`
	YieldPercentage   string       `json:"yield_percentage"`
	Remarks           string       `json:"remarks"`
}

// Decision is the engine's verdict on a validation run.
type Decision struct {
	ConclusionStatement string          `json:"conclusion_statement"`
	IsValid             bool            `json:"is_valid"`
	Justification       string          `json:"justification"`
	Recommendations     []string        `json:"recommendations"`
	ComplianceLevel     ComplianceLevel `json:"compliance_level"`
}
