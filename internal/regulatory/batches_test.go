package regulatory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadoc/internal/doctree"
)

func mapping(t *testing.T, text string) *doctree.Mapping {
	t.Helper()
	m, err := doctree.ParseObject(text)
	require.NoError(t, err)
	return m
}

func TestAssembleBatchesMergesSources(t *testing.T) {
	mfrExec := mapping(t, `{"batches":[
		{"batch_id":"OI0391","mfg_date":"2024-03-01","results":{"yield":"97%","pH":"7.1"}}
	]}`)
	stpExec := mapping(t, `{"batches":[
		{"batch_id":"OI0391","results":{"pH":"7.2","Assay":"99.1%"}},
		{"batch_id":"OI0392","mfg_date":"2024-03-10","results":{"Assay":"98.7%"}}
	]}`)
	stpMaster := mapping(t, `{"tests":[
		{"test_name":"Assay","acceptance_criteria":"98.0% - 102.0%"},
		{"test_name":"pH","specification":"6.5 - 7.5"}
	]}`)

	batches := AssembleBatches(mfrExec, stpExec, stpMaster)
	require.Len(t, batches, 2)

	first := batches[0]
	assert.Equal(t, "OI0391", first.BatchNumber)
	assert.Equal(t, "2024-03-01", first.ManufacturingDate)
	assert.Equal(t, "2026-03-01", first.ExpiryDate, "expiry inferred as mfg + 2 years")
	assert.Equal(t, StatusPass, first.OverallResult)
	assert.Equal(t, "97%", first.YieldPercentage)

	byName := make(map[string]TestResult)
	for _, tr := range first.TestResults {
		byName[tr.TestName] = tr
	}
	assert.Equal(t, "7.2", byName["pH"].Result, "STP result overrides MFR for the same test")
	assert.Equal(t, "6.5 - 7.5", byName["pH"].Specification)
	assert.Equal(t, "98.0% - 102.0%", byName["Assay"].Specification)

	second := batches[1]
	assert.Equal(t, "OI0392", second.BatchNumber)
	assert.Equal(t, "N/A", second.YieldPercentage)
}

func TestAssembleBatchesFailureDetection(t *testing.T) {
	stpExec := mapping(t, `{"batches":[
		{"batch_id":"OI0391","results":{"Assay":"OOS - 91.2%"}},
		{"batch_id":"OI0392","results":{"Sterility":"Failed, growth observed"}},
		{"batch_id":"OI0393","results":{}}
	]}`)

	batches := AssembleBatches(nil, stpExec, nil)
	require.Len(t, batches, 3)

	assert.Equal(t, StatusFail, batches[0].OverallResult)
	assert.Equal(t, "OOS reported", batches[0].Remarks)
	assert.Equal(t, StatusFail, batches[0].TestResults[0].Status)

	assert.Equal(t, StatusFail, batches[1].OverallResult)

	// Zero tests means the batch cannot claim a pass.
	assert.Equal(t, StatusFail, batches[2].OverallResult)
	assert.Equal(t, "No test results found in documents", batches[2].Remarks)
	assert.Empty(t, batches[2].TestResults)
}

func TestAssembleBatchesDropsUnidentified(t *testing.T) {
	stpExec := mapping(t, `{"batches":[
		{"results":{"Assay":"99%"}},
		{"batch_id":"","results":{"Assay":"99%"}},
		{"batch_id":"OI0391","results":{"Assay":"99%"}}
	]}`)
	batches := AssembleBatches(nil, stpExec, nil)
	require.Len(t, batches, 1)
	assert.Equal(t, "OI0391", batches[0].BatchNumber)
}

func TestAssembleBatchesDefaults(t *testing.T) {
	stpExec := mapping(t, `{"batches":[
		{"batch_id":"OI0391","mfg_date":"March 2024","results":{"Assay":"99%"}}
	]}`)
	batches := AssembleBatches(nil, stpExec, nil)
	require.Len(t, batches, 1)

	b := batches[0]
	assert.Equal(t, "TBD", b.ExpiryDate, "unparseable mfg date yields TBD expiry")
	assert.Equal(t, "As per MFR", b.BatchSize)
	assert.Equal(t, "As per STP", b.TestResults[0].Specification)
}

func TestAssembleBatchesEmptyInputs(t *testing.T) {
	assert.Empty(t, AssembleBatches(nil, nil, nil))
	assert.Empty(t, AssembleBatches(mapping(t, `{}`), mapping(t, `{}`), nil))
}

func TestCrossReference(t *testing.T) {
	stp := mapping(t, `{"product_code":"KPL/CI/010"}`)
	mfrSame := mapping(t, `{"product_code":"kpl/ci/010"}`)
	mfrOther := mapping(t, `{"product_code":"KPL/CI/011"}`)

	assert.Empty(t, CrossReference(stp, mfrSame), "comparison is case-insensitive")

	issues := CrossReference(stp, mfrOther)
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "Product Code mismatch")

	assert.Empty(t, CrossReference(stp, mapping(t, `{}`)), "missing code on one side is not a mismatch")
}
