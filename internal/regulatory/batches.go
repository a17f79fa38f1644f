package regulatory

import (
	"strings"
	"time"

	"pharmadoc/internal/doctree"
	"pharmadoc/internal/logging"
)

// AssembleBatches merges execution evidence from the MFR and STP extractions
// into per-batch records, keyed by batch ID. When both documents report the
// same batch, STP results take precedence: the testing procedure is the
// authoritative source for QC measurements. Specifications are joined in from
// the STP master definition's test list. Batches without an ID are dropped;
// evidence that cannot be attributed to a batch is not evidence.
func AssembleBatches(mfrExec, stpExec, stpMaster *doctree.Mapping) []Batch {
	specs := specLookup(stpMaster)

	type entry struct {
		data    *doctree.Mapping
		results *doctree.Mapping
	}
	var order []string
	merged := make(map[string]*entry)

	collect := func(exec *doctree.Mapping, override bool) {
		if exec == nil {
			return
		}
		batches := exec.GetSequence("batches")
		if batches == nil {
			return
		}
		for _, item := range batches.Items {
			b, ok := item.(*doctree.Mapping)
			if !ok {
				continue
			}
			bid := b.GetString("batch_id")
			if bid == "" {
				continue
			}
			e, exists := merged[bid]
			if !exists {
				e = &entry{data: b, results: doctree.NewMapping()}
				merged[bid] = e
				order = append(order, bid)
			}
			if results := b.GetMapping("results"); results != nil {
				for _, key := range results.Keys() {
					v, _ := results.Get(key)
					if _, has := e.results.Get(key); !has || override {
						e.results.Set(key, v)
					}
				}
			}
		}
	}
	collect(mfrExec, false)
	collect(stpExec, true)

	out := make([]Batch, 0, len(order))
	for _, bid := range order {
		e := merged[bid]
		out = append(out, buildBatch(bid, e.data, e.results, specs))
	}
	logging.Regulatory("assembled %d batches from execution evidence", len(out))
	return out
}

func specLookup(stpMaster *doctree.Mapping) map[string]string {
	specs := make(map[string]string)
	if stpMaster == nil {
		return specs
	}
	tests := stpMaster.GetSequence("tests")
	if tests == nil {
		return specs
	}
	for _, item := range tests.Items {
		t, ok := item.(*doctree.Mapping)
		if !ok {
			continue
		}
		name := strings.ToLower(t.GetString("test_name"))
		spec := t.GetString("specification")
		if spec == "" {
			spec = t.GetString("acceptance_criteria")
		}
		if name != "" {
			specs[name] = spec
		}
	}
	return specs
}

func buildBatch(bid string, data, results *doctree.Mapping, specs map[string]string) Batch {
	mfgDate := data.GetString("mfg_date")
	if mfgDate == "" {
		mfgDate = "Unknown"
	}

	batch := Batch{
		BatchNumber:       bid,
		ManufacturingDate: mfgDate,
		ExpiryDate:        inferExpiry(data.GetString("expiry_date"), mfgDate),
		BatchSize:         orDefault(data.GetString("batch_size"), "As per MFR"),
		OverallResult:     StatusPass,
		YieldPercentage:   orDefault(results.GetString("yield"), "N/A"),
		Remarks:           "Batch extracted successfully",
	}

	if results.Len() == 0 {
		batch.OverallResult = StatusFail
		batch.Remarks = "No test results found in documents"
		return batch
	}

	for _, test := range results.Keys() {
		value := results.GetString(test)
		status := StatusPass
		lower := strings.ToLower(value)
		if strings.Contains(lower, "fail") || strings.Contains(lower, "oos") {
			status = StatusFail
			batch.OverallResult = StatusFail
			batch.Remarks = "OOS reported"
		}
		spec, ok := specs[strings.ToLower(test)]
		if !ok || spec == "" {
			spec = "As per STP"
		}
		batch.TestResults = append(batch.TestResults, TestResult{
			TestName:      test,
			Result:        value,
			Status:        status,
			Specification: spec,
		})
	}
	return batch
}

// inferExpiry fills a missing expiry date from manufacturing date + 2 years.
func inferExpiry(expiry, mfgDate string) string {
	if expiry != "" {
		return expiry
	}
	if mfgDate == "" || mfgDate == "Unknown" {
		return ""
	}
	dt, err := time.Parse("2006-01-02", mfgDate)
	if err != nil {
		return "TBD"
	}
	return dt.AddDate(2, 0, 0).Format("2006-01-02")
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
