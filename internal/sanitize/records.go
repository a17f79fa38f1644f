package sanitize

import (
	"strings"

	"pharmadoc/internal/doctree"
	"pharmadoc/internal/logging"
)

// masterOf returns the master_definition sub-record when the extraction used
// the bifurcated schema, or the record itself for flat legacy output.
func masterOf(record *doctree.Mapping) *doctree.Mapping {
	if record == nil {
		return nil
	}
	if master := record.GetMapping("master_definition"); master != nil {
		return master
	}
	return record
}

// ApplySTP sanitizes an extracted STP record in place: acceptance criteria of
// each test are validated per test type, and the product code is normalized.
func ApplySTP(record *doctree.Mapping) {
	master := masterOf(record)
	if master == nil {
		return
	}

	if tests := master.GetSequence("tests"); tests != nil {
		for _, item := range tests.Items {
			test, ok := item.(*doctree.Mapping)
			if !ok {
				continue
			}
			name := strings.ToLower(test.GetString("test_name"))
			acceptance := test.GetString("acceptance_criteria")

			if strings.Contains(name, "assay") {
				acceptance = CleanAssay(acceptance)
			}
			if strings.Contains(name, "ph") {
				acceptance = CleanPH(acceptance)
			}
			acceptance = CleanLimit(acceptance)
			test.Set("acceptance_criteria", doctree.Scalar{Value: acceptance})
		}
	}

	sanitizeCodeField(master)
}

// ApplyMFR sanitizes an extracted MFR record in place: the product code is
// normalized and a bare numeric batch size for injectables gets its unit.
func ApplyMFR(record *doctree.Mapping) {
	master := masterOf(record)
	if master == nil {
		return
	}

	sanitizeCodeField(master)

	if _, ok := master.Get("batch_size"); ok {
		size := master.GetString("batch_size")
		name := strings.ToLower(master.GetString("product_name"))
		if size != "" && !hasUnit(size) && strings.Contains(name, "injection") {
			master.Set("batch_size", doctree.Scalar{Value: size + " Liters"})
			logging.SanitizeDebug("batch_size %q missing unit, assumed Liters for injectable", size)
		}
	}
}

func sanitizeCodeField(master *doctree.Mapping) {
	if _, ok := master.Get("product_code"); !ok {
		return
	}
	raw := master.GetString("product_code")
	clean := SanitizeCode(raw)
	if clean == Missing && raw != "" {
		logging.Sanitize("rejected product_code %q", raw)
	}
	master.Set("product_code", doctree.Scalar{Value: clean})
}

var batchUnits = []string{"liter", "litre", "l", "kg", "g", "vial", "tablet"}

func hasUnit(size string) bool {
	lower := strings.ToLower(size)
	for _, unit := range batchUnits {
		if strings.Contains(lower, unit) {
			return true
		}
	}
	return false
}
