package extract

import "fmt"

// Context carries document metadata into the extraction instructions.
type Context struct {
	ProductName string
	DosageForm  string
	ProductCode string
}

// STPInstruction builds the bifurcated-schema instruction for a Standard
// Testing Procedure. The schema splits the master plan (specifications,
// limits) from execution evidence (actual batch results) so downstream
// compliance rules never confuse a requirement with a measurement.
func STPInstruction(ctx Context) string {
	return fmt.Sprintf(`Role: Your task is to extract Process Validation data from the STP (Standard Testing Procedure).

CRITICAL INSTRUCTION: You must split the data into two distinct sections:
1. "master_definition": The "Plan" or "Template" data (Standards, Specifications, Limits).
2. "execution_evidence": The "Actual Results" from any executed batches found (Batch IDs, Dates, Test Results).

Context:
- Product: %s (%s)
- Document Type: Standard Testing Procedure
- Product Code: %s

ANTI-HALLUCINATION RULES:
1. Temperature 0 Validity: If a value is not explicitly in the text, return "-------" or null. Do not guess.
2. Execution Data: ONLY extract explicit batch results (e.g., "Batch No. XYZ: pH 7.2"). If the document is just a template, "execution_evidence" should be empty.
3. Future Tense: Master Definition should imply requirements (e.g., "Acceptance Criteria").
4. Missing Data: Always use "-------" for missing fields instead of generic placeholders.

REQUIRED JSON STRUCTURE:
{
    "master_definition": {
        "description": "Validation Protocol Master Data",
        "product_name": "Exact Name",
        "product_code": "Code found",
        "version": "Version info",
        "effective_date": "Date info",
        "tests": [
            {
                "test_name": "Test Name",
                "method": "Full Method Text",
                "acceptance_criteria": "Exact Limit/Spec",
                "specification": "Exact Spec Text"
            }
        ]
    },
    "execution_evidence": {
        "description": "Actual Batch Results if present",
        "batches": [
            {
                "batch_id": "Strict format [A-Z]{2}[0-9]{4} only",
                "mfg_date": "YYYY-MM-DD",
                "results": {
                    "pH": "Actual Value",
                    "Assay": "Actual Value"
                }
            }
        ]
    }
}`, ctx.ProductName, ctx.DosageForm, ctx.ProductCode)
}

// MFRInstruction builds the bifurcated-schema instruction for a Master
// Formula Record.
func MFRInstruction(ctx Context) string {
	return fmt.Sprintf(`Role: Your task is to extract Process Validation data from the MFR (Master Formula Record).

CRITICAL INSTRUCTION: Split data into "master_definition" (Plan) and "execution_evidence" (Results).

Context:
- Product: %s (%s)
- Document Type: Master Formula Record
- Product Code: %s

ANTI-HALLUCINATION RULES:
1. Batch IDs: ONLY extract batch IDs matching regex [A-Z]{2}[0-9]{4} (e.g., OI0391). Ignore "FU/MFR/..." patterns as batch IDs.
2. Blank Filling: If you see "______" for a quantity, check the Bill of Materials (BOM) and fill it from the Standard Quantity.
3. Vendor Names: Extract full vendor names from Raw Material specs (e.g., "Avandose Pharmatech").
4. Missing Data: Always use "-------" for missing fields instead of generic placeholders.

REQUIRED JSON STRUCTURE:
{
    "master_definition": {
        "description": "MFR Master Template Data",
        "product_name": "Exact Name",
        "product_code": "Code found",
        "batch_size": "Batch size with unit",
        "mfr_effective_date": "Effective Date",
        "shelf_life": "Shelf Life",
        "storage_condition": "Storage Condition",
        "manufacturing_steps": [
            {
                "step_number": 1,
                "step_name": "Title",
                "description": "Full instruction text",
                "equipment": ["Eq1", "Eq2"],
                "parameters": {"temp": "..."},
                "critical": true
            }
        ],
        "raw_materials": [
            {
                "name": "Material Name",
                "standard_qty": "Qty with unit",
                "vendor": "Vendor Name if present"
            }
        ],
        "equipment": [
            {
                "name": "Eq Name",
                "equipment_id": "ID (e.g., KPL/WH/013)",
                "capacity": "Cap",
                "make": "Make/Model"
            }
        ]
    },
    "execution_evidence": {
        "description": "Executed Batch Data",
        "batches": [
            {
                "batch_id": "Strict format [A-Z]{2}[0-9]{4}",
                "mfg_date": "YYYY-MM-DD",
                "results": {
                    "yield": "Yield %%",
                    "ph_after_mixing": "Value",
                    "bulk_yield": "Value"
                }
            }
        ]
    }
}`, ctx.ProductName, ctx.DosageForm, ctx.ProductCode)
}
