package extract

import (
	"context"
	"fmt"
	"strings"

	"pharmadoc/internal/doctree"
	"pharmadoc/internal/logging"
	"pharmadoc/internal/oracle"
)

// judge asks the oracle to arbitrate between candidate extractions. Any
// failure, transport or parse, falls back to the first candidate so a flaky
// arbiter can never lose data a pass already captured.
func judge(ctx context.Context, client oracle.Client, candidates []*doctree.Mapping, docType string) *doctree.Mapping {
	logging.Extract("running consensus judge over %d candidates (%s)", len(candidates), docType)

	var rendered strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&rendered, "Candidate %d:\n%s\n\n", i+1, doctree.Canonical(c))
	}

	instruction := fmt.Sprintf(`Role: Validated Data Arbiter.
Task: You are provided with %d extraction candidates for a %s document.
Your job is to merge them into a SINGLE, FINAL JSON object.

Rules for Consolidation:
1. Majority Vote: If 2 or more candidates agree on a value, use strictly that.
2. Conservative Selection: If values differ, choose the most detailed and contextually correct one for a Pharma %s.
3. No Hallucinations: Do not add fields not present in the candidates.
4. Array Merging: For lists (tests/steps), merge them to ensure no items are missed. Deduplicate identical items.

Candidates:
%s
Output: Return ONLY the final JSON.`, len(candidates), docType, docType, rendered.String())

	// Arbitration wants reproducibility, not diversity.
	zero := 0.0
	resp, err := client.Generate(ctx, oracle.Request{
		Instruction: instruction,
		JSONOutput:  true,
		Temperature: &zero,
	})
	if err != nil {
		logging.ExtractWarn("judge call failed, using candidate 1: %v", err)
		return candidates[0]
	}

	final, err := doctree.ParseObject(resp)
	if err != nil {
		logging.ExtractWarn("judge returned no usable JSON, using candidate 1: %v", err)
		return candidates[0]
	}
	logging.Extract("consensus achieved via judge")
	return final
}
