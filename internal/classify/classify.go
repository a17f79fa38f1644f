// Package classify determines whether a pharmaceutical document is an STP
// (Standard Testing Procedure) or an MFR (Master Formula Record). A keyword
// heuristic over the document header always produces an answer; an oracle
// check can override it, but only when the oracle's answer is unambiguous.
package classify

import (
	"context"
	"strings"

	"pharmadoc/internal/logging"
	"pharmadoc/internal/oracle"
)

// DocType is a document classification.
type DocType string

const (
	STP DocType = "STP"
	MFR DocType = "MFR"
)

// headerWindow bounds how much of the document the classifier inspects.
// Classification signals live in titles and intro sections, not page 40.
const headerWindow = 5000

// Heuristic scores MFR and STP signal keywords in the document header and
// returns the higher scorer. Ties go to STP: a wrongly assumed testing
// procedure fails validation loudly, a wrongly assumed manufacturing record
// fabricates batch evidence.
func Heuristic(text string) DocType {
	header := strings.ToLower(truncate(text, headerWindow))

	mfrScore := 0
	if strings.Contains(header, "master formula") {
		mfrScore += 3
	}
	if strings.Contains(header, "manufacturing record") {
		mfrScore += 3
	}
	if strings.Contains(header, "batch manufacturing") {
		mfrScore += 2
	}
	if strings.Contains(header, "mfr") {
		mfrScore++
	}
	if strings.Contains(header, "bill of materials") || strings.Contains(header, "bom") {
		mfrScore += 2
	}

	stpScore := 0
	if strings.Contains(header, "standard testing") {
		stpScore += 3
	}
	if strings.Contains(header, "stp") {
		stpScore++
	}
	if strings.Contains(header, "specification") && strings.Contains(header, "method") {
		stpScore++
	}
	if strings.Contains(header, "finished product specification") {
		stpScore += 2
	}

	logging.ClassifyDebug("heuristic scores: mfr=%d stp=%d", mfrScore, stpScore)
	if mfrScore > stpScore {
		return MFR
	}
	return STP
}

const verifyInstruction = `Classify this pharmaceutical document content into exactly one category: "STP" (Standard Testing Procedure) or "MFR" (Master Formula Record).

Rules:
- STP contains tests, methods, specifications, limits.
- MFR contains manufacturing steps, equipment, batch size, raw materials.

Return ONLY the category name.`

// Classify runs the heuristic and, when a client is available, asks the
// oracle to verify. The oracle wins only when its answer names exactly one
// category; anything else keeps the heuristic result. Oracle failures are
// logged and swallowed, classification must always produce an answer.
func Classify(ctx context.Context, client oracle.Client, text string) DocType {
	heuristic := Heuristic(text)
	if client == nil {
		return heuristic
	}

	resp, err := client.Generate(ctx, oracle.Request{
		Instruction: verifyInstruction,
		Document:    truncate(text, headerWindow),
	})
	if err != nil {
		logging.ClassifyWarn("oracle verification failed, keeping heuristic %s: %v", heuristic, err)
		return heuristic
	}

	answer := strings.ToUpper(resp)
	saysSTP := strings.Contains(answer, "STP")
	saysMFR := strings.Contains(answer, "MFR")
	switch {
	case saysSTP && !saysMFR:
		if heuristic != STP {
			logging.Classify("oracle corrected %s to STP", heuristic)
		}
		return STP
	case saysMFR && !saysSTP:
		if heuristic != MFR {
			logging.Classify("oracle corrected %s to MFR", heuristic)
		}
		return MFR
	default:
		logging.ClassifyWarn("ambiguous oracle answer %q, keeping heuristic %s", resp, heuristic)
		return heuristic
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
