package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pharmadoc/internal/oracle/oracletest"
)

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name string
		text string
		want DocType
	}{
		{
			name: "master formula record",
			text: "MASTER FORMULA RECORD\nProduct: Paracetamol Tablets\nBatch Size: 500,000 tablets",
			want: MFR,
		},
		{
			name: "standard testing procedure",
			text: "STANDARD TESTING PROCEDURE\nFinished Product Specification and Method of Analysis",
			want: STP,
		},
		{
			name: "empty text defaults to STP",
			text: "",
			want: STP,
		},
		{
			name: "tie goes to STP",
			text: "mfr stp", // 1 point each
			want: STP,
		},
		{
			name: "bill of materials beats weak stp signal",
			text: "Bill of Materials for batch manufacturing",
			want: MFR,
		},
		{
			name: "specification plus method",
			text: "Specification limits per test method described below",
			want: STP,
		},
		{
			name: "mfr keyword deep in document is ignored",
			text: strings.Repeat("x", 6000) + " master formula record",
			want: STP,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Heuristic(tt.text); got != tt.want {
				t.Errorf("Heuristic = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassifyWithoutClient(t *testing.T) {
	if got := Classify(context.Background(), nil, "master formula record"); got != MFR {
		t.Errorf("Classify = %s, want MFR", got)
	}
}

func TestClassifyOracleOverride(t *testing.T) {
	// Heuristic says STP, oracle is confident it is an MFR.
	client := oracletest.NewScript(oracletest.Reply{Text: "MFR"})
	got := Classify(context.Background(), client, "specification and method, but actually a batch record")
	if got != MFR {
		t.Errorf("Classify = %s, want MFR from oracle override", got)
	}
}

func TestClassifyAmbiguousOracleKeepsHeuristic(t *testing.T) {
	client := oracletest.NewScript(oracletest.Reply{
		Text: "This could be an STP or an MFR depending on interpretation.",
	})
	got := Classify(context.Background(), client, "master formula record")
	if got != MFR {
		t.Errorf("Classify = %s, want heuristic MFR on ambiguous oracle answer", got)
	}
}

func TestClassifyOracleFailureFallsBack(t *testing.T) {
	client := oracletest.NewScript(oracletest.Reply{Err: errors.New("backend down")})
	got := Classify(context.Background(), client, "standard testing procedure")
	if got != STP {
		t.Errorf("Classify = %s, want heuristic STP on oracle failure", got)
	}
}

func TestClassifyUnrelatedOracleAnswerKeepsHeuristic(t *testing.T) {
	client := oracletest.NewScript(oracletest.Reply{Text: "COA"})
	got := Classify(context.Background(), client, "standard testing procedure")
	if got != STP {
		t.Errorf("Classify = %s, want heuristic STP", got)
	}
}
