package extract

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"pharmadoc/internal/cache"
	"pharmadoc/internal/doctree"
	"pharmadoc/internal/oracle"
	"pharmadoc/internal/oracle/oracletest"
)

func noSleep(t *testing.T) (func(time.Duration), *[]time.Duration) {
	t.Helper()
	var waits []time.Duration
	return func(d time.Duration) { waits = append(waits, d) }, &waits
}

func TestExtractAllPassesAgree(t *testing.T) {
	client := oracletest.NewScript(
		oracletest.Reply{Text: `{"strength":"50mg"}`},
		oracletest.Reply{Text: `{"strength":"50mg"}`},
		oracletest.Reply{Text: `{"strength":"500mg"}`},
	)
	sleep, _ := noSleep(t)
	e := New(client, nil, Options{Sleep: sleep})

	got := e.Extract(context.Background(), Input{DocType: "STP", Instruction: "extract", Document: "doc"})
	if got.GetString("strength") != "50mg" {
		t.Errorf("strength = %q, want majority 50mg", got.GetString("strength"))
	}
	if client.Calls() != 3 {
		t.Errorf("calls = %d, want 3", client.Calls())
	}
}

func TestExtractPassMarkersDiffer(t *testing.T) {
	client := oracletest.NewScript(
		oracletest.Reply{Text: `{"a":"1"}`},
		oracletest.Reply{Text: `{"a":"1"}`},
		oracletest.Reply{Text: `{"a":"1"}`},
	)
	sleep, _ := noSleep(t)
	e := New(client, nil, Options{Sleep: sleep})
	e.Extract(context.Background(), Input{DocType: "STP", Instruction: "extract", Document: "doc"})

	seen := make(map[string]bool)
	for _, req := range client.Requests() {
		if seen[req.Instruction] {
			t.Errorf("duplicate instruction between passes:\n%s", req.Instruction)
		}
		seen[req.Instruction] = true
		if !req.JSONOutput {
			t.Error("extraction calls must request JSON output")
		}
	}
}

func TestExtractMalformedCandidateDropped(t *testing.T) {
	// Pass 1 returns garbage on its single attempt and is dropped; pass 2
	// succeeds. With one candidate the result is that candidate verbatim.
	client := oracletest.NewScript(
		oracletest.Reply{Text: "sorry, I cannot find structured data"},
		oracletest.Reply{Text: `{"product_name":"Aspirin"}`},
	)
	sleep, waits := noSleep(t)
	e := New(client, nil, Options{Passes: 2, MaxAttempts: 1, Sleep: sleep})

	got := e.Extract(context.Background(), Input{DocType: "STP", Instruction: "extract", Document: "doc"})
	if got.GetString("product_name") != "Aspirin" {
		t.Errorf("product_name = %q, want Aspirin", got.GetString("product_name"))
	}
	if len(*waits) != 0 {
		t.Errorf("parse failures must not trigger backoff, slept %v", *waits)
	}
}

func TestExtractRateLimitBackoff(t *testing.T) {
	client := oracletest.NewScript(
		oracletest.Reply{Err: &oracle.RateLimitError{}},
		oracletest.Reply{Err: &oracle.RateLimitError{}},
		oracletest.Reply{Text: `{"a":"1"}`},
	)
	sleep, waits := noSleep(t)
	e := New(client, nil, Options{Passes: 1, Sleep: sleep})

	got := e.Extract(context.Background(), Input{DocType: "MFR", Instruction: "extract", Document: "doc"})
	if got.GetString("a") != "1" {
		t.Errorf("a = %q, want 1 after retries", got.GetString("a"))
	}
	if len(*waits) != 2 || (*waits)[0] != 30*time.Second || (*waits)[1] != 60*time.Second {
		t.Errorf("backoff schedule = %v, want [30s 60s]", *waits)
	}
}

func TestExtractNonTransientErrorAbandonsPass(t *testing.T) {
	client := oracletest.NewScript(
		oracletest.Reply{Err: errors.New("invalid request")},
		oracletest.Reply{Text: `{"a":"1"}`},
	)
	sleep, waits := noSleep(t)
	e := New(client, nil, Options{Passes: 2, Sleep: sleep})

	got := e.Extract(context.Background(), Input{DocType: "STP", Instruction: "extract", Document: "doc"})
	if got.GetString("a") != "1" {
		t.Errorf("a = %q, want candidate from surviving pass", got.GetString("a"))
	}
	if client.Calls() != 2 {
		t.Errorf("calls = %d, want 2 (no retry on non-transient error)", client.Calls())
	}
	if len(*waits) != 0 {
		t.Errorf("non-transient errors must not back off, slept %v", *waits)
	}
}

func TestExtractNeverErrors(t *testing.T) {
	client := oracletest.NewScript(
		oracletest.Reply{Err: errors.New("down")},
		oracletest.Reply{Err: errors.New("down")},
		oracletest.Reply{Err: errors.New("down")},
	)
	sleep, _ := noSleep(t)
	e := New(client, nil, Options{Sleep: sleep})

	got := e.Extract(context.Background(), Input{DocType: "STP", Instruction: "extract", Document: "doc"})
	if got == nil {
		t.Fatal("Extract returned nil, want empty mapping")
	}
	if got.Len() != 0 {
		t.Errorf("result = %s, want empty mapping", doctree.Canonical(got))
	}
}

func TestExtractUsesCache(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer store.Close()

	client := oracletest.NewScript(
		oracletest.Reply{Text: `{"a":"1"}`},
		oracletest.Reply{Text: `{"a":"1"}`},
		oracletest.Reply{Text: `{"a":"1"}`},
	)
	sleep, _ := noSleep(t)
	e := New(client, store, Options{Sleep: sleep})

	in := Input{DocType: "STP", Instruction: "extract", Document: "doc"}
	first := e.Extract(context.Background(), in)
	if client.Calls() != 3 {
		t.Fatalf("calls = %d, want 3 on cold cache", client.Calls())
	}

	second := e.Extract(context.Background(), in)
	if client.Calls() != 3 {
		t.Errorf("calls = %d, want no new oracle calls on warm cache", client.Calls())
	}
	if doctree.Canonical(first) != doctree.Canonical(second) {
		t.Errorf("cached result %s differs from original %s",
			doctree.Canonical(second), doctree.Canonical(first))
	}
}

func TestExtractEmptyResultNotCached(t *testing.T) {
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	defer store.Close()

	sleep, _ := noSleep(t)
	failing := oracletest.NewScript(
		oracletest.Reply{Err: errors.New("down")},
		oracletest.Reply{Err: errors.New("down")},
		oracletest.Reply{Err: errors.New("down")},
	)
	e := New(failing, store, Options{Sleep: sleep})
	in := Input{DocType: "STP", Instruction: "extract", Document: "doc"}
	e.Extract(context.Background(), in)

	// A later run with a healthy oracle must not be shadowed by a cached
	// empty record.
	healthy := oracletest.NewScript(
		oracletest.Reply{Text: `{"a":"1"}`},
		oracletest.Reply{Text: `{"a":"1"}`},
		oracletest.Reply{Text: `{"a":"1"}`},
	)
	e2 := New(healthy, store, Options{Sleep: sleep})
	got := e2.Extract(context.Background(), in)
	if got.GetString("a") != "1" {
		t.Errorf("a = %q, want fresh extraction, not cached emptiness", got.GetString("a"))
	}
}

func TestExtractJudgeStrategy(t *testing.T) {
	client := oracletest.NewScript(
		oracletest.Reply{Text: `{"a":"1"}`},
		oracletest.Reply{Text: `{"a":"2"}`},
		oracletest.Reply{Text: `{"a":"3"}`},
		// Judge call.
		oracletest.Reply{Text: `{"a":"judged"}`},
	)
	sleep, _ := noSleep(t)
	e := New(client, nil, Options{Strategy: StrategyJudge, Sleep: sleep})

	got := e.Extract(context.Background(), Input{DocType: "STP", Instruction: "extract", Document: "doc"})
	if got.GetString("a") != "judged" {
		t.Errorf("a = %q, want judge verdict", got.GetString("a"))
	}
}

func TestExtractJudgeFailureFallsBackToFirstCandidate(t *testing.T) {
	client := oracletest.NewScript(
		oracletest.Reply{Text: `{"a":"1"}`},
		oracletest.Reply{Text: `{"a":"2"}`},
		oracletest.Reply{Text: `{"a":"3"}`},
		oracletest.Reply{Err: errors.New("judge unavailable")},
	)
	sleep, _ := noSleep(t)
	e := New(client, nil, Options{Strategy: StrategyJudge, Sleep: sleep})

	got := e.Extract(context.Background(), Input{DocType: "STP", Instruction: "extract", Document: "doc"})
	if got.GetString("a") != "1" {
		t.Errorf("a = %q, want candidate 1 fallback", got.GetString("a"))
	}
}

func TestExtractCancelledContextStopsEarly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := oracletest.NewScript()
	sleep, _ := noSleep(t)
	e := New(client, nil, Options{Sleep: sleep})

	got := e.Extract(ctx, Input{DocType: "STP", Instruction: "extract", Document: "doc"})
	if got == nil || got.Len() != 0 {
		t.Errorf("cancelled extraction = %v, want empty mapping", got)
	}
	if client.Calls() != 0 {
		t.Errorf("calls = %d, want 0 after cancellation", client.Calls())
	}
}
