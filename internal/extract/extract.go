// Package extract runs multi-pass consensus extraction against the oracle.
// Each pass asks for the same structured record; disagreement between passes
// is resolved either deterministically (Reconcile) or by a judge call. The
// extractor never returns an error: in the worst case the caller gets an
// empty record, and validation downstream will say so.
package extract

import (
	"context"
	"fmt"
	"time"

	"pharmadoc/internal/cache"
	"pharmadoc/internal/doctree"
	"pharmadoc/internal/logging"
	"pharmadoc/internal/oracle"
)

// Strategy selects how disagreeing candidates are consolidated.
type Strategy int

const (
	// StrategyReconcile merges candidates deterministically. Same passes in,
	// same record out.
	StrategyReconcile Strategy = iota
	// StrategyJudge asks the oracle to arbitrate, falling back to the first
	// candidate when the judge fails.
	StrategyJudge
)

const (
	defaultPasses      = 3
	defaultMaxAttempts = 3
	documentWindow     = 60000
	rateLimitBackoff   = 30 * time.Second
)

// Options tune the extractor. Zero values select the defaults.
type Options struct {
	Passes      int
	MaxAttempts int
	Strategy    Strategy

	// Sleep is the backoff hook, replaceable in tests. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Extractor coordinates passes, retries and caching for one oracle client.
type Extractor struct {
	client      oracle.Client
	store       *cache.Store
	passes      int
	maxAttempts int
	strategy    Strategy
	sleep       func(time.Duration)
}

// New builds an Extractor. store may be nil to disable caching.
func New(client oracle.Client, store *cache.Store, opts Options) *Extractor {
	if opts.Passes <= 0 {
		opts.Passes = defaultPasses
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	return &Extractor{
		client:      client,
		store:       store,
		passes:      opts.Passes,
		maxAttempts: opts.MaxAttempts,
		strategy:    opts.Strategy,
		sleep:       opts.Sleep,
	}
}

// Input is one extraction job.
type Input struct {
	DocType     string
	Instruction string
	Document    string
	Images      []oracle.Image
}

// Extract runs the consensus loop and returns the consolidated record. The
// result is never nil; an empty mapping means no pass produced usable JSON.
func (e *Extractor) Extract(ctx context.Context, in Input) *doctree.Mapping {
	key := cache.Key(in.Document, in.Instruction)
	if e.store != nil {
		if hit := e.store.Get(key, in.DocType); hit != nil {
			return hit
		}
	}

	logging.Extract("starting consensus loop (%d passes) for %s", e.passes, in.DocType)
	document := "Document Content:\n" + truncate(in.Document, documentWindow)

	var candidates []*doctree.Mapping
	for pass := 1; pass <= e.passes; pass++ {
		if ctx.Err() != nil {
			logging.ExtractWarn("context done after %d candidates: %v", len(candidates), ctx.Err())
			break
		}
		if c := e.runPass(ctx, in, document, pass); c != nil {
			candidates = append(candidates, c)
		}
	}

	var result *doctree.Mapping
	switch {
	case len(candidates) == 0:
		logging.ExtractError("no pass produced a candidate for %s", in.DocType)
		return doctree.NewMapping()
	case len(candidates) == 1:
		result = candidates[0]
	case e.strategy == StrategyJudge:
		result = judge(ctx, e.client, candidates, in.DocType)
	default:
		result = Reconcile(candidates)
	}

	if e.store != nil && result.Len() > 0 {
		e.store.Set(key, in.DocType, result)
	}
	return result
}

// runPass makes up to maxAttempts oracle calls for one pass. Rate limits get
// a linear backoff (30s, 60s, 90s); malformed JSON gets a plain retry; any
// other error abandons the pass.
func (e *Extractor) runPass(ctx context.Context, in Input, document string, pass int) *doctree.Mapping {
	instruction := fmt.Sprintf(
		"%s\n\n[System Note: Extraction Iteration %d/%d. Strict JSON only.]",
		in.Instruction, pass, e.passes)

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		resp, err := e.client.Generate(ctx, oracle.Request{
			Instruction: instruction,
			Document:    document,
			Images:      in.Images,
			JSONOutput:  true,
		})
		if err != nil {
			if oracle.IsRateLimit(err) {
				if attempt == e.maxAttempts {
					break
				}
				wait := rateLimitBackoff * time.Duration(attempt)
				logging.ExtractWarn("pass %d attempt %d rate limited, waiting %v", pass, attempt, wait)
				e.sleep(wait)
				continue
			}
			logging.ExtractWarn("pass %d abandoned: %v", pass, err)
			return nil
		}

		candidate, err := doctree.ParseObject(resp)
		if err != nil {
			logging.ExtractWarn("pass %d attempt %d produced no usable JSON: %v", pass, attempt, err)
			continue
		}
		logging.ExtractDebug("pass %d succeeded (%d keys)", pass, candidate.Len())
		return candidate
	}

	logging.ExtractWarn("pass %d exhausted %d attempts", pass, e.maxAttempts)
	return nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
