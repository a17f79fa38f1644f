// Package oracle abstracts the language-model backend used for document
// classification and extraction. Callers see a minimal Generate interface;
// retry policy for rate limits lives with the caller, which knows how many
// passes it still needs.
package oracle

import (
	"context"
	"errors"
	"fmt"
)

// Request is a single generation call. Instruction steers the model,
// Document carries the (already normalized) document text, and Images holds
// optional page scans for vision-assisted extraction.
type Request struct {
	Instruction string
	Document    string
	Images      []Image

	// JSONOutput asks the backend to constrain output to a JSON document.
	JSONOutput bool

	// Temperature overrides the client's configured sampling temperature
	// when non-nil. Arbitration calls pin it to zero.
	Temperature *float64
}

// Image is an inline page scan.
type Image struct {
	MIMEType string
	Data     []byte
}

// Client is implemented by language-model backends.
type Client interface {
	// Generate returns the model's text output for a request. A
	// *RateLimitError signals a transient quota rejection the caller may
	// retry; any other error is final for this call.
	Generate(ctx context.Context, req Request) (string, error)
}

// RateLimitError reports that the backend rejected a call for quota reasons
// (HTTP 429). Distinguishable so callers retry only what is retryable.
type RateLimitError struct {
	Detail string
}

func (e *RateLimitError) Error() string {
	if e.Detail == "" {
		return "oracle: rate limit exceeded"
	}
	return fmt.Sprintf("oracle: rate limit exceeded: %s", e.Detail)
}

// IsRateLimit reports whether err is (or wraps) a rate-limit rejection.
func IsRateLimit(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}
