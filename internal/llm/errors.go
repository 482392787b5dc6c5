package llm

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// Error taxonomy for the completion client. Callers match with errors.Is and
// decide between retry-with-new-slot and abandon.
var (
	// ErrTimeout means the task did not complete within its deadline,
	// queue wait included.
	ErrTimeout = eris.New("completion timeout")

	// ErrOverloaded is the retryable "overloaded/unavailable" class that
	// triggers slot rotation.
	ErrOverloaded = eris.New("provider overloaded")

	// ErrProvider covers non-retryable provider failures (bad request,
	// auth, malformed response).
	ErrProvider = eris.New("provider error")

	// ErrAllSlotsExhausted is terminal for one call after the full retry
	// budget. Surfaced to the immediate caller, never the whole pipeline.
	ErrAllSlotsExhausted = eris.New("all slots exhausted")

	// ErrDimensionMismatch means an embedding response disagreed on vector
	// width. Treated as an empty score vector by callers.
	ErrDimensionMismatch = eris.New("embedding dimension mismatch")
)

// classifyStatus maps an HTTP status from a completion backend onto the
// taxonomy. 429 and 5xx are the overloaded class worth rotating slots for.
func classifyStatus(status int, cause error) error {
	switch {
	case status == 408 || status == 429 || status >= 500:
		return fmt.Errorf("%w: status %d: %v", ErrOverloaded, status, cause)
	default:
		return fmt.Errorf("%w: status %d: %v", ErrProvider, status, cause)
	}
}

// retryable reports whether the error class is worth another slot
func retryable(err error) bool {
	return eris.Is(err, ErrOverloaded) || eris.Is(err, ErrTimeout)
}
