package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoTargets is returned by input normalization when a request contains no
// valid scrape targets. Callers treat it as an empty success, not a failure.
var ErrNoTargets = errors.New("input normalized to zero valid targets")

// TransientError is a gateway/timeout/rate-limit class provider response or a
// network failure. It is retried locally with backoff before escalating.
type TransientError struct {
	Status      int  // HTTP status, 0 for network errors
	RateLimited bool // true for rate-limit responses, distinct from gateway errors
	Err         error
}

func (e *TransientError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transient provider error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient provider error: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable with backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// AuthRejectedError is an authorization or quota rejection of a single
// credential. The submission path rotates to the next credential on it.
type AuthRejectedError struct {
	Status  int
	Message string
}

func (e *AuthRejectedError) Error() string {
	return fmt.Sprintf("credential rejected (status %d): %s", e.Status, e.Message)
}

// IsAuthRejected reports whether err is a credential rejection.
func IsAuthRejected(err error) bool {
	var ae *AuthRejectedError
	return errors.As(err, &ae)
}

// AuthorizationExhaustedError means every credential in the pool was rejected
// for one submission. It records how many were tried so operators can tell a
// pool-wide quota problem apart from a single bad token.
type AuthorizationExhaustedError struct {
	Rejected int
	Last     error
}

func (e *AuthorizationExhaustedError) Error() string {
	return fmt.Sprintf("all %d credentials rejected, last: %v", e.Rejected, e.Last)
}

func (e *AuthorizationExhaustedError) Unwrap() error { return e.Last }

// ProviderError is a submit/poll/fetch failure that survived local retries.
// It triggers the one-shot fallback path.
type ProviderError struct {
	Stage string // "submit", "poll" or "fetch"
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Stage, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// CompositeFailure is raised when both the primary pipeline and the fallback
// execution failed. Both causes are preserved.
type CompositeFailure struct {
	Primary  error
	Fallback error
}

func (e *CompositeFailure) Error() string {
	return fmt.Sprintf("primary execution failed (%v); fallback failed (%v)", e.Primary, e.Fallback)
}

func (e *CompositeFailure) Unwrap() error { return e.Primary }

// TimeoutError means the polling ceiling was exceeded while waiting for a run
// to reach a terminal state. No fallback is attempted for it.
type TimeoutError struct {
	RunID  string
	Waited time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run %s did not finish within %s", e.RunID, e.Waited)
}

// AbortRequested means cooperative cancellation was observed: the owning job
// was externally flagged aborted. It is a distinct terminal status, not a
// failure.
type AbortRequested struct {
	JobID string
}

func (e *AbortRequested) Error() string {
	return fmt.Sprintf("abort requested for job %s", e.JobID)
}

// IsAbortRequested reports whether err is a cooperative cancellation.
func IsAbortRequested(err error) bool {
	var ar *AbortRequested
	return errors.As(err, &ar)
}

// QuotaExceededError is a job store resource-exhaustion error. The scheduler
// pauses polling for a cooldown window on it instead of failing any job.
type QuotaExceededError struct {
	Err error
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("store quota exceeded: %v", e.Err)
}

func (e *QuotaExceededError) Unwrap() error { return e.Err }

// IsQuotaExceeded reports whether err is a store resource-exhaustion error.
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
