// Package dispatch implements the ordered (backend, target_model) fallback
// chain walker of spec §4.4: for each target it pulls a credential from the
// pool, issues the call, classifies the outcome, and either retries on the
// same target, rotates to another credential on that target, or advances to
// the next chain link — bounded by a retry budget with exponential backoff
// and jitter.
package dispatch

import (
	"context"
	"net/http"
	"time"

	"gcli2api-go/internal/credential"
)

// Target names one (backend, model) fallback-chain link.
type Target struct {
	Backend string
	Model   string
}

// Chain is an ordered list of fallback targets, tried in order.
type Chain []Target

// Attempt records one credential/target pairing tried during Execute, kept
// for caller-side logging/metrics.
type Attempt struct {
	Target     Target
	CredID     string
	Status     int
	Err        error
	Duration   time.Duration
	RetryAfter time.Duration
}

// Result is the outcome of a full chain walk.
type Result struct {
	Response   *http.Response
	UsedTarget Target
	CredID     string
	Attempts   []Attempt
}

// Options configures a Dispatcher.
type Options struct {
	// MaxAttemptsPerTarget bounds how many distinct credentials (and retries
	// of the same credential on 5xx) are tried before advancing the chain.
	MaxAttemptsPerTarget int
	// MaxWaitForCooldown is passed to credential.Manager.PickWithWait.
	MaxWaitForCooldown time.Duration
	// BaseBackoff/MaxBackoff bound the exponential-backoff-with-jitter delay
	// applied between same-credential retries on a transient server error.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// BackendConcurrency and BackendMinInterval configure the per-backend
	// rate.Limiter-backed gate (spec §4.4 concurrency control).
	BackendConcurrency int
	BackendMinInterval time.Duration
}

// DefaultOptions returns the spec-default dispatcher tuning.
func DefaultOptions() Options {
	return Options{
		MaxAttemptsPerTarget: 4,
		MaxWaitForCooldown:   3 * time.Second,
		BaseBackoff:          500 * time.Millisecond,
		MaxBackoff:           20 * time.Second,
		BackendConcurrency:   8,
		BackendMinInterval:   0,
	}
}

// Caller is the minimal surface Execute needs from a backend to issue one
// attempt; upstream.Provider satisfies a superset of this.
type Caller interface {
	Call(ctx context.Context, cred *credential.Credential, target Target, req AttemptInput) (*http.Response, error)
}

// AttemptInput bundles the per-attempt request inputs Execute passes to
// Caller. Body is the already-translated inner request payload shared
// across every attempt in the chain; the Caller is responsible for wrapping
// it with the per-target model and per-credential project before it goes on
// the wire, since those vary attempt to attempt while the request body
// itself does not.
type AttemptInput struct {
	Body    []byte
	Headers http.Header
	Stream  bool
}
