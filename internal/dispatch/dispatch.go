package dispatch

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"gcli2api-go/internal/credential"
	"gcli2api-go/internal/errors"

	log "github.com/sirupsen/logrus"
)

// Dispatcher walks a fallback Chain, picking a credential per target via
// credential.Manager and issuing the call through a Caller, retrying and
// rotating per classify's decisions until a target succeeds or the chain is
// exhausted.
type Dispatcher struct {
	credMgr  *credential.Manager
	caller   Caller
	limiters *backendLimiters
	opts     Options
}

// New constructs a Dispatcher. caller is typically an adapter over
// upstream.Manager that resolves a Target.Backend to a concrete
// upstream.Provider and issues the Generate/Stream call.
func New(credMgr *credential.Manager, caller Caller, opts Options) *Dispatcher {
	if opts.MaxAttemptsPerTarget <= 0 {
		opts.MaxAttemptsPerTarget = DefaultOptions().MaxAttemptsPerTarget
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = DefaultOptions().BaseBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultOptions().MaxBackoff
	}
	return &Dispatcher{
		credMgr:  credMgr,
		caller:   caller,
		limiters: newBackendLimiters(opts),
		opts:     opts,
	}
}

// Execute walks chain in order, trying each target with PickWithWait-sourced
// credentials until one call succeeds (status < 400) or every target is
// exhausted, in which case it returns errors.CredentialPoolExhausted-kinded
// error carrying the last attempt's detail.
func (d *Dispatcher) Execute(ctx context.Context, chain Chain, kind credential.Kind, req AttemptInput) (*Result, error) {
	if len(chain) == 0 {
		return nil, errors.NewKind(errors.KindClientMalformed, "NO_TARGET", "empty fallback chain")
	}

	result := &Result{}
	var lastErr error
	var lastStatus int
	var lastBody []byte

targetLoop:
	for _, target := range chain {
		limiter := d.limiters.forBackend(target.Backend)
		retriesOnCredential := 0

		for attempt := 0; attempt < d.opts.MaxAttemptsPerTarget; attempt++ {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}

			cred, ok := d.credMgr.PickWithWait(ctx, kind, target.Model, d.opts.MaxWaitForCooldown)
			if !ok {
				continue targetLoop // no usable credential for this target at all; advance chain
			}

			release, err := limiter.acquire(ctx)
			if err != nil {
				return nil, err
			}

			start := time.Now()
			resp, callErr := d.caller.Call(ctx, cred, target, req)
			release()
			duration := time.Since(start)

			status := 0
			if resp != nil {
				status = resp.StatusCode
			}

			result.Attempts = append(result.Attempts, Attempt{
				Target: target, CredID: cred.ID, Status: status, Err: callErr, Duration: duration,
			})

			if callErr == nil && status > 0 && status < 400 {
				d.credMgr.RecordOutcome(cred.ID, target.Model, credential.FailureOutcome{Status: status})
				result.Response = resp
				result.UsedTarget = target
				result.CredID = cred.ID
				return result, nil
			}

			body, header := readAndDrain(resp)
			allExhausted := !d.hasMoreCredentials(kind, target.Model, cred.ID)
			d.credMgr.RecordOutcome(cred.ID, target.Model, credential.FailureOutcome{
				Status: status, Header: header, Body: body, AllOthersExhausted: allExhausted,
			})
			if callErr != nil {
				lastErr = callErr
			}
			lastStatus = status
			lastBody = body

			act := classify(status, callErr, retriesOnCredential, d.opts.MaxAttemptsPerTarget-1)
			log.WithFields(log.Fields{
				"backend": target.Backend, "model": target.Model, "cred_id": cred.ID,
				"status": status, "action": act,
			}).Debug("dispatch attempt failed")

			switch act {
			case actionRetrySameCredential:
				retriesOnCredential++
				time.Sleep(d.backoff(retriesOnCredential))
				attempt-- // doesn't count against the credential-rotation budget
				continue
			case actionAdvanceChain:
				continue targetLoop
			default: // actionRotateCredential
				retriesOnCredential = 0
				continue
			}
		}
	}

	if lastErr != nil {
		return nil, errors.NewKind(errors.KindCredentialPoolExhausted, "", lastErr.Error())
	}
	if lastStatus > 0 {
		msg := lastStatusMessage(lastStatus, lastBody)
		return nil, errors.NewKind(errors.KindCredentialPoolExhausted, "", msg)
	}
	return nil, errors.NewKind(errors.KindCredentialPoolExhausted, "", "fallback chain exhausted with no usable credential")
}

// lastStatusMessage renders the final attempt's HTTP status/body into a
// diagnosable error string for when every attempt failed via a status code
// rather than a transport-level error (callErr nil throughout).
func lastStatusMessage(status int, body []byte) string {
	const maxBodyLen = 500
	snippet := string(body)
	if len(snippet) > maxBodyLen {
		snippet = snippet[:maxBodyLen]
	}
	if snippet == "" {
		return fmt.Sprintf("fallback chain exhausted: last attempt returned HTTP %d", status)
	}
	return fmt.Sprintf("fallback chain exhausted: last attempt returned HTTP %d: %s", status, snippet)
}

func (d *Dispatcher) hasMoreCredentials(kind credential.Kind, model, excludeID string) bool {
	cred, ok := d.credMgr.Pick(kind, model)
	if !ok {
		return false
	}
	return cred.ID != excludeID
}

// backoff mirrors the teacher's Client.nextBackoff: exponential growth from
// BaseBackoff capped at MaxBackoff, with +/-50% jitter to avoid synchronized
// retries across concurrent requests.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	base := float64(d.opts.BaseBackoff)
	max := float64(d.opts.MaxBackoff)
	dur := base * math.Pow(2, float64(attempt-1))
	if dur > max {
		dur = max
	}
	jitter := 0.5 + rand.Float64()
	return time.Duration(dur * jitter)
}

// readAndDrain consumes and closes a failed attempt's response body so the
// connection can be reused, returning the body bytes and header for
// RecordOutcome's cooldown-hint parsing.
func readAndDrain(resp *http.Response) ([]byte, http.Header) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return body, resp.Header
}
