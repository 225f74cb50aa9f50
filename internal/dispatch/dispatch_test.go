package dispatch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"gcli2api-go/internal/credential"

	"github.com/stretchr/testify/require"
)

// memSource is a minimal credential.CredentialSource that hands back a fixed
// in-memory credential set, letting dispatch tests build a real
// *credential.Manager without touching the filesystem.
type memSource struct {
	creds []*credential.Credential
}

func (s *memSource) Name() string { return "mem" }

func (s *memSource) Load(ctx context.Context) ([]*credential.Credential, error) {
	return s.creds, nil
}

func newTestDispatchManager(t *testing.T, creds ...*credential.Credential) *credential.Manager {
	t.Helper()
	mgr := credential.NewManager(credential.Options{Sources: []credential.CredentialSource{&memSource{creds: creds}}})
	require.NoError(t, mgr.LoadCredentials())
	return mgr
}

func resp(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

// scriptedCaller returns one scripted (response, error) pair per call, in
// order, regardless of which target/credential is asked.
type scriptedCaller struct {
	mu      sync.Mutex
	script  []scriptedCall
	callLog []Target
}

type scriptedCall struct {
	resp *http.Response
	err  error
}

func (c *scriptedCaller) Call(ctx context.Context, cred *credential.Credential, target Target, req AttemptInput) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callLog = append(c.callLog, target)
	if len(c.script) == 0 {
		return resp(500, "exhausted script"), nil
	}
	next := c.script[0]
	c.script = c.script[1:]
	return next.resp, next.err
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.MaxWaitForCooldown = 10 * time.Millisecond
	opts.BaseBackoff = time.Millisecond
	opts.MaxBackoff = 5 * time.Millisecond
	return opts
}

func TestExecuteSucceedsOnFirstAttempt(t *testing.T) {
	mgr := newTestDispatchManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	caller := &scriptedCaller{script: []scriptedCall{{resp: resp(200, "ok")}}}
	d := New(mgr, caller, testOptions())

	chain := Chain{{Backend: "gemini", Model: "gemini-3-pro"}}
	result, err := d.Execute(context.Background(), chain, credential.KindStandard, AttemptInput{})
	require.NoError(t, err)
	require.Equal(t, 200, result.Response.StatusCode)
	require.Equal(t, "a", result.CredID)
	require.Len(t, result.Attempts, 1)
}

func TestExecuteRetriesSameCredentialOn5xxThenSucceeds(t *testing.T) {
	mgr := newTestDispatchManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	caller := &scriptedCaller{script: []scriptedCall{
		{resp: resp(503, "busy")},
		{resp: resp(200, "ok")},
	}}
	d := New(mgr, caller, testOptions())

	chain := Chain{{Backend: "gemini", Model: "gemini-3-pro"}}
	result, err := d.Execute(context.Background(), chain, credential.KindStandard, AttemptInput{})
	require.NoError(t, err)
	require.Equal(t, 200, result.Response.StatusCode)
	require.Len(t, result.Attempts, 2)
	require.Equal(t, "gemini", caller.callLog[0].Backend)
	require.Equal(t, "a", result.CredID)
}

func TestExecuteRotatesCredentialOn429(t *testing.T) {
	mgr := newTestDispatchManager(t,
		&credential.Credential{ID: "a", Kind: credential.KindStandard},
		&credential.Credential{ID: "b", Kind: credential.KindStandard, LastSuccess: time.Now()},
	)
	caller := &scriptedCaller{script: []scriptedCall{
		{resp: resp(429, "rate limited")},
		{resp: resp(200, "ok")},
	}}
	d := New(mgr, caller, testOptions())

	chain := Chain{{Backend: "gemini", Model: "gemini-3-pro"}}
	result, err := d.Execute(context.Background(), chain, credential.KindStandard, AttemptInput{})
	require.NoError(t, err)
	require.Equal(t, 200, result.Response.StatusCode)
	require.Equal(t, "b", result.CredID, "the 429'd credential should be skipped on the retry")
}

func TestExecuteAdvancesChainOn400(t *testing.T) {
	mgr := newTestDispatchManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	caller := &scriptedCaller{script: []scriptedCall{
		{resp: resp(400, "bad request")},
		{resp: resp(200, "ok")},
	}}
	d := New(mgr, caller, testOptions())

	chain := Chain{
		{Backend: "gemini", Model: "gemini-3-pro"},
		{Backend: "gemini", Model: "gemini-3-flash"},
	}
	result, err := d.Execute(context.Background(), chain, credential.KindStandard, AttemptInput{})
	require.NoError(t, err)
	require.Equal(t, 200, result.Response.StatusCode)
	require.Equal(t, "gemini-3-flash", result.UsedTarget.Model)
	require.Len(t, caller.callLog, 2)
}

func TestExecuteReturnsPoolExhaustedWhenChainFullyFails(t *testing.T) {
	mgr := newTestDispatchManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	caller := &scriptedCaller{script: []scriptedCall{
		{resp: resp(400, "bad request")},
	}}
	d := New(mgr, caller, testOptions())

	chain := Chain{{Backend: "gemini", Model: "gemini-3-pro"}}
	result, err := d.Execute(context.Background(), chain, credential.KindStandard, AttemptInput{})
	require.Error(t, err)
	require.Nil(t, result)
}

func TestExecuteRejectsEmptyChain(t *testing.T) {
	mgr := newTestDispatchManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	d := New(mgr, &scriptedCaller{}, testOptions())

	_, err := d.Execute(context.Background(), Chain{}, credential.KindStandard, AttemptInput{})
	require.Error(t, err)
}

func TestExecuteSurfacesTransportErrorAfterRetryBudget(t *testing.T) {
	mgr := newTestDispatchManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	transportErr := errors.New("connection reset")
	opts := testOptions()
	opts.MaxAttemptsPerTarget = 2
	caller := &scriptedCaller{script: []scriptedCall{
		{err: transportErr},
		{err: transportErr},
	}}
	d := New(mgr, caller, opts)

	chain := Chain{{Backend: "gemini", Model: "gemini-3-pro"}}
	result, err := d.Execute(context.Background(), chain, credential.KindStandard, AttemptInput{})
	require.Error(t, err)
	require.Nil(t, result)
}
