// Package antigravity speaks the Antigravity backend's wire dialect: the
// same Gemini Code-Assist-shaped request/response envelope as
// internal/upstream/gemini, but reached through its own endpoint, its own
// User-Agent/requestId/requestType header set, and always called streaming
// upstream regardless of what the client asked for (spec §4.4).
package antigravity

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"time"

	"gcli2api-go/internal/config"
	"gcli2api-go/internal/constants"
	mw "gcli2api-go/internal/middleware"
	"gcli2api-go/internal/oauth"
	"gcli2api-go/internal/upstream"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

func modelFromPayload(payload []byte) string {
	return gjson.GetBytes(payload, "model").String()
}

var _ upstream.Backend = (*Client)(nil)

// Client is the Antigravity backend's wire-level HTTP client, built the same
// way gemini.Client is (shared transport construction, token/caller idiom),
// but pointed at config.AntigravityEndpoint and stamped with the distinct
// Antigravity header set spec §4.4 requires.
type Client struct {
	cfg         *config.Config
	cli         *http.Client
	caller      string
	credentials *oauth.Credentials
	token       string
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func getProxyFunc(proxyURL string) func(*http.Request) (*url.URL, error) {
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			return http.ProxyURL(parsed)
		}
	}
	return http.ProxyFromEnvironment
}

// New builds a Client without a bound credential.
func New(cfg *config.Config) *Client {
	dialTO := durationOrDefault(cfg.DialTimeoutSec, constants.DefaultDialTimeout)
	tlsTO := durationOrDefault(cfg.TLSHandshakeTimeoutSec, constants.DefaultTLSHandshakeTimeout)
	hdrTO := durationOrDefault(cfg.ResponseHeaderTimeoutSec, constants.DefaultResponseHeaderTimeout)
	expTO := durationOrDefault(cfg.ExpectContinueTimeoutSec, constants.DefaultExpectContinueTimeout)

	tr := &http.Transport{
		Proxy: getProxyFunc(cfg.ProxyURL),
		DialContext: (&net.Dialer{
			Timeout:   dialTO,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   tlsTO,
		ResponseHeaderTimeout: hdrTO,
		ExpectContinueTimeout: expTO,
		MaxIdleConns:          constants.BaseMaxIdleConns,
		MaxIdleConnsPerHost:   constants.BaseMaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{cfg: cfg, cli: &http.Client{Transport: tr, Timeout: 0}}
}

// NewWithCredential builds a Client bound to creds.
func NewWithCredential(cfg *config.Config, creds *oauth.Credentials) *Client {
	c := New(cfg)
	c.credentials = creds
	if creds != nil && creds.AccessToken != "" {
		c.token = creds.AccessToken
	}
	return c
}

func (c *Client) WithCaller(server string) *Client { c.caller = server; return c }

func (c *Client) getToken() string {
	if c.token != "" {
		return c.token
	}
	if c.credentials != nil && c.credentials.AccessToken != "" {
		return c.credentials.AccessToken
	}
	return c.cfg.GoogleToken
}

func antigravityUserAgent() string {
	return "antigravity/1.0.0 " + runtime.GOOS + "/" + runtime.GOARCH
}

// requestTypeForModel derives the `requestType` header spec §4.4 requires:
// "agent" for ordinary chat/tool-use models, "image_gen" for image models.
func requestTypeForModel(model string) string {
	if strings.Contains(strings.ToLower(model), "image") {
		return "image_gen"
	}
	return "agent"
}

func (c *Client) applyHeaders(req *http.Request, model string, bearer string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("User-Agent", antigravityUserAgent())
	req.Header.Set("requestId", "req-"+uuid.NewString())
	req.Header.Set("requestType", requestTypeForModel(model))
	if strings.Contains(req.URL.RawQuery, "alt=sse") {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}
}

func (c *Client) endpoint(action string) string {
	return strings.TrimRight(c.cfg.AntigravityEndpoint, "/") + "/v1internal:" + action
}

func getStatus(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func (c *Client) record(method string, dur time.Duration, status int, err error) {
	if c.caller != "" {
		mw.RecordUpstreamWithServer("antigravity", c.caller, dur, status, err != nil)
	} else {
		mw.RecordUpstream("antigravity", dur, status, err != nil)
	}
}

func (c *Client) post(ctx context.Context, useURL string, model string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, useURL, strings.NewReader(string(payload)))
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req, model, c.getToken())
	start := time.Now()
	resp, err := c.cli.Do(req)
	c.record(http.MethodPost, time.Since(start), getStatus(resp), err)
	return resp, err
}

// Generate sends a non-streaming request. Kept for interface symmetry with
// gemini.Client and for CountTokens-style callers; request handling always
// routes chat completions through Stream (spec §4.4's auto-stream-conversion
// requirement lives one layer up, in Provider.Generate).
func (c *Client) Generate(ctx context.Context, payload []byte) (*http.Response, error) {
	return c.post(ctx, c.endpoint("generateContent"), modelFromPayload(payload), payload)
}

// Stream sends a streaming request to Antigravity's
// v1internal:streamGenerateContent endpoint.
//
// IMPORTANT: caller MUST close resp.Body if resp is non-nil and err is nil.
func (c *Client) Stream(ctx context.Context, payload []byte) (*http.Response, error) {
	return c.post(ctx, c.endpoint("streamGenerateContent")+"?alt=sse", modelFromPayload(payload), payload)
}

// CountTokens sends a request to Antigravity's v1internal:countTokens endpoint.
func (c *Client) CountTokens(ctx context.Context, payload []byte) (*http.Response, error) {
	return c.post(ctx, c.endpoint("countTokens"), modelFromPayload(payload), payload)
}
