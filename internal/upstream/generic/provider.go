// Package generic implements a minimally-translated upstream.Provider for
// sibling backends (Copilot-style endpoint, Kiro, AnyRouter) that a routing
// rule can name but that don't need a bespoke wire dialect: same Gemini
// Code-Assist-shaped JSON envelope in, bearer-token auth, a bare HTTP POST
// out. Antigravity and Code Assist keep their dedicated packages because
// they each need distinct headers or always-stream semantics; everything
// else fronts through here (spec glossary: "this core speaks to
// Antigravity-style backends natively and proxies others with minimal
// translation").
package generic

import (
	"context"
	"net/http"
	"strings"
	"time"

	mw "gcli2api-go/internal/middleware"
	"gcli2api-go/internal/upstream"
)

// Provider is a bearer-token HTTP pass-through for one named backend.
type Provider struct {
	name       string
	baseURL    string
	supportsFn func(model string) bool
	cli        *http.Client
	token      string
}

// New builds a generic Provider. supportsFn decides whether this provider
// claims a given base model when no routing rule names it explicitly; pass
// nil to never claim a model via the heuristic path (routing-rule-only
// backends, e.g. a rule that names "kiro-gateway" explicitly but which
// should never be picked by model-family fallback).
func New(name, baseURL, token string, supportsFn func(model string) bool) *Provider {
	return &Provider{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		supportsFn: supportsFn,
		cli:        &http.Client{Timeout: 120 * time.Second},
		token:      token,
	}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) SupportsModel(baseModel string) bool {
	if p.supportsFn == nil {
		return false
	}
	return p.supportsFn(baseModel)
}

func (p *Provider) do(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}
	start := time.Now()
	resp, err := p.cli.Do(req)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	mw.RecordUpstreamWithServer(p.name, "upstream", time.Since(start), status, err != nil)
	return resp, err
}

func (p *Provider) Stream(ctx upstream.RequestContext) upstream.ProviderResponse {
	if ctx.Ctx == nil {
		ctx.Ctx = context.Background()
	}
	resp, err := p.do(ctx.Ctx, "/v1internal:streamGenerateContent?alt=sse", ctx.Body)
	return upstream.ProviderResponse{Resp: resp, UsedModel: ctx.BaseModel, Err: err, Credential: ctx.Credential}
}

func (p *Provider) Generate(ctx upstream.RequestContext) upstream.ProviderResponse {
	if ctx.Ctx == nil {
		ctx.Ctx = context.Background()
	}
	resp, err := p.do(ctx.Ctx, "/v1internal:generateContent", ctx.Body)
	return upstream.ProviderResponse{Resp: resp, UsedModel: ctx.BaseModel, Err: err, Credential: ctx.Credential}
}

func (p *Provider) ListModels(ctx upstream.RequestContext) upstream.ProviderListResponse {
	return upstream.ProviderListResponse{Credential: ctx.Credential}
}

// Invalidate is a no-op: generic providers hold a single static bearer
// token rather than a per-credential client cache.
func (p *Provider) Invalidate(string) {}
