package antigravity

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"

	"gcli2api-go/internal/config"
	"gcli2api-go/internal/credential"
	"gcli2api-go/internal/oauth"
	"gcli2api-go/internal/streaming"
	"gcli2api-go/internal/upstream"
)

// Provider implements upstream.Provider for the Antigravity backend.
//
// Antigravity is always called streaming upstream (spec §4.4): Generate
// issues a Stream call and reconstructs a complete JSON body from the SSE
// response via streaming.ReconstructFromSSE, rather than hitting a
// non-streaming endpoint directly. Google's streaming-endpoint quotas are
// materially more permissive, and the client never observes the
// difference.
type Provider struct {
	cfg        *config.Config
	baseClient *Client
	cacheMu    sync.RWMutex
	cache      map[string]*Client
}

// NewProvider creates the Antigravity provider.
func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		cfg:        cfg,
		baseClient: New(cfg).WithCaller("upstream"),
		cache:      make(map[string]*Client),
	}
}

func (p *Provider) Name() string { return "antigravity" }

func (p *Provider) SupportsModel(baseModel string) bool {
	if baseModel == "" {
		return false
	}
	lower := strings.ToLower(baseModel)
	for _, m := range knownModels {
		if strings.EqualFold(m, baseModel) {
			return true
		}
	}
	return strings.HasPrefix(lower, "gemini-")
}

func (p *Provider) Stream(ctx upstream.RequestContext) upstream.ProviderResponse {
	client := p.clientFor(ctx.Credential)
	if ctx.Ctx == nil {
		ctx.Ctx = context.Background()
	}
	reqCtx := upstream.WithHeaderOverrides(ctx.Ctx, ctx.HeaderOverrides)
	resp, err := client.Stream(reqCtx, ctx.Body)
	return upstream.ProviderResponse{Resp: resp, UsedModel: ctx.BaseModel, Err: err, Credential: ctx.Credential}
}

// Generate always issues a streaming upstream call and reconstructs a
// single complete JSON body from it, per spec §4.4's auto-stream-conversion
// requirement: Antigravity's non-streaming endpoint is never used for chat
// traffic.
func (p *Provider) Generate(ctx upstream.RequestContext) upstream.ProviderResponse {
	client := p.clientFor(ctx.Credential)
	if ctx.Ctx == nil {
		ctx.Ctx = context.Background()
	}
	reqCtx := upstream.WithHeaderOverrides(ctx.Ctx, ctx.HeaderOverrides)

	resp, err := client.Stream(reqCtx, ctx.Body)
	if err != nil {
		return upstream.ProviderResponse{Err: err, UsedModel: ctx.BaseModel, Credential: ctx.Credential}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return upstream.ProviderResponse{
			Resp:       &http.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: io.NopCloser(bytes.NewReader(body))},
			UsedModel:  ctx.BaseModel,
			Credential: ctx.Credential,
		}
	}

	collapsed, err := streaming.ReconstructFromSSE(reqCtx, resp.Body)
	if err != nil {
		return upstream.ProviderResponse{Err: err, UsedModel: ctx.BaseModel, Credential: ctx.Credential}
	}

	synthesized := &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(collapsed)),
	}
	return upstream.ProviderResponse{Resp: synthesized, UsedModel: ctx.BaseModel, Credential: ctx.Credential}
}

func (p *Provider) ListModels(ctx upstream.RequestContext) upstream.ProviderListResponse {
	client := p.clientFor(ctx.Credential)
	if ctx.Ctx == nil {
		ctx.Ctx = context.Background()
	}
	models, err := client.ListModels(ctx.Ctx, ctx.ProjectID)
	return upstream.ProviderListResponse{Models: models, Err: err, Credential: ctx.Credential}
}

func (p *Provider) clientFor(cred *credential.Credential) *Client {
	if cred == nil || cred.ID == "" {
		return p.baseClient
	}
	p.cacheMu.RLock()
	if c, ok := p.cache[cred.ID]; ok {
		p.cacheMu.RUnlock()
		return c
	}
	p.cacheMu.RUnlock()

	oc := &oauth.Credentials{
		AccessToken: cred.AccessToken,
		ProjectID:   cred.ProjectID,
	}
	c := NewWithCredential(p.cfg, oc).WithCaller("upstream")
	p.cacheMu.Lock()
	p.cache[cred.ID] = c
	p.cacheMu.Unlock()
	return c
}

// Invalidate drops a cached client for a credential id, forcing rebuild on
// next use (e.g. after a 401/403 from this backend).
func (p *Provider) Invalidate(credID string) {
	if credID == "" {
		return
	}
	p.cacheMu.Lock()
	delete(p.cache, credID)
	p.cacheMu.Unlock()
}
