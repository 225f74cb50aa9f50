package antigravity

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gcli2api-go/internal/config"
	"gcli2api-go/internal/credential"
	"gcli2api-go/internal/upstream"
)

func TestProviderSupportsModel(t *testing.T) {
	p := NewProvider(&config.Config{})
	if !p.SupportsModel("gemini-3-pro") {
		t.Fatalf("expected gemini-* to be supported")
	}
	if !p.SupportsModel("claude-sonnet-4.5") {
		t.Fatalf("expected a known routed alias to be supported")
	}
	if p.SupportsModel("") {
		t.Fatalf("empty model should not be supported by a named backend")
	}
	if p.SupportsModel("unknown-model-xyz") {
		t.Fatalf("unrouted model should not be supported")
	}
}

// TestProviderGenerateCollapsesStreamedResponse proves spec §4.4's
// auto-stream-conversion rule: a non-streaming Generate call is served by
// issuing a streaming request upstream and reconstructing one JSON body from
// the SSE frames, never by hitting a non-streaming endpoint.
func TestProviderGenerateCollapsesStreamedResponse(t *testing.T) {
	var gotPath, gotRequestType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotRequestType = r.Header.Get("requestType")
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		io.WriteString(w, `data: {"candidates":[{"content":{"role":"model","parts":[{"text":"Hel"}]}}]}`+"\n\n")
		flusher.Flush()
		io.WriteString(w, `data: {"candidates":[{"content":{"role":"model","parts":[{"text":"lo"}]},"finishReason":"STOP"}]}`+"\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	cfg := &config.Config{AntigravityEndpoint: srv.URL}
	p := NewProvider(cfg)

	body := []byte(`{"model":"gemini-3-pro","contents":[]}`)
	resp := p.Generate(upstream.RequestContext{
		BaseModel: "gemini-3-pro",
		Body:      body,
	})
	if resp.Err != nil {
		t.Fatalf("Generate returned error: %v", resp.Err)
	}
	if resp.Resp == nil {
		t.Fatalf("expected a synthesized response")
	}
	defer resp.Resp.Body.Close()

	if !strings.Contains(gotPath, "streamGenerateContent") || !strings.Contains(gotPath, "alt=sse") {
		t.Fatalf("Generate should always call the streaming endpoint upstream, got path %q", gotPath)
	}
	if gotRequestType != "agent" {
		t.Fatalf("requestType want agent, got=%q", gotRequestType)
	}

	raw, err := io.ReadAll(resp.Resp.Body)
	if err != nil {
		t.Fatalf("reading synthesized body: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("synthesized body is not valid JSON: %v", err)
	}
	candidates := decoded["candidates"].([]any)
	candidate := candidates[0].(map[string]any)
	content := candidate["content"].(map[string]any)
	parts := content["parts"].([]any)
	part := parts[0].(map[string]any)
	if part["text"] != "Hello" {
		t.Fatalf("expected coalesced text %q, got %q", "Hello", part["text"])
	}
}

func TestProviderGeneratePassesThroughUpstreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`)
	}))
	defer srv.Close()

	cfg := &config.Config{AntigravityEndpoint: srv.URL}
	p := NewProvider(cfg)

	resp := p.Generate(upstream.RequestContext{BaseModel: "gemini-3-pro", Body: []byte(`{"model":"gemini-3-pro"}`)})
	if resp.Err != nil {
		t.Fatalf("unexpected error: %v", resp.Err)
	}
	if resp.Resp == nil || resp.Resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected the 429 status to pass through, got %+v", resp.Resp)
	}
}

func TestClientForCachesPerCredential(t *testing.T) {
	p := NewProvider(&config.Config{AntigravityEndpoint: "https://example.test"})
	cred := &credential.Credential{ID: "cred-1", AccessToken: "tok"}

	c1 := p.clientFor(cred)
	c2 := p.clientFor(cred)
	if c1 != c2 {
		t.Fatalf("expected the same client instance to be reused for a credential")
	}

	p.Invalidate("cred-1")
	c3 := p.clientFor(cred)
	if c3 == c1 {
		t.Fatalf("expected Invalidate to force a fresh client")
	}
}
