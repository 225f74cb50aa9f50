package upstream

import (
	"context"
	"net/http"
)

// Backend is the common wire-level contract every concrete upstream client
// (gemini.Client, antigravity.Client, ...) satisfies. It generalizes the
// concrete methods gemini.Client exposed directly to handlers, so
// dispatch.Caller and Provider implementations can be written once against
// an interface instead of against one hardcoded client type.
type Backend interface {
	// Generate issues a single non-streaming call for payload.
	Generate(ctx context.Context, payload []byte) (*http.Response, error)
	// Stream issues a streaming call for payload.
	Stream(ctx context.Context, payload []byte) (*http.Response, error)
	// CountTokens issues a token-counting call for payload.
	CountTokens(ctx context.Context, payload []byte) (*http.Response, error)
	// ListModels enumerates models visible to the bound credential/project.
	ListModels(ctx context.Context, projectID string) ([]string, error)
}
