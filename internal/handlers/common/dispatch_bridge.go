package common

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"gcli2api-go/internal/config"
	"gcli2api-go/internal/credential"
	"gcli2api-go/internal/dispatch"
	"gcli2api-go/internal/routing"
)

// DispatchResult is what FallbackDispatch returns: the winning HTTP response
// plus which backend/model actually served it, mirroring the (resp,
// usedModel, err) shape the dialect handlers previously got back from their
// own ProviderFor+TryWithRotation fallback walk.
type DispatchResult struct {
	Response  *http.Response
	Backend   string
	UsedModel string
	CredID    string
}

// ProjectIDFor builds the per-credential project resolver every
// dispatch.ManagerCaller needs: a credential's own bound project if it has
// one, else the process-wide default from configuration.
func ProjectIDFor(cfg *config.Config) func(cred *credential.Credential) string {
	return func(cred *credential.Credential) string {
		if cred != nil && strings.TrimSpace(cred.ProjectID) != "" {
			return strings.TrimSpace(cred.ProjectID)
		}
		if cfg != nil {
			return strings.TrimSpace(cfg.GoogleProjID)
		}
		return ""
	}
}

// FallbackDispatch resolves baseModel to its configured (backend,
// target_model) fallback chain via table and walks it with dispatcher,
// implementing spec §4.4's ordered rollover atop credential.Manager's
// per-model cooldown selection (spec §4.1) — the integration point that
// previously had no caller: ProviderFor+TryWithRotation saw a single
// backend and no cooldown awareness at all.
func FallbackDispatch(ctx context.Context, dispatcher *dispatch.Dispatcher, table *routing.Table, kind credential.Kind, baseModel string, requestBody map[string]any, headers http.Header, stream bool) (*DispatchResult, error) {
	chain, _, _ := table.Resolve(baseModel)
	body, _ := json.Marshal(requestBody)

	result, err := dispatcher.Execute(ctx, chain, kind, dispatch.AttemptInput{
		Body:    body,
		Headers: headers,
		Stream:  stream,
	})
	if err != nil {
		return nil, err
	}
	return &DispatchResult{
		Response:  result.Response,
		Backend:   result.UsedTarget.Backend,
		UsedModel: result.UsedTarget.Model,
		CredID:    result.CredID,
	}, nil
}
