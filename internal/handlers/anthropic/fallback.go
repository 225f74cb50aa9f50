package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"gcli2api-go/internal/credential"
	common "gcli2api-go/internal/handlers/common"
	logx "gcli2api-go/internal/logging"
	"gcli2api-go/internal/models"
	upstream "gcli2api-go/internal/upstream"
	"github.com/sirupsen/logrus"
)

func (h *Handler) logUpstreamEvent(level logrus.Level, msg string, base, attempt string, cred *credential.Credential, status int, err error) {
	fields := logrus.Fields{
		"component":     "anthropic_handler",
		"base_model":    base,
		"attempt_model": attempt,
		"status":        status,
		"fallback":      attempt != "" && base != "" && attempt != base,
	}
	if cred != nil {
		fields["cred_id"] = cred.ID
	}
	fields["error_kind"] = logx.ErrorKind(status, err != nil)
	entry := logrus.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Log(level, msg)
}

func (h *Handler) currentProject(cur *credential.Credential) string {
	if cur != nil && strings.TrimSpace(cur.ProjectID) != "" {
		return strings.TrimSpace(cur.ProjectID)
	}
	return strings.TrimSpace(h.cfg.GoogleProjID)
}

// tryGenerateWithFallback mirrors openai.tryGenerateWithFallback: once
// SetDispatch has wired a dispatcher/routing table it walks the configured
// fallback chain via dispatch.Dispatcher.Execute; otherwise it falls back to
// the legacy per-model-list ProviderFor+TryWithRotation walk.
func (h *Handler) tryGenerateWithFallback(ctx context.Context, usedCred **credential.Credential, baseModel string, gemReq map[string]any) (*http.Response, string, error) {
	if h.dispatcher != nil && h.routingTable != nil {
		return h.dispatchFallback(ctx, usedCred, baseModel, gemReq, false)
	}
	return h.legacyFallback(ctx, usedCred, baseModel, gemReq, false)
}

// tryStreamWithFallback is the streaming counterpart of tryGenerateWithFallback.
func (h *Handler) tryStreamWithFallback(ctx context.Context, usedCred **credential.Credential, baseModel string, gemReq map[string]any) (*http.Response, string, error) {
	if h.dispatcher != nil && h.routingTable != nil {
		return h.dispatchFallback(ctx, usedCred, baseModel, gemReq, true)
	}
	return h.legacyFallback(ctx, usedCred, baseModel, gemReq, true)
}

// dispatchFallback hands baseModel's resolved fallback chain to the shared
// dispatcher, the same integration openai.Handler.dispatchFallback uses.
func (h *Handler) dispatchFallback(ctx context.Context, usedCred **credential.Credential, baseModel string, gemReq map[string]any, stream bool) (*http.Response, string, error) {
	result, err := common.FallbackDispatch(ctx, h.dispatcher, h.routingTable, credential.KindStandard, baseModel, gemReq, upstream.HeaderOverrides(ctx), stream)
	if err != nil {
		h.logUpstreamEvent(logrus.WarnLevel, "dispatch fallback exhausted", baseModel, "", nil, 0, err)
		return nil, baseModel, err
	}
	if usedCred != nil && result.CredID != "" {
		if cred, ok := h.credMgr.GetCredentialByID(result.CredID); ok {
			*usedCred = cred
		}
	}
	h.logUpstreamEvent(logrus.InfoLevel, "dispatch fallback success", baseModel, result.UsedModel, nil, result.Response.StatusCode, nil)
	return result.Response, result.UsedModel, nil
}

func (h *Handler) legacyFallback(ctx context.Context, usedCred **credential.Credential, baseModel string, gemReq map[string]any, stream bool) (*http.Response, string, error) {
	bases := models.FallbackBases(baseModel)
	var lastErr error
	var lastResp *http.Response
	headerOverrides := upstream.HeaderOverrides(ctx)
	for _, attempt := range bases {
		provider := h.providers.ProviderFor(models.BaseFromFeature(attempt))
		if provider == nil {
			lastErr = fmt.Errorf("no upstream provider available for %s", attempt)
			continue
		}
		do := func(cur *credential.Credential) (*http.Response, error) {
			project := h.currentProject(cur)
			payload := map[string]any{"model": attempt, "project": project, "request": gemReq}
			body, _ := json.Marshal(payload)
			reqCtx := upstream.RequestContext{Ctx: ctx, Credential: cur, BaseModel: attempt, ProjectID: project, Body: body, HeaderOverrides: headerOverrides}
			if stream {
				res := provider.Stream(reqCtx)
				return res.Resp, res.Err
			}
			res := provider.Generate(reqCtx)
			return res.Resp, res.Err
		}
		resp, cred, err := upstream.TryWithRotation(ctx, h.credMgr, h.router, nil, upstream.RotationOptions{MaxRotations: 0, RotateOn5xx: true}, do)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		h.logUpstreamEvent(logrus.DebugLevel, "upstream attempt", baseModel, attempt, cred, status, err)
		if err == nil && resp != nil && resp.StatusCode < 400 {
			h.logUpstreamEvent(logrus.InfoLevel, "upstream success", baseModel, attempt, cred, resp.StatusCode, nil)
			if usedCred != nil {
				*usedCred = cred
			}
			return resp, attempt, nil
		}
		if resp != nil {
			lastResp = resp
		}
		lastErr = err
		h.logUpstreamEvent(logrus.WarnLevel, "upstream failed", baseModel, attempt, cred, status, err)
	}
	return lastResp, baseModel, lastErr
}
