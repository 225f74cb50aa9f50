package anthropic

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"gcli2api-go/internal/credential"
	common "gcli2api-go/internal/handlers/common"
	logx "gcli2api-go/internal/logging"
	mw "gcli2api-go/internal/middleware"
	tr "gcli2api-go/internal/translator"
	upstream "gcli2api-go/internal/upstream"
)

// completeMessage performs a non-streaming /v1/messages call and returns
// (success, promptTokens, completionTokens, *messageError).
func (h *Handler) completeMessage(c *gin.Context, req *messageRequestContext, usedCred **credential.Credential) (bool, int64, int64, *messageError) {
	ctx, cancel := common.WithUpstreamTimeout(c.Request.Context(), false)
	defer cancel()

	resp, usedModel, err := h.tryGenerateWithFallback(upstream.WithHeaderOverrides(ctx, c.Request.Header), usedCred, req.baseModel, req.gemReq)
	if err != nil {
		return false, 0, 0, newMessageError(http.StatusBadGateway, err.Error(), "api_error")
	}
	body, err := upstream.ReadAll(resp)
	if err != nil {
		return false, 0, 0, newMessageError(http.StatusBadGateway, err.Error(), "api_error")
	}
	if resp != nil && resp.StatusCode >= 400 {
		if cred := *usedCred; cred != nil {
			common.MarkCredentialFailure(h.credMgr, h.router, cred, "upstream_error", resp.StatusCode)
		}
		return false, 0, 0, newMessageErrorWithBody(http.StatusBadGateway, "upstream error", "api_error", body)
	}

	logx.WithReq(c, map[string]interface{}{
		"upstream":        "gemini",
		"upstream_model":  usedModel,
		"upstream_status": resp.StatusCode,
		"upstream_stream": false,
	}).Info("upstream_completed")

	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	if usedModel != "" && usedModel != req.baseModel {
		mw.RecordFallback("anthropic", path, req.baseModel, usedModel)
	}

	// The Gemini-shaped upstream envelope wraps the native response under
	// "response"; unwrap it before translating, matching how openai's
	// completeChat reads obj["response"].
	geminiBody := body
	if wrapped := gjson.GetBytes(body, "response"); wrapped.Exists() {
		geminiBody = []byte(wrapped.Raw)
	}

	anthropicBody, err := tr.GeminiToAnthropicResponse(c.Request.Context(), req.model, geminiBody)
	if err != nil {
		return false, 0, 0, newMessageError(http.StatusBadGateway, err.Error(), "api_error")
	}

	if cred := *usedCred; cred != nil {
		common.MarkCredentialSuccess(h.credMgr, h.router, cred, http.StatusOK)
	}

	promptTokens := gjson.GetBytes(anthropicBody, "usage.input_tokens").Int()
	completionTokens := gjson.GetBytes(anthropicBody, "usage.output_tokens").Int()

	c.Data(http.StatusOK, "application/json", anthropicBody)
	return true, promptTokens, completionTokens, nil
}
