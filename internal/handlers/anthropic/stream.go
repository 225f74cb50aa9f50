package anthropic

import (
	"bufio"
	"net/http"

	"github.com/gin-gonic/gin"

	"gcli2api-go/internal/credential"
	common "gcli2api-go/internal/handlers/common"
	logx "gcli2api-go/internal/logging"
	mw "gcli2api-go/internal/middleware"
	tr "gcli2api-go/internal/translator"
	upstream "gcli2api-go/internal/upstream"
)

// streamMessage performs a streaming /v1/messages call, translating the
// upstream Gemini SSE stream into Anthropic-shaped SSE events via
// translator.GeminiToAnthropicStream before relaying them to the client.
// Returns (success, *messageError).
func (h *Handler) streamMessage(c *gin.Context, req *messageRequestContext, usedCred **credential.Credential) (bool, *messageError) {
	baseCtx := upstream.WithHeaderOverrides(c.Request.Context(), c.Request.Header)
	ctxStream, cancelStream := common.WithUpstreamTimeout(baseCtx, true)
	defer cancelStream()

	resp, usedModel, err := h.tryStreamWithFallback(ctxStream, usedCred, req.baseModel, req.gemReq)
	if err != nil {
		return false, newMessageError(http.StatusBadGateway, err.Error(), "api_error")
	}
	if resp != nil && resp.StatusCode >= 400 {
		body, _ := upstream.ReadAll(resp)
		if cred := *usedCred; cred != nil {
			common.MarkCredentialFailure(h.credMgr, h.router, cred, "upstream_stream_error", resp.StatusCode)
		}
		return false, newMessageErrorWithBody(http.StatusBadGateway, "upstream error", "api_error", body)
	}

	logx.WithReq(c, map[string]interface{}{
		"upstream":        "gemini",
		"upstream_model":  usedModel,
		"upstream_status": resp.StatusCode,
		"upstream_stream": true,
	}).Info("upstream_connected")

	path := c.FullPath()
	if path == "" {
		path = c.Request.URL.Path
	}
	if usedModel != "" && usedModel != req.baseModel {
		mw.RecordFallback("anthropic", path, req.baseModel, usedModel)
	}

	w, fl := common.PrepareSSE(c)
	defer resp.Body.Close()

	translated, err := tr.GeminiToAnthropicStream(ctxStream, req.model, resp.Body)
	if err != nil {
		return false, newMessageError(http.StatusBadGateway, err.Error(), "stream_error")
	}

	scanner := bufio.NewScanner(translated)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lineCount := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		w.Write(line)
		w.Write([]byte("\n"))
		if len(line) == 0 {
			fl.Flush()
		}
		lineCount++
	}
	fl.Flush()

	mw.RecordSSELines("anthropic", path, lineCount)
	if cred := *usedCred; cred != nil {
		common.MarkCredentialSuccess(h.credMgr, h.router, cred, http.StatusOK)
	}
	return true, nil
}
