package anthropic

import (
	"encoding/json"
	"fmt"
	"net/http"

	"gcli2api-go/internal/credential"
	"gcli2api-go/internal/models"
	tr "gcli2api-go/internal/translator"
	upstream "gcli2api-go/internal/upstream"
	"github.com/gin-gonic/gin"
)

// messageRequestContext carries one /v1/messages request through parsing,
// translation, and dispatch, mirroring openai.chatRequestContext.
type messageRequestContext struct {
	raw       map[string]any
	gemReq    map[string]any
	model     string
	baseModel string
	stream    bool
}

func (ctx *messageRequestContext) isStreaming() bool { return ctx.stream }
func (ctx *messageRequestContext) modelID() string    { return ctx.model }

func buildMessageRequest(c *gin.Context) (*messageRequestContext, *messageError) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		return nil, newMessageError(http.StatusBadRequest, fmt.Sprintf("invalid json: %v", err), "invalid_request_error")
	}

	model, _ := raw["model"].(string)
	if model == "" {
		return nil, newMessageError(http.StatusBadRequest, "missing required field: model", "invalid_request_error")
	}
	if _, ok := raw["messages"]; !ok {
		return nil, newMessageError(http.StatusBadRequest, "missing required field: messages", "invalid_request_error")
	}
	stream, _ := raw["stream"].(bool)
	baseModel := models.BaseFromFeature(model)

	c.Set("model", model)
	c.Set("base_model", baseModel)

	rawJSON, _ := json.Marshal(raw)
	reqJSON := tr.AnthropicToGeminiRequest(baseModel, rawJSON, stream)

	var gemReq map[string]any
	_ = json.Unmarshal(reqJSON, &gemReq)

	return &messageRequestContext{
		raw:       raw,
		gemReq:    gemReq,
		model:     model,
		baseModel: baseModel,
		stream:    stream,
	}, nil
}

func (h *Handler) resolveClient(c *gin.Context) *credential.Credential {
	if h.router == nil {
		return nil
	}
	ctxWith := upstream.WithHeaderOverrides(c.Request.Context(), c.Request.Header)
	cred, info := h.router.PickWithInfo(ctxWith, upstream.HeaderOverrides(ctxWith))
	if cred != nil && h.cfg.RoutingDebugHeaders {
		if info != nil {
			c.Writer.Header().Set("X-Routing-Credential", info.CredID)
			c.Writer.Header().Set("X-Routing-Reason", info.Reason)
		} else {
			c.Writer.Header().Set("X-Routing-Credential", cred.ID)
		}
	}
	return cred
}
