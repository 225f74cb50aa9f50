package ndjson

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gcli2api-go/internal/config"
	"gcli2api-go/internal/credential"
	"gcli2api-go/internal/dispatch"
	common "gcli2api-go/internal/handlers/common"
	"gcli2api-go/internal/models"
	"gcli2api-go/internal/routing"
	"gcli2api-go/internal/translator"
	upstream "gcli2api-go/internal/upstream"
)

// Handler serves the Augment-style NDJSON bridge (spec §4.5/§6), walking the
// same fallback dispatcher the OpenAI/Anthropic dialect handlers use and
// translating through internal/translator's existing OpenAI->Gemini path.
type Handler struct {
	cfg           *config.Config
	dispatcher    *dispatch.Dispatcher
	routingTable  *routing.Table
	conversations *ConversationStore
}

// New constructs the NDJSON bridge handler. dispatcher/table come from the
// same construction RegisterOpenAIRoutes builds for the other dialects; the
// dispatcher already owns its own credential.Manager reference, so Handler
// doesn't need a second one.
func New(cfg *config.Config, dispatcher *dispatch.Dispatcher, table *routing.Table) *Handler {
	return &Handler{
		cfg:           cfg,
		dispatcher:    dispatcher,
		routingTable:  table,
		conversations: NewConversationStore(),
	}
}

// ChatStream handles POST /chat-stream.
func (h *Handler) ChatStream(c *gin.Context) {
	var req ChatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.AbortWithError(c, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}

	model := req.Model
	if model == "" {
		if m, ok := h.conversations.SelectedModel(req.ConversationID); ok {
			model = m
		} else {
			model = models.DefaultBaseModels()[0]
		}
	}
	h.conversations.SetSelectedModel(req.ConversationID, model)

	openaiBody, err := buildOpenAIRequest(req, h.conversations)
	if err != nil {
		common.AbortWithError(c, http.StatusInternalServerError, "internal_error", "failed to build request")
		return
	}

	geminiBody := translator.TranslateRequest(translator.FormatOpenAI, translator.FormatGemini, model, openaiBody, true)

	ctx, cancel := context.WithTimeout(c.Request.Context(), 300*time.Second)
	defer cancel()
	ctx = upstream.WithHeaderOverrides(ctx, c.Request.Header)

	chain, _, ok := h.routingTable.Resolve(model)
	if !ok || len(chain) == 0 {
		chain = dispatch.Chain{{Backend: "gemini", Model: model}}
	}

	result, err := h.dispatcher.Execute(ctx, chain, credential.KindStandard, dispatch.AttemptInput{
		Body:    geminiBody,
		Headers: upstream.HeaderOverrides(ctx),
		Stream:  true,
	})
	if err != nil {
		common.AbortWithError(c, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}
	defer result.Response.Body.Close()

	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	if err := pumpNDJSON(c.Writer, result.Response.Body, req.ConversationID, model, h.cfg.ReturnThoughtsToFrontend, h.conversations); err != nil {
		_ = json.NewEncoder(c.Writer).Encode(OutputLine{Text: "", StopReason: StopReasonEndTurn})
	}
}
