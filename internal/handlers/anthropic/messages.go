package anthropic

import (
	"github.com/gin-gonic/gin"

	"gcli2api-go/internal/credential"
)

// Messages handles POST /v1/messages by translating the request into the
// shared Gemini-shaped upstream envelope and translating the response back
// into the Anthropic Messages shape, mirroring openai.ChatCompletions'
// request/dispatch/stream-or-complete split.
func (h *Handler) Messages(c *gin.Context) {
	var modelRecorded string
	var success bool
	var promptTokens, completionTokens int64
	defer func() {
		h.recordUsage(c, modelRecorded, success, promptTokens, completionTokens)
	}()

	req, errResp := buildMessageRequest(c)
	if errResp != nil {
		errResp.write(c)
		return
	}
	modelRecorded = req.modelID()

	var usedCred *credential.Credential
	if cred := h.resolveClient(c); cred != nil {
		usedCred = cred
	}

	if req.isStreaming() {
		ok, err := h.streamMessage(c, req, &usedCred)
		success = ok
		if err != nil {
			err.write(c)
		}
		return
	}

	ok, promptT, completionT, err := h.completeMessage(c, req, &usedCred)
	success = ok
	promptTokens, completionTokens = promptT, completionT
	if err != nil {
		err.write(c)
	}
}
