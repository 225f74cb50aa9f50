package anthropic

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/pkoukk/tiktoken-go"
	"github.com/tidwall/gjson"

	common "gcli2api-go/internal/handlers/common"
)

var (
	tiktokenOnce sync.Once
	tiktokenEnc  *tiktoken.Tiktoken
)

// encoding lazily initializes the shared cl100k_base encoder. A nil return
// means local estimation is unavailable; estimateTokens falls back to a
// character-count heuristic in that case rather than failing the request.
func encoding() *tiktoken.Tiktoken {
	tiktokenOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			tiktokenEnc = enc
		}
	})
	return tiktokenEnc
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := encoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	// Heuristic fallback: ~4 characters per token, the commonly cited
	// approximation for English prose with BPE tokenizers.
	return (len(text) + 3) / 4
}

// CountTokens handles POST /v1/messages/count_tokens with a purely local
// estimate (spec §6: "never consumes upstream quota"), unlike
// gemini.Handler.CountTokens which proxies the call upstream.
func (h *Handler) CountTokens(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		common.AbortWithError(c, http.StatusBadRequest, "invalid_request_error", "invalid json")
		return
	}

	rawJSON, _ := json.Marshal(raw)
	total := 0

	if sys := gjson.GetBytes(rawJSON, "system"); sys.Exists() {
		if sys.IsArray() {
			for _, block := range sys.Array() {
				total += estimateTokens(block.Get("text").String())
			}
		} else {
			total += estimateTokens(sys.String())
		}
	}

	for _, msg := range gjson.GetBytes(rawJSON, "messages").Array() {
		content := msg.Get("content")
		if content.IsArray() {
			for _, block := range content.Array() {
				switch block.Get("type").String() {
				case "text":
					total += estimateTokens(block.Get("text").String())
				case "tool_use":
					total += estimateTokens(block.Get("input").Raw)
				case "tool_result":
					total += estimateTokens(block.Get("content").String())
				}
			}
		} else {
			total += estimateTokens(content.String())
		}
		total += 4 // per-message role/framing overhead, mirroring OpenAI's chat-format estimation convention
	}

	for _, t := range gjson.GetBytes(rawJSON, "tools").Array() {
		total += estimateTokens(t.Get("name").String())
		total += estimateTokens(t.Get("description").String())
		total += estimateTokens(t.Get("input_schema").Raw)
	}

	c.JSON(http.StatusOK, gin.H{"input_tokens": total})
}
