package anthropic

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"gcli2api-go/internal/models"
)

func (h *Handler) recordUsage(c *gin.Context, model string, success bool, promptTokens, completionTokens int64) {
	if h.usageStats == nil {
		return
	}
	apiKey := "anonymous"
	if v, ok := c.Get("api_key"); ok {
		if s, ok := v.(string); ok && s != "" {
			apiKey = s
		}
	}
	baseModel := strings.TrimSpace(model)
	if baseModel != "" {
		if base := models.BaseFromFeature(baseModel); base != "" {
			baseModel = base
		}
	}
	ctx := c.Request.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := h.usageStats.RecordRequest(ctx, apiKey, baseModel, success, promptTokens, completionTokens); err != nil {
		log.WithError(err).Debug("record usage failed")
	}
}
