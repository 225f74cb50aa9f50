package server

import (
	"gcli2api-go/internal/config"
	"gcli2api-go/internal/dispatch"
	ah "gcli2api-go/internal/handlers/anthropic"
	"gcli2api-go/internal/routing"
	upstream "gcli2api-go/internal/upstream"
	route "gcli2api-go/internal/upstream/strategy"
	"github.com/gin-gonic/gin"
)

// RegisterAnthropicRoutes mounts the Anthropic Messages dialect (spec §6)
// under the given router group, sharing auth, providers, routing strategy,
// and fallback dispatcher with RegisterOpenAIRoutes.
func RegisterAnthropicRoutes(v1 *gin.RouterGroup, cfg *config.Config, deps Dependencies, providers *upstream.Manager, sharedRouter *route.Strategy, dispatcher *dispatch.Dispatcher, routingTable *routing.Table) *ah.Handler {
	handler := ah.NewWithStrategy(cfg, deps.CredentialManager, deps.UsageStats, deps.Storage, providers, sharedRouter)
	if dispatcher != nil && routingTable != nil {
		handler.SetDispatch(dispatcher, routingTable)
	}

	v1.POST("/messages", handler.Messages)
	v1.POST("/messages/count_tokens", handler.CountTokens)

	return handler
}
