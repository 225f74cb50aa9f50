package server

import (
	"gcli2api-go/internal/config"
	"gcli2api-go/internal/dispatch"
	common "gcli2api-go/internal/handlers/common"
	nh "gcli2api-go/internal/handlers/ndjson"
	oh "gcli2api-go/internal/handlers/openai"
	mw "gcli2api-go/internal/middleware"
	"gcli2api-go/internal/routing"
	route "gcli2api-go/internal/upstream/strategy"
	"github.com/gin-gonic/gin"
)

// RegisterOpenAIRoutes mounts OpenAI-compatible endpoints under the given router group.
// It mirrors the original routes previously defined inline in builder.go, without
// changing any external paths or auth behavior.
func RegisterOpenAIRoutes(root *gin.RouterGroup, cfg *config.Config, deps Dependencies, sharedRouter *route.Strategy) *oh.Handler {
	// Prefer multi-key auth when file config provides api_keys; fallback to single RequiredKey
	var openaiAuth gin.HandlerFunc
	if cm := config.GetConfigManager(); cm != nil {
		if fc := cm.GetConfig(); fc != nil && len(fc.APIKeys) > 0 {
			openaiAuth = mw.MultiKeyAuth(fc.APIKeys)
		}
	}
	if openaiAuth == nil {
		openaiAuth = mw.UnifiedAuth(mw.AuthConfig{RequiredKey: cfg.Upstream.OpenAIKey})
	}

	providers := buildProvidersFromConfig(cfg)
	oa := oh.NewWithStrategy(cfg, deps.CredentialManager, deps.UsageStats, deps.Storage, providers, sharedRouter)

	// routingTable resolves a client-facing model alias to its configured
	// (backend, target_model) fallback chain (spec §4.4); dispatcher walks
	// that chain with credential.Manager's per-model cooldown selection
	// (spec §4.1) instead of the legacy single-backend Strategy.Pick path.
	routingTable := routing.NewTable()
	if deps.ModelRouting != nil && deps.ModelRouting.Table != nil {
		routingTable = deps.ModelRouting.Table
	}
	dispatcher := dispatch.New(deps.CredentialManager, dispatch.NewManagerCaller(providers, common.ProjectIDFor(cfg)), dispatch.DefaultOptions())
	oa.SetDispatch(dispatcher, routingTable)

	v1 := root.Group("/v1")
	v1.Use(openaiAuth)

	// Health/metrics are registered in builder.go

	// OpenAI-compatible endpoints
	v1.GET("/models", oa.ListModels)
	v1.GET("/models/:id", oa.GetModel)
	v1.POST("/chat/completions", oa.ChatCompletions)
	v1.POST("/completions", oa.Completions)
	v1.POST("/responses", oa.Responses)
	v1.POST("/images/generations", oa.ImagesGenerations)

	// Anthropic Messages dialect (spec §6) shares this same bearer-auth'd
	// /v1 group, provider set, and fallback dispatcher.
	RegisterAnthropicRoutes(v1, cfg, deps, providers, sharedRouter, dispatcher, routingTable)

	// NDJSON bridge (spec §4.5/§6) lives at top-level /chat-stream, not under
	// /v1, but shares the same bearer auth and fallback dispatcher.
	ndjsonHandler := nh.New(cfg, dispatcher, routingTable)
	root.POST("/chat-stream", openaiAuth, ndjsonHandler.ChatStream)

	return oa
}
