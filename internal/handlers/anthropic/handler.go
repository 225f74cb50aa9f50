// Package anthropic implements the Anthropic Messages dialect surface
// (spec §6): POST /v1/messages and POST /v1/messages/count_tokens. Requests
// are translated into the shared Gemini-shaped upstream envelope via
// internal/translator's Anthropic<->Gemini transforms and dispatched through
// the same provider/fallback/credential-rotation machinery the OpenAI
// handler uses, mirroring internal/handlers/openai's Handler/fallback split.
package anthropic

import (
	"sync"

	"gcli2api-go/internal/config"
	"gcli2api-go/internal/credential"
	"gcli2api-go/internal/dispatch"
	"gcli2api-go/internal/routing"
	statstracker "gcli2api-go/internal/stats"
	store "gcli2api-go/internal/storage"
	upstream "gcli2api-go/internal/upstream"
	route "gcli2api-go/internal/upstream/strategy"
)

// Handler aggregates shared dependencies for the Anthropic-compatible endpoints.
type Handler struct {
	cfg        *config.Config
	credMgr    *credential.Manager
	usageStats *statstracker.UsageStats
	providers  *upstream.Manager
	store      store.Backend
	router     *route.Strategy
	cacheMu    sync.RWMutex

	// dispatcher/routingTable mirror openai.Handler's SetDispatch wiring:
	// once set, tryGenerateWithFallback/tryStreamWithFallback walk the
	// configured fallback chain through dispatch.Dispatcher.Execute instead
	// of the legacy single-backend ProviderFor+TryWithRotation path.
	dispatcher   *dispatch.Dispatcher
	routingTable *routing.Table
}

// SetDispatch wires the shared fallback dispatcher and model-routing table
// into the handler, mirroring openai.Handler.SetDispatch.
func (h *Handler) SetDispatch(dispatcher *dispatch.Dispatcher, table *routing.Table) {
	h.dispatcher = dispatcher
	h.routingTable = table
}

// NewWithStrategy constructs the Anthropic handler set sharing a routing
// strategy with the other dialect handlers, mirroring
// openai.NewWithStrategy.
func NewWithStrategy(cfg *config.Config, credMgr *credential.Manager, usage *statstracker.UsageStats, st store.Backend, providers *upstream.Manager, router *route.Strategy) *Handler {
	return &Handler{
		cfg:        cfg,
		credMgr:    credMgr,
		usageStats: usage,
		providers:  providers,
		store:      st,
		router:     router,
	}
}
