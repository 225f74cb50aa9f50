// Package routing loads the model-routing and backend-definition YAML
// files spec §3/§6 describes and resolves a client-facing model alias to
// the ordered (backend, target_model) fallback chain internal/dispatch
// walks.
package routing

import "gcli2api-go/internal/dispatch"

// BackendChainEntry names one (backend, target_model) hop in a routing
// rule, mirroring dispatch.Target one-to-one (kept as a distinct type so
// the YAML shape doesn't couple callers to the dispatch package's tags).
type BackendChainEntry struct {
	Backend     string `yaml:"backend"`
	TargetModel string `yaml:"target_model"`
}

// Rule is one model-routing rule, keyed by its lowercased alias in Table.
type Rule struct {
	Enabled     bool                `yaml:"enabled"`
	BackendChain []BackendChainEntry `yaml:"backend_chain"`
	FallbackOn  []string            `yaml:"fallback_on"`
}

// Chain converts the rule's YAML-shaped chain into a dispatch.Chain.
func (r Rule) Chain() dispatch.Chain {
	out := make(dispatch.Chain, 0, len(r.BackendChain))
	for _, e := range r.BackendChain {
		out = append(out, dispatch.Target{Backend: e.Backend, Model: e.TargetModel})
	}
	return out
}

// FallbackOnSet returns FallbackOn as a lookup set of lowercased symbolic
// conditions / stringified status codes.
func (r Rule) FallbackOnSet() map[string]struct{} {
	out := make(map[string]struct{}, len(r.FallbackOn))
	for _, v := range r.FallbackOn {
		out[v] = struct{}{}
	}
	return out
}

// BackendDef describes one backend's connection details, loaded from the
// backend-definitions YAML.
type BackendDef struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"` // "antigravity", "code_assist", or "generic" for minimally-translated sibling backends
	BaseURLs []string `yaml:"base_urls"`
	Disabled bool    `yaml:"disabled"`
}

// RoutingFile is the top-level shape of the model-routing YAML document.
type RoutingFile struct {
	Rules map[string]Rule `yaml:"rules"`
}

// BackendsFile is the top-level shape of the backend-definitions YAML
// document.
type BackendsFile struct {
	Backends []BackendDef `yaml:"backends"`
}
