package routing

import (
	"strings"
	"sync/atomic"

	"gcli2api-go/internal/dispatch"
)

// suffixStripPatterns are tried in order when a model alias has no direct
// rule match, per spec §3's "-thinking/-<date> suffix-stripping fallback".
var suffixStripPatterns = []string{
	"-thinking", "-high-thinking", "-low-thinking", "-nothinking", "-maxthinking",
	"-20241022", "-20250219", "-20250514",
}

// Table holds a loaded (Rules, Backends) pair and resolves model aliases
// against it; it is safe for concurrent use and swappable in place so a
// file-watcher reload never blocks readers (same technique as
// internal/config.ConfigManager for the main config file).
type Table struct {
	v atomic.Pointer[snapshot]
}

type snapshot struct {
	rules    map[string]Rule
	backends map[string]BackendDef
}

// NewTable builds an empty Table; callers populate it with Reload before
// first use (an empty table makes every Resolve fall through to the
// model-family heuristic).
func NewTable() *Table {
	t := &Table{}
	t.v.Store(&snapshot{rules: map[string]Rule{}, backends: map[string]BackendDef{}})
	return t
}

// Reload atomically replaces the table's contents.
func (t *Table) Reload(routingFile *RoutingFile, backendsFile *BackendsFile) {
	snap := &snapshot{rules: map[string]Rule{}, backends: map[string]BackendDef{}}
	if routingFile != nil {
		snap.rules = routingFile.Rules
	}
	if backendsFile != nil {
		for _, b := range backendsFile.Backends {
			snap.backends[strings.ToLower(b.Name)] = b
		}
	}
	t.v.Store(snap)
}

// Backend looks up a backend definition by name (case-insensitive).
func (t *Table) Backend(name string) (BackendDef, bool) {
	snap := t.v.Load()
	b, ok := snap.backends[strings.ToLower(name)]
	return b, ok
}

// normalizeAlias lowercases and strips a known thinking/date suffix so
// "claude-4.5-sonnet-high-thinking" and "claude-4.5-sonnet" can share a
// rule when only the base alias has one configured.
func normalizeAlias(alias string) []string {
	lower := strings.ToLower(strings.TrimSpace(alias))
	candidates := []string{lower}
	for _, suf := range suffixStripPatterns {
		if strings.HasSuffix(lower, suf) {
			candidates = append(candidates, strings.TrimSuffix(lower, suf))
		}
	}
	return candidates
}

// heuristicBackend implements spec §4.4 step 1's fallback when no rule
// matches: gemini-* routes natively to Antigravity; anything else is
// offered to Antigravity first since it fronts the widest model set, with
// Copilot as the sole named sibling fallback.
func heuristicChain(alias string) dispatch.Chain {
	lower := strings.ToLower(alias)
	if strings.HasPrefix(lower, "gemini-") {
		return dispatch.Chain{{Backend: "antigravity", Model: alias}}
	}
	return dispatch.Chain{
		{Backend: "antigravity", Model: alias},
		{Backend: "copilot", Model: alias},
	}
}

// Resolve returns the fallback chain and fallback-triggering condition set
// for alias. ok is false only when no rule matched and the heuristic itself
// produced an empty chain (never happens today, but keeps the contract
// honest for callers).
func (t *Table) Resolve(alias string) (dispatch.Chain, map[string]struct{}, bool) {
	snap := t.v.Load()
	for _, candidate := range normalizeAlias(alias) {
		rule, ok := snap.rules[candidate]
		if !ok || !rule.Enabled || len(rule.BackendChain) == 0 {
			continue
		}
		return rule.Chain(), rule.FallbackOnSet(), true
	}

	chain := heuristicChain(alias)
	defaultFallback := map[string]struct{}{
		"429": {}, "503": {}, "timeout": {}, "connection_error": {}, "unavailable": {},
	}
	return chain, defaultFallback, len(chain) > 0
}
