package credential

import (
	"context"
	"net/http"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
)

// Pick implements the selection contract of spec §4.1: the candidate set is
// every credential of the requested kind that is not disabled and either has
// no model_key constraint or is not cooled down for it. Among candidates,
// selection is round-robin ordered by LastSuccess ascending (least-recently
// successful first) with a deterministic name tiebreak.
func (m *Manager) Pick(kind Kind, modelKey string) (*Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Credential
	for _, cred := range m.credentials {
		if cred == nil || !credentialMatchesKind(cred, kind) {
			continue
		}
		cred.mu.RLock()
		disabled := cred.Disabled
		cred.mu.RUnlock()
		if disabled {
			continue
		}
		if !cred.UsableForModel(modelKey) {
			continue
		}
		if best == nil || lessRecentlySuccessful(cred, best) {
			best = cred
		}
	}
	if best == nil {
		return nil, false
	}
	return best.Clone(), true
}

func credentialMatchesKind(cred *Credential, kind Kind) bool {
	if kind == "" {
		return true
	}
	if cred.Kind == "" {
		// Legacy/unlabeled credentials are treated as standard.
		return kind == KindStandard
	}
	return cred.Kind == kind
}

func lessRecentlySuccessful(a, b *Credential) bool {
	a.mu.RLock()
	aLast := a.LastSuccess
	a.mu.RUnlock()
	b.mu.RLock()
	bLast := b.LastSuccess
	b.mu.RUnlock()
	if !aLast.Equal(bLast) {
		return aLast.Before(bLast)
	}
	return a.ID < b.ID
}

// PickWithWait implements the starvation-relief escalation of spec §4.1: if no
// candidate exists for modelKey, wait up to maxWait for the earliest cooldown
// on that model to expire and retry once; if still empty, retry with no model
// constraint (any-model fallback); if still empty, return false so the caller
// (dispatcher) advances the fallback chain.
func (m *Manager) PickWithWait(ctx context.Context, kind Kind, modelKey string, maxWait time.Duration) (*Credential, bool) {
	if cred, ok := m.Pick(kind, modelKey); ok {
		return cred, true
	}
	if modelKey == "" {
		return nil, false
	}
	if wait, ok := m.earliestCooldown(kind, modelKey); ok && wait > 0 && wait <= maxWait {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(wait):
		}
		if cred, ok := m.Pick(kind, modelKey); ok {
			return cred, true
		}
	}
	if cred, ok := m.Pick(kind, ""); ok {
		log.Debugf("credential pool: no candidate for model %q, falling back to any-model pick %s", modelKey, cred.ID)
		return cred, true
	}
	return nil, false
}

func (m *Manager) earliestCooldown(kind Kind, modelKey string) (time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	var best time.Time
	found := false
	for _, cred := range m.credentials {
		if cred == nil || !credentialMatchesKind(cred, kind) {
			continue
		}
		cred.mu.RLock()
		disabled := cred.Disabled
		until, ok := cred.ModelCooldowns[modelKey]
		cred.mu.RUnlock()
		if disabled || !ok {
			continue
		}
		if !found || until.Before(best) {
			best = until
			found = true
		}
	}
	if !found {
		return 0, false
	}
	if best.Before(now) {
		return 0, true
	}
	return best.Sub(now), true
}

// FailureOutcome describes a call outcome for RecordOutcome.
type FailureOutcome struct {
	Status             int
	Header             http.Header
	Body               []byte
	AllOthersExhausted bool // dispatcher reports every other credential for this model is also exhausted
}

// RecordOutcome records the result of an upstream call for model, applying the
// cooldown-hint parsing, tiered backoff, and auto-ban rules of spec §4.1. It
// supersedes the bare MarkFailure(status) call for model-scoped callers.
func (m *Manager) RecordOutcome(credID, model string, outcome FailureOutcome) {
	target, _ := m.GetCredentialByID(credID)
	if target == nil {
		return
	}
	if outcome.Status > 0 && outcome.Status < 400 {
		m.MarkSuccess(credID)
		m.mu.RLock()
		for _, cred := range m.credentials {
			if cred.ID == credID {
				cred.ResetConsecutiveExhaustion(model)
				break
			}
		}
		m.mu.RUnlock()
		return
	}

	until, hinted := ParseCooldownHint(outcome.Header, outcome.Body, time.Now())
	if !hinted {
		msg := string(outcome.Body)
		class := ClassifyFailure(outcome.Status, msg)
		if outcome.Status >= 500 {
			class = ClassServer
		}
		until = time.Now().Add(DefaultCooldownFor(class))
	}

	m.mu.RLock()
	for _, cred := range m.credentials {
		if cred.ID != credID {
			continue
		}
		if model != "" {
			cred.SetModelCooldown(model, until)
			if outcome.AllOthersExhausted {
				strike := cred.BumpConsecutiveExhaustion(model)
				tiered := time.Now().Add(TieredBackoff(strike))
				if tiered.After(until) {
					cred.SetModelCooldown(model, tiered)
				}
			}
		}
		break
	}
	m.mu.RUnlock()

	m.MarkFailure(credID, "upstream_error", outcome.Status)
}

// allCredentialIDsOfKind is a small helper for management/debug endpoints.
func (m *Manager) allCredentialIDsOfKind(kind Kind) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.credentials))
	for _, c := range m.credentials {
		if credentialMatchesKind(c, kind) {
			ids = append(ids, c.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
