package credential

import "time"

// RecordWarmup marks model as pinged for cycleKey on credID, persisting the
// attempt so a restart doesn't re-warm a cycle the smart-warmup loop (spec
// §4.6) already covered.
func (m *Manager) RecordWarmup(credID, model, cycleKey string, at time.Time) {
	m.mu.RLock()
	var target *Credential
	for _, cred := range m.credentials {
		if cred != nil && cred.ID == credID {
			target = cred
			break
		}
	}
	m.mu.RUnlock()
	if target == nil {
		return
	}
	target.MarkWarmed(model, cycleKey, at)
	m.persistCredentialState(target, true)
}

// WarmupStatus reports whether model was already warmed for cycleKey on
// credID, and when it was last pinged (the zero time if never).
func (m *Manager) WarmupStatus(credID, model, cycleKey string) (warmed bool, lastAttempt time.Time) {
	m.mu.RLock()
	var target *Credential
	for _, cred := range m.credentials {
		if cred != nil && cred.ID == credID {
			target = cred
			break
		}
	}
	m.mu.RUnlock()
	if target == nil {
		return false, time.Time{}
	}
	return target.WarmedThisCycle(model, cycleKey), target.LastWarmupAttempt(model)
}

// SetAutoDisabledByWarmup flags or clears whether credID's current disabled
// state originated from the quota-protection sweeper (spec §4.6), so the
// sweeper can tell its own disables apart from auto-ban/manual ones when
// deciding what to re-enable.
func (m *Manager) SetAutoDisabledByWarmup(credID string, v bool) error {
	_, err := m.mutateCredential(credID, func(c *Credential) error {
		c.AutoDisabledByWarmup = v
		return nil
	})
	if err != nil {
		return err
	}
	if target, ok := m.GetCredentialByID(credID); ok {
		m.persistCredentialState(target, true)
	}
	return nil
}

// CredentialsOfKind returns clones of every non-disabled credential of kind,
// for background loops (warmup, quota-protection) that need to iterate the
// full pool rather than picking a single best candidate.
func (m *Manager) CredentialsOfKind(kind Kind) []*Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Credential, 0, len(m.credentials))
	for _, cred := range m.credentials {
		if cred == nil || !credentialMatchesKind(cred, kind) {
			continue
		}
		out = append(out, cred.Clone())
	}
	return out
}
