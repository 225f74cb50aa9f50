package runtime

import (
	"testing"
	"time"

	"gcli2api-go/internal/credential"

	"github.com/stretchr/testify/require"
)

func TestQuotaProtectionDisablesBelowThreshold(t *testing.T) {
	mgr := newTestManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	snap := NewQuotaSnapshot(time.Hour)
	snap.Put("a", "gemini-3-pro", ModelQuota{RemainingFraction: 0.1})

	loop := NewQuotaProtectionLoop(mgr, snap, QuotaProtectionConfig{Threshold: 0.2, WatchedModels: []string{"gemini-3-pro"}})
	loop.Sweep()

	cred, ok := mgr.GetCredentialByID("a")
	require.True(t, ok)
	require.True(t, cred.Disabled, "remaining quota below threshold should disable the credential")
	require.True(t, cred.AutoDisabledByWarmup, "the sweeper should mark its own disables distinctly")
}

func TestQuotaProtectionLeavesCredentialsAboveThresholdAlone(t *testing.T) {
	mgr := newTestManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	snap := NewQuotaSnapshot(time.Hour)
	snap.Put("a", "gemini-3-pro", ModelQuota{RemainingFraction: 0.5})

	loop := NewQuotaProtectionLoop(mgr, snap, QuotaProtectionConfig{Threshold: 0.2, WatchedModels: []string{"gemini-3-pro"}})
	loop.Sweep()

	cred, ok := mgr.GetCredentialByID("a")
	require.True(t, ok)
	require.False(t, cred.Disabled)
}

func TestQuotaProtectionReEnablesOnlyItsOwnDisables(t *testing.T) {
	mgr := newTestManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	snap := NewQuotaSnapshot(time.Hour)
	snap.Put("a", "gemini-3-pro", ModelQuota{RemainingFraction: 0.1})

	loop := NewQuotaProtectionLoop(mgr, snap, QuotaProtectionConfig{Threshold: 0.2, WatchedModels: []string{"gemini-3-pro"}})
	loop.Sweep()

	cred, _ := mgr.GetCredentialByID("a")
	require.True(t, cred.Disabled)

	snap.Put("a", "gemini-3-pro", ModelQuota{RemainingFraction: 1.0})
	loop.Sweep()

	cred, _ = mgr.GetCredentialByID("a")
	require.False(t, cred.Disabled, "quota recovering to 100%% should re-enable a credential the sweeper disabled")
	require.False(t, cred.AutoDisabledByWarmup)
}

func TestQuotaProtectionLeavesManuallyDisabledCredentialsAlone(t *testing.T) {
	mgr := newTestManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	require.NoError(t, mgr.DisableCredential("a"))

	snap := NewQuotaSnapshot(time.Hour)
	snap.Put("a", "gemini-3-pro", ModelQuota{RemainingFraction: 1.0})

	loop := NewQuotaProtectionLoop(mgr, snap, QuotaProtectionConfig{Threshold: 0.2, WatchedModels: []string{"gemini-3-pro"}})
	loop.Sweep()

	cred, ok := mgr.GetCredentialByID("a")
	require.True(t, ok)
	require.True(t, cred.Disabled, "a manually disabled credential should stay disabled since AutoDisabledByWarmup was never set")
}

func TestQuotaProtectionSkipsUnwatchedModels(t *testing.T) {
	mgr := newTestManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	snap := NewQuotaSnapshot(time.Hour)
	snap.Put("a", "some-other-model", ModelQuota{RemainingFraction: 0.01})

	loop := NewQuotaProtectionLoop(mgr, snap, QuotaProtectionConfig{Threshold: 0.2, WatchedModels: []string{"gemini-3-pro"}})
	loop.Sweep()

	cred, _ := mgr.GetCredentialByID("a")
	require.False(t, cred.Disabled)
}
