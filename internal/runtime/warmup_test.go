package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"gcli2api-go/internal/credential"

	"github.com/stretchr/testify/require"
)

type scriptedPinger struct {
	calls []string
	resp  func(credID, model string) (int, string, error)
}

func (p *scriptedPinger) Ping(ctx context.Context, cred *credential.Credential, model string) (int, string, error) {
	p.calls = append(p.calls, cred.ID+"/"+model)
	if p.resp != nil {
		return p.resp(cred.ID, model)
	}
	return 200, "", nil
}

func TestWarmupSweepSkipsCredentialsBelow100Percent(t *testing.T) {
	mgr := newTestManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	snap := NewQuotaSnapshot(time.Hour)
	snap.Put("a", "gemini-3-pro", ModelQuota{RemainingFraction: 0.5})

	pinger := &scriptedPinger{}
	loop := NewWarmupLoop(mgr, snap, pinger, WarmupConfig{WatchedModels: []string{"gemini-3-pro"}})
	loop.Sweep(context.Background())

	require.Empty(t, pinger.calls, "a model below 100%% quota should never be pinged")
}

func TestWarmupSweepPingsAt100PercentAndRecordsCycle(t *testing.T) {
	mgr := newTestManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	reset := time.Now().Add(2 * time.Hour)
	snap := NewQuotaSnapshot(time.Hour)
	snap.Put("a", "gemini-3-pro", ModelQuota{RemainingFraction: 1.0, ResetInstant: reset})

	pinger := &scriptedPinger{}
	loop := NewWarmupLoop(mgr, snap, pinger, WarmupConfig{WatchedModels: []string{"gemini-3-pro"}})
	loop.Sweep(context.Background())

	require.Equal(t, []string{"a/gemini-3-pro"}, pinger.calls)

	cycleKey := cycleKeyFor(reset)
	warmed, _ := mgr.WarmupStatus("a", "gemini-3-pro", cycleKey)
	require.True(t, warmed, "a successful ping should mark this cycle as warmed")
}

func TestWarmupSweepDoesNotRepingAnAlreadyWarmedCycle(t *testing.T) {
	mgr := newTestManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	reset := time.Now().Add(2 * time.Hour)
	snap := NewQuotaSnapshot(time.Hour)
	snap.Put("a", "gemini-3-pro", ModelQuota{RemainingFraction: 1.0, ResetInstant: reset})

	pinger := &scriptedPinger{}
	loop := NewWarmupLoop(mgr, snap, pinger, WarmupConfig{WatchedModels: []string{"gemini-3-pro"}})
	loop.Sweep(context.Background())
	loop.Sweep(context.Background())

	require.Len(t, pinger.calls, 1, "the second sweep should see the cycle already warmed and skip")
}

func TestWarmupSweepStopsAtFirstModelOnConnectError(t *testing.T) {
	mgr := newTestManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	snap := NewQuotaSnapshot(time.Hour)
	snap.Put("a", "model-1", ModelQuota{RemainingFraction: 1.0})
	snap.Put("a", "model-2", ModelQuota{RemainingFraction: 1.0})

	pinger := &scriptedPinger{resp: func(credID, model string) (int, string, error) {
		return 0, "", errors.New("connection refused")
	}}
	loop := NewWarmupLoop(mgr, snap, pinger, WarmupConfig{WatchedModels: []string{"model-1", "model-2"}})
	loop.Sweep(context.Background())

	require.Len(t, pinger.calls, 1, "a connect error should block the rest of this credential's models for the cycle")
}

func Test429IsTreatedAsSuccessfulPing(t *testing.T) {
	mgr := newTestManager(t, &credential.Credential{ID: "a", Kind: credential.KindStandard})
	reset := time.Now().Add(time.Hour)
	snap := NewQuotaSnapshot(time.Hour)
	snap.Put("a", "gemini-3-pro", ModelQuota{RemainingFraction: 1.0, ResetInstant: reset})

	pinger := &scriptedPinger{resp: func(credID, model string) (int, string, error) {
		return 429, "", nil
	}}
	loop := NewWarmupLoop(mgr, snap, pinger, WarmupConfig{WatchedModels: []string{"gemini-3-pro"}})
	loop.Sweep(context.Background())

	warmed, _ := mgr.WarmupStatus("a", "gemini-3-pro", cycleKeyFor(reset))
	require.True(t, warmed, "a 429 response proves consumption and should count as a successful ping")
}
