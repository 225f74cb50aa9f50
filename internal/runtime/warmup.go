package runtime

import (
	"context"
	"time"

	"gcli2api-go/internal/credential"

	log "github.com/sirupsen/logrus"
)

// WarmupPinger issues the tiny maxOutputTokens:1 probe spec §4.6 describes
// against model using cred. A 429 response is a successful ping (it proved
// consumption against the quota) so callers should not treat it as err.
// resetTime is the upstream's raw reset-time string for this (cred, model)
// observation, used to derive the warmup cycle key.
type WarmupPinger interface {
	Ping(ctx context.Context, cred *credential.Credential, model string) (status int, resetTime string, err error)
}

// WarmupConfig tunes the smart-warmup loop.
type WarmupConfig struct {
	Interval      time.Duration
	LocalCooldown time.Duration
	WatchedModels []string
}

// DefaultWarmupConfig mirrors spec §4.6's defaults: a 30-minute sweep and a
// 5-hour local cooldown fallback for when the upstream gives no resetTime.
func DefaultWarmupConfig() WarmupConfig {
	return WarmupConfig{
		Interval:      30 * time.Minute,
		LocalCooldown: 5 * time.Hour,
	}
}

// WarmupLoop periodically pings 100%-quota watched models to keep their
// cooldown clocks honest, per spec §4.6's smart-warmup loop. It mirrors the
// teacher's credential.Manager.StartPeriodicRefresh ticker/select shape.
type WarmupLoop struct {
	mgr      *credential.Manager
	snapshot *QuotaSnapshot
	pinger   WarmupPinger
	cfg      WarmupConfig
}

// NewWarmupLoop builds a WarmupLoop. snapshot supplies the quota observations
// that gate which (credential, model) pairs are eligible to warm.
func NewWarmupLoop(mgr *credential.Manager, snapshot *QuotaSnapshot, pinger WarmupPinger, cfg WarmupConfig) *WarmupLoop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultWarmupConfig().Interval
	}
	if cfg.LocalCooldown <= 0 {
		cfg.LocalCooldown = DefaultWarmupConfig().LocalCooldown
	}
	return &WarmupLoop{mgr: mgr, snapshot: snapshot, pinger: pinger, cfg: cfg}
}

// Run blocks, sweeping on every tick until ctx is done.
func (w *WarmupLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one warmup pass over every credential/watched-model pair. It is
// exported so callers (and tests) can drive it without waiting for a tick.
func (w *WarmupLoop) Sweep(ctx context.Context) {
	if len(w.cfg.WatchedModels) == 0 {
		return
	}

	for _, cred := range w.mgr.CredentialsOfKind("") {
		if cred.Disabled {
			continue
		}
		w.sweepCredential(ctx, cred)
	}
}

func (w *WarmupLoop) sweepCredential(ctx context.Context, cred *credential.Credential) {
	for _, model := range w.cfg.WatchedModels {
		quota, ok := w.snapshot.Get(cred.ID, model)
		if !ok || quota.RemainingFraction < 1.0 {
			continue
		}

		cycleKey := cycleKeyFor(quota.ResetInstant)
		warmed, lastAttempt := w.mgr.WarmupStatus(cred.ID, model, cycleKey)
		if warmed {
			continue
		}
		if cycleKey == "" && !lastAttempt.IsZero() && time.Since(lastAttempt) < w.cfg.LocalCooldown {
			continue
		}

		_, resetTime, err := w.pinger.Ping(ctx, cred, model)
		now := time.Now()
		if err != nil {
			log.WithFields(log.Fields{"cred_id": cred.ID, "model": model}).
				WithError(err).Warn("smart warmup: connect error, skipping remaining models this cycle")
			return // connect-error blocks the whole credential for this cycle
		}

		observedCycle := cycleKey
		if resetTime != "" {
			observedCycle = resetTime
		}
		w.mgr.RecordWarmup(cred.ID, model, observedCycle, now)
	}
}

func cycleKeyFor(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
