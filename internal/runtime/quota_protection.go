package runtime

import (
	"context"
	"time"

	"gcli2api-go/internal/credential"

	log "github.com/sirupsen/logrus"
)

// QuotaProtectionConfig tunes the quota-protection sweeper.
type QuotaProtectionConfig struct {
	Interval      time.Duration
	Threshold     float64 // remaining fraction below which a credential is preemptively disabled
	WatchedModels []string
}

// DefaultQuotaProtectionConfig mirrors spec §4.6's default 20% threshold.
func DefaultQuotaProtectionConfig() QuotaProtectionConfig {
	return QuotaProtectionConfig{
		Interval:  5 * time.Minute,
		Threshold: 0.2,
	}
}

// QuotaProtectionLoop preemptively disables a credential once any watched
// model's remaining quota fraction drops below Threshold, preserving
// headroom for human-initiated traffic, and re-enables it once the model's
// quota is reported back at 100% (spec §4.6).
type QuotaProtectionLoop struct {
	mgr      *credential.Manager
	snapshot *QuotaSnapshot
	cfg      QuotaProtectionConfig
}

// NewQuotaProtectionLoop builds a QuotaProtectionLoop.
func NewQuotaProtectionLoop(mgr *credential.Manager, snapshot *QuotaSnapshot, cfg QuotaProtectionConfig) *QuotaProtectionLoop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultQuotaProtectionConfig().Interval
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultQuotaProtectionConfig().Threshold
	}
	return &QuotaProtectionLoop{mgr: mgr, snapshot: snapshot, cfg: cfg}
}

// Run blocks, sweeping on every tick until ctx is done.
func (q *QuotaProtectionLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(q.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one protection pass over every credential/watched-model pair.
func (q *QuotaProtectionLoop) Sweep() {
	if len(q.cfg.WatchedModels) == 0 {
		return
	}

	for _, cred := range q.mgr.CredentialsOfKind("") {
		for _, model := range q.cfg.WatchedModels {
			quota, ok := q.snapshot.Get(cred.ID, model)
			if !ok {
				continue
			}

			switch {
			case quota.RemainingFraction < q.cfg.Threshold && !cred.Disabled:
				if err := q.mgr.DisableCredential(cred.ID); err != nil {
					log.WithError(err).Warnf("quota protection: failed to disable %s", cred.ID)
					continue
				}
				_ = q.mgr.SetAutoDisabledByWarmup(cred.ID, true)
				log.WithFields(log.Fields{
					"cred_id": cred.ID, "model": model, "remaining": quota.RemainingFraction,
				}).Info("quota protection: disabled credential, remaining quota below threshold")

			case quota.RemainingFraction >= 1.0 && cred.Disabled && cred.AutoDisabledByWarmup:
				if err := q.mgr.EnableCredential(cred.ID); err != nil {
					log.WithError(err).Warnf("quota protection: failed to re-enable %s", cred.ID)
					continue
				}
				_ = q.mgr.SetAutoDisabledByWarmup(cred.ID, false)
				log.WithFields(log.Fields{
					"cred_id": cred.ID, "model": model,
				}).Info("quota protection: re-enabled credential, quota recovered to 100%")
			}
		}
	}
}
