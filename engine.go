package recovery

import (
	"time"

	"github.com/velorent/recovery/internal/audit"
	"github.com/velorent/recovery/internal/stores"
	"github.com/velorent/recovery/password"
	"github.com/velorent/recovery/token"
)

// Engine runs the three-stage password-recovery protocol. Instances are
// assembled by [Builder.Build] and safe for concurrent use.
type Engine struct {
	config         Config
	challengeStore *stores.ChallengeStore
	cooldownStore  *stores.CooldownStore
	replayStore    *stores.ReplayStore
	directory      AccountDirectory
	credentials    CredentialStore
	notifier       Notifier
	tokenManager   *token.Manager
	passwordHash   *password.Argon2
	audit          *audit.Dispatcher
	metrics        *Metrics
	clock          func() time.Time
}

// Close drains and stops the audit dispatcher. The engine must not be used
// after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) now() time.Time {
	if e != nil && e.clock != nil {
		return e.clock()
	}
	return time.Now()
}
