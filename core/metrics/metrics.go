// Package metrics defines the observability sink interfaces the engine
// records into. Concrete sinks live under infra/metrics.
package metrics

import (
	"time"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
)

// PoolActionEvent is one pool-manager operation outcome to be recorded.
type PoolActionEvent struct {
	Action     string
	Outcome    string
	RequestID  string
	OperatorID string
	Kind       model.RequestKind
	Urgent     bool
	Time       time.Time
}

// Sink records pool operation outcomes for observability purposes.
type Sink interface {
	RecordPoolAction(ev PoolActionEvent) error
}

// ReactionRecorder records the reaction time of a completed request.
type ReactionRecorder interface {
	RecordReaction(operatorID string, kind model.RequestKind, seconds float64) error
}

// PendingRecorder records the current size of the claimable pool.
type PendingRecorder interface {
	RecordPendingCount(n int) error
}

// NopSink ignores every record.
type NopSink struct{}

func (NopSink) RecordPoolAction(PoolActionEvent) error { return nil }

func (NopSink) RecordReaction(string, model.RequestKind, float64) error { return nil }

func (NopSink) RecordPendingCount(int) error { return nil }
