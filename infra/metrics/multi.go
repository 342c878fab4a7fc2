package metrics

import (
	coremetrics "github.com/sasyevadam01/sl-enterprise-sub002/core/metrics"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
)

// MultiSink fans events out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPoolAction forwards the event to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordPoolAction(ev coremetrics.PoolActionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordPoolAction(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordReaction forwards the reaction time to sinks that record it.
func (m *MultiSink) RecordReaction(operatorID string, kind model.RequestKind, seconds float64) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.ReactionRecorder); ok {
			if err := rec.RecordReaction(operatorID, kind, seconds); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordPendingCount forwards the pool size to sinks that record it.
func (m *MultiSink) RecordPendingCount(n int) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.PendingRecorder); ok {
			if err := rec.RecordPendingCount(n); err != nil {
				return err
			}
		}
	}
	return nil
}
