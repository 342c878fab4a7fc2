package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/sasyevadam01/sl-enterprise-sub002/core/metrics"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
)

// PromSink records pool activity in Prometheus metrics.
type PromSink struct {
	actions  *prometheus.CounterVec
	reaction *prometheus.HistogramVec
	pending  prometheus.Gauge
}

// NewPromSink registers pool metrics on the default Prometheus registerer.
// The metrics server is started separately on cfg.PrometheusAddr.
func NewPromSink(cfg coremetrics.Config) (*PromSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pool_actions_total",
		Help: "Total number of pool manager operations by action and outcome",
	}, []string{"action", "outcome"})
	reaction := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "request_reaction_seconds",
		Help:    "Seconds between taking and completing a request",
		Buckets: []float64{30, 60, 120, 300, 600, 1200, 3600},
	}, []string{"kind"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pending_requests",
		Help: "Number of requests currently waiting in the pool",
	})

	if err := reg.Register(actions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			actions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(reaction); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			reaction = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(pending); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			pending = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{actions: actions, reaction: reaction, pending: pending}, nil
}

// RecordPoolAction increments the action counter.
func (s *PromSink) RecordPoolAction(ev coremetrics.PoolActionEvent) error {
	s.actions.WithLabelValues(ev.Action, ev.Outcome).Inc()
	return nil
}

// RecordReaction observes the reaction time histogram.
func (s *PromSink) RecordReaction(_ string, kind model.RequestKind, seconds float64) error {
	s.reaction.WithLabelValues(string(kind)).Observe(seconds)
	return nil
}

// RecordPendingCount sets the pending pool gauge.
func (s *PromSink) RecordPendingCount(n int) error {
	s.pending.Set(float64(n))
	return nil
}
