// Package escalation promotes overdue pending requests to urgent. The
// sweep is edge-triggered: a request already promoted is skipped, so any
// tick frequency yields exactly one promotion and one event per request.
package escalation

import (
	"context"
	"errors"
	"time"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/broadcast"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/logger"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/metrics"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/request"
)

// Config defines the sweep cadence and the promotion threshold. Both are
// deployment-wide tunables.
type Config struct {
	TickSeconds      int `json:"tick_seconds"`
	ThresholdSeconds int `json:"threshold_seconds"`
}

// SetDefaults applies the reference values.
func (c *Config) SetDefaults() {
	if c.TickSeconds <= 0 {
		c.TickSeconds = 20
	}
	if c.ThresholdSeconds <= 0 {
		c.ThresholdSeconds = 600
	}
}

// Tick returns the sweep interval.
func (c Config) Tick() time.Duration { return time.Duration(c.TickSeconds) * time.Second }

// Threshold returns the pending age beyond which a request is promoted.
func (c Config) Threshold() time.Duration { return time.Duration(c.ThresholdSeconds) * time.Second }

// errAlreadyEscalated aborts the CAS when another sweep or a manual mark
// got there first. Not an error for the caller.
var errAlreadyEscalated = errors.New("already escalated")

// Monitor periodically sweeps the store for overdue pending requests.
type Monitor struct {
	store   request.Store
	gateway *broadcast.Gateway
	sink    metrics.Sink
	log     logger.Logger
	cfg     Config
	now     func() time.Time
}

// NewMonitor creates a Monitor. Sink and log default to no-ops.
func NewMonitor(store request.Store, gw *broadcast.Gateway, sink metrics.Sink, log logger.Logger, cfg Config) (*Monitor, error) {
	if store == nil || gw == nil {
		return nil, errors.New("escalation: nil parameter provided to NewMonitor")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	cfg.SetDefaults()
	return &Monitor{store: store, gateway: gw, sink: sink, log: log, cfg: cfg, now: time.Now}, nil
}

// Run sweeps on a fixed tick until the context is canceled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Tick())
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				m.log.Errorf("escalation sweep: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Sweep promotes every overdue pending request exactly once and reports
// the pending pool size to the metrics sink. It returns the first store
// error; per-request races are skipped silently.
func (m *Monitor) Sweep(ctx context.Context) error {
	pending, err := m.store.List(ctx, request.Filter{Statuses: []model.RequestStatus{model.StatusPending}})
	if err != nil {
		return err
	}
	if rec, ok := m.sink.(metrics.PendingRecorder); ok {
		if err := rec.RecordPendingCount(len(pending)); err != nil {
			m.log.Warnf("pending gauge: %v", err)
		}
	}
	now := m.now().UTC()
	for _, r := range pending {
		if r.AutoUrgent || now.Sub(r.CreatedAt) < m.cfg.Threshold() {
			continue
		}
		promoted, err := m.store.Transition(ctx, r.ID, model.StatusPending, func(r *model.DispatchRequest) error {
			if r.AutoUrgent {
				return errAlreadyEscalated
			}
			r.AutoUrgent = true
			if r.UrgentSince == nil {
				r.UrgentSince = &now
			}
			return nil
		})
		if err != nil {
			// Lost a race against take, cancel or a concurrent sweep.
			if errors.Is(err, request.ErrConflict) || errors.Is(err, errAlreadyEscalated) {
				continue
			}
			return err
		}
		m.gateway.Publish(broadcast.Event{
			Type:      broadcast.EventRequestUpdated,
			RequestID: promoted.ID,
			Payload:   promoted,
		})
		m.log.Infof("request %s escalated after %.0fs pending", promoted.ID, now.Sub(promoted.CreatedAt).Seconds())
	}
	return nil
}
