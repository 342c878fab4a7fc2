// Package simulator generates synthetic dispatch traffic against a pool
// manager: requesters create and occasionally cancel requests, operators
// poll the pool, take what they find and complete or release it. Useful
// for load-testing escalation, metrics and broadcast behavior without a
// real yard.
package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/logger"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/pool"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/request"
)

// Stats counts the traffic generated so far. Fields are read with the
// atomic snapshot in Snapshot.
type Stats struct {
	Created   atomic.Int64
	Taken     atomic.Int64
	Completed atomic.Int64
	Released  atomic.Int64
	Cancelled atomic.Int64
	Conflicts atomic.Int64
}

// Snapshot returns a plain copy of the counters.
func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"created":   s.Created.Load(),
		"taken":     s.Taken.Load(),
		"completed": s.Completed.Load(),
		"released":  s.Released.Load(),
		"cancelled": s.Cancelled.Load(),
		"conflicts": s.Conflicts.Load(),
	}
}

// Simulator drives a pool manager with synthetic requesters and operators.
type Simulator struct {
	mgr   *pool.Manager
	cfg   Config
	log   logger.Logger
	rng   *rand.Rand
	rngMu sync.Mutex
	Stats Stats
}

// New creates a Simulator. A zero seed uses the current time.
func New(mgr *pool.Manager, cfg Config, log logger.Logger, seed int64) (*Simulator, error) {
	if mgr == nil {
		return nil, fmt.Errorf("simulator: nil manager")
	}
	if log == nil {
		log = logger.Nop{}
	}
	cfg.SetDefaults()
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		mgr: mgr,
		cfg: cfg,
		log: log,
		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

// Run generates traffic until the context is canceled.
func (s *Simulator) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Requesters; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s.requester(ctx, id)
		}(fmt.Sprintf("sim-req-%02d", i+1))
	}
	for i := 0; i < s.cfg.Operators; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s.operator(ctx, id)
		}(fmt.Sprintf("sim-op-%02d", i+1))
	}
	wg.Wait()
}

func (s *Simulator) requester(ctx context.Context, id string) {
	for {
		if !s.sleep(ctx, s.jitter(s.cfg.CreateInterval)) {
			return
		}
		kind := model.KindMaterial
		code := ""
		if s.chance(0.25) {
			kind = model.KindBlockPickup
			code = fmt.Sprintf("%04d", s.intn(10000))
		}
		created, err := s.mgr.Create(ctx, pool.CreateInput{
			Kind:             kind,
			RequesterID:      id,
			TargetLocationID: s.cfg.Locations[s.intn(len(s.cfg.Locations))],
			Description:      "synthetic load",
			Quantity:         float64(1 + s.intn(5)),
			Unit:             "pallet",
			ConfirmationCode: code,
		})
		if err != nil {
			s.log.Warnf("simulated create: %v", err)
			continue
		}
		s.Stats.Created.Add(1)
		if s.chance(s.cfg.CancelRate) {
			if _, err := s.mgr.Cancel(ctx, created.ID, id, model.RoleRequester, "simulated change of plans"); err == nil {
				s.Stats.Cancelled.Add(1)
			}
		}
	}
}

func (s *Simulator) operator(ctx context.Context, id string) {
	for {
		if !s.sleep(ctx, s.jitter(s.cfg.CreateInterval/2)) {
			return
		}
		pending, err := s.mgr.List(ctx, request.Filter{
			Statuses: []model.RequestStatus{model.StatusPending},
			Limit:    10,
		})
		if err != nil || len(pending) == 0 {
			continue
		}
		target := pending[s.intn(len(pending))]
		taken, err := s.mgr.Take(ctx, target.ID, id, 5+s.intn(25))
		if err != nil {
			// Losing the claim race to another operator is expected traffic.
			s.Stats.Conflicts.Add(1)
			continue
		}
		s.Stats.Taken.Add(1)
		if !s.sleep(ctx, s.jitter(s.cfg.WorkDuration)) {
			return
		}
		if s.chance(s.cfg.ReleaseRate) {
			if _, err := s.mgr.Release(ctx, taken.ID, id); err == nil {
				s.Stats.Released.Add(1)
			}
			continue
		}
		if _, err := s.mgr.Complete(ctx, taken.ID, id, taken.ConfirmationCode); err == nil {
			s.Stats.Completed.Add(1)
		}
	}
}

func (s *Simulator) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// jitter spreads d uniformly over [d/2, 3d/2).
func (s *Simulator) jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Millisecond
	}
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return d/2 + time.Duration(s.rng.Int63n(int64(d)))
}

func (s *Simulator) chance(p float64) bool {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64() < p
}

func (s *Simulator) intn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}
