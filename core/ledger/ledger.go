// Package ledger holds the append-only performance event stream and the
// monthly leaderboard projection derived from it.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
)

// Query selects events from the stream. Zero times mean unbounded.
type Query struct {
	OperatorID string
	From       time.Time
	To         time.Time
}

// Store is the append-only event stream. There is no update or delete.
type Store interface {
	Append(ctx context.Context, ev model.PerformanceEvent) error
	Query(ctx context.Context, q Query) ([]model.PerformanceEvent, error)
}

// MemoryStore keeps events in memory, in append order.
type MemoryStore struct {
	mu     sync.RWMutex
	events []model.PerformanceEvent
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Append(_ context.Context, ev model.PerformanceEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(_ context.Context, q Query) ([]model.PerformanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []model.PerformanceEvent
	for _, ev := range s.events {
		if q.OperatorID != "" && ev.OperatorID != q.OperatorID {
			continue
		}
		if !q.From.IsZero() && ev.Timestamp.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !ev.Timestamp.Before(q.To) {
			continue
		}
		res = append(res, ev)
	}
	return res, nil
}

// MonthRange returns the [from, to) UTC bounds of a calendar month.
func MonthRange(month time.Month, year int) (time.Time, time.Time) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}
