package request

import (
	"context"
	"sort"
	"sync"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
)

// MemoryStore is a mutex-guarded in-memory Store. The write lock held for
// the whole of Transition gives it true check-and-set semantics.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]model.DispatchRequest
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]model.DispatchRequest{}}
}

func (s *MemoryStore) Create(_ context.Context, r model.DispatchRequest) (model.DispatchRequest, error) {
	s.mu.Lock()
	s.data[r.ID] = r
	s.mu.Unlock()
	return r, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.DispatchRequest, error) {
	s.mu.RLock()
	r, ok := s.data[id]
	s.mu.RUnlock()
	if !ok {
		return model.DispatchRequest{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]model.DispatchRequest, error) {
	s.mu.RLock()
	res := make([]model.DispatchRequest, 0, len(s.data))
	for _, r := range s.data {
		if f.Matches(r) {
			res = append(res, r)
		}
	}
	s.mu.RUnlock()
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	if f.Offset > 0 {
		if f.Offset >= len(res) {
			return nil, nil
		}
		res = res[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(res) {
		res = res[:f.Limit]
	}
	return res, nil
}

func (s *MemoryStore) Transition(_ context.Context, id string, expected model.RequestStatus, apply func(*model.DispatchRequest) error) (model.DispatchRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.data[id]
	if !ok {
		return model.DispatchRequest{}, ErrNotFound
	}
	if r.Status != expected {
		return model.DispatchRequest{}, ErrConflict
	}
	if err := apply(&r); err != nil {
		return model.DispatchRequest{}, err
	}
	s.data[id] = r
	return r, nil
}
