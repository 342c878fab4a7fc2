package request

import (
	"context"
	"time"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
)

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Statuses    []model.RequestStatus
	AssignedTo  string
	RequesterID string
	LocationID  string
	CreatedFrom time.Time
	CreatedTo   time.Time
	Limit       int
	Offset      int
}

// Matches reports whether the request satisfies every set constraint
// except Limit/Offset, which are paging concerns.
func (f Filter) Matches(r model.DispatchRequest) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if r.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.AssignedTo != "" && r.AssignedTo != f.AssignedTo {
		return false
	}
	if f.RequesterID != "" && r.RequesterID != f.RequesterID {
		return false
	}
	if f.LocationID != "" && r.TargetLocationID != f.LocationID {
		return false
	}
	if !f.CreatedFrom.IsZero() && r.CreatedAt.Before(f.CreatedFrom) {
		return false
	}
	if !f.CreatedTo.IsZero() && r.CreatedAt.After(f.CreatedTo) {
		return false
	}
	return true
}

// Store persists dispatch requests. Transition is the sole mutation path
// after Create: an atomic compare-and-set on the request status. Records
// are never physically deleted; terminal requests stay for audit queries.
type Store interface {
	Create(ctx context.Context, r model.DispatchRequest) (model.DispatchRequest, error)
	Get(ctx context.Context, id string) (model.DispatchRequest, error)
	List(ctx context.Context, f Filter) ([]model.DispatchRequest, error)
	// Transition loads the request, verifies its status equals expected
	// and applies the mutation, all under the same atomicity domain.
	// It fails with ErrConflict when the status check loses a race, with
	// ErrNotFound for unknown ids, and with the apply error unchanged
	// (and no state written) when apply rejects the record.
	Transition(ctx context.Context, id string, expected model.RequestStatus, apply func(*model.DispatchRequest) error) (model.DispatchRequest, error)
}
