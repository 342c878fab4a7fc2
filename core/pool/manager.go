// Package pool implements the dispatch pool manager: the single operation
// surface through which requesters and operators mutate request state.
// Every operation is one atomic compare-and-set on one request record;
// there are no cross-request transactions. Events and ledger entries are
// emitted after the state change and never roll it back.
package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/broadcast"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/ledger"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/logger"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/metrics"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/request"
)

// Manager coordinates the request pool.
type Manager struct {
	store   request.Store
	ledger  ledger.Store
	gateway *broadcast.Gateway
	sink    metrics.Sink
	log     logger.Logger
	points  Points
	now     func() time.Time
}

// NewManager creates a Manager. Store, ledger and gateway are mandatory;
// sink and log default to no-ops.
func NewManager(store request.Store, led ledger.Store, gw *broadcast.Gateway, sink metrics.Sink, log logger.Logger, points Points) (*Manager, error) {
	if store == nil || led == nil || gw == nil {
		return nil, errors.New("pool: nil parameter provided to NewManager")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	points.SetDefaults()
	return &Manager{
		store:   store,
		ledger:  led,
		gateway: gw,
		sink:    sink,
		log:     log,
		points:  points,
		now:     time.Now,
	}, nil
}

// CreateInput carries the requester-supplied fields of a new request.
type CreateInput struct {
	Kind             model.RequestKind
	RequesterID      string
	TargetLocationID string
	Description      string
	Quantity         float64
	Unit             string
	ConfirmationCode string
}

// Create inserts a new pending request into the pool.
func (m *Manager) Create(ctx context.Context, in CreateInput) (model.DispatchRequest, error) {
	if in.RequesterID == "" || in.TargetLocationID == "" {
		return model.DispatchRequest{}, fmt.Errorf("%w: requester and target location are required", ErrValidation)
	}
	if in.Kind != model.KindMaterial && in.Kind != model.KindBlockPickup {
		return model.DispatchRequest{}, fmt.Errorf("%w: unknown request kind %q", ErrValidation, in.Kind)
	}
	r := model.DispatchRequest{
		ID:               uuid.NewString(),
		Kind:             in.Kind,
		RequesterID:      in.RequesterID,
		TargetLocationID: in.TargetLocationID,
		Description:      in.Description,
		Quantity:         in.Quantity,
		Unit:             in.Unit,
		ConfirmationCode: in.ConfirmationCode,
		Status:           model.StatusPending,
		CreatedAt:        m.now().UTC(),
	}
	r, err := m.store.Create(ctx, r)
	if err != nil {
		m.record("create", "error", r)
		return model.DispatchRequest{}, err
	}
	m.emit(broadcast.EventNewRequest, r)
	m.record("create", "ok", r)
	m.log.Infof("request %s created by %s at %s", r.ID, r.RequesterID, r.TargetLocationID)
	return r, nil
}

// Get returns a single request.
func (m *Manager) Get(ctx context.Context, id string) (model.DispatchRequest, error) {
	return m.store.Get(ctx, id)
}

// List queries the store.
func (m *Manager) List(ctx context.Context, f request.Filter) ([]model.DispatchRequest, error) {
	return m.store.List(ctx, f)
}

// Take claims a pending request for the operator. Concurrent takes race at
// the store's compare-and-set: exactly one wins, the rest get
// ErrAlreadyTaken and must refresh pool state.
func (m *Manager) Take(ctx context.Context, requestID, operatorID string, etaMinutes int) (model.DispatchRequest, error) {
	if operatorID == "" {
		return model.DispatchRequest{}, fmt.Errorf("%w: operator id is required", ErrValidation)
	}
	now := m.now().UTC()
	r, err := m.store.Transition(ctx, requestID, model.StatusPending, func(r *model.DispatchRequest) error {
		r.Status = model.StatusProcessing
		r.AssignedTo = operatorID
		r.PromisedETAMinutes = etaMinutes
		r.TakenAt = &now
		return nil
	})
	if err != nil {
		if errors.Is(err, request.ErrConflict) {
			err = ErrAlreadyTaken
		}
		m.record("take", outcome(err), model.DispatchRequest{ID: requestID, AssignedTo: operatorID})
		return model.DispatchRequest{}, err
	}
	m.emit(broadcast.EventRequestUpdated, r)
	m.record("take", "ok", r)
	m.log.Infof("request %s taken by %s, eta %dm", r.ID, operatorID, etaMinutes)
	return r, nil
}

// BatchOutcome is the per-id result of TakeBatch.
type BatchOutcome struct {
	RequestID string                `json:"request_id"`
	Request   model.DispatchRequest `json:"request,omitempty"`
	Err       error                 `json:"-"`
	Error     string                `json:"error,omitempty"`
}

// TakeBatch claims each id independently. It is atomic per item, not as a
// set: the pool changes faster than a client round trip for N items, so
// all-or-nothing would needlessly fail otherwise-satisfiable claims. The
// caller reconciles partial success from the outcome list.
func (m *Manager) TakeBatch(ctx context.Context, requestIDs []string, operatorID string, etaMinutes int) []BatchOutcome {
	outcomes := make([]BatchOutcome, 0, len(requestIDs))
	for _, id := range requestIDs {
		r, err := m.Take(ctx, id, operatorID, etaMinutes)
		out := BatchOutcome{RequestID: id, Request: r, Err: err}
		if err != nil {
			out.Error = err.Error()
		}
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// Release returns a taken request to the pool and appends the fixed
// release penalty to the operator's ledger.
func (m *Manager) Release(ctx context.Context, requestID, operatorID string) (model.DispatchRequest, error) {
	now := m.now().UTC()
	r, err := m.store.Transition(ctx, requestID, model.StatusProcessing, func(r *model.DispatchRequest) error {
		if r.AssignedTo != operatorID {
			return ErrNotOwner
		}
		r.Status = model.StatusPending
		r.AssignedTo = ""
		r.PromisedETAMinutes = 0
		r.TakenAt = nil
		return nil
	})
	if err != nil {
		if errors.Is(err, request.ErrConflict) {
			err = ErrInvalidState
		}
		m.record("release", outcome(err), model.DispatchRequest{ID: requestID, AssignedTo: operatorID})
		return model.DispatchRequest{}, err
	}
	m.append(ctx, model.PerformanceEvent{
		OperatorID:  operatorID,
		Type:        model.EventPenalty,
		PointsDelta: -m.points.ReleasePenalty,
		RequestID:   requestID,
		Timestamp:   now,
	})
	m.emit(broadcast.EventRequestUpdated, r)
	m.record("release", "ok", r)
	m.log.Infof("request %s released by %s", requestID, operatorID)
	return r, nil
}

// Complete finishes a taken request. When the request carries a
// confirmation code the supplied code must match exactly, otherwise the
// call fails with ErrCodeMismatch and no state change. Receipt-confirmed
// kinds land in delivered, the rest in completed; both are terminal, clear
// the urgency flags and append a completion event with the measured
// reaction time.
func (m *Manager) Complete(ctx context.Context, requestID, operatorID, suppliedCode string) (model.DispatchRequest, error) {
	now := m.now().UTC()
	var wasAssignedTo string
	r, err := m.store.Transition(ctx, requestID, model.StatusProcessing, func(r *model.DispatchRequest) error {
		if r.AssignedTo != operatorID {
			return ErrNotOwner
		}
		if r.RequiresReceipt() && suppliedCode != r.ConfirmationCode {
			return ErrCodeMismatch
		}
		if r.RequiresReceipt() {
			r.Status = model.StatusDelivered
		} else {
			r.Status = model.StatusCompleted
			wasAssignedTo = r.AssignedTo
			r.AssignedTo = ""
		}
		r.ManualUrgent = false
		r.AutoUrgent = false
		r.UrgentSince = nil
		r.CompletedAt = &now
		return nil
	})
	if err != nil {
		if errors.Is(err, request.ErrConflict) {
			err = ErrInvalidState
		}
		m.record("complete", outcome(err), model.DispatchRequest{ID: requestID, AssignedTo: operatorID})
		return model.DispatchRequest{}, err
	}
	reaction := 0.0
	if r.TakenAt != nil {
		reaction = now.Sub(*r.TakenAt).Seconds()
	}
	m.append(ctx, model.PerformanceEvent{
		OperatorID:      operatorID,
		Type:            model.EventCompletion,
		PointsDelta:     m.points.Completion,
		ReactionSeconds: &reaction,
		RequestID:       requestID,
		Timestamp:       now,
	})
	if rec, ok := m.sink.(metrics.ReactionRecorder); ok {
		if err := rec.RecordReaction(operatorID, r.Kind, reaction); err != nil {
			m.log.Warnf("reaction metric: %v", err)
		}
	}
	m.emitUnassigned(broadcast.EventRequestCompleted, r, wasAssignedTo)
	m.record("complete", "ok", r)
	m.log.Infof("request %s completed by %s in %.0fs", requestID, operatorID, reaction)
	return r, nil
}

// Cancel terminates a pending or processing request. When the actor is the
// assigned operator this is a rejection: a different business event from
// release, carrying no penalty, because rejecting an unsuitable assignment
// before starting work is not abandoning one mid-flight.
func (m *Manager) Cancel(ctx context.Context, requestID, actorID string, role model.ActorRole, reason string) (model.DispatchRequest, error) {
	now := m.now().UTC()
	var wasAssignedTo string
	apply := func(r *model.DispatchRequest) error {
		if role == model.RoleOperator && r.Status == model.StatusProcessing && r.AssignedTo != actorID {
			return ErrNotOwner
		}
		wasAssignedTo = r.AssignedTo
		r.Status = model.StatusCancelled
		r.AssignedTo = ""
		r.ManualUrgent = false
		r.AutoUrgent = false
		r.UrgentSince = nil
		r.CancelledAt = &now
		r.CancelledReason = reason
		r.CancelledBy = role
		return nil
	}
	r, err := m.transitionActive(ctx, requestID, apply)
	if err != nil {
		m.record("cancel", outcome(err), model.DispatchRequest{ID: requestID})
		return model.DispatchRequest{}, err
	}
	m.emitUnassigned(broadcast.EventRequestUpdated, r, wasAssignedTo)
	m.record("cancel", "ok", r)
	m.log.Infof("request %s cancelled by %s (%s): %s", requestID, actorID, role, reason)
	return r, nil
}

// MarkUrgent flags an active request as manually urgent. The flag is
// monotone: it cannot be cleared while the request stays active, and
// UrgentSince is set exactly once.
func (m *Manager) MarkUrgent(ctx context.Context, requestID string) (model.DispatchRequest, error) {
	now := m.now().UTC()
	r, err := m.transitionActive(ctx, requestID, func(r *model.DispatchRequest) error {
		r.ManualUrgent = true
		if r.UrgentSince == nil {
			r.UrgentSince = &now
		}
		return nil
	})
	if err != nil {
		m.record("mark_urgent", outcome(err), model.DispatchRequest{ID: requestID})
		return model.DispatchRequest{}, err
	}
	m.emit(broadcast.EventRequestUpdated, r)
	m.record("mark_urgent", "ok", r)
	return r, nil
}

// transitionActive applies the mutation from whichever active status the
// request currently holds, still one CAS per attempt. A request in a
// terminal state yields ErrInvalidState.
func (m *Manager) transitionActive(ctx context.Context, id string, apply func(*model.DispatchRequest) error) (model.DispatchRequest, error) {
	for _, expected := range []model.RequestStatus{model.StatusPending, model.StatusProcessing} {
		r, err := m.store.Transition(ctx, id, expected, apply)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, request.ErrConflict) {
			return model.DispatchRequest{}, err
		}
	}
	return model.DispatchRequest{}, ErrInvalidState
}

func (m *Manager) append(ctx context.Context, ev model.PerformanceEvent) {
	if err := m.ledger.Append(ctx, ev); err != nil {
		// Ledger writes never roll back the state mutation.
		m.log.Errorf("ledger append for %s: %v", ev.OperatorID, err)
	}
}

func (m *Manager) emit(t broadcast.EventType, r model.DispatchRequest) {
	m.gateway.Publish(broadcast.Event{Type: t, RequestID: r.ID, Payload: r})
}

// emitUnassigned emits an event for a terminal transition that cleared the
// assignment, keeping it visible to the operator who held it.
func (m *Manager) emitUnassigned(t broadcast.EventType, r model.DispatchRequest, prev string) {
	m.gateway.Publish(broadcast.Event{Type: t, RequestID: r.ID, Payload: r, PreviousAssignee: prev})
}

func (m *Manager) record(action, out string, r model.DispatchRequest) {
	ev := metrics.PoolActionEvent{
		Action:     action,
		Outcome:    out,
		RequestID:  r.ID,
		OperatorID: r.AssignedTo,
		Kind:       r.Kind,
		Urgent:     r.Urgent(),
		Time:       m.now().UTC(),
	}
	if err := m.sink.RecordPoolAction(ev); err != nil {
		m.log.Warnf("pool metric: %v", err)
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyTaken):
		return "already_taken"
	case errors.Is(err, ErrNotOwner):
		return "not_owner"
	case errors.Is(err, ErrCodeMismatch):
		return "code_mismatch"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, request.ErrNotFound):
		return "not_found"
	case errors.Is(err, request.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
