package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/broadcast"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/ledger"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/logger"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/request"
)

type fixture struct {
	mgr    *Manager
	store  *request.MemoryStore
	ledger *ledger.MemoryStore
	gw     *broadcast.Gateway
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := request.NewMemoryStore()
	led := ledger.NewMemoryStore()
	gw := broadcast.New(logger.Nop{})
	mgr, err := NewManager(store, led, gw, nil, logger.Nop{}, Points{})
	require.NoError(t, err)
	return &fixture{mgr: mgr, store: store, ledger: led, gw: gw}
}

func (f *fixture) create(t *testing.T, code string) model.DispatchRequest {
	t.Helper()
	r, err := f.mgr.Create(context.Background(), CreateInput{
		Kind:             model.KindMaterial,
		RequesterID:      "banchina-7",
		TargetLocationID: "banchina-2",
		Description:      "marble blocks",
		Quantity:         3,
		Unit:             "pallet",
		ConfirmationCode: code,
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) netPoints(t *testing.T, operatorID string) int {
	t.Helper()
	events, err := f.ledger.Query(context.Background(), ledger.Query{OperatorID: operatorID})
	require.NoError(t, err)
	net := 0
	for _, ev := range events {
		net += ev.PointsDelta
	}
	return net
}

func TestManager_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.mgr.Create(ctx, CreateInput{Kind: model.KindMaterial, RequesterID: "u1"})
	assert.Error(t, err, "missing location must fail")
	_, err = f.mgr.Create(ctx, CreateInput{Kind: "teleport", RequesterID: "u1", TargetLocationID: "b1"})
	assert.Error(t, err, "unknown kind must fail")
}

func TestManager_TakeAssigns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "")

	taken, err := f.mgr.Take(ctx, r.ID, "opA", 10)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, taken.Status)
	assert.Equal(t, "opA", taken.AssignedTo)
	assert.Equal(t, 10, taken.PromisedETAMinutes)
	require.NotNil(t, taken.TakenAt)

	_, err = f.mgr.Take(ctx, r.ID, "opB", 5)
	assert.ErrorIs(t, err, ErrAlreadyTaken)
	assert.ErrorIs(t, err, request.ErrConflict, "AlreadyTaken is a specific Conflict")

	_, err = f.mgr.Take(ctx, "ghost", "opA", 5)
	assert.ErrorIs(t, err, request.ErrNotFound)
}

func TestManager_TakeBatchPartialSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r1 := f.create(t, "")
	r2 := f.create(t, "")
	_, err := f.mgr.Take(ctx, r2.ID, "rival", 5)
	require.NoError(t, err)

	outcomes := f.mgr.TakeBatch(ctx, []string{r1.ID, r2.ID, "ghost"}, "opA", 15)
	require.Len(t, outcomes, 3)
	assert.NoError(t, outcomes[0].Err)
	assert.Equal(t, "opA", outcomes[0].Request.AssignedTo)
	assert.ErrorIs(t, outcomes[1].Err, ErrAlreadyTaken)
	assert.ErrorIs(t, outcomes[2].Err, request.ErrNotFound)
}

func TestManager_ReleasePenalizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "")
	_, err := f.mgr.Take(ctx, r.ID, "opA", 10)
	require.NoError(t, err)

	_, err = f.mgr.Release(ctx, r.ID, "opB")
	assert.ErrorIs(t, err, ErrNotOwner)

	released, err := f.mgr.Release(ctx, r.ID, "opA")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, released.Status)
	assert.Empty(t, released.AssignedTo)
	assert.Nil(t, released.TakenAt)
	assert.Equal(t, -5, f.netPoints(t, "opA"), "release carries the fixed penalty")

	_, err = f.mgr.Release(ctx, r.ID, "opA")
	assert.ErrorIs(t, err, ErrInvalidState, "release only valid while processing")
}

func TestManager_CompleteWithoutCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "")
	_, err := f.mgr.Take(ctx, r.ID, "opA", 10)
	require.NoError(t, err)

	done, err := f.mgr.Complete(ctx, r.ID, "opA", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Empty(t, done.AssignedTo)
	require.NotNil(t, done.CompletedAt)

	events, err := f.ledger.Query(ctx, ledger.Query{OperatorID: "opA"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventCompletion, events[0].Type)
	assert.Equal(t, 10, events[0].PointsDelta)
	require.NotNil(t, events[0].ReactionSeconds)
	assert.GreaterOrEqual(t, *events[0].ReactionSeconds, 0.0)
}

func TestManager_CompleteCodeMismatchLeavesState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "4711")
	_, err := f.mgr.Take(ctx, r.ID, "opA", 10)
	require.NoError(t, err)

	_, err = f.mgr.Complete(ctx, r.ID, "opA", "0000")
	assert.ErrorIs(t, err, ErrCodeMismatch)
	current, err := f.mgr.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusProcessing, current.Status, "mismatch must not change state")
	assert.Empty(t, f.netPoints(t, "opA"))

	done, err := f.mgr.Complete(ctx, r.ID, "opA", "4711")
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, done.Status, "receipt-confirmed kinds land in delivered")
	assert.Equal(t, "opA", done.AssignedTo, "delivered keeps the assignment")
}

func TestManager_CompleteByNonOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "")
	_, err := f.mgr.Take(ctx, r.ID, "opA", 10)
	require.NoError(t, err)
	_, err = f.mgr.Complete(ctx, r.ID, "opB", "")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestManager_CancelRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Requester cancels their own pending request.
	r := f.create(t, "")
	cancelled, err := f.mgr.Cancel(ctx, r.ID, "banchina-7", model.RoleRequester, "no longer needed")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, cancelled.Status)
	assert.Equal(t, model.RoleRequester, cancelled.CancelledBy)
	assert.Equal(t, "no longer needed", cancelled.CancelledReason)

	// Assigned operator rejects a processing request: no penalty.
	r2 := f.create(t, "")
	_, err = f.mgr.Take(ctx, r2.ID, "opA", 10)
	require.NoError(t, err)
	rejected, err := f.mgr.Cancel(ctx, r2.ID, "opA", model.RoleOperator, "wrong equipment")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, rejected.Status)
	assert.Empty(t, rejected.AssignedTo)
	assert.Zero(t, f.netPoints(t, "opA"), "rejection carries no penalty")

	// A different operator cannot cancel someone else's assignment.
	r3 := f.create(t, "")
	_, err = f.mgr.Take(ctx, r3.ID, "opA", 10)
	require.NoError(t, err)
	_, err = f.mgr.Cancel(ctx, r3.ID, "opB", model.RoleOperator, "nope")
	assert.ErrorIs(t, err, ErrNotOwner)

	// Terminal requests cannot be cancelled.
	_, err = f.mgr.Cancel(ctx, r.ID, "admin", model.RoleAdmin, "cleanup")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestManager_MarkUrgentMonotone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, "")

	marked, err := f.mgr.MarkUrgent(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, marked.ManualUrgent)
	require.NotNil(t, marked.UrgentSince)
	first := *marked.UrgentSince

	time.Sleep(5 * time.Millisecond)
	again, err := f.mgr.MarkUrgent(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, again.ManualUrgent)
	assert.Equal(t, first, *again.UrgentSince, "urgent_since is set exactly once")

	// Still settable while processing.
	_, err = f.mgr.Take(ctx, r.ID, "opA", 10)
	require.NoError(t, err)
	_, err = f.mgr.MarkUrgent(ctx, r.ID)
	assert.NoError(t, err)

	done, err := f.mgr.Complete(ctx, r.ID, "opA", "")
	require.NoError(t, err)
	_, err = f.mgr.MarkUrgent(ctx, done.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestManager_EmitsGatewayEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.gw.Subscribe(broadcast.TopicControlRoom)

	r := f.create(t, "")
	_, err := f.mgr.Take(ctx, r.ID, "opA", 10)
	require.NoError(t, err)
	_, err = f.mgr.Complete(ctx, r.ID, "opA", "")
	require.NoError(t, err)

	ev1, ev2, ev3 := <-ch, <-ch, <-ch
	assert.Equal(t, broadcast.EventNewRequest, ev1.Type)
	assert.Equal(t, broadcast.EventRequestUpdated, ev2.Type)
	assert.Equal(t, broadcast.EventRequestCompleted, ev3.Type)
	assert.Equal(t, r.ID, ev3.RequestID)
}

func TestManager_PoolSeesCancelOfAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch := f.gw.Subscribe(broadcast.TopicPool)

	r := f.create(t, "")
	_, err := f.mgr.Take(ctx, r.ID, "opA", 10)
	require.NoError(t, err)
	_, err = f.mgr.Cancel(ctx, r.ID, "banchina-7", model.RoleRequester, "changed plans")
	require.NoError(t, err)

	var cancel broadcast.Event
	for i := 0; i < 3; i++ {
		cancel = <-ch
		if cancel.Payload.Status == model.StatusCancelled {
			break
		}
	}
	require.Equal(t, model.StatusCancelled, cancel.Payload.Status,
		"cancellation of an assignment must reach the pool topic")
	assert.Equal(t, "opA", cancel.PreviousAssignee)
	assert.Empty(t, cancel.Payload.AssignedTo)
}

func TestManager_TerminalClearsUrgency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.create(t, "")
	_, err := f.mgr.MarkUrgent(ctx, r.ID)
	require.NoError(t, err)
	_, err = f.mgr.Take(ctx, r.ID, "opA", 10)
	require.NoError(t, err)
	done, err := f.mgr.Complete(ctx, r.ID, "opA", "")
	require.NoError(t, err)
	assert.False(t, done.ManualUrgent)
	assert.False(t, done.AutoUrgent)
	assert.Nil(t, done.UrgentSince)

	r2 := f.create(t, "")
	_, err = f.mgr.MarkUrgent(ctx, r2.ID)
	require.NoError(t, err)
	cancelled, err := f.mgr.Cancel(ctx, r2.ID, "banchina-7", model.RoleRequester, "done by hand")
	require.NoError(t, err)
	assert.False(t, cancelled.ManualUrgent)
	assert.Nil(t, cancelled.UrgentSince)
}

func TestManager_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r1 := f.create(t, "9001")

	taken, err := f.mgr.Take(ctx, r1.ID, "opA", 10)
	require.NoError(t, err)
	require.Equal(t, model.StatusProcessing, taken.Status)
	require.Equal(t, "opA", taken.AssignedTo)

	_, err = f.mgr.Release(ctx, r1.ID, "opB")
	require.ErrorIs(t, err, ErrNotOwner)

	released, err := f.mgr.Release(ctx, r1.ID, "opA")
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, released.Status)
	require.Empty(t, released.AssignedTo)
	require.Equal(t, -5, f.netPoints(t, "opA"))

	taken2, err := f.mgr.Take(ctx, r1.ID, "opC", 5)
	require.NoError(t, err)
	require.Equal(t, "opC", taken2.AssignedTo)

	done, err := f.mgr.Complete(ctx, r1.ID, "opC", "9001")
	require.NoError(t, err)
	require.True(t, done.Status.Terminal())
	require.NotNil(t, done.CompletedAt)

	events, err := f.ledger.Query(ctx, ledger.Query{OperatorID: "opC"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, model.EventCompletion, events[0].Type)
	require.Equal(t, 10, f.netPoints(t, "opC"))
}
