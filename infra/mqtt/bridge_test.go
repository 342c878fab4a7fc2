package mqtt

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/broadcast"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestBridge_ForwardsGatewayEvents(t *testing.T) {
	gw := broadcast.New(nil)
	defer gw.Close()
	pub := NewMockPublisher()
	bridge, err := NewBridge(gw, pub, "dispatch/events", nil)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)
	// Give the per-topic forwarders time to subscribe.
	time.Sleep(20 * time.Millisecond)

	gw.Publish(broadcast.Event{
		Type:      broadcast.EventNewRequest,
		RequestID: "r1",
		Payload:   model.DispatchRequest{ID: "r1", Status: model.StatusPending},
	})

	// A pending request is pool-visible, so both topics forward it.
	waitFor(t, func() bool {
		return len(pub.Published("dispatch/events/control-room")) == 1 &&
			len(pub.Published("dispatch/events/pool")) == 1
	})

	var ev broadcast.Event
	if err := json.Unmarshal(pub.Published("dispatch/events/control-room")[0], &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Type != broadcast.EventNewRequest || ev.RequestID != "r1" {
		t.Fatalf("forwarded event wrong: %+v", ev)
	}
}

func TestBridge_PoolScopedDelivery(t *testing.T) {
	gw := broadcast.New(nil)
	defer gw.Close()
	pub := NewMockPublisher()
	bridge, err := NewBridge(gw, pub, "", nil)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	// Completed and unassigned: control room only.
	gw.Publish(broadcast.Event{
		Type:      broadcast.EventRequestCompleted,
		RequestID: "r2",
		Payload:   model.DispatchRequest{ID: "r2", Status: model.StatusCompleted},
	})

	waitFor(t, func() bool {
		return len(pub.Published("dispatch/events/control-room")) == 1
	})
	if n := len(pub.Published("dispatch/events/pool")); n != 0 {
		t.Fatalf("pool must not see completed unassigned requests, got %d", n)
	}
}

func TestBridge_PublishFailureDoesNotStopForwarding(t *testing.T) {
	gw := broadcast.New(nil)
	defer gw.Close()
	pub := NewMockPublisher()
	pub.Fail = true
	bridge, err := NewBridge(gw, pub, "dispatch/events", nil)
	if err != nil {
		t.Fatalf("new bridge: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)
	time.Sleep(20 * time.Millisecond)

	gw.Publish(broadcast.Event{
		Type:      broadcast.EventNewRequest,
		RequestID: "r1",
		Payload:   model.DispatchRequest{ID: "r1", Status: model.StatusPending},
	})
	time.Sleep(20 * time.Millisecond)

	pub.mu.Lock()
	pub.Fail = false
	pub.mu.Unlock()
	gw.Publish(broadcast.Event{
		Type:      broadcast.EventNewRequest,
		RequestID: "r2",
		Payload:   model.DispatchRequest{ID: "r2", Status: model.StatusPending},
	})
	waitFor(t, func() bool {
		msgs := pub.Published("dispatch/events/control-room")
		return len(msgs) == 1
	})
}
