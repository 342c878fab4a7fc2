// Package broadcast fans state-change events out to topic-scoped
// subscribers. Delivery is best-effort and at-most-once: subscribers are
// expected to reconcile via polling and to resynchronize after reconnects.
// A state mutation is never blocked or rolled back by delivery.
package broadcast

import (
	"sync"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/logger"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/model"
	"github.com/sasyevadam01/sl-enterprise-sub002/internal/eventbus"
)

// EventType enumerates the wire-visible event kinds.
type EventType string

const (
	EventNewRequest       EventType = "new_request"
	EventRequestUpdated   EventType = "request_updated"
	EventRequestCompleted EventType = "request_completed"
)

// Event is the typed payload handed to every subscriber.
type Event struct {
	Type      EventType             `json:"type"`
	RequestID string                `json:"request_id"`
	Payload   model.DispatchRequest `json:"payload"`
	// PreviousAssignee carries the operator a terminal transition just
	// unassigned. The payload's AssignedTo is already cleared by then,
	// but the event must still reach that operator's topic scope.
	PreviousAssignee string `json:"previous_assignee,omitempty"`
}

// Topics. The control room observes every event; the operator pool only
// sees requests it can claim plus assignment updates. Narrowing "own
// assignment" to a single operator is a client concern, the event carries
// AssignedTo.
const (
	TopicControlRoom = "control-room"
	TopicPool        = "pool"
)

// Gateway routes events to per-topic buses.
type Gateway struct {
	mu    sync.RWMutex
	buses map[string]*eventbus.TypedBus[Event]
	log   logger.Logger
}

// New creates a Gateway with the standard topics registered.
func New(log logger.Logger) *Gateway {
	if log == nil {
		log = logger.Nop{}
	}
	return &Gateway{
		buses: map[string]*eventbus.TypedBus[Event]{
			TopicControlRoom: eventbus.NewTyped[Event](),
			TopicPool:        eventbus.NewTyped[Event](),
		},
		log: log,
	}
}

// Topics returns the registered topic names.
func (g *Gateway) Topics() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.buses))
	for name := range g.buses {
		names = append(names, name)
	}
	return names
}

// Subscribe returns a channel receiving the topic's events. Unknown topics
// get a dedicated new bus so role-specific topics can be added at runtime.
func (g *Gateway) Subscribe(topic string) <-chan Event {
	g.mu.Lock()
	bus, ok := g.buses[topic]
	if !ok {
		bus = eventbus.NewTyped[Event]()
		g.buses[topic] = bus
	}
	g.mu.Unlock()
	return bus.Subscribe()
}

// Unsubscribe detaches the channel from the topic.
func (g *Gateway) Unsubscribe(topic string, ch <-chan Event) {
	g.mu.RLock()
	bus, ok := g.buses[topic]
	g.mu.RUnlock()
	if ok {
		bus.Unsubscribe(ch)
	}
}

// Publish routes the event to its topics. The control room receives all
// events; the pool receives events for unassigned (claimable) requests and
// for requests carrying an assignment, including the terminal transition
// that just removed one.
func (g *Gateway) Publish(ev Event) {
	g.mu.RLock()
	control := g.buses[TopicControlRoom]
	pool := g.buses[TopicPool]
	g.mu.RUnlock()

	delivered := 0
	if control != nil {
		delivered += control.Publish(ev)
	}
	if pool != nil && g.poolVisible(ev) {
		delivered += pool.Publish(ev)
	}
	g.log.Debugw("event published", map[string]any{
		"type":       string(ev.Type),
		"request_id": ev.RequestID,
		"delivered":  delivered,
	})
}

func (g *Gateway) poolVisible(ev Event) bool {
	return ev.Payload.Status == model.StatusPending ||
		ev.Payload.AssignedTo != "" ||
		ev.PreviousAssignee != ""
}

// Close closes every topic bus.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, bus := range g.buses {
		bus.Close()
	}
	g.buses = map[string]*eventbus.TypedBus[Event]{}
}
