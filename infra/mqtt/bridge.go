package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sasyevadam01/sl-enterprise-sub002/core/broadcast"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/logger"
	"github.com/sasyevadam01/sl-enterprise-sub002/core/monitoring"
)

// Bridge republishes every gateway event as JSON on
// <prefix>/<topic>. Delivery failures are logged and reported, never
// retried: the gateway contract is at-most-once.
type Bridge struct {
	gateway *broadcast.Gateway
	pub     Publisher
	prefix  string
	log     logger.Logger
}

// NewBridge creates a Bridge forwarding the gateway's topics.
func NewBridge(gw *broadcast.Gateway, pub Publisher, prefix string, log logger.Logger) (*Bridge, error) {
	if gw == nil || pub == nil {
		return nil, fmt.Errorf("mqtt: nil parameter provided to NewBridge")
	}
	if prefix == "" {
		prefix = "dispatch/events"
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Bridge{gateway: gw, pub: pub, prefix: prefix, log: log}, nil
}

// Run forwards events until the context is canceled. One goroutine per
// gateway topic.
func (b *Bridge) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, topic := range b.gateway.Topics() {
		ch := b.gateway.Subscribe(topic)
		wg.Add(1)
		go func(topic string, ch <-chan broadcast.Event) {
			defer wg.Done()
			defer b.gateway.Unsubscribe(topic, ch)
			for {
				select {
				case ev, ok := <-ch:
					if !ok {
						return
					}
					b.forward(topic, ev)
				case <-ctx.Done():
					return
				}
			}
		}(topic, ch)
	}
	wg.Wait()
}

func (b *Bridge) forward(topic string, ev broadcast.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		b.log.Errorf("marshal event %s: %v", ev.RequestID, err)
		return
	}
	if err := b.pub.Publish(b.prefix+"/"+topic, payload); err != nil {
		b.log.Warnf("publish %s event for %s: %v", ev.Type, ev.RequestID, err)
		monitoring.CaptureException(err, map[string]string{"topic": topic})
	}
}
