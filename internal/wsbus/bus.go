// Package wsbus implements the per-server broadcast bus and websocket
// session protocol. Grounded on
// crates/alerion_core/src/servers/server.rs's WebsocketBucket (broadcast
// channel capacity 64, mpsc channel capacity 64, lossy broadcast) and
// crates/alerion_core/src/websocket/auth.rs for JWT validation semantics.
//
// Go has no equivalent to Rust's mpsc::WeakSender, so the "weak
// reference" cyclic-ownership pattern is approximated
// differently: sessions never hold the Bus's inbound channel directly,
// only a reference to the Bus itself, and Publish becomes a no-op once
// the Bus is closed. Closing the Bus (on server shutdown) therefore has
// the same observable effect as the original's queue drain.
package wsbus

import (
	"sync"
	"sync/atomic"
)

// OutboundMessage is broadcast from the server to every subscribed
// session.
type OutboundMessage struct {
	Kind   OutboundKind
	Output string
}

// OutboundKind enumerates the broadcast message variants.
type OutboundKind int

const (
	KindServerOutput OutboundKind = iota
	KindInstallOutput
)

// SetStateAction is the control action requested by a `set state` frame.
type SetStateAction string

const (
	ActionStart   SetStateAction = "start"
	ActionStop    SetStateAction = "stop"
	ActionRestart SetStateAction = "restart"
	ActionKill    SetStateAction = "kill"
)

// InboundMessage is published by a session to request a lifecycle action.
type InboundMessage struct {
	Action SetStateAction
}

const subscriberBufferSize = 64

// Bus fans broadcast output out to many subscribers and funnels control
// requests from many sessions into a single consumer.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan OutboundMessage
	nextID  int
	inbound chan InboundMessage
	closed  atomic.Bool
}

// NewBus creates a Bus and returns the receive side of its inbound queue,
// which the server's control loop drains.
func NewBus() (*Bus, <-chan InboundMessage) {
	inbound := make(chan InboundMessage, subscriberBufferSize)
	return &Bus{
		subs:    make(map[int]chan OutboundMessage),
		inbound: inbound,
	}, inbound
}

// Subscribe registers a new outbound receiver. unsubscribe must be called
// when the session ends.
func (b *Bus) Subscribe() (ch <-chan OutboundMessage, unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	out := make(chan OutboundMessage, subscriberBufferSize)
	b.subs[id] = out

	return out, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
}

// Broadcast delivers msg to every subscriber. A subscriber whose buffer is
// full is disconnected (its channel is closed) rather than allowed to
// stall the broadcaster.
func (b *Bus) Broadcast(msg OutboundMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			delete(b.subs, id)
			close(ch)
		}
	}
}

// Publish enqueues a control request. A no-op once the bus is closed —
// the Go substitute for downgrading to a weak sender.
func (b *Bus) Publish(msg InboundMessage) {
	if b.closed.Load() {
		return
	}
	select {
	case b.inbound <- msg:
	default:
		// Inbound queue saturated; there is no documented overflow
		// policy beyond the bounded buffer itself, so the request is
		// dropped the same way a lossy broadcast drop would be.
	}
}

// Close marks the bus closed and releases every subscriber, the
// equivalent of the original's queue drain on server shutdown.
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	close(b.inbound)
}
