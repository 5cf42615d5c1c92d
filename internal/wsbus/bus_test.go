package wsbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	bus, _ := NewBus()
	ch1, unsub1 := bus.Subscribe()
	defer unsub1()
	ch2, unsub2 := bus.Subscribe()
	defer unsub2()

	bus.Broadcast(OutboundMessage{Kind: KindServerOutput, Output: "hello"})

	select {
	case msg := <-ch1:
		assert.Equal(t, "hello", msg.Output)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber 1")
	}
	select {
	case msg := <-ch2:
		assert.Equal(t, "hello", msg.Output)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for subscriber 2")
	}
}

func TestSlowSubscriberIsDisconnectedNotBlocking(t *testing.T) {
	bus, _ := NewBus()
	ch, unsub := bus.Subscribe()
	defer unsub()

	for i := 0; i < subscriberBufferSize+10; i++ {
		bus.Broadcast(OutboundMessage{Kind: KindServerOutput, Output: "x"})
	}

	_, stillOpen := <-ch
	for stillOpen {
		_, stillOpen = <-ch
	}
	assert.False(t, stillOpen, "channel should have been closed once the subscriber's buffer overflowed")
}

func TestPublishIsNoopAfterClose(t *testing.T) {
	bus, inbound := NewBus()
	bus.Close()

	bus.Publish(InboundMessage{Action: ActionStart})

	_, ok := <-inbound
	assert.False(t, ok)
}

func TestPublishDeliversBeforeClose(t *testing.T) {
	bus, inbound := NewBus()
	bus.Publish(InboundMessage{Action: ActionStop})

	select {
	case msg := <-inbound:
		require.Equal(t, ActionStop, msg.Action)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for inbound message")
	}
}
