package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPublishSubscribe tests event delivery to a subscriber
func TestPublishSubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&Event{
		Type:  EventNotification,
		Group: "web",
	})

	select {
	case event := <-sub:
		assert.Equal(t, EventNotification, event.Type)
		assert.Equal(t, "web", event.Group)
		assert.False(t, event.Timestamp.IsZero(), "timestamp is set on publish")
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

// TestMultipleSubscribers tests broadcast to all subscribers
func TestMultipleSubscribers(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub1 := broker.Subscribe()
	sub2 := broker.Subscribe()
	require.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(&Event{Type: EventPassCompleted})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case event := <-sub:
			assert.Equal(t, EventPassCompleted, event.Type)
		case <-time.After(time.Second):
			t.Fatal("event not delivered to all subscribers")
		}
	}
}

// TestUnsubscribe tests that an unsubscribed channel is closed
func TestUnsubscribe(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Unsubscribe(sub)

	assert.Equal(t, 0, broker.SubscriberCount())

	_, open := <-sub
	assert.False(t, open, "unsubscribed channel is closed")
}
