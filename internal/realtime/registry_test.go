package realtime

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterReplacesExistingConnection(t *testing.T) {
	t.Parallel()

	r := NewRegistry(ChannelNotificationFeed, nil)
	var first, second bytes.Buffer
	c1 := NewConnection("9", ChannelNotificationFeed, &first)
	c2 := NewConnection("9", ChannelNotificationFeed, &second)

	r.Register("9", c1)
	r.Register("9", c2)

	// The replaced connection is closed, and only c2 is reachable.
	select {
	case <-c1.Done():
	default:
		t.Fatal("replaced connection was not closed")
	}
	require.Equal(t, 1, r.Len())

	res := r.DeliverTo("9", Message{Event: EventPing, Data: PingPayload{Status: "ok"}})
	assert.Equal(t, Delivered, res)
	assert.Zero(t, first.Len())
	assert.NotZero(t, second.Len())
}

func TestRegistryStaleTeardownDoesNotEvictReplacement(t *testing.T) {
	t.Parallel()

	r := NewRegistry(ChannelPublicFeed, nil)
	c1 := NewConnection("9", ChannelPublicFeed, &bytes.Buffer{})
	c2 := NewConnection("9", ChannelPublicFeed, &bytes.Buffer{})

	r.Register("9", c1)
	r.Register("9", c2)

	// Closing the stale connection again must leave the replacement registered.
	c1.Close()
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, Delivered, r.DeliverTo("9", Message{Event: EventPing, Data: PingPayload{Status: "ok"}}))
}

func TestRegistryDeliverTo(t *testing.T) {
	t.Parallel()

	r := NewRegistry(ChannelNotificationFeed, nil)

	t.Run("no subscriber", func(t *testing.T) {
		res := r.DeliverTo("absent", Message{Event: EventNotification, Data: PingPayload{}})
		assert.Equal(t, NoSubscriber, res)
	})

	t.Run("delivered", func(t *testing.T) {
		var buf bytes.Buffer
		r.Register("1", NewConnection("1", ChannelNotificationFeed, &buf))
		res := r.DeliverTo("1", Message{Event: EventNotification, Data: PingPayload{Status: "ok"}})
		assert.Equal(t, Delivered, res)
		assert.Contains(t, buf.String(), "event: notification\n")
	})

	t.Run("failed write prunes", func(t *testing.T) {
		conn := NewConnection("2", ChannelNotificationFeed, failingWriter{})
		r.Register("2", conn)
		res := r.DeliverTo("2", Message{Event: EventNotification, Data: PingPayload{}})
		assert.Equal(t, Failed, res)

		select {
		case <-conn.Done():
		default:
			t.Fatal("failed connection was not closed")
		}
		// The key is gone: the next delivery reports an absent subscriber.
		assert.Equal(t, NoSubscriber, r.DeliverTo("2", Message{Event: EventNotification, Data: PingPayload{}}))
	})
}

func TestRegistryBroadcastDeliversToAllAndPrunesDead(t *testing.T) {
	t.Parallel()

	r := NewRegistry(ChannelPublicFeed, nil)
	buffers := make([]*bytes.Buffer, 3)
	for i := range buffers {
		buffers[i] = &bytes.Buffer{}
		key := fmt.Sprintf("live-%d", i)
		r.Register(key, NewConnection(key, ChannelPublicFeed, buffers[i]))
	}
	r.Register("dead-0", NewConnection("dead-0", ChannelPublicFeed, failingWriter{}))
	r.Register("dead-1", NewConnection("dead-1", ChannelPublicFeed, failingWriter{}))

	res := r.Broadcast(Message{Event: EventNewPost, Data: PingPayload{Status: "ok"}})

	assert.Equal(t, 3, res.Delivered)
	assert.ElementsMatch(t, []string{"dead-0", "dead-1"}, res.Pruned)
	assert.Equal(t, 3, r.Len())
	for _, buf := range buffers {
		assert.Contains(t, buf.String(), "event: NEW_POST\n")
	}
}

func TestRegistryBroadcastEmpty(t *testing.T) {
	t.Parallel()

	r := NewRegistry(ChannelPublicFeed, nil)
	res := r.Broadcast(Message{Event: EventPing, Data: PingPayload{}})
	assert.Zero(t, res.Delivered)
	assert.Empty(t, res.Pruned)
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	r := NewRegistry(ChannelFollowerFeed, nil)
	conn := NewConnection("5", ChannelFollowerFeed, &bytes.Buffer{})
	r.Register("5", conn)

	r.Remove("5")
	r.Remove("5")
	r.Remove("never-registered")

	assert.Zero(t, r.Len())
	select {
	case <-conn.Done():
	default:
		t.Fatal("removed connection was not closed")
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	t.Parallel()

	r := NewRegistry(ChannelPublicFeed, nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("sub-%d", i%4)
			for j := 0; j < 50; j++ {
				r.Register(key, NewConnection(key, ChannelPublicFeed, &bytes.Buffer{}))
				r.Broadcast(Message{Event: EventPing, Data: PingPayload{Status: "ok"}})
				r.DeliverTo(key, Message{Event: EventPing, Data: PingPayload{Status: "ok"}})
				r.Remove(key)
			}
		}(i)
	}
	wg.Wait()
}
