package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Channel identifies one of the independent delivery surfaces. Connections
// and fan-out are scoped per channel.
type Channel string

const (
	ChannelPublicFeed       Channel = "public-feed"
	ChannelFollowerFeed     Channel = "follower-feed"
	ChannelNotificationFeed Channel = "notification-feed"
)

// ErrConnectionClosed is returned by Send once the connection has been torn down.
var ErrConnectionClosed = errors.New("realtime: connection closed")

// Message is one server-sent event: an event name plus a JSON-serialisable body.
// The wire id is assigned at write time.
type Message struct {
	Event string
	Data  any
}

// UserKey returns the subscriber key for an authenticated user.
func UserKey(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// Connection is one open streaming subscription. Writes are serialized by an
// internal mutex so concurrent deliveries to the same subscriber never
// interleave bytes. Teardown fires exactly once, whichever of explicit close,
// transport cancellation or write failure happens first.
type Connection struct {
	key       string
	channel   Channel
	createdAt time.Time

	mu    sync.Mutex // serializes writes to w
	w     io.Writer
	flush func()

	closeOnce sync.Once
	done      chan struct{}
	teardown  func()
}

// NewConnection wraps an outbound stream writer. When w implements
// http.Flusher every event is flushed immediately after the write.
func NewConnection(key string, channel Channel, w io.Writer) *Connection {
	c := &Connection{
		key:       key,
		channel:   channel,
		createdAt: time.Now(),
		w:         w,
		flush:     func() {},
		done:      make(chan struct{}),
	}
	if f, ok := w.(http.Flusher); ok {
		c.flush = f.Flush
	}
	return c
}

// Key returns the subscriber key this connection was registered under.
func (c *Connection) Key() string { return c.key }

// Channel returns the delivery surface this connection belongs to.
func (c *Connection) Channel() Channel { return c.channel }

// CreatedAt returns when the subscription was opened.
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// Send writes one event to the stream in text/event-stream framing with a
// timestamp-based id. It returns ErrConnectionClosed after teardown; a
// delivery that races a close degrades to that error, never a panic.
func (c *Connection) Send(msg Message) error {
	data, err := json.Marshal(msg.Data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	if _, err := fmt.Fprintf(c.w, "event: %s\nid: %d\ndata: %s\n\n", msg.Event, time.Now().UnixMilli(), data); err != nil {
		return err
	}
	c.flush()
	return nil
}

// Close tears the connection down. It is idempotent and safe to race against
// an in-flight Send; the registry teardown installed by Register runs exactly
// once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.teardown != nil {
			c.teardown()
		}
	})
}

// Done is closed when the connection has been torn down. The HTTP handler
// owning the stream blocks on it until the subscription ends.
func (c *Connection) Done() <-chan struct{} { return c.done }

// bindTeardown installs the registry removal hook. It must be called before
// the connection becomes visible to any other goroutine.
func (c *Connection) bindTeardown(fn func()) { c.teardown = fn }
