package realtime

import (
	"log/slog"
	"sync"
)

// DeliveryResult classifies a targeted delivery attempt.
type DeliveryResult int

const (
	// Delivered means the write to the subscriber's connection succeeded.
	Delivered DeliveryResult = iota
	// NoSubscriber means no connection is registered under the key. This is
	// expected absence, not an error; most recipients are offline at any time.
	NoSubscriber
	// Failed means the write errored; the connection has been pruned.
	Failed
)

// BroadcastResult reports the outcome of a channel-wide delivery.
type BroadcastResult struct {
	Delivered int
	Pruned    []string
}

// Registry owns the live connections of one channel. It is the single source
// of truth for "is this subscriber currently reachable" and the only
// component that touches the wire. All operations are safe under concurrent
// access from request goroutines and the heartbeat timer.
type Registry struct {
	channel Channel
	logger  *slog.Logger

	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewRegistry creates an empty registry for the given channel.
func NewRegistry(channel Channel, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		channel: channel,
		logger:  logger,
		conns:   make(map[string]*Connection),
	}
}

// Channel returns the delivery surface this registry serves.
func (r *Registry) Channel() Channel { return r.channel }

// Len returns the number of currently open connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Register stores the connection under key, replacing (and closing) any prior
// connection for the same key, and installs a teardown hook that removes
// exactly this connection from the registry. A stale teardown never evicts a
// replacement registered under the same key.
func (r *Registry) Register(key string, conn *Connection) *Connection {
	conn.bindTeardown(func() { r.evict(key, conn) })

	r.mu.Lock()
	prev := r.conns[key]
	r.conns[key] = conn
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return conn
}

// DeliverTo attempts a single targeted write. An absent subscriber is silent;
// a write failure prunes the connection.
func (r *Registry) DeliverTo(key string, msg Message) DeliveryResult {
	r.mu.RLock()
	conn, ok := r.conns[key]
	r.mu.RUnlock()

	if !ok {
		return NoSubscriber
	}
	if err := conn.Send(msg); err != nil {
		r.logger.Warn("delivery failed, pruning connection",
			"channel", r.channel, "key", key, "error", err)
		conn.Close()
		return Failed
	}
	return Delivered
}

// Broadcast writes the message to a snapshot of all open connections. Failed
// connections are pruned after the iteration completes; concurrent
// registration and removal never race with the snapshot.
func (r *Registry) Broadcast(msg Message) BroadcastResult {
	r.mu.RLock()
	snapshot := make(map[string]*Connection, len(r.conns))
	for key, conn := range r.conns {
		snapshot[key] = conn
	}
	r.mu.RUnlock()

	var res BroadcastResult
	for key, conn := range snapshot {
		if err := conn.Send(msg); err != nil {
			res.Pruned = append(res.Pruned, key)
			continue
		}
		res.Delivered++
	}

	for _, key := range res.Pruned {
		snapshot[key].Close()
	}
	if len(res.Pruned) > 0 {
		r.logger.Warn("broadcast pruned dead connections",
			"channel", r.channel, "event", msg.Event, "pruned", len(res.Pruned))
	}
	return res
}

// Remove tears down the connection registered under key. It is idempotent.
func (r *Registry) Remove(key string) {
	r.mu.RLock()
	conn, ok := r.conns[key]
	r.mu.RUnlock()

	if ok {
		conn.Close()
	}
}

// evict deletes key only while it still maps to conn, so a teardown from a
// replaced connection leaves its successor untouched.
func (r *Registry) evict(key string, conn *Connection) {
	r.mu.Lock()
	if cur, ok := r.conns[key]; ok && cur == conn {
		delete(r.conns, key)
	}
	r.mu.Unlock()
}
