package realtime

import (
	"log/slog"
	"sync"
	"time"
)

// Heartbeat periodically pings every open connection across all channels so
// that dead subscribers get pruned even when no domain events are flowing.
// It relies on the registries' prune-on-write-failure behavior.
type Heartbeat struct {
	registries []*Registry
	interval   time.Duration
	logger     *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewHeartbeat creates a sweep over the given registries.
func NewHeartbeat(interval time.Duration, logger *slog.Logger, registries ...*Registry) *Heartbeat {
	if logger == nil {
		logger = slog.Default()
	}
	return &Heartbeat{
		registries: registries,
		interval:   interval,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Start launches the sweep loop on its own goroutine.
func (h *Heartbeat) Start() {
	go h.run()
}

// Stop terminates the sweep loop. It is idempotent.
func (h *Heartbeat) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

func (h *Heartbeat) run() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.sweep()
		case <-h.stop:
			return
		}
	}
}

func (h *Heartbeat) sweep() {
	for _, r := range h.registries {
		res := r.Broadcast(Message{Event: EventPing, Data: PingPayload{Status: "ok"}})
		if len(res.Pruned) > 0 {
			h.logger.Info("heartbeat pruned dead connections",
				"channel", r.Channel(), "pruned", len(res.Pruned))
		}
	}
}
