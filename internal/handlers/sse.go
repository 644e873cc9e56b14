package handlers

import (
	"net/http"

	"github.com/anonto42/micro-blog/backend/internal/realtime"
	"github.com/labstack/echo/v4"
)

// serveStream registers a streaming connection for key and blocks until the
// subscription ends: client disconnect, replacement by a newer subscription
// under the same key, or prune after a failed write.
func serveStream(c echo.Context, registry *realtime.Registry, key string) error {
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	conn := realtime.NewConnection(key, registry.Channel(), res)
	registry.Register(key, conn)

	select {
	case <-c.Request().Context().Done():
		conn.Close()
	case <-conn.Done():
	}
	return nil
}
