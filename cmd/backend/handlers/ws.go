package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/testdeckhq/testdeck/logger"
	"github.com/testdeckhq/testdeck/notifier"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// WSHandler streams change events to dashboard clients over a websocket.
type WSHandler struct {
	bus      *notifier.Bus
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// NewWSHandler creates a new websocket handler.
func NewWSHandler(bus *notifier.Bus, log logger.Logger) *WSHandler {
	return &WSHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Stream upgrades the connection and forwards every bus event as JSON until
// the client disconnects.
func (h *WSHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	defer conn.Close()

	events, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	// Reader goroutine: we never expect client messages, but reading is what
	// surfaces close frames and connection drops.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
