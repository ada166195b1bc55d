package http

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"todoapp/internal/domain/todo"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Versioner reports the invalidation version of a logical resource.
type Versioner interface {
	Version(key string) uint64
}

// Subscriber is the invalidation source the watch stream reads from.
type Subscriber interface {
	Versioner
	Subscribe(key string) (<-chan uint64, func())
}

// WatchEvent is pushed to clients each time the list becomes stale.
type WatchEvent struct {
	Key     string `json:"key"`
	Version uint64 `json:"version"`
}

type WatchHandler struct {
	subscriber Subscriber
	upgrader   websocket.Upgrader
}

func NewWatchHandler(subscriber Subscriber) *WatchHandler {
	return &WatchHandler{
		subscriber: subscriber,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// HandleWatch upgrades to a WebSocket and streams invalidation versions of
// the todo list. The current version is sent first.
func (h *WatchHandler) HandleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("watch upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	versions, cancel := h.subscriber.Subscribe(todo.ListKey)
	defer cancel()

	// client messages are ignored; reading keeps pongs and close frames flowing
	closed := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(version uint64) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(WatchEvent{Key: todo.ListKey, Version: version}) == nil
	}

	if !send(h.subscriber.Version(todo.ListKey)) {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case v, ok := <-versions:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if !send(v) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
