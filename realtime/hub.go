// Package realtime is the thin websocket layer: rooms with JSON fan-out.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*websocket.Conn]bool
	log   *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{rooms: make(map[string]map[*websocket.Conn]bool), log: log}
}

func (h *Hub) Join(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*websocket.Conn]bool)
	}
	h.rooms[room][conn] = true
}

func (h *Hub) Leave(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], conn)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
}

type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Notify writes the event to every connection in the room. A connection that
// fails to accept the write is dropped from the room.
func (h *Hub) Notify(room, event string, payload any) error {
	message, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.log.Warn("dropping websocket connection",
				slog.String("room", room), slog.Any("error", err))
			conn.Close()
			h.Leave(room, conn)
		}
	}
	return nil
}
