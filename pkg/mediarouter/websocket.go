package mediarouter

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lmig/csserver/pkg/logger"
)

// DashboardEvent is one message pushed to operator dashboard clients.
type DashboardEvent struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func (e *DashboardEvent) marshal() ([]byte, error) { return json.Marshal(e) }

type dashboardClient struct {
	id       string
	conn     *websocket.Conn
	messages chan []byte
}

// DashboardHub pushes interception started/stopped events to
// connected operator dashboards, generalizing the teacher's
// WebSocketHub register/unregister/broadcast loop from DMR peer events
// to this domain's events.
type DashboardHub struct {
	clients    map[*dashboardClient]bool
	broadcast  chan DashboardEvent
	register   chan *dashboardClient
	unregister chan *dashboardClient
	log        *logger.Logger
	mu         sync.RWMutex
}

// NewDashboardHub creates a DashboardHub. Call Run to start its loop.
func NewDashboardHub(log *logger.Logger) *DashboardHub {
	return &DashboardHub{
		clients:    make(map[*dashboardClient]bool),
		broadcast:  make(chan DashboardEvent, 256),
		register:   make(chan *dashboardClient),
		unregister: make(chan *dashboardClient),
		log:        log.WithComponent("mediarouter.dashboard"),
	}
}

// Run drives the hub's event loop until ctx is canceled.
func (h *DashboardHub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.messages)
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			data, err := ev.marshal()
			if err != nil {
				h.log.Error("failed to marshal dashboard event", logger.Error(err))
				continue
			}
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.messages <- data:
				default:
					h.log.Warn("dashboard client buffer full, dropping event", logger.String("client_id", c.id))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.messages)
			}
			h.clients = make(map[*dashboardClient]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast pushes an event to every connected dashboard client.
func (h *DashboardHub) Broadcast(ev DashboardEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- ev:
	default:
		h.log.Warn("dashboard broadcast channel full, dropping event", logger.String("event_type", ev.Type))
	}
}

// BroadcastInterceptionStarted notifies dashboards that a call is now
// being intercepted to a feeder stream.
func (h *DashboardHub) BroadcastInterceptionStarted(callID uint32, stream string) {
	h.Broadcast(DashboardEvent{Type: "interception_started", Data: map[string]interface{}{
		"call_id": callID, "stream": stream,
	}})
}

// BroadcastInterceptionStopped notifies dashboards that an interception
// ended.
func (h *DashboardHub) BroadcastInterceptionStopped(callID uint32) {
	h.Broadcast(DashboardEvent{Type: "interception_stopped", Data: map[string]interface{}{
		"call_id": callID,
	}})
}

// ClientCount returns the number of connected dashboard clients.
func (h *DashboardHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler returns the HTTP handler dashboards upgrade to a WebSocket on.
func (h *DashboardHub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			http.Error(w, "websocket upgrade failed", http.StatusBadRequest)
			return
		}
		client := &dashboardClient{id: r.RemoteAddr, conn: conn, messages: make(chan []byte, 256)}
		h.register <- client

		go func() {
			defer func() {
				h.unregister <- client
				_ = client.conn.Close()
			}()
			client.conn.SetReadLimit(1024)
			for {
				if _, _, err := client.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		go func() {
			for msg := range client.messages {
				_ = client.conn.WriteMessage(websocket.TextMessage, msg)
			}
		}()
	})
}
