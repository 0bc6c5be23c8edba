// Package control exposes the event surface (setSynced, syncLost,
// noSignalFound, showSnr) over a WebSocket hub and the control surface
// (start, stop, reset, scan mode, coarse corrector) over HTTP, the
// outer-application-facing layer spec.md §6 describes. Grounded on the
// teacher's internal/server package: the same WSHub client-map-plus-
// broadcast shape, and the same mux/route-registration shape in
// http.go, repointed from file-transfer progress events to sync
// events and from upload/send handlers to receiver control
// operations.
package control

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local control UI, not exposed to the public internet
	},
}

// Event is one message broadcast to every connected client.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// SyncedPayload mirrors setSynced(bool).
type SyncedPayload struct {
	Synced bool `json:"synced"`
}

// SNRPayload mirrors showSnr(int).
type SNRPayload struct {
	DB int `json:"db"`
}

// StatePayload mirrors an OnStateChange transition.
type StatePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Hub manages WebSocket connections and broadcasts sync/SNR/state
// events to all of them. Grounded on WSHub in the teacher's
// internal/server/websocket.go.
type Hub struct {
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

// AddClient registers a new WebSocket connection.
func (h *Hub) AddClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = true
	log.Printf("control: client connected (%d total)", len(h.clients))
}

// RemoveClient unregisters and closes a connection.
func (h *Hub) RemoveClient(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	conn.Close()
	log.Printf("control: client disconnected (%d remaining)", len(h.clients))
}

// Broadcast sends ev to every connected client. The writes happen
// synchronously on the caller's goroutine, one client after another, so
// a slow client delays the caller. A client whose write fails is not
// retried; it is removed on a separate goroutine.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("control: marshal error: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("control: write error: %v", err)
			go h.RemoveClient(conn)
		}
	}
}

// BroadcastSynced sends a setSynced event.
func (h *Hub) BroadcastSynced(synced bool) {
	h.Broadcast(Event{Type: "synced", Payload: SyncedPayload{Synced: synced}})
}

// BroadcastSyncLost sends a syncLost event.
func (h *Hub) BroadcastSyncLost() {
	h.Broadcast(Event{Type: "syncLost"})
}

// BroadcastNoSignalFound sends a noSignalFound event.
func (h *Hub) BroadcastNoSignalFound() {
	h.Broadcast(Event{Type: "noSignalFound"})
}

// BroadcastSNR sends a showSnr event.
func (h *Hub) BroadcastSNR(db int) {
	h.Broadcast(Event{Type: "snr", Payload: SNRPayload{DB: db}})
}

// BroadcastState sends a sync-state-machine transition.
func (h *Hub) BroadcastState(from, to string) {
	h.Broadcast(Event{Type: "state", Payload: StatePayload{From: from, To: to}})
}

// HandleWebSocket upgrades the request and registers the connection
// with the hub, reading (and discarding) frames until the client
// disconnects — this hub is outbound-only.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("control: upgrade error: %v", err)
		return
	}
	h.AddClient(conn)
	go func() {
		defer h.RemoveClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
