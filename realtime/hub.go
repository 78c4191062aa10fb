package realtime

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/camden-git/photosorter/session"
)

// Event tells the UI that part of the session changed and should be re-read.
type Event struct {
	Type      string `json:"type"`
	BatchID   string `json:"batch_id,omitempty"`
	PhotoID   string `json:"photo_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// EventFromChange converts a session change notification.
func EventFromChange(c session.Change) Event {
	return Event{
		Type:      c.Kind,
		BatchID:   c.BatchID,
		PhotoID:   c.PhotoID,
		Timestamp: time.Now().UnixMilli(),
	}
}

type Client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to every connected websocket client.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	quit       chan struct{}
	quitOnce   sync.Once
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		quit:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.drop(client)
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// slow reader
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) drop(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

// Close stops Run and disconnects every client.
func (h *Hub) Close() {
	h.quitOnce.Do(func() { close(h.quit) })
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(event Event) {
	encoded, err := json.Marshal(event)
	if err != nil {
		log.Printf("realtime: failed to marshal event: %v", err)
		return
	}
	select {
	case h.broadcast <- encoded:
	default:
		log.Printf("realtime: dropping event, broadcast channel full")
	}
}

// Publish is a session change callback.
func (h *Hub) Publish(c session.Change) {
	h.Broadcast(EventFromChange(c))
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the connection and registers a client
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("realtime: websocket upgrade error: %v", err)
		return
	}
	client := &Client{conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- client:
	case <-h.quit:
		conn.Close()
		return
	}

	go func() {
		for msg := range client.send {
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
		client.conn.Close()
	}()

	// the UI never sends anything; reading only notices the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}
