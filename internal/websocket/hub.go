package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/tiendaweb/tienda-backend/pkg/logger"
)

const (
	// Inbound messages allowed per client per second.
	maxMessagesPerSecond = 10

	sendBufferSize = 16
)

// Message types exchanged with dashboard clients.
const (
	TypeStats   = "stats"
	TypeRefresh = "refresh"
	TypeError   = "error"
)

// Envelope is the JSON frame sent to clients.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// ClientMessage is a frame received from a client.
type ClientMessage struct {
	Type string `json:"type"`
}

// SnapshotFunc produces the payload pushed to every client.
type SnapshotFunc func() (interface{}, error)

// Client is one websocket session.
type Client struct {
	Hub    *Hub
	Conn   *Conn
	UserID uint
	Send   chan []byte

	messageCount  int
	lastResetTime time.Time
	rateMu        sync.Mutex
}

func NewClient(hub *Hub, conn *Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBufferSize),
	}
}

// Hub fans dashboard snapshots out to connected clients.
type Hub struct {
	clients  map[*Client]bool
	snapshot SnapshotFunc

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	// done is closed when Run returns; stopped is set under stopMu once no
	// Register can still be in flight.
	done    chan struct{}
	stopMu  sync.RWMutex
	stopped bool

	mu sync.RWMutex
}

func NewHub(snapshot SnapshotFunc) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		snapshot:   snapshot,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast until ctx is done, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.stop()
			logger.Info("WebSocket hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			logger.Info("WebSocket client registered", map[string]interface{}{
				"user_id":       client.UserID,
				"total_clients": total,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			remaining := len(h.clients)
			h.mu.Unlock()
			logger.Info("WebSocket client unregistered", map[string]interface{}{
				"user_id":           client.UserID,
				"remaining_clients": remaining,
			})

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Slow consumer; drop it rather than stall everyone else.
					delete(h.clients, client)
					close(client.Send)
					logger.Warn("Client send buffer full, disconnecting", map[string]interface{}{
						"user_id": client.UserID,
					})
				}
			}
			h.mu.Unlock()
		}
	}
}

// PushEvery broadcasts a fresh snapshot every interval while clients are
// connected. It returns when ctx is done.
func (h *Hub) PushEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.ClientCount() == 0 {
				continue
			}
			data, err := h.snapshotMessage()
			if err != nil {
				continue
			}
			h.Broadcast(data)
		}
	}
}

// Broadcast queues message for every client, dropping it when the hub is
// backed up.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	default:
		logger.Warn("Broadcast channel full, message dropped")
	}
}

// Attach queues the current snapshot for a new client and registers it, so
// the first frame a client sees is the current state.
func (h *Hub) Attach(client *Client) {
	client.Send <- h.snapshotOrError()
	h.Register(client)
}

// SendSnapshot sends the current snapshot to a registered client.
func (h *Hub) SendSnapshot(client *Client) {
	data := h.snapshotOrError()

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.Send <- data:
	default:
	}
}

func (h *Hub) snapshotOrError() []byte {
	data, err := h.snapshotMessage()
	if err != nil {
		data, _ = json.Marshal(Envelope{Type: TypeError, Data: "No se pudieron obtener las estadísticas"})
	}
	return data
}

func (h *Hub) snapshotMessage() ([]byte, error) {
	payload, err := h.snapshot()
	if err != nil {
		logger.Error("Failed to build dashboard snapshot", err)
		return nil, err
	}
	return json.Marshal(Envelope{Type: TypeStats, Data: payload})
}

// stop releases blocked Register/Unregister calls and closes clients that
// were queued but never served.
func (h *Hub) stop() {
	close(h.done)

	h.stopMu.Lock()
	h.stopped = true
	h.stopMu.Unlock()

	for {
		select {
		case client := <-h.register:
			close(client.Send)
		default:
			return
		}
	}
}

// Register adds client to the hub. Once the hub has stopped the client is
// closed instead.
func (h *Hub) Register(client *Client) {
	h.stopMu.RLock()
	defer h.stopMu.RUnlock()

	if h.stopped {
		close(client.Send)
		return
	}
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister removes client. It never blocks once the hub has stopped, since
// Run already closed every client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleClientMessage answers a refresh request with an immediate snapshot.
func (h *Hub) HandleClientMessage(client *Client, message []byte) {
	client.rateMu.Lock()
	now := time.Now()
	if now.Sub(client.lastResetTime) >= time.Second {
		client.messageCount = 0
		client.lastResetTime = now
	}
	client.messageCount++
	count := client.messageCount
	client.rateMu.Unlock()

	if count > maxMessagesPerSecond {
		logger.Warn("Rate limit exceeded", map[string]interface{}{
			"user_id": client.UserID,
			"count":   count,
		})
		return
	}

	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		logger.Warn("Failed to parse client message", map[string]interface{}{
			"user_id": client.UserID,
			"error":   err.Error(),
		})
		return
	}

	if msg.Type == TypeRefresh {
		h.SendSnapshot(client)
	}
}
