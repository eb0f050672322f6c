// Package websocket broadcasts scan and anonymization events to dashboard
// clients.
package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Dashboard connections are same-host in practice; origin checks
		// belong in a fronting proxy
		return true
	},
}

// HubConfig controls which events are broadcast
type HubConfig struct {
	BroadcastScans          bool
	BroadcastAnonymizations bool
	BroadcastSystem         bool
	MaxConnections          int
}

// Hub maintains the set of active clients and broadcasts events to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	config     *HubConfig
	logger     *zap.Logger

	mu    sync.RWMutex
	stats HubStats
}

// Client is one connected dashboard peer
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Event
}

// NewHub creates a hub
func NewHub(config *HubConfig, logger *zap.Logger) *Hub {
	if config == nil {
		config = &HubConfig{
			BroadcastScans:          true,
			BroadcastAnonymizations: true,
			BroadcastSystem:         true,
			MaxConnections:          100,
		}
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		config:     config,
		logger:     logger,
	}
}

// Run processes register/unregister/broadcast requests until the hub stops
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.stats.TotalConnections++
			h.stats.ActiveConnections = int64(len(h.clients))
			h.mu.Unlock()
			h.logger.Debug("WebSocket client connected",
				zap.Int("active", len(h.clients)))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.stats.ActiveConnections = int64(len(h.clients))
			h.mu.Unlock()
			h.logger.Debug("WebSocket client disconnected",
				zap.Int("active", len(h.clients)))

		case event := <-h.broadcast:
			h.mu.Lock()
			h.stats.TotalBroadcasts++
			for client := range h.clients {
				select {
				case client.send <- event:
				default:
					// Slow client; drop it rather than block the hub
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.stats.ActiveConnections = int64(len(h.clients))
			h.mu.Unlock()
		}
	}
}

// BroadcastScan publishes a scan summary event
func (h *Hub) BroadcastScan(event ScanEvent) {
	if !h.config.BroadcastScans {
		return
	}
	h.publish(Event{Type: EventScanCompleted, Timestamp: time.Now(), Data: event})
}

// BroadcastAnonymization publishes an anonymization summary event
func (h *Hub) BroadcastAnonymization(event AnonymizationEvent) {
	if !h.config.BroadcastAnonymizations {
		return
	}
	h.publish(Event{Type: EventAnonymizationCompleted, Timestamp: time.Now(), Data: event})
}

// BroadcastSystem publishes a system message
func (h *Hub) BroadcastSystem(message string) {
	if !h.config.BroadcastSystem {
		return
	}
	h.publish(Event{Type: EventSystem, Timestamp: time.Now(), Data: message})
}

func (h *Hub) publish(event Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Event dropped: broadcast queue full",
			zap.String("type", string(event.Type)))
	}
}

// Stats returns a snapshot of hub statistics
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

// HandleWebSocket upgrades an HTTP request to a WebSocket connection
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	active := len(h.clients)
	h.mu.RUnlock()
	if h.config.MaxConnections > 0 && active >= h.config.MaxConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan Event, 16),
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump discards inbound messages and enforces the pong deadline
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump forwards events to the peer and keeps the connection alive
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
