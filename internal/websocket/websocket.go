package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kdashto/spinwheel/internal/auth"
	"github.com/kdashto/spinwheel/internal/logger"
	"github.com/kdashto/spinwheel/internal/models"
	"github.com/kdashto/spinwheel/internal/services"
)

const (
	sendBuffer   = 256
	directBuffer = 1024
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// userMessage is a message addressed to one user's clients
type userMessage struct {
	userID string
	msg    models.WSMessage
}

// Hub maintains the set of active clients and routes messages to them
type Hub struct {
	log        logger.Logger
	clients    map[*Client]bool
	direct     chan userMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
	spin       services.SpinServicer
}

var (
	_ services.Broadcaster = (*Hub)(nil)
	_ services.Presence    = (*Hub)(nil)
)

// Client is a middleman between the websocket connection and the hub.
// Anonymous clients have an empty userID and only get the signed-out
// wheel state on connect.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan models.WSMessage
	userID string
}

// New creates a new Hub instance with injected dependencies
func New(log logger.Logger, spin services.SpinServicer) *Hub {
	return &Hub{
		log:        log.With("component", "websocket"),
		clients:    make(map[*Client]bool),
		direct:     make(chan userMessage, directBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		spin:       spin,
	}
}

// Start begins the hub's main loop in a goroutine
func (h *Hub) Start() {
	go h.run()
}

// Stop ends the hub's main loop and closes every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// run handles client registration/unregistration and message routing
func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client connected", "user_id", client.userID, "total_clients", total)

			// Send the current wheel to the new client
			go func() {
				view := h.spin.View(context.Background(), client.userID)
				h.deliver(client, models.WSMessage{Type: models.MsgWheelState, Payload: view})
			}()

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client disconnected", "user_id", client.userID, "total_clients", total)

		case um := <-h.direct:
			h.fanOut(um.msg, func(c *Client) bool { return c.userID == um.userID })
		}
	}
}

// fanOut queues message on every client matching want
func (h *Hub) fanOut(message models.WSMessage, want func(*Client) bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for client := range h.clients {
		if !want(client) {
			continue
		}
		select {
		case client.send <- message:
		default:
			// Client's send channel is full, unregister
			go h.drop(client)
		}
	}
}

// deliver queues message on one client if it is still registered
func (h *Hub) deliver(client *Client, message models.WSMessage) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- message:
	default:
		go h.drop(client)
	}
}

func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// SendToUser implements services.Broadcaster. It never blocks the caller;
// messages are dropped when the hub is backed up.
func (h *Hub) SendToUser(userID, msgType string, payload interface{}) {
	select {
	case h.direct <- userMessage{userID: userID, msg: models.WSMessage{Type: msgType, Payload: payload}}:
	default:
		h.log.Warn("Dropping websocket message, hub is backed up", "user_id", userID, "type", msgType)
	}
}

// Connected reports whether userID has at least one open client
func (h *Hub) Connected(userID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for client := range h.clients {
		if client.userID == userID {
			return true
		}
	}
	return false
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "error", err)
			}
			break
		}

		// The page drives the wheel over HTTP; inbound frames are only logged
		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.hub.log.Debug("Received message", "type", msg.Type, "user_id", c.userID)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			msgBytes, err := json.Marshal(message)
			if err != nil {
				c.hub.log.Error("Failed to encode websocket message", "type", message.Type, "error", err)
				w.Close()
				continue
			}
			w.Write(msgBytes)

			if err := w.Close(); err != nil {
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

// ServeWs handles websocket requests from clients. The user is taken from
// the request context set by auth.Identify.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan models.WSMessage, sendBuffer),
		userID: auth.UserFromContext(r.Context()),
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in new goroutines
	go client.writePump()
	go client.readPump()
}
