package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"eeg-monitor/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = (PongWait * 9) / 10
	MaxMessageSize = 512
	BufferSize     = 1024
)

// Push message types
const (
	TypeWelcome         = "welcome"
	TypeTick            = "tick"
	TypeState           = "state"
	TypeSessionsCleared = "sessions_cleared"
	TypePong            = "pong"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  BufferSize,
	WriteBufferSize: BufferSize,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client a connected WebSocket client
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	// nil means every broadcast type
	topics map[string]bool
}

type envelope struct {
	topic string
	data  []byte
}

// Hub keeps the set of active clients and fans out broadcasts
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	mutex      sync.RWMutex
	running    bool

	state  func() models.ConnectionState
	logger zerolog.Logger
}

// NewHub creates a hub. state, when set, is embedded in the welcome message.
func NewHub(logger zerolog.Logger, state func() models.ConnectionState) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		state:      state,
		logger:     logger.With().Str("component", "websocket").Logger(),
	}
}

// Run serves the hub until Stop is called
func (h *Hub) Run() {
	h.mutex.Lock()
	h.running = true
	h.mutex.Unlock()

	for {
		select {
		case <-h.quit:
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()

			h.logger.Info().Str("client_id", client.id).Msg("client connected")

			welcome := map[string]interface{}{
				"client_id": client.id,
				"timestamp": time.Now().Unix(),
				"status":    "connected",
			}
			if h.state != nil {
				welcome["state"] = h.state()
			}
			client.sendMessage(models.WebSocketMessage{Type: TypeWelcome, Data: welcome})

		case client := <-h.unregister:
			h.mutex.Lock()
			h.removeLocked(client)
			h.mutex.Unlock()

			h.logger.Info().Str("client_id", client.id).Msg("client disconnected")

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if !client.wants(message.topic) {
					continue
				}
				select {
				case client.send <- message.data:
				default:
					h.logger.Warn().Str("client_id", client.id).Msg("send buffer full, dropping client")
					h.removeLocked(client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Stop closes every client connection and ends Run
func (h *Hub) Stop() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.running {
		return
	}
	h.running = false
	close(h.quit)

	for client := range h.clients {
		close(client.send)
		client.conn.Close()
	}
	h.clients = make(map[*Client]bool)
}

// HandleWebSocket upgrades the connection and registers the client
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		id:   uuid.NewString(),
	}

	select {
	case h.register <- client:
	case <-h.quit:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// OnTick pushes one generator tick
func (h *Hub) OnTick(tick models.Tick) {
	h.broadcastMessage(models.WebSocketMessage{Type: TypeTick, Data: tick})
}

// OnState pushes a connection state change
func (h *Hub) OnState(state models.ConnectionState) {
	h.broadcastMessage(models.WebSocketMessage{Type: TypeState, Data: state})
}

// OnSessionsCleared tells clients the session list was emptied
func (h *Hub) OnSessionsCleared() {
	h.broadcastMessage(models.WebSocketMessage{
		Type: TypeSessionsCleared,
		Data: map[string]interface{}{"timestamp": time.Now().Unix()},
	})
}

// ConnectedClients returns the number of connected clients
func (h *Hub) ConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.clients)
}

func (h *Hub) broadcastMessage(message models.WebSocketMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error().Err(err).Str("type", message.Type).Msg("marshal websocket message")
		return
	}

	select {
	case h.broadcast <- envelope{topic: message.Type, data: data}:
	default:
		h.logger.Warn().Str("type", message.Type).Msg("broadcast channel full, message dropped")
	}
}

func (h *Hub) removeLocked(client *Client) {
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn().Err(err).Str("client_id", c.id).Msg("websocket read error")
			}
			break
		}

		c.handleClientMessage(message)
	}
}

// writePump writes one frame per message
func (c *Client) writePump() {
	ticker := time.NewTicker(PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendMessage queues a message for this client only. Callers other than
// Run must hold no hub lock.
func (c *Client) sendMessage(message models.WebSocketMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		c.hub.logger.Error().Err(err).Msg("marshal websocket message")
		return
	}

	c.hub.mutex.Lock()
	defer c.hub.mutex.Unlock()

	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.removeLocked(c)
	}
}

// wants reports whether the client receives broadcasts of the given type
func (c *Client) wants(topic string) bool {
	if c.topics == nil {
		return true
	}
	return c.topics[topic]
}

type subscription struct {
	Topics []string `json:"topics"`
}

func (c *Client) handleClientMessage(message []byte) {
	var msg struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &msg); err != nil {
		c.hub.logger.Warn().Err(err).Str("client_id", c.id).Msg("invalid client message")
		return
	}

	switch msg.Type {
	case "ping":
		c.sendMessage(models.WebSocketMessage{
			Type: TypePong,
			Data: map[string]interface{}{"timestamp": time.Now().Unix()},
		})

	case "subscribe", "unsubscribe":
		var sub subscription
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &sub); err != nil {
				c.hub.logger.Warn().Err(err).Str("client_id", c.id).Msg("invalid subscription")
				return
			}
		}
		c.updateTopics(msg.Type == "subscribe", sub.Topics)
		c.hub.logger.Debug().Str("client_id", c.id).Str("type", msg.Type).Strs("topics", sub.Topics).Msg("subscription changed")

	default:
		c.hub.logger.Warn().Str("client_id", c.id).Str("type", msg.Type).Msg("unknown client message type")
	}
}

// updateTopics narrows or widens the broadcast filter. Subscribing with no
// topics restores the default of every type.
func (c *Client) updateTopics(subscribe bool, topics []string) {
	c.hub.mutex.Lock()
	defer c.hub.mutex.Unlock()

	if subscribe {
		if len(topics) == 0 {
			c.topics = nil
			return
		}
		if c.topics == nil {
			c.topics = make(map[string]bool)
		}
		for _, topic := range topics {
			c.topics[topic] = true
		}
		return
	}

	if c.topics == nil {
		c.topics = map[string]bool{
			TypeTick:            true,
			TypeState:           true,
			TypeSessionsCleared: true,
		}
	}
	for _, topic := range topics {
		delete(c.topics, topic)
	}
}
