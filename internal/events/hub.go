package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// client is one websocket subscriber. Its send channel is buffered; a
// subscriber that cannot keep up is disconnected rather than allowed to
// block the hub.
type client struct {
	id   string
	conn *websocket.Conn
	send chan Event
}

// Hub fans engine operation events out to websocket subscribers.
type Hub struct {
	cfg    Config
	logger *zap.Logger

	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client

	mu       sync.RWMutex
	upgrader websocket.Upgrader

	done      chan struct{}
	closeOnce sync.Once
}

// NewHub creates the event hub.
func NewHub(cfg Config, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Hub{
		cfg:        cfg,
		logger:     logger,
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// Run processes registration and broadcast traffic until Close.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		case event := <-h.broadcast:
			h.fanOut(event)
		}
	}
}

// Close stops the hub loop. Idempotent.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Broadcast queues an event for delivery; when the hub is saturated the
// event is dropped, never blocking the request path.
func (h *Hub) Broadcast(event Event) {
	if !h.cfg.Enabled {
		return
	}

	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Event channel full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

// HandleWebSocket upgrades the request and starts the client pumps.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !h.cfg.Enabled {
		http.Error(w, "event stream disabled", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket connection", zap.Error(err))
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Event, 64),
	}

	h.register <- c

	go h.writePump(c)
	go h.readPump(c)
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("Subscriber connected",
		zap.String("client_id", c.id),
		zap.Int("active", count),
	)

	h.Broadcast(Event{
		Type:      EventTypeConnection,
		Timestamp: time.Now(),
		Data:      ConnectionEvent{Action: "connected", ClientID: c.id},
	})
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}

	h.logger.Info("Subscriber disconnected",
		zap.String("client_id", c.id),
		zap.Int("active", count),
	)
}

func (h *Hub) fanOut(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			// Slow subscriber: drop the connection, not the hub.
			h.logger.Warn("Subscriber send buffer full, disconnecting",
				zap.String("client_id", c.id),
			)
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) writePump(c *client) {
	pingInterval := h.cfg.PingInterval
	if pingInterval <= 0 {
		pingInterval = 54 * time.Second
	}
	writeTimeout := h.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	pongTimeout := h.cfg.PongTimeout
	if pongTimeout <= 0 {
		pongTimeout = 60 * time.Second
	}
	maxMessageSize := h.cfg.MaxMessageSize
	if maxMessageSize <= 0 {
		maxMessageSize = 512
	}

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})

	// Subscribers are read-only; incoming frames are drained for control
	// handling and discarded.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
