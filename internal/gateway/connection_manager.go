package gateway

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager owns every live WebSocket connection and the per-room
// broadcast groups. A group is the subscriber set of one room, addressed
// by room id; membership is the only state here, connections own their
// own lifecycle.
type ConnectionManager struct {
	roomConnections map[string]map[*Connection]bool
	mu              sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
}

// Connection represents one WebSocket client. A connection may be
// subscribed to any number of rooms at once.
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// ConnectionConfig holds tunables for WebSocket connections.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Room access is gated by capability tokens, not origin.
			return true
		},
	}
}

// NewConnectionManager creates a connection manager with empty groups.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		roomConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// UpgradeConnection upgrades an HTTP request to a WebSocket connection
// and starts its pumps. When accessID is non-empty the connection is
// subscribed to the matching room before any client message is read, so
// the initial room state always arrives first.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, dispatcher *Dispatcher, accessID string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 256),
		Manager:     cm,
		ConnectedAt: time.Now(),
		done:        make(chan struct{}),
	}

	go connection.writePump()

	if accessID != "" {
		dispatcher.Subscribe(connection, accessID)
	}

	go connection.readPump(dispatcher)

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", conn.RemoteAddr().String()).
		Msg("WebSocket connection established")

	return nil
}

// Subscribe adds a connection to a room's broadcast group. Subscribing
// twice is idempotent.
func (cm *ConnectionManager) Subscribe(roomID string, conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	group := cm.roomConnections[roomID]
	if group == nil {
		group = make(map[*Connection]bool)
		cm.roomConnections[roomID] = group
	}
	group[conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("room_id", roomID).
		Int("subscribers", len(group)).
		Msg("connection subscribed")
}

// Unsubscribe removes a connection from a room's broadcast group. It is a
// no-op if the connection is not subscribed.
func (cm *ConnectionManager) Unsubscribe(roomID string, conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.removeLocked(roomID, conn)
}

// DropConnection removes a connection from every room's group. This is
// the only cleanup path for a closed client; no notice is sent, the
// connection is gone.
func (cm *ConnectionManager) DropConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for roomID, group := range cm.roomConnections {
		if group[conn] {
			cm.removeLocked(roomID, conn)
		}
	}
}

// Publish delivers a payload to every connection currently subscribed to
// the room, including the sender when self-subscribed. Publishing to a
// room with no subscribers is a no-op; no delivery order is guaranteed
// across receivers.
func (cm *ConnectionManager) Publish(roomID string, payload []byte) {
	if payload == nil {
		return
	}

	cm.mu.RLock()
	group := cm.roomConnections[roomID]
	targets := make([]*Connection, 0, len(group))
	for conn := range group {
		targets = append(targets, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range targets {
		conn.enqueue(payload)
	}

	log.Debug().
		Str("room_id", roomID).
		Int("subscribers", len(targets)).
		Msg("message published")
}

// EvictRoom notifies each subscriber of the room exactly once with an
// unsubscribe notice and removes the whole broadcast group. Used by the
// inactivity reaper.
func (cm *ConnectionManager) EvictRoom(roomID string) {
	cm.mu.Lock()
	group := cm.roomConnections[roomID]
	delete(cm.roomConnections, roomID)
	cm.mu.Unlock()

	if len(group) == 0 {
		return
	}

	notice := encode(AckMessage{Type: TypeUnsubscribeSuccess})
	for conn := range group {
		conn.enqueue(notice)
	}

	log.Info().
		Str("room_id", roomID).
		Int("subscribers", len(group)).
		Msg("room evicted")
}

// GroupStats returns the number of active broadcast groups and the total
// subscriptions across them.
func (cm *ConnectionManager) GroupStats() (groups, subscriptions int) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	for _, group := range cm.roomConnections {
		subscriptions += len(group)
	}
	return len(cm.roomConnections), subscriptions
}

func (cm *ConnectionManager) removeLocked(roomID string, conn *Connection) {
	group, ok := cm.roomConnections[roomID]
	if !ok {
		return
	}
	delete(group, conn)
	if len(group) == 0 {
		delete(cm.roomConnections, roomID)
	}
}

// enqueue hands a payload to the write pump without blocking. A full send
// buffer means the client stopped reading; close the socket and let the
// read pump clean up the memberships.
func (c *Connection) enqueue(payload []byte) {
	if payload == nil {
		return
	}
	select {
	case c.Send <- payload:
	case <-c.done:
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Msg("send buffer full, closing connection")
		c.close()
	}
}

// close shuts the underlying socket down exactly once. The Send channel
// is never closed; the write pump exits through the done channel instead.
func (c *Connection) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}

// writePump serializes all writes to the WebSocket connection and keeps
// the client alive with periodic pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// readPump reads client frames and hands them to the dispatcher. When the
// transport reports close the connection is removed from every room's
// subscriber set.
func (c *Connection) readPump(dispatcher *Dispatcher) {
	defer func() {
		c.Manager.DropConnection(c)
		c.close()
		log.Info().Str("connection_id", c.ID).Msg("connection closed")
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close")
			}
			break
		}

		dispatcher.Dispatch(c, message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
