package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"relaychat/internal/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
)

// Client is a single websocket connection. One user may own several
// at once; each carries its own send buffer and room set.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	userID   uuid.UUID
	clientID string

	mu        sync.RWMutex
	rooms     map[uuid.UUID]bool
	closeOnce sync.Once

	connectedAt  time.Time
	lastActivity time.Time
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	now := time.Now()
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		done:         make(chan struct{}),
		userID:       userID,
		clientID:     uuid.New().String(),
		rooms:        make(map[uuid.UUID]bool),
		connectedAt:  now,
		lastActivity: now,
	}
}

// shutdown stops the connection exactly once. send is never closed;
// enqueue and writePump watch done instead, so a catch-up goroutine
// racing a disconnect cannot hit a closed channel.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

func (c *Client) addRoom(conversationID uuid.UUID) {
	c.mu.Lock()
	c.rooms[conversationID] = true
	c.mu.Unlock()
}

func (c *Client) removeRoom(conversationID uuid.UUID) {
	c.mu.Lock()
	delete(c.rooms, conversationID)
	c.mu.Unlock()
}

func (c *Client) inRoom(conversationID uuid.UUID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rooms[conversationID]
}

func (c *Client) roomList() []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]uuid.UUID, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

// enqueue hands a frame to the write pump without blocking. Frames for
// a shut-down connection are discarded; a full buffer means a slow
// consumer and the frame is dropped with a warning.
func (c *Client) enqueue(data []byte, logger *SocketLogger) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		logger.Warn("send buffer full, frame dropped", c.userID, c.clientID)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.lastActivity = time.Now()
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("unexpected close", c.userID, c.clientID, err)
			}
			return
		}
		c.lastActivity = time.Now()
		c.dispatch(raw)
	}
}

// dispatch routes one inbound frame. A handler failure never tears
// down the connection: it degrades to a logged error plus a failure
// ack when the frame asked for one.
func (c *Client) dispatch(raw []byte) {
	frame, err := events.DecodeFrame(raw)
	if err != nil {
		c.hub.logger.Warn("malformed frame", c.userID, c.clientID, zap.Error(err))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in %s handler: %v", frame.Type, r)
			c.hub.logger.Error("handler panic", c.userID, c.clientID, err)
			c.fail(frame, err)
		}
	}()

	switch frame.Type {
	case events.InTyping:
		err = c.hub.handleTyping(c, frame)
	case events.InJoinConversation:
		err = c.hub.handleJoinConversation(c, frame)
	case events.InLeaveConversation:
		err = c.hub.handleLeaveConversation(c, frame)
	case events.InSendMessage:
		// Acks itself, success and failure alike.
		c.hub.handleSendMessage(c, frame)
		return
	case events.InMarkConversationRead:
		err = c.hub.handleMarkConversationRead(c, frame)
	case events.InEditMessage:
		err = c.hub.handleEditMessage(c, frame)
	case events.InDeleteMessage:
		err = c.hub.handleDeleteMessage(c, frame)
	case events.InAddReaction:
		err = c.hub.handleAddReaction(c, frame)
	case events.InRemoveReaction:
		err = c.hub.handleRemoveReaction(c, frame)
	case events.InRequestMissedMessages:
		err = c.hub.handleRequestMissedMessages(c, frame)
	case events.InPing:
		c.hub.send(c, events.OutPong, events.PongPayload{Timestamp: time.Now()})
		return
	default:
		c.hub.logger.Warn("unknown frame type", c.userID, c.clientID,
			zap.String("frame_type", frame.Type))
		return
	}

	if err != nil {
		c.hub.logger.Error("frame handling failed", c.userID, c.clientID, err,
			zap.String("frame_type", frame.Type))
		c.fail(frame, err)
		return
	}
	c.ok(frame)
}

// ok answers an acked frame with a success ack; frames without an id
// get nothing.
func (c *Client) ok(frame events.Frame) {
	if frame.ID == "" {
		return
	}
	data, err := events.EncodeAck(frame.ID, events.OKAck{Success: true})
	if err != nil {
		c.hub.logger.Error("encode ack failed", c.userID, c.clientID, err)
		return
	}
	c.enqueue(data, c.hub.logger)
}

func (c *Client) fail(frame events.Frame, cause error) {
	if frame.ID == "" {
		return
	}
	data, err := events.EncodeAck(frame.ID, events.ErrorAck{Success: false, Error: cause.Error()})
	if err != nil {
		c.hub.logger.Error("encode ack failed", c.userID, c.clientID, err)
		return
	}
	c.enqueue(data, c.hub.logger)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
