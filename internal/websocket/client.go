package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"cardcircle/internal/domain/message"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 16 * 1024
)

// ClientMessage is a control frame sent by the client.
type ClientMessage struct {
	Type          string                `json:"type"`
	ContainerType message.ContainerType `json:"container_type,omitempty"`
	ContainerID   uuid.UUID             `json:"container_id,omitempty"`
}

// ServerMessage acknowledges control frames.
type ServerMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client represents a WebSocket client connection
type Client struct {
	ID       string
	UserID   uuid.UUID
	Conn     *websocket.Conn
	Send     chan []byte
	channels map[string]bool
	mu       sync.RWMutex
}

func NewClient(conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		ID:       uuid.New().String(),
		UserID:   userID,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		channels: make(map[string]bool),
	}
}

func (c *Client) markSubscribed(channel string) {
	c.mu.Lock()
	c.channels[channel] = true
	c.mu.Unlock()
}

func (c *Client) markUnsubscribed(channel string) {
	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()
}

func (c *Client) IsSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

// GetChannels returns a copy of all subscribed channels
func (c *Client) GetChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	return channels
}

// SendMessage queues msg without blocking. A full queue drops the message.
func (c *Client) SendMessage(msg []byte) {
	select {
	case c.Send <- msg:
	default:
	}
}

func (c *Client) sendJSON(v ServerMessage) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.SendMessage(data)
}

// WriteLoop drains Send and keeps the connection alive with pings.
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.close()
			return
		case msg, ok := <-c.Send:
			if !ok {
				c.mu.Lock()
				_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				c.mu.Unlock()
				c.close()
				return
			}
			c.mu.Lock()
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.Conn.WriteMessage(websocket.TextMessage, msg)
			c.mu.Unlock()
			if err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.mu.Lock()
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.Conn.WriteMessage(websocket.PingMessage, nil)
			c.mu.Unlock()
			if err != nil {
				c.close()
				return
			}
		}
	}
}

// ReadLoop handles control frames until the connection drops.
func (c *Client) ReadLoop(ctx context.Context, hub *Hub, authorizer *ChannelAuthorizer, log *WebSocketLogger) {
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("unexpected close", c.UserID, c.ID, err)
			}
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		c.handleMessage(ctx, raw, hub, authorizer, log)
	}
}

func (c *Client) handleMessage(ctx context.Context, raw []byte, hub *Hub, authorizer *ChannelAuthorizer, log *WebSocketLogger) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendJSON(ServerMessage{Type: "error", Error: "malformed message"})
		return
	}

	switch msg.Type {
	case "subscribe":
		channel, err := authorizer.CanSubscribe(ctx, c.UserID, msg.ContainerType, msg.ContainerID)
		if err != nil {
			log.Warn("subscribe denied", c.UserID, c.ID, zap.String("container_id", msg.ContainerID.String()), zap.Error(err))
			c.sendJSON(ServerMessage{Type: "error", Error: "subscription denied"})
			return
		}
		hub.Subscribe(c, channel)
		c.sendJSON(ServerMessage{Type: "subscribed", Channel: channel})
	case "unsubscribe":
		channel := authorizer.Channel(msg.ContainerType, msg.ContainerID)
		hub.Unsubscribe(c, channel)
		c.sendJSON(ServerMessage{Type: "unsubscribed", Channel: channel})
	case "ping":
		c.sendJSON(ServerMessage{Type: "pong"})
	default:
		log.Warn("unknown message type", c.UserID, c.ID, zap.String("msg_type", msg.Type))
		c.sendJSON(ServerMessage{Type: "error", Error: "unknown message type"})
	}
}

func (c *Client) close() {
	c.mu.Lock()
	_ = c.Conn.Close()
	c.mu.Unlock()
}
