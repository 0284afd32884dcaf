package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait         = 10 * time.Second
	maxMessageSize    = 512 * 1024
	defaultSendBuffer = 256

	// Inbound frames per second a single connection may send, with burst.
	frameRate  = 10
	frameBurst = 30
)

// FrameHandler processes one inbound frame from an authenticated connection.
type FrameHandler interface {
	HandleFrame(ctx context.Context, userID uuid.UUID, data []byte) error
}

// Client is a single gorilla websocket connection registered with the hub.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	userID   uuid.UUID
	clientID string

	alive     atomic.Bool
	closeOnce sync.Once
	limiter   *rate.Limiter
	readWait  time.Duration

	connectedAt time.Time
	logger      *Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, logger *Logger) *Client {
	c := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, hub.sendBuffer),
		done:        make(chan struct{}),
		userID:      userID,
		clientID:    uuid.NewString(),
		limiter:     rate.NewLimiter(rate.Limit(frameRate), frameBurst),
		readWait:    2*hub.pingInterval + writeWait,
		connectedAt: time.Now(),
		logger:      logger,
	}
	c.alive.Store(true)
	return c
}

func (c *Client) ID() string        { return c.clientID }
func (c *Client) UserID() uuid.UUID { return c.userID }

func (c *Client) Enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) Ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *Client) ResetAlive() bool {
	return c.alive.Swap(false)
}

// Close stops the writer and closes the socket. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = c.conn.Close()
	})
}

// ReadPump reads frames until the connection fails, then unregisters the client.
func (c *Client) ReadPump(ctx context.Context, handler FrameHandler) {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.readWait))
	c.conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return c.conn.SetReadDeadline(time.Now().Add(c.readWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("websocket unexpected close", c.userID, c.clientID, err)
			}
			return
		}
		c.alive.Store(true)
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readWait))

		if !c.limiter.Allow() {
			c.logger.Warn("rate limit exceeded", c.userID, c.clientID)
			continue
		}
		if err := handler.HandleFrame(ctx, c.userID, message); err != nil {
			if errors.Is(err, ErrUnknownFrame) {
				c.logger.Warn("unknown message type", c.userID, c.clientID, zap.Error(err))
				continue
			}
			c.logger.Error("websocket handle message failed", c.userID, c.clientID, err)
		}
	}
}

// WritePump drains the send buffer. One frame per websocket message.
func (c *Client) WritePump() {
	defer c.Close()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("write failed", c.userID, c.clientID, zap.Error(err))
				c.hub.Unregister(c)
				return
			}
		}
	}
}
