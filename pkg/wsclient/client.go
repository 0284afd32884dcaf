// Package wsclient is a reconnecting client for the live event transport.
package wsclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"prolink-chat/internal/events"
	"prolink-chat/pkg/logger"
)

const (
	DefaultBaseDelay   = time.Second
	DefaultMaxAttempts = 5
	writeWait          = 10 * time.Second
)

var ErrNotConnected = errors.New("wsclient: not connected")

type State string

const (
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	// StateStopped means reconnection gave up; only an explicit Connect starts again.
	StateStopped      State = "stopped"
	StateDisconnected State = "disconnected"
)

type Config struct {
	// URL of the websocket endpoint, e.g. ws://localhost:8080/v1/ws
	URL         string
	Token       string
	BaseDelay   time.Duration
	MaxAttempts int
	Dialer      *websocket.Dialer
	Logger      *logger.Logger
}

// Handler receives the raw payload of one server event.
type Handler func(payload json.RawMessage)

type Client struct {
	cfg Config

	mu       sync.Mutex
	conn     *websocket.Conn
	running  bool
	closing  bool
	stop     chan struct{}
	handlers map[string][]Handler
	onState  func(State, int)

	writeMu sync.Mutex
	after   func(time.Duration) <-chan time.Time
	log     *zap.Logger
}

func New(cfg Config) *Client {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &Client{
		cfg:      cfg,
		handlers: make(map[string][]Handler),
		after:    time.After,
		log:      cfg.Logger.Named("wsclient").Logger,
	}
}

// Backoff is the delay before reconnect attempt n (1-based): base * 2^(n-1).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

// On registers h for events of eventType. Handlers run on the read goroutine.
func (c *Client) On(eventType string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = append(c.handlers[eventType], h)
}

// OnState registers a callback for state changes. attempt is set while reconnecting.
func (c *Client) OnState(fn func(state State, attempt int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

func (c *Client) setState(s State, attempt int) {
	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(s, attempt)
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("wsclient: parse url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.cfg.Token)
	u.RawQuery = q.Encode()

	conn, _, err := c.cfg.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("wsclient: dial: %w", err)
	}
	return conn, nil
}

// Connect dials the server and keeps the connection alive in the background until
// Close, ctx cancellation or the reconnect budget runs out. It is a no-op while a
// connection loop is already running.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.running = true
	c.closing = false
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	c.setState(StateConnected, 0)
	go c.loop(ctx, conn, stop)
	return nil
}

func (c *Client) loop(ctx context.Context, conn *websocket.Conn, stop chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.conn = nil
		c.mu.Unlock()
	}()

	for {
		err := c.serve(conn)
		if c.isClosing() || ctx.Err() != nil {
			c.setState(StateDisconnected, 0)
			return
		}
		if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			c.log.Warn("server rejected credentials", zap.Error(err))
			c.setState(StateStopped, 0)
			return
		}

		conn = nil
		for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
			c.setState(StateReconnecting, attempt)
			select {
			case <-c.after(Backoff(c.cfg.BaseDelay, attempt)):
			case <-stop:
				c.setState(StateDisconnected, 0)
				return
			case <-ctx.Done():
				c.setState(StateDisconnected, 0)
				return
			}
			next, err := c.dial(ctx)
			if err != nil {
				c.log.Warn("reconnect failed", zap.Int("attempt", attempt), zap.Error(err))
				continue
			}
			conn = next
			break
		}
		if conn == nil {
			c.log.Error("giving up reconnecting", zap.Int("attempts", c.cfg.MaxAttempts))
			c.setState(StateStopped, c.cfg.MaxAttempts)
			return
		}
		c.setState(StateConnected, 0)
	}
}

// serve reads and dispatches events until the connection fails.
func (c *Client) serve(conn *websocket.Conn) error {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var frame events.ClientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.log.Warn("dropping malformed event", zap.Error(err))
			continue
		}
		c.mu.Lock()
		handlers := append([]Handler(nil), c.handlers[frame.Type]...)
		c.mu.Unlock()
		for _, h := range handlers {
			h(frame.Payload)
		}
	}
}

func (c *Client) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

func (c *Client) write(frame events.Event) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}

func (c *Client) SendTyping(recipientID uuid.UUID, isTyping bool) error {
	return c.write(events.New(events.FrameTyping, events.TypingFrame{RecipientID: recipientID, IsTyping: isTyping}))
}

func (c *Client) SendReadMessages(senderID uuid.UUID) error {
	return c.write(events.New(events.FrameReadMessages, events.ReadMessagesFrame{SenderID: senderID}))
}

// Close ends the connection and stops reconnecting.
func (c *Client) Close() {
	c.mu.Lock()
	c.closing = true
	conn := c.conn
	if c.stop != nil {
		select {
		case <-c.stop:
		default:
			close(c.stop)
		}
	}
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
}
