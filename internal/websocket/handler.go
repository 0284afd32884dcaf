package websocket

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"prolink-chat/internal/services"
)

const (
	CloseReasonAuthRequired = "Authentication required"
	CloseReasonAuthFailed   = "Authentication failed"
	CloseReasonRateLimited  = "Too many connections"
)

type Authenticator interface {
	Authenticate(token string) (services.Identity, error)
}

// ConnectLimiter caps how often a user may open new connections.
type ConnectLimiter interface {
	AllowConnect(ctx context.Context, userID uuid.UUID) (bool, error)
}

type Handler struct {
	auth       Authenticator
	hub        *Hub
	dispatcher FrameHandler
	limiter    ConnectLimiter
	upgrader   websocket.Upgrader
	logger     *Logger
}

func NewHandler(auth Authenticator, hub *Hub, dispatcher FrameHandler, limiter ConnectLimiter, logger *Logger) *Handler {
	return &Handler{
		auth:       auth,
		hub:        hub,
		dispatcher: dispatcher,
		limiter:    limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func tokenFrom(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// Connect upgrades the request and admits the connection once its token checks out.
// Rejected connections are closed with a policy-violation code and never reach the hub.
func (h *Handler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	token := tokenFrom(c.Request)
	if token == "" {
		reject(conn, websocket.ClosePolicyViolation, CloseReasonAuthRequired)
		return
	}
	identity, err := h.auth.Authenticate(token)
	if err != nil {
		h.logger.Warn("authentication failed", uuid.Nil, "", zap.Error(err))
		reject(conn, websocket.ClosePolicyViolation, CloseReasonAuthFailed)
		return
	}

	ctx := c.Request.Context()
	if h.limiter != nil {
		allowed, err := h.limiter.AllowConnect(ctx, identity.UserID)
		if err != nil {
			h.logger.Warn("connect limiter unavailable", identity.UserID, "", zap.Error(err))
		} else if !allowed {
			reject(conn, websocket.CloseTryAgainLater, CloseReasonRateLimited)
			return
		}
	}

	client := NewClient(h.hub, conn, identity.UserID, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump(ctx, h.dispatcher)
}

func reject(conn *websocket.Conn, code int, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeWait))
	_ = conn.Close()
}
