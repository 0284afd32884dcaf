package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"prolink-chat/config"
	"prolink-chat/internal/handler"
	"prolink-chat/internal/metrics"
	"prolink-chat/internal/middleware"
	"prolink-chat/internal/transport/httpdto"
	"prolink-chat/internal/websocket"
	"prolink-chat/pkg/logger"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Messages      *handler.MessageHandler
	Threads       *handler.ThreadHandler
	Notifications *handler.NotificationHandler
	WebSocket     *websocket.Handler
}

// ConnectionStats reports the live websocket population of this process.
type ConnectionStats interface {
	ConnectionCount() int64
	OnlineCount() int64
}

// Deps are the cross-cutting pieces the routes need besides handlers.
type Deps struct {
	Auth           middleware.Authenticator
	MessageLimiter middleware.MessageLimiter
	Metrics        *metrics.Collectors
	// Health reports whether the backing stores answer.
	Health      func(ctx context.Context) error
	Connections ConnectionStats
}

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Deps) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware(s.config.CORSAllowedOrigins))
	s.engine.Use(middleware.LoggingMiddleware(s.logger, deps.Metrics))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				httpdto.Fail(c, http.StatusServiceUnavailable, err.Error(), "UNHEALTHY")
				return
			}
		}
		body := gin.H{"status": "healthy"}
		if deps.Connections != nil {
			body["connections"] = deps.Connections.ConnectionCount()
			body["onlineUsers"] = deps.Connections.OnlineCount()
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(body))
	})

	if s.config.MetricsEnabled && deps.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	s.engine.GET("/v1/ws", handlers.WebSocket.Connect)

	v1 := s.engine.Group("/v1", middleware.AuthMiddleware(deps.Auth))

	send := []gin.HandlerFunc{handlers.Messages.Send}
	if deps.MessageLimiter != nil {
		send = append([]gin.HandlerFunc{middleware.MessageRateLimitMiddleware(deps.MessageLimiter, s.logger)}, send...)
	}

	messages := v1.Group("/messages")
	{
		messages.POST("", send...)
		messages.GET("/search", handlers.Messages.Search)
		messages.DELETE("/:id", handlers.Messages.Delete)
		messages.GET("/:id/context", handlers.Messages.Context)
		messages.POST("/:id/reactions", handlers.Messages.AddReaction)
		messages.GET("/:id/reactions", handlers.Messages.Reactions)
		messages.POST("/:id/thread", handlers.Threads.Create)
	}

	conversations := v1.Group("/conversations")
	{
		conversations.GET("", handlers.Messages.Conversations)
		conversations.GET("/:userId/messages", handlers.Messages.ConversationMessages)
		conversations.POST("/:userId/read", handlers.Messages.MarkConversationRead)
	}

	threads := v1.Group("/threads")
	{
		threads.GET("/:id", handlers.Threads.Get)
		threads.PATCH("/:id", handlers.Threads.UpdateStatus)
		threads.POST("/:id/participants", handlers.Threads.AddParticipant)
		threads.DELETE("/:id/participants/:userId", handlers.Threads.RemoveParticipant)
	}

	notifications := v1.Group("/notifications")
	{
		notifications.GET("", handlers.Notifications.List)
		notifications.POST("", handlers.Notifications.Create)
		notifications.DELETE("", handlers.Notifications.ClearAll)
		notifications.GET("/unread-count", handlers.Notifications.UnreadCount)
		notifications.POST("/read", handlers.Notifications.MarkRead)
		notifications.POST("/read-all", handlers.Notifications.MarkAllRead)
		notifications.GET("/preferences", handlers.Notifications.Preferences)
		notifications.PUT("/preferences", handlers.Notifications.UpdatePreferences)
		notifications.DELETE("/:id", handlers.Notifications.Delete)
	}
}

// Run serves until ctx is done, then shuts down gracefully within five seconds.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("error in starting the server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Infof("Quitting signal received.. Shutting down after 5 seconds")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
		return err
	}

	s.logger.Infof("Server stopped gracefully")
	return nil
}
