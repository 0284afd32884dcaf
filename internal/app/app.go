// Package app assembles the chat service from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"prolink-chat/config"
	"prolink-chat/internal/handler"
	"prolink-chat/internal/jobs"
	"prolink-chat/internal/metrics"
	"prolink-chat/internal/redis"
	"prolink-chat/internal/repository"
	"prolink-chat/internal/server"
	"prolink-chat/internal/services"
	"prolink-chat/internal/storage"
	"prolink-chat/internal/websocket"
	"prolink-chat/pkg/database"
	"prolink-chat/pkg/logger"
	"prolink-chat/pkg/validator"
)

type App struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *gorm.DB
	Redis   *goredis.Client
	Metrics *metrics.Collectors

	Hub           *websocket.Hub
	Auth          *services.AuthService
	Messages      *services.MessageService
	Delivery      *services.DeliveryService
	Typing        *services.TypingService
	Reactions     *services.ReactionService
	Threads       *services.ThreadService
	Notifications *services.NotificationService
	Search        *services.SearchService

	server    *server.Server
	presence  *redis.PresenceStore
	bridge    *websocket.RedisBridge
	limiter   *redis.RateLimiter
	retention *jobs.Retention
}

// Build connects the stores and wires every service. Redis and S3 are optional.
func Build(ctx context.Context, cfg *config.Config, l *logger.Logger) (*App, error) {
	db, err := database.Connect(database.Config{
		Host:     cfg.DBHost,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Name:     cfg.DBName,
		Port:     cfg.DBPort,
		LogLevel: cfg.DBLogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	a := &App{Config: cfg, Logger: l, DB: db}

	var reg *prometheus.Registry
	if cfg.MetricsEnabled {
		reg = prometheus.NewRegistry()
		a.Metrics = metrics.New(reg)
	}

	store := repository.NewStore(db, cfg.SearchLanguage)
	v := validator.New()

	a.Hub = websocket.NewHub(websocket.HubConfig{
		PingInterval:    cfg.WSPingInterval,
		MaxConnsPerUser: cfg.WSMaxConnsPerUser,
		SendBuffer:      cfg.WSSendBuffer,
	}, a.Metrics, websocket.NewLogger(l))

	var pusher services.Pusher = a.Hub
	var presence services.PresenceChecker = a.Hub
	if cfg.RedisEnabled {
		if err := a.wireRedis(ctx); err != nil {
			_ = database.Close(db)
			return nil, err
		}
		pusher = redis.NewClusterPusher(redis.NewPublisher(a.Redis), a.Hub, a.Metrics, l)
		presence = redis.NewClusterPresence(a.Hub, a.presence)
	}

	var signer services.AttachmentSigner
	if cfg.AttachmentsEnabled {
		s3, err := storage.NewClient(ctx, storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PresignTTL: cfg.S3PresignTTL,
		})
		if err != nil {
			l.Warnf("attachment signing disabled: %v", err)
		} else {
			signer = s3
		}
	}
	attachments := services.NewAttachmentService(signer, l)

	a.Auth = services.NewAuthService(cfg.JWTSecret, time.Duration(cfg.JWTExpiryMin)*time.Minute)
	a.Typing = services.NewTypingService(pusher, cfg.TypingExpiry, l)
	a.Delivery = services.NewDeliveryService(store, presence, pusher, a.Metrics, l)
	a.Notifications = services.NewNotificationService(store, pusher, v, a.Metrics, l)
	a.Threads = services.NewThreadService(store, pusher, attachments, l)
	a.Reactions = services.NewReactionService(store, pusher, a.Notifications, v, l)
	a.Search = services.NewSearchService(store, attachments, a.Metrics, l)
	a.Messages = services.NewMessageService(services.MessageServiceDeps{
		Store:         store,
		Pusher:        pusher,
		Delivery:      a.Delivery,
		Threads:       a.Threads,
		Notifications: a.Notifications,
		Search:        a.Search,
		Attachments:   attachments,
		Validator:     v,
		Metrics:       a.Metrics,
		Logger:        l,
	})

	if reg != nil {
		a.Metrics.RegisterGaugeFunc(reg, "typing_active", "Active typing indicators.", func() float64 {
			return float64(a.Typing.ActiveCount())
		})
	}

	a.Hub.OnDisconnect(func(userID uuid.UUID, _ string, last bool) {
		if last {
			a.Typing.CleanupUser(userID)
		}
	})

	if cfg.RetentionDays > 0 {
		a.retention, err = jobs.NewRetention(a.Notifications, jobs.RetentionConfig{
			Cron: cfg.RetentionCron,
			Days: cfg.RetentionDays,
		}, l)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("retention job: %w", err)
		}
	}

	return a, nil
}

func (a *App) wireRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, redis.Config{
		Host:     a.Config.RedisHost,
		Port:     a.Config.RedisPort,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	a.Redis = client
	a.presence = redis.NewPresenceStore(client, a.Config.PresenceTTL)
	a.limiter = redis.NewRateLimiter(client, redis.RateLimitConfig{
		MessageLimit:  a.Config.MessageRateLimit,
		MessageWindow: time.Minute,
		ConnectLimit:  a.Config.ConnectRateLimit,
		ConnectWindow: time.Minute,
	})
	a.bridge = websocket.NewRedisBridge(redis.NewSubscriber(client), a.Hub, websocket.NewLogger(a.Logger))

	log := a.Logger.Named("presence")
	a.Hub.OnConnect(func(userID uuid.UUID, handleID string, _ bool) {
		if err := a.presence.TrackConnection(context.Background(), userID, handleID); err != nil {
			log.Logger.Warn("track connection failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	})
	a.Hub.OnDisconnect(func(userID uuid.UUID, handleID string, _ bool) {
		if _, err := a.presence.RemoveConnection(context.Background(), userID, handleID); err != nil {
			log.Logger.Warn("remove connection failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	})
	return nil
}

// Server builds the HTTP surface. Call once.
func (a *App) Server() *server.Server {
	if a.server != nil {
		return a.server
	}

	deps := server.Deps{
		Auth:        a.Auth,
		Metrics:     a.Metrics,
		Connections: a.Hub,
		Health: func(ctx context.Context) error {
			if err := database.HealthCheck(ctx, a.DB); err != nil {
				return err
			}
			if a.Redis != nil {
				return a.Redis.Ping(ctx).Err()
			}
			return nil
		},
	}
	var connectLimiter websocket.ConnectLimiter
	if a.limiter != nil {
		deps.MessageLimiter = a.limiter
		connectLimiter = a.limiter
	}

	srv := server.New(a.Config, a.Logger)
	srv.SetupRoutes(&server.Handlers{
		Messages:      handler.NewMessageHandler(a.Messages, a.Delivery, a.Reactions, a.Search),
		Threads:       handler.NewThreadHandler(a.Threads),
		Notifications: handler.NewNotificationHandler(a.Notifications),
		WebSocket: websocket.NewHandler(a.Auth, a.Hub,
			websocket.NewDispatcher(a.Typing, a.Delivery), connectLimiter, websocket.NewLogger(a.Logger)),
	}, deps)
	a.server = srv
	return srv
}

// Run serves until ctx is cancelled, running the heartbeat, the redis bridge and the
// retention job alongside the HTTP server.
func (a *App) Run(ctx context.Context) error {
	srv := a.Server()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.Hub.Run(ctx)

	if a.bridge != nil {
		go a.bridge.Run(ctx)
		ttl := a.Config.PresenceTTL
		if ttl <= 0 {
			ttl = redis.DefaultPresenceTTL
		}
		go a.presence.RunRefresh(ctx, ttl/2, a.Hub.OnlineUsers, func(err error) {
			a.Logger.Warnf("presence refresh failed: %v", err)
		})
	}
	if a.retention != nil {
		go a.retention.Run(ctx)
	}

	return srv.Run(ctx)
}

// Close releases the stores. Safe to call on a partially built App.
func (a *App) Close() {
	if a.Typing != nil {
		a.Typing.Stop()
	}
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, database.Close(a.DB))
	}
	if err := errors.Join(errs...); err != nil {
		a.Logger.Errorf("closing stores: %v", err)
	}
	a.Logger.Sync()
}
