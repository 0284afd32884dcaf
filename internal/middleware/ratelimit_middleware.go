package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"prolink-chat/internal/redis"
	"prolink-chat/internal/services"
	"prolink-chat/internal/transport/httpdto"
	"prolink-chat/pkg/logger"
)

type MessageLimiter interface {
	CheckMessage(ctx context.Context, userID uuid.UUID) (redis.RateLimitResult, error)
}

// MessageRateLimitMiddleware limits message sends per user. It runs after AuthMiddleware.
// When the limiter itself fails the request is let through.
func MessageRateLimitMiddleware(limiter MessageLimiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := services.UserIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		result, err := limiter.CheckMessage(c.Request.Context(), userID)
		if err != nil {
			l.WithContext(c.Request.Context()).Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			httpdto.Fail(c, http.StatusTooManyRequests, "message rate limit exceeded", "RATE_LIMITED")
			c.Abort()
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
