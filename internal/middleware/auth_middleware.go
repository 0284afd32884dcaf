package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"prolink-chat/internal/services"
	"prolink-chat/internal/transport/httpdto"
	"prolink-chat/pkg/logger"
)

type Authenticator interface {
	Authenticate(token string) (services.Identity, error)
}

func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := auth.Authenticate(extractBearer(c))
		if err != nil {
			httpdto.Fail(c, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
			c.Abort()
			return
		}

		ctx := services.WithUserContext(c.Request.Context(), identity)
		ctx = context.WithValue(ctx, logger.UserIdKey, identity.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
