package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"prolink-chat/internal/services"
	"prolink-chat/internal/transport/httpdto"
	"prolink-chat/pkg/logger"
)

// ErrorHandler renders the last error attached with c.Error when the handler wrote
// nothing itself.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := services.HTTPStatus(err)
		if status >= 500 && l != nil {
			l.WithContext(c.Request.Context()).Error("request error", zap.Error(err))
		}
		if c.Writer.Written() {
			return
		}
		msg := err.Error()
		if status >= 500 {
			msg = "internal server error"
		}
		httpdto.Fail(c, status, msg, services.ErrorCode(err))
	}
}
