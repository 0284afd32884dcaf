package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"prolink-chat/internal/services"
	"prolink-chat/internal/transport/httpdto"
)

// respondError renders a service error. Internal failures are attached to the
// context for ErrorHandler to log and never echo their text.
func respondError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		httpdto.Fail(c, status, "internal server error", services.ErrorCode(err))
		return
	}
	httpdto.Fail(c, status, err.Error(), services.ErrorCode(err))
}

func badRequest(c *gin.Context, msg string) {
	httpdto.Fail(c, http.StatusBadRequest, msg, "VALIDATION_FAILED")
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		httpdto.Fail(c, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return uuid.Nil, false
	}
	return userID, true
}

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(value)
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := parseUUID(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
