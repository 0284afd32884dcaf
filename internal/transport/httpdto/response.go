package httpdto

import (
	"github.com/gin-gonic/gin"

	"prolink-chat/pkg/logger"
)

// Response is the envelope of every JSON body. Error bodies carry the request id so a
// client report can be matched to the server log line.
type Response[T any] struct {
	Success   bool   `json:"success"`
	Data      T      `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func NewSuccessResponse[T any](data T) Response[T] {
	return Response[T]{
		Success: true,
		Data:    data,
	}
}

func NewErrorResponse(requestID, err, code string) Response[any] {
	return Response[any]{
		Success:   false,
		Error:     err,
		Code:      code,
		RequestID: requestID,
	}
}

// Fail writes an error envelope tagged with the id of the current request.
func Fail(c *gin.Context, status int, err, code string) {
	c.JSON(status, NewErrorResponse(logger.RequestID(c.Request.Context()), err, code))
}
