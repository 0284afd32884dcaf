package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"prolink-chat/internal/domain/notification"
	"prolink-chat/internal/services"
	"prolink-chat/internal/transport/httpdto"
	prolink_errors "prolink-chat/pkg/errors"
)

type NotificationHandler struct {
	notifications *services.NotificationService
}

func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var q httpdto.ListNotificationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query")
		return
	}
	page, err := h.notifications.List(c.Request.Context(), userID, q.UnreadOnly, q.Page, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(page))
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CountResponse{Count: n}))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req httpdto.MarkNotificationsReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ids must hold between 1 and 100 notification ids")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := parseUUID(raw)
		if err != nil {
			badRequest(c, "invalid notification id "+raw)
			return
		}
		ids = append(ids, id)
	}
	n, err := h.notifications.MarkRead(c.Request.Context(), userID, ids)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CountResponse{Count: n}))
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.notifications.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CountResponse{Count: n}))
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *NotificationHandler) ClearAll(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.notifications.ClearAll(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CountResponse{Count: n}))
}

func (h *NotificationHandler) Preferences(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	prefs, err := h.notifications.Preferences(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(prefs))
}

func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	var req services.PreferenceUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	prefs, err := h.notifications.UpdatePreferences(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(prefs))
}

// Create records a notification for another user. Only collaborating services
// (reviews, moderation) holding the notifications:write scope may call it.
func (h *NotificationHandler) Create(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	if !services.HasScope(c.Request.Context(), services.ScopeNotificationsWrite) {
		respondError(c, prolink_errors.ErrForbidden)
		return
	}
	var req httpdto.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	targetID, err := parseUUID(req.UserID)
	if err != nil {
		badRequest(c, "invalid userId")
		return
	}
	n, err := h.notifications.Notify(c.Request.Context(), services.NotifyRequest{
		UserID:   targetID,
		Type:     notification.Type(req.Type),
		Title:    req.Title,
		Content:  req.Content,
		Payload:  req.Payload,
		Priority: notification.Priority(req.Priority),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if n == nil {
		c.JSON(http.StatusAccepted, httpdto.NewSuccessResponse[any](nil))
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(n))
}
