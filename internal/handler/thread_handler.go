package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"prolink-chat/internal/domain/message"
	"prolink-chat/internal/services"
	"prolink-chat/internal/transport/httpdto"
)

type ThreadHandler struct {
	threads *services.ThreadService
}

func NewThreadHandler(threads *services.ThreadService) *ThreadHandler {
	return &ThreadHandler{threads: threads}
}

func (h *ThreadHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	parentID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	thread, err := h.threads.CreateThread(c.Request.Context(), userID, parentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(thread))
}

func (h *ThreadHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	threadID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var q httpdto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid pagination")
		return
	}
	view, err := h.threads.GetThread(c.Request.Context(), userID, threadID, q.Page, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

func (h *ThreadHandler) AddParticipant(c *gin.Context) {
	var req httpdto.ThreadParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	threadID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	targetID, err := parseUUID(req.UserID)
	if err != nil {
		badRequest(c, "invalid userId")
		return
	}
	thread, err := h.threads.AddParticipant(c.Request.Context(), userID, threadID, targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(thread))
}

func (h *ThreadHandler) RemoveParticipant(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	threadID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	targetID, ok := paramUUID(c, "userId")
	if !ok {
		return
	}
	thread, err := h.threads.RemoveParticipant(c.Request.Context(), userID, threadID, targetID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(thread))
}

func (h *ThreadHandler) UpdateStatus(c *gin.Context) {
	var req httpdto.ThreadStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status must be one of active, archived, deleted")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	threadID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	thread, err := h.threads.UpdateStatus(c.Request.Context(), userID, threadID, message.ThreadStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(thread))
}
