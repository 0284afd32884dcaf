package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"prolink-chat/internal/domain/message"
	"prolink-chat/internal/services"
	"prolink-chat/internal/transport/httpdto"
)

type MessageHandler struct {
	messages  *services.MessageService
	delivery  *services.DeliveryService
	reactions *services.ReactionService
	search    *services.SearchService
}

func NewMessageHandler(messages *services.MessageService, delivery *services.DeliveryService, reactions *services.ReactionService, search *services.SearchService) *MessageHandler {
	return &MessageHandler{messages: messages, delivery: delivery, reactions: reactions, search: search}
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	userID, ok := currentUser(c)
	if !ok {
		return
	}

	recipientID, err := parseUUID(req.RecipientID)
	if err != nil {
		badRequest(c, "invalid recipientId")
		return
	}

	send := services.SendRequest{
		SenderID:    userID,
		RecipientID: recipientID,
		Content:     req.Content,
		MessageType: message.Type(req.MessageType),
		Attachments: req.Attachments,
		Metadata:    req.Metadata,
	}
	if req.ParentMessageID != "" {
		parentID, err := parseUUID(req.ParentMessageID)
		if err != nil {
			badRequest(c, "invalid parentMessageId")
			return
		}
		send.ParentMessageID = &parentID
	}

	msg, err := h.messages.Send(c.Request.Context(), send)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(msg))
}

func (h *MessageHandler) Conversations(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var q httpdto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid pagination")
		return
	}
	items, err := h.messages.ListConversations(c.Request.Context(), userID, q.Page, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"conversations": items}))
}

func (h *MessageHandler) ConversationMessages(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	otherID, ok := paramUUID(c, "userId")
	if !ok {
		return
	}
	var q httpdto.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid pagination")
		return
	}
	page, err := h.messages.ConversationMessages(c.Request.Context(), userID, otherID, q.Page, q.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(page))
}

func (h *MessageHandler) MarkConversationRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	otherID, ok := paramUUID(c, "userId")
	if !ok {
		return
	}
	n, err := h.delivery.MarkConversationRead(c.Request.Context(), userID, otherID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkedReadResponse{Count: n}))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	if err := h.messages.Delete(c.Request.Context(), userID, messageID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse[any](nil))
}

func (h *MessageHandler) Context(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var q httpdto.ContextQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid n")
		return
	}
	result, err := h.messages.Context(c.Request.Context(), userID, messageID, q.N)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}

func (h *MessageHandler) AddReaction(c *gin.Context) {
	var req httpdto.ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.reactions.AddReaction(c.Request.Context(), userID, messageID, req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(result))
}

func (h *MessageHandler) Reactions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	groups, err := h.reactions.Reactions(c.Request.Context(), userID, messageID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"reactions": groups}))
}

func (h *MessageHandler) Search(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var q httpdto.SearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "q is required")
		return
	}

	req := services.SearchRequest{Terms: q.Q, Page: q.Page, Limit: q.Limit}
	if q.ConversationID != "" {
		id, err := uuid.Parse(q.ConversationID)
		if err != nil {
			badRequest(c, "invalid conversationId")
			return
		}
		req.ConversationID = &id
	}
	for _, bound := range []struct {
		raw  string
		dst  **time.Time
		name string
	}{{q.From, &req.From, "from"}, {q.To, &req.To, "to"}} {
		if bound.raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, bound.raw)
		if err != nil {
			badRequest(c, "invalid "+bound.name)
			return
		}
		*bound.dst = &ts
	}
	if q.Type != "" {
		t := message.Type(q.Type)
		req.MessageType = &t
	}

	result, err := h.search.Search(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}
