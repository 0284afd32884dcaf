package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prolink-chat/internal/services"
	prolink_errors "prolink-chat/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// withUser stands in for AuthMiddleware.
func withUser(id uuid.UUID, scopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := services.Identity{UserID: id, Scopes: scopes}
		c.Request = c.Request.WithContext(services.WithUserContext(c.Request.Context(), identity))
		c.Next()
	}
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Code    string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body.Code
}

// The services are never reached on these paths, so nil services are enough.
func TestMessageHandlerRejectsBadInput(t *testing.T) {
	h := NewMessageHandler(nil, nil, nil, nil)
	router := gin.New()
	authed := router.Group("", withUser(uuid.New()))
	authed.POST("/messages", h.Send)
	authed.DELETE("/messages/:id", h.Delete)
	authed.POST("/messages/:id/reactions", h.AddReaction)
	authed.GET("/messages/search", h.Search)
	authed.GET("/conversations/:userId/messages", h.ConversationMessages)

	cases := []struct {
		name, method, path, body string
	}{
		{"send missing body", http.MethodPost, "/messages", `{}`},
		{"send bad recipient", http.MethodPost, "/messages", `{"recipientId":"x","content":"hi"}`},
		{"send bad parent", http.MethodPost, "/messages", fmt.Sprintf(`{"recipientId":%q,"content":"hi","parentMessageId":"nope"}`, uuid.New())},
		{"delete bad id", http.MethodDelete, "/messages/123", ""},
		{"reaction without emoji", http.MethodPost, "/messages/" + uuid.NewString() + "/reactions", `{}`},
		{"search without q", http.MethodGet, "/messages/search", ""},
		{"search bad from", http.MethodGet, "/messages/search?q=tile&from=yesterday", ""},
		{"search bad conversation", http.MethodGet, "/messages/search?q=tile&conversationId=7", ""},
		{"conversation bad user", http.MethodGet, "/conversations/me/messages", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(router, tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_FAILED", errorCode(t, rec))
		})
	}
}

func TestHandlersRequireUser(t *testing.T) {
	router := gin.New()
	router.GET("/conversations", NewMessageHandler(nil, nil, nil, nil).Conversations)
	router.GET("/notifications", NewNotificationHandler(nil).List)
	router.GET("/threads/:id", NewThreadHandler(nil).Get)

	for _, path := range []string{"/conversations", "/notifications", "/threads/" + uuid.NewString()} {
		rec := serve(router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
	}
}

func TestThreadAndNotificationHandlersRejectBadInput(t *testing.T) {
	router := gin.New()
	authed := router.Group("", withUser(uuid.New()))
	threads := NewThreadHandler(nil)
	notifications := NewNotificationHandler(nil)
	authed.PATCH("/threads/:id", threads.UpdateStatus)
	authed.POST("/threads/:id/participants", threads.AddParticipant)
	authed.POST("/notifications/read", notifications.MarkRead)
	router.POST("/service/notifications", withUser(uuid.New(), services.ScopeNotificationsWrite), notifications.Create)

	tooMany := make([]string, 101)
	for i := range tooMany {
		tooMany[i] = uuid.NewString()
	}
	tooManyBody, _ := json.Marshal(map[string]interface{}{"ids": tooMany})

	cases := []struct {
		name, method, path, body string
	}{
		{"unknown status", http.MethodPatch, "/threads/" + uuid.NewString(), `{"status":"frozen"}`},
		{"participant bad id", http.MethodPost, "/threads/" + uuid.NewString() + "/participants", `{"userId":"bob"}`},
		{"mark read empty", http.MethodPost, "/notifications/read", `{"ids":[]}`},
		{"mark read too many", http.MethodPost, "/notifications/read", string(tooManyBody)},
		{"mark read bad id", http.MethodPost, "/notifications/read", `{"ids":["x"]}`},
		{"create bad user", http.MethodPost, "/service/notifications", `{"userId":"x","type":"moderation","title":"t"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(router, tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

// A nil service panics if reached, so a 403 also proves nothing was stored or pushed.
func TestCreateNotificationRequiresServiceScope(t *testing.T) {
	router := gin.New()
	notifications := NewNotificationHandler(nil)
	router.POST("/notifications", withUser(uuid.New()), notifications.Create)
	router.POST("/scoped/notifications", withUser(uuid.New(), "reviews:read"), notifications.Create)

	body := fmt.Sprintf(`{"userId":%q,"type":"moderation","title":"Your account is suspended","priority":"high"}`, uuid.NewString())
	for _, path := range []string{"/notifications", "/scoped/notifications"} {
		rec := serve(router, http.MethodPost, path, body)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, "FORBIDDEN", errorCode(t, rec))
	}
}

func TestRespondErrorHidesInternalErrors(t *testing.T) {
	router := gin.New()
	router.GET("/closed", func(c *gin.Context) {
		respondError(c, fmt.Errorf("reply: %w", prolink_errors.ErrThreadClosed))
	})
	router.GET("/boom", func(c *gin.Context) {
		respondError(c, errors.New("pq: deadlock detected"))
	})

	rec := serve(router, http.MethodGet, "/closed", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "THREAD_CLOSED", errorCode(t, rec))

	rec = serve(router, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "deadlock")
}
