package httpdto

type ListNotificationsQuery struct {
	UnreadOnly bool `form:"unread"`
	Page       int  `form:"page"`
	Limit      int  `form:"limit"`
}

type MarkNotificationsReadRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,max=100"`
}

type CreateNotificationRequest struct {
	UserID   string                 `json:"userId" binding:"required"`
	Type     string                 `json:"type" binding:"required"`
	Title    string                 `json:"title" binding:"required"`
	Content  string                 `json:"content"`
	Payload  map[string]interface{} `json:"payload"`
	Priority string                 `json:"priority"`
}

type CountResponse struct {
	Count int64 `json:"count"`
}
