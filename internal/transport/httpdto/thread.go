package httpdto

type ThreadParticipantRequest struct {
	UserID string `json:"userId" binding:"required"`
}

type ThreadStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active archived deleted"`
}
