package services

import (
	"context"

	"go.uber.org/zap"

	"prolink-chat/internal/domain/message"
	"prolink-chat/pkg/logger"
)

// AttachmentService fills attachment descriptors with signed download links. With no
// signer configured descriptors are returned as stored.
type AttachmentService struct {
	signer AttachmentSigner
	log    *logger.Logger
}

func NewAttachmentService(signer AttachmentSigner, log *logger.Logger) *AttachmentService {
	return &AttachmentService{signer: signer, log: log.Named("attachments")}
}

func (s *AttachmentService) Enabled() bool {
	return s != nil && s.signer != nil
}

// Sign returns a copy of attachments with URL set. A key that cannot be signed keeps
// an empty URL.
func (s *AttachmentService) Sign(ctx context.Context, attachments []message.Attachment) []message.Attachment {
	if !s.Enabled() || len(attachments) == 0 {
		return attachments
	}
	out := make([]message.Attachment, len(attachments))
	for i, a := range attachments {
		link, err := s.signer.PresignGet(ctx, a.Key)
		if err != nil {
			s.log.WithContext(ctx).Warn("failed to sign attachment", zap.String("key", a.Key), zap.Error(err))
		} else {
			a.URL = link
		}
		out[i] = a
	}
	return out
}

func (s *AttachmentService) SignMessage(ctx context.Context, m *message.Message) {
	if !s.Enabled() || m == nil {
		return
	}
	m.Attachments = s.Sign(ctx, m.Attachments)
}

func (s *AttachmentService) SignMessages(ctx context.Context, messages []message.Message) {
	for i := range messages {
		s.SignMessage(ctx, &messages[i])
	}
}
