package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"relaychat/internal/domain/message"
	"relaychat/internal/repository"
	"relaychat/internal/storage"
	relay_errors "relaychat/pkg/errors"
	"relaychat/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// MessageService is the REST-side half of message access: paginated
// history for catch-up after offline periods, edit history, reactions
// and attachment registration. Live delivery happens in the hub.
type MessageService struct {
	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	media            *storage.Client
	logger           *logger.Logger
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	conversationRepo repository.ConversationRepository,
	media *storage.Client,
	l *logger.Logger,
) *MessageService {
	return &MessageService{
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		media:            media,
		logger:           l,
	}
}

// History returns one page of a conversation's messages, newest
// first by sequence number. The requester must be a participant.
func (s *MessageService) History(ctx context.Context, conversationID, requesterID uuid.UUID, page, limit int) ([]message.Message, error) {
	ok, err := s.conversationRepo.IsParticipant(ctx, conversationID, requesterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, relay_errors.ErrNotParticipant
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.messageRepo.GetConversationMessages(ctx, conversationID, page, limit)
}

// Edits returns a message's superseded revisions, oldest first.
func (s *MessageService) Edits(ctx context.Context, messageID, requesterID uuid.UUID) ([]message.MessageEdit, error) {
	m, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, m, requesterID); err != nil {
		return nil, err
	}
	return s.messageRepo.GetEdits(ctx, messageID)
}

func (s *MessageService) Reactions(ctx context.Context, messageID, requesterID uuid.UUID) ([]message.MessageReaction, error) {
	m, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, m, requesterID); err != nil {
		return nil, err
	}
	return s.messageRepo.GetReactions(ctx, messageID)
}

type AttachmentUpload struct {
	AttachmentID uuid.UUID         `json:"attachmentId"`
	UploadURL    string            `json:"uploadUrl"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// RegisterAttachment reserves an attachment row and hands back a
// presigned upload URL. The row is linked to a message when that
// message is sent over the socket.
func (s *MessageService) RegisterAttachment(ctx context.Context, uploaderID uuid.UUID, contentType string, sizeBytes int64) (AttachmentUpload, error) {
	if s.media == nil {
		return AttachmentUpload{}, fmt.Errorf("%w: media storage not configured", relay_errors.ErrConflict)
	}
	if !message.ValidType(typeFromContentType(contentType)) {
		return AttachmentUpload{}, relay_errors.ErrInvalidInput
	}
	if sizeBytes <= 0 {
		return AttachmentUpload{}, relay_errors.ErrInvalidInput
	}

	id := uuid.New()
	key := fmt.Sprintf("attachments/%s/%s", uploaderID, id)

	url, headers, err := s.media.PresignPut(ctx, key, contentType, sizeBytes)
	if err != nil {
		return AttachmentUpload{}, err
	}

	if err := s.messageRepo.CreateAttachment(ctx, &message.Attachment{
		ID:        id,
		ObjectKey: key,
		Type:      typeFromContentType(contentType),
		SizeBytes: sizeBytes,
		CreatedAt: time.Now(),
	}); err != nil {
		return AttachmentUpload{}, err
	}

	return AttachmentUpload{AttachmentID: id, UploadURL: url, Headers: headers}, nil
}

func (s *MessageService) authorizeRead(ctx context.Context, m message.Message, requesterID uuid.UUID) error {
	if m.SenderID == requesterID {
		return nil
	}
	if m.ReceiverID.Valid && m.ReceiverID.UUID == requesterID {
		return nil
	}
	if m.ConversationID.Valid {
		ok, err := s.conversationRepo.IsParticipant(ctx, m.ConversationID.UUID, requesterID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return relay_errors.ErrNotParticipant
}

func typeFromContentType(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return message.TypeImage
	case strings.HasPrefix(contentType, "video/"):
		return message.TypeVideo
	case strings.HasPrefix(contentType, "audio/"):
		return message.TypeAudio
	case contentType == "":
		return ""
	default:
		return message.TypeFile
	}
}
