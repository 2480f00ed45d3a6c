package repository

import (
	"context"
	"errors"
	"time"

	"relaychat/internal/domain/conversation"
	"relaychat/internal/domain/message"
	relay_errors "relaychat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	res := r.db.WithContext(ctx).Create(m)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return relay_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (message.Message, error) {
	var m message.Message
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return message.Message{}, relay_errors.ErrNotFound
		}
		return message.Message{}, err
	}
	return m, nil
}

func (r *PostgresMessageRepository) Update(ctx context.Context, m message.Message) error {
	res := r.db.WithContext(ctx).Save(&m)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) AdvanceStatus(ctx context.Context, messageID uuid.UUID, next message.Status) (bool, error) {
	if !next.Valid() {
		return false, relay_errors.ErrInvalidTransition
	}
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("id = ? AND status IN ?", messageID, message.StatusesBelow(next)).
		Update("status", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresMessageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&message.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND status <> ?", conversationID, readerID, message.StatusRead).
		Update("status", message.StatusRead)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *PostgresMessageRepository) GetConversationMessages(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]message.Message, error) {
	var messages []message.Message
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND deleted = ?", conversationID, false).
		Order("seq_id DESC").
		Offset(offset).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) GetUnreadForUser(ctx context.Context, userID uuid.UUID) ([]message.Message, error) {
	var messages []message.Message

	subQuery := r.db.WithContext(ctx).Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	err := r.db.WithContext(ctx).
		Where("(conversation_id IN (?) OR receiver_id = ?) AND sender_id <> ? AND status <> ?",
			subQuery, userID, userID, message.StatusRead).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) GetMessagesSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]message.Message, error) {
	var messages []message.Message

	subQuery := r.db.WithContext(ctx).Model(&conversation.Participant{}).
		Select("conversation_id").
		Where("user_id = ?", userID)

	err := r.db.WithContext(ctx).
		Where("(conversation_id IN (?) OR receiver_id = ?) AND created_at > ?", subQuery, userID, since).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *PostgresMessageRepository) AddEdit(ctx context.Context, e *message.MessageEdit) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *PostgresMessageRepository) GetEdits(ctx context.Context, messageID uuid.UUID) ([]message.MessageEdit, error) {
	var edits []message.MessageEdit
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("edited_at ASC").
		Find(&edits).Error
	if err != nil {
		return nil, err
	}
	return edits, nil
}

func (r *PostgresMessageRepository) AddReaction(ctx context.Context, reaction *message.MessageReaction) error {
	res := r.db.WithContext(ctx).Create(reaction)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return relay_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresMessageRepository) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	res := r.db.WithContext(ctx).
		Delete(&message.MessageReaction{}, "message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) GetReactions(ctx context.Context, messageID uuid.UUID) ([]message.MessageReaction, error) {
	var reactions []message.MessageReaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

func (r *PostgresMessageRepository) CreateAttachment(ctx context.Context, a *message.Attachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *PostgresMessageRepository) LinkAttachments(ctx context.Context, messageID uuid.UUID, attachmentIDs []uuid.UUID) error {
	if len(attachmentIDs) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&message.Attachment{}).
		Where("id IN ?", attachmentIDs).
		Updates(map[string]interface{}{"message_id": messageID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return relay_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresMessageRepository) GetAttachments(ctx context.Context, messageID uuid.UUID) ([]message.Attachment, error) {
	var attachments []message.Attachment
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}
	return attachments, nil
}
