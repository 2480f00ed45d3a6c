package httpdto

import "time"

type MessageDTO struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id,omitempty"`
	ReceiverID     string     `json:"receiver_id,omitempty"`
	SenderID       string     `json:"sender_id"`
	Content        string     `json:"content"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	SeqID          *int64     `json:"seq_id,omitempty"`
	Edited         bool       `json:"edited,omitempty"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	Deleted        bool       `json:"deleted,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type MessageHistoryResponse struct {
	Messages []MessageDTO `json:"messages"`
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
}

type MessageEditDTO struct {
	Content  string    `json:"content"`
	EditedAt time.Time `json:"edited_at"`
}

type ReactionDTO struct {
	UserID    string    `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type RegisterAttachmentRequest struct {
	ContentType string `json:"content_type" binding:"required"`
	SizeBytes   int64  `json:"size_bytes" binding:"required"`
}
