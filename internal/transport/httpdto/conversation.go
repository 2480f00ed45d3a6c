package httpdto

import "time"

type CreateConversationRequest struct {
	Name           string   `json:"name,omitempty"`
	IsGroup        bool     `json:"is_group"`
	ParticipantIDs []string `json:"participant_ids" binding:"required"`
}

type AddParticipantRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type RenameConversationRequest struct {
	Name string `json:"name" binding:"required"`
}

type ConversationDTO struct {
	ID           string           `json:"id"`
	Name         string           `json:"name,omitempty"`
	IsGroup      bool             `json:"is_group"`
	CreatedBy    string           `json:"created_by,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Participants []ParticipantDTO `json:"participants,omitempty"`
}

type ParticipantDTO struct {
	UserID   string    `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}
