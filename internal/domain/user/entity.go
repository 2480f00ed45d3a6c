package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User represents the users table
type User struct {
	ID           uuid.UUID
	Username     sql.NullString
	Email        string
	PasswordHash string
	DisplayName  string
	AvatarURL    string
	IsOnline     bool
	LastSeenAt   sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the subset of a user that rides along with broadcast
// messages so receivers can render the sender without another fetch.
type Profile struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	IsOnline    bool      `json:"is_online"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		IsOnline:    u.IsOnline,
	}
}

func (User) TableName() string {
	return "users"
}
