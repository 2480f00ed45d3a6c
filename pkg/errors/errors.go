package relay_errors

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRateLimited       = errors.New("rate limited")
	ErrAlreadyExists     = errors.New("already exists")
	ErrNotParticipant    = errors.New("not a participant of this conversation")
)

// Handshake errors surfaced to websocket clients before the
// connection is established. The two are deliberately distinct.
var (
	ErrCredentialMissing = errors.New("credential missing")
	ErrCredentialInvalid = errors.New("credential invalid")
)

// NowPtr returns a pointer to current time
func NowPtr() *time.Time {
	now := time.Now()
	return &now
}
