package message

// Status is the linear delivery state of a message. It only ever moves
// forward: pending -> sent -> delivered -> read.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

// DeletedPlaceholder replaces the visible content of a soft-deleted
// message. The original content stays in storage.
const DeletedPlaceholder = "This message has been deleted."

// Message content types.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeVideo = "video"
	TypeAudio = "audio"
	TypeFile  = "file"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// CanAdvanceTo reports whether moving to next is a forward transition.
// Equal states are not an advance; callers treat them as a no-op.
func (s Status) CanAdvanceTo(next Status) bool {
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	nxt, ok := statusRank[next]
	if !ok {
		return false
	}
	return nxt > cur
}

// StatusesBelow returns every status strictly before s in the state
// machine. Repositories use it to guard updates so a status is never
// regressed by a late writer.
func StatusesBelow(s Status) []Status {
	target, ok := statusRank[s]
	if !ok {
		return nil
	}
	var below []Status
	for st, rank := range statusRank {
		if rank < target {
			below = append(below, st)
		}
	}
	return below
}

// ValidType reports whether t is a known message content type.
func ValidType(t string) bool {
	switch t {
	case TypeText, TypeImage, TypeVideo, TypeAudio, TypeFile:
		return true
	}
	return false
}
