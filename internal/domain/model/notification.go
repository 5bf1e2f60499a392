package model

import (
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/enums"
)

type Notification struct {
	ID          string                 `json:"id"`
	UserID      int64                  `json:"user_id"`
	Kind        enums.NotificationKind `json:"kind"`
	MatchID     string                 `json:"match_id"`
	PeerID      int64                  `json:"peer_id"`
	CreatedAt   time.Time              `json:"created_at"`
	DeliveredAt *time.Time             `json:"delivered_at,omitempty"`
}

// NotificationCursor is a keyset position in a user's pending
// notifications, ordered by (created_at, id).
type NotificationCursor struct {
	CreatedAt time.Time
	ID        string
}

func (n Notification) Cursor() NotificationCursor {
	return NotificationCursor{CreatedAt: n.CreatedAt, ID: n.ID}
}

func (c NotificationCursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == ""
}

// Precedes reports whether n sorts strictly after c.
func (c NotificationCursor) Precedes(n Notification) bool {
	if c.IsZero() {
		return true
	}
	if !n.CreatedAt.Equal(c.CreatedAt) {
		return n.CreatedAt.After(c.CreatedAt)
	}
	return n.ID > c.ID
}
