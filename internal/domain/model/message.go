package model

import "time"

type Message struct {
	ID          string     `json:"id"`
	MatchID     string     `json:"match_id"`
	SenderID    int64      `json:"sender_id"`
	RecipientID int64      `json:"recipient_id"`
	Seq         int64      `json:"seq"`
	Content     string     `json:"content"`
	SentAt      time.Time  `json:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// Redacted hides the content of a deleted message. The row keeps its seq so
// history stays gap free.
func (m Message) Redacted() Message {
	if m.Deleted() {
		m.Content = ""
	}
	return m
}

// MessageCursor is a keyset position in a recipient's undelivered backlog,
// ordered by (sent_at, match_id, seq). The zero value starts at the oldest
// row.
type MessageCursor struct {
	SentAt  time.Time
	MatchID string
	Seq     int64
}

func (m Message) Cursor() MessageCursor {
	return MessageCursor{SentAt: m.SentAt, MatchID: m.MatchID, Seq: m.Seq}
}

func (c MessageCursor) IsZero() bool {
	return c.SentAt.IsZero()
}

// Precedes reports whether m sorts strictly after c.
func (c MessageCursor) Precedes(m Message) bool {
	if c.IsZero() {
		return true
	}
	if !m.SentAt.Equal(c.SentAt) {
		return m.SentAt.After(c.SentAt)
	}
	if m.MatchID != c.MatchID {
		return m.MatchID > c.MatchID
	}
	return m.Seq > c.Seq
}
