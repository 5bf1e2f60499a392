package chat

import (
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/enums"
	"github.com/nakuljn/ember-dating/internal/domain/model"
)

// Event is one server-pushed item. ID is stable across replay and live
// delivery so a connection never sees the same event twice.
type Event struct {
	Kind         enums.EventKind     `json:"kind"`
	ID           string              `json:"id"`
	Message      *model.Message      `json:"message,omitempty"`
	Notification *model.Notification `json:"notification,omitempty"`
	Receipt      *ReadReceipt        `json:"receipt,omitempty"`
}

type ReadReceipt struct {
	MessageID string    `json:"message_id"`
	MatchID   string    `json:"match_id"`
	ReaderID  int64     `json:"reader_id"`
	ReadAt    time.Time `json:"read_at"`
}

func messageEvent(msg model.Message) Event {
	msg = msg.Redacted()
	return Event{Kind: enums.EventKindMessage, ID: "msg:" + msg.ID, Message: &msg}
}

// deletionEvent tells the other member a message was withdrawn. It is not
// durable; a recipient offline at the time sees the redacted row in history.
func deletionEvent(msg model.Message) Event {
	msg = msg.Redacted()
	return Event{Kind: enums.EventKindMessageDeleted, ID: "del:" + msg.ID, Message: &msg}
}

func notificationEvent(n model.Notification) Event {
	return Event{Kind: enums.EventKind(n.Kind), ID: "ntf:" + n.ID, Notification: &n}
}

func receiptEvent(msg model.Message) Event {
	readAt := msg.SentAt
	if msg.ReadAt != nil {
		readAt = *msg.ReadAt
	}
	return Event{
		Kind: enums.EventKindReadReceipt,
		ID:   "read:" + msg.ID,
		Receipt: &ReadReceipt{
			MessageID: msg.ID,
			MatchID:   msg.MatchID,
			ReaderID:  msg.RecipientID,
			ReadAt:    readAt,
		},
	}
}
