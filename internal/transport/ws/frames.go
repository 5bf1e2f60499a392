package ws

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/apperr"
	"github.com/nakuljn/ember-dating/internal/domain/enums"
	chatsvc "github.com/nakuljn/ember-dating/internal/services/chat"
	"github.com/nakuljn/ember-dating/internal/transport/http/dto"
)

// ClientFrame is what clients send over the channel.
type ClientFrame struct {
	EventType string          `json:"event_type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type SendPayload struct {
	MatchID string `json:"match_id"`
	Content string `json:"content"`
}

type ReadPayload struct {
	MessageID string `json:"message_id"`
}

type DeletePayload struct {
	MessageID string `json:"message_id"`
}

// ServerFrame is every frame the server writes.
type ServerFrame struct {
	EventType enums.EventKind `json:"event_type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   any             `json:"payload"`
}

type AckPayload struct {
	ID        string     `json:"id"`
	Seq       int64      `json:"seq,omitempty"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

type ErrorPayload struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryAfterSec int64  `json:"retry_after_sec,omitempty"`
}

type MatchPayload struct {
	NotificationID string    `json:"notification_id"`
	MatchID        string    `json:"match_id"`
	PeerUserID     int64     `json:"peer_user_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func eventFrame(ev chatsvc.Event) (ServerFrame, bool) {
	switch {
	case ev.Message != nil:
		kind := ev.Kind
		if kind == "" {
			kind = enums.EventKindMessage
		}
		return ServerFrame{EventType: kind, Payload: dto.MapMessage(*ev.Message)}, true
	case ev.Receipt != nil:
		return ServerFrame{EventType: enums.EventKindReadReceipt, Payload: ev.Receipt}, true
	case ev.Notification != nil:
		n := ev.Notification
		return ServerFrame{EventType: enums.EventKindMatch, Payload: MatchPayload{
			NotificationID: n.ID,
			MatchID:        n.MatchID,
			PeerUserID:     n.PeerID,
			CreatedAt:      n.CreatedAt.UTC(),
		}}, true
	}
	return ServerFrame{}, false
}

func ackFrame(requestID string, ack AckPayload) ServerFrame {
	return ServerFrame{EventType: enums.EventKindAck, RequestID: requestID, Payload: ack}
}

func errorFrame(requestID, code, message string) ServerFrame {
	return ServerFrame{EventType: enums.EventKindError, RequestID: requestID, Payload: ErrorPayload{Code: code, Message: message}}
}

// failureFrame maps a chat operation error onto an error frame.
func failureFrame(requestID string, err error) ServerFrame {
	var tooFast *chatsvc.TooFastError
	switch {
	case errors.As(err, &tooFast):
		return ServerFrame{EventType: enums.EventKindError, RequestID: requestID, Payload: ErrorPayload{
			Code:          "TOO_FAST",
			Message:       "too many messages, slow down",
			RetryAfterSec: tooFast.RetryAfterSec,
		}}
	case errors.Is(err, apperr.ErrNotAMember):
		return errorFrame(requestID, "NOT_A_MEMBER", "not a member of this match")
	case errors.Is(err, apperr.ErrValidation):
		return errorFrame(requestID, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, apperr.ErrUnauthenticated):
		return errorFrame(requestID, "UNAUTHORIZED", "authentication required")
	case apperr.IsTransient(err):
		return errorFrame(requestID, "TEMP_UNAVAILABLE", "temporarily unavailable, retry later")
	default:
		return errorFrame(requestID, "INTERNAL_ERROR", "request failed")
	}
}
