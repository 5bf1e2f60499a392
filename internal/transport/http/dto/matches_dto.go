package dto

import (
	"time"

	"github.com/nakuljn/ember-dating/internal/domain/model"
)

type MatchItemResponse struct {
	ID             string     `json:"id"`
	PeerUserID     int64      `json:"peer_user_id"`
	CreatedAt      time.Time  `json:"created_at"`
	LastMessageSeq int64      `json:"last_message_seq"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
}

type MatchesResponse struct {
	Items []MatchItemResponse `json:"items"`
}

func MapMatch(m model.Match, peerID int64) MatchItemResponse {
	return MatchItemResponse{
		ID:             m.ID,
		PeerUserID:     peerID,
		CreatedAt:      m.CreatedAt.UTC(),
		LastMessageSeq: m.LastMessageSeq,
		LastMessageAt:  m.LastMessageAt,
	}
}

type MessageResponse struct {
	ID          string     `json:"id"`
	MatchID     string     `json:"match_id"`
	SenderID    int64      `json:"sender_id"`
	Seq         int64      `json:"seq"`
	Content     string     `json:"content"`
	SentAt      time.Time  `json:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

type MessagesResponse struct {
	Items []MessageResponse `json:"items"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}

func MapMessage(m model.Message) MessageResponse {
	return MessageResponse{
		ID:          m.ID,
		MatchID:     m.MatchID,
		SenderID:    m.SenderID,
		Seq:         m.Seq,
		Content:     m.Redacted().Content,
		SentAt:      m.SentAt.UTC(),
		DeliveredAt: m.DeliveredAt,
		ReadAt:      m.ReadAt,
		DeletedAt:   m.DeletedAt,
	}
}
