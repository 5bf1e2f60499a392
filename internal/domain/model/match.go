package model

import "time"

type Match struct {
	ID             string     `json:"id"`
	UserAID        int64      `json:"user_a_id"`
	UserBID        int64      `json:"user_b_id"`
	CreatedAt      time.Time  `json:"created_at"`
	LastMessageSeq int64      `json:"last_message_seq"`
	LastMessageAt  *time.Time `json:"last_message_at,omitempty"`
}

// CanonicalPair orders two user ids so that a pair maps to exactly one key.
func CanonicalPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

func (m Match) HasMember(userID int64) bool {
	return userID > 0 && (m.UserAID == userID || m.UserBID == userID)
}

// Peer returns the other member of the match.
func (m Match) Peer(userID int64) int64 {
	if m.UserAID == userID {
		return m.UserBID
	}
	return m.UserAID
}
