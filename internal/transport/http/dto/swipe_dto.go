package dto

import "time"

type SwipeRequest struct {
	TargetID int64  `json:"target_id"`
	Decision string `json:"decision"`
}

type SwipeResponse struct {
	Outcome   string `json:"outcome"`
	Code      string `json:"code,omitempty"`
	Matched   bool   `json:"matched"`
	MatchID   string `json:"match_id,omitempty"`
	Remaining int    `json:"remaining"`
}

type QuotaResponse struct {
	Remaining int       `json:"remaining"`
	Limit     int       `json:"limit"`
	ResetsAt  time.Time `json:"resets_at"`
}

type CandidateItem struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type CandidatesResponse struct {
	Items      []CandidateItem `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}
