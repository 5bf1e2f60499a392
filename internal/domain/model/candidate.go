package model

import "time"

// Candidate is a user the viewer has not swiped on yet.
type Candidate struct {
	UserID      int64     `json:"user_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

type CandidateQuery struct {
	ViewerUserID    int64
	ExcludeSwiped   bool
	HasCursor       bool
	CursorCreatedAt time.Time
	CursorUserID    int64
	Limit           int
}
