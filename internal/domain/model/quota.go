package model

import "time"

type Quota struct {
	UserID    int64     `json:"user_id"`
	DayKey    string    `json:"day_key"`
	Limit     int       `json:"limit"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resets_at"`
}
