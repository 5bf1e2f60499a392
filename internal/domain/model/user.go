package model

import "time"

type User struct {
	ID              int64      `json:"id"`
	DisplayName     string     `json:"display_name"`
	DailySwipeLimit *int       `json:"daily_swipe_limit,omitempty"`
	TelegramChatID  *int64     `json:"-"`
	DeactivatedAt   *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (u User) Active() bool {
	return u.DeactivatedAt == nil
}
