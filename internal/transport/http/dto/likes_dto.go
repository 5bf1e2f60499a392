package dto

import "time"

type IncomingLikeResponse struct {
	UserID  int64     `json:"user_id"`
	LikedAt time.Time `json:"liked_at"`
}

type IncomingLikesResponse struct {
	Items []IncomingLikeResponse `json:"items"`
}
