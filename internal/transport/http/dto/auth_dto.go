package dto

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type AuthTokensResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresInSec int64  `json:"expires_in_sec"`
	UserID       int64  `json:"user_id"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
