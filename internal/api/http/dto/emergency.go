package dto

type IssueEmergencyTokenRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type IssueEmergencyTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type RedeemEmergencyTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type RedeemEmergencyTokenResponse struct {
	Identity  string `json:"identity"`
	ExpiresAt string `json:"expires_at"`
}
