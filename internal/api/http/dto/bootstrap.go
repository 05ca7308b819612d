package dto

type VerifyPinRequest struct {
	Pin string `json:"pin" binding:"required"`
}

type VerifyPinResponse struct {
	Verified bool `json:"verified"`
}

type RequestCodeRequest struct {
	Pin   string `json:"pin" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}

type RequestCodeResponse struct {
	ExpiresAt string `json:"expires_at"`
	Delivered bool   `json:"delivered"`
}

type CreateAdminRequest struct {
	Pin      string `json:"pin" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Code     string `json:"code" binding:"required,len=6"`
	Password string `json:"password" binding:"required,min=8"`
}

type CreateAdminResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

type BootstrapStatusResponse struct {
	PinConfigured bool `json:"pin_configured"`
	AdminExists   bool `json:"admin_exists"`
}
