package httpdto

// RegisterRequest is used for POST /v1/auth/register
type RegisterRequest struct {
	Email       string `json:"email" binding:"required"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name" binding:"required"`
}

// LoginRequest is used for POST /v1/auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}
