package gateway

// Credentials is the body of POST /auth
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is returned by POST /auth and GET /auth/refresh.
// The long-lived credential travels separately as an HttpOnly cookie and is
// never visible here.
type TokenResponse struct {
	// AccessToken is the short-lived JWT used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken *string `json:"accessToken,omitempty"`
}

// MessageResponse is the shape of error bodies and the logout ack
type MessageResponse struct {
	Message string `json:"message,omitempty"`
}
