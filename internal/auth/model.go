package auth

import (
	"time"

	"highfive-server/internal/user"
)

// Session is what a successful login yields: the access token, the refresh
// pair destined for the refresh cookie, and the sanitized user record.
type Session struct {
	AccessToken      string
	RefreshID        string
	RefreshSecret    string
	RefreshExpiresAt time.Time
	User             user.User
}

// RefreshCookie is the JSON payload carried by the refresh cookie.
type RefreshCookie struct {
	JTI    string `json:"jti"`
	Secret string `json:"secret"`
}
