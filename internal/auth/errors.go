package auth

import "errors"

var (
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// responses never reveal which half failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrInvalidToken        = errors.New("invalid access token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrRefreshTokenNotFound is returned by logout when the identifier was
	// never present, so clients can tell a stale session from a live one.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")

	ErrEmailTaken = errors.New("email already in use")
)
