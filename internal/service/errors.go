package service

import "errors"

// Session core failures.  handler.httpError maps each to a status code.
var (
	ErrEmailAlreadyExists   = errors.New("email already exists")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrInvalidToken         = errors.New("invalid token")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrUserNotFound         = errors.New("user not found")
	ErrCaptchaFailed        = errors.New("captcha verification failed")
	ErrInvalidInput         = errors.New("invalid input")
)
