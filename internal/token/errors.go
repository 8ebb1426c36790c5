package token

import "errors"

// Verification failures.  Callers outside this package should treat all
// three as "unauthenticated" and never echo which one occurred.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpiredToken     = errors.New("token expired")
)
