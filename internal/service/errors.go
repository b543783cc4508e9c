package service

import "errors"

// Operational errors returned by the services. The handler layer owns the
// mapping to HTTP status codes. ErrUnauthorized deliberately covers bad
// credentials, unknown tokens, revoked tokens and expired refresh tokens so
// the boundary never reveals which one it was.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrConflict         = errors.New("conflict")
	ErrNotVerified      = errors.New("account not verified")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrUnsupportedGrant = errors.New("unsupported grant type")
	ErrNotFound         = errors.New("not found")
	ErrMisconfigured    = errors.New("auth config invalid")
)
