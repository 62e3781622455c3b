package auth

import "errors"

var (
	// ErrMissingToken is returned when a protected call carries no bearer token.
	ErrMissingToken = errors.New("auth: missing token")
	// ErrInvalidToken covers bad signatures, malformed tokens and expired tokens.
	ErrInvalidToken = errors.New("auth: invalid or expired token")
	// ErrForbiddenRole means the caller is authenticated but its role is not allowed.
	ErrForbiddenRole = errors.New("auth: forbidden role")
	// ErrWrongSecret is returned when the supplied password does not match the stored hash.
	ErrWrongSecret = errors.New("auth: wrong secret")
)
