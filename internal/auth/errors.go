// Package auth guards the API with JWT bearer tokens. Verification is
// HMAC only; the service and everything issuing tokens for it share
// one signing key.
package auth

import "errors"

// Sentinel errors for token validation.
var (
	// ErrNoSigningKey indicates the validator was built without a key.
	ErrNoSigningKey = errors.New("no signing key configured")

	// ErrMissingToken indicates no authentication token was provided.
	ErrMissingToken = errors.New("missing authentication token")

	// ErrInvalidToken indicates the token is malformed or has an invalid signature.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token has expired.
	ErrExpiredToken = errors.New("token has expired")

	// ErrInvalidIssuer indicates the token issuer doesn't match the expected value.
	ErrInvalidIssuer = errors.New("invalid token issuer")
)
