package jwt

import "errors"

var (
	// ErrInvalidToken is returned when a token fails verification for
	// any reason: a bad signature, a disallowed algorithm, or a claim
	// outside its valid window. Inspect the wrapped error for detail.
	ErrInvalidToken = errors.New("jwt: invalid token")

	// ErrExpired is returned when the "exp" claim is in the past.
	ErrExpired = errors.New("jwt: token expired")

	// ErrNotYetValid is returned when the "nbf" claim is in the future.
	ErrNotYetValid = errors.New("jwt: token not yet valid")

	// ErrIssuerNotAllowed is returned when the "iss" claim is outside
	// the caller's allowed set.
	ErrIssuerNotAllowed = errors.New("jwt: issuer not allowed")

	// ErrAudienceNotAllowed is returned when no "aud" claim entry is in
	// the caller's allowed set.
	ErrAudienceNotAllowed = errors.New("jwt: audience not allowed")

	// ErrNoClaimSet is returned when creating a token with no claims.
	ErrNoClaimSet = errors.New("jwt: no claim set")
)
