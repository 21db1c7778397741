// Package jwt provides a simple and easy-to-use interface
// for working with JSON Web Tokens (JWTs).
//
// It supports creating, parsing, and verifying signed JWTs, wrapping
// them in JWEs as nested (encrypted) JWTs, and validating registered
// claims against a configurable clock with optional skew tolerance.
package jwt
