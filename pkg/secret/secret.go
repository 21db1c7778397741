// Package secret provides the secret-handling discipline shared by the
// signing and encryption engines: constant-time comparison and
// guaranteed zeroing of short-lived key material (content encryption
// keys, derived wrapping keys, MACs) on every exit path.
package secret

import "crypto/subtle"

// Equal compares two byte slices in constant time. It is used wherever
// a computed MAC or tag is compared against an attacker-supplied one.
func Equal(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Wipe overwrites the given bytes with zeros. Call it (usually via
// defer) on every buffer holding derived or transported key material
// before it goes out of scope.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// WithBytes runs fn with a copy of the given material and wipes the
// copy on return, including error returns and panics. It bounds the
// lifetime of secrets that must outlive a single expression but not
// the calling operation.
func WithBytes(material []byte, fn func([]byte) error) error {
	scoped := make([]byte, len(material))
	copy(scoped, material)
	defer Wipe(scoped)

	return fn(scoped)
}
