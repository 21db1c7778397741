// Package jwe implements JSON Web Encryption, defined in RFC 7516.
//
// A JWE protects a plaintext in two stages. A key management algorithm
// ("alg") establishes a content encryption key (CEK) for each
// recipient, and a content encryption algorithm ("enc") encrypts the
// plaintext under that CEK with authenticated encryption. The compact
// serialization carries one recipient; the JSON serialization carries
// any number.
package jwe

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/matoous/jwx/pkg/header"
	"github.com/matoous/jwx/pkg/jwa"
)

// Header is a JSON object containing the parameters describing
// the cryptographic operations and parameters employed.
type Header = header.Parameters

var (
	// ErrMalformed is returned for input that is not a valid JWE
	// serialization: wrong part count, bad base64url, truncated JSON.
	ErrMalformed = errors.New("jwe: malformed serialization")

	// ErrDecryption is the uniform decryption failure. Key unwrap
	// errors, padding errors, and tag mismatches all collapse into it
	// so that the error surface does not become a decryption oracle.
	ErrDecryption = errors.New("jwe: decryption failed")

	// ErrAlgorithmNotAllowed is returned when a header claims a key
	// management or content encryption algorithm outside the caller's
	// allowed sets.
	ErrAlgorithmNotAllowed = errors.New("jwe: algorithm not allowed")

	// ErrKeyMismatch is returned at encryption time when a recipient
	// key is not usable with the requested key management algorithm.
	ErrKeyMismatch = errors.New("jwe: no compatible key")
)

// Recipient is one recipient's key management result: the per-recipient
// header and the encrypted CEK produced for it.
type Recipient struct {
	// Header holds the per-recipient unprotected parameters, such as
	// "kid" or the ECDH-ES "epk".
	Header header.Parameters

	// EncryptedKey is the wrapped CEK. Empty for "dir" and "ECDH-ES",
	// which establish the CEK without transporting it.
	EncryptedKey []byte
}

// Message is a JWE object: an encrypted payload with the material one
// or more recipients need to recover it.
type Message struct {
	protected header.Parameters

	// protectedRaw is the base64url protected header segment exactly
	// as it was authenticated. Decryption always recomputes the AAD
	// from this segment, never from a re-serialization.
	protectedRaw string

	// Unprotected headers are shared across recipients and not
	// integrity protected.
	Unprotected header.Parameters

	Recipients []*Recipient

	// AAD is caller-supplied additional authenticated data. Only the
	// JSON serializations can carry it.
	AAD []byte

	IV         []byte
	Ciphertext []byte
	Tag        []byte
}

// Protected returns the integrity-protected header parameters.
func (m *Message) Protected() header.Parameters {
	return m.protected
}

// joseHeader assembles the complete JOSE header for a recipient from
// the protected, shared unprotected, and per-recipient headers.
func (m *Message) joseHeader(r *Recipient) header.Parameters {
	return header.Merge(m.protected, m.Unprotected, r.Header)
}

// generateCEK returns a fresh random CEK sized for the content
// encryption algorithm.
func generateCEK(enc jwa.Algorithm) ([]byte, error) {
	capability, err := jwa.Describe(enc)
	if err != nil {
		return nil, err
	}
	if capability.Class != jwa.ClassContentEncryption {
		return nil, fmt.Errorf("%w: %q is not a content encryption algorithm", jwa.ErrUnsupportedAlgorithm, enc)
	}

	cek := make([]byte, capability.CEKBits/8)
	if _, err := rand.Read(cek); err != nil {
		return nil, fmt.Errorf("failed to generate content encryption key: %w", err)
	}

	return cek, nil
}
