package jws

import (
	"errors"
	"fmt"

	"github.com/matoous/jwx/pkg/base64"
	"github.com/matoous/jwx/pkg/header"
	"github.com/matoous/jwx/pkg/jwa"
	"github.com/matoous/jwx/pkg/jwk"
)

// Header is a JSON object containing the parameters describing
// the cryptographic operations and parameters employed.
//
// The JOSE (JSON Object Signing and Encryption) Header is comprised
// of a set of Header Parameters.
type Header = header.Parameters

var (
	// ErrMalformed is returned for input that is not a valid JWS
	// serialization: wrong part count, bad base64url, truncated JSON.
	ErrMalformed = errors.New("jws: malformed serialization")

	// ErrSignatureMismatch is returned when no signature could be
	// verified with the candidate keys. It is intentionally low-detail.
	ErrSignatureMismatch = errors.New("jws: signature mismatch")

	// ErrKeyMismatch is returned when no candidate key is compatible
	// with a signature's algorithm.
	ErrKeyMismatch = errors.New("jws: no compatible key")

	// ErrAlgorithmNotAllowed is returned when a signature's header
	// claims an algorithm outside the caller's allowed set.
	ErrAlgorithmNotAllowed = errors.New("jws: algorithm not allowed")

	// ErrNoneNotAllowed is returned when the unsecured "none" algorithm
	// is encountered without the explicit opt-in.
	ErrNoneNotAllowed = errors.New(`jws: algorithm "none" requires explicit opt-in`)
)

// Signature is one signature (or MAC) over a message, together with
// the headers that were bound to it. A JWS carries one signature in
// compact form, and any number of them in JSON form.
type Signature struct {
	protected header.Parameters

	// protectedRaw is the base64url protected header segment exactly
	// as it was signed. Verification always recomputes the signing
	// input from this segment, never from a re-serialization.
	protectedRaw string

	// Unprotected headers are advisory: not covered by the signature.
	Unprotected header.Parameters

	// Signature holds the raw signature or MAC bytes.
	Signature []byte
}

// Protected returns the integrity-protected header parameters of this
// signature.
func (s *Signature) Protected() header.Parameters {
	return s.protected
}

// Message is a JWS object: a payload with one or more signatures.
//
// https://datatracker.ietf.org/doc/html/rfc7515#section-2
type Message struct {
	payload []byte

	Signatures []*Signature
}

// NewMessage returns a message holding its own copy of the payload,
// ready to be signed.
func NewMessage(payload []byte) *Message {
	owned := make([]byte, len(payload))
	copy(owned, payload)
	return &Message{payload: owned}
}

// Payload returns the message payload.
//
// # Warning
//
// The payload of a parsed message is unverified until Verify has
// succeeded.
func (m *Message) Payload() []byte {
	return m.payload
}

// SignConfig is the configuration for producing signatures.
type SignConfig struct {
	// InsecureNoSignature permits the "none" algorithm, producing an
	// unsecured JWS. Disabled by default; never enable it for tokens
	// that cross a trust boundary.
	InsecureNoSignature bool
}

// SignOption configures signing.
type SignOption func(*SignConfig) error

// WithInsecureNoSignature permits signing with the "none" algorithm.
//
// # WARNING
//
// The resulting object is not integrity protected. This exists for
// completeness and for testing, not for production use.
func WithInsecureNoSignature() SignOption {
	return func(sc *SignConfig) error {
		sc.InsecureNoSignature = true
		return nil
	}
}

// Sign creates a message with a single signature over the payload
// using the given key and algorithm. The protected header is cloned,
// and its "alg" parameter is set to the given algorithm.
func Sign(payload []byte, key *jwk.Key, alg jwa.Algorithm, protected header.Parameters, opts ...SignOption) (*Message, error) {
	m := NewMessage(payload)

	if err := m.Sign(key, alg, protected, nil, opts...); err != nil {
		return nil, err
	}

	return m, nil
}

// Sign appends a signature over the message payload. Multiple
// signatures with different keys and algorithms may be attached to
// one message; only the JSON serialization can carry more than one.
func (m *Message) Sign(key *jwk.Key, alg jwa.Algorithm, protected, unprotected header.Parameters, opts ...SignOption) error {
	config := &SignConfig{}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return fmt.Errorf("sign option error: %w", err)
		}
	}

	capability, err := jwa.Describe(alg)
	if err != nil {
		return err
	}
	if capability.Class != jwa.ClassSignature {
		return fmt.Errorf("%w: %q is not a signature algorithm", jwa.ErrUnsupportedAlgorithm, alg)
	}

	if protected == nil {
		protected = header.Parameters{}
	} else {
		protected = protected.Clone()
	}
	protected[header.Algorithm] = alg

	// A producer must not emit a "crit" list it cannot satisfy.
	if err := validateCriticalStructure(protected); err != nil {
		return err
	}

	if alg == jwa.None {
		if !config.InsecureNoSignature {
			return ErrNoneNotAllowed
		}
		if key != nil {
			return fmt.Errorf("%w: %q takes no key", jwa.ErrUnsupportedAlgorithm, jwa.None)
		}
	} else {
		if key == nil {
			return fmt.Errorf("%w: no key provided for %q", ErrKeyMismatch, alg)
		}
		if !key.Compatible(alg) {
			return fmt.Errorf("%w: key is not usable with %q", ErrKeyMismatch, alg)
		}
	}

	protectedRaw, err := protected.Base64URLString()
	if err != nil {
		return err
	}

	signature, err := computeSignature(alg, key, signingInput(protectedRaw, m.payload))
	if err != nil {
		return err
	}

	m.Signatures = append(m.Signatures, &Signature{
		protected:    protected,
		protectedRaw: protectedRaw,
		Unprotected:  unprotected.Clone(),
		Signature:    signature,
	})

	return nil
}

// signingInput builds the JWS Signing Input over the raw protected
// segment, per RFC 7515 Section 5.1:
//
//	ASCII(BASE64URL(UTF8(JWS Protected Header)) || '.' || BASE64URL(JWS Payload))
func signingInput(protectedRaw string, payload []byte) []byte {
	return []byte(protectedRaw + "." + base64.Encode(payload))
}

// validateCriticalStructure enforces the structural "crit" rules on a
// producer: non-empty, no registered names, all listed names present.
// Whether a consumer understands them is checked at verification time.
func validateCriticalStructure(protected header.Parameters) error {
	names, err := protected.CriticalParameters()
	if err != nil {
		return err
	}
	return header.EnsureCriticalUnderstood(protected, names)
}
