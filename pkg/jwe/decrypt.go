package jwe

import (
	"fmt"

	"github.com/matoous/jwx/pkg/header"
	"github.com/matoous/jwx/pkg/jwa"
	"github.com/matoous/jwx/pkg/jwk"
	"github.com/matoous/jwx/pkg/secret"
)

// DecryptConfig is the configuration for decrypting a JWE.
type DecryptConfig struct {
	// AllowedKeyManagementAlgorithms confines the accepted "alg"
	// values. If not set, all supported key management algorithms are
	// accepted. Production callers should narrow this; RSA1_5 in
	// particular is best disabled unless legacy peers require it.
	AllowedKeyManagementAlgorithms jwa.AllowedAlgorithms

	// AllowedContentEncryptionAlgorithms confines the accepted "enc"
	// values. If not set, all supported content encryption algorithms
	// are accepted.
	AllowedContentEncryptionAlgorithms jwa.AllowedAlgorithms

	// CriticalParameters is the set of extension header parameter
	// names the caller understands.
	CriticalParameters []header.ParameterName
}

// DecryptOption configures decryption.
type DecryptOption func(*DecryptConfig) error

// WithAllowedKeyManagementAlgorithms confines the accepted key
// management algorithms.
func WithAllowedKeyManagementAlgorithms(algs ...jwa.Algorithm) DecryptOption {
	return func(dc *DecryptConfig) error {
		dc.AllowedKeyManagementAlgorithms = jwa.NewAllowedAlgorithms(algs...)
		return nil
	}
}

// WithAllowedContentEncryptionAlgorithms confines the accepted content
// encryption algorithms.
func WithAllowedContentEncryptionAlgorithms(algs ...jwa.Algorithm) DecryptOption {
	return func(dc *DecryptConfig) error {
		dc.AllowedContentEncryptionAlgorithms = jwa.NewAllowedAlgorithms(algs...)
		return nil
	}
}

// WithCriticalParameters declares the extension header parameters the
// caller understands, satisfying the "crit" rule for them.
func WithCriticalParameters(names ...header.ParameterName) DecryptOption {
	return func(dc *DecryptConfig) error {
		dc.CriticalParameters = names
		return nil
	}
}

// Decrypt recovers the plaintext using any of the candidate keys.
//
// Policy violations (a disallowed algorithm, an unsatisfied "crit"
// list, an unsupported "zip") surface as their own errors; every
// cryptographic failure, from key unwrap through tag verification,
// collapses into ErrDecryption so the error surface reveals nothing
// about where decryption failed.
func Decrypt(m *Message, keys []*jwk.Key, opts ...DecryptOption) ([]byte, error) {
	config := &DecryptConfig{
		AllowedKeyManagementAlgorithms:     jwa.NewAllowedAlgorithms(jwa.KeyManagementAlgorithms()...),
		AllowedContentEncryptionAlgorithms: jwa.NewAllowedAlgorithms(jwa.ContentEncryptionAlgorithms()...),
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("decrypt option error: %w", err)
		}
	}

	if len(m.Recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrMalformed)
	}

	if err := header.EnsureCriticalUnderstood(m.protected, config.CriticalParameters); err != nil {
		return nil, err
	}

	// Compressed payloads are not supported; fail closed before any
	// cryptographic work.
	if _, ok := m.protected[header.Compression]; ok {
		return nil, fmt.Errorf("%w: %q", jwa.ErrUnsupportedAlgorithm, header.Compression)
	}

	enc, err := m.protected.Encryption()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !jwa.Known(enc) {
		return nil, fmt.Errorf("%w: %q", jwa.ErrUnsupportedAlgorithm, enc)
	}
	if !config.AllowedContentEncryptionAlgorithms.Allowed(enc) {
		return nil, fmt.Errorf("%w: %q", ErrAlgorithmNotAllowed, enc)
	}

	aad := contentAAD(m.protectedRaw, m.AAD)

	var policyErr error

	for _, recipient := range m.Recipients {
		joseHeader := m.joseHeader(recipient)

		alg, err := joseHeader.Algorithm()
		if err != nil {
			continue
		}
		if !jwa.Known(alg) {
			continue
		}
		if !config.AllowedKeyManagementAlgorithms.Allowed(alg) {
			if policyErr == nil {
				policyErr = fmt.Errorf("%w: %q", ErrAlgorithmNotAllowed, alg)
			}
			continue
		}

		kid, _ := joseHeader.KeyID()

		for _, key := range keys {
			if kid != "" && key.KeyID != "" && key.KeyID != kid {
				continue
			}
			if !key.Compatible(alg) {
				continue
			}

			cek, err := decryptCEK(alg, key, recipient.EncryptedKey, joseHeader, enc)
			if err != nil {
				continue
			}

			plaintext, err := decryptContent(enc, cek, m.IV, m.Ciphertext, m.Tag, aad)
			secret.Wipe(cek)
			if err != nil {
				continue
			}

			return plaintext, nil
		}
	}

	if policyErr != nil {
		return nil, policyErr
	}

	return nil, ErrDecryption
}

// Decrypt recovers the plaintext using any of the candidate keys.
func (m *Message) Decrypt(keys []*jwk.Key, opts ...DecryptOption) ([]byte, error) {
	return Decrypt(m, keys, opts...)
}
