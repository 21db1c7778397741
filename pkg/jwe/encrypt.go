package jwe

import (
	"fmt"

	"github.com/matoous/jwx/pkg/base64"
	"github.com/matoous/jwx/pkg/header"
	"github.com/matoous/jwx/pkg/jwa"
	"github.com/matoous/jwx/pkg/jwk"
	"github.com/matoous/jwx/pkg/secret"
)

// RecipientKey pairs a recipient's key with the key management
// algorithm to use for it.
type RecipientKey struct {
	Algorithm jwa.Algorithm
	Key       *jwk.Key

	// Header holds extra per-recipient parameters, such as "kid".
	Header header.Parameters
}

// EncryptConfig is the configuration for producing a JWE.
type EncryptConfig struct {
	// AAD is caller-supplied additional authenticated data. It is
	// authenticated but not encrypted, and forces the JSON
	// serialization: the compact form cannot carry it.
	AAD []byte

	// Unprotected holds shared header parameters that are not
	// integrity protected.
	Unprotected header.Parameters
}

// EncryptOption configures encryption.
type EncryptOption func(*EncryptConfig) error

// WithAAD attaches additional authenticated data to the JWE.
func WithAAD(aad []byte) EncryptOption {
	return func(ec *EncryptConfig) error {
		ec.AAD = aad
		return nil
	}
}

// WithSharedUnprotected attaches a shared unprotected header.
func WithSharedUnprotected(h header.Parameters) EncryptOption {
	return func(ec *EncryptConfig) error {
		ec.Unprotected = h
		return nil
	}
}

// Encrypt encrypts the plaintext for the given recipients. The content
// encryption algorithm is recorded in the protected header; with a
// single recipient the key management algorithm and its parameters
// join it there, with multiple recipients they live in each
// recipient's own header.
//
// The "dir" and "ECDH-ES" algorithms determine the CEK themselves, so
// they cannot share a message with other recipients.
func Encrypt(plaintext []byte, enc jwa.Algorithm, protected header.Parameters, recipients []RecipientKey, opts ...EncryptOption) (*Message, error) {
	config := &EncryptConfig{}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("encrypt option error: %w", err)
		}
	}

	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrKeyMismatch)
	}

	if protected == nil {
		protected = header.Parameters{}
	} else {
		protected = protected.Clone()
	}
	protected[header.Encryption] = enc

	// Compressed plaintexts are not produced; fail closed rather than
	// emit a header this implementation could not decrypt.
	if _, ok := protected[header.Compression]; ok {
		return nil, fmt.Errorf(`%w: %q`, jwa.ErrUnsupportedAlgorithm, header.Compression)
	}

	if err := validateCriticalStructure(protected); err != nil {
		return nil, err
	}

	direct := len(recipients) == 1 &&
		(recipients[0].Algorithm == jwa.Direct || recipients[0].Algorithm == jwa.ECDHES)

	for _, r := range recipients {
		if len(recipients) > 1 && (r.Algorithm == jwa.Direct || r.Algorithm == jwa.ECDHES) {
			return nil, fmt.Errorf("%w: %q cannot share a message with other recipients", jwa.ErrUnsupportedAlgorithm, r.Algorithm)
		}
	}

	encCapability, err := jwa.Describe(enc)
	if err != nil {
		return nil, err
	}
	if encCapability.Class != jwa.ClassContentEncryption {
		return nil, fmt.Errorf("%w: %q is not a content encryption algorithm", jwa.ErrUnsupportedAlgorithm, enc)
	}

	m := &Message{
		protected:   protected,
		Unprotected: config.Unprotected.Clone(),
		AAD:         config.AAD,
	}

	var cek []byte

	if direct {
		r := recipients[0]
		_, params, directCEK, err := encryptCEK(r.Algorithm, r.Key, nil, enc)
		if err != nil {
			return nil, err
		}
		if len(directCEK) != encCapability.CEKBits/8 {
			secret.Wipe(directCEK)
			return nil, fmt.Errorf("%w: key size does not match %q", ErrKeyMismatch, enc)
		}
		cek = directCEK

		protected[header.Algorithm] = r.Algorithm
		for name, value := range params {
			protected[name] = value
		}

		m.Recipients = []*Recipient{{Header: r.Header.Clone()}}
	} else {
		cek, err = generateCEK(enc)
		if err != nil {
			return nil, err
		}

		single := len(recipients) == 1
		if single {
			protected[header.Algorithm] = recipients[0].Algorithm
		}

		for _, r := range recipients {
			encryptedKey, params, _, err := encryptCEK(r.Algorithm, r.Key, cek, enc)
			if err != nil {
				secret.Wipe(cek)
				return nil, err
			}

			recipientHeader := r.Header.Clone()
			if single {
				// The compact form has no per-recipient header; the key
				// management parameters ride in the protected header.
				for name, value := range params {
					protected[name] = value
				}
			} else {
				recipientHeader = header.Merge(recipientHeader, params)
				recipientHeader[header.Algorithm] = r.Algorithm
			}

			m.Recipients = append(m.Recipients, &Recipient{
				Header:       recipientHeader,
				EncryptedKey: encryptedKey,
			})
		}
	}
	defer secret.Wipe(cek)

	protectedRaw, err := protected.Base64URLString()
	if err != nil {
		return nil, err
	}
	m.protectedRaw = protectedRaw

	iv, ciphertext, tag, err := encryptContent(enc, cek, plaintext, contentAAD(protectedRaw, config.AAD))
	if err != nil {
		return nil, err
	}

	m.IV = iv
	m.Ciphertext = ciphertext
	m.Tag = tag

	return m, nil
}

// contentAAD builds the additional authenticated data for the content
// encryption stage: the raw protected segment, extended with the
// caller's AAD when present (RFC 7516 Section 5.1 step 14).
func contentAAD(protectedRaw string, aad []byte) []byte {
	if aad == nil {
		return []byte(protectedRaw)
	}
	return []byte(protectedRaw + "." + base64.Encode(aad))
}

func validateCriticalStructure(protected header.Parameters) error {
	names, err := protected.CriticalParameters()
	if err != nil {
		return err
	}
	return header.EnsureCriticalUnderstood(protected, names)
}
