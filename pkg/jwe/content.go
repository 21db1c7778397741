package jwe

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/matoous/jwx/pkg/jwa"
)

// encryptContent encrypts the plaintext under the CEK with the content
// encryption algorithm, authenticating the AAD. It returns a fresh IV,
// the ciphertext, and the authentication tag.
func encryptContent(enc jwa.Algorithm, cek, plaintext, aad []byte) (iv, ciphertext, tag []byte, err error) {
	capability, err := jwa.Describe(enc)
	if err != nil {
		return nil, nil, nil, err
	}
	if capability.Class != jwa.ClassContentEncryption {
		return nil, nil, nil, fmt.Errorf("%w: %q is not a content encryption algorithm", jwa.ErrUnsupportedAlgorithm, enc)
	}
	if len(cek) != capability.CEKBits/8 {
		return nil, nil, nil, fmt.Errorf("%q requires a %d-bit content encryption key, got %d bits", enc, capability.CEKBits, len(cek)*8)
	}

	iv = make([]byte, capability.IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate initialization vector: %w", err)
	}

	switch enc {
	case jwa.A128GCM, jwa.A192GCM, jwa.A256GCM:
		aead, err := newGCM(cek)
		if err != nil {
			return nil, nil, nil, err
		}

		sealed := aead.Seal(nil, iv, plaintext, aad)
		tagStart := len(sealed) - aead.Overhead()

		return iv, sealed[:tagStart], sealed[tagStart:], nil
	case jwa.A128CBCHS256, jwa.A192CBCHS384, jwa.A256CBCHS512:
		ciphertext, tag, err = cbcHMACEncrypt(capability, cek, iv, plaintext, aad)
		if err != nil {
			return nil, nil, nil, err
		}
		return iv, ciphertext, tag, nil
	default:
		return nil, nil, nil, fmt.Errorf("%w: %q", jwa.ErrUnsupportedAlgorithm, enc)
	}
}

// decryptContent inverts encryptContent. The authentication tag is
// checked before any plaintext is produced; every failure collapses
// into ErrDecryption.
func decryptContent(enc jwa.Algorithm, cek, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	capability, err := jwa.Describe(enc)
	if err != nil {
		return nil, err
	}
	if capability.Class != jwa.ClassContentEncryption {
		return nil, fmt.Errorf("%w: %q is not a content encryption algorithm", jwa.ErrUnsupportedAlgorithm, enc)
	}
	if len(cek) != capability.CEKBits/8 || len(iv) != capability.IVSize || len(tag) != capability.TagSize {
		return nil, ErrDecryption
	}

	switch enc {
	case jwa.A128GCM, jwa.A192GCM, jwa.A256GCM:
		aead, err := newGCM(cek)
		if err != nil {
			return nil, ErrDecryption
		}

		sealed := make([]byte, 0, len(ciphertext)+len(tag))
		sealed = append(sealed, ciphertext...)
		sealed = append(sealed, tag...)

		plaintext, err := aead.Open(nil, iv, sealed, aad)
		if err != nil {
			return nil, ErrDecryption
		}
		return plaintext, nil
	case jwa.A128CBCHS256, jwa.A192CBCHS384, jwa.A256CBCHS512:
		return cbcHMACDecrypt(capability, cek, iv, ciphertext, tag, aad)
	default:
		return nil, fmt.Errorf("%w: %q", jwa.ErrUnsupportedAlgorithm, enc)
	}
}

func newGCM(cek []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize content encryption cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
