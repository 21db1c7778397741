package jwt

import (
	"fmt"

	"github.com/matoous/jwx/pkg/header"
	"github.com/matoous/jwx/pkg/jwa"
	"github.com/matoous/jwx/pkg/jwe"
	"github.com/matoous/jwx/pkg/jwk"
)

// Encrypted wraps the signed token in a JWE, producing a nested JWT
// (RFC 7519 Section 5.2): the signed compact serialization becomes the
// JWE plaintext, and the outer header carries "cty": "JWT" so
// consumers know to parse the decrypted content as a JWT.
//
// The key may be a *jwk.Key or any standard library key the jwk
// package understands; it must suit the key management algorithm.
func (t *Token) Encrypted(key any, alg, enc jwa.Algorithm) (string, error) {
	encryptionKey, err := jwk.FromKey(key)
	if err != nil {
		return "", err
	}

	protected := header.Parameters{
		header.Type:        Type,
		header.ContentType: Type,
	}

	m, err := jwe.Encrypt([]byte(t.String()), enc, protected, []jwe.RecipientKey{
		{Algorithm: alg, Key: encryptionKey},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encrypt token: %w", err)
	}

	return m.Compact()
}

// Decrypt decrypts a nested JWT produced by Encrypted and parses the
// inner token.
//
// # Warning
//
// Decryption does not verify the inner signature. Use
// DecryptAndVerify, or call Verify on the returned token.
func Decrypt[T Parseable](input T, key any, opts ...jwe.DecryptOption) (*Token, error) {
	decryptionKey, err := jwk.FromKey(key)
	if err != nil {
		return nil, err
	}

	m, err := jwe.ParseCompact(string(input))
	if err != nil {
		return nil, err
	}

	plaintext, err := jwe.Decrypt(m, []*jwk.Key{decryptionKey}, opts...)
	if err != nil {
		return nil, err
	}

	return ParseString(string(plaintext))
}

// DecryptAndVerify decrypts a nested JWT and verifies the inner
// token's signature and claims with the given options.
func DecryptAndVerify[T Parseable](input T, key any, verifyOptions ...VerifyOption) (*Token, error) {
	token, err := Decrypt(input, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt JWT: %w", err)
	}

	if err := token.Verify(verifyOptions...); err != nil {
		return nil, err
	}

	return token, nil
}
