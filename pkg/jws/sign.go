package jws

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"math/big"

	"github.com/matoous/jwx/pkg/jwa"
	"github.com/matoous/jwx/pkg/jwk"
	"github.com/matoous/jwx/pkg/secret"
)

// computeSignature produces the signature or MAC over the signing
// input using the primitive bound to the algorithm.
func computeSignature(alg jwa.Algorithm, key *jwk.Key, input []byte) ([]byte, error) {
	capability, err := jwa.Describe(alg)
	if err != nil {
		return nil, err
	}

	switch alg {
	case jwa.None:
		return nil, nil
	case jwa.HS256, jwa.HS384, jwa.HS512:
		return hmacSignature(capability.Hash, key, input)
	case jwa.RS256, jwa.RS384, jwa.RS512:
		private, err := key.RSAPrivateKey()
		if err != nil {
			return nil, err
		}
		return rsa.SignPKCS1v15(rand.Reader, private, capability.Hash, digest(capability.Hash, input))
	case jwa.PS256, jwa.PS384, jwa.PS512:
		private, err := key.RSAPrivateKey()
		if err != nil {
			return nil, err
		}
		return rsa.SignPSS(rand.Reader, private, capability.Hash, digest(capability.Hash, input), &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		})
	case jwa.ES256, jwa.ES384, jwa.ES512:
		private, err := key.ECDSAPrivateKey()
		if err != nil {
			return nil, err
		}
		return ecdsaSignature(capability.Hash, private, input)
	case jwa.EdDSA:
		private, err := key.Ed25519PrivateKey()
		if err != nil {
			return nil, err
		}
		return private.Sign(rand.Reader, input, crypto.Hash(0))
	default:
		return nil, fmt.Errorf("%w: %q", jwa.ErrUnsupportedAlgorithm, alg)
	}
}

// verifySignature checks the signature or MAC over the signing input.
func verifySignature(alg jwa.Algorithm, key *jwk.Key, input, signature []byte) error {
	capability, err := jwa.Describe(alg)
	if err != nil {
		return err
	}

	switch alg {
	case jwa.HS256, jwa.HS384, jwa.HS512:
		computed, err := hmacSignature(capability.Hash, key, input)
		if err != nil {
			return err
		}
		defer secret.Wipe(computed)

		// Constant-time comparison: MAC verification must not leak
		// how many bytes matched.
		if !secret.Equal(computed, signature) {
			return ErrSignatureMismatch
		}
		return nil
	case jwa.RS256, jwa.RS384, jwa.RS512:
		public, err := key.RSAPublicKey()
		if err != nil {
			return err
		}
		if err := rsa.VerifyPKCS1v15(public, capability.Hash, digest(capability.Hash, input), signature); err != nil {
			return ErrSignatureMismatch
		}
		return nil
	case jwa.PS256, jwa.PS384, jwa.PS512:
		public, err := key.RSAPublicKey()
		if err != nil {
			return err
		}
		err = rsa.VerifyPSS(public, capability.Hash, digest(capability.Hash, input), signature, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		})
		if err != nil {
			return ErrSignatureMismatch
		}
		return nil
	case jwa.ES256, jwa.ES384, jwa.ES512:
		public, err := key.ECDSAPublicKey()
		if err != nil {
			return err
		}
		return verifyECDSASignature(capability.Hash, public, input, signature)
	case jwa.EdDSA:
		public, err := key.Ed25519PublicKey()
		if err != nil {
			return err
		}
		if len(signature) != ed25519.SignatureSize || !ed25519.Verify(public, input, signature) {
			return ErrSignatureMismatch
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", jwa.ErrUnsupportedAlgorithm, alg)
	}
}

func digest(hash crypto.Hash, input []byte) []byte {
	h := hash.New()
	h.Write(input)
	return h.Sum(nil)
}

// hmacSignature returns the HMAC over the input using the symmetric
// key octets.
func hmacSignature(hash crypto.Hash, key *jwk.Key, input []byte) ([]byte, error) {
	octets, err := key.SymmetricKey()
	if err != nil {
		return nil, err
	}
	defer secret.Wipe(octets)

	if !hash.Available() {
		return nil, fmt.Errorf("requested hash is not available")
	}

	h := hmac.New(hash.New, octets)
	h.Write(input)

	return h.Sum(nil), nil
}

// ecdsaSignature signs the input and encodes the result as the fixed
// width R || S concatenation required by RFC 7518 Section 3.4, not an
// ASN.1 DER sequence.
func ecdsaSignature(hash crypto.Hash, private *ecdsa.PrivateKey, input []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, private, digest(hash, input))
	if err != nil {
		return nil, fmt.Errorf("failed to sign with ECDSA private key: %w", err)
	}

	size := (private.Curve.Params().BitSize + 7) / 8

	out := make([]byte, 2*size)
	r.FillBytes(out[:size])
	s.FillBytes(out[size:])

	return out, nil
}

func verifyECDSASignature(hash crypto.Hash, public *ecdsa.PublicKey, input, signature []byte) error {
	size := (public.Curve.Params().BitSize + 7) / 8

	if len(signature) != 2*size {
		return ErrSignatureMismatch
	}

	r := new(big.Int).SetBytes(signature[:size])
	s := new(big.Int).SetBytes(signature[size:])

	if !ecdsa.Verify(public, digest(hash, input), r, s) {
		return ErrSignatureMismatch
	}

	return nil
}
