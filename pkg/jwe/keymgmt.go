package jwe

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/matoous/jwx/pkg/base64"
	"github.com/matoous/jwx/pkg/header"
	"github.com/matoous/jwx/pkg/jwa"
	"github.com/matoous/jwx/pkg/jwk"
	"github.com/matoous/jwx/pkg/secret"
)

// Defaults for the parameters the PBES2 algorithms require.
const (
	pbes2SaltSize     = 16
	pbes2DefaultCount = 10000

	// RFC 7518 Section 4.8.1.2 requires a minimum of 1000 iterations.
	pbes2MinCount = 1000

	// Iteration counts are attacker-controlled on the decrypt path;
	// an absurd count is a denial of service, not a stronger KDF.
	pbes2MaxCount = 10000000
)

// encryptCEK runs the key management algorithm for one recipient:
// it wraps, encrypts, or derives agreement on the CEK, and returns the
// encrypted key plus any parameters the algorithm must communicate
// (epk, iv/tag, p2s/p2c). The returned parameters are merged into the
// recipient's header.
//
// For "dir" and "ECDH-ES" the CEK is not transported; these algorithms
// return their CEK instead so the caller can encrypt content with it.
func encryptCEK(alg jwa.Algorithm, key *jwk.Key, cek []byte, enc jwa.Algorithm) (encryptedKey []byte, params header.Parameters, directCEK []byte, err error) {
	capability, err := jwa.Describe(alg)
	if err != nil {
		return nil, nil, nil, err
	}
	if capability.Class != jwa.ClassKeyManagement {
		return nil, nil, nil, fmt.Errorf("%w: %q is not a key management algorithm", jwa.ErrUnsupportedAlgorithm, alg)
	}
	if key == nil {
		return nil, nil, nil, fmt.Errorf("%w: no key provided for %q", ErrKeyMismatch, alg)
	}
	if !key.Compatible(alg) {
		return nil, nil, nil, fmt.Errorf("%w: key is not usable with %q", ErrKeyMismatch, alg)
	}

	switch alg {
	case jwa.Direct:
		octets, err := key.SymmetricKey()
		if err != nil {
			return nil, nil, nil, err
		}
		return nil, nil, octets, nil
	case jwa.A128KW, jwa.A192KW, jwa.A256KW:
		kek, err := key.SymmetricKey()
		if err != nil {
			return nil, nil, nil, err
		}
		defer secret.Wipe(kek)

		wrapped, err := wrapKey(kek, cek)
		if err != nil {
			return nil, nil, nil, err
		}
		return wrapped, nil, nil, nil
	case jwa.A128GCMKW, jwa.A192GCMKW, jwa.A256GCMKW:
		kek, err := key.SymmetricKey()
		if err != nil {
			return nil, nil, nil, err
		}
		defer secret.Wipe(kek)

		wrapped, iv, tag, err := gcmWrap(kek, cek)
		if err != nil {
			return nil, nil, nil, err
		}
		params = header.Parameters{
			header.InitializationVector: base64.Encode(iv),
			header.AuthenticationTag:    base64.Encode(tag),
		}
		return wrapped, params, nil, nil
	case jwa.RSA1_5:
		public, err := key.RSAPublicKey()
		if err != nil {
			return nil, nil, nil, err
		}
		encryptedKey, err = rsa.EncryptPKCS1v15(rand.Reader, public, cek)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encrypt content encryption key: %w", err)
		}
		return encryptedKey, nil, nil, nil
	case jwa.RSAOAEP:
		public, err := key.RSAPublicKey()
		if err != nil {
			return nil, nil, nil, err
		}
		encryptedKey, err = rsa.EncryptOAEP(sha1.New(), rand.Reader, public, cek, nil)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encrypt content encryption key: %w", err)
		}
		return encryptedKey, nil, nil, nil
	case jwa.RSAOAEP256:
		public, err := key.RSAPublicKey()
		if err != nil {
			return nil, nil, nil, err
		}
		encryptedKey, err = rsa.EncryptOAEP(sha256.New(), rand.Reader, public, cek, nil)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to encrypt content encryption key: %w", err)
		}
		return encryptedKey, nil, nil, nil
	case jwa.ECDHES, jwa.ECDHESA128KW, jwa.ECDHESA192KW, jwa.ECDHESA256KW:
		return ecdhEncryptCEK(alg, capability, key, cek, enc)
	case jwa.PBES2HS256A128KW, jwa.PBES2HS384A192KW, jwa.PBES2HS512A256KW:
		password, err := key.SymmetricKey()
		if err != nil {
			return nil, nil, nil, err
		}
		defer secret.Wipe(password)

		salt := make([]byte, pbes2SaltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, nil, fmt.Errorf("failed to generate PBES2 salt: %w", err)
		}

		kek := pbes2Key(capability, password, alg, salt, pbes2DefaultCount)
		defer secret.Wipe(kek)

		wrapped, err := wrapKey(kek, cek)
		if err != nil {
			return nil, nil, nil, err
		}
		params = header.Parameters{
			header.PBES2Salt:  base64.Encode(salt),
			header.PBES2Count: pbes2DefaultCount,
		}
		return wrapped, params, nil, nil
	default:
		return nil, nil, nil, fmt.Errorf("%w: %q", jwa.ErrUnsupportedAlgorithm, alg)
	}
}

// decryptCEK inverts encryptCEK for one recipient, consulting the
// recipient's complete JOSE header for the algorithm's parameters.
// Failures carry no detail beyond ErrDecryption.
func decryptCEK(alg jwa.Algorithm, key *jwk.Key, encryptedKey []byte, h header.Parameters, enc jwa.Algorithm) ([]byte, error) {
	capability, err := jwa.Describe(alg)
	if err != nil {
		return nil, err
	}
	if capability.Class != jwa.ClassKeyManagement {
		return nil, fmt.Errorf("%w: %q is not a key management algorithm", jwa.ErrUnsupportedAlgorithm, alg)
	}

	switch alg {
	case jwa.Direct:
		if len(encryptedKey) != 0 {
			return nil, ErrDecryption
		}
		octets, err := key.SymmetricKey()
		if err != nil {
			return nil, ErrDecryption
		}
		return octets, nil
	case jwa.A128KW, jwa.A192KW, jwa.A256KW:
		kek, err := key.SymmetricKey()
		if err != nil {
			return nil, ErrDecryption
		}
		defer secret.Wipe(kek)

		return unwrapKey(kek, encryptedKey)
	case jwa.A128GCMKW, jwa.A192GCMKW, jwa.A256GCMKW:
		kek, err := key.SymmetricKey()
		if err != nil {
			return nil, ErrDecryption
		}
		defer secret.Wipe(kek)

		iv, err := headerBytes(h, header.InitializationVector)
		if err != nil {
			return nil, ErrDecryption
		}
		tag, err := headerBytes(h, header.AuthenticationTag)
		if err != nil {
			return nil, ErrDecryption
		}
		return gcmUnwrap(kek, encryptedKey, iv, tag)
	case jwa.RSA1_5:
		private, err := key.RSAPrivateKey()
		if err != nil {
			return nil, ErrDecryption
		}

		encCapability, err := jwa.Describe(enc)
		if err != nil {
			return nil, err
		}

		// Bleichenbacher countermeasure: seed the output with a random
		// CEK of the right size, so a padding failure is outwardly
		// indistinguishable from a wrong key.
		cek := make([]byte, encCapability.CEKBits/8)
		if _, err := rand.Read(cek); err != nil {
			return nil, ErrDecryption
		}
		_ = rsa.DecryptPKCS1v15SessionKey(rand.Reader, private, encryptedKey, cek)
		return cek, nil
	case jwa.RSAOAEP:
		private, err := key.RSAPrivateKey()
		if err != nil {
			return nil, ErrDecryption
		}
		cek, err := rsa.DecryptOAEP(sha1.New(), rand.Reader, private, encryptedKey, nil)
		if err != nil {
			return nil, ErrDecryption
		}
		return cek, nil
	case jwa.RSAOAEP256:
		private, err := key.RSAPrivateKey()
		if err != nil {
			return nil, ErrDecryption
		}
		cek, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, private, encryptedKey, nil)
		if err != nil {
			return nil, ErrDecryption
		}
		return cek, nil
	case jwa.ECDHES, jwa.ECDHESA128KW, jwa.ECDHESA192KW, jwa.ECDHESA256KW:
		return ecdhDecryptCEK(alg, capability, key, encryptedKey, h, enc)
	case jwa.PBES2HS256A128KW, jwa.PBES2HS384A192KW, jwa.PBES2HS512A256KW:
		password, err := key.SymmetricKey()
		if err != nil {
			return nil, ErrDecryption
		}
		defer secret.Wipe(password)

		salt, err := headerBytes(h, header.PBES2Salt)
		if err != nil {
			return nil, ErrDecryption
		}
		count, err := pbes2Count(h)
		if err != nil {
			return nil, err
		}

		kek := pbes2Key(capability, password, alg, salt, count)
		defer secret.Wipe(kek)

		return unwrapKey(kek, encryptedKey)
	default:
		return nil, fmt.Errorf("%w: %q", jwa.ErrUnsupportedAlgorithm, alg)
	}
}

// ecdhEncryptCEK performs the ECDH-ES key agreement for one recipient:
// it generates an ephemeral key pair on the recipient's curve, derives
// key material with the Concat KDF, and either uses it as the CEK
// directly (ECDH-ES) or as the KEK for an inner AES key wrap.
func ecdhEncryptCEK(alg jwa.Algorithm, capability jwa.Capability, key *jwk.Key, cek []byte, enc jwa.Algorithm) ([]byte, header.Parameters, []byte, error) {
	public, err := key.ECDHPublicKey()
	if err != nil {
		return nil, nil, nil, err
	}

	ephemeral, err := public.Curve().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate ephemeral key: %w", err)
	}

	z, err := ephemeral.ECDH(public)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("key agreement failed: %w", err)
	}
	defer secret.Wipe(z)

	epk, err := jwk.FromKey(ephemeral.PublicKey())
	if err != nil {
		return nil, nil, nil, err
	}

	params := header.Parameters{header.EphemeralPublicKey: epk}

	derived, err := ecdhDerive(alg, capability, z, nil, nil, enc)
	if err != nil {
		return nil, nil, nil, err
	}

	if alg == jwa.ECDHES {
		return nil, params, derived, nil
	}

	defer secret.Wipe(derived)

	wrapped, err := wrapKey(derived, cek)
	if err != nil {
		return nil, nil, nil, err
	}
	return wrapped, params, nil, nil
}

func ecdhDecryptCEK(alg jwa.Algorithm, capability jwa.Capability, key *jwk.Key, encryptedKey []byte, h header.Parameters, enc jwa.Algorithm) ([]byte, error) {
	private, err := key.ECDHPrivateKey()
	if err != nil {
		return nil, ErrDecryption
	}

	epk, err := epkFromHeader(h)
	if err != nil {
		return nil, err
	}

	remote, err := epk.ECDHPublicKey()
	if err != nil {
		return nil, ErrDecryption
	}

	z, err := private.ECDH(remote)
	if err != nil {
		return nil, ErrDecryption
	}
	defer secret.Wipe(z)

	apu, apv, err := partyInfo(h)
	if err != nil {
		return nil, ErrDecryption
	}

	derived, err := ecdhDerive(alg, capability, z, apu, apv, enc)
	if err != nil {
		return nil, err
	}

	if alg == jwa.ECDHES {
		if len(encryptedKey) != 0 {
			secret.Wipe(derived)
			return nil, ErrDecryption
		}
		return derived, nil
	}

	defer secret.Wipe(derived)

	return unwrapKey(derived, encryptedKey)
}

// ecdhDerive runs the Concat KDF over the shared secret. In direct
// agreement the algorithm ID is the content encryption algorithm and
// the output is CEK-sized; with an inner key wrap the algorithm ID is
// the key management algorithm and the output is KEK-sized (RFC 7518
// Section 4.6).
func ecdhDerive(alg jwa.Algorithm, capability jwa.Capability, z, apu, apv []byte, enc jwa.Algorithm) ([]byte, error) {
	if alg == jwa.ECDHES {
		encCapability, err := jwa.Describe(enc)
		if err != nil {
			return nil, err
		}
		return concatKDF(capability.Hash, z, enc, apu, apv, encCapability.CEKBits), nil
	}

	wrapCapability, err := jwa.Describe(capability.WrapAlg)
	if err != nil {
		return nil, err
	}
	return concatKDF(capability.Hash, z, alg, apu, apv, wrapCapability.KeyBits), nil
}

// pbes2Key derives the KEK from a password per RFC 7518 Section 4.8:
// PBKDF2 with the algorithm's HMAC, and a salt of the algorithm
// identifier, a zero byte, and the p2s value.
func pbes2Key(capability jwa.Capability, password []byte, alg jwa.Algorithm, salt []byte, count int) []byte {
	fullSalt := make([]byte, 0, len(alg)+1+len(salt))
	fullSalt = append(fullSalt, alg...)
	fullSalt = append(fullSalt, 0)
	fullSalt = append(fullSalt, salt...)

	wrapCapability, _ := jwa.Describe(capability.WrapAlg)

	return pbkdf2.Key(password, fullSalt, count, wrapCapability.KeyBits/8, capability.Hash.New)
}

func pbes2Count(h header.Parameters) (int, error) {
	value, err := h.Get(header.PBES2Count)
	if err != nil {
		return 0, ErrDecryption
	}

	var count int
	switch typed := value.(type) {
	case int:
		count = typed
	case float64:
		count = int(typed)
	default:
		return 0, ErrDecryption
	}

	if count < pbes2MinCount || count > pbes2MaxCount {
		return 0, fmt.Errorf("%w: unacceptable PBES2 iteration count", ErrDecryption)
	}

	return count, nil
}

// headerBytes reads a base64url-encoded binary header parameter.
func headerBytes(h header.Parameters, name header.ParameterName) ([]byte, error) {
	value, err := h.Get(name)
	if err != nil {
		return nil, err
	}
	encoded, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T, not a string", header.ErrInvalidParameterType, name, value)
	}
	return base64.Decode(encoded)
}

// partyInfo reads the optional apu and apv agreement parameters.
func partyInfo(h header.Parameters) (apu, apv []byte, err error) {
	if _, ok := h[header.AgreementPartyUInfo]; ok {
		apu, err = headerBytes(h, header.AgreementPartyUInfo)
		if err != nil {
			return nil, nil, err
		}
	}
	if _, ok := h[header.AgreementPartyVInfo]; ok {
		apv, err = headerBytes(h, header.AgreementPartyVInfo)
		if err != nil {
			return nil, nil, err
		}
	}
	return apu, apv, nil
}

// epkFromHeader extracts the ephemeral public key. A parsed header
// holds it as a plain JSON object; an in-memory header built by the
// encrypter holds the typed key.
func epkFromHeader(h header.Parameters) (*jwk.Key, error) {
	value, err := h.Get(header.EphemeralPublicKey)
	if err != nil {
		return nil, ErrDecryption
	}

	switch typed := value.(type) {
	case *jwk.Key:
		return typed, nil
	case map[string]any:
		raw, err := json.Marshal(typed)
		if err != nil {
			return nil, ErrDecryption
		}
		key, err := jwk.Parse(raw)
		if err != nil {
			return nil, ErrDecryption
		}
		return key, nil
	default:
		return nil, ErrDecryption
	}
}
