package jwk

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/matoous/jwx/pkg/base64"
	"github.com/matoous/jwx/pkg/jwa"
)

var (
	// ErrInvalidKey is returned for malformed or unsupported key material.
	ErrInvalidKey = errors.New("jwk: invalid key")

	// ErrNotPrivate is returned when an operation requires private key
	// material that the key does not carry. A public-only key must fail,
	// not no-op, when asked to produce a signature or decrypt.
	ErrNotPrivate = errors.New("jwk: key has no private material")
)

// Key type values registered in RFC 7518 Section 6.1.
const (
	KeyTypeOctet = "oct"
	KeyTypeRSA   = "RSA"
	KeyTypeEC    = "EC"
	KeyTypeOKP   = "OKP"
)

// Curve names for EC and OKP keys.
const (
	CurveP256    = "P-256"
	CurveP384    = "P-384"
	CurveP521    = "P-521"
	CurveEd25519 = "Ed25519"
	CurveX25519  = "X25519"
)

// Public key use values registered in RFC 7517 Section 4.2.
const (
	UseSignature  = "sig"
	UseEncryption = "enc"
)

// ByteString is binary key material that is base64url encoded on the
// wire, per RFC 7517.
type ByteString []byte

// MarshalJSON encodes the bytes as an unpadded base64url JSON string.
func (b ByteString) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.Encode(b))
}

// UnmarshalJSON decodes an unpadded base64url JSON string. Padded or
// non-base64url input is rejected.
func (b *ByteString) UnmarshalJSON(data []byte) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}

	decoded, err := base64.Decode(encoded)
	if err != nil {
		return err
	}

	*b = decoded
	return nil
}

// Key is a JSON Web Key, the typed representation of a single
// cryptographic key defined in RFC 7517.
//
// Keys are immutable value objects: they are validated when parsed or
// constructed, and never mutated afterwards, making them safe for
// concurrent use by any number of verifiers and decrypters.
//
// https://datatracker.ietf.org/doc/html/rfc7517#section-4
type Key struct {
	KeyType   string   `json:"kty"`
	Use       string   `json:"use,omitempty"`
	KeyOps    []string `json:"key_ops,omitempty"`
	Algorithm string   `json:"alg,omitempty"`
	KeyID     string   `json:"kid,omitempty"`

	X509URL              string   `json:"x5u,omitempty"`
	X509CertificateChain []string `json:"x5c,omitempty"`
	X509SHA1Thumbprint   string   `json:"x5t,omitempty"`
	X509SHA256Thumbprint string   `json:"x5t#S256,omitempty"`

	// EC and OKP parameters (RFC 7518 Section 6.2, RFC 8037).
	Curve string     `json:"crv,omitempty"`
	X     ByteString `json:"x,omitempty"`
	Y     ByteString `json:"y,omitempty"`

	// D is the private key for EC, OKP, and RSA keys.
	D ByteString `json:"d,omitempty"`

	// RSA parameters (RFC 7518 Section 6.3).
	N  ByteString `json:"n,omitempty"`
	E  ByteString `json:"e,omitempty"`
	P  ByteString `json:"p,omitempty"`
	Q  ByteString `json:"q,omitempty"`
	DP ByteString `json:"dp,omitempty"`
	DQ ByteString `json:"dq,omitempty"`
	QI ByteString `json:"qi,omitempty"`

	// Symmetric key value (RFC 7518 Section 6.4).
	K ByteString `json:"k,omitempty"`
}

// Parse parses and validates a single JWK from its JSON representation.
func Parse(data []byte) (*Key, error) {
	key := &Key{}
	if err := json.Unmarshal(data, key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	if err := key.Validate(); err != nil {
		return nil, err
	}

	return key, nil
}

// Validate checks that the required parameters for the key's type are
// present and well formed. EC public coordinates are checked to be on
// the named curve.
func (k *Key) Validate() error {
	switch k.KeyType {
	case KeyTypeOctet:
		if len(k.K) == 0 {
			return fmt.Errorf("%w: %q key requires %q", ErrInvalidKey, KeyTypeOctet, "k")
		}
	case KeyTypeRSA:
		if len(k.N) == 0 || len(k.E) == 0 {
			return fmt.Errorf("%w: %q key requires %q and %q", ErrInvalidKey, KeyTypeRSA, "n", "e")
		}
		if (len(k.P) > 0 || len(k.Q) > 0) && len(k.D) == 0 {
			return fmt.Errorf("%w: RSA primes present without private exponent", ErrInvalidKey)
		}
		if len(k.D) > 0 {
			// Building the private key validates the CRT values.
			if _, err := k.RSAPrivateKey(); err != nil {
				return err
			}
		}
	case KeyTypeEC:
		size, err := curveByteSize(k.Curve)
		if err != nil {
			return err
		}
		if len(k.X) != size || len(k.Y) != size {
			return fmt.Errorf("%w: EC coordinates must be %d bytes for %q", ErrInvalidKey, size, k.Curve)
		}
		// The ecdh constructor rejects points that are not on the curve.
		if _, err := k.ECDHPublicKey(); err != nil {
			return err
		}
		if len(k.D) > 0 && len(k.D) != size {
			return fmt.Errorf("%w: EC private key must be %d bytes for %q", ErrInvalidKey, size, k.Curve)
		}
	case KeyTypeOKP:
		switch k.Curve {
		case CurveEd25519, CurveX25519:
		default:
			return fmt.Errorf("%w: unsupported OKP curve %q", ErrInvalidKey, k.Curve)
		}
		if len(k.X) != 32 {
			return fmt.Errorf("%w: OKP %q key requires a 32 byte %q", ErrInvalidKey, k.Curve, "x")
		}
		if len(k.D) > 0 && len(k.D) != 32 {
			return fmt.Errorf("%w: OKP %q private key must be 32 bytes", ErrInvalidKey, k.Curve)
		}
	default:
		return fmt.Errorf("%w: unknown key type %q", ErrInvalidKey, k.KeyType)
	}

	return nil
}

// IsPrivate reports whether the key carries private material.
// Symmetric keys are always private.
func (k *Key) IsPrivate() bool {
	switch k.KeyType {
	case KeyTypeOctet:
		return true
	default:
		return len(k.D) > 0
	}
}

// Public returns a copy of the key with all private material removed.
// Symmetric keys have no public form and return an error.
func (k *Key) Public() (*Key, error) {
	if k.KeyType == KeyTypeOctet {
		return nil, fmt.Errorf("%w: symmetric keys have no public form", ErrInvalidKey)
	}

	public := *k
	public.D = nil
	public.P = nil
	public.Q = nil
	public.DP = nil
	public.DQ = nil
	public.QI = nil

	return &public, nil
}

// Bits returns the key size in bits: the length of the symmetric key,
// the RSA modulus size, or the field size of the named curve.
func (k *Key) Bits() int {
	switch k.KeyType {
	case KeyTypeOctet:
		return len(k.K) * 8
	case KeyTypeRSA:
		return new(big.Int).SetBytes(k.N).BitLen()
	case KeyTypeEC:
		switch k.Curve {
		case CurveP256:
			return 256
		case CurveP384:
			return 384
		case CurveP521:
			return 521
		}
	case KeyTypeOKP:
		return 256
	}
	return 0
}

// Compatible reports whether the key can be used with the given
// algorithm, checking the algorithm's capability descriptor against
// the key's type, curve, size, and declared usage constraints.
func (k *Key) Compatible(alg jwa.Algorithm) bool {
	capability, err := jwa.Describe(alg)
	if err != nil {
		return false
	}

	// "none" takes no key; no key is compatible with it.
	if capability.KeyType == "" {
		return false
	}

	if k.KeyType != capability.KeyType {
		return false
	}

	if capability.Curve != "" && k.Curve != capability.Curve {
		return false
	}

	// PBES2 passwords and direct-encryption keys have no fixed size
	// here; everything else is checked against the descriptor.
	if capability.KeyBits != 0 && k.Bits() != capability.KeyBits {
		return false
	}
	if capability.MinKeyBits != 0 && k.Bits() < capability.MinKeyBits {
		return false
	}

	if k.Use != "" {
		switch capability.Class {
		case jwa.ClassSignature:
			if k.Use != UseSignature {
				return false
			}
		case jwa.ClassKeyManagement, jwa.ClassContentEncryption:
			if k.Use != UseEncryption {
				return false
			}
		}
	}

	if k.Algorithm != "" && k.Algorithm != alg {
		return false
	}

	return true
}

// supportedCurves maps JWK curve names to their stdlib bindings.
func curveByteSize(curve string) (int, error) {
	switch curve {
	case CurveP256:
		return 32, nil
	case CurveP384:
		return 48, nil
	case CurveP521:
		return 66, nil
	default:
		return 0, fmt.Errorf("%w: unsupported curve %q", ErrInvalidKey, curve)
	}
}

func ellipticCurve(curve string) (elliptic.Curve, error) {
	switch curve {
	case CurveP256:
		return elliptic.P256(), nil
	case CurveP384:
		return elliptic.P384(), nil
	case CurveP521:
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported curve %q", ErrInvalidKey, curve)
	}
}

func ecdhCurve(curve string) (ecdh.Curve, error) {
	switch curve {
	case CurveP256:
		return ecdh.P256(), nil
	case CurveP384:
		return ecdh.P384(), nil
	case CurveP521:
		return ecdh.P521(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported curve %q", ErrInvalidKey, curve)
	}
}

// SymmetricKey returns a copy of the symmetric key octets.
func (k *Key) SymmetricKey() ([]byte, error) {
	if k.KeyType != KeyTypeOctet {
		return nil, fmt.Errorf("%w: not a symmetric key", ErrInvalidKey)
	}
	octets := make([]byte, len(k.K))
	copy(octets, k.K)
	return octets, nil
}

// RSAPublicKey returns the RSA public key.
func (k *Key) RSAPublicKey() (*rsa.PublicKey, error) {
	if k.KeyType != KeyTypeRSA {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKey)
	}

	e := new(big.Int).SetBytes(k.E)
	if !e.IsInt64() || e.Int64() <= 1 {
		return nil, fmt.Errorf("%w: invalid RSA public exponent", ErrInvalidKey)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(k.N),
		E: int(e.Int64()),
	}, nil
}

// RSAPrivateKey returns the RSA private key. The CRT values are
// recomputed and checked against any provided ones.
func (k *Key) RSAPrivateKey() (*rsa.PrivateKey, error) {
	if len(k.D) == 0 {
		return nil, fmt.Errorf("%w: RSA", ErrNotPrivate)
	}

	public, err := k.RSAPublicKey()
	if err != nil {
		return nil, err
	}

	private := &rsa.PrivateKey{
		PublicKey: *public,
		D:         new(big.Int).SetBytes(k.D),
	}

	if len(k.P) > 0 && len(k.Q) > 0 {
		private.Primes = []*big.Int{
			new(big.Int).SetBytes(k.P),
			new(big.Int).SetBytes(k.Q),
		}

		if err := private.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}

		private.Precompute()
	}

	return private, nil
}

// ECDSAPublicKey returns the ECDSA public key.
func (k *Key) ECDSAPublicKey() (*ecdsa.PublicKey, error) {
	if k.KeyType != KeyTypeEC {
		return nil, fmt.Errorf("%w: not an EC key", ErrInvalidKey)
	}

	curve, err := ellipticCurve(k.Curve)
	if err != nil {
		return nil, err
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(k.X),
		Y:     new(big.Int).SetBytes(k.Y),
	}, nil
}

// ECDSAPrivateKey returns the ECDSA private key.
func (k *Key) ECDSAPrivateKey() (*ecdsa.PrivateKey, error) {
	if len(k.D) == 0 {
		return nil, fmt.Errorf("%w: EC", ErrNotPrivate)
	}

	public, err := k.ECDSAPublicKey()
	if err != nil {
		return nil, err
	}

	return &ecdsa.PrivateKey{
		PublicKey: *public,
		D:         new(big.Int).SetBytes(k.D),
	}, nil
}

// ECDHPublicKey returns the key agreement form of the EC public key.
// Construction fails for points that are not on the curve.
func (k *Key) ECDHPublicKey() (*ecdh.PublicKey, error) {
	if k.KeyType != KeyTypeEC {
		return nil, fmt.Errorf("%w: not an EC key", ErrInvalidKey)
	}

	curve, err := ecdhCurve(k.Curve)
	if err != nil {
		return nil, err
	}

	size, err := curveByteSize(k.Curve)
	if err != nil {
		return nil, err
	}

	point := make([]byte, 1+2*size)
	point[0] = 4 // uncompressed form
	copy(point[1+size-len(k.X):], k.X)
	copy(point[1+2*size-len(k.Y):], k.Y)

	public, err := curve.NewPublicKey(point)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return public, nil
}

// ECDHPrivateKey returns the key agreement form of the EC private key.
func (k *Key) ECDHPrivateKey() (*ecdh.PrivateKey, error) {
	if len(k.D) == 0 {
		return nil, fmt.Errorf("%w: EC", ErrNotPrivate)
	}

	curve, err := ecdhCurve(k.Curve)
	if err != nil {
		return nil, err
	}

	private, err := curve.NewPrivateKey(k.D)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return private, nil
}

// Ed25519PublicKey returns the Ed25519 public key.
func (k *Key) Ed25519PublicKey() (ed25519.PublicKey, error) {
	if k.KeyType != KeyTypeOKP || k.Curve != CurveEd25519 {
		return nil, fmt.Errorf("%w: not an Ed25519 key", ErrInvalidKey)
	}
	return ed25519.PublicKey(k.X), nil
}

// Ed25519PrivateKey returns the Ed25519 private key, checking that the
// seed reproduces the declared public key.
func (k *Key) Ed25519PrivateKey() (ed25519.PrivateKey, error) {
	if k.KeyType != KeyTypeOKP || k.Curve != CurveEd25519 {
		return nil, fmt.Errorf("%w: not an Ed25519 key", ErrInvalidKey)
	}
	if len(k.D) == 0 {
		return nil, fmt.Errorf("%w: Ed25519", ErrNotPrivate)
	}

	private := ed25519.NewKeyFromSeed(k.D)

	if !ed25519.PublicKey(k.X).Equal(private.Public()) {
		return nil, fmt.Errorf("%w: Ed25519 public key does not match private seed", ErrInvalidKey)
	}

	return private, nil
}
