package jwa

import (
	"crypto"
	"errors"
	"fmt"
)

// ErrUnsupportedAlgorithm is returned when an algorithm identifier is
// outside the closed set implemented by this package, typically because
// it was parsed from untrusted header text.
var ErrUnsupportedAlgorithm = errors.New("jwa: unsupported algorithm")

// Class partitions the closed algorithm set by role.
type Class int

const (
	// ClassSignature algorithms produce or verify a JWS signature or MAC.
	ClassSignature Class = iota + 1

	// ClassKeyManagement algorithms determine the CEK of a JWE.
	ClassKeyManagement

	// ClassContentEncryption algorithms encrypt the JWE plaintext
	// with the CEK.
	ClassContentEncryption
)

// Key types registered for JWKs.
//
// https://datatracker.ietf.org/doc/html/rfc7518#section-6.1
const (
	KeyTypeOctet Algorithm = "oct"
	KeyTypeRSA   Algorithm = "RSA"
	KeyTypeEC    Algorithm = "EC"
	KeyTypeOKP   Algorithm = "OKP"
)

// Capability describes the requirements and properties of an algorithm
// in the closed set: the key type and size it demands, the hash it is
// bound to, and the material it consumes or produces. It is pure data;
// the engines consult it to validate keys before invoking primitives.
type Capability struct {
	// Class is the algorithm's role.
	Class Class

	// KeyType is the required JWK key type ("oct", "RSA", "EC", "OKP").
	// Empty for "none", which takes no key.
	KeyType string

	// Curve is the required curve name for EC and OKP algorithms.
	// Empty means any supported curve (e.g. ECDH-ES).
	Curve string

	// Hash is the hash function bound to the algorithm, if any.
	Hash crypto.Hash

	// KeyBits is an exact key size requirement in bits, 0 if none.
	KeyBits int

	// MinKeyBits is a minimum key size requirement in bits, 0 if none.
	MinKeyBits int

	// CEKBits is the content encryption key size this algorithm
	// requires (content encryption algorithms only).
	CEKBits int

	// IVSize is the initialization vector size in bytes consumed by
	// the algorithm, 0 if it takes no IV.
	IVSize int

	// TagSize is the authentication tag size in bytes produced by the
	// algorithm, 0 if it produces no tag.
	TagSize int

	// Ephemeral reports whether the algorithm generates an ephemeral
	// key pair during encryption (ECDH-ES family).
	Ephemeral bool

	// WrapAlg is the inner key wrapping algorithm for composite key
	// management algorithms (ECDH-ES+*KW, PBES2-*), empty otherwise.
	WrapAlg Algorithm
}

var capabilities = map[Algorithm]Capability{
	// JWS signature and MAC algorithms. HMAC keys must be at least as
	// large as the hash output (RFC 7518 Section 3.2).
	HS256: {Class: ClassSignature, KeyType: KeyTypeOctet, Hash: crypto.SHA256, MinKeyBits: 256},
	HS384: {Class: ClassSignature, KeyType: KeyTypeOctet, Hash: crypto.SHA384, MinKeyBits: 384},
	HS512: {Class: ClassSignature, KeyType: KeyTypeOctet, Hash: crypto.SHA512, MinKeyBits: 512},

	RS256: {Class: ClassSignature, KeyType: KeyTypeRSA, Hash: crypto.SHA256, MinKeyBits: 2048},
	RS384: {Class: ClassSignature, KeyType: KeyTypeRSA, Hash: crypto.SHA384, MinKeyBits: 2048},
	RS512: {Class: ClassSignature, KeyType: KeyTypeRSA, Hash: crypto.SHA512, MinKeyBits: 2048},

	PS256: {Class: ClassSignature, KeyType: KeyTypeRSA, Hash: crypto.SHA256, MinKeyBits: 2048},
	PS384: {Class: ClassSignature, KeyType: KeyTypeRSA, Hash: crypto.SHA384, MinKeyBits: 2048},
	PS512: {Class: ClassSignature, KeyType: KeyTypeRSA, Hash: crypto.SHA512, MinKeyBits: 2048},

	ES256: {Class: ClassSignature, KeyType: KeyTypeEC, Curve: "P-256", Hash: crypto.SHA256, KeyBits: 256},
	ES384: {Class: ClassSignature, KeyType: KeyTypeEC, Curve: "P-384", Hash: crypto.SHA384, KeyBits: 384},
	ES512: {Class: ClassSignature, KeyType: KeyTypeEC, Curve: "P-521", Hash: crypto.SHA512, KeyBits: 521},

	EdDSA: {Class: ClassSignature, KeyType: KeyTypeOKP, Curve: "Ed25519"},

	None: {Class: ClassSignature},

	// Key management algorithms.
	RSA1_5:     {Class: ClassKeyManagement, KeyType: KeyTypeRSA, MinKeyBits: 2048},
	RSAOAEP:    {Class: ClassKeyManagement, KeyType: KeyTypeRSA, Hash: crypto.SHA1, MinKeyBits: 2048},
	RSAOAEP256: {Class: ClassKeyManagement, KeyType: KeyTypeRSA, Hash: crypto.SHA256, MinKeyBits: 2048},

	A128KW: {Class: ClassKeyManagement, KeyType: KeyTypeOctet, KeyBits: 128},
	A192KW: {Class: ClassKeyManagement, KeyType: KeyTypeOctet, KeyBits: 192},
	A256KW: {Class: ClassKeyManagement, KeyType: KeyTypeOctet, KeyBits: 256},

	// Direct encryption: the shared key is the CEK, so its size is
	// checked against the content encryption algorithm instead.
	Direct: {Class: ClassKeyManagement, KeyType: KeyTypeOctet},

	ECDHES:       {Class: ClassKeyManagement, KeyType: KeyTypeEC, Hash: crypto.SHA256, Ephemeral: true},
	ECDHESA128KW: {Class: ClassKeyManagement, KeyType: KeyTypeEC, Hash: crypto.SHA256, Ephemeral: true, WrapAlg: A128KW},
	ECDHESA192KW: {Class: ClassKeyManagement, KeyType: KeyTypeEC, Hash: crypto.SHA256, Ephemeral: true, WrapAlg: A192KW},
	ECDHESA256KW: {Class: ClassKeyManagement, KeyType: KeyTypeEC, Hash: crypto.SHA256, Ephemeral: true, WrapAlg: A256KW},

	A128GCMKW: {Class: ClassKeyManagement, KeyType: KeyTypeOctet, KeyBits: 128, IVSize: 12, TagSize: 16},
	A192GCMKW: {Class: ClassKeyManagement, KeyType: KeyTypeOctet, KeyBits: 192, IVSize: 12, TagSize: 16},
	A256GCMKW: {Class: ClassKeyManagement, KeyType: KeyTypeOctet, KeyBits: 256, IVSize: 12, TagSize: 16},

	// PBES2 takes a password of any length; the KDF output feeds the
	// inner key wrap.
	PBES2HS256A128KW: {Class: ClassKeyManagement, KeyType: KeyTypeOctet, Hash: crypto.SHA256, WrapAlg: A128KW},
	PBES2HS384A192KW: {Class: ClassKeyManagement, KeyType: KeyTypeOctet, Hash: crypto.SHA384, WrapAlg: A192KW},
	PBES2HS512A256KW: {Class: ClassKeyManagement, KeyType: KeyTypeOctet, Hash: crypto.SHA512, WrapAlg: A256KW},

	// Content encryption algorithms. The CBC-HMAC composites use a
	// double-length CEK, half MAC key and half AES key, and truncate
	// the HMAC output to TagSize (RFC 7518 Section 5.2).
	A128CBCHS256: {Class: ClassContentEncryption, Hash: crypto.SHA256, CEKBits: 256, IVSize: 16, TagSize: 16},
	A192CBCHS384: {Class: ClassContentEncryption, Hash: crypto.SHA384, CEKBits: 384, IVSize: 16, TagSize: 24},
	A256CBCHS512: {Class: ClassContentEncryption, Hash: crypto.SHA512, CEKBits: 512, IVSize: 16, TagSize: 32},

	A128GCM: {Class: ClassContentEncryption, CEKBits: 128, IVSize: 12, TagSize: 16},
	A192GCM: {Class: ClassContentEncryption, CEKBits: 192, IVSize: 12, TagSize: 16},
	A256GCM: {Class: ClassContentEncryption, CEKBits: 256, IVSize: 12, TagSize: 16},
}

// Describe returns the capability descriptor for the given algorithm.
//
// The set is closed: ErrUnsupportedAlgorithm is returned for any
// identifier outside it. ES256K is a registered identifier but has no
// supported primitive binding here (the standard library provides no
// secp256k1 implementation), so it is reported as unsupported.
func Describe(alg Algorithm) (Capability, error) {
	capability, ok := capabilities[alg]
	if !ok {
		return Capability{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
	return capability, nil
}

// Known reports whether the given algorithm is in the closed set.
func Known(alg Algorithm) bool {
	_, ok := capabilities[alg]
	return ok
}

// SignatureAlgorithms returns the closed set of JWS algorithms,
// excluding "none".
func SignatureAlgorithms() []Algorithm {
	return []Algorithm{
		HS256, HS384, HS512,
		RS256, RS384, RS512,
		PS256, PS384, PS512,
		ES256, ES384, ES512,
		EdDSA,
	}
}

// KeyManagementAlgorithms returns the closed set of JWE key management
// algorithms.
func KeyManagementAlgorithms() []Algorithm {
	return []Algorithm{
		RSA1_5, RSAOAEP, RSAOAEP256,
		A128KW, A192KW, A256KW,
		Direct,
		ECDHES, ECDHESA128KW, ECDHESA192KW, ECDHESA256KW,
		A128GCMKW, A192GCMKW, A256GCMKW,
		PBES2HS256A128KW, PBES2HS384A192KW, PBES2HS512A256KW,
	}
}

// ContentEncryptionAlgorithms returns the closed set of JWE content
// encryption algorithms.
func ContentEncryptionAlgorithms() []Algorithm {
	return []Algorithm{
		A128CBCHS256, A192CBCHS384, A256CBCHS512,
		A128GCM, A192GCM, A256GCM,
	}
}
