// Package keyutil provides helpers for generating and parsing the key
// material the jws, jwe, and jwt packages consume: PEM-encoded keys on
// disk, fresh key pairs for tests and tools, and conversions into JWK
// form.
package keyutil

import (
	"bytes"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"

	"github.com/matoous/jwx/pkg/jwk"
	"github.com/matoous/jwx/pkg/secret"
)

// SymmetricKeysEqual checks if the given keys are the same,
// in constant time.
func SymmetricKeysEqual(key1 []byte, key2 []byte) bool {
	return secret.Equal(key1, key2)
}

// NewSymmetricKey generates a new symmetric key of the given size.
func NewSymmetricKey(size int) ([]byte, error) {
	key := make([]byte, size)

	_, err := rand.Read(key)
	if err != nil {
		return nil, fmt.Errorf("failed to generate new symmetric key: %w", err)
	}

	return key, nil
}

// ParsePrivateKey parses a PEM encoded private key from the given
// reader, trying PKCS#8, PKCS#1, and SEC 1 encodings in turn. The
// result is a *rsa.PrivateKey, *ecdsa.PrivateKey, or
// ed25519.PrivateKey.
func ParsePrivateKey(r io.Reader) (any, error) {
	block, err := readPEMBlock(r)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	return nil, fmt.Errorf("failed to parse private key, unknown type")
}

// ParsePublicKey parses a PEM encoded public key from the given
// reader. Certificates are accepted too, yielding their subject
// public key.
func ParsePublicKey(r io.Reader) (any, error) {
	block, err := readPEMBlock(r)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		return key, nil
	}
	if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
		return cert.PublicKey, nil
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}

	return nil, fmt.Errorf("failed to parse public key, unknown type")
}

// ParseRSAPrivateKey parses the PEM encoded RSA private key from the given reader.
func ParseRSAPrivateKey(r io.Reader) (*rsa.PrivateKey, error) {
	parsed, err := ParsePrivateKey(r)
	if err != nil {
		return nil, err
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("invalid type %T for parse RSA private key", parsed)
	}
	return key, nil
}

// ParseRSAPublicKey parses the PEM encoded RSA public key from the given reader.
func ParseRSAPublicKey(r io.Reader) (*rsa.PublicKey, error) {
	parsed, err := ParsePublicKey(r)
	if err != nil {
		return nil, err
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("invalid type %T for parse RSA public key", parsed)
	}
	return key, nil
}

// ParseECDSAPrivateKey parses the PEM encoded ECDSA private key from the given reader.
func ParseECDSAPrivateKey(r io.Reader) (*ecdsa.PrivateKey, error) {
	parsed, err := ParsePrivateKey(r)
	if err != nil {
		return nil, err
	}

	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("invalid type %T for parse ECDSA private key", parsed)
	}
	return key, nil
}

// ParseECDSAPublicKey parses the PEM encoded ECDSA public key from the given reader.
func ParseECDSAPublicKey(r io.Reader) (*ecdsa.PublicKey, error) {
	parsed, err := ParsePublicKey(r)
	if err != nil {
		return nil, err
	}

	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("invalid type %T for parse ECDSA public key", parsed)
	}
	return key, nil
}

// ParseEdDSAPrivateKey parses the PEM encoded Ed25519 private key from the given reader.
func ParseEdDSAPrivateKey(r io.Reader) (ed25519.PrivateKey, error) {
	parsed, err := ParsePrivateKey(r)
	if err != nil {
		return nil, err
	}

	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("invalid type %T for parse EdDSA private key", parsed)
	}
	return key, nil
}

// ParseEdDSAPublicKey parses the PEM encoded Ed25519 public key from the given reader.
func ParseEdDSAPublicKey(r io.Reader) (ed25519.PublicKey, error) {
	parsed, err := ParsePublicKey(r)
	if err != nil {
		return nil, err
	}

	key, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("invalid type %T for parse EdDSA public key", parsed)
	}
	return key, nil
}

// ParseJWK parses a PEM encoded private or public key from the given
// reader into JWK form.
func ParseJWK(r io.Reader) (*jwk.Key, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read key from reader: %w", err)
	}

	if parsed, err := ParsePrivateKey(bytes.NewReader(data)); err == nil {
		return jwk.FromKey(parsed)
	}

	parsed, err := ParsePublicKey(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return jwk.FromKey(parsed)
}

// NewRSAKeyPair returns a new RSA key pair, or an error if one occurs.
func NewRSAKeyPair() (*rsa.PublicKey, *rsa.PrivateKey, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate new RSA key pair: %w", err)
	}

	return &privateKey.PublicKey, privateKey, nil
}

// NewECDSAKeyPair returns a new ECDSA key pair on P-256, or an error
// if one occurs.
func NewECDSAKeyPair() (*ecdsa.PublicKey, *ecdsa.PrivateKey, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate new ECDSA key pair: %w", err)
	}

	return &privateKey.PublicKey, privateKey, nil
}

// NewEdDSAKeyPair returns a new EdDSA key pair, or an error if one occurs.
func NewEdDSAKeyPair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate new EdDSA key pair: %w", err)
	}

	return publicKey, privateKey, nil
}

// NewECDHKeyPair returns a new key agreement key pair on the given
// curve, for use with the ECDH-ES family.
func NewECDHKeyPair(curve ecdh.Curve) (*ecdh.PublicKey, *ecdh.PrivateKey, error) {
	privateKey, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate new ECDH key pair: %w", err)
	}

	return privateKey.PublicKey(), privateKey, nil
}

func readPEMBlock(r io.Reader) (*pem.Block, error) {
	keyBytes, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read key from reader: %w", err)
	}

	block, _ := pem.Decode(keyBytes)
	if block == nil {
		return nil, fmt.Errorf("failed to decode key PEM block")
	}

	return block, nil
}
