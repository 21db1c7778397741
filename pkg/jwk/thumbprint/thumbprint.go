package thumbprint

import (
	"bytes"
	"crypto"
	"errors"
	"fmt"

	"github.com/matoous/jwx/pkg/base64"
	"github.com/matoous/jwx/pkg/jwk"
)

var (
	ErrInvalidKey = errors.New("thumbprint: invalid key")
)

// Generate returns the JWK Thumbprint for the given key following the
// steps defined in RFC 7638.
//
// The thumbprint input is a JSON object containing only the required
// members of the key, with no whitespace, and with the members ordered
// lexicographically by member name. This canonical byte sequence is an
// exact contract: the same logical key always hashes to the same
// thumbprint, independent of how its JSON representation was ordered.
//
// The required members per key type (RFC 7638 Section 3.2, RFC 8037
// Appendix A.3):
//
//   - EC:  crv, kty, x, y
//   - OKP: crv, kty, x
//   - RSA: e, kty, n
//   - oct: k, kty
func Generate(key *jwk.Key, h crypto.Hash) ([]byte, error) {
	if key == nil {
		return nil, ErrInvalidKey
	}

	var members [][2]string

	switch key.KeyType {
	case jwk.KeyTypeEC:
		if key.Curve == "" || len(key.X) == 0 || len(key.Y) == 0 {
			return nil, ErrInvalidKey
		}
		members = [][2]string{
			{"crv", key.Curve},
			{"kty", key.KeyType},
			{"x", base64.Encode(key.X)},
			{"y", base64.Encode(key.Y)},
		}
	case jwk.KeyTypeOKP:
		if key.Curve == "" || len(key.X) == 0 {
			return nil, ErrInvalidKey
		}
		members = [][2]string{
			{"crv", key.Curve},
			{"kty", key.KeyType},
			{"x", base64.Encode(key.X)},
		}
	case jwk.KeyTypeRSA:
		if len(key.N) == 0 || len(key.E) == 0 {
			return nil, ErrInvalidKey
		}
		members = [][2]string{
			{"e", base64.Encode(key.E)},
			{"kty", key.KeyType},
			{"n", base64.Encode(key.N)},
		}
	case jwk.KeyTypeOctet:
		if len(key.K) == 0 {
			return nil, ErrInvalidKey
		}
		members = [][2]string{
			{"k", base64.Encode(key.K)},
			{"kty", key.KeyType},
		}
	default:
		return nil, ErrInvalidKey
	}

	// Get a lexical representation of the JSON object; the standard
	// library's json.Marshal is not used here because the byte-exact
	// member order is the contract, not an implementation detail.
	b := bytes.NewBuffer(nil)

	b.WriteRune('{')
	for i, member := range members {
		if i > 0 {
			b.WriteRune(',')
		}
		fmt.Fprintf(b, "%q:%q", member[0], member[1])
	}
	b.WriteRune('}')

	// Hash the octets of the UTF-8 representation of this JSON object.
	// SHA-256 is used when no hash is specified.
	if h == 0 {
		h = crypto.SHA256
	}

	hash := h.New()

	_, err := hash.Write(b.Bytes())
	if err != nil {
		return nil, err
	}

	return hash.Sum(nil), nil
}

// GenerateString returns the JWK Thumbprint for the given key following
// the steps defined in RFC 7638 as a base64url encoded string, the form
// commonly used as a key ID.
func GenerateString(key *jwk.Key, h crypto.Hash) (string, error) {
	thumbprint, err := Generate(key, h)
	if err != nil {
		return "", err
	}

	return base64.Encode(thumbprint), nil
}
