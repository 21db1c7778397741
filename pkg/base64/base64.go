package base64

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Decode returns the base64url decoded bytes from the given input.
// This function implements base64url decoding as defined in RFC 4648
// Section 5, as used by the JOSE specifications (RFC 7515, RFC 7516).
//
// Input must use the unpadded, URL-safe alphabet. Padded input is
// rejected, matching the JWS and JWE wire format requirements.
//
// An empty input decodes to an empty byte slice, which is a legal
// value for several JOSE fields (e.g. the encrypted key of a direct
// encryption JWE, or the signature of an unsecured JWS).
func Decode(input string) ([]byte, error) {
	if strings.ContainsRune(input, '=') {
		return nil, fmt.Errorf("base64: padded input is not allowed")
	}

	result, err := base64.RawURLEncoding.Strict().DecodeString(input)
	if err != nil {
		return nil, fmt.Errorf("base64: invalid base64url input: %w", err)
	}

	return result, nil
}

// Encode returns the base64url encoded string for the given input,
// using the unpadded, URL-safe alphabet from RFC 4648 Section 5
// required by the JOSE specifications.
func Encode(input []byte) string {
	return base64.RawURLEncoding.EncodeToString(input)
}
