// Package base64 provides base64url encoding and decoding functions
// as defined in RFC 4648 Section 5, specifically for use in JSON Web
// Signatures (JWS), JSON Web Encryption (JWE), and JSON Web Tokens (JWT).
//
// The key differences from standard base64 encoding are:
//   - Uses URL-safe characters (- and _ instead of + and /)
//   - Omits padding characters (=) in the encoded output
//   - Rejects padded input when decoding, as required by RFC 7515
//
// http://www.rfc-editor.org/rfc/rfc4648#section-5
package base64
