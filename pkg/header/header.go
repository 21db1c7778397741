package header

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/matoous/jwx/pkg/base64"
	"github.com/matoous/jwx/pkg/jwa"
)

var (
	// ErrParameterNotFound is returned when a requested header
	// parameter is not present.
	ErrParameterNotFound = errors.New("header: parameter not found")

	// ErrInvalidParameterType is returned when a header parameter is
	// present but holds a value of an unexpected type.
	ErrInvalidParameterType = errors.New("header: invalid parameter type")
)

// There are three classes of Header Parameter names: Registered Header
// Parameter names, Public Header Parameter names, and Private Header
// Parameter names.
//
// https://datatracker.ietf.org/doc/html/rfc7515#section-4
type (
	ParameterName = string

	Registered = ParameterName
	Public     = ParameterName
	Private    = ParameterName
)

// Registered Header Parameter Names
//
// https://datatracker.ietf.org/doc/html/rfc7515#section-4.1
const (
	Type                            Registered = "typ"
	Algorithm                       Registered = "alg"
	JWKSetURL                       Registered = "jku"
	JSONWebKey                      Registered = "jwk"
	KeyID                           Registered = "kid"
	X509URL                         Registered = "x5u"
	X509CertificateChain            Registered = "x5c"
	X509CertificateSHA1Thumbprint   Registered = "x5t"
	X509CertificateSHA256Thumbprint Registered = "x5t#S256"
	ContentType                     Registered = "cty"
	Critical                        Registered = "crit"
)

// Registered JWE Header Parameter Names
//
// https://datatracker.ietf.org/doc/html/rfc7516#section-4.1
// https://datatracker.ietf.org/doc/html/rfc7518#section-4.6.1
const (
	Encryption           Registered = "enc"
	Compression          Registered = "zip"
	EphemeralPublicKey   Registered = "epk"
	AgreementPartyUInfo  Registered = "apu"
	AgreementPartyVInfo  Registered = "apv"
	InitializationVector Registered = "iv"
	AuthenticationTag    Registered = "tag"
	PBES2Salt            Registered = "p2s"
	PBES2Count           Registered = "p2c"
)

const TypeJWT = "JWT"

// registered is the set of parameter names that are defined by the
// JOSE specifications themselves, and therefore must never appear in
// a "crit" list (RFC 7515 Section 4.1.11).
var registered = map[ParameterName]struct{}{
	Type: {}, Algorithm: {}, JWKSetURL: {}, JSONWebKey: {}, KeyID: {},
	X509URL: {}, X509CertificateChain: {}, X509CertificateSHA1Thumbprint: {},
	X509CertificateSHA256Thumbprint: {}, ContentType: {}, Critical: {},
	Encryption: {}, Compression: {}, EphemeralPublicKey: {},
	AgreementPartyUInfo: {}, AgreementPartyVInfo: {},
	InitializationVector: {}, AuthenticationTag: {},
	PBES2Salt: {}, PBES2Count: {},
}

// Parameters is a JSON object containing the parameters describing
// the cryptographic operations and parameters employed.
//
// The JOSE (JSON Object Signing and Encryption) Header is comprised
// of a set of Header Parameters.
type Parameters map[ParameterName]any

// Base64URLString returns the base64url encoding of the parameters'
// compact JSON serialization. The member order is the deterministic
// order produced by encoding/json (lexicographic by member name).
func (h Parameters) Base64URLString() (string, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("failed to encode JOSE header: %w", err)
	}
	return base64.Encode(b), nil
}

// Get returns the value of the given parameter, or an error wrapping
// ErrParameterNotFound if it is absent.
func (h Parameters) Get(param ParameterName) (any, error) {
	value, ok := h[param]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrParameterNotFound, param)
	}
	return value, nil
}

func (h Parameters) stringParameter(param ParameterName) (string, error) {
	value, ok := h[param]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrParameterNotFound, param)
	}
	strValue, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, not a string", ErrInvalidParameterType, param, value)
	}
	return strValue, nil
}

// Type returns the "typ" parameter value.
func (h Parameters) Type() (string, error) {
	return h.stringParameter(Type)
}

// Algorithm returns the "alg" parameter value.
func (h Parameters) Algorithm() (jwa.Algorithm, error) {
	return h.stringParameter(Algorithm)
}

// Encryption returns the "enc" parameter value.
func (h Parameters) Encryption() (jwa.Algorithm, error) {
	return h.stringParameter(Encryption)
}

// KeyID returns the "kid" parameter value.
func (h Parameters) KeyID() (string, error) {
	return h.stringParameter(KeyID)
}

// ContentTypeValue returns the "cty" parameter value.
func (h Parameters) ContentTypeValue() (string, error) {
	return h.stringParameter(ContentType)
}

// CriticalParameters returns the names listed in the "crit" parameter.
// A missing "crit" parameter yields an empty list; an ill-typed one is
// an error.
func (h Parameters) CriticalParameters() ([]ParameterName, error) {
	value, ok := h[Critical]
	if !ok {
		return nil, nil
	}

	var names []ParameterName

	switch typed := value.(type) {
	case []string:
		names = typed
	case []any:
		for _, entry := range typed {
			name, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %q entry is %T, not a string", ErrInvalidParameterType, Critical, entry)
			}
			names = append(names, name)
		}
	default:
		return nil, fmt.Errorf("%w: %q is %T, not an array", ErrInvalidParameterType, Critical, value)
	}

	return names, nil
}

// Clone returns a shallow copy of the parameters. Each JWS or JWE
// object owns its own header; engines clone caller-supplied
// parameters rather than aliasing them.
func (h Parameters) Clone() Parameters {
	if h == nil {
		return nil
	}
	clone := make(Parameters, len(h))
	for name, value := range h {
		clone[name] = value
	}
	return clone
}

// Merge returns the union of the given parameter sets, later sets
// overriding earlier ones. Used to assemble the complete JOSE header
// of a JWE recipient from the protected, shared unprotected, and
// per-recipient headers.
func Merge(sets ...Parameters) Parameters {
	merged := Parameters{}
	for _, set := range sets {
		for name, value := range set {
			merged[name] = value
		}
	}
	return merged
}
