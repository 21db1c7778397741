package jwt

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/matoous/jwx/pkg/base64"
)

// There are three classes of JWT Claim Names:
// 1. Registered Claim Names
// 2. Public Claim Names
// 3. Private Claim Names
type (
	ClaimName = string

	Registered = ClaimName
	Public     = ClaimName
	Private    = ClaimName
)

// ClaimValue is a piece of information asserted about a subject, represented
// as a name/value pair consisting of a ClaimName and a ClaimValue.
type ClaimValue any

// Registered Claim Names
//
// https://datatracker.ietf.org/doc/html/rfc7519#section-4.1
const (
	Issuer         Registered = "iss"
	Subject        Registered = "sub"
	Audience       Registered = "aud"
	ExpirationTime Registered = "exp"
	NotBefore      Registered = "nbf"
	IssuedAt       Registered = "iat"
	JWTID          Registered = "jti"
)

// ClaimsSet is a JSON object that contains the claims conveyed by the JWT.
//
// A claim is a piece of information asserted about a subject, represented
// as a name/value pair consisting of a Claim Name and a Claim Value.
type ClaimsSet map[ClaimName]ClaimValue

// String returns the base64url encoding of the claims set's JSON
// serialization, the form it takes as a JWS payload.
func (claims ClaimsSet) String() string {
	b, err := json.Marshal(claims)
	if err != nil {
		return fmt.Sprintf("<invalid-claims-set %q: %#v>", err, claims)
	}

	return base64.Encode(b)
}

// Clone returns a copy of the claims set. The token owns its own
// claims; normalization never writes into a caller-supplied map.
func (claims ClaimsSet) Clone() ClaimsSet {
	if claims == nil {
		return nil
	}
	clone := make(ClaimsSet, len(claims))
	for name, value := range claims {
		clone[name] = value
	}
	return clone
}

func (claims ClaimsSet) Get(name ClaimName) (ClaimValue, error) {
	value, ok := claims[name]
	if !ok {
		return nil, fmt.Errorf("claim %q not found in claims set", name)
	}
	return value, nil
}

func (claims ClaimsSet) Set(name ClaimName, value ClaimValue) {
	claims[name] = value
}

func (claims ClaimsSet) Names() []ClaimName {
	var names []ClaimName

	for name := range claims {
		names = append(names, name)
	}

	sort.SliceStable(names, func(i, j int) bool {
		return names[i] > names[j]
	})

	return names
}

// Audiences returns the "aud" claim as a list. The claim is a single
// string or an array of strings on the wire; both forms normalize to
// a list here.
func (claims ClaimsSet) Audiences() ([]string, error) {
	value, ok := claims[Audience]
	if !ok {
		return nil, nil
	}

	switch typed := value.(type) {
	case string:
		return []string{typed}, nil
	case []string:
		return typed, nil
	case []any:
		audiences := make([]string, 0, len(typed))
		for _, entry := range typed {
			audience, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("invalid type %T used in %q", entry, Audience)
			}
			audiences = append(audiences, audience)
		}
		return audiences, nil
	default:
		return nil, fmt.Errorf("invalid type %T used for %q", value, Audience)
	}
}
