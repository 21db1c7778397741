package jwt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"golang.org/x/exp/slices"

	"github.com/matoous/jwx/pkg/base64"
	"github.com/matoous/jwx/pkg/header"
	"github.com/matoous/jwx/pkg/jwa"
	"github.com/matoous/jwx/pkg/jwk"
	"github.com/matoous/jwx/pkg/jws"
)

// Type "JWT" is the media type used by JSON Web Token (JWT).
//
// # Example
//
//	header := header.Parameters{
//		header.Type:      jwt.Type,
//		header.Algorithm: jwa.HS256,
//	}
//
// https://www.rfc-editor.org/rfc/rfc7515.html#section-3.3
const Type = header.TypeJWT

// Token is a decoded JSON Web Token: a set of claims encoded as the
// payload of a JWS in compact serialization.
//
// JWTs contain three parts, separated by dots (".") which are:
//
//  1. Header
//  2. Claims (Payload)
//  3. Signature
//
// https://datatracker.ietf.org/doc/html/rfc7519#section-1
type Token struct {
	// Header is the set of parameters that are used to describe
	// the cryptographic operations applied to the JWT claims set.
	Header header.Parameters

	// Claims is the set of claims that are asserted by the JWT.
	//
	// This is sometimes referred to as the "payload".
	Claims ClaimsSet

	// Signature is the cryptographic signature or MAC value
	// that is used to validate the JWT.
	Signature []byte

	// raw is the original compact serialization of the JWT.
	raw string
}

// NewID returns a unique identifier suitable for the "jti" claim.
func NewID() string {
	return uuid.NewString()
}

// New creates a signed Token. If this fails for any reason, an error
// is returned with a nil token.
//
// The header parameters must define the algorithm "alg"; the "typ"
// parameter defaults to "JWT" and must be "JWT" when given. The claims
// set must not be empty. Time-valued claims may be given as time.Time
// and are stored as Unix seconds.
//
// The key may be a *jwk.Key or any standard library key the jwk
// package understands. Its type must suit the algorithm: octets for
// HS*, an RSA private key for RS*/PS*, an EC private key for ES*, an
// Ed25519 private key for EdDSA. The unsecured "none" algorithm takes
// a nil key and requires jws.WithInsecureNoSignature.
func New(params header.Parameters, claims ClaimsSet, key any, opts ...jws.SignOption) (*Token, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("cannot create token with empty header parameters")
	}

	if len(claims) == 0 {
		return nil, ErrNoClaimSet
	}

	claims = claims.Clone()

	// Verify or otherwise handle registered claim types nicely.
	for name, value := range claims {
		switch name {
		case ExpirationTime, NotBefore, IssuedAt:
			switch v := value.(type) {
			// good
			case int64:
			// ok
			case int:
				claims[name] = int64(v)
			case time.Time:
				claims[name] = v.Unix()
			// bad
			default:
				return nil, fmt.Errorf("cannot use %T with %q", v, name)
			}
		case Issuer, Subject:
			switch v := value.(type) {
			// good
			case string:
			// ok
			case fmt.Stringer:
				claims[name] = v.String()
			// bad
			default:
				return nil, fmt.Errorf("cannot use %T with %q", v, name)
			}
		}
	}

	params = params.Clone()

	// Ensure the "typ" header parameter is set to "JWT", as it is required.
	if _, ok := params[header.Type]; !ok {
		params[header.Type] = Type
	} else if params[header.Type] != Type {
		return nil, fmt.Errorf("header type %q is not supported", params[header.Type])
	}

	alg, err := params.Algorithm()
	if err != nil {
		return nil, fmt.Errorf("missing JWT header algorithm: %w", err)
	}

	var signingKey *jwk.Key
	if alg != jwa.None {
		signingKey, err = jwk.FromKey(key)
		if err != nil {
			return nil, err
		}
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to encode claims set: %w", err)
	}

	m, err := jws.Sign(payload, signingKey, alg, params, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	raw, err := m.Compact()
	if err != nil {
		return nil, err
	}

	return &Token{
		Header:    m.Signatures[0].Protected(),
		Claims:    claims,
		Signature: m.Signatures[0].Signature,
		raw:       raw,
	}, nil
}

// String returns the compact serialization of the token: three
// base64url encoded parts, separated by periods.
func (t *Token) String() string {
	if len(t.raw) != 0 {
		return t.raw
	}

	// An unsigned token still has a printable form, for logging and
	// debugging. It is not verifiable.
	h, err := t.Header.Base64URLString()
	if err != nil {
		h = fmt.Sprintf("<invalid-header %#v>", t.Header)
	}

	s := h + "." + t.Claims.String()
	if len(t.Signature) != 0 {
		s += "." + base64.Encode(t.Signature)
	}

	return s
}

// Parseable is a type that can be parsed into a JWT,
// either a string or byte slice.
type Parseable interface {
	~string | ~[]byte
}

// Parse parses a given JWT, and returns a Token or an error
// if the JWT fails to parse.
//
// # Warning
//
// This is a low-level function that does not verify the
// signature of the token. Use ParseAndVerify to parse
// and verify the signature of a token in one step.
func Parse[T Parseable](input T) (*Token, error) {
	return ParseString(string(input))
}

// ParseAndVerify parses a given JWT, and verifies the signature
// using the given verification configuration options.
func ParseAndVerify[T Parseable](input T, verifyOptions ...VerifyOption) (*Token, error) {
	token, err := Parse(input)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	err = token.Verify(verifyOptions...)
	if err != nil {
		return nil, err
	}

	return token, nil
}

// ParseString parses a given JWT string, and returns a Token
// or an error if the JWT fails to parse.
//
// # Warning
//
// This is a low-level function that does not verify the
// signature of the token. Use ParseAndVerify to parse
// and verify the signature of a token in one step.
func ParseString(input string) (*Token, error) {
	m, err := jws.ParseCompact(input)
	if err != nil {
		return nil, err
	}

	claims := ClaimsSet{}
	if err := json.Unmarshal(m.Payload(), &claims); err != nil {
		return nil, fmt.Errorf("failed to decode claims JSON: %w", err)
	}

	for claimName, claimValue := range claims {
		// parsing JSON values into an interface can be tricky
		switch claimName {
		case IssuedAt, ExpirationTime, NotBefore:
			switch v := claimValue.(type) {
			case int64: // good
			case float64: // ok
				claims[claimName] = int64(v)
			default: // bad
				return nil, fmt.Errorf("invalid type %T used for %q", v, claimName)
			}
		}
	}

	return &Token{
		Header:    m.Signatures[0].Protected(),
		Claims:    claims,
		Signature: m.Signatures[0].Signature,
		raw:       input,
	}, nil
}

// Clock is type used to represent a function that returns the current time.
type Clock func() time.Time

// VerifyConfig is a configuration type for verifying JWTs.
type VerifyConfig struct {
	// InsecureAllowNone allows the "none" algorithm to be used, which
	// is considered insecure, dangerous, and disabled by default. It must be
	// set in addition to being enabled in the allowed algorithms.
	InsecureAllowNone bool

	// AllowedAlgorithms is a set of allowed algorithms for the JWT.
	//
	// If not set, then DefaultAllowedAlgorithms will be used.
	AllowedAlgorithms []jwa.Algorithm

	// AllowedIssuers is a set of allowed issuers for the JWT.
	//
	// If not set, then any issuers are allowed.
	AllowedIssuers []string

	// AllowedAudiences is a set of allowed audiences for the JWT.
	//
	// If not set, then any audiences are allowed.
	AllowedAudiences []string

	// AllowedKeys is a set of allowed keys for the JWT.
	//
	// If not set, then verification will fail if the algorithm
	// is not "none".
	AllowedKeys []any

	// CriticalParameters is the set of extension header parameter
	// names the caller understands.
	CriticalParameters []header.ParameterName

	// Clock is a function that returns the current time.
	//
	// This is used to verify the "exp" and "nbf" claims.
	//
	// If not set, then time.Now will be used.
	Clock Clock

	// ClockSkew is the tolerance applied when comparing the "exp" and
	// "nbf" claims against the clock, absorbing small clock
	// differences between issuer and verifier. Zero by default.
	ClockSkew time.Duration
}

// VerifyOption is a functional option type used to configure
// the verification requirements for JWTs.
type VerifyOption func(*VerifyConfig) error

// WithAllowInsecureNoneAlgorithm allows the "none" algorithm to be used.
// Users must explicitly enable this option, as it is
// considered insecure, dangerous, and disabled by default.
//
// # WARNING
//
// This is not recommended, and should only be used
// for testing purposes.
func WithAllowInsecureNoneAlgorithm(value bool) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.InsecureAllowNone = value
		return nil
	}
}

// WithAllowedIssuers sets the allowed issuers for the JWT.
func WithAllowedIssuers(issuers ...string) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.AllowedIssuers = issuers
		return nil
	}
}

// WithAllowedAudiences sets the allowed audiences for the JWT.
func WithAllowedAudiences(audiences ...string) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.AllowedAudiences = audiences
		return nil
	}
}

// WithAllowedAlgorithms sets the allowed algorithms for the JWT.
func WithAllowedAlgorithms(algs ...jwa.Algorithm) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.AllowedAlgorithms = algs
		return nil
	}
}

// WithKey appends a key to the set of allowed keys for the JWT. The
// key may be a *jwk.Key or any standard library key the jwk package
// understands.
func WithKey(key any) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.AllowedKeys = append(vc.AllowedKeys, key)
		return nil
	}
}

// WithKeys sets the allowed keys for the JWT.
func WithKeys(keys ...any) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.AllowedKeys = keys
		return nil
	}
}

// WithCriticalParameters declares the extension header parameters the
// caller understands, satisfying the "crit" rule for them.
func WithCriticalParameters(names ...header.ParameterName) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.CriticalParameters = names
		return nil
	}
}

// WithClock sets the clock function for verifying the JWT.
func WithClock(clock Clock) VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.Clock = clock
		return nil
	}
}

// WithDefaultClock sets the clock function for verifying the JWT
// to time.Now.
func WithDefaultClock() VerifyOption {
	return func(vc *VerifyConfig) error {
		vc.Clock = time.Now
		return nil
	}
}

// WithClockSkew sets the tolerance applied to time claim checks.
func WithClockSkew(skew time.Duration) VerifyOption {
	return func(vc *VerifyConfig) error {
		if skew < 0 {
			return fmt.Errorf("clock skew cannot be negative")
		}
		vc.ClockSkew = skew
		return nil
	}
}

// DefaultAllowedAlgorithms returns the algorithms accepted when no
// explicit set is configured: asymmetric signatures only. MAC
// algorithms must be opted into, so that a service verifying
// third-party tokens cannot be confused into treating a public key
// as an HMAC secret.
func DefaultAllowedAlgorithms() []jwa.Algorithm {
	return []jwa.Algorithm{
		jwa.RS256, jwa.RS384, jwa.RS512,
		jwa.PS256, jwa.PS384, jwa.PS512,
		jwa.ES256, jwa.ES384, jwa.ES512,
		jwa.EdDSA,
	}
}

// Verify is used to verify a signed Token object with the given config
// options. If this fails for any reason, an error wrapping
// ErrInvalidToken is returned.
func (t *Token) Verify(opts ...VerifyOption) error {
	config := &VerifyConfig{
		AllowedAlgorithms: DefaultAllowedAlgorithms(),
		Clock:             time.Now,
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return fmt.Errorf("verify option error: %w", err)
		}
	}

	if err := t.verifySignature(config); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if err := t.verifyClaims(config); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	return nil
}

func (t *Token) verifySignature(config *VerifyConfig) error {
	m, err := jws.ParseCompact(t.String())
	if err != nil {
		return err
	}

	keys := make([]*jwk.Key, 0, len(config.AllowedKeys))
	for _, key := range config.AllowedKeys {
		converted, err := jwk.FromKey(key)
		if err != nil {
			return err
		}
		keys = append(keys, converted)
	}

	jwsOpts := []jws.VerifyOption{
		jws.WithAllowedAlgorithms(config.AllowedAlgorithms...),
	}
	if config.InsecureAllowNone {
		jwsOpts = append(jwsOpts, jws.WithInsecureAllowNone())
	}
	if len(config.CriticalParameters) > 0 {
		jwsOpts = append(jwsOpts, jws.WithCriticalParameters(config.CriticalParameters...))
	}

	_, err = jws.Verify(m, keys, jwsOpts...)
	return err
}

func (t *Token) verifyClaims(config *VerifyConfig) error {
	// If the allowed issuers is empty, then any issuer is allowed.
	if config.AllowedIssuers != nil {
		issuer, _ := t.Claims[Issuer].(string)

		if !slices.Contains(config.AllowedIssuers, issuer) {
			return fmt.Errorf("%w: %q", ErrIssuerNotAllowed, issuer)
		}
	}

	// If the allowed audiences is empty, then any audience is allowed.
	if config.AllowedAudiences != nil {
		audiences, err := t.Claims.Audiences()
		if err != nil {
			return err
		}

		allowed := false
		for _, audience := range audiences {
			if slices.Contains(config.AllowedAudiences, audience) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: %q", ErrAudienceNotAllowed, audiences)
		}
	}

	now := config.Clock()

	if expValue, ok := t.Claims[ExpirationTime]; ok {
		exp, err := claimTime(ExpirationTime, expValue)
		if err != nil {
			return err
		}
		// The token is alive strictly before "exp": a token checked at
		// the exact expiration instant is already expired.
		if !now.Before(exp.Add(config.ClockSkew)) {
			return fmt.Errorf("%w: at %v", ErrExpired, exp)
		}
	}

	if nbfValue, ok := t.Claims[NotBefore]; ok {
		nbf, err := claimTime(NotBefore, nbfValue)
		if err != nil {
			return err
		}
		if now.Before(nbf.Add(-config.ClockSkew)) {
			return fmt.Errorf("%w: before %v", ErrNotYetValid, nbf)
		}
	}

	return nil
}

// Expired returns true if the token is expired, false otherwise.
// If an error occurs while checking expiration, it is returned.
//
// Only use the boolean value if error is nil.
func (t *Token) Expired(clock Clock) (bool, error) {
	expValue, ok := t.Claims[ExpirationTime]
	if !ok {
		return false, nil
	}

	exp, err := claimTime(ExpirationTime, expValue)
	if err != nil {
		return false, err
	}

	return !exp.After(clock()), nil
}

// Expires returns true if the token has an expiration time claim,
// false otherwise. If an error occurs while checking expiration,
// it is returned.
//
// Only use the boolean value if error is nil.
func (t *Token) Expires() (bool, error) {
	expValue, ok := t.Claims[ExpirationTime]
	if !ok {
		return false, nil
	}
	if _, err := claimTime(ExpirationTime, expValue); err != nil {
		return false, err
	}
	return true, nil
}

func claimTime(name ClaimName, value ClaimValue) (time.Time, error) {
	switch typed := value.(type) {
	case int64:
		return time.Unix(typed, 0), nil
	case float64:
		return time.Unix(int64(typed), 0), nil
	default:
		return time.Time{}, fmt.Errorf("invalid value %v for %q", value, name)
	}
}

