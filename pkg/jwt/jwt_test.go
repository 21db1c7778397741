package jwt_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/matoous/jwx/pkg/header"
	"github.com/matoous/jwx/pkg/jwa"
	"github.com/matoous/jwx/pkg/jwt"
	"github.com/matoous/jwx/pkg/keyutil"
)

// keyPair is a simple struct that holds a public and private key
// of any type.
type keyPair[P, S any] struct {
	public  P // Public key.
	private S // Private (secret) key.
}

// keySource is a function that returns a public and private key pair
// of any type. This works nicely with the keyutil package's functions.
type keySource[P, S any] func() (P, S, error)

// testNewKeyPair is a helper function that creates a new key pair
// from the given source function.
func testNewKeyPair[P, S any](t *testing.T, source keySource[P, S]) *keyPair[P, S] {
	t.Helper()

	public, private, err := source()
	require.NoError(t, err)

	return &keyPair[P, S]{
		public:  public,
		private: private,
	}
}

// https://www.rfc-editor.org/rfc/rfc7515.html#appendix-A.1
var testHMACSecretKey = []byte{
	3, 35, 53, 75, 43, 15, 165, 188, 131, 126, 6, 101, 119, 123, 166,
	143, 90, 179, 40, 230, 240, 84, 201, 40, 169, 15, 132, 178, 210, 80,
	46, 191, 211, 251, 90, 146, 210, 6, 71, 239, 150, 138, 180, 195, 119,
	98, 61, 34, 61, 46, 33, 114, 5, 46, 79, 8, 192, 205, 154, 245, 103,
	208, 128, 163,
}

func TestNewTokenString(t *testing.T) {
	token, err := jwt.New(
		header.Parameters{
			header.Algorithm: jwa.HS256,
		},
		jwt.ClaimsSet{
			jwt.Subject: "test",
			jwt.Issuer:  "test",
		},
		testHMACSecretKey,
	)
	require.NoError(t, err)

	require.Equal(t, 2, strings.Count(token.String(), "."))
	require.NotEmpty(t, token.Signature)
	require.True(t, strings.HasPrefix(token.String(), "eyJ"))

	// The "typ" parameter is filled in when absent.
	typ, err := token.Header.Type()
	require.NoError(t, err)
	require.Equal(t, jwt.Type, typ)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := jwt.New(nil, jwt.ClaimsSet{jwt.Subject: "test"}, testHMACSecretKey)
	require.Error(t, err)

	_, err = jwt.New(header.Parameters{header.Algorithm: jwa.HS256}, jwt.ClaimsSet{}, testHMACSecretKey)
	require.ErrorIs(t, err, jwt.ErrNoClaimSet)

	_, err = jwt.New(header.Parameters{
		header.Algorithm: jwa.HS256,
		header.Type:      "SAML",
	}, jwt.ClaimsSet{jwt.Subject: "test"}, testHMACSecretKey)
	require.Error(t, err)

	_, err = jwt.New(header.Parameters{header.Algorithm: jwa.HS256}, jwt.ClaimsSet{
		jwt.Subject:        "test",
		jwt.ExpirationTime: "tomorrow",
	}, testHMACSecretKey)
	require.Error(t, err)
}

func TestTimeClaimsNormalized(t *testing.T) {
	exp := time.Now().Add(time.Hour)

	claims := jwt.ClaimsSet{
		jwt.Subject:        "test",
		jwt.ExpirationTime: exp,
		jwt.IssuedAt:       time.Now(),
	}

	token, err := jwt.New(
		header.Parameters{header.Algorithm: jwa.HS256},
		claims,
		testHMACSecretKey,
	)
	require.NoError(t, err)

	require.Equal(t, exp.Unix(), token.Claims[jwt.ExpirationTime])

	// Normalization happens on the token's own copy, not the caller's map.
	require.Equal(t, exp, claims[jwt.ExpirationTime])

	expires, err := token.Expires()
	require.NoError(t, err)
	require.True(t, expires)

	expired, err := token.Expired(time.Now)
	require.NoError(t, err)
	require.False(t, expired)
}

func TestParseStringAndVerify(t *testing.T) {
	rsaKeyPair := testNewKeyPair(t, keyutil.NewRSAKeyPair)
	ecdsaKeyPair := testNewKeyPair(t, keyutil.NewECDSAKeyPair)
	eddsaKeyPair := testNewKeyPair(t, keyutil.NewEdDSAKeyPair)

	claims := jwt.ClaimsSet{
		jwt.Subject: "test",
		jwt.Issuer:  "test-issuer",
	}

	tests := []struct {
		alg       jwa.Algorithm
		signKey   any
		verifyKey any
	}{
		{jwa.HS256, testHMACSecretKey, testHMACSecretKey},
		{jwa.HS384, testHMACSecretKey, testHMACSecretKey},
		{jwa.HS512, testHMACSecretKey, testHMACSecretKey},
		{jwa.RS256, rsaKeyPair.private, rsaKeyPair.public},
		{jwa.PS256, rsaKeyPair.private, rsaKeyPair.public},
		{jwa.ES256, ecdsaKeyPair.private, ecdsaKeyPair.public},
		{jwa.EdDSA, eddsaKeyPair.private, eddsaKeyPair.public},
	}

	for _, test := range tests {
		t.Run(test.alg, func(t *testing.T) {
			token, err := jwt.New(header.Parameters{
				header.Algorithm: test.alg,
			}, claims, test.signKey)
			require.NoError(t, err)

			parsed, err := jwt.ParseAndVerify(token.String(),
				jwt.WithAllowedAlgorithms(test.alg),
				jwt.WithKey(test.verifyKey),
			)
			require.NoError(t, err)
			require.Equal(t, "test", parsed.Claims[jwt.Subject])
			require.Equal(t, "test-issuer", parsed.Claims[jwt.Issuer])
		})
	}
}

func TestParseMalformed(t *testing.T) {
	for _, input := range []string{
		"",
		"one.two",
		"one.two.three.four",
		"eyJhbGciOiJIUzI1NiJ9.not-base64!.c2ln",
	} {
		_, err := jwt.Parse(input)
		require.Error(t, err, "input %q", input)
	}
}

func TestVerifyExpiration(t *testing.T) {
	token, err := jwt.New(
		header.Parameters{header.Algorithm: jwa.HS256},
		jwt.ClaimsSet{
			jwt.Subject:        "test",
			jwt.ExpirationTime: time.Now().Add(-time.Minute),
		},
		testHMACSecretKey,
	)
	require.NoError(t, err)

	err = token.Verify(
		jwt.WithAllowedAlgorithms(jwa.HS256),
		jwt.WithKey(testHMACSecretKey),
	)
	require.ErrorIs(t, err, jwt.ErrInvalidToken)
	require.ErrorIs(t, err, jwt.ErrExpired)

	// A skew tolerance larger than the overrun admits the token.
	err = token.Verify(
		jwt.WithAllowedAlgorithms(jwa.HS256),
		jwt.WithKey(testHMACSecretKey),
		jwt.WithClockSkew(2*time.Minute),
	)
	require.NoError(t, err)

	// The clock is injectable: wind it back before the expiration.
	err = token.Verify(
		jwt.WithAllowedAlgorithms(jwa.HS256),
		jwt.WithKey(testHMACSecretKey),
		jwt.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }),
	)
	require.NoError(t, err)
}

func TestVerifyExpirationBoundary(t *testing.T) {
	exp := time.Unix(1700000000, 0)

	token, err := jwt.New(
		header.Parameters{header.Algorithm: jwa.HS256},
		jwt.ClaimsSet{
			jwt.Subject:        "test",
			jwt.ExpirationTime: exp,
		},
		testHMACSecretKey,
	)
	require.NoError(t, err)

	verifyAt := func(now time.Time) error {
		return token.Verify(
			jwt.WithAllowedAlgorithms(jwa.HS256),
			jwt.WithKey(testHMACSecretKey),
			jwt.WithClock(func() time.Time { return now }),
		)
	}

	// The token is valid strictly before "exp" and expired at the
	// exact instant.
	require.NoError(t, verifyAt(exp.Add(-time.Second)))

	err = verifyAt(exp)
	require.ErrorIs(t, err, jwt.ErrExpired)

	err = verifyAt(exp.Add(time.Second))
	require.ErrorIs(t, err, jwt.ErrExpired)

	// Skew shifts the boundary but keeps it exclusive.
	err = token.Verify(
		jwt.WithAllowedAlgorithms(jwa.HS256),
		jwt.WithKey(testHMACSecretKey),
		jwt.WithClock(func() time.Time { return exp.Add(time.Minute) }),
		jwt.WithClockSkew(time.Minute),
	)
	require.ErrorIs(t, err, jwt.ErrExpired)

	expired, err := token.Expired(func() time.Time { return exp })
	require.NoError(t, err)
	require.True(t, expired)

	expired, err = token.Expired(func() time.Time { return exp.Add(-time.Second) })
	require.NoError(t, err)
	require.False(t, expired)
}

func TestVerifyNotBefore(t *testing.T) {
	token, err := jwt.New(
		header.Parameters{header.Algorithm: jwa.HS256},
		jwt.ClaimsSet{
			jwt.Subject:   "test",
			jwt.NotBefore: time.Now().Add(time.Minute),
		},
		testHMACSecretKey,
	)
	require.NoError(t, err)

	err = token.Verify(
		jwt.WithAllowedAlgorithms(jwa.HS256),
		jwt.WithKey(testHMACSecretKey),
	)
	require.ErrorIs(t, err, jwt.ErrNotYetValid)

	err = token.Verify(
		jwt.WithAllowedAlgorithms(jwa.HS256),
		jwt.WithKey(testHMACSecretKey),
		jwt.WithClockSkew(2*time.Minute),
	)
	require.NoError(t, err)
}

func TestVerifyIssuerAndAudience(t *testing.T) {
	token, err := jwt.New(
		header.Parameters{header.Algorithm: jwa.HS256},
		jwt.ClaimsSet{
			jwt.Subject:  "test",
			jwt.Issuer:   "https://issuer.example.com",
			jwt.Audience: []string{"service-a", "service-b"},
		},
		testHMACSecretKey,
	)
	require.NoError(t, err)

	verify := func(opts ...jwt.VerifyOption) error {
		base := []jwt.VerifyOption{
			jwt.WithAllowedAlgorithms(jwa.HS256),
			jwt.WithKey(testHMACSecretKey),
		}
		return token.Verify(append(base, opts...)...)
	}

	require.NoError(t, verify())
	require.NoError(t, verify(jwt.WithAllowedIssuers("https://issuer.example.com")))
	require.NoError(t, verify(jwt.WithAllowedAudiences("service-b")))

	err = verify(jwt.WithAllowedIssuers("https://other.example.com"))
	require.ErrorIs(t, err, jwt.ErrIssuerNotAllowed)

	err = verify(jwt.WithAllowedAudiences("service-c"))
	require.ErrorIs(t, err, jwt.ErrAudienceNotAllowed)
}

func TestVerifyRoundTripsThroughParse(t *testing.T) {
	token, err := jwt.New(
		header.Parameters{header.Algorithm: jwa.HS256},
		jwt.ClaimsSet{
			jwt.Subject:  "test",
			jwt.Audience: "service-a",
		},
		testHMACSecretKey,
	)
	require.NoError(t, err)

	parsed, err := jwt.Parse(token.String())
	require.NoError(t, err)

	// A single-string audience matches the same policy as a list.
	err = parsed.Verify(
		jwt.WithAllowedAlgorithms(jwa.HS256),
		jwt.WithKey(testHMACSecretKey),
		jwt.WithAllowedAudiences("service-a"),
	)
	require.NoError(t, err)
}

func TestNewID(t *testing.T) {
	id := jwt.NewID()
	require.NotEmpty(t, id)
	require.NotEqual(t, id, jwt.NewID())

	token, err := jwt.New(
		header.Parameters{header.Algorithm: jwa.HS256},
		jwt.ClaimsSet{
			jwt.Subject: "test",
			jwt.JWTID:   id,
		},
		testHMACSecretKey,
	)
	require.NoError(t, err)
	require.Equal(t, id, token.Claims[jwt.JWTID])
}

func TestHTTPAuthorizationHeader(t *testing.T) {
	token, err := jwt.New(
		header.Parameters{header.Algorithm: jwa.HS256},
		jwt.ClaimsSet{jwt.Subject: "test"},
		testHMACSecretKey,
	)
	require.NoError(t, err)

	r, err := http.NewRequest(http.MethodGet, "https://example.com", nil)
	require.NoError(t, err)

	jwt.SetHTTPAuthorizationHeader(r, token.String())

	extracted, err := jwt.FromHTTPAuthorizationHeader(r)
	require.NoError(t, err)
	require.Equal(t, token.String(), extracted)

	_, err = jwt.ParseAndVerify(extracted,
		jwt.WithAllowedAlgorithms(jwa.HS256),
		jwt.WithKey(testHMACSecretKey),
	)
	require.NoError(t, err)

	r.Header.Del("Authorization")
	_, err = jwt.FromHTTPAuthorizationHeader(r)
	require.Error(t, err)

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	_, err = jwt.FromHTTPAuthorizationHeader(r)
	require.Error(t, err)
}
