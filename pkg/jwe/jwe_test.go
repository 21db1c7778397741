package jwe_test

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matoous/jwx/pkg/header"
	"github.com/matoous/jwx/pkg/jwa"
	"github.com/matoous/jwx/pkg/jwe"
	"github.com/matoous/jwx/pkg/jwk"
)

// Appendix A.3 of RFC 7516: A128KW key management with A128CBC-HS256
// content encryption.
const (
	rfc7516A3Key = `{"kty":"oct","k":"GawgguFyGrWKav7AX4VKUg"}`

	rfc7516A3Compact = "eyJhbGciOiJBMTI4S1ciLCJlbmMiOiJBMTI4Q0JDLUhTMjU2In0" +
		"." +
		"6KB707dM9YTIgHtLvtgWQ8mKwboJW3of9locizkDTHzBC2IlrT1oOQ" +
		"." +
		"AxY8DCtDaGlsbGljb3RoZQ" +
		"." +
		"KDlTtXchhZTGufMYmOYGS4HffxPSUrfmqCHXaI9wOGY" +
		"." +
		"U0m_YmjN04DJvceFICbCVQ"
)

func TestDecryptRFC7516AppendixA3(t *testing.T) {
	key, err := jwk.Parse([]byte(rfc7516A3Key))
	require.NoError(t, err)

	m, err := jwe.ParseCompact(rfc7516A3Compact)
	require.NoError(t, err)

	plaintext, err := jwe.Decrypt(m, []*jwk.Key{key})
	require.NoError(t, err)
	require.Equal(t, "Live long and prosper.", string(plaintext))
}

func symmetricTestKey(t *testing.T, size int) *jwk.Key {
	t.Helper()
	octets := make([]byte, size)
	_, err := rand.Read(octets)
	require.NoError(t, err)
	return jwk.FromSymmetric(octets)
}

func rsaTestKey(t *testing.T) *jwk.Key {
	t.Helper()
	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key, err := jwk.FromKey(private)
	require.NoError(t, err)
	return key
}

func ecdhTestKey(t *testing.T, curve ecdh.Curve) *jwk.Key {
	t.Helper()
	private, err := curve.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := jwk.FromKey(private)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("The true sign of intelligence is not knowledge but imagination.")

	rsaKey := rsaTestKey(t)
	ecKey := ecdhTestKey(t, ecdh.P256())
	password := jwk.FromSymmetric([]byte("entrap_o-peter_long-credit_tun"))

	tests := []struct {
		alg jwa.Algorithm
		enc jwa.Algorithm
		key *jwk.Key
	}{
		{jwa.Direct, jwa.A128GCM, symmetricTestKey(t, 16)},
		{jwa.Direct, jwa.A256GCM, symmetricTestKey(t, 32)},
		{jwa.Direct, jwa.A128CBCHS256, symmetricTestKey(t, 32)},
		{jwa.Direct, jwa.A256CBCHS512, symmetricTestKey(t, 64)},
		{jwa.A128KW, jwa.A128GCM, symmetricTestKey(t, 16)},
		{jwa.A192KW, jwa.A192CBCHS384, symmetricTestKey(t, 24)},
		{jwa.A256KW, jwa.A256GCM, symmetricTestKey(t, 32)},
		{jwa.A128GCMKW, jwa.A128GCM, symmetricTestKey(t, 16)},
		{jwa.A192GCMKW, jwa.A128GCM, symmetricTestKey(t, 24)},
		{jwa.A256GCMKW, jwa.A256CBCHS512, symmetricTestKey(t, 32)},
		{jwa.RSA1_5, jwa.A128CBCHS256, rsaKey},
		{jwa.RSAOAEP, jwa.A256GCM, rsaKey},
		{jwa.RSAOAEP256, jwa.A256GCM, rsaKey},
		{jwa.ECDHES, jwa.A128GCM, ecKey},
		{jwa.ECDHES, jwa.A256CBCHS512, ecKey},
		{jwa.ECDHESA128KW, jwa.A128GCM, ecKey},
		{jwa.ECDHESA192KW, jwa.A192GCM, ecKey},
		{jwa.ECDHESA256KW, jwa.A256CBCHS512, ecKey},
		{jwa.PBES2HS256A128KW, jwa.A128GCM, password},
		{jwa.PBES2HS384A192KW, jwa.A128CBCHS256, password},
		{jwa.PBES2HS512A256KW, jwa.A256GCM, password},
	}

	for _, test := range tests {
		t.Run(test.alg+"_"+test.enc, func(t *testing.T) {
			m, err := jwe.Encrypt(plaintext, test.enc, nil, []jwe.RecipientKey{
				{Algorithm: test.alg, Key: test.key},
			})
			require.NoError(t, err)

			compact, err := m.Compact()
			require.NoError(t, err)

			parsed, err := jwe.ParseCompact(compact)
			require.NoError(t, err)

			got, err := jwe.Decrypt(parsed, []*jwk.Key{test.key})
			require.NoError(t, err)
			require.Equal(t, plaintext, got)
		})
	}
}

func TestDecryptLargerECDHCurves(t *testing.T) {
	for _, curve := range []ecdh.Curve{ecdh.P384(), ecdh.P521()} {
		key := ecdhTestKey(t, curve)

		m, err := jwe.Encrypt([]byte("agreed"), jwa.A256GCM, nil, []jwe.RecipientKey{
			{Algorithm: jwa.ECDHES, Key: key},
		})
		require.NoError(t, err)

		got, err := jwe.Decrypt(m, []*jwk.Key{key})
		require.NoError(t, err)
		require.Equal(t, []byte("agreed"), got)
	}
}

func TestDecryptTampered(t *testing.T) {
	key := symmetricTestKey(t, 16)

	encrypt := func(t *testing.T) string {
		m, err := jwe.Encrypt([]byte("attack at dawn"), jwa.A128GCM, nil, []jwe.RecipientKey{
			{Algorithm: jwa.A128KW, Key: key},
		})
		require.NoError(t, err)
		compact, err := m.Compact()
		require.NoError(t, err)
		return compact
	}

	tamper := func(compact string, part int) string {
		parts := strings.Split(compact, ".")
		segment := []byte(parts[part])
		if segment[0] == 'A' {
			segment[0] = 'B'
		} else {
			segment[0] = 'A'
		}
		parts[part] = string(segment)
		return strings.Join(parts, ".")
	}

	for part, name := range []string{"", "encrypted key", "iv", "ciphertext", "tag"} {
		if part == 0 {
			continue
		}
		t.Run(name, func(t *testing.T) {
			m, err := jwe.ParseCompact(tamper(encrypt(t), part))
			require.NoError(t, err)

			_, err = jwe.Decrypt(m, []*jwk.Key{key})
			require.ErrorIs(t, err, jwe.ErrDecryption)
		})
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key := symmetricTestKey(t, 16)
	wrong := symmetricTestKey(t, 16)

	m, err := jwe.Encrypt([]byte("secret"), jwa.A128GCM, nil, []jwe.RecipientKey{
		{Algorithm: jwa.A128KW, Key: key},
	})
	require.NoError(t, err)

	_, err = jwe.Decrypt(m, []*jwk.Key{wrong})
	require.ErrorIs(t, err, jwe.ErrDecryption)
}

// A wrong RSA1_5 key must fail exactly like a wrong symmetric key:
// at tag verification, with the uniform error.
func TestDecryptRSA15WrongKey(t *testing.T) {
	right := rsaTestKey(t)
	wrong := rsaTestKey(t)

	m, err := jwe.Encrypt([]byte("secret"), jwa.A128CBCHS256, nil, []jwe.RecipientKey{
		{Algorithm: jwa.RSA1_5, Key: right},
	})
	require.NoError(t, err)

	_, err = jwe.Decrypt(m, []*jwk.Key{wrong})
	require.ErrorIs(t, err, jwe.ErrDecryption)
}

func TestDecryptAlgorithmConfinement(t *testing.T) {
	key := symmetricTestKey(t, 16)

	m, err := jwe.Encrypt([]byte("secret"), jwa.A128GCM, nil, []jwe.RecipientKey{
		{Algorithm: jwa.A128KW, Key: key},
	})
	require.NoError(t, err)

	_, err = jwe.Decrypt(m, []*jwk.Key{key},
		jwe.WithAllowedKeyManagementAlgorithms(jwa.RSAOAEP256),
	)
	require.ErrorIs(t, err, jwe.ErrAlgorithmNotAllowed)

	_, err = jwe.Decrypt(m, []*jwk.Key{key},
		jwe.WithAllowedContentEncryptionAlgorithms(jwa.A256GCM),
	)
	require.ErrorIs(t, err, jwe.ErrAlgorithmNotAllowed)
}

func TestCompressionFailsClosed(t *testing.T) {
	key := symmetricTestKey(t, 16)

	_, err := jwe.Encrypt([]byte("secret"), jwa.A128GCM, header.Parameters{
		header.Compression: "DEF",
	}, []jwe.RecipientKey{{Algorithm: jwa.A128KW, Key: key}})
	require.ErrorIs(t, err, jwa.ErrUnsupportedAlgorithm)
}

func TestDirectRequiresSoleRecipient(t *testing.T) {
	direct := symmetricTestKey(t, 16)
	wrap := symmetricTestKey(t, 16)

	_, err := jwe.Encrypt([]byte("secret"), jwa.A128GCM, nil, []jwe.RecipientKey{
		{Algorithm: jwa.Direct, Key: direct},
		{Algorithm: jwa.A128KW, Key: wrap},
	})
	require.ErrorIs(t, err, jwa.ErrUnsupportedAlgorithm)
}

func TestDirectKeySizeMustMatch(t *testing.T) {
	key := symmetricTestKey(t, 16)

	_, err := jwe.Encrypt([]byte("secret"), jwa.A256GCM, nil, []jwe.RecipientKey{
		{Algorithm: jwa.Direct, Key: key},
	})
	require.ErrorIs(t, err, jwe.ErrKeyMismatch)
}

func TestMultipleRecipients(t *testing.T) {
	octKey := symmetricTestKey(t, 16)
	octKey.KeyID = "oct-1"
	rsaKey := rsaTestKey(t)
	rsaKey.KeyID = "rsa-1"

	m, err := jwe.Encrypt([]byte("broadcast"), jwa.A128CBCHS256, nil, []jwe.RecipientKey{
		{Algorithm: jwa.A128KW, Key: octKey, Header: header.Parameters{header.KeyID: "oct-1"}},
		{Algorithm: jwa.RSAOAEP, Key: rsaKey, Header: header.Parameters{header.KeyID: "rsa-1"}},
	})
	require.NoError(t, err)
	require.Len(t, m.Recipients, 2)

	// Compact cannot carry two recipients.
	_, err = m.Compact()
	require.ErrorIs(t, err, jwe.ErrMalformed)

	serialized, err := m.MarshalGeneralJSON()
	require.NoError(t, err)

	parsed, err := jwe.ParseJSON(serialized)
	require.NoError(t, err)

	for _, key := range []*jwk.Key{octKey, rsaKey} {
		plaintext, err := jwe.Decrypt(parsed, []*jwk.Key{key})
		require.NoError(t, err)
		require.Equal(t, []byte("broadcast"), plaintext)
	}
}

func TestAdditionalAuthenticatedData(t *testing.T) {
	key := symmetricTestKey(t, 32)

	m, err := jwe.Encrypt([]byte("signed over"), jwa.A256GCM, nil,
		[]jwe.RecipientKey{{Algorithm: jwa.A256KW, Key: key}},
		jwe.WithAAD([]byte(`{"origin":"issuer-1"}`)),
	)
	require.NoError(t, err)

	// AAD forces the JSON serialization.
	_, err = m.Compact()
	require.ErrorIs(t, err, jwe.ErrMalformed)

	serialized, err := m.MarshalFlattenedJSON()
	require.NoError(t, err)

	parsed, err := jwe.ParseJSON(serialized)
	require.NoError(t, err)

	plaintext, err := jwe.Decrypt(parsed, []*jwk.Key{key})
	require.NoError(t, err)
	require.Equal(t, []byte("signed over"), plaintext)

	// Changing the AAD breaks authentication.
	parsed.AAD[0] ^= 0x01
	_, err = jwe.Decrypt(parsed, []*jwk.Key{key})
	require.ErrorIs(t, err, jwe.ErrDecryption)
}

func TestCriticalParameters(t *testing.T) {
	key := symmetricTestKey(t, 16)

	m, err := jwe.Encrypt([]byte("secret"), jwa.A128GCM, header.Parameters{
		header.Critical:       []string{"urn:example:rollout"},
		"urn:example:rollout": "phase-2",
	}, []jwe.RecipientKey{{Algorithm: jwa.A128KW, Key: key}})
	require.NoError(t, err)

	_, err = jwe.Decrypt(m, []*jwk.Key{key})
	require.ErrorIs(t, err, header.ErrCriticalParameter)

	plaintext, err := jwe.Decrypt(m, []*jwk.Key{key},
		jwe.WithCriticalParameters("urn:example:rollout"),
	)
	require.NoError(t, err)
	require.Equal(t, []byte("secret"), plaintext)
}

func TestParseCompactMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"four parts", "a.b.c.d"},
		{"six parts", "a.b.c.d.e.f"},
		{"empty protected", "." + strings.Repeat(".x", 3) + "x"},
		{"padded base64", "eyJhbGciOiJBMTI4S1cifQ==.a.b.c.d"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := jwe.ParseCompact(test.input)
			require.ErrorIs(t, err, jwe.ErrMalformed)
		})
	}
}

func TestParseJSONMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not JSON", "nope"},
		{"missing protected", `{"ciphertext":"eA"}`},
		{
			"mixed forms",
			`{"protected":"eyJlbmMiOiJBMTI4R0NNIn0","encrypted_key":"eA","recipients":[{"encrypted_key":"eA"}],"iv":"eA","ciphertext":"eA","tag":"eA"}`,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := jwe.ParseJSON([]byte(test.input))
			require.ErrorIs(t, err, jwe.ErrMalformed)
		})
	}
}

func TestUnknownEncRejected(t *testing.T) {
	key := symmetricTestKey(t, 16)

	_, err := jwe.Encrypt([]byte("secret"), "A512GCM", nil, []jwe.RecipientKey{
		{Algorithm: jwa.A128KW, Key: key},
	})
	require.ErrorIs(t, err, jwa.ErrUnsupportedAlgorithm)

	_, err = jwe.Encrypt([]byte("secret"), jwa.A128GCM, nil, []jwe.RecipientKey{
		{Algorithm: "A128KWX", Key: key},
	})
	require.ErrorIs(t, err, jwa.ErrUnsupportedAlgorithm)
}
