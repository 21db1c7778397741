package keyutil_test

import (
	"bytes"
	"crypto/ecdh"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matoous/jwx/pkg/jwk"
	"github.com/matoous/jwx/pkg/keyutil"
)

func TestNewSymmetricKey(t *testing.T) {
	key, err := keyutil.NewSymmetricKey(32)
	require.NoError(t, err)
	require.Len(t, key, 32)

	other, err := keyutil.NewSymmetricKey(32)
	require.NoError(t, err)

	require.True(t, keyutil.SymmetricKeysEqual(key, key))
	require.False(t, keyutil.SymmetricKeysEqual(key, other))
}

func encodePKCS8(t *testing.T, key any) []byte {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}

func encodePKIX(t *testing.T, key any) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func TestParseRSAKeysPEM(t *testing.T) {
	public, private, err := keyutil.NewRSAKeyPair()
	require.NoError(t, err)

	parsedPrivate, err := keyutil.ParseRSAPrivateKey(bytes.NewReader(encodePKCS8(t, private)))
	require.NoError(t, err)
	require.True(t, private.Equal(parsedPrivate))

	parsedPublic, err := keyutil.ParseRSAPublicKey(bytes.NewReader(encodePKIX(t, public)))
	require.NoError(t, err)
	require.True(t, public.Equal(parsedPublic))
}

func TestParseECDSAKeysPEM(t *testing.T) {
	public, private, err := keyutil.NewECDSAKeyPair()
	require.NoError(t, err)

	parsedPrivate, err := keyutil.ParseECDSAPrivateKey(bytes.NewReader(encodePKCS8(t, private)))
	require.NoError(t, err)
	require.True(t, private.Equal(parsedPrivate))

	parsedPublic, err := keyutil.ParseECDSAPublicKey(bytes.NewReader(encodePKIX(t, public)))
	require.NoError(t, err)
	require.True(t, public.Equal(parsedPublic))
}

func TestParseEdDSAKeysPEM(t *testing.T) {
	public, private, err := keyutil.NewEdDSAKeyPair()
	require.NoError(t, err)

	parsedPrivate, err := keyutil.ParseEdDSAPrivateKey(bytes.NewReader(encodePKCS8(t, private)))
	require.NoError(t, err)
	require.True(t, private.Equal(parsedPrivate))

	parsedPublic, err := keyutil.ParseEdDSAPublicKey(bytes.NewReader(encodePKIX(t, public)))
	require.NoError(t, err)
	require.True(t, public.Equal(parsedPublic))
}

func TestParseJWK(t *testing.T) {
	_, private, err := keyutil.NewECDSAKeyPair()
	require.NoError(t, err)

	key, err := keyutil.ParseJWK(bytes.NewReader(encodePKCS8(t, private)))
	require.NoError(t, err)
	require.Equal(t, jwk.KeyTypeEC, key.KeyType)
	require.True(t, key.IsPrivate())
}

func TestParseGarbage(t *testing.T) {
	_, err := keyutil.ParsePrivateKey(bytes.NewReader([]byte("not a key")))
	require.Error(t, err)

	_, err = keyutil.ParsePublicKey(bytes.NewReader([]byte("-----BEGIN PUBLIC KEY-----\naGVsbG8=\n-----END PUBLIC KEY-----")))
	require.Error(t, err)
}

func TestNewECDHKeyPair(t *testing.T) {
	public, private, err := keyutil.NewECDHKeyPair(ecdh.P256())
	require.NoError(t, err)
	require.True(t, public.Equal(private.PublicKey()))
}
