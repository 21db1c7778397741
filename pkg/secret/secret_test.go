package secret

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	require.True(t, Equal([]byte("same"), []byte("same")))
	require.False(t, Equal([]byte("same"), []byte("different")))
	require.False(t, Equal([]byte("same"), []byte("sam")))
	require.True(t, Equal(nil, []byte{}))
}

func TestWipe(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Wipe(b)
	require.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestWithBytes(t *testing.T) {
	material := []byte("cek-material")

	var observed []byte
	err := WithBytes(material, func(scoped []byte) error {
		require.Equal(t, material, scoped)
		observed = scoped
		return nil
	})
	require.NoError(t, err)

	// The scoped copy is wiped after use, the original is untouched.
	require.Equal(t, make([]byte, len(material)), observed)
	require.Equal(t, []byte("cek-material"), material)
}

func TestWithBytesWipesOnError(t *testing.T) {
	var observed []byte

	sentinel := errors.New("boom")
	err := WithBytes([]byte("secret"), func(scoped []byte) error {
		observed = scoped
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
	require.Equal(t, make([]byte, 6), observed)
}
