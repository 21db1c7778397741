package jwe

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// RFC 3394 Section 2.2.3.1.
var keyWrapIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// wrapKey implements AES Key Wrap (RFC 3394), the primitive behind the
// A128KW, A192KW, and A256KW algorithms and the inner stage of the
// ECDH-ES+*KW and PBES2 composites.
func wrapKey(kek, cek []byte) ([]byte, error) {
	if len(cek)%8 != 0 || len(cek) < 16 {
		return nil, fmt.Errorf("key wrap requires a key of 64-bit blocks, got %d bytes", len(cek))
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize key wrap cipher: %w", err)
	}

	n := len(cek) / 8
	r := make([][8]byte, n)
	for i := range r {
		copy(r[i][:], cek[i*8:])
	}

	a := keyWrapIV
	var buf [16]byte

	for j := 0; j < 6; j++ {
		for i := 0; i < n; i++ {
			copy(buf[:8], a[:])
			copy(buf[8:], r[i][:])
			block.Encrypt(buf[:], buf[:])

			t := uint64(n*j + i + 1)
			copy(a[:], buf[:8])
			binary.BigEndian.PutUint64(a[:], binary.BigEndian.Uint64(a[:])^t)
			copy(r[i][:], buf[8:])
		}
	}

	out := make([]byte, 8*(n+1))
	copy(out[:8], a[:])
	for i := range r {
		copy(out[8*(i+1):], r[i][:])
	}

	return out, nil
}

// unwrapKey inverts wrapKey and checks the integrity register. The
// error carries no detail; callers fold it into ErrDecryption.
func unwrapKey(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped)%8 != 0 || len(wrapped) < 24 {
		return nil, ErrDecryption
	}

	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, ErrDecryption
	}

	n := len(wrapped)/8 - 1
	r := make([][8]byte, n)
	for i := range r {
		copy(r[i][:], wrapped[8*(i+1):])
	}

	var a [8]byte
	copy(a[:], wrapped[:8])
	var buf [16]byte

	for j := 5; j >= 0; j-- {
		for i := n - 1; i >= 0; i-- {
			t := uint64(n*j + i + 1)
			binary.BigEndian.PutUint64(buf[:8], binary.BigEndian.Uint64(a[:])^t)
			copy(buf[8:], r[i][:])
			block.Decrypt(buf[:], buf[:])

			copy(a[:], buf[:8])
			copy(r[i][:], buf[8:])
		}
	}

	if subtle.ConstantTimeCompare(a[:], keyWrapIV[:]) != 1 {
		return nil, ErrDecryption
	}

	out := make([]byte, 8*n)
	for i := range r {
		copy(out[8*i:], r[i][:])
	}

	return out, nil
}

// gcmWrap encrypts the CEK with AES-GCM for the A*GCMKW algorithms,
// returning the wrapped key, the IV, and the tag that travel in the
// "iv" and "tag" header parameters.
func gcmWrap(kek, cek []byte) (wrapped, iv, tag []byte, err error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize key wrap cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, err
	}

	iv = make([]byte, aead.NonceSize())
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, err
	}

	sealed := aead.Seal(nil, iv, cek, nil)
	tagStart := len(sealed) - aead.Overhead()

	return sealed[:tagStart], iv, sealed[tagStart:], nil
}

// gcmUnwrap inverts gcmWrap.
func gcmUnwrap(kek, wrapped, iv, tag []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, ErrDecryption
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrDecryption
	}

	if len(iv) != aead.NonceSize() || len(tag) != aead.Overhead() {
		return nil, ErrDecryption
	}

	sealed := make([]byte, 0, len(wrapped)+len(tag))
	sealed = append(sealed, wrapped...)
	sealed = append(sealed, tag...)

	cek, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrDecryption
	}

	return cek, nil
}
