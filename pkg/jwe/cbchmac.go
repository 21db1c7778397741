package jwe

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"encoding/binary"
	"fmt"

	"github.com/matoous/jwx/pkg/jwa"
	"github.com/matoous/jwx/pkg/secret"
)

// The AES_CBC_HMAC_SHA2 composites of RFC 7518 Section 5.2. The CEK
// splits in half: the first half keys the HMAC, the second half keys
// AES-CBC. The tag is the HMAC over AAD || IV || ciphertext || AL,
// where AL is the AAD bit length as a 64-bit big-endian integer,
// truncated to half the hash output.

func cbcHMACEncrypt(capability jwa.Capability, cek, iv, plaintext, aad []byte) (ciphertext, tag []byte, err error) {
	macKey, encKey := cek[:len(cek)/2], cek[len(cek)/2:]

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize content encryption cipher: %w", err)
	}

	padded := padPKCS7(plaintext, block.BlockSize())
	defer secret.Wipe(padded)

	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	tag = cbcHMACTag(capability, macKey, iv, ciphertext, aad)

	return ciphertext, tag, nil
}

func cbcHMACDecrypt(capability jwa.Capability, cek, iv, ciphertext, tag, aad []byte) ([]byte, error) {
	macKey, encKey := cek[:len(cek)/2], cek[len(cek)/2:]

	// Authenticate before decrypting: no plaintext-dependent work
	// happens until the tag has verified, constant time.
	expected := cbcHMACTag(capability, macKey, iv, ciphertext, aad)
	defer secret.Wipe(expected)

	if !secret.Equal(expected, tag) {
		return nil, ErrDecryption
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, ErrDecryption
	}

	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, ErrDecryption
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := unpadPKCS7(padded, block.BlockSize())
	if err != nil {
		secret.Wipe(padded)
		return nil, ErrDecryption
	}

	return plaintext, nil
}

func cbcHMACTag(capability jwa.Capability, macKey, iv, ciphertext, aad []byte) []byte {
	h := hmac.New(capability.Hash.New, macKey)
	h.Write(aad)
	h.Write(iv)
	h.Write(ciphertext)

	var al [8]byte
	binary.BigEndian.PutUint64(al[:], uint64(len(aad))*8)
	h.Write(al[:])

	return h.Sum(nil)[:capability.TagSize]
}

func padPKCS7(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+pad)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(pad)
	}
	return padded
}

func unpadPKCS7(padded []byte, blockSize int) ([]byte, error) {
	pad := int(padded[len(padded)-1])
	if pad == 0 || pad > blockSize || pad > len(padded) {
		return nil, ErrDecryption
	}
	for _, b := range padded[len(padded)-pad:] {
		if int(b) != pad {
			return nil, ErrDecryption
		}
	}
	return padded[:len(padded)-pad], nil
}
