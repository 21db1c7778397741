package jwe

import (
	"crypto"
	"encoding/binary"
)

// concatKDF derives key material from an ECDH shared secret using the
// Concat KDF (NIST SP 800-56A Section 5.8.1) as profiled for ECDH-ES
// by RFC 7518 Section 4.6: the OtherInfo is built from the algorithm
// identifier, the apu and apv party values, and the output size in
// bits, each with a 32-bit big-endian length prefix.
func concatKDF(hash crypto.Hash, z []byte, algID string, apu, apv []byte, keyBits int) []byte {
	otherInfo := make([]byte, 0, 4+len(algID)+4+len(apu)+4+len(apv)+4)
	otherInfo = appendLengthPrefixed(otherInfo, []byte(algID))
	otherInfo = appendLengthPrefixed(otherInfo, apu)
	otherInfo = appendLengthPrefixed(otherInfo, apv)
	otherInfo = binary.BigEndian.AppendUint32(otherInfo, uint32(keyBits))

	size := keyBits / 8
	out := make([]byte, 0, size)

	var counter [4]byte
	for i := uint32(1); len(out) < size; i++ {
		binary.BigEndian.PutUint32(counter[:], i)

		h := hash.New()
		h.Write(counter[:])
		h.Write(z)
		h.Write(otherInfo)
		out = h.Sum(out)
	}

	return out[:size]
}

func appendLengthPrefixed(dst, data []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(data)))
	return append(dst, data...)
}
