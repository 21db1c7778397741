package jwk

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"math/big"
)

// FromKey builds a JWK from standard library key material or raw
// symmetric octets. Supported types:
//
//   - *rsa.PrivateKey, *rsa.PublicKey
//   - *ecdsa.PrivateKey, *ecdsa.PublicKey
//   - *ecdh.PrivateKey, *ecdh.PublicKey
//   - ed25519.PrivateKey, ed25519.PublicKey
//   - []byte, string (symmetric octets)
//   - *Key (returned as-is)
func FromKey(key any) (*Key, error) {
	switch typed := key.(type) {
	case *Key:
		return typed, nil
	case []byte:
		return FromSymmetric(typed), nil
	case string:
		return FromSymmetric([]byte(typed)), nil
	case *rsa.PrivateKey:
		public, err := FromKey(&typed.PublicKey)
		if err != nil {
			return nil, err
		}
		public.D = typed.D.Bytes()
		if len(typed.Primes) == 2 {
			public.P = typed.Primes[0].Bytes()
			public.Q = typed.Primes[1].Bytes()
			if typed.Precomputed.Dp != nil {
				public.DP = typed.Precomputed.Dp.Bytes()
				public.DQ = typed.Precomputed.Dq.Bytes()
				public.QI = typed.Precomputed.Qinv.Bytes()
			}
		}
		return public, nil
	case *rsa.PublicKey:
		return &Key{
			KeyType: KeyTypeRSA,
			N:       typed.N.Bytes(),
			E:       big.NewInt(int64(typed.E)).Bytes(),
		}, nil
	case *ecdsa.PrivateKey:
		public, err := FromKey(&typed.PublicKey)
		if err != nil {
			return nil, err
		}
		size, err := curveByteSize(public.Curve)
		if err != nil {
			return nil, err
		}
		public.D = leftPad(typed.D.Bytes(), size)
		return public, nil
	case *ecdsa.PublicKey:
		curve, err := curveNameFromBits(typed.Curve.Params().BitSize)
		if err != nil {
			return nil, err
		}
		size, err := curveByteSize(curve)
		if err != nil {
			return nil, err
		}
		return &Key{
			KeyType: KeyTypeEC,
			Curve:   curve,
			X:       leftPad(typed.X.Bytes(), size),
			Y:       leftPad(typed.Y.Bytes(), size),
		}, nil
	case *ecdh.PrivateKey:
		public, err := FromKey(typed.PublicKey())
		if err != nil {
			return nil, err
		}
		if public.KeyType == KeyTypeOKP {
			public.D = ByteString(typed.Bytes())
			return public, nil
		}
		size, err := curveByteSize(public.Curve)
		if err != nil {
			return nil, err
		}
		public.D = leftPad(typed.Bytes(), size)
		return public, nil
	case *ecdh.PublicKey:
		curve, err := curveNameFromECDH(typed.Curve())
		if err != nil {
			return nil, err
		}
		if curve == CurveX25519 {
			return &Key{
				KeyType: KeyTypeOKP,
				Curve:   CurveX25519,
				X:       ByteString(typed.Bytes()),
			}, nil
		}
		size, err := curveByteSize(curve)
		if err != nil {
			return nil, err
		}
		// Bytes is the uncompressed point: 0x04 || X || Y.
		point := typed.Bytes()
		if len(point) != 1+2*size || point[0] != 4 {
			return nil, fmt.Errorf("%w: unexpected point encoding", ErrInvalidKey)
		}
		return &Key{
			KeyType: KeyTypeEC,
			Curve:   curve,
			X:       ByteString(point[1 : 1+size]),
			Y:       ByteString(point[1+size:]),
		}, nil
	case ed25519.PrivateKey:
		public := typed.Public().(ed25519.PublicKey)
		return &Key{
			KeyType: KeyTypeOKP,
			Curve:   CurveEd25519,
			X:       ByteString(public),
			D:       ByteString(typed.Seed()),
		}, nil
	case ed25519.PublicKey:
		return &Key{
			KeyType: KeyTypeOKP,
			Curve:   CurveEd25519,
			X:       ByteString(typed),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported key type %T", ErrInvalidKey, key)
	}
}

// FromSymmetric builds a symmetric JWK from raw octets.
func FromSymmetric(octets []byte) *Key {
	k := make(ByteString, len(octets))
	copy(k, octets)
	return &Key{
		KeyType: KeyTypeOctet,
		K:       k,
	}
}

func curveNameFromECDH(curve ecdh.Curve) (string, error) {
	switch curve {
	case ecdh.P256():
		return CurveP256, nil
	case ecdh.P384():
		return CurveP384, nil
	case ecdh.P521():
		return CurveP521, nil
	case ecdh.X25519():
		return CurveX25519, nil
	default:
		return "", fmt.Errorf("%w: unsupported curve", ErrInvalidKey)
	}
}

func curveNameFromBits(bits int) (string, error) {
	switch bits {
	case 256:
		return CurveP256, nil
	case 384:
		return CurveP384, nil
	case 521:
		return CurveP521, nil
	default:
		return "", fmt.Errorf("%w: unsupported curve size %d", ErrInvalidKey, bits)
	}
}

// leftPad returns b left-padded with zeros to the given size. JWK EC
// coordinates and private values are fixed-width.
func leftPad(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	padded := make([]byte, size)
	copy(padded[size-len(b):], b)
	return padded
}
