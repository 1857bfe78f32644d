package lms

import (
	"crypto/sha256"

	"golang.org/x/crypto/sha3"
)

// HashAlgorithm selects the hash-chain primitive (C1). It is a closed
// enum rather than an open registry of constructors: every registered
// parameter set, and so every signature or public key, carries one of
// these values, and LmsVerify rejects a signature whose LMS or LM-OTS
// type differs from that of the public key it is checked against.
type HashAlgorithm uint8

const (
	HashSHA256 HashAlgorithm = iota
	HashSHA256_192
	HashSHA256_128
	HashSHAKE256
	HashSHAKE256_192
	HashSHAKE256_128
)

// hashBlockSize is the block size reported by every hash algorithm
// variant; it governs the ipad/opad width in the aux-data MAC (C5).
const hashBlockSize = 64

func (a HashAlgorithm) String() string {
	switch a {
	case HashSHA256:
		return "SHA256"
	case HashSHA256_192:
		return "SHA256/192"
	case HashSHA256_128:
		return "SHA256/128"
	case HashSHAKE256:
		return "SHAKE256"
	case HashSHAKE256_192:
		return "SHAKE256/192"
	case HashSHAKE256_128:
		return "SHAKE256/128"
	default:
		return "unknown"
	}
}

func (a HashAlgorithm) Valid() bool {
	return a <= HashSHAKE256_128
}

// OutputSize is n, the hash-chain's digest length in bytes.
func (a HashAlgorithm) OutputSize() int {
	switch a {
	case HashSHA256, HashSHAKE256:
		return 32
	case HashSHA256_192, HashSHAKE256_192:
		return 24
	case HashSHA256_128, HashSHAKE256_128:
		return 16
	default:
		return 0
	}
}

func (a HashAlgorithm) BlockSize() int { return hashBlockSize }

// Hash computes H(parts[0] || parts[1] || ...) truncated to
// OutputSize() bytes.
func (a HashAlgorithm) Hash(parts ...[]byte) []byte {
	switch a {
	case HashSHA256, HashSHA256_192, HashSHA256_128:
		h := sha256.New()
		for _, p := range parts {
			h.Write(p)
		}
		sum := h.Sum(nil)
		return sum[:a.OutputSize()]
	case HashSHAKE256, HashSHAKE256_192, HashSHAKE256_128:
		h := sha3.NewShake256()
		for _, p := range parts {
			h.Write(p)
		}
		out := make([]byte, a.OutputSize())
		if _, err := h.Read(out); err != nil {
			panic("lms: shake256 read failed: " + err.Error())
		}
		return out
	default:
		panic("lms: unknown hash algorithm")
	}
}
