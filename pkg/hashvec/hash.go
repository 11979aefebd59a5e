// Package hashvec implements the hashing and fixed-dimension vector
// primitives the rest of the engine is built on: content-addressing
// (SHA3-256) and the distance metrics the HNSW index and inference
// engine score neurons with.
package hashvec

import (
	"crypto/subtle"

	"golang.org/x/crypto/sha3"
)

// Size is the digest length in bytes produced by Hash.
const Size = 32

// Hash is a content digest. Identity of a chunk or a Merkle node is its Hash.
type Hash [Size]byte

// Sum computes the SHA3-256 digest of data. Named distinctly from the
// Hash type to keep `hashvec.Sum(x)` readable at call sites.
func Sum(data []byte) Hash {
	return sha3.Sum256(data)
}

// Verify reports whether data hashes to digest, using a constant-time
// comparison so callers checking externally supplied content cannot
// leak timing information about where a mismatch occurs.
func Verify(data []byte, digest Hash) bool {
	got := Sum(data)
	return subtle.ConstantTimeCompare(got[:], digest[:]) == 1
}

// String returns the lowercase hex encoding of the hash.
func (h Hash) String() string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, Size*2)
	for i, b := range h {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return string(buf)
}

// IsZero reports whether h is the all-zero hash (the Merkle root of an
// empty leaf list).
func (h Hash) IsZero() bool {
	for _, b := range h {
		if b != 0 {
			return false
		}
	}
	return true
}

// ParseHash decodes a lowercase hex string into a Hash.
func ParseHash(s string) (Hash, bool) {
	var h Hash
	if len(s) != Size*2 {
		return h, false
	}
	for i := 0; i < Size; i++ {
		hi, ok1 := hexVal(s[i*2])
		lo, ok2 := hexVal(s[i*2+1])
		if !ok1 || !ok2 {
			return Hash{}, false
		}
		h[i] = hi<<4 | lo
	}
	return h, true
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
