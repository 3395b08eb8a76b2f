package openpgp

import (
	"crypto/sha1"
	"crypto/subtle"
)

// S2K specifier types, RFC 4880 section 3.7.1.
const (
	s2kSimple        = 0
	s2kSalted        = 1
	s2kIteratedSalted = 3
)

// s2kSpec is a parsed String-to-Key specifier.
type s2kSpec struct {
	mode  byte
	hash  byte
	salt  []byte // s2kSalted, s2kIteratedSalted
	count byte   // s2kIteratedSalted only, encoded iteration count
}

// s2kCount is the encoded iteration count this package writes: the
// maximum strength octet count, the teacher's original choice.
const s2kCount = 0xff

// decodeS2K converts an encoded iteration-count octet into the actual
// number of octets hashed, RFC 4880 section 3.7.1.3. Unchanged from
// the teacher's original function of the same name.
func decodeS2K(c byte) int {
	return (16 + int(c&15)) << (uint(c>>4) + 6)
}

// deriveKey runs spec against passphrase to produce keySize octets of
// symmetric key material.
func deriveKey(spec *s2kSpec, passphrase []byte, keySize int) ([]byte, error) {
	h, err := newHash(spec.hash)
	if err != nil {
		return nil, err
	}
	switch spec.mode {
	case s2kSimple:
		return s2kHash(h, nil, passphrase, 0, keySize), nil
	case s2kSalted:
		return s2kHash(h, spec.salt, passphrase, 0, keySize), nil
	case s2kIteratedSalted:
		count := decodeS2K(spec.count)
		return s2kHash(h, spec.salt, passphrase, count, keySize), nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// s2kHash implements the iterated-and-salted digest construction as
// actually used by GnuPG and PGP in practice: it is not a literal
// reading of RFC 4880 section 3.7.1.3, which real implementations
// don't follow either (https://dev.gnupg.org/T4676, noted already by
// the teacher). A count of zero means "hash the salt+passphrase
// exactly once", which also covers the simple and salted S2K modes.
// When keySize exceeds the digest size, further hash contexts preloaded
// with one, two, ... zero octets extend the output (RFC 4880 section
// 3.7.1.1).
func s2kHash(newHash hashFn, salt, passphrase []byte, count, keySize int) []byte {
	full := append(append([]byte{}, salt...), passphrase...)
	if len(full) == 0 {
		full = []byte{}
	}
	if count == 0 || count < len(full) {
		count = len(full)
		if count == 0 {
			count = 1
		}
	}
	iterations := 0
	if len(full) > 0 {
		iterations = count / len(full)
	}
	var out []byte
	for preload := 0; len(out) < keySize; preload++ {
		h := newHash()
		h.Write(make([]byte, preload))
		for i := 0; i < iterations; i++ {
			h.Write(full)
		}
		if len(full) > 0 {
			tail := count - iterations*len(full)
			h.Write(full[:tail])
		}
		out = h.Sum(out)
	}
	return out[:keySize]
}

// checkSHA1 implements the usage=254 secret-key integrity check: a
// SHA-1 digest over the decrypted secret MPI octets, in constant time.
func checkSHA1(data, want []byte) bool {
	mac := sha1.New()
	mac.Write(data)
	got := mac.Sum(nil)
	return subtle.ConstantTimeCompare(got, want) == 1
}
