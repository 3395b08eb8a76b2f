package openpgp

import (
	"encoding/binary"
	"math/big"
)

// mpi encodes b as an OpenPGP multi-precision integer: a two-octet
// bit count followed by the big-endian value with leading zero octets
// stripped (RFC 4880 section 3.2).
func mpi(b []byte) []byte {
	b = trimLeadingZeros(b)
	out := make([]byte, 2+len(b))
	binary.BigEndian.PutUint16(out, uint16(bitLen(b)))
	copy(out[2:], b)
	return out
}

// mpiBig encodes a *big.Int as an MPI.
func mpiBig(n *big.Int) []byte {
	return mpi(n.Bytes())
}

func trimLeadingZeros(b []byte) []byte {
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	return b
}

func bitLen(b []byte) int {
	if len(b) == 0 {
		return 0
	}
	n := (len(b) - 1) * 8
	top := b[0]
	for top != 0 {
		n++
		top >>= 1
	}
	return n
}

// mpiDecode reads one MPI from the front of b. When width is positive
// the value is left-padded with zero octets to that length (used for
// fixed-size curve scalars); width zero returns the value at its
// natural length (used for RSA/DSA/Elgamal integers). It returns a nil
// value, unmodified rest, if b is too short to hold the declared MPI.
func mpiDecode(b []byte, width int) (value, rest []byte) {
	if len(b) < 2 {
		return nil, b
	}
	bits := int(binary.BigEndian.Uint16(b))
	n := (bits + 7) / 8
	if len(b) < 2+n {
		return nil, b
	}
	raw := b[2 : 2+n]
	rest = b[2+n:]
	if width <= 0 {
		value = make([]byte, len(raw))
		copy(value, raw)
		return value, rest
	}
	value = make([]byte, width)
	copy(value[width-len(raw):], raw)
	return value, rest
}

// mpiDecodeBig reads one MPI and returns it as a *big.Int.
func mpiDecodeBig(b []byte) (n *big.Int, rest []byte) {
	raw, rest := mpiDecode(b, 0)
	if raw == nil {
		return nil, b
	}
	return new(big.Int).SetBytes(raw), rest
}

// checksum is the 16-bit sum mod 65536 of b's octets, the simple
// checksum RFC 4880 uses to protect unencrypted secret-key MPI
// material (and legacy S2K usage=255 material).
func checksum(b []byte) uint16 {
	var sum uint16
	for _, c := range b {
		sum += uint16(c)
	}
	return sum
}

func marshal16be(v uint16) []byte {
	out := make([]byte, 2)
	binary.BigEndian.PutUint16(out, v)
	return out
}

func marshal32be(v uint32) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, v)
	return out
}
