package openpgp

import (
	"bytes"
	"math/big"
	"testing"
)

func TestMPIRoundTrip(t *testing.T) {
	cases := [][]byte{
		{1},
		{0xff},
		{0x01, 0x00},
		bytes.Repeat([]byte{0xab}, 256),
	}
	for _, raw := range cases {
		n := new(big.Int).SetBytes(raw)
		encoded := mpiBig(n)
		value, rest := mpiDecodeBig(encoded)
		if len(rest) != 0 {
			t.Fatalf("leftover bytes: %d", len(rest))
		}
		if value.Cmp(n) != 0 {
			t.Fatalf("mismatch: got %s, want %s", value, n)
		}
	}
}

func TestMPIZero(t *testing.T) {
	encoded := mpi(nil)
	if len(encoded) != 2 || encoded[0] != 0 || encoded[1] != 0 {
		t.Fatalf("zero MPI should be a bare two-octet zero length, got % x", encoded)
	}
}

func TestMPIDecodeTruncated(t *testing.T) {
	encoded := mpi([]byte{0xff, 0xff})
	short := encoded[:len(encoded)-1]
	value, rest := mpiDecode(short, 0)
	if value != nil {
		t.Fatalf("expected nil on truncated input, got %v", value)
	}
	if !bytes.Equal(rest, short) {
		t.Fatalf("rest should be returned unmodified on failure")
	}
}

func TestMPIDecodeFixedWidth(t *testing.T) {
	encoded := mpi([]byte{0x01})
	value, _ := mpiDecode(encoded, 32)
	if len(value) != 32 {
		t.Fatalf("expected 32-byte left-padded value, got %d bytes", len(value))
	}
	if value[31] != 0x01 {
		t.Fatalf("padded value's low byte wrong: %x", value)
	}
}

func TestChecksum(t *testing.T) {
	if checksum(nil) != 0 {
		t.Fatalf("checksum of empty input should be 0")
	}
	if checksum([]byte{1, 2, 3}) != 6 {
		t.Fatalf("checksum mismatch")
	}
	wrapped := bytes.Repeat([]byte{0xff}, 258) // forces the mod-65536 wraparound
	got := checksum(wrapped)
	want := uint16((258 * 0xff) % 65536)
	if got != want {
		t.Fatalf("checksum wraparound: got %d want %d", got, want)
	}
}
