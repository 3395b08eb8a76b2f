package openpgp

import (
	"bytes"
	"testing"
)

func TestCompressedDataRoundTrip(t *testing.T) {
	inner := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog"), 50)
	for _, alg := range []byte{CompressUncompressed, CompressZIP, CompressZLIB} {
		cd := &CompressedData{Algorithm: alg, Inner: inner}
		wire, err := cd.Serialize()
		if err != nil {
			t.Fatalf("alg %d: serialize: %s", alg, err)
		}
		pkt, _, err := ParsePacket(wire)
		if err != nil {
			t.Fatalf("alg %d: parse outer: %s", alg, err)
		}
		got, err := ParseCompressedData(pkt)
		if err != nil {
			t.Fatalf("alg %d: parse: %s", alg, err)
		}
		if !bytes.Equal(got.Inner, inner) {
			t.Fatalf("alg %d: round trip mismatch", alg)
		}
	}
}

func TestCompressedDataBZIP2EmitUnsupported(t *testing.T) {
	cd := &CompressedData{Algorithm: CompressBZIP2, Inner: []byte("x")}
	if _, err := cd.Serialize(); KindOf(err) != KindUnsupportedAlgorithm {
		t.Fatalf("expected UnsupportedAlgorithm emitting BZIP2, got %v", err)
	}
}

func TestPreferredCompressionIntersection(t *testing.T) {
	if got := preferredCompression(nil); got != CompressZLIB {
		t.Fatalf("empty intersection should default to ZLIB, got %d", got)
	}
	prefs := [][]byte{
		{CompressZIP, CompressZLIB},
		{CompressZLIB, CompressUncompressed},
	}
	if got := preferredCompression(prefs); got != CompressZLIB {
		t.Fatalf("expected ZLIB as the highest-ranked common algorithm, got %d", got)
	}
}
