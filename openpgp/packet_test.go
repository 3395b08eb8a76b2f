package openpgp

import (
	"bytes"
	"testing"
)

func TestSerializePacketRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		tag  int
		body []byte
	}{
		{"empty", TagMarker, nil},
		{"short", TagLiteralData, []byte("hello")},
		{"boundary-191", TagUserID, bytes.Repeat([]byte{'x'}, 191)},
		{"boundary-192", TagUserID, bytes.Repeat([]byte{'x'}, 192)},
		{"boundary-8383", TagCompressedData, bytes.Repeat([]byte{'y'}, 8383)},
		{"boundary-8384", TagCompressedData, bytes.Repeat([]byte{'y'}, 8384)},
		{"large", TagSEIPD, bytes.Repeat([]byte{0xaa}, 70000)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			wire := serializePacket(c.tag, c.body)
			pkt, n, err := ParsePacket(wire)
			if err != nil {
				t.Fatalf("parse: %s", err)
			}
			if n != len(wire) {
				t.Fatalf("consumed %d, want %d", n, len(wire))
			}
			if pkt.Tag != c.tag {
				t.Fatalf("tag %d, want %d", pkt.Tag, c.tag)
			}
			if !bytes.Equal(pkt.Body, c.body) {
				t.Fatalf("body mismatch: %d bytes vs %d", len(pkt.Body), len(c.body))
			}
		})
	}
}

func TestParsePacketOldFormat(t *testing.T) {
	// Tag 6 (PublicKey), old format, one-octet length.
	body := []byte{1, 2, 3, 4}
	wire := append([]byte{0x80 | (6 << 2) | 0}, byte(len(body)))
	wire = append(wire, body...)
	pkt, n, err := ParsePacket(wire)
	if err != nil {
		t.Fatalf("parse: %s", err)
	}
	if n != len(wire) || pkt.Tag != TagPublicKey || !bytes.Equal(pkt.Body, body) {
		t.Fatalf("old-format parse mismatch: %+v", pkt)
	}
}

func TestParsePacketResync(t *testing.T) {
	good := serializePacket(TagLiteralData, []byte("ok"))
	// Prepend an unparseable octet (MSB unset) and a second packet with
	// a length that overruns the buffer; ParseStream must skip both
	// and still recover the well-formed packet.
	junk := []byte{0x00, 0x01, 0x02}
	overrun := []byte{0xc1, 0xff, 0xff, 0xff, 0xff, 0xff} // new-format 5-octet length larger than remaining data
	stream := append(append(append([]byte{}, junk...), overrun...), good...)

	pkts := ParseStream(stream)
	if len(pkts) != 1 {
		t.Fatalf("expected exactly 1 recovered packet, got %d", len(pkts))
	}
	if pkts[0].Tag != TagLiteralData || !bytes.Equal(pkts[0].Body, []byte("ok")) {
		t.Fatalf("recovered packet mismatch: %+v", pkts[0])
	}
}

func TestParsePacketEmptyInput(t *testing.T) {
	if pkts := ParseStream(nil); pkts != nil {
		t.Fatalf("expected nil for empty stream, got %v", pkts)
	}
}
