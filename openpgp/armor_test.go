package openpgp

import (
	"bytes"
	"testing"
)

func TestIsArmored(t *testing.T) {
	if !IsArmored([]byte("-----BEGIN PGP MESSAGE-----\n...")) {
		t.Fatalf("expected armored input to be detected")
	}
	if !IsArmored([]byte("\n\n  -----BEGIN PGP MESSAGE-----\n...")) {
		t.Fatalf("expected leading whitespace to be tolerated")
	}
	if IsArmored([]byte{0xc1, 0x02, 0x03}) {
		t.Fatalf("binary input must not be detected as armored")
	}
}

func TestWrapArmorBlocksRoundTrip(t *testing.T) {
	data := []byte("arbitrary binary payload, not valid OpenPGP on its own")
	armored, err := Wrap(ArmorMessage, data)
	if err != nil {
		t.Fatalf("wrap: %s", err)
	}
	if !bytes.HasPrefix([]byte(armored), []byte("-----BEGIN PGP MESSAGE-----\r\n")) {
		t.Fatalf("armored output missing CRLF-terminated BEGIN marker: %q", armored[:40])
	}
	if !bytes.HasSuffix([]byte(armored), []byte("-----END PGP MESSAGE-----\r\n")) {
		t.Fatalf("armored output missing CRLF-terminated END marker: %q", armored[len(armored)-40:])
	}

	next := ArmorBlocks([]byte(armored))
	block, ok, err := next()
	if err != nil {
		t.Fatalf("decode: %s", err)
	}
	if !ok {
		t.Fatalf("expected a decodable block")
	}
	if !bytes.Equal(block, data) {
		t.Fatalf("round trip mismatch: got %q want %q", block, data)
	}

	_, ok, err = next()
	if err != nil || ok {
		t.Fatalf("expected no further blocks, got ok=%v err=%v", ok, err)
	}
}

func TestFirstBlockPassesThroughBinary(t *testing.T) {
	data := []byte{0xc1, 0x04, 1, 2, 3, 4}
	block, err := FirstBlock(data)
	if err != nil {
		t.Fatalf("FirstBlock: %s", err)
	}
	if !bytes.Equal(block, data) {
		t.Fatalf("non-armored input should pass through unchanged")
	}
}
