package openpgp

import "testing"

func TestDeriveKeyDeterministic(t *testing.T) {
	spec := &s2kSpec{mode: s2kIteratedSalted, hash: HashSHA256, salt: []byte("12345678"), count: 96}
	k1, err := deriveKey(spec, []byte("passphrase"), 16)
	if err != nil {
		t.Fatalf("derive: %s", err)
	}
	k2, err := deriveKey(spec, []byte("passphrase"), 16)
	if err != nil {
		t.Fatalf("derive: %s", err)
	}
	if string(k1) != string(k2) {
		t.Fatalf("deriveKey is not deterministic for identical input")
	}
	if len(k1) != 16 {
		t.Fatalf("expected 16-byte key, got %d", len(k1))
	}

	other := &s2kSpec{mode: s2kIteratedSalted, hash: HashSHA256, salt: []byte("87654321"), count: 96}
	k3, err := deriveKey(other, []byte("passphrase"), 16)
	if err != nil {
		t.Fatalf("derive: %s", err)
	}
	if string(k1) == string(k3) {
		t.Fatalf("different salts must not derive the same key")
	}
}

func TestDeriveKeySimpleAndSalted(t *testing.T) {
	simple := &s2kSpec{mode: s2kSimple, hash: HashSHA256}
	if _, err := deriveKey(simple, []byte("x"), 16); err != nil {
		t.Fatalf("simple s2k: %s", err)
	}
	salted := &s2kSpec{mode: s2kSalted, hash: HashSHA256, salt: []byte("saltsalt")}
	if _, err := deriveKey(salted, []byte("x"), 16); err != nil {
		t.Fatalf("salted s2k: %s", err)
	}
}

func TestS2KSpecSerializeParseRoundTrip(t *testing.T) {
	specs := []*s2kSpec{
		{mode: s2kSimple, hash: HashSHA256},
		{mode: s2kSalted, hash: HashSHA256, salt: []byte("abcdefgh")},
		{mode: s2kIteratedSalted, hash: HashSHA256, salt: []byte("abcdefgh"), count: 0xff},
	}
	for _, s := range specs {
		wire := serializeS2KSpec(s)
		got, rest, err := parseS2KSpec(wire)
		if err != nil {
			t.Fatalf("mode %d: parse: %s", s.mode, err)
		}
		if len(rest) != 0 {
			t.Fatalf("mode %d: unexpected leftover bytes", s.mode)
		}
		if got.mode != s.mode || got.hash != s.hash {
			t.Fatalf("mode %d: mismatch after round trip", s.mode)
		}
	}
}

func TestDecodeS2K(t *testing.T) {
	if decodeS2K(0) != 16<<6 {
		t.Fatalf("decodeS2K(0) = %d, want %d", decodeS2K(0), 16<<6)
	}
	if decodeS2K(0xff) != (16+15)<<(15+6) {
		t.Fatalf("decodeS2K(0xff) mismatch")
	}
}
