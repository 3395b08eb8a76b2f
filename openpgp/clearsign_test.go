package openpgp

import (
	"bytes"
	"io/ioutil"
	"strings"
	"testing"
)

func TestClearsignFormat(t *testing.T) {
	key := newTestRSAKeyPair(t, 2048)
	src := strings.NewReader("line one\n-dash leading line\nline three  \n")

	rc, err := Clearsign(src, key, nil, HashSHA256)
	if err != nil {
		t.Fatalf("clearsign: %s", err)
	}
	out, err := ioutil.ReadAll(rc)
	if err != nil {
		t.Fatalf("read clearsigned output: %s", err)
	}

	if !bytes.HasPrefix(out, []byte("-----BEGIN PGP SIGNED MESSAGE-----\nHash: SHA256\n\n")) {
		t.Fatalf("missing or wrong clearsign header: %q", out[:60])
	}
	if !bytes.Contains(out, []byte("\n- -dash leading line\n")) {
		t.Fatalf("expected the leading-dash line to be dash-escaped, got %q", out)
	}
	if !bytes.Contains(out, []byte("-----BEGIN PGP SIGNATURE-----")) {
		t.Fatalf("expected a trailing armored signature block")
	}
	if !bytes.HasSuffix(bytes.TrimRight(out, "\r\n"), []byte("-----END PGP SIGNATURE-----")) {
		t.Fatalf("expected output to end with the signature armor footer")
	}
}

func TestClearsignVerifyRoundTrip(t *testing.T) {
	key := newTestRSAKeyPair(t, 2048)
	plaintext := "signed plaintext\nsecond line"

	rc, err := Clearsign(strings.NewReader(plaintext), key, nil, HashSHA256)
	if err != nil {
		t.Fatalf("clearsign: %s", err)
	}
	out, err := ioutil.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %s", err)
	}

	idx := bytes.Index(out, []byte("-----BEGIN PGP SIGNATURE-----"))
	if idx < 0 {
		t.Fatalf("expected a signature armor block in the output")
	}
	sigBlock := out[idx:]

	ok, err := Verify([]byte(plaintext), sigBlock, []*Key{key}, nil)
	if err != nil {
		t.Fatalf("verify: %s", err)
	}
	if !ok {
		t.Fatalf("expected the clearsigned signature to verify against the original plaintext")
	}
}
