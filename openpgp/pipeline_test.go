package openpgp

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"
)

func newTestRSAKeyPair(t *testing.T, bits int) *Key {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatalf("generate rsa key: %s", err)
	}
	sec := NewRSAKeyPacket(priv, time.Now().Unix(), false)
	pub := sec.PublicOnly()
	return &Key{Public: &PartialKey{Primary: pub}, Secret: &PartialKey{Primary: sec}}
}

func TestEncryptDecryptBinary(t *testing.T) {
	key := newTestRSAKeyPair(t, 2048)
	plaintext := []byte("Hello, World!")

	ct, err := Encrypt(plaintext, []*Key{key}, nil, nil, false)
	if err != nil {
		t.Fatalf("encrypt: %s", err)
	}
	if ct[0] != 0xc1 {
		t.Fatalf("expected new-format PKESK tag byte 0xc1, got %#x", ct[0])
	}

	out, err := Decrypt(ct, []*Key{key}, nil, false)
	if err != nil {
		t.Fatalf("decrypt: %s", err)
	}
	if !bytes.Equal(out, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", out, plaintext)
	}
}

func TestEncryptDecryptArmored(t *testing.T) {
	key := newTestRSAKeyPair(t, 2048)
	plaintext := []byte("Hello, World!")

	ct, err := Encrypt(plaintext, []*Key{key}, nil, nil, true)
	if err != nil {
		t.Fatalf("encrypt: %s", err)
	}
	if !bytes.HasPrefix(ct, []byte("-----BEGIN PGP MESSAGE-----\r\n")) {
		t.Fatalf("expected CRLF-terminated armor header, got %q", ct[:40])
	}
	if !bytes.HasSuffix(ct, []byte("-----END PGP MESSAGE-----\r\n")) {
		t.Fatalf("expected CRLF-terminated armor footer, got %q", ct[len(ct)-40:])
	}

	out, err := Decrypt(ct, []*Key{key}, nil, false)
	if err != nil {
		t.Fatalf("decrypt: %s", err)
	}
	if !bytes.Equal(out, plaintext) {
		t.Fatalf("round trip mismatch")
	}
}

func TestEncryptMultiRecipient(t *testing.T) {
	k1 := newTestRSAKeyPair(t, 2048)
	k2 := newTestRSAKeyPair(t, 2048)
	plaintext := []byte("multi-recipient message")

	ct, err := Encrypt(plaintext, []*Key{k1, k2}, nil, nil, false)
	if err != nil {
		t.Fatalf("encrypt: %s", err)
	}

	var pkeskCount int
	for _, pkt := range ParseStream(ct) {
		if pkt.Tag == TagPKESK {
			pkeskCount++
		}
	}
	if pkeskCount != 2 {
		t.Fatalf("expected exactly 2 PKESK packets, got %d", pkeskCount)
	}

	for _, recipient := range []*Key{k1, k2} {
		out, err := Decrypt(ct, []*Key{recipient}, nil, false)
		if err != nil {
			t.Fatalf("decrypt with one recipient's secret: %s", err)
		}
		if !bytes.Equal(out, plaintext) {
			t.Fatalf("round trip mismatch for one recipient")
		}
	}
}

func TestEncryptEmbeddedSignVerify(t *testing.T) {
	recipient := newTestRSAKeyPair(t, 2048)
	signer := newTestRSAKeyPair(t, 2048)
	plaintext := []byte("signed and encrypted")

	ct, err := Encrypt(plaintext, []*Key{recipient}, signer, nil, false)
	if err != nil {
		t.Fatalf("encrypt: %s", err)
	}

	out, err := Decrypt(ct, append([]*Key{recipient}, signer), nil, true)
	if err != nil {
		t.Fatalf("decrypt+verify: %s", err)
	}
	if !bytes.Equal(out, plaintext) {
		t.Fatalf("round trip mismatch")
	}
}

func TestDecryptMissingSignatureIsNotSigned(t *testing.T) {
	recipient := newTestRSAKeyPair(t, 2048)
	ct, err := Encrypt([]byte("no signature here"), []*Key{recipient}, nil, nil, false)
	if err != nil {
		t.Fatalf("encrypt: %s", err)
	}
	_, err = Decrypt(ct, []*Key{recipient}, nil, true)
	if KindOf(err) != KindNotSigned {
		t.Fatalf("expected NotSigned, got %v", err)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	recipient := newTestRSAKeyPair(t, 2048)
	passphrase := []byte("the right passphrase")
	if err := recipient.Secret.Primary.Lock(passphrase); err != nil {
		t.Fatalf("lock: %s", err)
	}

	ct, err := Encrypt([]byte("secret"), []*Key{recipient}, nil, nil, false)
	if err != nil {
		t.Fatalf("encrypt: %s", err)
	}

	wrong := func([]byte) []byte { return []byte("wrong") }
	_, err = Decrypt(ct, []*Key{recipient}, wrong, false)
	if KindOf(err) != KindPassphraseIncorrect {
		t.Fatalf("expected PassphraseIncorrect, got %v", err)
	}

	right := func([]byte) []byte { return passphrase }
	out, err := Decrypt(ct, []*Key{recipient}, right, false)
	if err != nil {
		t.Fatalf("decrypt with correct passphrase: %s", err)
	}
	if string(out) != "secret" {
		t.Fatalf("round trip mismatch")
	}
}

func TestDecryptNoPassphraseIsRequired(t *testing.T) {
	recipient := newTestRSAKeyPair(t, 2048)
	if err := recipient.Secret.Primary.Lock([]byte("locked")); err != nil {
		t.Fatalf("lock: %s", err)
	}
	ct, err := Encrypt([]byte("secret"), []*Key{recipient}, nil, nil, false)
	if err != nil {
		t.Fatalf("encrypt: %s", err)
	}
	_, err = Decrypt(ct, []*Key{recipient}, nil, false)
	if KindOf(err) != KindPassphraseRequired {
		t.Fatalf("expected PassphraseRequired, got %v", err)
	}
}

func TestIntegrityCheckFailedOnTamper(t *testing.T) {
	recipient := newTestRSAKeyPair(t, 2048)
	ct, err := Encrypt([]byte("tamper me"), []*Key{recipient}, nil, nil, false)
	if err != nil {
		t.Fatalf("encrypt: %s", err)
	}
	tampered := append([]byte{}, ct...)
	tampered[len(tampered)-1] ^= 0xff // flip the last byte of the SEIPD ciphertext

	_, err = Decrypt(tampered, []*Key{recipient}, nil, false)
	if err == nil {
		t.Fatalf("expected an error on tampered ciphertext, got none")
	}
	if KindOf(err) != KindIntegrityCheckFailed && KindOf(err) != KindInvalidMessage {
		t.Fatalf("expected IntegrityCheckFailed or InvalidMessage, got %v", err)
	}
}

func TestSEIPDTruncationIsIntegrityCheckFailed(t *testing.T) {
	sessionKey := bytes.Repeat([]byte{0x07}, keySizeOf(CipherAES128))
	seipd, err := EncryptSEIPD(CipherAES128, sessionKey, []byte("plain inner packets"))
	if err != nil {
		t.Fatalf("encrypt seipd: %s", err)
	}
	seipd.Ciphertext = seipd.Ciphertext[:len(seipd.Ciphertext)-22]
	if _, err := seipd.Decrypt(CipherAES128, sessionKey); KindOf(err) != KindIntegrityCheckFailed {
		t.Fatalf("expected IntegrityCheckFailed on truncated SEIPD, got %v", err)
	}
}

func TestSignVerifyDetached(t *testing.T) {
	key := newTestRSAKeyPair(t, 2048)
	zeros := make([]byte, 1<<20)

	sig, err := Sign(zeros, key, nil, HashSHA256, true)
	if err != nil {
		t.Fatalf("sign: %s", err)
	}

	ok, err := Verify(zeros, sig, []*Key{key}, nil)
	if err != nil {
		t.Fatalf("verify: %s", err)
	}
	if !ok {
		t.Fatalf("expected signature to verify")
	}

	mutated := append([]byte{}, zeros...)
	mutated[12345] = 1
	ok, err = Verify(mutated, sig, []*Key{key}, nil)
	if err == nil && ok {
		t.Fatalf("expected verification to fail over mutated data")
	}
}

func TestSignEmbeddedVerifyWithoutDetachedSig(t *testing.T) {
	key := newTestRSAKeyPair(t, 2048)
	data := []byte("embedded signature content")

	signed, err := Sign(data, key, nil, HashSHA256, false)
	if err != nil {
		t.Fatalf("sign: %s", err)
	}
	ok, err := Verify(signed, nil, []*Key{key}, nil)
	if err != nil {
		t.Fatalf("verify: %s", err)
	}
	if !ok {
		t.Fatalf("expected embedded signature to verify")
	}
}

func TestVerifyNotSignedWithoutDetachedOrEmbedded(t *testing.T) {
	key := newTestRSAKeyPair(t, 2048)
	lit := &LiteralData{Format: LiteralBinary, Time: time.Now().Unix(), Body: []byte("plain")}
	_, err := Verify(lit.Serialize(), nil, []*Key{key}, nil)
	if KindOf(err) != KindNotSigned {
		t.Fatalf("expected NotSigned, got %v", err)
	}
}

func TestEncryptNoUsableRecipientFails(t *testing.T) {
	empty := &Key{Public: &PartialKey{Primary: &KeyPacket{Tag: TagPublicKey, Version: 4, Algorithm: 99}}}
	_, err := Encrypt([]byte("x"), []*Key{empty}, nil, nil, false)
	if err == nil {
		t.Fatalf("expected an error with no usable encryption key")
	}
}
