package openpgp

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"testing"
)

func genRSAKeyPacket(t *testing.T, bits int) *KeyPacket {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		t.Fatalf("generate rsa key: %s", err)
	}
	return NewRSAKeyPacket(priv, 1700000000, false)
}

func TestKeyPacketRoundTripUnlocked(t *testing.T) {
	kp := genRSAKeyPacket(t, 1024)
	wire := kp.Serialize()
	pkt, _, err := ParsePacket(wire)
	if err != nil {
		t.Fatalf("parse outer packet: %s", err)
	}
	got, err := ParseKeyPacket(pkt)
	if err != nil {
		t.Fatalf("parse key packet: %s", err)
	}
	if got.Locked() {
		t.Fatalf("unlocked key packet parsed as locked")
	}
	if !bytes.Equal(got.Fingerprint(), kp.Fingerprint()) {
		t.Fatalf("fingerprint mismatch after round trip")
	}
	if got.RSA.N.Cmp(kp.RSA.N) != 0 || got.RSA.D.Cmp(kp.RSA.D) != 0 {
		t.Fatalf("RSA parameters mismatch after round trip")
	}
}

func TestKeyPacketLockUnlock(t *testing.T) {
	kp := genRSAKeyPacket(t, 1024)
	passphrase := []byte("correct horse battery staple")

	if err := kp.Lock(passphrase); err != nil {
		t.Fatalf("lock: %s", err)
	}
	if !kp.Locked() {
		t.Fatalf("expected locked key after Lock")
	}

	wire := kp.Serialize()
	pkt, _, err := ParsePacket(wire)
	if err != nil {
		t.Fatalf("parse outer packet: %s", err)
	}
	parsed, err := ParseKeyPacket(pkt)
	if err != nil {
		t.Fatalf("parse key packet: %s", err)
	}
	if !parsed.Locked() {
		t.Fatalf("expected the parsed packet to still be locked")
	}

	if err := parsed.Unlock([]byte("wrong passphrase")); KindOf(err) != KindPassphraseIncorrect {
		t.Fatalf("expected PassphraseIncorrect for wrong passphrase, got %v", err)
	}
	if err := parsed.Unlock(nil); KindOf(err) != KindPassphraseRequired {
		t.Fatalf("expected PassphraseRequired for nil passphrase, got %v", err)
	}
	if err := parsed.Unlock(passphrase); err != nil {
		t.Fatalf("unlock with correct passphrase: %s", err)
	}
	if parsed.RSA.D.Cmp(kp.RSA.D) != 0 {
		t.Fatalf("unlocked secret material mismatch")
	}
}

func TestKeyPacketSignVerify(t *testing.T) {
	kp := genRSAKeyPacket(t, 1024)
	digest := bytes.Repeat([]byte{0x42}, 32)
	mpis, err := kp.Sign(HashSHA256, digest)
	if err != nil {
		t.Fatalf("sign: %s", err)
	}
	pub := kp.PublicOnly()
	if err := pub.Verify(HashSHA256, digest, mpis); err != nil {
		t.Fatalf("verify: %s", err)
	}
	digest[0] ^= 0xff
	if err := pub.Verify(HashSHA256, digest, mpis); err == nil {
		t.Fatalf("expected verification failure on a tampered digest")
	}
}

func TestKeyPacketEncryptDecryptSessionKey(t *testing.T) {
	kp := genRSAKeyPacket(t, 1024)
	plaintext := wrapSessionKey(CipherAES128, bytes.Repeat([]byte{0x11}, 16))
	pub := kp.PublicOnly()
	mpis, err := pub.EncryptSessionKey(plaintext)
	if err != nil {
		t.Fatalf("encrypt session key: %s", err)
	}
	got, err := kp.DecryptSessionKey(mpis)
	if err != nil {
		t.Fatalf("decrypt session key: %s", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("session key plaintext mismatch")
	}
}
