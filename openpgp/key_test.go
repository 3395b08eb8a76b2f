package openpgp

import (
	"bytes"
	"testing"
)

// buildTestKeyring assembles a primary Ed25519 signing identity with a
// bound X25519 encryption subkey, the shape SelfSign/Bind produce and
// ReadKeys/groupPartialKeys must reassemble (spec section 3). When
// passphrase is non-nil the secret packets are emitted S2K-locked.
func buildTestKeyring(t *testing.T, passphrase []byte) (secret []byte, signKey *SignKey, encKey *EncryptKey, userid *UserID) {
	t.Helper()
	const when = 1700000000

	seed1, err := randomSeed(32)
	if err != nil {
		t.Fatalf("seed: %s", err)
	}
	seed2, err := randomSeed(32)
	if err != nil {
		t.Fatalf("seed: %s", err)
	}
	signKey = NewSignKey(seed1, when)
	encKey, err = NewEncryptKey(seed2, when)
	if err != nil {
		t.Fatalf("new encrypt key: %s", err)
	}
	userid = NewUserID("Test User <test@example.com>")

	var buf bytes.Buffer
	var signPkt, encPkt []byte
	if passphrase != nil {
		signPkt, err = signKey.EncPacket(passphrase)
		if err != nil {
			t.Fatalf("lock sign key: %s", err)
		}
		encPkt, err = encKey.EncPacket(passphrase)
		if err != nil {
			t.Fatalf("lock encrypt key: %s", err)
		}
	} else {
		signPkt = signKey.Packet()
		encPkt = encKey.Packet()
	}

	buf.Write(signPkt)
	buf.Write(userid.Serialize())
	buf.Write(signKey.SelfSign(userid, when, FlagMDC))
	buf.Write(encPkt)
	buf.Write(signKey.Bind(encKey, when))
	return buf.Bytes(), signKey, encKey, userid
}

func TestReadKeysGroupsIdentitiesAndSubkeys(t *testing.T) {
	data, signKey, encKey, userid := buildTestKeyring(t, nil)
	keys := ReadKeys(data)
	if len(keys) != 1 {
		t.Fatalf("expected exactly 1 key, got %d", len(keys))
	}
	k := keys[0]
	if k.Secret == nil || k.Public == nil {
		t.Fatalf("expected both halves present")
	}
	if !bytes.Equal(k.KeyID(), signKey.KeyID()) {
		t.Fatalf("primary Key ID mismatch")
	}
	if len(k.Public.Identities) != 1 || !bytes.Equal(k.Public.Identities[0].UserID.ID, userid.ID) {
		t.Fatalf("expected the User ID to round trip")
	}
	if len(k.Public.Subkeys) != 1 || !bytes.Equal(k.Public.Subkeys[0].Key.KeyID(), encKey.KeyID()) {
		t.Fatalf("expected the bound encryption subkey to round trip")
	}
}

func TestEncryptionPacketPrefersBoundSubkey(t *testing.T) {
	data, _, encKey, _ := buildTestKeyring(t, nil)
	keys := ReadKeys(data)
	pub := EncryptionPacket(keys[0])
	if pub == nil {
		t.Fatalf("expected an encryption packet")
	}
	if !bytes.Equal(pub.KeyID(), encKey.KeyID()) {
		t.Fatalf("expected the bound X25519 subkey to be selected over the Ed25519 primary")
	}
}

func TestSigningPacketFallsBackToPrimary(t *testing.T) {
	data, signKey, _, _ := buildTestKeyring(t, nil)
	keys := ReadKeys(data)
	sec := SigningPacket(keys[0])
	if sec == nil {
		t.Fatalf("expected a signing packet")
	}
	if !bytes.Equal(sec.KeyID(), signKey.KeyID()) {
		t.Fatalf("expected the Ed25519 primary to be selected (the X25519 subkey is not sign-capable)")
	}
}

func TestDecryptionPacketMatchesSubkey(t *testing.T) {
	data, _, encKey, _ := buildTestKeyring(t, nil)
	keys := ReadKeys(data)
	sec := DecryptionPacket(keys[0], encKey.KeyID())
	if sec == nil || !bytes.Equal(sec.KeyID(), encKey.KeyID()) {
		t.Fatalf("expected to find the secret encryption subkey by Key ID")
	}
	if DecryptionPacket(keys[0], []byte{0, 0, 0, 0, 0, 0, 0, 0}) != nil {
		t.Fatalf("expected no match for an unrelated Key ID")
	}
}

func TestReadKeysEmptyAndMalformedNeverError(t *testing.T) {
	if keys := ReadKeys(nil); keys != nil {
		t.Fatalf("expected nil for empty input, got %v", keys)
	}
	if keys := ReadKeys([]byte{0x01, 0x02, 0x03}); keys != nil {
		t.Fatalf("expected nil for garbage input, got %v", keys)
	}
}

func TestReadKeysFromFileMissingAndDirectory(t *testing.T) {
	if keys := ReadKeysFromFile("/nonexistent/path/to/a/keyring"); keys != nil {
		t.Fatalf("expected nil for a missing file")
	}
	if keys := ReadKeysFromFile("."); keys != nil {
		t.Fatalf("expected nil when pointed at a directory")
	}
}
