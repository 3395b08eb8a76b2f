package openpgp

import (
	"golang.org/x/crypto/curve25519"
)

// EncryptKey is a V4 X25519 (ECDH, RFC 4880bis section 13.5) encryption
// identity, the companion type SignKey.Bind expects as its subkey
// parameter. The teacher generates only a signing identity; an
// encryption subkey is the message pipeline's (component E) actual
// consumer of public-key encryption, so this module adds the
// counterpart type in the same shape -- in-memory keypair plus
// creation/expiry metadata, packet framing delegated to KeyPacket.
type EncryptKey struct {
	scalar [32]byte
	point  [32]byte

	created int64
	expires int64
}

// NewEncryptKey derives an EncryptKey from a 32-byte seed, clamped per
// RFC 7748 section 5 the same way SignKey derives its Ed25519 key from
// a seed.
func NewEncryptKey(seed []byte, created int64) (*EncryptKey, error) {
	k := &EncryptKey{created: created}
	copy(k.scalar[:], seed)
	clampX25519(&k.scalar)
	point, err := curve25519.X25519(k.scalar[:], curve25519.Basepoint)
	if err != nil {
		return nil, wrapErr(KindCryptoFailure, err, "x25519 public point")
	}
	copy(k.point[:], point)
	return k, nil
}

func (k *EncryptKey) Created() int64     { return k.created }
func (k *EncryptKey) SetCreated(t int64) { k.created = t }
func (k *EncryptKey) Expires() int64     { return k.expires }
func (k *EncryptKey) SetExpires(t int64) { k.expires = t }

func (k *EncryptKey) toKeyPacket(secret bool) *KeyPacket {
	tag := TagPublicSubkey
	if secret {
		tag = TagSecretSubkey
	}
	kp := &KeyPacket{Tag: tag, Version: 4, Created: k.created, Algorithm: PubKeyECDH, locked: false}
	kp.ECDH.Point = append([]byte{}, k.point[:]...)
	kp.ECDH.KDFHash = HashSHA256
	kp.ECDH.KDFSym = CipherAES128
	kp.ECDH.Scalar = append([]byte{}, k.scalar[:]...)
	return kp
}

// Packet returns the secret-subkey packet for this identity, unencrypted.
func (k *EncryptKey) Packet() []byte {
	return k.toKeyPacket(true).Serialize()
}

// PubPacket returns the public-subkey packet for this identity.
func (k *EncryptKey) PubPacket() []byte {
	return k.toKeyPacket(false).Serialize()
}

// EncPacket returns the secret-subkey packet, S2K-encrypted under
// passphrase, mirroring SignKey.EncPacket.
func (k *EncryptKey) EncPacket(passphrase []byte) ([]byte, error) {
	kp := k.toKeyPacket(true)
	if err := kp.Lock(passphrase); err != nil {
		return nil, err
	}
	return kp.Serialize(), nil
}

// Load parses pkt as a V4 X25519 secret-subkey packet, decrypting it
// with passphrase if it is S2K-protected.
func (k *EncryptKey) Load(pkt *Packet, passphrase []byte) error {
	kp, err := ParseKeyPacket(pkt)
	if err != nil {
		return err
	}
	if kp.Algorithm != PubKeyECDH || !kp.IsSecret() {
		return UnsupportedPacketErr
	}
	if err := kp.Unlock(passphrase); err != nil {
		return err
	}
	copy(k.scalar[:], kp.ECDH.Scalar)
	copy(k.point[:], kp.ECDH.Point)
	k.created = kp.Created
	return nil
}

// Fingerprint is this identity's 20-octet V4 fingerprint.
func (k *EncryptKey) Fingerprint() []byte {
	return k.toKeyPacket(false).Fingerprint()
}

// KeyID is the last 8 octets of Fingerprint.
func (k *EncryptKey) KeyID() []byte {
	return k.toKeyPacket(false).KeyID()
}

// randomSeed reads n bytes from the CSPRNG, used by this package's
// tests to generate a fresh key rather than deriving one from a
// passphrase.
func randomSeed(n int) ([]byte, error) {
	return randomBytes(n)
}
