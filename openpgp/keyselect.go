// Key Selection (spec section 4.D): locates the encryption, signing
// or decryption subkey a message operation needs by Key ID, and
// resolves the symmetric/compression algorithm preference across a
// recipient set.
package openpgp

import "bytes"

// keyFlagEncrypt is the Key Flags (subpacket type 27) mask for
// "this key may be used to encrypt communications" or "...storage",
// RFC 4880 section 5.2.3.21. Either bit qualifies a subkey as an
// encryption target.
const keyFlagEncrypt = 0x0c

// FindKey scans keys for one whose primary or any subkey Key ID
// equals keyID (spec section 4.D).
func FindKey(keyID []byte, keys []*Key) *Key {
	for _, k := range keys {
		if matchesKeyID(k.Public, keyID) || matchesKeyID(k.Secret, keyID) {
			return k
		}
	}
	return nil
}

func matchesKeyID(pk *PartialKey, keyID []byte) bool {
	if pk == nil {
		return false
	}
	if bytes.Equal(pk.Primary.KeyID(), keyID) {
		return true
	}
	for _, sk := range pk.Subkeys {
		if bytes.Equal(sk.Key.KeyID(), keyID) {
			return true
		}
	}
	return false
}

// keyFlags returns the Key Flags octet from sig, or 0 if absent.
func keyFlags(sig *Signature) byte {
	if b, ok := sig.find(27); ok && len(b) >= 1 {
		return b[0]
	}
	return 0
}

// EncryptionPacket returns the public-key packet Encrypt (spec
// section 4.E) should address a recipient's PKESK to: the first
// subkey bound by a self-signature carrying an encryption Key Flag,
// falling back to the primary only when no such subkey exists (spec
// section 4.D).
func EncryptionPacket(key *Key) *KeyPacket {
	if key.Public == nil {
		return nil
	}
	for _, sk := range key.Public.Subkeys {
		for _, sig := range sk.Signatures {
			if sig.SigType == 0x18 && keyFlags(sig)&keyFlagEncrypt != 0 {
				if err := sig.Verify(key.Public.Primary, subkeyBindingData(key.Public.Primary, sk.Key)); err == nil {
					return sk.Key
				}
			}
		}
	}
	if isEncryptCapable(key.Public.Primary.Algorithm) {
		return key.Public.Primary
	}
	return nil
}

func isEncryptCapable(alg byte) bool {
	switch alg {
	case PubKeyRSA, PubKeyRSAEncrypt, PubKeyElgamal, PubKeyECDH:
		return true
	default:
		return false
	}
}

func isSignCapable(alg byte) bool {
	switch alg {
	case PubKeyRSA, PubKeyRSASign, PubKeyDSA, PubKeyEdDSA:
		return true
	default:
		return false
	}
}

// subkeyBindingData reproduces the hashed data a 0x18 subkey-binding
// signature covers: the primary's key-prefixed public body followed
// by the subkey's (signkey.go's Bind builds the signature this
// verifies against).
func subkeyBindingData(primary, subkey *KeyPacket) []byte {
	data := keyPrefixed(primary.Serialize())
	return append(data, keyPrefixed(subkey.Serialize())...)
}

// DecryptionPacket returns the secret-key packet within key's secret
// half whose Key ID matches keyID and whose algorithm is
// encryption-capable, else the primary if it matches and is
// encryption-capable (spec section 4.D). Returns nil if key has no
// secret half or no matching packet.
func DecryptionPacket(key *Key, keyID []byte) *KeyPacket {
	if key.Secret == nil {
		return nil
	}
	for _, sk := range key.Secret.Subkeys {
		if bytesEqualKeyID(sk.Key, keyID) && isEncryptCapable(sk.Key.Algorithm) {
			return sk.Key
		}
	}
	if bytesEqualKeyID(key.Secret.Primary, keyID) && isEncryptCapable(key.Secret.Primary.Algorithm) {
		return key.Secret.Primary
	}
	return nil
}

func bytesEqualKeyID(kp *KeyPacket, keyID []byte) bool {
	return bytes.Equal(kp.KeyID(), keyID)
}

// SigningPacket returns the secret-key packet within key's secret
// half usable to produce signatures: a subkey with a valid
// sign-capable binding, else the primary.
func SigningPacket(key *Key) *KeyPacket {
	if key.Secret == nil {
		return nil
	}
	for _, sk := range key.Secret.Subkeys {
		if isSignCapable(sk.Key.Algorithm) {
			for _, sig := range sk.Signatures {
				if sig.SigType == 0x18 && keyFlags(sig)&0x03 != 0 {
					primary := key.Secret.Primary.PublicOnly()
					if err := sig.Verify(primary, subkeyBindingData(primary, sk.Key.PublicOnly())); err == nil {
						return sk.Key
					}
				}
			}
		}
	}
	if isSignCapable(key.Secret.Primary.Algorithm) {
		return key.Secret.Primary
	}
	return nil
}

// preferredSymmetricAlgorithms returns the ranked list of symmetric
// algorithm IDs declared in keyPacket's self-signature over its
// primary identity (subpacket type 11), or nil if absent.
func preferredSymmetricAlgorithms(pk *PartialKey) []byte {
	return preferredSubpacket(pk, 11)
}

func preferredCompressionAlgorithms(pk *PartialKey) []byte {
	return preferredSubpacket(pk, 22)
}

func preferredSubpacket(pk *PartialKey, kind byte) []byte {
	if pk == nil || len(pk.Identities) == 0 {
		return nil
	}
	for _, id := range pk.Identities {
		for _, sig := range id.Signatures {
			if sig.SigType != 0x10 && sig.SigType != 0x11 && sig.SigType != 0x12 && sig.SigType != 0x13 {
				continue
			}
			if b, ok := sig.find(kind); ok {
				return b
			}
		}
	}
	return nil
}

// symmetricRank orders symmetric algorithms from most to least
// preferred when intersecting recipients' declared preferences.
var symmetricRank = []byte{CipherAES256, CipherAES192, CipherAES128, CipherCAST5, Cipher3DES}

// PreferredSymmetricAlgorithm intersects each key's declared
// preferredSymmetricAlgorithms and returns the highest-ranked
// algorithm common to all, defaulting to AES-128 if the intersection
// is empty (spec section 4.D).
func PreferredSymmetricAlgorithm(keys []*Key) byte {
	var prefs [][]byte
	for _, k := range keys {
		if p := preferredSymmetricAlgorithms(k.Public); p != nil {
			prefs = append(prefs, p)
		}
	}
	if len(prefs) == 0 {
		return CipherAES128
	}
	for _, alg := range symmetricRank {
		all := true
		for _, p := range prefs {
			if !containsByte(p, alg) {
				all = false
				break
			}
		}
		if all {
			return alg
		}
	}
	return CipherAES128
}

// PreferredCompressionAlgorithm performs the same intersection over
// preferredCompressionAlgorithms (SPEC_FULL.md Open Question decision
// 1).
func PreferredCompressionAlgorithm(keys []*Key) byte {
	var prefs [][]byte
	for _, k := range keys {
		if p := preferredCompressionAlgorithms(k.Public); p != nil {
			prefs = append(prefs, p)
		}
	}
	return preferredCompression(prefs)
}
