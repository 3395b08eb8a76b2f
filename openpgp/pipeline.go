// Message Pipeline (spec section 4.E): composes and decomposes PGP
// messages, driving the ESK -> session-key -> SEIPD -> literal/
// signature flow spec section 2 diagrams. These five functions --
// Encrypt, Decrypt, Sign, Verify, ReadKeys (key.go) -- are the public
// contract spec section 6 names.
package openpgp

import (
	"bytes"
	"time"
)

// PassphraseFunc retrieves the passphrase for the secret key with the
// given Key ID, synchronously on the calling goroutine (spec section
// 5: "a callback invoked synchronously on the processing thread").
// Returning nil means "no passphrase available" -- the pipeline
// reports ErrPassphraseRequired rather than retrying. A SKESK lookup
// (no specific key) calls this with a nil keyID.
type PassphraseFunc func(keyID []byte) []byte

// Encrypt composes an OpenPGP message: plaintext -> (optional
// one-pass-signature wrap) -> compressed or embedded-signed content
// -> SEIPD, with one PKESK per recipient (spec section 4.E Encrypt).
// signKey, if non-nil, embeds a one-pass-signed literal in place of
// the compressed literal (the signed content is not compressed); a
// locked signing key consults passphrase.
func Encrypt(data []byte, recipients []*Key, signKey *Key, passphrase PassphraseFunc, armored bool) ([]byte, error) {
	var eskBodies [][]byte
	symAlg := PreferredSymmetricAlgorithm(recipients)
	sessionKey, err := randomBytes(keySizeOf(symAlg))
	if err != nil {
		return nil, err
	}
	for _, r := range recipients {
		pub := EncryptionPacket(r)
		if pub == nil {
			continue
		}
		esk, err := NewPKESK(pub, symAlg, sessionKey)
		if err != nil {
			return nil, err
		}
		eskBodies = append(eskBodies, esk.Serialize())
	}
	if len(eskBodies) == 0 {
		return nil, newErrMsg(KindGeneral, "no usable encryption key in recipient set")
	}

	when := time.Now().Unix()
	var inner []byte
	if signKey != nil {
		signingPkt := SigningPacket(signKey)
		if signingPkt == nil {
			return nil, newErrMsg(KindGeneral, "signing key has no usable sign-capable packet")
		}
		if signingPkt.Locked() {
			var pass []byte
			if passphrase != nil {
				pass = passphrase(signingPkt.KeyID())
			}
			if err := signingPkt.Unlock(pass); err != nil {
				return nil, err
			}
		}
		lit := &LiteralData{Format: LiteralBinary, Time: when, Body: data}
		ops := newOnePassSignature(signingPkt, 0x00, HashSHA512)
		sig, err := BuildSignature(signingPkt, 0x00, HashSHA512, lit.SignedBody(), when)
		if err != nil {
			return nil, err
		}
		inner = append(inner, ops.Serialize()...)
		inner = append(inner, lit.Serialize()...)
		inner = append(inner, sig.Serialize()...)
	} else {
		lit := &LiteralData{Format: LiteralBinary, Time: when, Body: data}
		cd := &CompressedData{Algorithm: PreferredCompressionAlgorithm(recipients), Inner: lit.Serialize()}
		compPkt, err := cd.Serialize()
		if err != nil {
			return nil, err
		}
		inner = compPkt
	}

	seipd, err := EncryptSEIPD(symAlg, sessionKey, inner)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(inner)+64)
	for _, esk := range eskBodies {
		out = append(out, esk...)
	}
	out = append(out, seipd.Serialize()...)

	if armored {
		wrapped, err := Wrap(ArmorMessage, out)
		if err != nil {
			return nil, err
		}
		return []byte(wrapped), nil
	}
	return out, nil
}

// recoverSessionKey scans pkts for a PKESK this caller can unlock
// (spec section 4.E Decrypt step 3), falling back to any SKESK if a
// passphrase-only message was sent instead. It stops at the first
// success; PassphraseRequired takes precedence over the InvalidMessage
// fallback when no candidate succeeded only because a passphrase was
// missing (spec section 7).
func recoverSessionKey(pkts []*Packet, keys []*Key, passphrase PassphraseFunc) (symAlg byte, sessionKey []byte, err error) {
	var pendingRequired error
	var pendingIncorrect error

	for _, pkt := range pkts {
		if pkt.Tag != TagPKESK {
			continue
		}
		esk, perr := ParsePKESK(pkt)
		if perr != nil {
			continue
		}
		key := FindKey(esk.KeyID, keys)
		if key == nil {
			continue
		}
		secPkt := DecryptionPacket(key, esk.KeyID)
		if secPkt == nil {
			continue
		}
		if secPkt.Locked() {
			var pass []byte
			if passphrase != nil {
				pass = passphrase(esk.KeyID)
			}
			if pass == nil {
				pendingRequired = ErrPassphraseRequired
				continue
			}
			if uerr := secPkt.Unlock(pass); uerr != nil {
				if KindOf(uerr) == KindPassphraseIncorrect {
					pendingIncorrect = uerr
				}
				continue
			}
		}
		alg, sk, serr := esk.SessionKey(secPkt)
		if serr != nil {
			continue
		}
		return alg, sk, nil
	}

	for _, pkt := range pkts {
		if pkt.Tag != TagSKESK {
			continue
		}
		skesk, perr := ParseSKESK(pkt)
		if perr != nil {
			continue
		}
		var pass []byte
		if passphrase != nil {
			pass = passphrase(nil)
		}
		if pass == nil {
			pendingRequired = ErrPassphraseRequired
			continue
		}
		alg, sk, serr := skesk.SessionKey(pass)
		if serr != nil {
			continue
		}
		return alg, sk, nil
	}

	if pendingRequired != nil {
		return 0, nil, pendingRequired
	}
	if pendingIncorrect != nil {
		return 0, nil, pendingIncorrect
	}
	return 0, nil, ErrInvalidMessage
}

// decryptEnvelope locates the SEIPD (preferred) or SED packet among
// pkts and decrypts it with (symAlg, sessionKey). SEIPD validates its
// MDC; SED has none (spec section 4.B, 4.E step 4).
func decryptEnvelope(pkts []*Packet, symAlg byte, sessionKey []byte) ([]byte, error) {
	for _, pkt := range pkts {
		if pkt.Tag == TagSEIPD {
			seipd, err := ParseSEIPD(pkt)
			if err != nil {
				return nil, err
			}
			return seipd.Decrypt(symAlg, sessionKey)
		}
	}
	for _, pkt := range pkts {
		if pkt.Tag == TagSED {
			sed, err := ParseSED(pkt)
			if err != nil {
				return nil, err
			}
			return sed.Decrypt(symAlg, sessionKey)
		}
	}
	return nil, ErrInvalidMessage
}

func hasEncryptedEnvelope(pkts []*Packet) bool {
	for _, p := range pkts {
		if p.Tag == TagSEIPD || p.Tag == TagSED {
			return true
		}
	}
	return false
}

// resolveInnerPackets parses raw as a packet stream and transparently
// descends into any CompressedData packet, returning the flattened
// sequence of literal/signature/one-pass-signature packets a message
// actually carries (spec section 4.E step 5: "Transparently descend
// into CompressedData").
func resolveInnerPackets(raw []byte) []*Packet {
	var out []*Packet
	for _, pkt := range ParseStream(raw) {
		if pkt.Tag == TagCompressedData {
			cd, err := ParseCompressedData(pkt)
			if err != nil {
				continue
			}
			out = append(out, resolveInnerPackets(cd.Inner)...)
			continue
		}
		out = append(out, pkt)
	}
	return out
}

// resolveMessagePackets de-armors data, decrypts it if it carries an
// ESK/SEIPD/SED envelope, and returns the innermost literal/signature
// packet sequence either way -- the shared first half of Decrypt and
// (non-detached) Verify.
func resolveMessagePackets(data []byte, keys []*Key, passphrase PassphraseFunc) ([]*Packet, error) {
	block, err := FirstBlock(data)
	if err != nil {
		return nil, err
	}
	outer := ParseStream(block)
	if !hasEncryptedEnvelope(outer) {
		return resolveInnerPackets(block), nil
	}
	symAlg, sessionKey, err := recoverSessionKey(outer, keys, passphrase)
	if err != nil {
		return nil, err
	}
	inner, err := decryptEnvelope(outer, symAlg, sessionKey)
	if err != nil {
		return nil, err
	}
	return resolveInnerPackets(inner), nil
}

// extractLiteralAndSignature returns the LiteralData packet and the
// last (trailing) Signature packet found among pkts, per spec section
// 3 invariant 3's LIFO bracketing -- the outermost Signature is the
// one that was emitted last and so verifies the whole construction.
func extractLiteralAndSignature(pkts []*Packet) (*LiteralData, *Signature, error) {
	var lit *LiteralData
	var sig *Signature
	for _, pkt := range pkts {
		switch pkt.Tag {
		case TagLiteralData:
			l, err := ParseLiteralData(pkt)
			if err != nil {
				return nil, nil, err
			}
			lit = l
		case TagSignature:
			s, err := ParseSignature(pkt)
			if err != nil {
				continue
			}
			sig = s
		}
	}
	return lit, sig, nil
}

func findPublicPacketByKeyID(pk *PartialKey, keyID []byte) *KeyPacket {
	if pk == nil {
		return nil
	}
	if bytes.Equal(pk.Primary.KeyID(), keyID) {
		return pk.Primary
	}
	for _, sk := range pk.Subkeys {
		if bytes.Equal(sk.Key.KeyID(), keyID) {
			return sk.Key
		}
	}
	return nil
}

// Decrypt reverses Encrypt (spec section 4.E Decrypt): it recovers
// the session key from whichever available secret key unlocks a
// PKESK, decrypts and validates the SEIPD/SED envelope, and returns
// the literal body. If verifySignature is set, an embedded signature
// is also checked; a missing signature reports ErrNotSigned and an
// invalid one ErrInvalidSignature, matching Verify's own taxonomy
// (spec section 4.E Decrypt step 6, section 7).
func Decrypt(data []byte, keys []*Key, passphrase PassphraseFunc, verifySignature bool) ([]byte, error) {
	pkts, err := resolveMessagePackets(data, keys, passphrase)
	if err != nil {
		return nil, err
	}
	lit, sig, err := extractLiteralAndSignature(pkts)
	if err != nil {
		return nil, err
	}
	if lit == nil {
		return nil, ErrInvalidMessage
	}
	if verifySignature {
		if sig == nil {
			return nil, ErrNotSigned
		}
		issuer := FindKey(sig.IssuerKeyID(), keys)
		if issuer == nil {
			return nil, ErrInvalidSignature
		}
		pub := findPublicPacketByKeyID(issuer.Public, sig.IssuerKeyID())
		if pub == nil {
			return nil, ErrInvalidSignature
		}
		if err := sig.Verify(pub, lit.SignedBody()); err != nil {
			return nil, ErrInvalidSignature
		}
	}
	return lit.Body, nil
}

// Sign produces either a detached signature (a single Signature
// packet over data's full contents) or an embedded
// OnePassSignature|LiteralData|Signature sequence (spec section 4.E
// Sign). hashAlg defaults to SHA-512 when zero (the teacher's own
// identity signatures use SHA-256; this pipeline-level default differs
// deliberately).
func Sign(data []byte, key *Key, passphrase []byte, hashAlg byte, detached bool) ([]byte, error) {
	signingPkt := SigningPacket(key)
	if signingPkt == nil {
		return nil, newErrMsg(KindGeneral, "key has no usable sign-capable packet")
	}
	if signingPkt.Locked() {
		if err := signingPkt.Unlock(passphrase); err != nil {
			return nil, err
		}
	}
	if hashAlg == 0 {
		hashAlg = HashSHA512
	}
	when := time.Now().Unix()
	if detached {
		sig, err := BuildSignature(signingPkt, 0x00, hashAlg, data, when)
		if err != nil {
			return nil, err
		}
		return sig.Serialize(), nil
	}

	lit := &LiteralData{Format: LiteralBinary, Time: when, Body: data}
	ops := newOnePassSignature(signingPkt, 0x00, hashAlg)
	sig, err := BuildSignature(signingPkt, 0x00, hashAlg, lit.SignedBody(), when)
	if err != nil {
		return nil, err
	}
	out := append([]byte{}, ops.Serialize()...)
	out = append(out, lit.Serialize()...)
	out = append(out, sig.Serialize()...)
	return out, nil
}

// Verify checks a signature over data (spec section 4.E Verify). With
// detachedSig, the hash runs over data's raw bytes (CRLF-normalized
// first when the signature is a text signature, type 0x01) and no
// decryption is attempted. Without one, data is treated as a (possibly encrypted)
// message: it is decrypted first if needed, then its trailing
// Signature and LiteralData packets are located and checked against
// each other.
func Verify(data []byte, detachedSig []byte, keys []*Key, passphrase PassphraseFunc) (bool, error) {
	if detachedSig != nil {
		block, err := FirstBlock(detachedSig)
		if err != nil {
			return false, err
		}
		var sig *Signature
		for _, pkt := range ParseStream(block) {
			if pkt.Tag != TagSignature {
				continue
			}
			s, err := ParseSignature(pkt)
			if err != nil {
				continue
			}
			sig = s
		}
		if sig == nil {
			return false, ErrInvalidMessage
		}
		issuer := FindKey(sig.IssuerKeyID(), keys)
		if issuer == nil {
			return false, ErrInvalidSignature
		}
		pub := findPublicPacketByKeyID(issuer.Public, sig.IssuerKeyID())
		if pub == nil {
			return false, ErrInvalidSignature
		}
		signed := data
		if sig.SigType == 0x01 {
			signed = crlfNormalize(data)
		}
		if err := sig.Verify(pub, signed); err != nil {
			return false, ErrInvalidSignature
		}
		return true, nil
	}

	pkts, err := resolveMessagePackets(data, keys, passphrase)
	if err != nil {
		return false, err
	}
	lit, sig, err := extractLiteralAndSignature(pkts)
	if err != nil {
		return false, err
	}
	if sig == nil {
		return false, ErrNotSigned
	}
	if lit == nil {
		return false, ErrInvalidMessage
	}
	issuer := FindKey(sig.IssuerKeyID(), keys)
	if issuer == nil {
		return false, ErrInvalidSignature
	}
	pub := findPublicPacketByKeyID(issuer.Public, sig.IssuerKeyID())
	if pub == nil {
		return false, ErrInvalidSignature
	}
	if err := sig.Verify(pub, lit.SignedBody()); err != nil {
		return false, ErrInvalidSignature
	}
	return true, nil
}
