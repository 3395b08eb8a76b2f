package openpgp

// OnePassSignature is a parsed tag-4 packet (RFC 4880 section 5.4): a
// forward announcement of the Signature packet that follows the
// signed content, letting a streaming verifier start hashing before
// it has seen the trailing Signature. Spec section 3 invariant 3: a
// sequence of these brackets the literal content LIFO with the
// trailing Signature sequence; IsNested is true on all but the
// innermost (first emitted, last consumed).
type OnePassSignature struct {
	SigType   byte
	HashAlg   byte
	PubKeyAlg byte
	KeyID     []byte
	IsNested  bool
}

// ParseOnePassSignature interprets a generic Packet as a
// OnePassSignature.
func ParseOnePassSignature(pkt *Packet) (*OnePassSignature, error) {
	if pkt.Tag != TagOnePassSignature {
		return nil, ErrInvalidMessage
	}
	b := pkt.Body
	if len(b) != 13 || b[0] != 3 {
		return nil, UnsupportedPacketErr
	}
	return &OnePassSignature{
		SigType:   b[1],
		HashAlg:   b[2],
		PubKeyAlg: b[3],
		KeyID:     append([]byte{}, b[4:12]...),
		IsNested:  b[12] == 0,
	}, nil
}

// Serialize emits the One-Pass Signature packet.
func (o *OnePassSignature) Serialize() []byte {
	body := []byte{3, o.SigType, o.HashAlg, o.PubKeyAlg}
	body = append(body, o.KeyID...)
	if o.IsNested {
		body = append(body, 0)
	} else {
		body = append(body, 1)
	}
	return serializePacket(TagOnePassSignature, body)
}

// newOnePassSignature builds a one-pass-signature header matching a
// Signature about to be produced over the same content by key, as
// spec section 4.E step 3 ("construct a OnePassSignature packet
// (nested=true)") requires for the single-signature embedded-sign
// case the pipeline composes.
func newOnePassSignature(key *KeyPacket, sigType, hashAlg byte) *OnePassSignature {
	return &OnePassSignature{
		SigType:   sigType,
		HashAlg:   hashAlg,
		PubKeyAlg: key.Algorithm,
		KeyID:     key.KeyID(),
		IsNested:  true,
	}
}
