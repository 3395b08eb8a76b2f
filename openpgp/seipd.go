package openpgp

import (
	"crypto/sha1"
)

// MDC is a parsed tag-19 packet: a fixed 20-octet SHA-1 digest that
// protects a SEIPD packet against truncation and tampering (spec
// section 3 invariant 2, section 4.B).
type MDC struct {
	Digest [20]byte
}

// mdcBody returns the complete MDC packet for digest. serializePacket's
// header for a 20-octet tag-19 body is always 0xd3 0x14, the fixed form
// RFC 4880 section 5.14 gives the MDC packet and the one Decrypt checks.
func mdcBody(digest []byte) []byte {
	return serializePacket(TagMDC, digest)
}

// ParseSEIPD interprets a generic Packet as SEIPD without decrypting
// it; Decrypt below does the CFB pass and MDC validation once a
// session key is known.
type SEIPD struct {
	Version    byte
	Ciphertext []byte
}

func ParseSEIPD(pkt *Packet) (*SEIPD, error) {
	if pkt.Tag != TagSEIPD {
		return nil, ErrInvalidMessage
	}
	b := pkt.Body
	if len(b) < 1 || b[0] != 1 {
		return nil, UnsupportedPacketErr
	}
	return &SEIPD{Version: 1, Ciphertext: append([]byte{}, b[1:]...)}, nil
}

// Serialize emits the SEIPD packet.
func (s *SEIPD) Serialize() []byte {
	return serializePacket(TagSEIPD, append([]byte{1}, s.Ciphertext...))
}

// EncryptSEIPD wraps inner (a concatenated inner packet stream) under
// (symAlg, sessionKey), appending an MDC packet whose digest covers
// the random prefix, the inner packets and the MDC packet's own two
// header octets (0xd3 0x14), per spec section 4.E step 4.
func EncryptSEIPD(symAlg byte, sessionKey, inner []byte) (*SEIPD, error) {
	block, err := newBlockCipher(symAlg, sessionKey)
	if err != nil {
		return nil, err
	}
	bs := block.BlockSize()

	prefix := make([]byte, bs+2)
	if _, err := rngFill(prefix[:bs]); err != nil {
		return nil, err
	}
	prefix[bs] = prefix[bs-2]
	prefix[bs+1] = prefix[bs-1]

	h := sha1.New()
	h.Write(prefix)
	h.Write(inner)
	h.Write([]byte{0xd3, 0x14})
	digest := h.Sum(nil)

	plaintext := append(append([]byte{}, prefix...), inner...)
	plaintext = append(plaintext, mdcBody(digest)...)

	iv := make([]byte, bs)
	ciphertext := make([]byte, len(plaintext))
	cfbStreamEncrypt(block, iv, plaintext, ciphertext)
	return &SEIPD{Version: 1, Ciphertext: ciphertext}, nil
}

// Decrypt reverses EncryptSEIPD, validating the MDC. A mismatched or
// missing MDC is ErrIntegrityCheckFailed, fatal and non-retryable
// (spec section 3 invariant 2, section 7): the inner octets are never
// returned on that path.
func (s *SEIPD) Decrypt(symAlg byte, sessionKey []byte) ([]byte, error) {
	block, err := newBlockCipher(symAlg, sessionKey)
	if err != nil {
		return nil, err
	}
	bs := block.BlockSize()
	if len(s.Ciphertext) < bs+2 {
		return nil, ErrInvalidMessage
	}
	iv := make([]byte, bs)
	plaintext := make([]byte, len(s.Ciphertext))
	cfbStream(block, iv, s.Ciphertext, plaintext)

	prefix := plaintext[:bs+2]
	if prefix[bs-2] != prefix[bs] || prefix[bs-1] != prefix[bs+1] {
		return nil, ErrInvalidMessage
	}
	rest := plaintext[bs+2:]

	if len(rest) < 22 {
		return nil, ErrIntegrityCheckFailed
	}
	mdcPkt := rest[len(rest)-22:]
	inner := rest[:len(rest)-22]
	if mdcPkt[0] != 0xd3 || mdcPkt[1] != 0x14 {
		return nil, ErrIntegrityCheckFailed
	}

	h := sha1.New()
	h.Write(prefix)
	h.Write(inner)
	h.Write(mdcPkt[:2])
	want := h.Sum(nil)
	if !constantTimeEqual(want, mdcPkt[2:]) {
		return nil, ErrIntegrityCheckFailed
	}
	return append([]byte{}, inner...), nil
}

// SED is a parsed tag-9 packet: the legacy symmetrically encrypted
// envelope with no integrity protection. Accepted on decrypt per spec
// section 4.B; the pipeline never emits it.
type SED struct {
	Ciphertext []byte
}

func ParseSED(pkt *Packet) (*SED, error) {
	if pkt.Tag != TagSED {
		return nil, ErrInvalidMessage
	}
	return &SED{Ciphertext: append([]byte{}, pkt.Body...)}, nil
}

func (s *SED) Serialize() []byte {
	return serializePacket(TagSED, s.Ciphertext)
}

// Decrypt reverses the plain OpenPGP CFB envelope (random prefix plus
// quick-check repeat, no MDC).
func (s *SED) Decrypt(symAlg byte, sessionKey []byte) ([]byte, error) {
	block, err := newBlockCipher(symAlg, sessionKey)
	if err != nil {
		return nil, err
	}
	return cfbDecryptOpenPGP(block, s.Ciphertext)
}
