package openpgp

import "encoding/binary"

// PKESK is a parsed tag-1 packet (RFC 4880 section 5.1): a session key
// wrapped under one recipient's public key. The recovered plaintext is
// symAlg(1) | sessionKey(N) | checksum(2), spec section 4.B.
type PKESK struct {
	KeyID     []byte
	PubKeyAlg byte
	MPIs      [][]byte
}

// ParsePKESK interprets a generic Packet as a PKESK.
func ParsePKESK(pkt *Packet) (*PKESK, error) {
	if pkt.Tag != TagPKESK {
		return nil, ErrInvalidMessage
	}
	b := pkt.Body
	if len(b) < 10 || b[0] != 3 {
		return nil, UnsupportedPacketErr
	}
	esk := &PKESK{KeyID: append([]byte{}, b[1:9]...), PubKeyAlg: b[9]}
	rest := b[10:]
	n := pkeskMPICount(esk.PubKeyAlg)
	for i := 0; i < n; i++ {
		v, r := mpiDecode(rest, 0)
		if v == nil {
			return nil, ErrInvalidMessage
		}
		esk.MPIs = append(esk.MPIs, v)
		rest = r
	}
	return esk, nil
}

func pkeskMPICount(alg byte) int {
	switch alg {
	case PubKeyRSA, PubKeyRSAEncrypt:
		return 1
	case PubKeyElgamal:
		return 2
	case PubKeyECDH:
		return 2
	default:
		return 0
	}
}

// Serialize emits the PKESK packet.
func (e *PKESK) Serialize() []byte {
	body := append([]byte{3}, e.KeyID...)
	body = append(body, e.PubKeyAlg)
	for _, m := range e.MPIs {
		body = append(body, mpi(m)...)
	}
	return serializePacket(TagPKESK, body)
}

// wrapSessionKey builds the symAlg|sessionKey|checksum plaintext block
// a PKESK or SKESK wraps (spec section 4.B).
func wrapSessionKey(symAlg byte, sessionKey []byte) []byte {
	out := append([]byte{symAlg}, sessionKey...)
	return append(out, marshal16be(checksum(sessionKey))...)
}

// unwrapSessionKey reverses wrapSessionKey, validating the checksum.
func unwrapSessionKey(plaintext []byte) (symAlg byte, sessionKey []byte, err error) {
	if len(plaintext) < 3 {
		return 0, nil, ErrInvalidMessage
	}
	symAlg = plaintext[0]
	keySize := keySizeOf(symAlg)
	if keySize == 0 || len(plaintext) != 1+keySize+2 {
		return 0, nil, ErrUnsupportedAlgorithm
	}
	sessionKey = plaintext[1 : 1+keySize]
	want := binary.BigEndian.Uint16(plaintext[1+keySize:])
	if checksum(sessionKey) != want {
		return 0, nil, ErrInvalidMessage
	}
	return symAlg, append([]byte{}, sessionKey...), nil
}

// NewPKESK wraps sessionKey for recipient, addressed to its Key ID.
func NewPKESK(recipient *KeyPacket, symAlg byte, sessionKey []byte) (*PKESK, error) {
	mpis, err := recipient.EncryptSessionKey(wrapSessionKey(symAlg, sessionKey))
	if err != nil {
		return nil, err
	}
	return &PKESK{KeyID: recipient.KeyID(), PubKeyAlg: recipient.Algorithm, MPIs: mpis}, nil
}

// SessionKey recovers (symAlg, sessionKey) using the unlocked secret
// half of recipient.
func (e *PKESK) SessionKey(recipient *KeyPacket) (symAlg byte, sessionKey []byte, err error) {
	plain, err := recipient.DecryptSessionKey(e.MPIs)
	if err != nil {
		return 0, nil, err
	}
	return unwrapSessionKey(plain)
}

// SKESK is a parsed tag-3 packet (RFC 4880 section 5.3): a session key
// protected by a passphrase-derived key rather than a public key. This
// module parses it (a keyring-free message can carry one) but the
// pipeline's Encrypt operation (spec section 4.E) only ever emits
// PKESK, matching the public recipient-keys-only contract in spec
// section 6.
type SKESK struct {
	SymAlg        byte
	S2K           *s2kSpec
	EncSessionKey []byte // empty: the S2K-derived key IS the session key
}

// ParseSKESK interprets a generic Packet as a SKESK.
func ParseSKESK(pkt *Packet) (*SKESK, error) {
	if pkt.Tag != TagSKESK {
		return nil, ErrInvalidMessage
	}
	b := pkt.Body
	if len(b) < 2 || b[0] != 4 {
		return nil, UnsupportedPacketErr
	}
	symAlg := b[1]
	spec, rest, err := parseS2KSpec(b[2:])
	if err != nil {
		return nil, err
	}
	return &SKESK{SymAlg: symAlg, S2K: spec, EncSessionKey: append([]byte{}, rest...)}, nil
}

// Serialize emits the SKESK packet.
func (s *SKESK) Serialize() []byte {
	body := append([]byte{4, s.SymAlg}, serializeS2KSpec(s.S2K)...)
	return serializePacket(TagSKESK, append(body, s.EncSessionKey...))
}

// SessionKey derives (or decrypts) the session key using passphrase.
func (s *SKESK) SessionKey(passphrase []byte) (symAlg byte, sessionKey []byte, err error) {
	derived, err := deriveKey(s.S2K, passphrase, keySizeOf(s.SymAlg))
	if err != nil {
		return 0, nil, err
	}
	if len(s.EncSessionKey) == 0 {
		return s.SymAlg, derived, nil
	}
	block, err := newBlockCipher(s.SymAlg, derived)
	if err != nil {
		return 0, nil, err
	}
	bs := blockSizeOf(s.SymAlg)
	iv := make([]byte, bs)
	plain := make([]byte, len(s.EncSessionKey))
	cfbStream(block, iv, s.EncSessionKey, plain)
	if len(plain) < 1 {
		return 0, nil, ErrInvalidMessage
	}
	return plain[0], plain[1:], nil
}
