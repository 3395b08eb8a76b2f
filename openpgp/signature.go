package openpgp

import (
	"encoding/binary"
)

// Signature is a parsed V4 Signature packet (tag 2, RFC 4880 section
// 5.2.3): the pipeline's general-purpose signing/verification packet,
// used for detached signatures, embedded document signatures, and key
// certifications alike. SignKey.sign (signkey.go) builds the narrower
// set of self-certification signatures the teacher's own identity
// needs; Signature is the generalized form spec section 4.E's Sign
// and Verify operations work with, over any KeyPacket and any of the
// hash algorithms component A exposes.
type Signature struct {
	SigType   byte
	PubKeyAlg byte
	HashAlg   byte

	Hashed   []subpacket
	Unhashed []subpacket

	hashedArea []byte // raw encoding as parsed, reused by trailer and Serialize; nil for a built signature, whose area is packed from Hashed
	Preview    [2]byte
	MPIs       [][]byte
}

// ParseSignature interprets a generic Packet as a V4 signature. V3
// signatures (no subpacket areas) are not produced by this codec and
// are reported as UnsupportedPacketErr on parse, matching component B's
// "V4 signatures only" stance (spec section 4.E Sign).
func ParseSignature(pkt *Packet) (*Signature, error) {
	if pkt.Tag != TagSignature {
		return nil, ErrInvalidMessage
	}
	b := pkt.Body
	if len(b) < 6 || b[0] != 4 {
		return nil, UnsupportedPacketErr
	}
	s := &Signature{SigType: b[1], PubKeyAlg: b[2], HashAlg: b[3]}
	hashedLen := int(binary.BigEndian.Uint16(b[4:6]))
	rest := b[6:]
	if len(rest) < hashedLen {
		return nil, ErrInvalidMessage
	}
	s.hashedArea = append([]byte{}, rest[:hashedLen]...)
	subs, err := parseSubpackets(s.hashedArea)
	if err != nil {
		return nil, err
	}
	s.Hashed = subs
	rest = rest[hashedLen:]

	if len(rest) < 2 {
		return nil, ErrInvalidMessage
	}
	unhashedLen := int(binary.BigEndian.Uint16(rest))
	rest = rest[2:]
	if len(rest) < unhashedLen {
		return nil, ErrInvalidMessage
	}
	subs, err = parseSubpackets(rest[:unhashedLen])
	if err != nil {
		return nil, err
	}
	s.Unhashed = subs
	rest = rest[unhashedLen:]

	if len(rest) < 2 {
		return nil, ErrInvalidMessage
	}
	copy(s.Preview[:], rest[:2])
	rest = rest[2:]

	n := sigMPICount(s.PubKeyAlg)
	for i := 0; i < n; i++ {
		mpiVal, r := mpiDecode(rest, 0)
		if mpiVal == nil {
			return nil, ErrInvalidMessage
		}
		s.MPIs = append(s.MPIs, mpiVal)
		rest = r
	}
	return s, nil
}

func sigMPICount(alg byte) int {
	switch alg {
	case PubKeyRSA, PubKeyRSASign:
		return 1
	case PubKeyDSA:
		return 2
	case PubKeyEdDSA:
		return 2
	default:
		return 0
	}
}

func parseSubpackets(area []byte) ([]subpacket, error) {
	var out []subpacket
	for len(area) > 0 {
		n, lenOctets, err := subpacketLength(area)
		if err != nil {
			return nil, err
		}
		area = area[lenOctets:]
		if n < 1 || n > len(area) {
			return nil, ErrInvalidMessage
		}
		out = append(out, subpacket{kind: area[0] &^ 0x80, body: append([]byte{}, area[1:n]...)})
		area = area[n:]
	}
	return out, nil
}

// subpacketLength decodes an RFC 4880 section 5.2.3.1 subpacket length
// header, returning the subpacket's total length (type octet plus
// body) and how many header octets it took.
func subpacketLength(b []byte) (n, hdrLen int, err error) {
	if len(b) < 1 {
		return 0, 0, ErrInvalidMessage
	}
	first := int(b[0])
	switch {
	case first < 192:
		return first, 1, nil
	case first < 255:
		if len(b) < 2 {
			return 0, 0, ErrInvalidMessage
		}
		return (first-192)<<8 + int(b[1]) + 192, 2, nil
	default:
		if len(b) < 5 {
			return 0, 0, ErrInvalidMessage
		}
		return int(binary.BigEndian.Uint32(b[1:5])), 5, nil
	}
}

// find returns the body of the first subpacket of the given kind,
// searching the hashed area first (the only area a verifier may trust
// per RFC 4880 section 5.2.3.2) and falling back to the unhashed area.
func (s *Signature) find(kind byte) ([]byte, bool) {
	for _, sp := range s.Hashed {
		if sp.kind == kind {
			return sp.body, true
		}
	}
	for _, sp := range s.Unhashed {
		if sp.kind == kind {
			return sp.body, true
		}
	}
	return nil, false
}

// IssuerKeyID returns the 8-octet Key ID that produced this signature,
// read from the Issuer subpacket (type 16) or, failing that, the last
// 8 octets of an Issuer Fingerprint subpacket (type 33).
func (s *Signature) IssuerKeyID() []byte {
	if id, ok := s.find(16); ok && len(id) == 8 {
		return id
	}
	if fp, ok := s.find(33); ok && len(fp) >= 21 {
		return fp[len(fp)-8:]
	}
	return nil
}

// Created returns the Signature Creation Time subpacket (type 2), or
// zero if absent (malformed per RFC 4880 but not fatal to parse).
func (s *Signature) Created() int64 {
	if b, ok := s.find(2); ok && len(b) == 4 {
		return int64(binary.BigEndian.Uint32(b))
	}
	return 0
}

// trailer reproduces the hashed-area octets and RFC 4880 section 5.2.4
// final trailer for this signature, given the leading version/type/
// alg octets it was parsed or built with.
func (s *Signature) trailer() []byte {
	hashedArea := s.hashedArea
	if hashedArea == nil {
		hashedArea = packSubpackets(s.Hashed)
	}
	head := []byte{4, s.SigType, s.PubKeyAlg, s.HashAlg, byte(len(hashedArea) >> 8), byte(len(hashedArea))}
	head = append(head, hashedArea...)
	final := append([]byte{4, 0xff}, marshal32be(uint32(len(head)))...)
	return append(head, final...)
}

// digest computes the signed hash: the document octets (already
// canonicalized by the caller per spec section 3 invariant 5) followed
// by this signature's trailer.
func (s *Signature) digest(data []byte) ([]byte, error) {
	hf, err := newHash(s.HashAlg)
	if err != nil {
		return nil, err
	}
	h := hf()
	h.Write(data)
	h.Write(s.trailer())
	return h.Sum(nil), nil
}

// BuildSignature creates a V4 signature of sigType over data (already
// canonicalized) using key, whose secret material must be unlocked.
// The Issuer and Issuer Fingerprint subpackets are always added so a
// verifier can locate the signing key by either convention.
func BuildSignature(key *KeyPacket, sigType, hashAlg byte, data []byte, when int64) (*Signature, error) {
	s := &Signature{
		SigType:   sigType,
		PubKeyAlg: key.Algorithm,
		HashAlg:   hashAlg,
		Hashed: []subpacket{
			{kind: 2, body: marshal32be(uint32(when))},
			{kind: 33, body: append([]byte{4}, key.Fingerprint()...)},
		},
		Unhashed: []subpacket{{kind: 16, body: key.KeyID()}},
	}
	digest, err := s.digest(data)
	if err != nil {
		return nil, err
	}
	copy(s.Preview[:], digest[:2])
	mpis, err := key.Sign(hashAlg, digest)
	if err != nil {
		return nil, err
	}
	s.MPIs = mpis
	return s, nil
}

// Verify checks this signature against data (already canonicalized)
// using the issuer's public key packet.
func (s *Signature) Verify(key *KeyPacket, data []byte) error {
	digest, err := s.digest(data)
	if err != nil {
		return err
	}
	return key.Verify(s.HashAlg, digest, s.MPIs)
}

// Serialize emits the Signature packet.
func (s *Signature) Serialize() []byte {
	hashedArea := s.hashedArea
	if hashedArea == nil {
		hashedArea = packSubpackets(s.Hashed)
	}
	body := []byte{4, s.SigType, s.PubKeyAlg, s.HashAlg, byte(len(hashedArea) >> 8), byte(len(hashedArea))}
	body = append(body, hashedArea...)
	unhashedArea := packSubpackets(s.Unhashed)
	body = append(body, byte(len(unhashedArea)>>8), byte(len(unhashedArea)))
	body = append(body, unhashedArea...)
	body = append(body, s.Preview[:]...)
	for _, m := range s.MPIs {
		body = append(body, mpi(m)...)
	}
	return serializePacket(TagSignature, body)
}
