package openpgp

import "bytes"

// LiteralData formats, RFC 4880 section 5.9.
const (
	LiteralBinary = 'b'
	LiteralText   = 't'
	LiteralUTF8   = 'u'
)

// LiteralData is a parsed tag-11 packet: the plaintext payload of an
// OpenPGP message, optionally tagged with a filename and modification
// time.
type LiteralData struct {
	Format byte
	Name   string
	Time   int64
	Body   []byte
}

// ParseLiteralData interprets a generic Packet as LiteralData.
func ParseLiteralData(pkt *Packet) (*LiteralData, error) {
	if pkt.Tag != TagLiteralData {
		return nil, ErrInvalidMessage
	}
	b := pkt.Body
	if len(b) < 1 {
		return nil, ErrInvalidMessage
	}
	format := b[0]
	rest := b[1:]
	if len(rest) < 1 {
		return nil, ErrInvalidMessage
	}
	nameLen := int(rest[0])
	rest = rest[1:]
	if len(rest) < nameLen+4 {
		return nil, ErrInvalidMessage
	}
	name := string(rest[:nameLen])
	rest = rest[nameLen:]
	when := int64(uint32(rest[0])<<24 | uint32(rest[1])<<16 | uint32(rest[2])<<8 | uint32(rest[3]))
	rest = rest[4:]
	return &LiteralData{Format: format, Name: name, Time: when, Body: append([]byte{}, rest...)}, nil
}

// Serialize emits the Literal Data packet.
func (l *LiteralData) Serialize() []byte {
	body := make([]byte, 0, len(l.Body)+6+len(l.Name))
	body = append(body, l.Format)
	body = append(body, byte(len(l.Name)))
	body = append(body, l.Name...)
	body = append(body, marshal32be(uint32(l.Time))...)
	body = append(body, l.Body...)
	return serializePacket(TagLiteralData, body)
}

// SignedBody is the octet stream a signature over this literal packet
// actually hashes: spec section 3 invariant 5 requires CRLF
// normalization of the signed stream whenever Format is text or utf8;
// binary data is hashed as-is.
func (l *LiteralData) SignedBody() []byte {
	if l.Format == LiteralBinary {
		return l.Body
	}
	return crlfNormalize(l.Body)
}

// crlfNormalize rewrites bare LF octets to CRLF pairs, without
// doubling an existing CRLF, the canonicalization RFC 4880 section
// 5.2.4 requires of text-mode signed data. A bare CR is left as is.
func crlfNormalize(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\n"), []byte("\r\n"))
}
