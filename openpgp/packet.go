package openpgp

import "encoding/binary"

// Packet tags, RFC 4880 section 4.3.
const (
	TagPKESK            = 1
	TagSignature        = 2
	TagSKESK            = 3
	TagOnePassSignature = 4
	TagSecretKey        = 5
	TagPublicKey        = 6
	TagSecretSubkey     = 7
	TagCompressedData   = 8
	TagSED              = 9
	TagMarker           = 10
	TagLiteralData      = 11
	TagTrust            = 12
	TagUserID           = 13
	TagPublicSubkey     = 14
	TagUserAttribute    = 17
	TagSEIPD            = 18
	TagMDC              = 19
)

// Packet is a parsed-but-uninterpreted packet: a tag and its body
// octets. Packet-kind-specific structure (PublicKeyPacket, Signature,
// LiteralData, ...) is layered on top by the other files in this
// package; Packet itself only knows the RFC 4880 framing.
type Packet struct {
	Tag  int
	Body []byte
}

// ParsePacket reads one packet from the front of b, returning the
// packet and the number of octets consumed. On a header it cannot
// interpret -- an unset MSB, an unsupported partial-body length, or a
// declared length that runs past the end of b -- it returns a nil
// packet and a consumed count of at least one byte, so a caller
// walking a stream can resynchronize by skipping the byte and
// retrying, matching how real-world PGP streams tolerate interleaved
// Marker packets and trailing junk (spec section 4.B).
func ParsePacket(b []byte) (pkt *Packet, consumed int, err error) {
	defer func() {
		if recover() != nil {
			pkt, err = nil, InvalidPacketErr
			if consumed == 0 {
				consumed = 1
			}
		}
	}()

	if len(b) == 0 {
		return nil, 0, InvalidPacketErr
	}
	if b[0]&0x80 == 0 {
		return nil, 1, InvalidPacketErr
	}

	if b[0]&0x40 == 0 {
		return parseOldFormat(b)
	}
	return parseNewFormat(b)
}

// parseOldFormat handles a 10TTTTLL tag byte.
func parseOldFormat(b []byte) (*Packet, int, error) {
	tag := int(b[0]>>2) & 0x0f
	lengthType := b[0] & 3
	hdr := 1
	var length int
	switch lengthType {
	case 0:
		length = int(b[hdr])
		hdr++
	case 1:
		length = int(binary.BigEndian.Uint16(b[hdr:]))
		hdr += 2
	case 2:
		length = int(binary.BigEndian.Uint32(b[hdr:]))
		hdr += 4
	case 3:
		// Indeterminate length: consume to the end of the buffer.
		length = len(b) - hdr
	}
	if length < 0 || hdr+length > len(b) {
		return nil, 1, InvalidPacketErr
	}
	body := make([]byte, length)
	copy(body, b[hdr:hdr+length])
	return &Packet{Tag: tag, Body: body}, hdr + length, nil
}

// parseNewFormat handles a 11TTTTTT tag byte.
func parseNewFormat(b []byte) (*Packet, int, error) {
	tag := int(b[0] & 0x3f)
	hdr := 1
	if hdr >= len(b) {
		return nil, 1, InvalidPacketErr
	}
	first := b[hdr]
	var length int
	switch {
	case first < 192:
		length = int(first)
		hdr++
	case first < 224:
		if hdr+1 >= len(b) {
			return nil, 1, InvalidPacketErr
		}
		length = (int(first)-192)<<8 + int(b[hdr+1]) + 192
		hdr += 2
	case first == 255:
		if hdr+4 >= len(b) {
			return nil, 1, InvalidPacketErr
		}
		length = int(binary.BigEndian.Uint32(b[hdr+1:]))
		hdr += 5
	default:
		// Partial body lengths (224-254): not produced by this codec
		// and not accepted on parse; spec section 4.B requires only
		// that emit choose a header sufficient for the length, which
		// partial bodies are not.
		return nil, 1, UnsupportedPacketErr
	}
	if length < 0 || hdr+length > len(b) {
		return nil, 1, InvalidPacketErr
	}
	body := make([]byte, length)
	copy(body, b[hdr:hdr+length])
	return &Packet{Tag: tag, Body: body}, hdr + length, nil
}

// serializePacket prepends the smallest legal new-format header to
// body. Re-parsing the result always yields an equal Packet, which is
// the byte-stability property spec section 4.B and section 8 require.
func serializePacket(tag int, body []byte) []byte {
	var hdr []byte
	n := len(body)
	switch {
	case n < 192:
		hdr = []byte{byte(n)}
	case n < 8384:
		n -= 192
		hdr = []byte{byte(n>>8) + 192, byte(n)}
	default:
		hdr = make([]byte, 5)
		hdr[0] = 255
		binary.BigEndian.PutUint32(hdr[1:], uint32(len(body)))
	}
	out := make([]byte, 0, 1+len(hdr)+len(body))
	out = append(out, 0xc0|byte(tag))
	out = append(out, hdr...)
	out = append(out, body...)
	return out
}

// ParseStream parses a full packet stream, silently skipping any
// octets ParsePacket could not interpret by resynchronizing one byte
// at a time.
func ParseStream(b []byte) []*Packet {
	var out []*Packet
	for len(b) > 0 {
		pkt, n, err := ParsePacket(b)
		if n <= 0 {
			n = 1
		}
		if err == nil && pkt != nil {
			out = append(out, pkt)
		}
		b = b[n:]
	}
	return out
}
