package openpgp

import (
	"bytes"
	"compress/bzip2"
	"compress/flate"
	"compress/zlib"
	"io/ioutil"
)

// CompressedData is a parsed tag-8 packet: an inner packet stream
// compressed under one of the RFC 4880 section 9.3 algorithms. Spec
// section 4.E step 3 wraps the non-signing encrypt path's inner
// content in CompressedData(ZLIB); BZIP2 is decode-only, matching the
// Go standard library's compress/bzip2, which implements no writer
// (SPEC_FULL.md domain stack / decode-oriented per spec's "prefer not
// to emit" stance on legacy formats).
type CompressedData struct {
	Algorithm byte
	Inner     []byte // decompressed packet-stream octets
}

// ParseCompressedData interprets a generic Packet as CompressedData,
// decompressing its body immediately.
func ParseCompressedData(pkt *Packet) (*CompressedData, error) {
	if pkt.Tag != TagCompressedData {
		return nil, ErrInvalidMessage
	}
	b := pkt.Body
	if len(b) < 1 {
		return nil, ErrInvalidMessage
	}
	alg := b[0]
	compressed := b[1:]
	inner, err := decompress(alg, compressed)
	if err != nil {
		return nil, err
	}
	return &CompressedData{Algorithm: alg, Inner: inner}, nil
}

func decompress(alg byte, data []byte) ([]byte, error) {
	switch alg {
	case CompressUncompressed:
		return data, nil
	case CompressZIP:
		r := flate.NewReader(bytes.NewReader(data))
		defer r.Close()
		out, err := ioutil.ReadAll(r)
		if err != nil {
			return nil, wrapErr(KindInvalidMessage, err, "inflate")
		}
		return out, nil
	case CompressZLIB:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, wrapErr(KindInvalidMessage, err, "zlib")
		}
		defer r.Close()
		out, err := ioutil.ReadAll(r)
		if err != nil {
			return nil, wrapErr(KindInvalidMessage, err, "zlib inflate")
		}
		return out, nil
	case CompressBZIP2:
		out, err := ioutil.ReadAll(bzip2.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, wrapErr(KindInvalidMessage, err, "bzip2")
		}
		return out, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// Serialize compresses Inner under Algorithm and emits the
// CompressedData packet.
func (c *CompressedData) Serialize() ([]byte, error) {
	compressed, err := compress(c.Algorithm, c.Inner)
	if err != nil {
		return nil, err
	}
	body := append([]byte{c.Algorithm}, compressed...)
	return serializePacket(TagCompressedData, body), nil
}

func compress(alg byte, data []byte) ([]byte, error) {
	switch alg {
	case CompressUncompressed:
		return data, nil
	case CompressZIP:
		var buf bytes.Buffer
		w, err := flate.NewWriter(&buf, flate.DefaultCompression)
		if err != nil {
			return nil, wrapErr(KindCryptoFailure, err, "deflate")
		}
		if _, err := w.Write(data); err != nil {
			return nil, wrapErr(KindCryptoFailure, err, "deflate")
		}
		if err := w.Close(); err != nil {
			return nil, wrapErr(KindCryptoFailure, err, "deflate")
		}
		return buf.Bytes(), nil
	case CompressZLIB:
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, wrapErr(KindCryptoFailure, err, "zlib")
		}
		if err := w.Close(); err != nil {
			return nil, wrapErr(KindCryptoFailure, err, "zlib")
		}
		return buf.Bytes(), nil
	default:
		// BZIP2 emit and any other unknown algorithm: component B
		// supports decode only for these, per spec section 4.B.
		return nil, ErrUnsupportedAlgorithm
	}
}

// preferredCompression intersects each recipient's declared
// preferredCompressionAlgorithms (self-signature subpacket 22) and
// returns the highest-ranked algorithm common to all among those
// Serialize can emit (BZIP2 is never chosen), defaulting to ZLIB when
// the intersection is empty -- SPEC_FULL.md Open Question decision 1.
func preferredCompression(prefs [][]byte) byte {
	ranked := []byte{CompressZLIB, CompressZIP, CompressUncompressed}
	if len(prefs) == 0 {
		return CompressZLIB
	}
	for _, alg := range ranked {
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
	return CompressZLIB
}

func containsByte(haystack []byte, b byte) bool {
	for _, h := range haystack {
		if h == b {
			return true
		}
	}
	return false
}
