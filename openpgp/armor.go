// Armor Boundary (spec section 4.C): detects, extracts and encodes
// ASCII-armored PGP blocks. Spec section 1 scopes the armor codec
// itself out of the core ("specified only at its boundary"), so this
// file consumes golang.org/x/crypto/openpgp/armor as an external
// collaborator rather than reimplementing Base64 + CRC-24 framing --
// the same library arp242-blackmail's sign.go uses for exactly this
// purpose in the retrieval pack.
package openpgp

import (
	"bytes"
	"io/ioutil"

	"golang.org/x/crypto/openpgp/armor"
)

// Armor block type headers, RFC 4880 section 6.2.
const (
	ArmorMessage    = "PGP MESSAGE"
	ArmorPublicKey  = "PGP PUBLIC KEY BLOCK"
	ArmorPrivateKey = "PGP PRIVATE KEY BLOCK"
	ArmorSignature  = "PGP SIGNATURE"
)

var armorPrefix = []byte("-----BEGIN PGP ")

// IsArmored reports whether b looks like ASCII-armored PGP input:
// its prefix (after skipping leading whitespace) begins with
// "-----BEGIN PGP " (spec section 4.C).
func IsArmored(b []byte) bool {
	b = bytes.TrimLeft(b, " \t\r\n")
	return bytes.HasPrefix(b, armorPrefix)
}

// Wrap ASCII-armors data under the given block type (one of the
// Armor* constants), RFC 4880 section 6.2 framing: BEGIN/END markers,
// 64-column Base64 and a trailing CRC-24, all produced by the armor
// package's encoder. The encoder only ever emits bare LF, so the
// result is CRLF-normalized before returning, the same fixup
// arp242-blackmail/sign.go applies to this same library's output
// (spec section 8 scenario 2 requires "\r\n" line endings).
func Wrap(kind string, data []byte) (string, error) {
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, kind, nil)
	if err != nil {
		return "", wrapErr(KindGeneral, err, "armor encode")
	}
	if _, err := w.Write(data); err != nil {
		return "", wrapErr(KindGeneral, err, "armor encode")
	}
	if err := w.Close(); err != nil {
		return "", wrapErr(KindGeneral, err, "armor encode")
	}
	return string(bytes.ReplaceAll(buf.Bytes(), []byte("\n"), []byte("\r\n"))), nil
}

// ArmorBlocks lazily decodes every armored block found in b, in
// order. Non-armored input yields a single-element sequence holding b
// itself unchanged (spec section 4.C: "non-armored input passes
// through as a single-element sequence"). Decrypt and the other
// pipeline operations consume only the first element; SPEC_FULL.md's
// Open Question decision 3 is that the rest remain available here for
// callers that want to iterate multiple armored blocks in one input.
func ArmorBlocks(b []byte) func() ([]byte, bool, error) {
	if !IsArmored(b) {
		done := false
		return func() ([]byte, bool, error) {
			if done {
				return nil, false, nil
			}
			done = true
			return b, true, nil
		}
	}
	r := bytes.NewReader(b)
	return func() ([]byte, bool, error) {
		block, err := armor.Decode(r)
		if err != nil {
			return nil, false, nil // io.EOF or trailing garbage: no more blocks
		}
		body, err := ioutil.ReadAll(block.Body)
		if err != nil {
			return nil, false, wrapErr(KindInvalidMessage, err, "armor decode")
		}
		return body, true, nil
	}
}

// FirstBlock returns the first decodable block from b -- armored or
// not -- the form Decrypt and the other single-message operations
// consume (spec section 4.E step 1).
func FirstBlock(b []byte) ([]byte, error) {
	next := ArmorBlocks(b)
	block, ok, err := next()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidMessage
	}
	return block, nil
}
