package openpgp

import (
	"bufio"
	"bytes"
	"io"
	"time"
)

// Clearsign produces a cleartext-signed stream
// (-----BEGIN PGP SIGNED MESSAGE-----) from src: each line is
// dash-escaped and copied through unsigned, while a running digest is
// computed over the same trailing-whitespace-stripped, CRLF-joined
// text, per RFC 4880 section 7. Generalized from the teacher's
// SignKey.Clearsign (which only ever signed with its own Ed25519
// identity) to any signing-capable Key, and from its hardcoded SHA-256
// to whatever hashAlg the caller names (zero defaults to SHA-512,
// matching Sign).
func Clearsign(src io.Reader, key *Key, passphrase []byte, hashAlg byte) (io.ReadCloser, error) {
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

	r, w := io.Pipe()
	go func() {
		header := []byte("-----BEGIN PGP SIGNED MESSAGE-----\nHash: " + hashAlgName(hashAlg) + "\n\n")
		if _, err := w.Write(header); err != nil {
			return
		}
		var canon bytes.Buffer
		crlf := []byte("\r\n")
		s := bufio.NewScanner(src)
		s.Buffer(make([]byte, 64*1024), 1<<20)
		first := true
		var line []byte
		for s.Scan() {
			line = append(line[:0], s.Bytes()...)
			for len(line) > 0 {
				last := line[len(line)-1]
				if last == ' ' || last == '\t' {
					line = line[:len(line)-1]
				} else {
					break
				}
			}
			if !first {
				canon.Write(crlf)
			}
			first = false
			canon.Write(line)

			var out []byte
			if len(line) > 0 && line[0] == '-' {
				out = append(out, '-', ' ')
			}
			out = append(out, line...)
			out = append(out, '\n')
			if _, err := w.Write(out); err != nil {
				return
			}
		}
		if err := s.Err(); err != nil {
			w.CloseWithError(err)
			return
		}
		sig, err := BuildSignature(signingPkt, 0x01, hashAlg, canon.Bytes(), time.Now().Unix())
		if err != nil {
			w.CloseWithError(err)
			return
		}
		armored, err := Wrap(ArmorSignature, sig.Serialize())
		if err != nil {
			w.CloseWithError(err)
			return
		}
		if _, err := w.Write([]byte(armored)); err != nil {
			return
		}
		w.Close()
	}()
	return r, nil
}

func hashAlgName(alg byte) string {
	switch alg {
	case HashSHA1:
		return "SHA1"
	case HashSHA256:
		return "SHA256"
	case HashSHA512:
		return "SHA512"
	default:
		return "SHA512"
	}
}
