package openpgp

import (
	"crypto/sha1"
	"io"
	"io/ioutil"

	"golang.org/x/crypto/ed25519"
)

// SignKey flags, controlling which subpackets SelfSign emits.
const (
	FlagMDC = 1 << iota
)

// SignKey is a V4 Ed25519 signing identity: an in-memory keypair plus
// the metadata (creation time) needed to build its own packets and
// signatures. It is the teacher's original generation-and-signing
// type, generalized only where the domain required it (arbitrary
// creation/expiry times instead of a single implicit "now", and an
// EncryptKey parameter for Bind instead of a hardcoded companion
// type). Key generation from a passphrase-derived seed happens in
// cmd/pgpcore, which is where spec section 1's "out of scope beyond
// what message flow consumes" boundary places it; SignKey itself just
// holds whatever 32-byte seed it's given.
type SignKey struct {
	Key     ed25519.PrivateKey
	created int64
	expires int64
}

// NewSignKey builds a SignKey from a 32-byte seed.
func NewSignKey(seed []byte, created int64) *SignKey {
	return &SignKey{Key: ed25519.NewKeyFromSeed(seed), created: created}
}

func (k *SignKey) Created() int64    { return k.created }
func (k *SignKey) SetCreated(t int64) { k.created = t }
func (k *SignKey) Expires() int64    { return k.expires }
func (k *SignKey) SetExpires(t int64) { k.expires = t }

// pub returns the 32-byte Ed25519 public point.
func (k *SignKey) pub() []byte {
	return k.Key.Public().(ed25519.PublicKey)
}

// toKeyPacket builds the generic KeyPacket view of this identity,
// letting SignKey reuse KeyPacket's Fingerprint/KeyID/Serialize
// instead of duplicating RFC 4880 framing a second time.
func (k *SignKey) toKeyPacket(secret bool) *KeyPacket {
	tag := TagPublicKey
	if secret {
		tag = TagSecretKey
	}
	kp := &KeyPacket{Tag: tag, Version: 4, Created: k.created, Algorithm: PubKeyEdDSA, locked: false}
	kp.EdDSA.Point = k.pub()
	kp.EdDSA.Seed = k.Key.Seed()
	return kp
}

// Packet returns the secret-key packet for this identity, unencrypted.
func (k *SignKey) Packet() []byte {
	return k.toKeyPacket(true).Serialize()
}

// PubPacket returns the public-key packet for this identity.
func (k *SignKey) PubPacket() []byte {
	return k.toKeyPacket(false).Serialize()
}

// EncPacket returns the secret-key packet, S2K-encrypted under
// passphrase (AES-256, iterated-and-salted SHA-256, maximum strength),
// for output.
func (k *SignKey) EncPacket(passphrase []byte) ([]byte, error) {
	kp := k.toKeyPacket(true)
	if err := kp.Lock(passphrase); err != nil {
		return nil, err
	}
	return kp.Serialize(), nil
}

// Load parses pkt as a V4 Ed25519 secret-key packet, decrypting it
// with passphrase if it is S2K-protected.
func (k *SignKey) Load(pkt *Packet, passphrase []byte) error {
	kp, err := ParseKeyPacket(pkt)
	if err != nil {
		return err
	}
	if kp.Algorithm != PubKeyEdDSA || !kp.IsSecret() {
		return UnsupportedPacketErr
	}
	if err := kp.Unlock(passphrase); err != nil {
		return err
	}
	k.Key = ed25519.NewKeyFromSeed(kp.EdDSA.Seed)
	k.created = kp.Created
	return nil
}

// Fingerprint is this identity's 20-octet V4 fingerprint.
func (k *SignKey) Fingerprint() []byte {
	return k.toKeyPacket(false).Fingerprint()
}

// KeyID is the last 8 octets of Fingerprint.
func (k *SignKey) KeyID() []byte {
	return k.toKeyPacket(false).KeyID()
}

type subpacket struct {
	kind byte
	body []byte
}

func (s subpacket) encode() []byte {
	out := mpiLenSubpacket(len(s.body) + 1)
	out = append(out, s.kind)
	return append(out, s.body...)
}

// mpiLenSubpacket encodes a subpacket length header, RFC 4880 section
// 5.2.3.1. Subpacket lengths this package ever emits fit in one octet.
func mpiLenSubpacket(n int) []byte {
	if n < 192 {
		return []byte{byte(n)}
	}
	n -= 192
	return []byte{byte(n>>8) + 192, byte(n)}
}

func (k *SignKey) fingerprintSubpacket() subpacket {
	return subpacket{kind: 33, body: append([]byte{4}, k.Fingerprint()...)}
}

// sigInput bundles what sign needs to build a V4 Signature packet
// body: the signature type, the hashed data preceding the trailer, and
// the hashed/unhashed subpacket sets.
type sigInput struct {
	sigType  byte
	data     []byte
	hashed   []subpacket
	unhashed []subpacket
}

func packSubpackets(subs []subpacket) []byte {
	var out []byte
	for _, s := range subs {
		out = append(out, s.encode()...)
	}
	return out
}

// sign builds a complete V4 signature packet body: version, sig type,
// pk/hash algorithm octets, the hashed subpacket area, the RFC 4880
// section 5.2.4 trailer, a two-octet left-16-bits hash preview, and
// the Ed25519 signature MPIs. hashAlg is fixed at SHA-256 to match the
// teacher's original choice for its own identity signatures (the
// pipeline-level Sign operation instead defaults to SHA-512).
func (k *SignKey) sign(in sigInput) []byte {
	hashedArea := packSubpackets(in.hashed)
	packet := []byte{4, in.sigType, PubKeyEdDSA, HashSHA256}
	packet = append(packet, byte(len(hashedArea)>>8), byte(len(hashedArea)))
	packet = append(packet, hashedArea...)
	hashedLen := len(packet)

	hf, _ := newHash(HashSHA256)
	h := hf()
	h.Write(in.data)
	h.Write(packet)
	h.Write(append([]byte{4, 0xff}, marshal32be(uint32(hashedLen))...))
	sigsum := h.Sum(nil)

	unhashedArea := packSubpackets(in.unhashed)
	packet = append(packet, byte(len(unhashedArea)>>8), byte(len(unhashedArea)))
	packet = append(packet, unhashedArea...)
	packet = append(packet, sigsum[0], sigsum[1])

	sig := pkSignEdDSA(k.Key, sigsum)
	packet = append(packet, mpi(sig[:32])...)
	packet = append(packet, mpi(sig[32:])...)
	return serializePacket(TagSignature, packet)
}

// Bind produces a subkey-binding signature (sigtype 0x18) over subkey,
// this identity's encryption counterpart.
func (k *SignKey) Bind(subkey *EncryptKey, when int64) []byte {
	data := keyPrefixed(k.PubPacket())
	data = append(data, keyPrefixed(subkey.PubPacket())...)

	hashed := []subpacket{
		{kind: 2, body: marshal32be(uint32(when))},
		{kind: 27, body: []byte{0x0c}}, // encrypt-communications | encrypt-storage
	}
	return k.sign(sigInput{sigType: 0x18, data: data, hashed: hashed, unhashed: []subpacket{{kind: 16, body: k.KeyID()}}})
}

// SelfSign produces a User ID certification (sigtype 0x13) binding
// userid to this identity, with Key Flags, optional Key Expiration and
// optional Features (MDC) subpackets.
func (k *SignKey) SelfSign(userid *UserID, when int64, flags int) []byte {
	pub := k.PubPacket()
	data := keyPrefixed(pub)
	data = append(data, userid.SignData()...)

	hashed := []subpacket{
		{kind: 2, body: marshal32be(uint32(when))},
		{kind: 27, body: []byte{0x03}},
	}
	if k.expires != 0 {
		hashed = append(hashed, subpacket{kind: 9, body: marshal32be(uint32(k.expires - k.created))})
	}
	if flags&FlagMDC != 0 {
		hashed = append(hashed, subpacket{kind: 30, body: []byte{0x01}})
	}
	hashed = append(hashed, k.fingerprintSubpacket())
	return k.sign(sigInput{sigType: 0x13, data: data, hashed: hashed, unhashed: []subpacket{{kind: 16, body: k.KeyID()}}})
}

// Certify produces a third-party certification (sigtype 0x10) of uid
// belonging to the public key packet bytes in key.
func (k *SignKey) Certify(key, uid []byte, when int64) []byte {
	data := keyPrefixed(key)
	data = append(data, uid...)
	hashed := []subpacket{{kind: 2, body: marshal32be(uint32(when))}}
	return k.sign(sigInput{sigType: 0x10, data: data, hashed: hashed, unhashed: []subpacket{{kind: 16, body: k.KeyID()}}})
}

func keyPrefixed(pubPacket []byte) []byte {
	body := pubPacket[1:]
	bodyLen := len(body)
	// re-derive the declared body length rather than trust pubPacket's
	// own (possibly multi-octet) header, since the hashed "key data"
	// prefix is always the fixed 0x99/16-bit-length form (RFC 4880
	// section 5.2.4), independent of how the packet itself is framed.
	hdr, n := decodeNewFormatLen(pubPacket)
	if n > 0 {
		bodyLen = n
		body = pubPacket[hdr:]
	}
	out := []byte{0x99, byte(bodyLen >> 8), byte(bodyLen)}
	return append(out, body...)
}

// decodeNewFormatLen re-reads the header serializePacket wrote, for
// callers (keyPrefixed) that only have the finished packet bytes.
func decodeNewFormatLen(b []byte) (hdrLen, bodyLen int) {
	if len(b) < 2 {
		return 0, 0
	}
	first := b[1]
	switch {
	case first < 192:
		return 2, int(first)
	case first < 224:
		if len(b) < 3 {
			return 0, 0
		}
		return 3, (int(first)-192)<<8 + int(b[2]) + 192
	case first == 255:
		if len(b) < 6 {
			return 0, 0
		}
		return 6, int(b[2])<<24 | int(b[3])<<16 | int(b[4])<<8 | int(b[5])
	default:
		return 0, 0
	}
}

// Sign produces a detached V4 signature (sigtype 0x00) over src's full
// contents, hashed with SHA-256.
func (k *SignKey) Sign(src io.Reader) ([]byte, error) {
	data, err := ioutil.ReadAll(src)
	if err != nil {
		return nil, wrapErr(KindGeneral, err, "read signed data")
	}
	hashed := []subpacket{{kind: 2, body: marshal32be(uint32(k.created))}}
	return k.sign(sigInput{sigType: 0x00, data: data, hashed: hashed, unhashed: []subpacket{{kind: 16, body: k.KeyID()}}}), nil
}

// fingerprintBytes computes the raw SHA-1 V4 fingerprint of a public
// key packet body directly, without going through KeyPacket. No code
// in this package calls it.
func fingerprintBytes(pubBody []byte) []byte {
	h := sha1.New()
	h.Write([]byte{0x99, byte(len(pubBody) >> 8), byte(len(pubBody))})
	h.Write(pubBody)
	return h.Sum(nil)
}
