package openpgp

import (
	"bytes"
	"crypto/cipher"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/ed25519"
)

// Curve OIDs this facade recognizes, RFC 4880bis section 9.2.
var (
	oidEd25519     = []byte{0x2b, 0x06, 0x01, 0x04, 0x01, 0xda, 0x47, 0x0f, 0x01}
	oidCurve25519  = []byte{0x2b, 0x06, 0x01, 0x04, 0x01, 0x97, 0x55, 0x01, 0x05, 0x01}
)

// KeyPacket is a parsed Public-Key, Public-Subkey, Secret-Key or
// Secret-Subkey packet (RFC 4880 sections 5.5.1-5.5.2), generalized
// over the public-key algorithms spec section 4.A names. Unlike the
// teacher's algorithm-specific SignKey/EncryptKey, a KeyPacket can
// represent any key this codec can parse -- including ones this
// module cannot itself generate, like RSA-1024 keys from a decades-old
// keyring -- which is what readKeys (component D/E) needs.
type KeyPacket struct {
	Tag       int
	Version   int
	Created   int64
	Algorithm byte

	RSA struct {
		N, E       *big.Int
		D, P, Q, U *big.Int
	}
	DSA struct {
		P, Q, G, Y *big.Int
		X          *big.Int
	}
	Elgamal struct {
		P, G, Y *big.Int
		X       *big.Int
	}
	EdDSA struct {
		Point []byte
		Seed  []byte
	}
	ECDH struct {
		Point   []byte
		KDFHash byte
		KDFSym  byte
		Scalar  []byte
	}

	locked    bool
	s2kUsage  byte
	s2kSymAlg byte
	s2k       *s2kSpec
	iv        []byte
	encSecret []byte
}

// IsSecret reports whether this packet carries (possibly locked)
// secret material.
func (k *KeyPacket) IsSecret() bool {
	return k.Tag == TagSecretKey || k.Tag == TagSecretSubkey
}

// IsSubkey reports whether this packet is bound to a primary key
// rather than being one itself.
func (k *KeyPacket) IsSubkey() bool {
	return k.Tag == TagPublicSubkey || k.Tag == TagSecretSubkey
}

// Locked reports whether the secret material requires a passphrase
// before Sign/DecryptSessionKey can use it.
func (k *KeyPacket) Locked() bool {
	return k.IsSecret() && k.locked
}

func secretMPICount(alg byte) int {
	switch alg {
	case PubKeyRSA, PubKeyRSAEncrypt, PubKeyRSASign:
		return 4
	case PubKeyDSA, PubKeyElgamal, PubKeyEdDSA, PubKeyECDH:
		return 1
	default:
		return 0
	}
}

func leftPad(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

func concatBytes(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// ParseKeyPacket interprets a generic Packet as a V4 key packet.
func ParseKeyPacket(pkt *Packet) (*KeyPacket, error) {
	switch pkt.Tag {
	case TagPublicKey, TagPublicSubkey, TagSecretKey, TagSecretSubkey:
	default:
		return nil, ErrInvalidMessage
	}
	body := pkt.Body
	if len(body) < 6 || body[0] != 4 {
		return nil, UnsupportedPacketErr
	}
	k := &KeyPacket{Tag: pkt.Tag, Version: 4}
	k.Created = int64(binary.BigEndian.Uint32(body[1:5]))
	k.Algorithm = body[5]
	rest := body[6:]

	switch k.Algorithm {
	case PubKeyRSA, PubKeyRSAEncrypt, PubKeyRSASign:
		n, r := mpiDecodeBig(rest)
		e, r2 := mpiDecodeBig(r)
		if n == nil || e == nil {
			return nil, ErrInvalidMessage
		}
		k.RSA.N, k.RSA.E = n, e
		rest = r2
	case PubKeyDSA:
		p, r := mpiDecodeBig(rest)
		q, r2 := mpiDecodeBig(r)
		g, r3 := mpiDecodeBig(r2)
		y, r4 := mpiDecodeBig(r3)
		if p == nil || q == nil || g == nil || y == nil {
			return nil, ErrInvalidMessage
		}
		k.DSA.P, k.DSA.Q, k.DSA.G, k.DSA.Y = p, q, g, y
		rest = r4
	case PubKeyElgamal:
		p, r := mpiDecodeBig(rest)
		g, r2 := mpiDecodeBig(r)
		y, r3 := mpiDecodeBig(r2)
		if p == nil || g == nil || y == nil {
			return nil, ErrInvalidMessage
		}
		k.Elgamal.P, k.Elgamal.G, k.Elgamal.Y = p, g, y
		rest = r3
	case PubKeyEdDSA:
		point, r, err := parseOIDWrappedPoint(rest, oidEd25519)
		if err != nil {
			return nil, err
		}
		k.EdDSA.Point = point
		rest = r
	case PubKeyECDH:
		point, r, err := parseOIDWrappedPoint(rest, oidCurve25519)
		if err != nil {
			return nil, err
		}
		if len(r) < 4 || r[0] != 3 || r[1] != 1 {
			return nil, ErrInvalidMessage
		}
		k.ECDH.Point = point
		k.ECDH.KDFHash = r[2]
		k.ECDH.KDFSym = r[3]
		rest = r[4:]
	default:
		return nil, UnsupportedPacketErr
	}

	if !k.IsSecret() {
		return k, nil
	}
	if len(rest) < 1 {
		return nil, ErrInvalidMessage
	}
	k.s2kUsage = rest[0]
	rest = rest[1:]
	n := secretMPICount(k.Algorithm)

	switch k.s2kUsage {
	case 0:
		mpisRaw, values, tail, err := parseSecretMPIs(rest, n)
		if err != nil {
			return nil, err
		}
		if len(tail) != 2 || checksum(mpisRaw) != binary.BigEndian.Uint16(tail) {
			return nil, ErrInvalidMessage
		}
		k.assignSecret(values)
		k.locked = false
	case 254, 255:
		if len(rest) < 1 {
			return nil, ErrInvalidMessage
		}
		k.s2kSymAlg = rest[0]
		spec, r, err := parseS2KSpec(rest[1:])
		if err != nil {
			return nil, err
		}
		bs := blockSizeOf(k.s2kSymAlg)
		if bs == 0 || len(r) < bs {
			return nil, UnsupportedPacketErr
		}
		k.s2k = spec
		k.iv = append([]byte{}, r[:bs]...)
		k.encSecret = append([]byte{}, r[bs:]...)
		k.locked = true
	default:
		return nil, UnsupportedPacketErr
	}
	return k, nil
}

func parseOIDWrappedPoint(b []byte, oid []byte) (point, rest []byte, err error) {
	if len(b) < 1 {
		return nil, b, ErrInvalidMessage
	}
	oidLen := int(b[0])
	if len(b) < 1+oidLen {
		return nil, b, ErrInvalidMessage
	}
	if !bytes.Equal(b[1:1+oidLen], oid) {
		return nil, b, UnsupportedPacketErr
	}
	raw, rest := mpiDecode(b[1+oidLen:], 0)
	if raw == nil || len(raw) < 1 || raw[0] != 0x40 {
		return nil, b, ErrInvalidMessage
	}
	return raw[1:], rest, nil
}

func parseS2KSpec(b []byte) (*s2kSpec, []byte, error) {
	if len(b) < 1 {
		return nil, b, ErrInvalidMessage
	}
	mode := b[0]
	b = b[1:]
	spec := &s2kSpec{mode: mode}
	switch mode {
	case s2kSimple:
		if len(b) < 1 {
			return nil, b, ErrInvalidMessage
		}
		spec.hash = b[0]
		b = b[1:]
	case s2kSalted:
		if len(b) < 9 {
			return nil, b, ErrInvalidMessage
		}
		spec.hash = b[0]
		spec.salt = append([]byte{}, b[1:9]...)
		b = b[9:]
	case s2kIteratedSalted:
		if len(b) < 10 {
			return nil, b, ErrInvalidMessage
		}
		spec.hash = b[0]
		spec.salt = append([]byte{}, b[1:9]...)
		spec.count = b[9]
		b = b[10:]
	default:
		return nil, b, UnsupportedPacketErr
	}
	return spec, b, nil
}

func serializeS2KSpec(spec *s2kSpec) []byte {
	switch spec.mode {
	case s2kSimple:
		return []byte{s2kSimple, spec.hash}
	case s2kSalted:
		return concatBytes([]byte{s2kSalted, spec.hash}, spec.salt)
	case s2kIteratedSalted:
		return concatBytes([]byte{s2kIteratedSalted, spec.hash}, spec.salt, []byte{spec.count})
	default:
		return nil
	}
}

// parseSecretMPIs reads n sequential MPIs from the front of data,
// returning their concatenated raw encodings (length prefixes
// included, the span the checksum/SHA-1 check covers), their decoded
// values, and whatever followed.
func parseSecretMPIs(data []byte, n int) (raw []byte, values [][]byte, rest []byte, err error) {
	cur := data
	for i := 0; i < n; i++ {
		val, r := mpiDecode(cur, 0)
		if val == nil {
			return nil, nil, nil, ErrInvalidMessage
		}
		values = append(values, val)
		cur = r
	}
	consumed := len(data) - len(cur)
	return data[:consumed], values, cur, nil
}

func (k *KeyPacket) assignSecret(values [][]byte) {
	switch k.Algorithm {
	case PubKeyRSA, PubKeyRSAEncrypt, PubKeyRSASign:
		k.RSA.D = new(big.Int).SetBytes(values[0])
		k.RSA.P = new(big.Int).SetBytes(values[1])
		k.RSA.Q = new(big.Int).SetBytes(values[2])
		k.RSA.U = new(big.Int).SetBytes(values[3])
	case PubKeyDSA:
		k.DSA.X = new(big.Int).SetBytes(values[0])
	case PubKeyElgamal:
		k.Elgamal.X = new(big.Int).SetBytes(values[0])
	case PubKeyEdDSA:
		k.EdDSA.Seed = leftPad(values[0], 32)
	case PubKeyECDH:
		k.ECDH.Scalar = leftPad(values[0], 32)
	}
}

// Unlock decrypts the secret material using passphrase, a no-op if
// the key is already unlocked. If passphrase is nil and the key is
// locked, it reports ErrPassphraseRequired without attempting
// decryption; a wrong, non-nil passphrase reports
// ErrPassphraseIncorrect once its S2K integrity check fails.
func (k *KeyPacket) Unlock(passphrase []byte) error {
	if !k.Locked() {
		return nil
	}
	if passphrase == nil {
		return ErrPassphraseRequired
	}
	keySize := keySizeOf(k.s2kSymAlg)
	if keySize == 0 {
		return ErrCryptoUnavailable
	}
	key, err := deriveKey(k.s2k, passphrase, keySize)
	if err != nil {
		return err
	}
	block, err := newBlockCipher(k.s2kSymAlg, key)
	if err != nil {
		return err
	}
	plain := make([]byte, len(k.encSecret))
	cipher.NewCFBDecrypter(block, k.iv).XORKeyStream(plain, k.encSecret)

	n := secretMPICount(k.Algorithm)
	mpisRaw, values, tail, err := parseSecretMPIs(plain, n)
	if err != nil {
		return ErrPassphraseIncorrect
	}
	switch k.s2kUsage {
	case 254:
		if len(tail) != 20 || !checkSHA1(mpisRaw, tail) {
			return ErrPassphraseIncorrect
		}
	case 255:
		if len(tail) != 2 || checksum(mpisRaw) != binary.BigEndian.Uint16(tail) {
			return ErrPassphraseIncorrect
		}
	}
	k.assignSecret(values)
	k.locked = false
	return nil
}

func (k *KeyPacket) publicBody() []byte {
	body := make([]byte, 0, 64)
	body = append(body, 4)
	body = append(body, marshal32be(uint32(k.Created))...)
	body = append(body, k.Algorithm)
	switch k.Algorithm {
	case PubKeyRSA, PubKeyRSAEncrypt, PubKeyRSASign:
		body = append(body, mpiBig(k.RSA.N)...)
		body = append(body, mpiBig(k.RSA.E)...)
	case PubKeyDSA:
		body = append(body, mpiBig(k.DSA.P)...)
		body = append(body, mpiBig(k.DSA.Q)...)
		body = append(body, mpiBig(k.DSA.G)...)
		body = append(body, mpiBig(k.DSA.Y)...)
	case PubKeyElgamal:
		body = append(body, mpiBig(k.Elgamal.P)...)
		body = append(body, mpiBig(k.Elgamal.G)...)
		body = append(body, mpiBig(k.Elgamal.Y)...)
	case PubKeyEdDSA:
		body = append(body, byte(len(oidEd25519)))
		body = append(body, oidEd25519...)
		body = append(body, mpi(append([]byte{0x40}, k.EdDSA.Point...))...)
	case PubKeyECDH:
		body = append(body, byte(len(oidCurve25519)))
		body = append(body, oidCurve25519...)
		body = append(body, mpi(append([]byte{0x40}, k.ECDH.Point...))...)
		body = append(body, 3, 1, k.ECDH.KDFHash, k.ECDH.KDFSym)
	}
	return body
}

func (k *KeyPacket) secretMPIEncoding() []byte {
	switch k.Algorithm {
	case PubKeyRSA, PubKeyRSAEncrypt, PubKeyRSASign:
		return concatBytes(mpiBig(k.RSA.D), mpiBig(k.RSA.P), mpiBig(k.RSA.Q), mpiBig(k.RSA.U))
	case PubKeyDSA:
		return mpiBig(k.DSA.X)
	case PubKeyElgamal:
		return mpiBig(k.Elgamal.X)
	case PubKeyEdDSA:
		return mpi(k.EdDSA.Seed)
	case PubKeyECDH:
		return mpi(k.ECDH.Scalar)
	}
	return nil
}

// Serialize emits this key packet. Locked secret keys are re-emitted
// with their original S2K-encrypted block; unlocked ones are emitted
// unencrypted (usage 0) -- callers that need passphrase protection on
// output call Lock first.
func (k *KeyPacket) Serialize() []byte {
	body := k.publicBody()
	if k.IsSecret() {
		if k.locked {
			body = append(body, k.s2kUsage, k.s2kSymAlg)
			body = append(body, serializeS2KSpec(k.s2k)...)
			body = append(body, k.iv...)
			body = append(body, k.encSecret...)
		} else {
			secretRaw := k.secretMPIEncoding()
			body = append(body, 0)
			body = append(body, secretRaw...)
			body = append(body, marshal16be(checksum(secretRaw))...)
		}
	}
	return serializePacket(k.Tag, body)
}

// Lock encrypts the (unlocked) secret material under passphrase using
// the maximum-strength iterated-and-salted S2K, AES-256 and a SHA-1
// integrity tag (usage 254) -- the same protection level the teacher's
// SignKey.EncPacket uses.
func (k *KeyPacket) Lock(passphrase []byte) error {
	if !k.IsSecret() || k.locked {
		return nil
	}
	salt, err := randomBytes(8)
	if err != nil {
		return err
	}
	iv, err := randomBytes(blockSizeOf(CipherAES256))
	if err != nil {
		return err
	}
	spec := &s2kSpec{mode: s2kIteratedSalted, hash: HashSHA256, salt: salt, count: s2kCount}
	key, err := deriveKey(spec, passphrase, keySizeOf(CipherAES256))
	if err != nil {
		return err
	}
	block, err := newBlockCipher(CipherAES256, key)
	if err != nil {
		return err
	}
	secretRaw := k.secretMPIEncoding()
	mac := sha1.New()
	mac.Write(secretRaw)
	plain := append(append([]byte{}, secretRaw...), mac.Sum(nil)...)
	enc := make([]byte, len(plain))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(enc, plain)

	k.s2kUsage = 254
	k.s2kSymAlg = CipherAES256
	k.s2k = spec
	k.iv = iv
	k.encSecret = enc
	k.locked = true
	return nil
}

// Fingerprint is the 20-octet SHA-1 V4 fingerprint of the public
// portion of this key packet (RFC 4880 section 12.2).
func (k *KeyPacket) Fingerprint() []byte {
	pub := k.publicBody()
	h := sha1.New()
	h.Write([]byte{0x99, byte(len(pub) >> 8), byte(len(pub))})
	h.Write(pub)
	return h.Sum(nil)
}

// KeyID is the last 8 octets of Fingerprint (spec section 3).
func (k *KeyPacket) KeyID() []byte {
	fp := k.Fingerprint()
	return fp[len(fp)-8:]
}

// NewRSAKeyPacket adapts an already-generated *rsa.PrivateKey into a
// KeyPacket. This is key-MATERIAL ADAPTATION, not key generation --
// key generation proper is out of spec section 1's scope beyond what
// message flow consumes, and callers (such as this package's tests)
// call rsa.GenerateKey themselves.
func NewRSAKeyPacket(priv *rsa.PrivateKey, created int64, subkey bool) *KeyPacket {
	tag := TagSecretKey
	if subkey {
		tag = TagSecretSubkey
	}
	k := &KeyPacket{Tag: tag, Version: 4, Created: created, Algorithm: PubKeyRSA}
	k.RSA.N = priv.PublicKey.N
	k.RSA.E = big.NewInt(int64(priv.PublicKey.E))
	k.RSA.D = priv.D
	k.RSA.P = priv.Primes[0]
	k.RSA.Q = priv.Primes[1]
	k.RSA.U = new(big.Int).ModInverse(priv.Primes[0], priv.Primes[1])
	return k
}

// PublicOnly returns a copy of k stripped of secret material, with the
// Public tag (6 or 14) in place of the Secret one.
func (k *KeyPacket) PublicOnly() *KeyPacket {
	pub := &KeyPacket{Version: k.Version, Created: k.Created, Algorithm: k.Algorithm, RSA: k.RSA, DSA: k.DSA, Elgamal: k.Elgamal}
	pub.EdDSA.Point = k.EdDSA.Point
	pub.ECDH.Point, pub.ECDH.KDFHash, pub.ECDH.KDFSym = k.ECDH.Point, k.ECDH.KDFHash, k.ECDH.KDFSym
	if k.IsSubkey() {
		pub.Tag = TagPublicSubkey
	} else {
		pub.Tag = TagPublicKey
	}
	return pub
}

// EncryptSessionKey wraps plaintext (symAlg | sessionKey | checksum)
// under this key's public parameters, for a PKESK packet addressed to
// it.
func (k *KeyPacket) EncryptSessionKey(plaintext []byte) (mpis [][]byte, err error) {
	switch k.Algorithm {
	case PubKeyRSA, PubKeyRSAEncrypt:
		pub := &rsa.PublicKey{N: k.RSA.N, E: int(k.RSA.E.Int64())}
		c, err := pkEncryptRSA(pub, plaintext)
		if err != nil {
			return nil, err
		}
		return [][]byte{mpi(c)}, nil
	case PubKeyECDH:
		ephPub, wrapped, err := ecdhEncrypt(k.ECDH.Point, k.Fingerprint(), plaintext)
		if err != nil {
			return nil, err
		}
		return [][]byte{mpi(append([]byte{0x40}, ephPub...)), mpi(wrapped)}, nil
	default:
		return nil, ErrCryptoUnavailable
	}
}

// DecryptSessionKey reverses EncryptSessionKey using this key's
// (unlocked) secret material.
func (k *KeyPacket) DecryptSessionKey(mpis [][]byte) ([]byte, error) {
	if k.Locked() {
		return nil, ErrPassphraseRequired
	}
	switch k.Algorithm {
	case PubKeyRSA, PubKeyRSAEncrypt, PubKeyRSASign:
		if len(mpis) != 1 {
			return nil, ErrInvalidMessage
		}
		priv := &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{N: k.RSA.N, E: int(k.RSA.E.Int64())},
			D:         k.RSA.D,
			Primes:    []*big.Int{k.RSA.P, k.RSA.Q},
		}
		priv.Precompute()
		return pkDecryptRSA(priv, mpis[0])
	case PubKeyECDH:
		if len(mpis) != 2 || len(mpis[0]) < 1 || mpis[0][0] != 0x40 {
			return nil, ErrInvalidMessage
		}
		return ecdhDecrypt(k.ECDH.Scalar, mpis[0][1:], k.Fingerprint(), mpis[1])
	default:
		return nil, ErrCryptoUnavailable
	}
}

// Sign produces the MPI list for a V4 signature over digest.
func (k *KeyPacket) Sign(hashAlg byte, digest []byte) ([][]byte, error) {
	if k.Locked() {
		return nil, ErrPassphraseRequired
	}
	switch k.Algorithm {
	case PubKeyRSA, PubKeyRSASign:
		priv := &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{N: k.RSA.N, E: int(k.RSA.E.Int64())},
			D:         k.RSA.D,
			Primes:    []*big.Int{k.RSA.P, k.RSA.Q},
		}
		priv.Precompute()
		sig, err := pkSignRSA(priv, hashAlg, digest)
		if err != nil {
			return nil, err
		}
		return [][]byte{mpi(sig)}, nil
	case PubKeyEdDSA:
		priv := ed25519.NewKeyFromSeed(k.EdDSA.Seed)
		sig := pkSignEdDSA(priv, digest)
		return [][]byte{mpi(sig[:32]), mpi(sig[32:])}, nil
	default:
		return nil, ErrCryptoUnavailable
	}
}

// Verify checks a V4 signature's MPI list over digest.
func (k *KeyPacket) Verify(hashAlg byte, digest []byte, mpis [][]byte) error {
	switch k.Algorithm {
	case PubKeyRSA, PubKeyRSASign:
		if len(mpis) != 1 {
			return ErrInvalidSignature
		}
		pub := &rsa.PublicKey{N: k.RSA.N, E: int(k.RSA.E.Int64())}
		return pkVerifyRSA(pub, hashAlg, digest, mpis[0])
	case PubKeyEdDSA:
		if len(mpis) != 2 {
			return ErrInvalidSignature
		}
		sig := concatBytes(leftPad(mpis[0], 32), leftPad(mpis[1], 32))
		return pkVerifyEdDSA(ed25519.PublicKey(k.EdDSA.Point), digest, sig)
	default:
		return ErrCryptoUnavailable
	}
}
