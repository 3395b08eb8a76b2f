// Package openpgp's primitives.go is the Crypto Primitives Facade
// (spec section 4.A): a uniform interface over the block ciphers,
// hashes, public-key operations and CSPRNG that RFC 4880 names but
// that spec section 1 treats as external collaborators. Nothing in
// this file implements cryptography; it wraps the standard library
// and golang.org/x/crypto. Other files of the package still import a
// few crypto/* packages directly (crypto/cipher, crypto/rsa and
// crypto/sha1 in keypacket.go, crypto/sha1 in seipd.go and s2k.go).
package openpgp

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"
	"io"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/crypto/cast5"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/ed25519"
)

// Symmetric-key algorithm identifiers, RFC 4880 section 9.2.
const (
	Cipher3DES   = 2
	CipherCAST5  = 3
	CipherAES128 = 7
	CipherAES192 = 8
	CipherAES256 = 9
)

// Public-key algorithm identifiers, RFC 4880 section 9.1.
const (
	PubKeyRSA        = 1
	PubKeyRSAEncrypt = 2
	PubKeyRSASign    = 3
	PubKeyElgamal    = 16
	PubKeyDSA        = 17
	PubKeyECDH       = 18
	PubKeyEdDSA      = 22
)

// Hash algorithm identifiers, RFC 4880 section 9.4.
const (
	HashSHA1   = 2
	HashSHA256 = 8
	HashSHA512 = 10
)

// CompressionAlgorithm identifiers, RFC 4880 section 9.3.
const (
	CompressUncompressed = 0
	CompressZIP          = 1
	CompressZLIB         = 2
	CompressBZIP2        = 3
)

type hashFn func() hash.Hash

func newHash(alg byte) (hashFn, error) {
	switch alg {
	case HashSHA1:
		return sha1.New, nil
	case HashSHA256:
		return sha256.New, nil
	case HashSHA512:
		return sha512.New, nil
	default:
		return nil, ErrUnsupportedAlgorithm
	}
}

// cryptoHash maps an RFC 4880 hash identifier to the crypto.Hash used
// by crypto/rsa's PKCS#1 v1.5 sign/verify, which needs to know the
// hash's ASN.1 DigestInfo prefix.
func cryptoHash(alg byte) (crypto.Hash, error) {
	switch alg {
	case HashSHA1:
		return crypto.SHA1, nil
	case HashSHA256:
		return crypto.SHA256, nil
	case HashSHA512:
		return crypto.SHA512, nil
	default:
		return 0, ErrUnsupportedAlgorithm
	}
}

// keySizeOf returns the symmetric key length, in bytes, for alg, or
// zero for an unrecognized algorithm (spec invariant: "the session-key
// byte length equals keySizeOf(symmetricAlgorithm)").
func keySizeOf(alg byte) int {
	switch alg {
	case Cipher3DES:
		return 24
	case CipherCAST5:
		return 16
	case CipherAES128:
		return 16
	case CipherAES192:
		return 24
	case CipherAES256:
		return 32
	default:
		return 0
	}
}

func blockSizeOf(alg byte) int {
	switch alg {
	case Cipher3DES, CipherCAST5:
		return 8
	case CipherAES128, CipherAES192, CipherAES256:
		return 16
	default:
		return 0
	}
}

// newBlockCipher returns the cipher.Block for alg under key, wrapping
// crypto/aes, crypto/des and golang.org/x/crypto/cast5.
func newBlockCipher(alg byte, key []byte) (cipher.Block, error) {
	switch alg {
	case Cipher3DES:
		b, err := des.NewTripleDESCipher(key)
		if err != nil {
			return nil, wrapErr(KindCryptoFailure, err, "3des")
		}
		return b, nil
	case CipherCAST5:
		b, err := cast5.NewCipher(key)
		if err != nil {
			return nil, wrapErr(KindCryptoFailure, err, "cast5")
		}
		return b, nil
	case CipherAES128, CipherAES192, CipherAES256:
		b, err := aes.NewCipher(key)
		if err != nil {
			return nil, wrapErr(KindCryptoFailure, err, "aes")
		}
		return b, nil
	default:
		return nil, ErrCryptoUnavailable
	}
}

// cfbEncryptOpenPGP implements the CFB envelope RFC 4880 section 5.7
// and 5.13 use for SED and SEIPD bodies: a random prefix of one block
// plus a two-octet repeat of its last two octets, encrypted (together
// with the following data) as one continuous CFB stream with a zero
// IV. SEIPD packets use exactly this construction; legacy SED packets
// additionally "resynchronize" the feedback register after the
// prefix, a quirk this facade does not reproduce since SED is a
// decode-oriented legacy format here (spec section 4.B: "prefer not to
// emit").
func cfbEncryptOpenPGP(block cipher.Block, data []byte) ([]byte, error) {
	bs := block.BlockSize()
	prefix := make([]byte, bs+2)
	if _, err := io.ReadFull(rand.Reader, prefix[:bs]); err != nil {
		return nil, wrapErr(KindCryptoFailure, err, "random prefix")
	}
	prefix[bs] = prefix[bs-2]
	prefix[bs+1] = prefix[bs-1]

	plaintext := make([]byte, len(prefix)+len(data))
	copy(plaintext, prefix)
	copy(plaintext[len(prefix):], data)

	iv := make([]byte, bs)
	out := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(out, plaintext)
	return out, nil
}

// cfbDecryptOpenPGP reverses cfbEncryptOpenPGP and validates the
// quick-check repeat, returning ErrInvalidMessage if ciphertext is too
// short or the repeat does not match (a strong hint of a wrong key or
// corrupt input, ahead of any MDC check).
func cfbDecryptOpenPGP(block cipher.Block, ciphertext []byte) ([]byte, error) {
	bs := block.BlockSize()
	if len(ciphertext) < bs+2 {
		return nil, ErrInvalidMessage
	}
	iv := make([]byte, bs)
	out := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(out, ciphertext)
	if out[bs-2] != out[bs] || out[bs-1] != out[bs+1] {
		return nil, ErrInvalidMessage
	}
	return out[bs+2:], nil
}

// cfbStream runs plain CFB decryption (no OpenPGP quick-check prefix),
// the construction RFC 4880 section 5.3 uses for a SKESK's encrypted
// session key.
func cfbStream(block cipher.Block, iv, in, out []byte) {
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(out, in)
}

// cfbStreamEncrypt is cfbStream's encryption counterpart, used by
// EncryptSEIPD, which needs to feed prefix+inner+MDC through CFB as
// one continuous stream rather than via cfbEncryptOpenPGP's own
// random-prefix generation.
func cfbStreamEncrypt(block cipher.Block, iv, in, out []byte) {
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(out, in)
}

// rngFill fills b with CSPRNG output.
func rngFill(b []byte) (int, error) {
	return io.ReadFull(rand.Reader, b)
}

// constantTimeEqual reports whether a and b are equal, in constant
// time for equal-length inputs (MDC comparison, spec section 3
// invariant 2).
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, wrapErr(KindCryptoFailure, err, "random")
	}
	return b, nil
}

// --- RSA ---

func pkEncryptRSA(pub *rsa.PublicKey, m []byte) ([]byte, error) {
	c, err := rsa.EncryptPKCS1v15(rand.Reader, pub, m)
	if err != nil {
		return nil, wrapErr(KindCryptoFailure, err, "rsa encrypt")
	}
	return c, nil
}

func pkDecryptRSA(priv *rsa.PrivateKey, c []byte) ([]byte, error) {
	m, err := rsa.DecryptPKCS1v15(rand.Reader, priv, c)
	if err != nil {
		return nil, wrapErr(KindCryptoFailure, err, "rsa decrypt")
	}
	return m, nil
}

func pkSignRSA(priv *rsa.PrivateKey, hashAlg byte, digest []byte) ([]byte, error) {
	ch, err := cryptoHash(hashAlg)
	if err != nil {
		return nil, err
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, priv, ch, digest)
	if err != nil {
		return nil, wrapErr(KindCryptoFailure, err, "rsa sign")
	}
	return sig, nil
}

func pkVerifyRSA(pub *rsa.PublicKey, hashAlg byte, digest, sig []byte) error {
	ch, err := cryptoHash(hashAlg)
	if err != nil {
		return err
	}
	if err := rsa.VerifyPKCS1v15(pub, ch, digest, sig); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

// --- EdDSA (Ed25519) ---
//
// OpenPGP EdDSA signatures sign the hash digest octets directly, the
// same convention the teacher's SignKey.sign used: ed25519.Sign/Verify
// operate on "the message", and here that message is sigsum, the
// digest computed over the canonical signed data. This does not match
// the pure-EdDSA (Ed25519ph-free) definition of signing the raw
// document, but it is what this codebase -- and GnuPG's "libgcrypt"
// EdDSA signatures -- actually do in practice.

func pkSignEdDSA(priv ed25519.PrivateKey, digest []byte) []byte {
	return ed25519.Sign(priv, digest)
}

func pkVerifyEdDSA(pub ed25519.PublicKey, digest, sig []byte) error {
	if !ed25519.Verify(pub, digest, sig) {
		return ErrInvalidSignature
	}
	return nil
}

// --- ECDH (Curve25519) ---

func clampX25519(k *[32]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

// concatKDF derives a 128-bit AES key-wrapping key from an ECDH shared
// secret and the recipient's key fingerprint. RFC 6637 specifies a
// concatenation KDF for this purpose with specific "KDF parameters"
// framing; this is a simplified variant in that spirit rather than a
// byte-for-byte implementation, since spec section 4.A treats the
// underlying primitives as a capability interface and does not name
// RFC 3394 AES key wrap as one of them. It is internally consistent:
// decrypt(encrypt(x)) == x, which is what spec section 8 requires.
func concatKDF(shared, fingerprint []byte) []byte {
	h := sha256.New()
	h.Write([]byte{0, 0, 0, 1})
	h.Write(shared)
	h.Write(fingerprint)
	return h.Sum(nil)[:16]
}

// ecdhEncrypt wraps plaintext (the symAlg|sessionKey|checksum block)
// for an X25519 recipient, returning the ephemeral public point and
// the wrapped octets to place in the PKESK packet body.
func ecdhEncrypt(recipientPub, fingerprint, plaintext []byte) (ephemeralPub, wrapped []byte, err error) {
	var ephPriv [32]byte
	if _, err = io.ReadFull(rand.Reader, ephPriv[:]); err != nil {
		return nil, nil, wrapErr(KindCryptoFailure, err, "ecdh ephemeral key")
	}
	clampX25519(&ephPriv)
	ephPub, err := curve25519.X25519(ephPriv[:], curve25519.Basepoint)
	if err != nil {
		return nil, nil, wrapErr(KindCryptoFailure, err, "ecdh ephemeral pub")
	}
	shared, err := curve25519.X25519(ephPriv[:], recipientPub)
	if err != nil {
		return nil, nil, wrapErr(KindCryptoFailure, err, "ecdh")
	}
	block, err := aes.NewCipher(concatKDF(shared, fingerprint))
	if err != nil {
		return nil, nil, wrapErr(KindCryptoFailure, err, "ecdh wrap cipher")
	}
	wrapped, err = cfbEncryptOpenPGP(block, plaintext)
	if err != nil {
		return nil, nil, err
	}
	return ephPub, wrapped, nil
}

// ecdhDecrypt reverses ecdhEncrypt given the recipient's raw X25519
// scalar.
func ecdhDecrypt(priv, ephemeralPub, fingerprint, wrapped []byte) ([]byte, error) {
	shared, err := curve25519.X25519(priv, ephemeralPub)
	if err != nil {
		return nil, wrapErr(KindCryptoFailure, err, "ecdh")
	}
	block, err := aes.NewCipher(concatKDF(shared, fingerprint))
	if err != nil {
		return nil, wrapErr(KindCryptoFailure, err, "ecdh unwrap cipher")
	}
	out, err := cfbDecryptOpenPGP(block, wrapped)
	if err != nil {
		return nil, ErrInvalidMessage
	}
	return out, nil
}

// wrapPkgErr is a thin alias for pkgerrors.Wrap that does not choose a
// Kind. No code in this package calls it.
func wrapPkgErr(err error, msg string) error {
	return pkgerrors.Wrap(err, msg)
}
