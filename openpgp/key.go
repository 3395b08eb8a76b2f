// Key material model (spec section 3): PartialKey groups a primary
// key packet with its identities and subkeys; Key pairs the public and
// secret halves of the same fingerprint. readKeys (component D/E,
// spec section 6) builds these from a parsed packet stream.
package openpgp

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

// Identity is a User ID or User Attribute packet plus the
// certification signatures bound to it.
type Identity struct {
	UserID     *UserID
	Attribute  *UserAttribute
	Signatures []*Signature
}

// Subkey is a subkey packet plus its binding signatures.
type Subkey struct {
	Key        *KeyPacket
	Signatures []*Signature
}

// PartialKey is an ordered packet group: one primary key packet,
// zero or more Identities, zero or more Subkeys (spec section 3).
type PartialKey struct {
	Primary    *KeyPacket
	Identities []*Identity
	Subkeys    []*Subkey
}

// Key pairs the public and secret halves of one key -- either may be
// absent (spec section 3). Both halves, when both present, share a
// fingerprint (invariant 1).
type Key struct {
	Public *PartialKey
	Secret *PartialKey
}

// Fingerprint returns the 20-octet V4 fingerprint shared by both
// halves of k.
func (k *Key) Fingerprint() []byte {
	if k.Public != nil {
		return k.Public.Primary.Fingerprint()
	}
	return k.Secret.Primary.Fingerprint()
}

// KeyID is the last 8 octets of Fingerprint.
func (k *Key) KeyID() []byte {
	fp := k.Fingerprint()
	return fp[len(fp)-8:]
}

// groupPartialKeys walks a flat packet stream and reassembles the
// PartialKey structure spec section 3 describes: a primary key packet
// followed by its identities and subkeys, each identity/subkey
// followed by its own signatures. Packets this function cannot
// attribute to an in-progress group (a Signature before any primary,
// an unparseable key packet) are dropped rather than aborting the
// whole keyring, matching readKeysFromFile's "never throws" contract
// (spec section 6).
func groupPartialKeys(pkts []*Packet) []*PartialKey {
	var out []*PartialKey
	var cur *PartialKey
	var identity *Identity
	var subkey *Subkey

	for _, pkt := range pkts {
		switch pkt.Tag {
		case TagPublicKey, TagSecretKey:
			kp, err := ParseKeyPacket(pkt)
			identity, subkey = nil, nil
			if err != nil {
				cur = nil
				continue
			}
			cur = &PartialKey{Primary: kp}
			out = append(out, cur)
		case TagPublicSubkey, TagSecretSubkey:
			identity = nil
			if cur == nil {
				subkey = nil
				continue
			}
			kp, err := ParseKeyPacket(pkt)
			if err != nil {
				subkey = nil
				continue
			}
			subkey = &Subkey{Key: kp}
			cur.Subkeys = append(cur.Subkeys, subkey)
		case TagUserID:
			subkey = nil
			if cur == nil {
				identity = nil
				continue
			}
			uid, err := ParseUserID(pkt)
			if err != nil {
				identity = nil
				continue
			}
			identity = &Identity{UserID: uid}
			cur.Identities = append(cur.Identities, identity)
		case TagUserAttribute:
			subkey = nil
			if cur == nil {
				identity = nil
				continue
			}
			attr, err := ParseUserAttribute(pkt)
			if err != nil {
				identity = nil
				continue
			}
			identity = &Identity{Attribute: attr}
			cur.Identities = append(cur.Identities, identity)
		case TagSignature:
			sig, err := ParseSignature(pkt)
			if err != nil {
				continue
			}
			switch {
			case subkey != nil:
				subkey.Signatures = append(subkey.Signatures, sig)
			case identity != nil:
				identity.Signatures = append(identity.Signatures, sig)
			}
		default:
			// Trust, Marker and anything else readKeys doesn't model.
		}
	}
	return out
}

// derivePublic builds the public-only PartialKey view of a secret
// group, reusing its identities and signatures (they're signed over
// public data regardless of which half parsed them).
func derivePublic(pk *PartialKey) *PartialKey {
	pub := &PartialKey{Primary: pk.Primary.PublicOnly(), Identities: pk.Identities}
	for _, sk := range pk.Subkeys {
		pub.Subkeys = append(pub.Subkeys, &Subkey{Key: sk.Key.PublicOnly(), Signatures: sk.Signatures})
	}
	return pub
}

// ReadKeys parses a binary or armored keyring (spec section 6) into
// the list of Keys it contains, merging public and secret groups that
// share a fingerprint. Malformed or empty input yields a nil slice,
// never an error -- public operations report failures through the
// error channel, not by throwing, and a keyring with no parseable
// packets is simply empty (spec section 6, section 7).
func ReadKeys(data []byte) []*Key {
	block, err := FirstBlock(data)
	if err != nil {
		return nil
	}
	groups := groupPartialKeys(ParseStream(block))

	order := make([]string, 0, len(groups))
	byFingerprint := make(map[string]*Key, len(groups))
	for _, pk := range groups {
		fp := string(pk.Primary.Fingerprint())
		k, ok := byFingerprint[fp]
		if !ok {
			k = &Key{}
			byFingerprint[fp] = k
			order = append(order, fp)
		}
		if pk.Primary.IsSecret() {
			k.Secret = pk
			if k.Public == nil {
				k.Public = derivePublic(pk)
			}
		} else {
			k.Public = pk
		}
	}

	if len(order) == 0 {
		return nil
	}
	out := make([]*Key, 0, len(order))
	for _, fp := range order {
		out = append(out, byFingerprint[fp])
	}
	return out
}

// ReadKeysFromFile loads a keyring from path (spec section 6):
// expands a leading "~", refuses to read a directory, and returns an
// empty key list -- never an error -- for a missing, empty or
// malformed file.
func ReadKeysFromFile(path string) []*Key {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil
	}
	return ReadKeys(data)
}
