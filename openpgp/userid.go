package openpgp

// UserID is a parsed User ID packet (tag 13, RFC 4880 section 5.11):
// a UTF-8 string identifying the owner of a primary key, typically
// "Name (Comment) <email>". Generalized from the teacher's fork-only
// UserID type (other_examples' WhiteBlackGoose fork carries the
// SignData/Subpackets shape this package reuses) to hold arbitrary
// parsed IDs, not just ones this module composes itself.
type UserID struct {
	ID []byte
}

// NewUserID wraps a literal user ID string.
func NewUserID(id string) *UserID {
	return &UserID{ID: []byte(id)}
}

// ParseUserID interprets a generic Packet as a UserID.
func ParseUserID(pkt *Packet) (*UserID, error) {
	if pkt.Tag != TagUserID {
		return nil, ErrInvalidMessage
	}
	return &UserID{ID: append([]byte{}, pkt.Body...)}, nil
}

// Serialize emits the User ID packet.
func (u *UserID) Serialize() []byte {
	return serializePacket(TagUserID, u.ID)
}

// SignData is the "hashed data" a certification signature over this
// User ID covers: the RFC 4880 section 5.2.4 constant tag 0xb4
// followed by a 4-octet big-endian length and the raw ID octets.
func (u *UserID) SignData() []byte {
	prefix := []byte{0xb4, 0, 0, 0, 0}
	marshal32beInto(prefix[1:], uint32(len(u.ID)))
	return append(prefix, u.ID...)
}

func marshal32beInto(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

// UserAttribute is a parsed User Attribute packet (tag 17, RFC 4880
// section 5.12): a sequence of subpackets, in practice almost always a
// single JPEG image subpacket. This module does not compose these
// itself but must round-trip them when they appear in a parsed
// keyring (spec section 3's PartialKey groups UserID/UserAttribute
// packets together) and when certifying an existing identity.
type UserAttribute struct {
	Body []byte
}

// ParseUserAttribute interprets a generic Packet as a UserAttribute.
func ParseUserAttribute(pkt *Packet) (*UserAttribute, error) {
	if pkt.Tag != TagUserAttribute {
		return nil, ErrInvalidMessage
	}
	return &UserAttribute{Body: append([]byte{}, pkt.Body...)}, nil
}

// Serialize emits the User Attribute packet.
func (u *UserAttribute) Serialize() []byte {
	return serializePacket(TagUserAttribute, u.Body)
}

// SignData is the hashed-data prefix for a certification over this
// attribute: constant tag 0xd1 plus a 4-octet length, RFC 4880
// section 5.2.4.
func (u *UserAttribute) SignData() []byte {
	prefix := []byte{0xd1, 0, 0, 0, 0}
	marshal32beInto(prefix[1:], uint32(len(u.Body)))
	return append(prefix, u.Body...)
}
