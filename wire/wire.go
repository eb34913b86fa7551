// Package wire holds the data model that mirrors the wire-level OpenPGP
// transferable-key packet sequence (RFC 4880 §11.1): KeyPacket, UserID,
// Signature/SubSig, and the TransferableKey aggregate itself. Structurally
// it is our equivalent of the teacher's openpgp/v2 Entity/Identity/Subkey
// triple, but it deliberately stays a thin, codec-facing data model rather
// than the validated, query-able KeyObject — canonicalisation into a
// KeyObject happens one layer up, in package keyobject.
package wire

import (
	"bytes"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// KeyPacket wraps a go-crypto public-key packet together with whatever
// secret material accompanies it on the wire. Secret material is kept in
// its still-possibly-encrypted form; package secret is what makes it usable.
type KeyPacket struct {
	Public *packet.PublicKey
	// Private is nil for public-only keys. Its encryption state is
	// inspected via Private.Encrypted; decoding/decrypting the raw
	// secret-key material itself is package secret's job.
	Private *packet.PrivateKey
}

func (k *KeyPacket) IsSecret() bool { return k.Private != nil }

// Signature wraps a go-crypto signature packet along with the raw bytes it
// was parsed from, needed for byte-identical merge comparison (spec §4.1:
// "signatures ... are compared for equality by their serialized bytes").
type Signature struct {
	Packet *packet.Signature
	Raw    []byte
}

// Equal reports whether two signatures are the same signature packet, by
// comparing their serialized wire bytes rather than any parsed field.
func (s *Signature) Equal(other *Signature) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Raw != nil && other.Raw != nil {
		return bytes.Equal(s.Raw, other.Raw)
	}
	var bufA, bufB bytes.Buffer
	if s.Packet.Serialize(&bufA) != nil || other.Packet.Serialize(&bufB) != nil {
		return false
	}
	return bytes.Equal(bufA.Bytes(), bufB.Bytes())
}

// UserID is either a text user-id string or an opaque user-attribute
// packet's raw image; exactly one of the two is populated.
type UserID struct {
	Text          string // RFC 4880 §5.11, user ID packet
	AttributeData []byte // RFC 4880 §5.12, user attribute packet image; nil for text user-ids
}

func (u UserID) IsAttribute() bool { return u.AttributeData != nil }

// TransferableUserID is one user-id (or attribute) together with every
// signature (certification or revocation, in whatever order the packet
// stream carried them) the parsed stream attached to it, in file order
// (spec §4.1). Classifying a Signature as a certification or a revocation
// is package keyobject's job at canonicalisation time, not this package's —
// keeping them in one ordered list here is what makes byte-exact
// round-tripping of an interleaved certification/revocation sequence
// possible; splitting them into separate slices at parse time would lose
// that interleaving.
type TransferableUserID struct {
	UserID     UserID
	Signatures []*Signature
}

// TransferableSubkey is a subkey packet together with every binding or
// revocation signature attached to it, in file order (see
// TransferableUserID's doc comment for why this is one ordered list rather
// than split by classification).
type TransferableSubkey struct {
	Key        KeyPacket
	Signatures []*Signature
}

// TransferableKey is the direct, un-canonicalised image of one RFC 4880
// §11.1 transferable-key packet sequence: a primary key, optional direct
// (key-level) signatures, zero or more user-ids each with their own
// signatures, and zero or more subkeys. It is what KeyCodec.Parse produces
// and KeyCodec.Serialize consumes; package keyobject turns it into a
// queryable KeyObject and back.
type TransferableKey struct {
	Primary    KeyPacket
	Directs    []*Signature // direct-key signatures and key revocations
	UserIDs    []*TransferableUserID
	Subkeys    []*TransferableSubkey

	// ParsedAt records when Parse produced this value; used only as a
	// diagnostic breadcrumb, never as cryptographic material.
	ParsedAt time.Time
}

// Fingerprint returns the primary key's fingerprint bytes, as computed by
// go-crypto (v4: SHA-1 over the public key body; v5/v6: SHA-256).
func (t *TransferableKey) Fingerprint() []byte {
	if t == nil || t.Primary.Public == nil {
		return nil
	}
	return t.Primary.Public.Fingerprint
}
