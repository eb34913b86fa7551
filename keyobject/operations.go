package keyobject

import (
	"bytes"

	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/zoonfafer/rnp/codec"
	"github.com/zoonfafer/rnp/diag"
	"github.com/zoonfafer/rnp/pgperror"
	"github.com/zoonfafer/rnp/wire"
)

// AddUserIDCertified appends a new user-id to ko together with the
// self-certification that vouches for it, refreshing the derived
// KeyFlags/Expiration if the new certification carries them (open
// question #1: last signature with flags wins). Grounded on
// pgp_key_add_userid_certified's validation-then-append sequencing in
// pgp-key.cpp: the caller is expected to have already verified cert
// against ko's primary key before calling this.
func (ko *KeyObject) AddUserIDCertified(value wire.UserID, cert *wire.Signature) error {
	if cert == nil || cert.Packet == nil {
		return pgperror.New(pgperror.BadParameters, "missing self-certification signature")
	}
	for _, existing := range ko.UserIDs {
		if sameUserIDValue(existing.Value, value) {
			return pgperror.New(pgperror.BadState, "user id already present on key")
		}
	}
	ko.UserIDs = append(ko.UserIDs, &UserID{
		Value:      value,
		Signatures: []*wire.Signature{cert},
		Primary:    cert.Packet.IsPrimaryId != nil && *cert.Packet.IsPrimaryId,
	})
	applyKeyFlags(&ko.KeyFlags, cert.Packet)
	applyExpiration(&ko.Expiration, cert.Packet)
	ko.dirty = true
	return nil
}

func sameUserIDValue(a, b wire.UserID) bool {
	if a.IsAttribute() != b.IsAttribute() {
		return false
	}
	if a.IsAttribute() {
		return bytes.Equal(a.AttributeData, b.AttributeData)
	}
	return a.Text == b.Text
}

// FindSuitableKey returns the primary key or a subkey of ko that is
// Valid, not Revoked, and grants every capability in want, preferring the
// primary key when it qualifies and otherwise the first qualifying
// subkey in binding order (spec §4.4's find_suitable_key).
func (ko *KeyObject) FindSuitableKey(want KeyFlags) (isPrimary bool, subkey *Subkey, ok bool) {
	if ko.Valid && !ko.Revoked && ko.KeyFlags.Intersect(want) == want {
		return true, nil, true
	}
	for _, sk := range ko.Subkeys {
		if sk.Valid && !sk.Revoked && sk.KeyFlags.Intersect(want) == want {
			return false, sk, true
		}
	}
	return false, nil, false
}

// PrimaryKeyLookup is the shape package provider's KeyProvider satisfies,
// restated here so this package can accept one without depending on
// package provider (which itself depends on this package). Any
// provider.KeyProvider, including keyring.Ring, satisfies this
// structurally.
type PrimaryKeyLookup interface {
	ByKeyID(id KeyID) (*KeyObject, bool)
	ByFingerprint(fp Fingerprint) (*KeyObject, bool)
	ByGrip(grip Grip) (*KeyObject, bool)
}

// PrimaryFor resolves sk's owning primary key (spec §4.4's `primary_for`):
// it locates sk's subkey-binding signature(s), extracts the issuer
// fingerprint (preferred) or issuer key-id from each, and looks that up in
// store; a miss falls back to provider (a second, typically slower or
// remote, KeyProvider — RNP's MERGE_INFO fallback path in pgp-key.cpp,
// consulted when the fast local keyring doesn't have the primary loaded
// yet). A resolved primary is rejected unless its secret/public polarity
// matches sk (a secret subkey must resolve to a secret primary and vice
// versa), matching pgp-key.cpp's primary_for polarity check.
func PrimaryFor(sk *Subkey, store, provider PrimaryKeyLookup, sink diag.Sink) (*KeyObject, bool) {
	if sink == nil {
		sink = diag.Discard
	}
	for _, binding := range sk.Bindings {
		primary, ok := lookupIssuer(binding.Packet, store)
		if !ok && provider != nil {
			sink.Event(diag.LevelInfo, "primary_for: falling back to provider", diag.F("operation", "merge-info"), diag.F("subkey", sk.KeyID))
			primary, ok = lookupIssuer(binding.Packet, provider)
		}
		if !ok {
			continue
		}
		if (primary.Primary.Private != nil) != (sk.Key.Private != nil) {
			sink.Event(diag.LevelWarn, "primary_for: resolved primary has mismatched secret/public polarity", diag.F("subkey", sk.KeyID))
			continue
		}
		return primary, true
	}
	return nil, false
}

func lookupIssuer(sig *packet.Signature, lookup PrimaryKeyLookup) (*KeyObject, bool) {
	if lookup == nil {
		return nil, false
	}
	if len(sig.IssuerFingerprint) > 0 {
		if ko, ok := lookup.ByFingerprint(Fingerprint(sig.IssuerFingerprint)); ok {
			return ko, true
		}
	}
	if sig.IssuerKeyId != nil {
		if ko, ok := lookup.ByKeyID(*sig.IssuerKeyId); ok {
			return ko, true
		}
	}
	return nil, false
}

// WriteXfer serializes ko back into transferable-key wire form (spec
// §4.4's `write_xfer(key, keyring, secret)`). Packets are filtered by
// packet_matches(tag, secret): signature, user-id, and user-attribute
// packets always pass; primary and subkey key packets pass only with
// their secret material present when secret is true, and stripped to
// public-only otherwise. When ring is non-nil, each subkey grip is looked
// up in it first, so a fresher copy held by the keyring is emitted instead
// of ko's own possibly-stale embedded Subkey (RNP's recursive
// grip-based subkey emission in pgp-key.cpp's write_xfer).
//
// If ko has not been mutated since Canonicalize and ring is nil, the
// frozen raw-packet list is written back verbatim when its
// polarity already matches secret (spec §4.2 step 4: "the raw packet list
// is the authoritative on-disk form"); otherwise ko is re-expressed as a
// wire.TransferableKey, filtered, and handed to package codec.
func (ko *KeyObject) WriteXfer(secret bool, ring PrimaryKeyLookup, sink diag.Sink) ([]byte, error) {
	if sink == nil {
		sink = ko.sink
	}
	if sink == nil {
		sink = diag.Discard
	}

	if !ko.dirty && ring == nil && secret == (ko.Primary.Private != nil) {
		var buf bytes.Buffer
		for _, p := range ko.rawPackets {
			buf.Write(p)
		}
		return buf.Bytes(), nil
	}

	tk := ko.toTransferableKeyFiltered(secret, ring, sink)
	var buf bytes.Buffer
	if err := codec.New(sink).Serialize(tk, &buf, false); err != nil {
		return nil, pgperror.Wrap(pgperror.Write, "serializing key object", err)
	}
	return buf.Bytes(), nil
}

// ToTransferableKey re-expands the canonical view back into the
// packet-sequence shape package codec serializes, with secret material
// intact, for callers that need the full round-trip shape of a KeyObject
// mutated since load. WriteXfer is the polarity-aware, keyring-recursive
// entry point most callers want instead.
func (ko *KeyObject) ToTransferableKey() *wire.TransferableKey {
	return ko.toTransferableKeyFiltered(true, nil, nil)
}

func (ko *KeyObject) toTransferableKeyFiltered(secret bool, ring PrimaryKeyLookup, sink diag.Sink) *wire.TransferableKey {
	tk := &wire.TransferableKey{
		Primary: filterKeyPacketPolarity(ko.Primary, secret),
		Directs: append([]*wire.Signature(nil), ko.Directs...),
	}
	for _, u := range ko.UserIDs {
		sigs := append([]*wire.Signature(nil), u.Signatures...)
		for _, r := range u.Revocations {
			sigs = append(sigs, r.Signature)
		}
		tk.UserIDs = append(tk.UserIDs, &wire.TransferableUserID{UserID: u.Value, Signatures: sigs})
	}
	for _, s := range ko.Subkeys {
		kp := s.Key
		if ring != nil {
			if owner, ok := ring.ByGrip(s.Grip); ok {
				for _, other := range owner.Subkeys {
					if other.Grip == s.Grip {
						kp = other.Key
						if sink != nil {
							sink.Event(diag.LevelInfo, "write_xfer: emitting subkey from keyring override", diag.F("grip", s.Grip))
						}
						break
					}
				}
			}
		}
		sigs := append([]*wire.Signature(nil), s.Bindings...)
		for _, r := range s.Revocations {
			sigs = append(sigs, r.Signature)
		}
		tk.Subkeys = append(tk.Subkeys, &wire.TransferableSubkey{Key: filterKeyPacketPolarity(kp, secret), Signatures: sigs})
	}
	return tk
}

// filterKeyPacketPolarity implements write_xfer's packet_matches(tag,
// secret) rule for key/subkey packets: secret material is kept only when
// secret is requested, dropped (public-only export) otherwise. A public-
// only KeyPacket asked for with secret=true is returned unchanged — there
// is nothing to strip, not an error.
func filterKeyPacketPolarity(kp wire.KeyPacket, secret bool) wire.KeyPacket {
	if !secret {
		kp.Private = nil
	}
	return kp
}
