// Package validate implements the validation state machine of spec §4.4:
// classifying each signature attached to a KeyObject by RFC 4880 §5.2.1
// signature-type octet, then cryptographically verifying self-signatures
// and binding signatures via go-crypto's packet.PublicKey.Verify*
// methods (the external Crypto collaborator), to decide Valid/Validated/
// Revoked for the primary key and each subkey.
package validate

import (
	"time"

	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/zoonfafer/rnp/diag"
	"github.com/zoonfafer/rnp/keyobject"
	"github.com/zoonfafer/rnp/pgperror"
)

// SignatureClass is the result of classifying a signature packet by its
// SigType octet, independent of which KeyObject it's attached to.
type SignatureClass int

const (
	ClassUnknown SignatureClass = iota
	ClassSelfCertification
	ClassKeyRevocation
	ClassSubkeyBinding
	ClassSubkeyRevocation
	ClassDirectKey
)

// Classify reports what kind of signature sig is, per the RFC 4880 §5.2.1
// type values the core cares about (spec §4.4's classification rules).
func Classify(sig *packet.Signature) SignatureClass {
	switch packet.SignatureType(sig.SigType) {
	case packet.SigTypeGenericCert, packet.SigTypePersonaCert,
		packet.SigTypeCasualCert, packet.SigTypePositiveCert:
		return ClassSelfCertification
	case packet.SigTypeKeyRevocation:
		return ClassKeyRevocation
	case packet.SigTypeSubkeyBinding:
		return ClassSubkeyBinding
	case packet.SigTypeSubkeyRevocation:
		return ClassSubkeyRevocation
	case packet.SigTypeDirectSignature:
		return ClassDirectKey
	default:
		return ClassUnknown
	}
}

// Validator re-derives Valid/Validated/Revoked for a KeyObject, following
// spec §4.4: a valid key revocation sets Revoked and Valid and returns
// early; otherwise the primary key is valid if it carries at least one
// cryptographically good, unexpired self-certification or is a secret
// key. A subkey is evaluated only if the primary is valid: a valid subkey
// revocation sets its Revoked and Valid; otherwise it is valid if it
// carries a good, unexpired binding signature or both it and the primary
// are secret. Validation is idempotent: running it twice over an
// unchanged KeyObject produces the same result.
type Validator struct {
	Sink diag.Sink
	Now  func() time.Time
}

func New(sink diag.Sink) *Validator {
	if sink == nil {
		sink = diag.Discard
	}
	return &Validator{Sink: sink, Now: time.Now}
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// Validate runs the state machine over ko in place.
func (v *Validator) Validate(ko *keyobject.KeyObject) error {
	if ko == nil || ko.Primary.Public == nil {
		return pgperror.New(pgperror.BadParameters, "cannot validate a key with no primary packet")
	}
	primary := ko.Primary.Public
	now := v.now()

	if v.primaryRevoked(ko, primary) {
		// A valid key revocation still validates the key: revocation is a
		// separate, observable property from validity (spec §4.4 "return
		// early with valid = true"). Subkeys are validated normally below,
		// gated on this now-true ko.Valid rather than force-invalidated.
		ko.Revoked = true
		ko.Valid = true
		ko.Validated = true
		for _, sk := range ko.Subkeys {
			v.validateSubkey(ko, sk, primary, now)
		}
		return nil
	}

	hasCert := false
	for _, u := range ko.UserIDs {
		for _, s := range u.Signatures {
			if err := primary.VerifyUserIdSignature(uidText(u), primary, s.Packet); err != nil {
				continue
			}
			if primary.KeyExpired(s.Packet, now) {
				continue
			}
			hasCert = true
		}
	}
	// A secret primary is considered self-verifying even absent a good
	// self-certification (spec §4.4 step 3).
	ko.Valid = hasCert || ko.Primary.Private != nil
	ko.Validated = true

	for _, sk := range ko.Subkeys {
		v.validateSubkey(ko, sk, primary, now)
	}
	return nil
}

func uidText(u *keyobject.UserID) string {
	return u.Value.Text
}

func (v *Validator) primaryRevoked(ko *keyobject.KeyObject, primary *packet.PublicKey) bool {
	for _, s := range ko.Directs {
		if Classify(s.Packet) != ClassKeyRevocation {
			continue
		}
		if err := primary.VerifyRevocationSignature(s.Packet); err == nil {
			return true
		}
	}
	for _, u := range ko.UserIDs {
		for _, r := range u.Revocations {
			if err := primary.VerifyRevocationSignature(r.Signature.Packet); err == nil {
				return true
			}
		}
	}
	return ko.Revoked
}

func (v *Validator) validateSubkey(ko *keyobject.KeyObject, sk *keyobject.Subkey, primary *packet.PublicKey, now time.Time) {
	if !ko.Valid {
		sk.Valid = false
		sk.Validated = false
		return
	}

	for _, r := range sk.Revocations {
		if err := primary.VerifySubkeyRevocationSignature(r.Signature.Packet, sk.Key.Public); err == nil {
			// Mirrors the primary case: a valid subkey revocation still
			// validates the subkey, revoked is tracked separately.
			sk.Revoked = true
			sk.Valid = true
			sk.Validated = true
			return
		}
	}

	good := false
	for _, s := range sk.Bindings {
		if err := primary.VerifyKeySignature(sk.Key.Public, s.Packet); err != nil {
			continue
		}
		if sk.Key.Public.KeyExpired(s.Packet, now) {
			continue
		}
		if s.Packet.FlagSign && s.Packet.EmbeddedSignature != nil {
			if err := sk.Key.Public.VerifyKeySignature(primary, s.Packet.EmbeddedSignature); err != nil {
				continue
			}
		}
		good = true
	}
	sk.Valid = good || (sk.Key.Private != nil && ko.Primary.Private != nil)
	sk.Validated = true
}
