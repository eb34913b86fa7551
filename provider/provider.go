// Package provider defines the small collaborator interfaces the core
// calls out to for passphrases and for locating other keys in a keyring
// (spec §6): PasswordProvider, KeyProvider, and the OperationContext
// passed to both so a provider can tailor its behavior to what's being
// attempted. None of these talk to a terminal or a config file directly —
// prompting/config plumbing is explicitly out of scope (spec §1
// Non-goals); package keyring supplies a minimal in-memory KeyProvider
// for tests and embedding applications to start from.
package provider

import "github.com/zoonfafer/rnp/keyobject"

// Operation identifies what the core is attempting when it asks a
// PasswordProvider or KeyProvider for help, mirroring RNP's
// pgp_op_t enumeration of password-prompt contexts.
type Operation int

const (
	OpUnlock Operation = iota
	OpProtect
	OpUnprotect
	OpMergeInfo
	OpSign
	OpDecrypt
)

func (o Operation) String() string {
	switch o {
	case OpUnlock:
		return "unlock"
	case OpProtect:
		return "protect"
	case OpUnprotect:
		return "unprotect"
	case OpMergeInfo:
		return "merge-info"
	case OpSign:
		return "sign"
	case OpDecrypt:
		return "decrypt"
	default:
		return "unknown"
	}
}

// OperationContext carries the key an operation concerns and what kind of
// operation it is, so a PasswordProvider can decide whether/how to
// respond (e.g. refuse silently for OpSign on a key it doesn't manage).
type OperationContext struct {
	Operation Operation
	Key       *keyobject.KeyObject
	// Subkey is set when the operation concerns a specific subkey rather
	// than the primary key itself.
	Subkey *keyobject.Subkey
}

// PasswordProvider supplies a passphrase for a given operation. Returning
// ok=false means "cancelled"; pgperror.ErrPasswordCanceled is the error
// value for that case. No function in this module calls a
// PasswordProvider itself: package secret takes passphrases directly.
type PasswordProvider interface {
	Password(ctx OperationContext) (passphrase []byte, ok bool)
}

// KeyProvider locates keys by the identifiers spec §6 names: key id,
// fingerprint, or grip.
type KeyProvider interface {
	ByKeyID(id keyobject.KeyID) (*keyobject.KeyObject, bool)
	ByFingerprint(fp keyobject.Fingerprint) (*keyobject.KeyObject, bool)
	ByGrip(grip keyobject.Grip) (*keyobject.KeyObject, bool)
}

// SearchKey is a convenience union of the identifiers KeyProvider can be
// queried by; exactly one field should be non-zero.
type SearchKey struct {
	KeyID       *keyobject.KeyID
	Fingerprint keyobject.Fingerprint
	Grip        *keyobject.Grip
}

// Resolve looks up key against provider using whichever identifier
// SearchKey carries, preferring Grip, then Fingerprint, then KeyID, per
// spec §6's ordering (the most specific identifier wins when more than
// one is supplied).
func Resolve(kp KeyProvider, key SearchKey) (*keyobject.KeyObject, bool) {
	if key.Grip != nil {
		return kp.ByGrip(*key.Grip)
	}
	if len(key.Fingerprint) > 0 {
		return kp.ByFingerprint(key.Fingerprint)
	}
	if key.KeyID != nil {
		return kp.ByKeyID(*key.KeyID)
	}
	return nil, false
}
