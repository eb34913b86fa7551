package codec

import (
	"bytes"

	"github.com/zoonfafer/rnp/diag"
	"github.com/zoonfafer/rnp/pgperror"
	"github.com/zoonfafer/rnp/wire"
)

// Merge combines two TransferableKey parses of what the caller asserts is
// the same key: their primary public material must be byte-identical.
// Signatures are unioned, deduplicated by serialized-byte equality;
// existing user-ids gain any new certifications/revocations, new user-ids
// and new subkeys are appended. If exactly one side carries secret
// material it is preferred and a diagnostic is emitted (spec §4.1).
func (c *KeyCodec) Merge(dst, src *wire.TransferableKey) (*wire.TransferableKey, error) {
	if dst == nil || src == nil {
		return nil, pgperror.New(pgperror.BadParameters, "merge requires two non-nil keys")
	}
	if !bytes.Equal(dst.Fingerprint(), src.Fingerprint()) {
		return nil, pgperror.New(pgperror.BadParameters, "merge requires matching primary key material")
	}

	out := &wire.TransferableKey{Primary: dst.Primary, ParsedAt: dst.ParsedAt}

	if out.Primary.Private == nil && src.Primary.Private != nil {
		out.Primary.Private = src.Primary.Private
		c.log(diag.LevelInfo, "merge: taking secret primary from source over public-only copy")
	} else if out.Primary.Private != nil && src.Primary.Private != nil {
		// both secret: keep dst's, nothing to reconcile at the field level
	} else if out.Primary.Private != nil && src.Primary.Private == nil {
		c.log(diag.LevelInfo, "merge: keeping secret primary, discarding public-only duplicate")
	}

	out.Directs = mergeSigs(dst.Directs, src.Directs)

	out.UserIDs = mergeUserIDs(dst.UserIDs, src.UserIDs)

	out.Subkeys = c.mergeSubkeys(dst.Subkeys, src.Subkeys)

	return out, nil
}

func mergeSigs(a, b []*wire.Signature) []*wire.Signature {
	out := append([]*wire.Signature(nil), a...)
	for _, s := range b {
		if !containsSig(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func containsSig(list []*wire.Signature, s *wire.Signature) bool {
	for _, existing := range list {
		if existing.Equal(s) {
			return true
		}
	}
	return false
}

func sameUserID(a, b wire.UserID) bool {
	if a.IsAttribute() != b.IsAttribute() {
		return false
	}
	if a.IsAttribute() {
		return bytes.Equal(a.AttributeData, b.AttributeData)
	}
	return a.Text == b.Text
}

func mergeUserIDs(a, b []*wire.TransferableUserID) []*wire.TransferableUserID {
	out := make([]*wire.TransferableUserID, len(a))
	copy(out, a)

	for _, src := range b {
		var match *wire.TransferableUserID
		for _, dst := range out {
			if sameUserID(dst.UserID, src.UserID) {
				match = dst
				break
			}
		}
		if match == nil {
			out = append(out, src)
			continue
		}
		match.Signatures = mergeSigs(match.Signatures, src.Signatures)
	}
	return out
}

func (c *KeyCodec) mergeSubkeys(a, b []*wire.TransferableSubkey) []*wire.TransferableSubkey {
	out := make([]*wire.TransferableSubkey, len(a))
	copy(out, a)

	for _, src := range b {
		var match *wire.TransferableSubkey
		for _, dst := range out {
			if bytes.Equal(dst.Key.Public.Fingerprint, src.Key.Public.Fingerprint) {
				match = dst
				break
			}
		}
		if match == nil {
			out = append(out, src)
			continue
		}
		if match.Key.Private == nil && src.Key.Private != nil {
			match.Key.Private = src.Key.Private
			c.log(diag.LevelInfo, "merge: taking secret subkey from source over public-only copy")
		} else if match.Key.Private != nil && src.Key.Private == nil {
			c.log(diag.LevelInfo, "merge: keeping secret subkey, discarding public-only duplicate")
		}
		match.Signatures = mergeSigs(match.Signatures, src.Signatures)
	}
	return out
}
