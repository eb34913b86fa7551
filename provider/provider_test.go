package provider

import (
	"testing"

	"github.com/zoonfafer/rnp/keyobject"
)

type stubProvider struct {
	byID map[keyobject.KeyID]*keyobject.KeyObject
	byFP map[string]*keyobject.KeyObject
	byGr map[keyobject.Grip]*keyobject.KeyObject
}

func (s stubProvider) ByKeyID(id keyobject.KeyID) (*keyobject.KeyObject, bool) {
	ko, ok := s.byID[id]
	return ko, ok
}
func (s stubProvider) ByFingerprint(fp keyobject.Fingerprint) (*keyobject.KeyObject, bool) {
	ko, ok := s.byFP[string(fp)]
	return ko, ok
}
func (s stubProvider) ByGrip(grip keyobject.Grip) (*keyobject.KeyObject, bool) {
	ko, ok := s.byGr[grip]
	return ko, ok
}

func TestResolvePrefersGripOverFingerprintOverKeyID(t *testing.T) {
	byGrip := &keyobject.KeyObject{KeyID: 1}
	byFP := &keyobject.KeyObject{KeyID: 2}
	byID := &keyobject.KeyObject{KeyID: 3}

	grip := keyobject.Grip{1}
	fp := keyobject.Fingerprint{2}
	id := keyobject.KeyID(3)

	sp := stubProvider{
		byID: map[keyobject.KeyID]*keyobject.KeyObject{id: byID},
		byFP: map[string]*keyobject.KeyObject{string(fp): byFP},
		byGr: map[keyobject.Grip]*keyobject.KeyObject{grip: byGrip},
	}

	got, ok := Resolve(sp, SearchKey{Grip: &grip, Fingerprint: fp, KeyID: &id})
	if !ok || got != byGrip {
		t.Errorf("Resolve with all three set = %v, want the grip match", got)
	}

	got, ok = Resolve(sp, SearchKey{Fingerprint: fp, KeyID: &id})
	if !ok || got != byFP {
		t.Errorf("Resolve with fingerprint+keyid set = %v, want the fingerprint match", got)
	}

	got, ok = Resolve(sp, SearchKey{KeyID: &id})
	if !ok || got != byID {
		t.Errorf("Resolve with only keyid set = %v, want the keyid match", got)
	}
}

func TestResolveReturnsFalseWhenNothingMatches(t *testing.T) {
	sp := stubProvider{}
	if _, ok := Resolve(sp, SearchKey{}); ok {
		t.Error("Resolve with an empty SearchKey should report false")
	}
}

func TestOperationString(t *testing.T) {
	cases := map[Operation]string{
		OpUnlock:    "unlock",
		OpProtect:   "protect",
		OpUnprotect: "unprotect",
		OpMergeInfo: "merge-info",
		OpSign:      "sign",
		OpDecrypt:   "decrypt",
	}
	for op, want := range cases {
		if got := op.String(); got != want {
			t.Errorf("Operation(%d).String() = %q, want %q", op, got, want)
		}
	}
}
