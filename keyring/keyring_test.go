package keyring

import (
	"testing"

	"github.com/zoonfafer/rnp/keyobject"
)

func fingerprint(b byte) keyobject.Fingerprint {
	fp := make(keyobject.Fingerprint, 20)
	for i := range fp {
		fp[i] = b
	}
	return fp
}

func TestAddAndLookupByEachIdentifier(t *testing.T) {
	ring := New()
	ko := &keyobject.KeyObject{
		KeyID:       42,
		Fingerprint: fingerprint(0x01),
		Grip:        keyobject.Grip{1, 2, 3},
	}
	ring.Add(ko)

	if got, ok := ring.ByKeyID(42); !ok || got != ko {
		t.Errorf("ByKeyID(42) = %v, %v; want ko, true", got, ok)
	}
	if got, ok := ring.ByFingerprint(fingerprint(0x01)); !ok || got != ko {
		t.Errorf("ByFingerprint = %v, %v; want ko, true", got, ok)
	}
	if got, ok := ring.ByGrip(keyobject.Grip{1, 2, 3}); !ok || got != ko {
		t.Errorf("ByGrip = %v, %v; want ko, true", got, ok)
	}
	if _, ok := ring.ByKeyID(999); ok {
		t.Error("ByKeyID(999) should not find a key that was never added")
	}
}

func TestSubkeyGripsAreIndexed(t *testing.T) {
	ring := New()
	ko := &keyobject.KeyObject{
		KeyID:       1,
		Fingerprint: fingerprint(0x02),
		Subkeys: []*keyobject.Subkey{
			{KeyID: 2, Grip: keyobject.Grip{9, 9, 9}},
		},
	}
	ring.Add(ko)

	if got, ok := ring.ByGrip(keyobject.Grip{9, 9, 9}); !ok || got != ko {
		t.Errorf("ByGrip(subkey grip) = %v, %v; want ko, true", got, ok)
	}
	if got, ok := ring.ByKeyID(2); !ok || got != ko {
		t.Errorf("ByKeyID(subkey id) = %v, %v; want ko, true", got, ok)
	}
}

func TestReAddingReplacesRatherThanDuplicates(t *testing.T) {
	ring := New()
	fp := fingerprint(0x03)
	first := &keyobject.KeyObject{KeyID: 5, Fingerprint: fp}
	second := &keyobject.KeyObject{KeyID: 5, Fingerprint: fp}

	ring.Add(first)
	ring.Add(second)

	if got, ok := ring.ByFingerprint(fp); !ok || got != second {
		t.Errorf("ByFingerprint after re-add = %v, want the second KeyObject", got)
	}
	if len(ring.All()) != 1 {
		t.Errorf("len(All()) = %d, want 1", len(ring.All()))
	}
}
