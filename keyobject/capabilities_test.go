package keyobject

import (
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

func TestDefaultCapabilitiesRSAIsGeneralPurpose(t *testing.T) {
	caps := DefaultCapabilities(packet.PubKeyAlgoRSA)
	if !caps.Certify || !caps.Sign || !caps.EncryptCommunication || !caps.EncryptStorage || !caps.Authenticate {
		t.Errorf("RSA capabilities = %+v, want all of certify/sign/encrypt/authenticate", caps)
	}
}

func TestDefaultCapabilitiesElGamalIsEncryptOnly(t *testing.T) {
	caps := DefaultCapabilities(packet.PubKeyAlgoElGamal)
	if caps.Sign || caps.Certify {
		t.Errorf("ElGamal capabilities = %+v, want no signing capability", caps)
	}
	if !caps.EncryptCommunication {
		t.Errorf("ElGamal capabilities = %+v, want encryption capability", caps)
	}
}

func TestDefaultCapabilitiesDSAIsSignOnly(t *testing.T) {
	caps := DefaultCapabilities(packet.PubKeyAlgoDSA)
	if caps.EncryptCommunication || caps.EncryptStorage {
		t.Errorf("DSA capabilities = %+v, want no encryption capability", caps)
	}
	if !caps.Sign || !caps.Certify || !caps.Authenticate {
		t.Errorf("DSA capabilities = %+v, want sign+certify+authenticate", caps)
	}
}

func TestIntersectNarrowsToSharedCapabilities(t *testing.T) {
	want := KeyFlags{Sign: true, EncryptCommunication: true}
	have := KeyFlags{Sign: true, Certify: true}

	got := want.Intersect(have)
	if !got.Sign {
		t.Errorf("Intersect should keep the shared Sign flag: %+v", got)
	}
	if got.EncryptCommunication || got.Certify {
		t.Errorf("Intersect should drop flags not shared by both: %+v", got)
	}
}

func TestIsZero(t *testing.T) {
	if !(KeyFlags{}).IsZero() {
		t.Error("zero-value KeyFlags should report IsZero")
	}
	if (KeyFlags{Sign: true}).IsZero() {
		t.Error("KeyFlags with Sign set should not report IsZero")
	}
}
