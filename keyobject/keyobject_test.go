package keyobject

import (
	"bytes"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/zoonfafer/rnp/wire"
)

func fakePublicKey(fingerprint byte, algo packet.PublicKeyAlgorithm) *packet.PublicKey {
	return &packet.PublicKey{
		PubKeyAlgo:  algo,
		Fingerprint: bytes.Repeat([]byte{fingerprint}, 20),
		KeyId:       uint64(fingerprint) << 56,
	}
}

func TestComputeGripIsDeterministic(t *testing.T) {
	pub := fakePublicKey(0xAB, packet.PubKeyAlgoRSA)

	a, err := ComputeGrip(pub)
	if err != nil {
		t.Fatalf("ComputeGrip returned error: %v", err)
	}
	b, err := ComputeGrip(pub)
	if err != nil {
		t.Fatalf("ComputeGrip returned error: %v", err)
	}
	if a != b {
		t.Errorf("ComputeGrip is not deterministic: %x != %x", a, b)
	}
}

func TestComputeGripDistinguishesKeys(t *testing.T) {
	a, err := ComputeGrip(fakePublicKey(0x01, packet.PubKeyAlgoRSA))
	if err != nil {
		t.Fatalf("ComputeGrip returned error: %v", err)
	}
	b, err := ComputeGrip(fakePublicKey(0x02, packet.PubKeyAlgoRSA))
	if err != nil {
		t.Fatalf("ComputeGrip returned error: %v", err)
	}
	if a == b {
		t.Error("ComputeGrip produced the same grip for two different fingerprints")
	}
}

func TestComputeGripDistinguishesAlgorithm(t *testing.T) {
	fp := byte(0x42)
	a, err := ComputeGrip(fakePublicKey(fp, packet.PubKeyAlgoRSA))
	if err != nil {
		t.Fatalf("ComputeGrip returned error: %v", err)
	}
	b, err := ComputeGrip(fakePublicKey(fp, packet.PubKeyAlgoDSA))
	if err != nil {
		t.Fatalf("ComputeGrip returned error: %v", err)
	}
	if a == b {
		t.Error("ComputeGrip ignored the algorithm tag for otherwise-identical fingerprints")
	}
}

func TestComputeGripRejectsMissingFingerprint(t *testing.T) {
	_, err := ComputeGrip(&packet.PublicKey{PubKeyAlgo: packet.PubKeyAlgoRSA})
	if err == nil {
		t.Fatal("expected an error computing the grip of a key with no fingerprint")
	}
}

func TestCloneStripsSecretMaterialWhenPublicOnly(t *testing.T) {
	primaryPub := fakePublicKey(0x10, packet.PubKeyAlgoRSA)
	ko := &KeyObject{
		Primary:     wire.KeyPacket{Public: primaryPub, Private: &packet.PrivateKey{PublicKey: *primaryPub}},
		Fingerprint: append(Fingerprint(nil), primaryPub.Fingerprint...),
	}
	subPub := fakePublicKey(0x11, packet.PubKeyAlgoRSA)
	ko.Subkeys = append(ko.Subkeys, &Subkey{
		Key: wire.KeyPacket{Public: subPub, Private: &packet.PrivateKey{PublicKey: *subPub}},
	})

	clone := ko.Clone(true)
	if clone.Primary.Private != nil {
		t.Error("Clone(publicOnly=true) should strip the primary's private key")
	}
	if clone.Subkeys[0].Key.Private != nil {
		t.Error("Clone(publicOnly=true) should strip subkey private keys")
	}
	if ko.Primary.Private == nil {
		t.Error("Clone must not mutate the original KeyObject")
	}
}
