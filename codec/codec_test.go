package codec

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// buildInterleavedKeyBytes hand-assembles a raw transferable-key packet
// stream with a certification followed by a certification-revocation
// attached to the same user-id, the ordering a real keyring can produce
// (spec §4.1's "signatures ... in file order") and which a
// certifications-then-revocations split would scramble on re-serialization.
func buildInterleavedKeyBytes(t *testing.T) []byte {
	t.Helper()
	rsaKey, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generating test RSA key: %v", err)
	}
	created := time.Now().Add(-time.Hour).Truncate(time.Second)
	priv := packet.NewRSAPrivateKey(created, rsaKey)
	pub := &priv.PublicKey

	uid := packet.NewUserId("alice", "", "alice@example.com")
	if uid == nil {
		t.Fatal("packet.NewUserId returned nil")
	}

	cert := &packet.Signature{
		Version:      pub.Version,
		SigType:      packet.SigTypePositiveCert,
		PubKeyAlgo:   pub.PubKeyAlgo,
		Hash:         crypto.SHA256,
		CreationTime: created,
		IssuerKeyId:  &pub.KeyId,
	}
	if err := cert.SignUserId(uid.Id, pub, priv, &packet.Config{}); err != nil {
		t.Fatalf("signing certification: %v", err)
	}

	revocation := &packet.Signature{
		Version:      pub.Version,
		SigType:      packet.SigTypeCertificationRevocation,
		PubKeyAlgo:   pub.PubKeyAlgo,
		Hash:         crypto.SHA256,
		CreationTime: created.Add(time.Minute),
		IssuerKeyId:  &pub.KeyId,
	}
	if err := revocation.SignUserId(uid.Id, pub, priv, &packet.Config{}); err != nil {
		t.Fatalf("signing certification revocation: %v", err)
	}

	var buf bytes.Buffer
	if err := priv.Serialize(&buf); err != nil {
		t.Fatalf("serializing primary: %v", err)
	}
	if err := uid.Serialize(&buf); err != nil {
		t.Fatalf("serializing user id: %v", err)
	}
	// Certification, then its revocation: the exact order Parse must
	// preserve and Serialize must reproduce byte-for-byte.
	if err := cert.Serialize(&buf); err != nil {
		t.Fatalf("serializing certification: %v", err)
	}
	if err := revocation.Serialize(&buf); err != nil {
		t.Fatalf("serializing revocation: %v", err)
	}
	return buf.Bytes()
}

func TestParseSerializeRoundTripPreservesSignatureOrder(t *testing.T) {
	original := buildInterleavedKeyBytes(t)

	c := New(nil)
	keys, err := c.Parse(bytes.NewReader(original))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("Parse returned %d keys, want 1", len(keys))
	}
	tk := keys[0]
	if len(tk.UserIDs) != 1 {
		t.Fatalf("parsed %d user-ids, want 1", len(tk.UserIDs))
	}
	if len(tk.UserIDs[0].Signatures) != 2 {
		t.Fatalf("parsed %d signatures on the user-id, want 2", len(tk.UserIDs[0].Signatures))
	}
	if packet.SignatureType(tk.UserIDs[0].Signatures[0].Packet.SigType) != packet.SigTypePositiveCert {
		t.Error("first parsed signature is not the certification: order was not preserved")
	}
	if packet.SignatureType(tk.UserIDs[0].Signatures[1].Packet.SigType) != packet.SigTypeCertificationRevocation {
		t.Error("second parsed signature is not the revocation: order was not preserved")
	}

	var out bytes.Buffer
	if err := c.Serialize(tk, &out, false); err != nil {
		t.Fatalf("Serialize returned error: %v", err)
	}
	if !bytes.Equal(original, out.Bytes()) {
		t.Error("Serialize(Parse(x)) != x: interleaved certification/revocation order was not round-tripped byte-exactly")
	}
}

func TestParseRejectsEmptyInput(t *testing.T) {
	c := New(nil)
	if _, err := c.Parse(bytes.NewReader(nil)); err == nil {
		t.Fatal("expected an error parsing an empty packet stream")
	}
}
