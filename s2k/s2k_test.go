package s2k

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"testing"
)

func TestDecodedCountKnownValue(t *testing.T) {
	// 0x60 is GnuPG's traditional default iteration-count octet, which
	// decodes to 65536 per RFC 4880 §3.7.1.3.
	if got := DecodedCount(0x60); got != 65536 {
		t.Errorf("DecodedCount(0x60) = %d, want 65536", got)
	}
}

func TestEncodeCountRoundTrips(t *testing.T) {
	coded := EncodeCount(65536)
	if got := DecodedCount(coded); got < 65536 {
		t.Errorf("DecodedCount(EncodeCount(65536)) = %d, want >= 65536", got)
	}
}

func TestDeriveSimpleMatchesRawHash(t *testing.T) {
	passphrase := []byte("correct horse battery staple")
	want := sha1.Sum(passphrase)

	got, err := Derive(Params{Mode: ModeSimple, Hash: HashSHA1}, passphrase, sha1.Size)
	if err != nil {
		t.Fatalf("Derive returned error: %v", err)
	}
	if !bytes.Equal(got, want[:]) {
		t.Errorf("Derive(Simple) = %x, want %x", got, want)
	}
}

func TestDeriveSaltedMatchesSaltedHash(t *testing.T) {
	passphrase := []byte("hunter2")
	salt := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}

	h := sha256.New()
	h.Write(salt[:])
	h.Write(passphrase)
	want := h.Sum(nil)

	got, err := Derive(Params{Mode: ModeSalted, Hash: HashSHA256, Salt: salt}, passphrase, sha256.Size)
	if err != nil {
		t.Fatalf("Derive returned error: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Derive(Salted) = %x, want %x", got, want)
	}
}

func TestDeriveProducesRequestedLength(t *testing.T) {
	// AES-256 needs 32 key bytes, more than a single SHA-1 digest (20
	// bytes), exercising the multi-pass prefix-of-zeros extension.
	got, err := Derive(Params{Mode: ModeSimple, Hash: HashSHA1}, []byte("passphrase"), 32)
	if err != nil {
		t.Fatalf("Derive returned error: %v", err)
	}
	if len(got) != 32 {
		t.Fatalf("len(Derive(...)) = %d, want 32", len(got))
	}
}

func TestDeriveIteratedSaltedIsDeterministic(t *testing.T) {
	params := Params{
		Mode:  ModeIteratedSalted,
		Hash:  HashSHA256,
		Salt:  [8]byte{9, 8, 7, 6, 5, 4, 3, 2},
		Count: 96,
	}
	a, err := Derive(params, []byte("passphrase"), 32)
	if err != nil {
		t.Fatalf("Derive returned error: %v", err)
	}
	b, err := Derive(params, []byte("passphrase"), 32)
	if err != nil {
		t.Fatalf("Derive returned error: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("Derive(IteratedSalted) is not deterministic: %x != %x", a, b)
	}

	other, err := Derive(params, []byte("different passphrase"), 32)
	if err != nil {
		t.Fatalf("Derive returned error: %v", err)
	}
	if bytes.Equal(a, other) {
		t.Errorf("Derive(IteratedSalted) produced the same key for different passphrases")
	}
}

func TestDeriveRejectsUnknownHash(t *testing.T) {
	_, err := Derive(Params{Mode: ModeSimple, Hash: 99}, []byte("x"), 16)
	if err == nil {
		t.Fatal("expected an error for an unsupported hash algorithm")
	}
}
