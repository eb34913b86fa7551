package mpi

import (
	"bytes"
	"math/big"
	"testing"
)

func TestEncodeReadRoundTrip(t *testing.T) {
	values := []*big.Int{
		big.NewInt(0),
		big.NewInt(1),
		big.NewInt(255),
		big.NewInt(256),
		new(big.Int).SetBytes(bytes.Repeat([]byte{0xff}, 32)),
	}
	for _, v := range values {
		encoded := Encode(v)
		got, err := Read(bytes.NewReader(encoded))
		if err != nil {
			t.Fatalf("Read returned error for %v: %v", v, err)
		}
		if got.Cmp(v) != 0 {
			t.Errorf("round trip of %v produced %v", v, got)
		}
	}
}

func TestEncodeNoLeadingZeroBits(t *testing.T) {
	// 0xff has bit length 8, so the length prefix must read 8, not 16.
	v := big.NewInt(0xff)
	encoded := Encode(v)
	if len(encoded) != 3 {
		t.Fatalf("Encode(0xff) has length %d, want 3", len(encoded))
	}
	bits := int(encoded[0])<<8 | int(encoded[1])
	if bits != 8 {
		t.Errorf("bit length = %d, want 8", bits)
	}
}

func TestReadTruncatedInputErrors(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte{0x00})); err == nil {
		t.Fatal("expected an error reading a truncated length prefix")
	}
	if _, err := Read(bytes.NewReader([]byte{0x00, 0x09})); err == nil {
		t.Fatal("expected an error reading truncated mpi data")
	}
}

func TestByteLen(t *testing.T) {
	v := new(big.Int).SetBytes(bytes.Repeat([]byte{0xff}, 32))
	if got := ByteLen(v); got != 32 {
		t.Errorf("ByteLen = %d, want 32", got)
	}
}
