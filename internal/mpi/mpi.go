// Package mpi implements the RFC 4880 §3.2 multi-precision-integer wire
// encoding: a two-byte big-endian bit count followed by that many bits of
// big-endian data, the top byte having no unnecessary leading zero bits.
// Like package s2k, this is reimplemented here; in this case because the
// teacher's equivalent (openpgp/internal/encoding) is a true Go internal
// package and cannot be imported from outside its module (SPEC_FULL.md §3).
package mpi

import (
	"encoding/binary"
	"io"
	"math/big"

	"github.com/zoonfafer/rnp/pgperror"
)

// Encode serialises v as an RFC 4880 MPI.
func Encode(v *big.Int) []byte {
	bits := v.BitLen()
	raw := v.Bytes()
	out := make([]byte, 2+len(raw))
	binary.BigEndian.PutUint16(out[0:2], uint16(bits))
	copy(out[2:], raw)
	return out
}

// Read parses one MPI from r, returning the decoded value.
func Read(r io.Reader) (*big.Int, error) {
	var lenBytes [2]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return nil, pgperror.Wrap(pgperror.BadFormat, "reading mpi bit length", err)
	}
	bits := binary.BigEndian.Uint16(lenBytes[:])
	byteLen := (int(bits) + 7) / 8
	if byteLen == 0 {
		return new(big.Int), nil
	}
	buf := make([]byte, byteLen)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, pgperror.Wrap(pgperror.BadFormat, "reading mpi data", err)
	}
	return new(big.Int).SetBytes(buf), nil
}

// ByteLen returns the number of data bytes Encode would emit for v,
// excluding the 2-byte length prefix.
func ByteLen(v *big.Int) int {
	return (v.BitLen() + 7) / 8
}
