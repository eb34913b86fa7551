// Package s2k implements the RFC 4880 §3.7.1 string-to-key algorithms used
// to derive a symmetric key from a passphrase. This is part of the
// "Crypto (external)" collaborator the core spec treats as out of scope,
// but its real upstream API (openpgp/s2k) is not present in the retrieved
// sources, so it is reimplemented here directly from the RFC rather than
// guessed at (see SPEC_FULL.md §3).
package s2k

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"github.com/zoonfafer/rnp/pgperror"
)

// Mode identifies which of the three RFC 4880 S2K constructions to use.
type Mode byte

const (
	ModeSimple         Mode = 0
	ModeSalted         Mode = 1
	ModeIteratedSalted Mode = 3
)

// HashAlgorithm mirrors the RFC 4880 §9.4 hash algorithm IDs relevant to S2K.
type HashAlgorithm byte

const (
	HashMD5    HashAlgorithm = 1
	HashSHA1   HashAlgorithm = 2
	HashSHA256 HashAlgorithm = 8
	HashSHA384 HashAlgorithm = 9
	HashSHA512 HashAlgorithm = 10
	HashSHA224 HashAlgorithm = 11
)

func newHash(alg HashAlgorithm) (func() hash.Hash, error) {
	switch alg {
	case HashMD5:
		return md5.New, nil
	case HashSHA1:
		return sha1.New, nil
	case HashSHA256:
		return sha256.New, nil
	case HashSHA384:
		return sha512.New384, nil
	case HashSHA512:
		return sha512.New, nil
	case HashSHA224:
		return sha256.New224, nil
	default:
		return nil, pgperror.New(pgperror.BadParameters, "unsupported s2k hash algorithm")
	}
}

// Params fully describes one S2K specifier as it appears on the wire
// following a secret-key packet's string-to-key usage octet.
type Params struct {
	Mode   Mode
	Hash   HashAlgorithm
	Salt   [8]byte // used by ModeSalted and ModeIteratedSalted
	Count  uint8   // encoded "coded count" byte, used by ModeIteratedSalted only
}

// DecodedCount expands the RFC 4880 §3.7.1.3 coded octet count into the
// actual number of bytes hashed.
func DecodedCount(coded uint8) int {
	return (16 + int(coded&15)) << (uint(coded>>4) + 6)
}

// Derive produces a keySize-byte key from passphrase according to p,
// following RFC 4880 §3.7.1's "hash, possibly multiple times with an
// incrementing prefix of zero bytes, until enough output bytes exist".
func Derive(p Params, passphrase []byte, keySize int) ([]byte, error) {
	newH, err := newHash(p.Hash)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, keySize)
	var prefix int
	for len(out) < keySize {
		h := newH()
		for i := 0; i < prefix; i++ {
			h.Write([]byte{0})
		}
		switch p.Mode {
		case ModeSimple:
			h.Write(passphrase)
		case ModeSalted:
			h.Write(p.Salt[:])
			h.Write(passphrase)
		case ModeIteratedSalted:
			total := DecodedCount(p.Count)
			block := make([]byte, 0, len(p.Salt)+len(passphrase))
			block = append(block, p.Salt[:]...)
			block = append(block, passphrase...)
			if len(block) == 0 {
				return nil, pgperror.New(pgperror.BadParameters, "empty s2k input block")
			}
			written := 0
			for written < total {
				n := len(block)
				if written+n > total {
					n = total - written
				}
				h.Write(block[:n])
				written += n
			}
		default:
			return nil, pgperror.New(pgperror.BadParameters, "unsupported s2k mode")
		}
		out = append(out, h.Sum(nil)...)
		prefix++
	}
	return out[:keySize], nil
}

// EncodeCount finds the smallest RFC 4880 coded octet whose decoded count is
// at least want, saturating at 255 (the maximum encodable iteration count).
func EncodeCount(want int) uint8 {
	for c := 0; c <= 255; c++ {
		if DecodedCount(uint8(c)) >= want {
			return uint8(c)
		}
	}
	return 255
}
