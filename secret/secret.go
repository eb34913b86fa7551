// Package secret implements SecretKeyProtection (spec §4.3): the
// RFC 4880 §5.5.3 secret-key-material pipeline — string-to-key-derived
// symmetric protection of the secret MPIs that follow a public key packet's
// body. It uses package s2k and package mpi for the primitives the pack's
// retrieved go-crypto sources do not expose an importable API for
// (SPEC_FULL.md §3), and github.com/ProtonMail/go-crypto/openpgp/packet's
// PublicKeyAlgorithm enumeration to dispatch per-algorithm secret field
// layouts, keeping this package aligned with the teacher's algorithm IDs
// rather than inventing our own.
package secret

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/rand"
	"crypto/sha1"
	"math/big"

	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/zoonfafer/rnp/internal/mpi"
	"github.com/zoonfafer/rnp/pgperror"
	"github.com/zoonfafer/rnp/s2k"
)

// Usage is the RFC 4880 §5.5.3 "string-to-key usage octet".
type Usage byte

const (
	UsageNone            Usage = 0
	UsageEncrypted       Usage = 255
	UsageEncryptedHashed Usage = 254
)

// CipherAlgorithm mirrors the RFC 4880 §9.3 symmetric algorithm IDs this
// package knows how to drive.
type CipherAlgorithm byte

const (
	CipherTripleDES CipherAlgorithm = 2
	CipherAES128    CipherAlgorithm = 7
	CipherAES192    CipherAlgorithm = 8
	CipherAES256    CipherAlgorithm = 9
)

func (c CipherAlgorithm) keyAndBlockSize() (keySize, blockSize int, err error) {
	switch c {
	case CipherTripleDES:
		return 24, des.BlockSize, nil
	case CipherAES128:
		return 16, aes.BlockSize, nil
	case CipherAES192:
		return 24, aes.BlockSize, nil
	case CipherAES256:
		return 32, aes.BlockSize, nil
	default:
		return 0, 0, pgperror.New(pgperror.BadParameters, "unsupported secret-key cipher algorithm")
	}
}

func newBlockCipher(c CipherAlgorithm, key []byte) (cipher.Block, error) {
	switch c {
	case CipherTripleDES:
		return des.NewTripleDESCipher(key)
	case CipherAES128, CipherAES192, CipherAES256:
		return aes.NewCipher(key)
	default:
		return nil, pgperror.New(pgperror.BadParameters, "unsupported secret-key cipher algorithm")
	}
}

// Params describes how one secret key's material is (or, for UsageNone,
// isn't) protected: the usage octet, cipher, S2K specifier and IV. It is
// the direct analogue of RNP's pgp_key_pkt_t protection fields.
type Params struct {
	Usage  Usage
	Cipher CipherAlgorithm
	S2K    s2k.Params
	IV     []byte
}

// Material holds one secret key's protected-or-plain wire bytes plus,
// once Unlock has been called, the decoded per-algorithm secret fields.
// It never caches a plaintext passphrase.
type Material struct {
	Params Params

	// encryptedOrPlain is the wire body that would follow the IV in a
	// secret-key packet: for UsageNone it is the plain MPI-encoded
	// fields plus a 2-byte sum16 checksum; otherwise it is the
	// encrypted image of the same.
	encryptedOrPlain []byte

	// version is the secret-key packet version (3 or 4+); v3 uses a
	// per-MPI CFB resync, v4 and later encrypt the whole body as one
	// CFB stream (RFC 4880 §5.5.3).
	version int

	// fields holds the decoded secret MPIs once Unlock succeeds, keyed
	// by the conventional per-algorithm field name (e.g. "d", "p", "q",
	// "u" for RSA; "x" for DSA/ECDH/ECDSA/EdDSA/SM2/Elgamal).
	fields map[string]*big.Int
}

// NewMaterial wraps the raw wire body of a secret key packet (everything
// after the IV, i.e. the S2K-or-not body) together with its protection
// Params and packet version.
func NewMaterial(params Params, body []byte, version int) *Material {
	return &Material{Params: params, encryptedOrPlain: append([]byte(nil), body...), version: version}
}

func (m *Material) IsProtected() bool { return m.Params.Usage != UsageNone }

// Fields returns the decoded secret MPIs. It is nil until Unlock succeeds,
// and is cleared again by Lock.
func (m *Material) Fields() map[string]*big.Int { return m.fields }

func scrub(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func scrubFields(fields map[string]*big.Int) {
	for _, v := range fields {
		if v != nil {
			v.SetInt64(0)
		}
	}
}

// algoFieldNames lists, in wire order, the secret MPI field names for a
// public-key algorithm, per RFC 4880 §5.5.3.
func algoFieldNames(algo packet.PublicKeyAlgorithm) ([]string, error) {
	switch algo {
	case packet.PubKeyAlgoRSA, packet.PubKeyAlgoRSAEncryptOnly, packet.PubKeyAlgoRSASignOnly:
		return []string{"d", "p", "q", "u"}, nil
	case packet.PubKeyAlgoDSA:
		return []string{"x"}, nil
	case packet.PubKeyAlgoElGamal:
		return []string{"x"}, nil
	case packet.PubKeyAlgoECDSA, packet.PubKeyAlgoECDH, packet.PubKeyAlgoEdDSA,
		packet.PubKeyAlgoX25519, packet.PubKeyAlgoX448, packet.PubKeyAlgoEd25519, packet.PubKeyAlgoEd448:
		return []string{"x"}, nil
	default:
		return nil, pgperror.New(pgperror.BadParameters, "unsupported public key algorithm for secret material")
	}
}

func decodeFields(plain []byte, algo packet.PublicKeyAlgorithm) (map[string]*big.Int, error) {
	names, err := algoFieldNames(algo)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(plain)
	out := make(map[string]*big.Int, len(names))
	for _, name := range names {
		v, err := mpi.Read(r)
		if err != nil {
			return nil, pgperror.Wrap(pgperror.BadFormat, "decoding secret field "+name, err)
		}
		out[name] = v
	}
	if r.Len() != 0 {
		return nil, pgperror.New(pgperror.BadFormat, "secret material has unused trailing bytes")
	}
	return out, nil
}

func encodeFields(fields map[string]*big.Int, names []string) []byte {
	var buf bytes.Buffer
	for _, name := range names {
		buf.Write(mpi.Encode(fields[name]))
	}
	return buf.Bytes()
}

// checksum computes the trailing integrity value RFC 4880 §5.5.3 attaches
// to the cleartext field image: a 2-byte additive sum16 for UsageNone and
// UsageEncrypted, or a 20-byte SHA-1 digest for UsageEncryptedHashed.
func checksum(usage Usage, plain []byte) []byte {
	if usage == UsageEncryptedHashed {
		h := sha1.Sum(plain)
		return h[:]
	}
	var sum uint16
	for _, b := range plain {
		sum += uint16(b)
	}
	return []byte{byte(sum >> 8), byte(sum)}
}

func checksumLen(usage Usage) int {
	if usage == UsageEncryptedHashed {
		return sha1.Size
	}
	return 2
}

// Unlock decrypts (if protected) and decodes m's secret fields for algo,
// verifying the attached checksum. On success Fields() becomes non-nil.
// passphrase must be empty for an unprotected (UsageNone) material.
func Unlock(m *Material, algo packet.PublicKeyAlgorithm, passphrase []byte) error {
	plain, err := decryptBody(m, passphrase)
	if err != nil {
		return err
	}
	defer scrub(plain)

	clen := checksumLen(m.Params.Usage)
	if len(plain) < clen {
		return pgperror.New(pgperror.BadFormat, "secret material shorter than its checksum")
	}
	body, sum := plain[:len(plain)-clen], plain[len(plain)-clen:]
	want := checksum(m.Params.Usage, body)
	if !bytes.Equal(sum, want) {
		return pgperror.New(pgperror.DecryptFailed, "secret key checksum mismatch")
	}

	fields, err := decodeFields(body, algo)
	if err != nil {
		return err
	}
	m.fields = fields
	return nil
}

// decryptBody returns the cleartext field-image+checksum bytes, performing
// S2K derivation and CFB decryption when the material is protected.
func decryptBody(m *Material, passphrase []byte) ([]byte, error) {
	if m.Params.Usage == UsageNone {
		return append([]byte(nil), m.encryptedOrPlain...), nil
	}

	keySize, blockSize, err := m.Params.Cipher.keyAndBlockSize()
	if err != nil {
		return nil, err
	}
	key, err := s2k.Derive(m.Params.S2K, passphrase, keySize)
	if err != nil {
		return nil, err
	}
	defer scrub(key)

	block, err := newBlockCipher(m.Params.Cipher, key)
	if err != nil {
		return nil, err
	}
	if len(m.Params.IV) != blockSize {
		return nil, pgperror.New(pgperror.BadFormat, "iv length does not match cipher block size")
	}

	plain := make([]byte, len(m.encryptedOrPlain))

	if m.version < 4 {
		// RFC 4880 §5.5.3 legacy (v2/v3) format: each MPI is individually
		// CFB-decrypted with the stream resynced at each MPI boundary.
		return decryptV3(block, m.Params.IV, m.encryptedOrPlain)
	}

	stream := cipher.NewCFBDecrypter(block, m.Params.IV)
	stream.XORKeyStream(plain, m.encryptedOrPlain)
	return plain, nil
}

// decryptV3 reproduces the legacy per-MPI CFB resync: decrypt the 2-byte
// bit-length prefix, then the indicated number of data bytes, each MPI
// restarting the CFB keystream from the packet IV (RNP's pgp_key_unprotect
// treats this as a distinct code path from the v4 single-pass case; see
// pgp-key.cpp).
func decryptV3(block cipher.Block, iv []byte, encrypted []byte) ([]byte, error) {
	out := make([]byte, 0, len(encrypted))
	r := bytes.NewReader(encrypted)
	for r.Len() > 0 {
		stream := cipher.NewCFBDecrypter(block, iv)

		var lenBytes [2]byte
		if _, err := readFull(r, lenBytes[:], stream); err != nil {
			return nil, err
		}
		out = append(out, lenBytes[:]...)
		bits := int(lenBytes[0])<<8 | int(lenBytes[1])
		byteLen := (bits + 7) / 8

		data := make([]byte, byteLen)
		if _, err := readFull(r, data, stream); err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

func readFull(r *bytes.Reader, dst []byte, stream cipher.Stream) (int, error) {
	enc := make([]byte, len(dst))
	n, err := r.Read(enc)
	if n < len(dst) || err != nil {
		return n, pgperror.New(pgperror.BadFormat, "truncated v3 secret material")
	}
	stream.XORKeyStream(dst, enc)
	return n, nil
}

// Lock scrubs any decoded plaintext fields, returning the material to its
// locked (Fields() == nil) state. It never touches encryptedOrPlain, so a
// previously unlocked Material can always be re-unlocked with the same
// passphrase.
func Lock(m *Material) {
	scrubFields(m.fields)
	m.fields = nil
}

// Protect re-encrypts m in place using newPassphrase, forcing
// UsageEncryptedHashed with an iterated-and-salted S2K (RNP's
// pgp_key_protect always upgrades to this combination regardless of the
// key's previous protection; see pgp-key.cpp's pgp_key_protect). m must
// already be unlocked (Fields() != nil).
func Protect(m *Material, algo packet.PublicKeyAlgorithm, newPassphrase []byte, cipherAlgo CipherAlgorithm, hashAlgo s2k.HashAlgorithm, iterations int) error {
	if m.fields == nil {
		return pgperror.New(pgperror.BadState, "cannot protect a locked key")
	}
	names, err := algoFieldNames(algo)
	if err != nil {
		return err
	}
	plainFields := encodeFields(m.fields, names)
	plain := append(plainFields, checksum(UsageEncryptedHashed, plainFields)...)
	defer scrub(plain)

	var salt [8]byte
	if _, err := rand.Read(salt[:]); err != nil {
		return pgperror.Wrap(pgperror.RNG, "generating s2k salt", err)
	}
	params := s2k.Params{Mode: s2k.ModeIteratedSalted, Hash: hashAlgo, Salt: salt, Count: s2k.EncodeCount(iterations)}

	keySize, blockSize, err := cipherAlgo.keyAndBlockSize()
	if err != nil {
		return err
	}
	key, err := s2k.Derive(params, newPassphrase, keySize)
	if err != nil {
		return err
	}
	defer scrub(key)

	iv := make([]byte, blockSize)
	if _, err := rand.Read(iv); err != nil {
		return pgperror.Wrap(pgperror.RNG, "generating secret key iv", err)
	}

	block, err := newBlockCipher(cipherAlgo, key)
	if err != nil {
		return err
	}
	cipherText := make([]byte, len(plain))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(cipherText, plain)

	m.Params = Params{Usage: UsageEncryptedHashed, Cipher: cipherAlgo, S2K: params, IV: iv}
	m.encryptedOrPlain = cipherText
	m.version = 4
	return nil
}

// Unprotect decrypts m with passphrase and rewrites it as UsageNone (plain,
// sum16-checksummed material), then scrubs the fields it decoded in the
// process. The material is left locked: callers must call Unlock again
// (now passphrase-free, since Usage is now None) to obtain usable material.
func Unprotect(m *Material, algo packet.PublicKeyAlgorithm, passphrase []byte) error {
	if err := Unlock(m, algo, passphrase); err != nil {
		return err
	}
	names, err := algoFieldNames(algo)
	if err != nil {
		return err
	}
	plainFields := encodeFields(m.fields, names)
	plain := append(plainFields, checksum(UsageNone, plainFields)...)

	m.Params = Params{Usage: UsageNone}
	m.encryptedOrPlain = plain
	Lock(m)
	return nil
}
