// Package selfcert implements SelfCertBuilder (spec §4.5): constructing
// the self-certification that binds a user-id to a primary key, and the
// subkey-binding signature (with its embedded cross-signature when the
// subkey asserts signing capability) that binds a subkey to a primary
// key. Both builders are grounded directly on
// openpgp/v2/key_generation.go's addUserId/AddSigningSubkey and
// openpgp/v2/write.go's createSignaturePacket/adaptHashToSigningKey,
// adapted to build signatures over already-existing keys (this module's
// domain) rather than as part of fresh key generation (the teacher's).
package selfcert

import (
	"crypto"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/zoonfafer/rnp/keyobject"
	"github.com/zoonfafer/rnp/pgperror"
)

// Builder constructs self-certifications and subkey bindings for an
// already-parsed primary key. New replaces a nil Config with
// &packet.Config{}; a Builder built without New passes its nil Config on,
// which packet.Config's nil-safe accessors treat as all defaults.
type Builder struct {
	Config *packet.Config
}

func New(config *packet.Config) *Builder {
	if config == nil {
		config = &packet.Config{}
	}
	return &Builder{Config: config}
}

func (b *Builder) now() time.Time {
	if b.Config != nil {
		return b.Config.Now()
	}
	return time.Now()
}

// newSignaturePacket builds the common signature-packet skeleton shared
// by every self-certification/binding this package produces, adapting the
// configured hash algorithm to one the signer's public-key algorithm can
// actually use (spec §4.5: "adjust the hash algorithm for DSA/ECDSA keys
// whose curve/group demands a minimum strength"), grounded on
// adaptHashToSigningKey in openpgp/v2/write.go.
func newSignaturePacket(signer *packet.PublicKey, sigType packet.SignatureType, config *packet.Config) *packet.Signature {
	return &packet.Signature{
		Version:           signer.Version,
		SigType:           sigType,
		PubKeyAlgo:        signer.PubKeyAlgo,
		Hash:              adaptHash(signer, config),
		CreationTime:      config.Now(),
		IssuerKeyId:       &signer.KeyId,
		IssuerFingerprint: signer.Fingerprint,
	}
}

// adaptHash raises the configured hash to the minimum strength a DSA/ECDSA
// signer's key size requires when the configured one is weaker, and keeps
// the configured hash otherwise and for every other algorithm (RSA, EdDSA,
// Ed25519/Ed448).
func adaptHash(signer *packet.PublicKey, config *packet.Config) crypto.Hash {
	want := config.Hash()
	switch signer.PubKeyAlgo {
	case packet.PubKeyAlgoDSA, packet.PubKeyAlgoECDSA:
		if bits, err := signer.BitLength(); err == nil {
			if min := minimumHashForBits(bits); min != 0 && hashStrength(want) < hashStrength(min) {
				return min
			}
		}
	}
	return want
}

func hashStrength(h crypto.Hash) int {
	switch h {
	case crypto.SHA224:
		return 224
	case crypto.SHA256:
		return 256
	case crypto.SHA384:
		return 384
	case crypto.SHA512:
		return 512
	default:
		return 0
	}
}

func minimumHashForBits(bits uint16) crypto.Hash {
	switch {
	case bits <= 1024:
		return crypto.SHA1
	case bits <= 2048:
		return crypto.SHA224
	case bits <= 3072:
		return crypto.SHA256
	default:
		return crypto.SHA512
	}
}

// UserIDCert describes the hashed-subpacket content of the certification
// to build, mirroring writeKeyProperties' fields.
type UserIDCert struct {
	Primary              bool
	KeyLifetime          uint32 // seconds; 0 means no expiration
	KeyFlags             keyobject.KeyFlags
	PreferredHashes       []uint8
	PreferredSymmetric    []uint8
	PreferredCompression  []uint8
}

// CertifyUserID builds and signs a self-certification (RFC 4880
// SigTypePositiveCert) binding userID to primary, signed by primaryPriv.
func (b *Builder) CertifyUserID(primary *packet.PublicKey, primaryPriv *packet.PrivateKey, userID string, spec UserIDCert) (*packet.Signature, error) {
	if primary == nil || primaryPriv == nil {
		return nil, pgperror.New(pgperror.BadParameters, "certifying a user id requires the primary key pair")
	}
	sig := newSignaturePacket(primary, packet.SigTypePositiveCert, b.Config)
	isPrimary := spec.Primary
	sig.IsPrimaryId = &isPrimary
	if spec.KeyLifetime != 0 {
		lifetime := spec.KeyLifetime
		sig.KeyLifetimeSecs = &lifetime
	}
	if !spec.KeyFlags.IsZero() {
		sig.FlagsValid = true
		sig.FlagCertify = spec.KeyFlags.Certify
		sig.FlagSign = spec.KeyFlags.Sign
		sig.FlagEncryptCommunications = spec.KeyFlags.EncryptCommunication
		sig.FlagEncryptStorage = spec.KeyFlags.EncryptStorage
		sig.FlagAuthenticate = spec.KeyFlags.Authenticate
	}
	if len(spec.PreferredHashes) > 0 {
		sig.PreferredHash = append([]uint8(nil), spec.PreferredHashes...)
	}
	if len(spec.PreferredSymmetric) > 0 {
		sig.PreferredSymmetric = append([]uint8(nil), spec.PreferredSymmetric...)
	}
	if len(spec.PreferredCompression) > 0 {
		sig.PreferredCompression = append([]uint8(nil), spec.PreferredCompression...)
	}

	if err := sig.SignUserId(userID, primary, primaryPriv, b.Config); err != nil {
		return nil, pgperror.Wrap(pgperror.BadState, "signing user id certification", err)
	}
	return sig, nil
}

// SubkeyBinding describes the hashed-subpacket content of the binding to
// build.
type SubkeyBinding struct {
	KeyLifetime uint32
	KeyFlags    keyobject.KeyFlags
}

// BindSubkey builds and signs a subkey-binding signature (RFC 4880
// SigTypeSubkeyBinding) over subkey, signed by primaryPriv. When spec's
// flags grant signing capability, a primary-key-binding cross-signature
// (RFC 4880 SigTypePrimaryKeyBinding) signed by subkeyPriv is embedded,
// per RFC 4880 §5.2.3.21's "Primary Key Binding Signature" requirement
// for signing-capable subkeys, grounded on AddSigningSubkey in
// key_generation.go.
func (b *Builder) BindSubkey(primary *packet.PublicKey, primaryPriv *packet.PrivateKey, subkey *packet.PublicKey, subkeyPriv *packet.PrivateKey, spec SubkeyBinding) (*packet.Signature, error) {
	if primary == nil || primaryPriv == nil || subkey == nil {
		return nil, pgperror.New(pgperror.BadParameters, "binding a subkey requires the primary key pair and the subkey's public key")
	}
	sig := newSignaturePacket(primary, packet.SigTypeSubkeyBinding, b.Config)
	if spec.KeyLifetime != 0 {
		lifetime := spec.KeyLifetime
		sig.KeyLifetimeSecs = &lifetime
	}
	sig.FlagsValid = true
	sig.FlagSign = spec.KeyFlags.Sign
	sig.FlagCertify = spec.KeyFlags.Certify
	sig.FlagEncryptCommunications = spec.KeyFlags.EncryptCommunication
	sig.FlagEncryptStorage = spec.KeyFlags.EncryptStorage
	sig.FlagAuthenticate = spec.KeyFlags.Authenticate

	if spec.KeyFlags.Sign {
		if subkeyPriv == nil {
			return nil, pgperror.New(pgperror.BadParameters, "a signing-capable subkey binding requires the subkey's private key for its cross-signature")
		}
		sig.EmbeddedSignature = newSignaturePacket(subkey, packet.SigTypePrimaryKeyBinding, b.Config)
		if err := sig.EmbeddedSignature.CrossSignKey(subkey, primary, subkeyPriv, b.Config); err != nil {
			return nil, pgperror.Wrap(pgperror.BadState, "building subkey cross-signature", err)
		}
	}

	if err := sig.SignKey(subkey, primaryPriv, b.Config); err != nil {
		return nil, pgperror.Wrap(pgperror.BadState, "signing subkey binding", err)
	}
	return sig, nil
}
