package keyobject

import "github.com/ProtonMail/go-crypto/openpgp/packet"

// DefaultCapabilities returns the key-flags a primary or subkey of the
// given public-key algorithm is capable of carrying absent an explicit
// key-flags subpacket, per spec §4.6's algorithm capability table. Sign-
// only and encrypt-only algorithm variants are narrowed accordingly;
// general-purpose algorithms (RSA, the NIST/Brainpool ECDH+ECDSA pairing
// under EdDSA/ECDH) default to every capability they're mathematically
// able to provide, matching how go-crypto's own key generation chooses
// default flags per algorithm in key_generation.go.
func DefaultCapabilities(algo packet.PublicKeyAlgorithm) KeyFlags {
	switch algo {
	case packet.PubKeyAlgoRSA:
		return KeyFlags{Certify: true, Sign: true, EncryptCommunication: true, EncryptStorage: true, Authenticate: true}
	case packet.PubKeyAlgoRSASignOnly:
		return KeyFlags{Certify: true, Sign: true}
	case packet.PubKeyAlgoRSAEncryptOnly:
		return KeyFlags{EncryptCommunication: true, EncryptStorage: true}
	case packet.PubKeyAlgoDSA:
		return KeyFlags{Certify: true, Sign: true, Authenticate: true}
	case packet.PubKeyAlgoElGamal:
		return KeyFlags{EncryptCommunication: true, EncryptStorage: true}
	case packet.PubKeyAlgoECDSA, packet.PubKeyAlgoEdDSA, packet.PubKeyAlgoEd25519, packet.PubKeyAlgoEd448:
		return KeyFlags{Certify: true, Sign: true, Authenticate: true}
	case packet.PubKeyAlgoECDH, packet.PubKeyAlgoX25519, packet.PubKeyAlgoX448:
		return KeyFlags{EncryptCommunication: true, EncryptStorage: true}
	default:
		return KeyFlags{}
	}
}

// Intersect reports the capabilities both f and other grant, used by
// FindSuitableKey to check that a key grants every requested capability.
func (f KeyFlags) Intersect(other KeyFlags) KeyFlags {
	return KeyFlags{
		Certify:              f.Certify && other.Certify,
		Sign:                 f.Sign && other.Sign,
		EncryptCommunication: f.EncryptCommunication && other.EncryptCommunication,
		EncryptStorage:       f.EncryptStorage && other.EncryptStorage,
		Authenticate:         f.Authenticate && other.Authenticate,
	}
}

func (f KeyFlags) IsZero() bool {
	return !f.Certify && !f.Sign && !f.EncryptCommunication && !f.EncryptStorage && !f.Authenticate
}
