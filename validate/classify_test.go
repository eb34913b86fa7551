package validate

import (
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		sigType packet.SignatureType
		want    SignatureClass
	}{
		{"generic cert", packet.SigTypeGenericCert, ClassSelfCertification},
		{"persona cert", packet.SigTypePersonaCert, ClassSelfCertification},
		{"casual cert", packet.SigTypeCasualCert, ClassSelfCertification},
		{"positive cert", packet.SigTypePositiveCert, ClassSelfCertification},
		{"key revocation", packet.SigTypeKeyRevocation, ClassKeyRevocation},
		{"subkey binding", packet.SigTypeSubkeyBinding, ClassSubkeyBinding},
		{"subkey revocation", packet.SigTypeSubkeyRevocation, ClassSubkeyRevocation},
		{"direct key", packet.SigTypeDirectSignature, ClassDirectKey},
		{"binary data signature", packet.SigTypeBinary, ClassUnknown},
	}
	for _, tc := range cases {
		sig := &packet.Signature{SigType: tc.sigType}
		if got := Classify(sig); got != tc.want {
			t.Errorf("%s: Classify = %v, want %v", tc.name, got, tc.want)
		}
	}
}
