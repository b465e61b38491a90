package cms

import (
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"

	"github.com/ctlkit/ctlkit/internal/der"
)

// parseCertificate decodes one element of the certificates set. The
// standard library parser is authoritative; when it rejects the DER, a
// minimal structural parse fills in the fields needed for signer matching.
// Either way, a key the standard library does not understand (it has no
// notion of ML-DSA) is recovered from the SubjectPublicKeyInfo directly.
func parseCertificate(v *der.Value) (Certificate, error) {
	if v.Kind != der.KindSequence {
		return Certificate{}, structErr(v.Offset, "certificate must be SEQUENCE")
	}
	cert := Certificate{Raw: v.Full}

	if parsed, err := x509.ParseCertificate(v.Full); err == nil {
		cert.Cert = parsed
		cert.RawIssuer = parsed.RawIssuer
		cert.SerialNumber = parsed.SerialNumber
		cert.SubjectKeyID = parsed.SubjectKeyId
		cert.PublicKey = parsed.PublicKey
		if cert.PublicKey == nil {
			fillPublicKey(v, &cert)
		}
		return cert, nil
	}

	if err := parseCertificateLite(v, &cert); err != nil {
		return Certificate{}, err
	}
	return cert, nil
}

// parseCertificateLite walks the TBSCertificate structure far enough to
// recover serial, issuer and the subject public key.
func parseCertificateLite(v *der.Value, cert *Certificate) error {
	tbs, i, err := tbsFields(v)
	if err != nil {
		return err
	}
	serial := &tbs.Children[i]
	issuer := &tbs.Children[i+2]
	if serial.Kind != der.KindInteger || issuer.Kind != der.KindSequence {
		return structErr(tbs.Offset, "malformed TBSCertificate")
	}
	cert.SerialNumber = serial.Int
	cert.RawIssuer = issuer.Full
	fillPublicKey(v, cert)
	return nil
}

// tbsFields locates the TBSCertificate and the index of its serialNumber
// field (past the optional version element).
func tbsFields(v *der.Value) (*der.Value, int, error) {
	if len(v.Children) == 0 || v.Children[0].Kind != der.KindSequence {
		return nil, 0, structErr(v.Offset, "certificate lacks TBSCertificate")
	}
	tbs := &v.Children[0]
	i := 0
	if i < len(tbs.Children) && tbs.Children[i].IsContext(0) {
		i++ // version [0] EXPLICIT
	}
	// serialNumber, signature, issuer, validity, subject, subjectPublicKeyInfo
	if len(tbs.Children) < i+6 {
		return nil, 0, structErr(tbs.Offset, "TBSCertificate too short")
	}
	return tbs, i, nil
}

// fillPublicKey recovers the subject public key from the raw
// SubjectPublicKeyInfo. An unknown key algorithm leaves PublicKey nil;
// verification against such a certificate reports ErrUnsupportedAlgorithm.
func fillPublicKey(v *der.Value, cert *Certificate) {
	tbs, i, err := tbsFields(v)
	if err != nil {
		return
	}
	spki := &tbs.Children[i+5]
	if spki.Kind != der.KindSequence || len(spki.Children) != 2 {
		return
	}
	alg, err := parseAlgorithmIdentifier(&spki.Children[0])
	if err != nil {
		return
	}
	cert.PublicKeyAlgorithm = alg.Algorithm

	bits := &spki.Children[1]
	if !bits.IsUniversal(der.TagBitString) || len(bits.Bytes) < 1 || bits.Bytes[0] != 0 {
		return
	}
	if pub, err := unmarshalMLDSAPublicKey(alg.Algorithm, bits.Bytes[1:]); err == nil {
		cert.PublicKey = pub
	}
}

// unmarshalMLDSAPublicKey builds a circl ML-DSA public key from raw
// subjectPublicKey bytes.
func unmarshalMLDSAPublicKey(oid asn1.ObjectIdentifier, keyBytes []byte) (crypto.PublicKey, error) {
	switch {
	case oid.Equal(OIDMLDSA44):
		var pub mldsa44.PublicKey
		if err := pub.UnmarshalBinary(keyBytes); err != nil {
			return nil, fmt.Errorf("ML-DSA-44 public key: %w", err)
		}
		return &pub, nil
	case oid.Equal(OIDMLDSA65):
		var pub mldsa65.PublicKey
		if err := pub.UnmarshalBinary(keyBytes); err != nil {
			return nil, fmt.Errorf("ML-DSA-65 public key: %w", err)
		}
		return &pub, nil
	case oid.Equal(OIDMLDSA87):
		var pub mldsa87.PublicKey
		if err := pub.UnmarshalBinary(keyBytes); err != nil {
			return nil, fmt.Errorf("ML-DSA-87 public key: %w", err)
		}
		return &pub, nil
	default:
		return nil, fmt.Errorf("%w: public key algorithm %v", ErrUnsupportedAlgorithm, oid)
	}
}
