package cms

import (
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/ctlkit/ctlkit/internal/der"
)

// AlgorithmIdentifier names an algorithm and its optional parameters.
type AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters []byte // raw TLV of the parameters, nil if absent
}

// Certificate is one certificate embedded in the SignedData set.
//
// Cert is nil when the standard library cannot parse the DER (post-quantum
// certificates, for instance); the matching fields are then filled by a
// minimal structural parse so the certificate can still anchor a signer.
type Certificate struct {
	Raw  []byte
	Cert *x509.Certificate

	RawIssuer    []byte
	SerialNumber *big.Int
	SubjectKeyID []byte

	PublicKey          crypto.PublicKey
	PublicKeyAlgorithm asn1.ObjectIdentifier
}

// Attribute is one signed attribute: an OID and its SET OF values.
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values []der.Value
	Raw    []byte // span of the whole Attribute SEQUENCE
}

// SignerInfo is one signature block within the envelope (RFC 5652 5.3).
type SignerInfo struct {
	Version int

	// Signer identification: either issuer+serial (version 1) or
	// subject key identifier (version 3).
	RawIssuer    []byte
	SerialNumber *big.Int
	SubjectKeyID []byte

	DigestAlgorithm    AlgorithmIdentifier
	SignatureAlgorithm AlgorithmIdentifier
	Signature          []byte

	// SignedAttrs holds the parsed signed attributes in encoded order.
	// SignedAttrsRaw is the original span of the [0] IMPLICIT element,
	// retained so verification can re-encode it as an EXPLICIT SET.
	SignedAttrs    []Attribute
	SignedAttrsRaw []byte
}

// SignedData is the decoded envelope: a pure projection of the DER tree,
// with no verification performed.
type SignedData struct {
	Version          int
	DigestAlgorithms []AlgorithmIdentifier

	// Encapsulated content: its declared type and raw bytes. HasContent
	// distinguishes an absent eContent from a present empty one.
	ContentType asn1.ObjectIdentifier
	Content     []byte
	HasContent  bool

	Certificates []Certificate
	SignerInfos  []SignerInfo

	Raw []byte // span of the outer ContentInfo
}

// Supported SignedData versions. CTLs in the wild are version 1; version 3
// appears when a signer is identified by subject key identifier.
func supportedVersion(v int) bool { return v == 1 || v == 3 }

// ParseSignedData decodes a DER buffer holding a ContentInfo with
// pkcs7-signedData content into a SignedData.
func ParseSignedData(buf []byte) (*SignedData, error) {
	root, err := der.Parse(buf)
	if err != nil {
		return nil, NewCMSError("parse", err)
	}
	return ParseSignedDataValue(root)
}

// ParseSignedDataValue projects an already-decoded ContentInfo tree into a
// SignedData. The tree must originate from the der package so that byte
// spans reference the original buffer.
func ParseSignedDataValue(root *der.Value) (*SignedData, error) {
	sd, err := parseContentInfo(root)
	if err != nil {
		return nil, NewCMSError("parse", err)
	}
	return sd, nil
}

func parseContentInfo(root *der.Value) (*SignedData, error) {
	if root.Kind != der.KindSequence || len(root.Children) != 2 {
		return nil, structErr(root.Offset, "ContentInfo must be SEQUENCE of 2")
	}
	oid := &root.Children[0]
	if oid.Kind != der.KindOID {
		return nil, structErr(oid.Offset, "ContentInfo content-type must be OID")
	}
	if !oid.OID.Equal(OIDSignedData) {
		return nil, structErrf(oid.Offset, "content-type is %v, want pkcs7-signedData", oid.OID)
	}
	wrapper := &root.Children[1]
	if !wrapper.IsContext(0) || !wrapper.Constructed() || len(wrapper.Children) != 1 {
		return nil, structErr(wrapper.Offset, "ContentInfo content must be [0] EXPLICIT")
	}

	sd, err := parseSignedData(&wrapper.Children[0])
	if err != nil {
		return nil, err
	}
	sd.Raw = root.Full
	return sd, nil
}

func parseSignedData(v *der.Value) (*SignedData, error) {
	if v.Kind != der.KindSequence || len(v.Children) < 4 {
		return nil, structErr(v.Offset, "SignedData must be SEQUENCE of at least 4")
	}
	sd := &SignedData{}
	i := 0

	version := &v.Children[i]
	if version.Kind != der.KindInteger || !version.Int.IsInt64() {
		return nil, structErr(version.Offset, "SignedData version must be INTEGER")
	}
	sd.Version = int(version.Int.Int64())
	if !supportedVersion(sd.Version) {
		return nil, fmt.Errorf("%w: SignedData version %d", ErrUnsupportedVersion, sd.Version)
	}
	i++

	algs := &v.Children[i]
	if algs.Kind != der.KindSet {
		return nil, structErr(algs.Offset, "digestAlgorithms must be SET")
	}
	for j := range algs.Children {
		alg, err := parseAlgorithmIdentifier(&algs.Children[j])
		if err != nil {
			return nil, err
		}
		sd.DigestAlgorithms = append(sd.DigestAlgorithms, alg)
	}
	i++

	if i >= len(v.Children) {
		return nil, structErr(v.End(), "SignedData ends before encapContentInfo")
	}
	if err := parseEncapContentInfo(&v.Children[i], sd); err != nil {
		return nil, err
	}
	i++

	// certificates [0] IMPLICIT OPTIONAL
	if i < len(v.Children) && v.Children[i].IsContext(0) {
		certs := &v.Children[i]
		for j := range certs.Children {
			cert, err := parseCertificate(&certs.Children[j])
			if err != nil {
				return nil, err
			}
			sd.Certificates = append(sd.Certificates, cert)
		}
		i++
	}

	// crls [1] IMPLICIT OPTIONAL: present in the grammar, unused here.
	if i < len(v.Children) && v.Children[i].IsContext(1) {
		i++
	}

	if i >= len(v.Children) {
		return nil, structErr(v.End(), "SignedData ends before signerInfos")
	}
	signers := &v.Children[i]
	if signers.Kind != der.KindSet {
		return nil, structErr(signers.Offset, "signerInfos must be SET")
	}
	for j := range signers.Children {
		si, err := parseSignerInfo(&signers.Children[j])
		if err != nil {
			return nil, err
		}
		sd.SignerInfos = append(sd.SignerInfos, si)
	}
	i++
	if i != len(v.Children) {
		return nil, structErr(v.Children[i].Offset, "unexpected element after signerInfos")
	}

	return sd, nil
}

func parseEncapContentInfo(v *der.Value, sd *SignedData) error {
	if v.Kind != der.KindSequence || len(v.Children) < 1 || len(v.Children) > 2 {
		return structErr(v.Offset, "encapContentInfo must be SEQUENCE of 1 or 2")
	}
	ct := &v.Children[0]
	if ct.Kind != der.KindOID {
		return structErr(ct.Offset, "eContentType must be OID")
	}
	sd.ContentType = ct.OID

	if len(v.Children) == 1 {
		return nil
	}
	wrapper := &v.Children[1]
	if !wrapper.IsContext(0) || !wrapper.Constructed() || len(wrapper.Children) != 1 {
		return structErr(wrapper.Offset, "eContent must be [0] EXPLICIT")
	}
	inner := &wrapper.Children[0]
	sd.HasContent = true
	if inner.Kind == der.KindOctetString {
		sd.Content = inner.Bytes
	} else {
		// Microsoft encodes CTL content as a bare SEQUENCE under [0],
		// without the CMS OCTET STRING wrapper. Keep the whole TLV.
		sd.Content = inner.Full
	}
	return nil
}

func parseAlgorithmIdentifier(v *der.Value) (AlgorithmIdentifier, error) {
	if v.Kind != der.KindSequence || len(v.Children) < 1 || len(v.Children) > 2 {
		return AlgorithmIdentifier{}, structErr(v.Offset, "AlgorithmIdentifier must be SEQUENCE of 1 or 2")
	}
	oid := &v.Children[0]
	if oid.Kind != der.KindOID {
		return AlgorithmIdentifier{}, structErr(oid.Offset, "algorithm must be OID")
	}
	alg := AlgorithmIdentifier{Algorithm: oid.OID}
	if len(v.Children) == 2 {
		alg.Parameters = v.Children[1].Full
	}
	return alg, nil
}

func parseSignerInfo(v *der.Value) (SignerInfo, error) {
	var si SignerInfo
	if v.Kind != der.KindSequence || len(v.Children) < 5 {
		return si, structErr(v.Offset, "SignerInfo must be SEQUENCE of at least 5")
	}
	i := 0

	version := &v.Children[i]
	if version.Kind != der.KindInteger || !version.Int.IsInt64() {
		return si, structErr(version.Offset, "SignerInfo version must be INTEGER")
	}
	si.Version = int(version.Int.Int64())
	if !supportedVersion(si.Version) {
		return si, fmt.Errorf("%w: SignerInfo version %d", ErrUnsupportedVersion, si.Version)
	}
	i++

	sid := &v.Children[i]
	switch {
	case sid.Kind == der.KindSequence:
		// IssuerAndSerialNumber ::= SEQUENCE { issuer Name, serialNumber INTEGER }
		if len(sid.Children) != 2 || sid.Children[0].Kind != der.KindSequence ||
			sid.Children[1].Kind != der.KindInteger {
			return si, structErr(sid.Offset, "malformed IssuerAndSerialNumber")
		}
		si.RawIssuer = sid.Children[0].Full
		si.SerialNumber = sid.Children[1].Int
	case sid.IsContext(0) && !sid.Constructed():
		// subjectKeyIdentifier [0] IMPLICIT OCTET STRING
		si.SubjectKeyID = sid.Bytes
	default:
		return si, structErr(sid.Offset, "malformed SignerIdentifier")
	}
	i++

	digestAlg, err := parseAlgorithmIdentifier(&v.Children[i])
	if err != nil {
		return si, err
	}
	si.DigestAlgorithm = digestAlg
	i++

	// signedAttrs [0] IMPLICIT OPTIONAL
	if v.Children[i].IsContext(0) {
		attrs := &v.Children[i]
		if !attrs.Constructed() {
			return si, structErr(attrs.Offset, "signedAttrs must be constructed")
		}
		si.SignedAttrsRaw = attrs.Full
		seen := make(map[string]bool, len(attrs.Children))
		for j := range attrs.Children {
			attr, err := parseAttribute(&attrs.Children[j])
			if err != nil {
				return si, err
			}
			key := attr.Type.String()
			if seen[key] {
				return si, fmt.Errorf("%w: %s", ErrDuplicateAttribute, key)
			}
			seen[key] = true
			si.SignedAttrs = append(si.SignedAttrs, attr)
		}
		i++
	}

	if i >= len(v.Children) {
		return si, structErr(v.End(), "SignerInfo ends before signatureAlgorithm")
	}
	sigAlg, err := parseAlgorithmIdentifier(&v.Children[i])
	if err != nil {
		return si, err
	}
	si.SignatureAlgorithm = sigAlg
	i++

	if i >= len(v.Children) {
		return si, structErr(v.End(), "SignerInfo ends before signature")
	}
	sig := &v.Children[i]
	if sig.Kind != der.KindOctetString {
		return si, structErr(sig.Offset, "signature must be OCTET STRING")
	}
	si.Signature = sig.Bytes
	i++

	// unsignedAttrs [1] IMPLICIT OPTIONAL: tolerated, ignored.
	if i < len(v.Children) && v.Children[i].IsContext(1) {
		i++
	}
	if i != len(v.Children) {
		return si, structErr(v.Children[i].Offset, "unexpected element in SignerInfo")
	}

	return si, nil
}

func parseAttribute(v *der.Value) (Attribute, error) {
	if v.Kind != der.KindSequence || len(v.Children) != 2 {
		return Attribute{}, structErr(v.Offset, "Attribute must be SEQUENCE of 2")
	}
	oid := &v.Children[0]
	set := &v.Children[1]
	if oid.Kind != der.KindOID || set.Kind != der.KindSet {
		return Attribute{}, structErr(v.Offset, "Attribute must be OID plus SET")
	}
	return Attribute{Type: oid.OID, Values: set.Children, Raw: v.Full}, nil
}

// FindAttribute returns the attribute with the given OID, or nil.
func FindAttribute(attrs []Attribute, oid asn1.ObjectIdentifier) *Attribute {
	for i := range attrs {
		if attrs[i].Type.Equal(oid) {
			return &attrs[i]
		}
	}
	return nil
}

func structErr(offset int, msg string) error {
	return fmt.Errorf("%w: %s (offset %d)", ErrUnexpectedStructure, msg, offset)
}

func structErrf(offset int, format string, args ...any) error {
	return fmt.Errorf("%w: %s (offset %d)", ErrUnexpectedStructure, fmt.Sprintf(format, args...), offset)
}
