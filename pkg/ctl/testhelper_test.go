package ctl

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/ctlkit/ctlkit/pkg/cms"
)

// Marshalling mirrors used to construct trust-list DER with encoding/asn1.
type testAttr struct {
	Type   asn1.ObjectIdentifier
	Values [][]byte `asn1:"set"`
}

type testSubject struct {
	ID    []byte
	Attrs []asn1.RawValue `asn1:"set,omitempty"`
}

type testExtension struct {
	ID       asn1.ObjectIdentifier
	Critical bool `asn1:"optional"`
	Value    []byte
}

var oidSHA1Digest = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}

// trustListConfig controls buildTrustListContent. The zero value yields a
// minimal well-formed list with no entries.
type trustListConfig struct {
	version        *int // explicit version INTEGER when set
	subjectUsage   []asn1.ObjectIdentifier
	listIdentifier []byte
	sequenceNumber *big.Int
	thisUpdate     time.Time
	nextUpdate     *time.Time
	noEntries      bool     // omit the trustedSubjects SEQUENCE entirely
	entries        [][]byte // encoded TrustedSubject TLVs
	extensions     []testExtension
}

// buildTrustListContent assembles a CertificateTrustList TLV field by
// field, so tests control exactly which optional components appear.
func buildTrustListContent(t *testing.T, cfg trustListConfig) []byte {
	t.Helper()
	if cfg.subjectUsage == nil {
		cfg.subjectUsage = []asn1.ObjectIdentifier{OIDRootListSigner}
	}
	if cfg.thisUpdate.IsZero() {
		cfg.thisUpdate = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	}

	var body []byte
	if cfg.version != nil {
		body = append(body, mustMarshal(t, *cfg.version)...)
	}
	body = append(body, mustMarshal(t, cfg.subjectUsage)...)
	if cfg.listIdentifier != nil {
		body = append(body, mustMarshal(t, cfg.listIdentifier)...)
	}
	if cfg.sequenceNumber != nil {
		body = append(body, mustMarshal(t, cfg.sequenceNumber)...)
	}
	body = append(body, mustMarshal(t, cfg.thisUpdate)...)
	if cfg.nextUpdate != nil {
		body = append(body, mustMarshal(t, *cfg.nextUpdate)...)
	}
	body = append(body, mustMarshal(t, pkix.AlgorithmIdentifier{Algorithm: oidSHA1Digest})...)
	if !cfg.noEntries {
		var subjects []byte
		for _, e := range cfg.entries {
			subjects = append(subjects, e...)
		}
		body = append(body, encodeTLV(0x30, subjects)...)
	}
	if cfg.extensions != nil {
		exts := mustMarshal(t, cfg.extensions)
		body = append(body, encodeTLV(0xa0, exts)...)
	}
	return encodeTLV(0x30, body)
}

// buildEntry encodes one TrustedSubject with the given attributes. Each
// attribute value is wrapped in an OCTET STRING, as on real lists.
func buildEntry(t *testing.T, subjectID []byte, attrs ...testAttr) []byte {
	t.Helper()
	sub := testSubject{ID: subjectID}
	for _, a := range attrs {
		sub.Attrs = append(sub.Attrs, asn1.RawValue{FullBytes: mustMarshal(t, a)})
	}
	return mustMarshal(t, sub)
}

// encodeUTF16LE encodes s as NUL-terminated UTF-16LE, the friendly-name
// value encoding.
func encodeUTF16LE(s string) []byte {
	u := utf16.Encode([]rune(s))
	out := make([]byte, 0, (len(u)+1)*2)
	for _, c := range u {
		out = append(out, byte(c), byte(c>>8))
	}
	return append(out, 0, 0)
}

// encodeTLV wraps content in a definite-length TLV with the given tag.
func encodeTLV(tag byte, content []byte) []byte {
	n := len(content)
	var header []byte
	switch {
	case n < 0x80:
		header = []byte{tag, byte(n)}
	case n < 0x100:
		header = []byte{tag, 0x81, byte(n)}
	default:
		header = []byte{tag, 0x82, byte(n >> 8), byte(n)}
	}
	return append(header, content...)
}

// Envelope construction, mirroring the SignedData grammar.
type testContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue
}

type testSignedData struct {
	Version          int
	DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
	EncapContentInfo testEncapContent
	Certificates     asn1.RawValue    `asn1:"optional"`
	SignerInfos      []testSignerInfo `asn1:"set"`
}

type testEncapContent struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"optional"`
}

type testIssuerAndSerial struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

type testSignedAttr struct {
	Type   asn1.ObjectIdentifier
	Values []asn1.RawValue `asn1:"set"`
}

type testSignerInfo struct {
	Version            int
	SID                testIssuerAndSerial
	DigestAlgorithm    pkix.AlgorithmIdentifier
	SignedAttrs        []testSignedAttr `asn1:"optional,omitempty,tag:0"`
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          []byte
}

// buildSignedCTL wraps trust-list content in a signed envelope: ECDSA
// P-256 signer, SHA-256 digest, signed attributes, content in the bare
// Microsoft style (no OCTET STRING wrapper).
func buildSignedCTL(t *testing.T, content []byte) []byte {
	return buildSignedEnvelope(t, OIDCertTrustList, content, true)
}

func buildSignedEnvelope(t *testing.T, contentType asn1.ObjectIdentifier, content []byte, hasContent bool) []byte {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate ECDSA key: %v", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("Failed to generate serial number: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "Trust List Test Signer"},
		NotBefore:    time.Now().Add(-1 * time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}

	digest := sha256.Sum256(content)
	attrs := []testSignedAttr{
		{Type: cms.OIDContentType, Values: []asn1.RawValue{{FullBytes: mustMarshal(t, contentType)}}},
		{Type: cms.OIDMessageDigest, Values: []asn1.RawValue{{FullBytes: mustMarshal(t, digest[:])}}},
	}
	attrSet := mustMarshal(t, attrs)
	attrSet[0] = 0x31 // signature covers the EXPLICIT SET form
	attrDigest := sha256.Sum256(attrSet)
	sig, err := ecdsa.SignASN1(rand.Reader, priv, attrDigest[:])
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}

	sd := testSignedData{
		Version:          1,
		DigestAlgorithms: []pkix.AlgorithmIdentifier{{Algorithm: cms.OIDSHA256}},
		EncapContentInfo: testEncapContent{EContentType: contentType},
		Certificates: asn1.RawValue{
			Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true,
			Bytes: cert.Raw,
		},
		SignerInfos: []testSignerInfo{{
			Version: 1,
			SID: testIssuerAndSerial{
				Issuer:       asn1.RawValue{FullBytes: cert.RawIssuer},
				SerialNumber: cert.SerialNumber,
			},
			DigestAlgorithm:    pkix.AlgorithmIdentifier{Algorithm: cms.OIDSHA256},
			SignedAttrs:        attrs,
			SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: cms.OIDECDSAWithSHA256},
			Signature:          sig,
		}},
	}
	if hasContent {
		sd.EncapContentInfo.EContent = asn1.RawValue{
			Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true,
			Bytes: content,
		}
	}

	return mustMarshal(t, testContentInfo{
		ContentType: cms.OIDSignedData,
		Content: asn1.RawValue{
			Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true,
			Bytes: mustMarshal(t, sd),
		},
	})
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	out, err := asn1.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal %T: %v", v, err)
	}
	return out
}
