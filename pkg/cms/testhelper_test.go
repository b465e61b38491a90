package cms

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
)

// Marshalling mirrors of the SignedData grammar, used to construct test
// envelopes with encoding/asn1.
type testContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue
}

type testSignedData struct {
	Version          int
	DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
	EncapContentInfo testEncapContent
	Certificates     asn1.RawValue   `asn1:"optional"`
	SignerInfos      []asn1.RawValue `asn1:"set"`
}

type testEncapContent struct {
	EContentType asn1.ObjectIdentifier
	EContent     asn1.RawValue `asn1:"optional"`
}

type testIssuerAndSerial struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

type testAttribute struct {
	Type   asn1.ObjectIdentifier
	Values []asn1.RawValue `asn1:"set"`
}

type testSignerInfo struct {
	Version            int
	SID                testIssuerAndSerial
	DigestAlgorithm    pkix.AlgorithmIdentifier
	SignedAttrs        []testAttribute `asn1:"optional,omitempty,tag:0"`
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          []byte
}

// testSignerInfoSKI is the version 3 shape, identifying the signer by
// subject key identifier instead of issuer and serial.
type testSignerInfoSKI struct {
	Version            int
	SID                asn1.RawValue // [0] IMPLICIT OCTET STRING
	DigestAlgorithm    pkix.AlgorithmIdentifier
	SignedAttrs        []testAttribute `asn1:"optional,omitempty,tag:0"`
	SignatureAlgorithm pkix.AlgorithmIdentifier
	Signature          []byte
}

// Marshalling mirrors of the X.509 grammar, for certificates the standard
// library cannot create (ML-DSA keys).
type testValidity struct {
	NotBefore, NotAfter time.Time
}

type testSPKI struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

type testTBSCertificate struct {
	Version      int `asn1:"optional,explicit,default:0,tag:0"`
	SerialNumber *big.Int
	SignatureAlg pkix.AlgorithmIdentifier
	Issuer       asn1.RawValue
	Validity     testValidity
	Subject      asn1.RawValue
	PublicKey    testSPKI
}

type testCertShell struct {
	TBS          asn1.RawValue
	SignatureAlg pkix.AlgorithmIdentifier
	Signature    asn1.BitString
}

// testKeyPair holds a key pair for testing.
type testKeyPair struct {
	PrivateKey crypto.Signer
	PublicKey  crypto.PublicKey
}

// generateECDSAKeyPair generates an ECDSA key pair for testing.
func generateECDSAKeyPair(t *testing.T) *testKeyPair {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate ECDSA key: %v", err)
	}
	return &testKeyPair{PrivateKey: priv, PublicKey: &priv.PublicKey}
}

// generateRSAKeyPair generates an RSA key pair for testing.
func generateRSAKeyPair(t *testing.T) *testKeyPair {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	return &testKeyPair{PrivateKey: priv, PublicKey: &priv.PublicKey}
}

// generateEd25519KeyPair generates an Ed25519 key pair for testing.
func generateEd25519KeyPair(t *testing.T) *testKeyPair {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate Ed25519 key: %v", err)
	}
	return &testKeyPair{PrivateKey: priv, PublicKey: pub}
}

// generateTestCertificate creates a self-signed certificate for testing.
func generateTestCertificate(t *testing.T, kp *testKeyPair) *x509.Certificate {
	t.Helper()

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		t.Fatalf("Failed to generate serial number: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			CommonName:   "Test Trust List Signer",
			Organization: []string{"Test Org"},
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		SubjectKeyId:          []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, kp.PublicKey, kp.PrivateKey)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("Failed to parse certificate: %v", err)
	}
	return cert
}

// generateMLDSACertificate builds a self-signed ML-DSA-44 certificate by
// hand; x509.CreateCertificate has no support for the algorithm.
func generateMLDSACertificate(t *testing.T, version int) (*testKeyPair, []byte) {
	t.Helper()
	pub, priv, err := mldsa44.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate ML-DSA-44 key: %v", err)
	}
	keyBytes, err := pub.MarshalBinary()
	if err != nil {
		t.Fatalf("Failed to marshal ML-DSA-44 key: %v", err)
	}

	name := mustMarshal(t, pkix.Name{CommonName: "Test ML-DSA Signer"}.ToRDNSequence())
	sigAlg := pkix.AlgorithmIdentifier{Algorithm: OIDMLDSA44}
	tbs := testTBSCertificate{
		Version:      version,
		SerialNumber: big.NewInt(7331),
		SignatureAlg: sigAlg,
		Issuer:       asn1.RawValue{FullBytes: name},
		Validity: testValidity{
			NotBefore: time.Now().Add(-1 * time.Hour).Truncate(time.Second).UTC(),
			NotAfter:  time.Now().Add(24 * time.Hour).Truncate(time.Second).UTC(),
		},
		Subject: asn1.RawValue{FullBytes: name},
		PublicKey: testSPKI{
			Algorithm: sigAlg,
			PublicKey: asn1.BitString{Bytes: keyBytes, BitLength: len(keyBytes) * 8},
		},
	}
	tbsDER := mustMarshal(t, tbs)
	sig, err := priv.Sign(rand.Reader, tbsDER, crypto.Hash(0))
	if err != nil {
		t.Fatalf("Failed to self-sign ML-DSA certificate: %v", err)
	}
	certDER := mustMarshal(t, testCertShell{
		TBS:          asn1.RawValue{FullBytes: tbsDER},
		SignatureAlg: sigAlg,
		Signature:    asn1.BitString{Bytes: sig, BitLength: len(sig) * 8},
	})
	return &testKeyPair{PrivateKey: priv, PublicKey: pub}, certDER
}

// envelopeConfig controls buildTestEnvelope.
type envelopeConfig struct {
	contentType asn1.ObjectIdentifier
	content     []byte // eContent payload, or a complete TLV when bareContent is set
	bareContent bool   // embed content without the OCTET STRING wrapper (Microsoft style)
	withAttrs   bool   // sign attributes instead of content directly
	hash         crypto.Hash
	digestOID    asn1.ObjectIdentifier // declared digest algorithm
	sigAlg       asn1.ObjectIdentifier
	useSKI       bool // identify the signer by subject key identifier (version 3)
	noContent    bool // omit eContent entirely
	noCerts      bool // omit the certificates set

	// rawCert overrides the certificate DER embedded in the envelope,
	// for certificates built outside crypto/x509. Issuer and serial for
	// the signer identifier still come from cert.
	rawCert []byte
}

// buildTestEnvelope constructs and signs a complete ContentInfo DER.
func buildTestEnvelope(t *testing.T, kp *testKeyPair, cert *x509.Certificate, cfg envelopeConfig) []byte {
	t.Helper()
	if cfg.hash == 0 {
		cfg.hash = crypto.SHA256
	}
	if cfg.digestOID == nil {
		cfg.digestOID = OIDSHA256
	}
	if cfg.sigAlg == nil {
		cfg.sigAlg = OIDECDSAWithSHA256
	}
	if cfg.contentType == nil {
		cfg.contentType = OIDData
	}

	digestAlg := pkix.AlgorithmIdentifier{Algorithm: cfg.digestOID}

	// The signature covers the eContent value directly, or the signed
	// attributes re-encoded as an EXPLICIT SET when attributes are present.
	var attrs []testAttribute
	signedRange := cfg.content
	if cfg.withAttrs {
		h := cfg.hash.New()
		h.Write(cfg.content)
		attrs = []testAttribute{
			{Type: OIDContentType, Values: []asn1.RawValue{{FullBytes: mustMarshal(t, cfg.contentType)}}},
			{Type: OIDMessageDigest, Values: []asn1.RawValue{{FullBytes: mustMarshal(t, h.Sum(nil))}}},
		}
		signedRange = marshalAttrsAsSet(t, attrs)
	}
	signature := signTestData(t, kp.PrivateKey, cfg.hash, signedRange)

	var siRaw []byte
	if cfg.useSKI {
		siRaw = mustMarshal(t, testSignerInfoSKI{
			Version: 3,
			SID: asn1.RawValue{
				Class: asn1.ClassContextSpecific, Tag: 0,
				Bytes: cert.SubjectKeyId,
			},
			DigestAlgorithm:    digestAlg,
			SignedAttrs:        attrs,
			SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: cfg.sigAlg},
			Signature:          signature,
		})
	} else {
		siRaw = mustMarshal(t, testSignerInfo{
			Version: 1,
			SID: testIssuerAndSerial{
				Issuer:       asn1.RawValue{FullBytes: cert.RawIssuer},
				SerialNumber: cert.SerialNumber,
			},
			DigestAlgorithm:    digestAlg,
			SignedAttrs:        attrs,
			SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: cfg.sigAlg},
			Signature:          signature,
		})
	}

	sd := testSignedData{
		Version:          1,
		DigestAlgorithms: []pkix.AlgorithmIdentifier{digestAlg},
		EncapContentInfo: testEncapContent{EContentType: cfg.contentType},
		SignerInfos:      []asn1.RawValue{{FullBytes: siRaw}},
	}
	if !cfg.noContent {
		inner := cfg.content
		if !cfg.bareContent {
			inner = mustMarshal(t, cfg.content)
		}
		sd.EncapContentInfo.EContent = asn1.RawValue{
			Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true,
			Bytes: inner,
		}
	}
	if !cfg.noCerts {
		certDER := cert.Raw
		if cfg.rawCert != nil {
			certDER = cfg.rawCert
		}
		sd.Certificates = asn1.RawValue{
			Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true,
			Bytes: certDER,
		}
	}

	return mustMarshal(t, testContentInfo{
		ContentType: OIDSignedData,
		Content: asn1.RawValue{
			Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true,
			Bytes: mustMarshal(t, sd),
		},
	})
}

// marshalAttrsAsSet re-encodes signed attributes as an EXPLICIT SET, the
// form the signature covers (RFC 5652 5.4).
func marshalAttrsAsSet(t *testing.T, attrs []testAttribute) []byte {
	t.Helper()
	encoded := mustMarshal(t, attrs)
	encoded[0] = 0x31
	return encoded
}

// signTestData signs msg the way the key's algorithm expects: pure
// algorithms (Ed25519, ML-DSA) sign the message itself, the rest sign
// its digest.
func signTestData(t *testing.T, signer crypto.Signer, hash crypto.Hash, msg []byte) []byte {
	t.Helper()
	switch signer.(type) {
	case ed25519.PrivateKey, *mldsa44.PrivateKey:
		sig, err := signer.Sign(rand.Reader, msg, crypto.Hash(0))
		if err != nil {
			t.Fatalf("Failed to sign: %v", err)
		}
		return sig
	}
	h := hash.New()
	h.Write(msg)
	sig, err := signer.Sign(rand.Reader, h.Sum(nil), hash)
	if err != nil {
		t.Fatalf("Failed to sign: %v", err)
	}
	return sig
}

// mustMarshal is a small helper for building raw DER in tests.
func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	out, err := asn1.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal %T: %v", v, err)
	}
	return out
}
