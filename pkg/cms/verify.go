package cms

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	_ "crypto/sha1"
	_ "crypto/sha256"
	_ "crypto/sha512"
	"encoding/asn1"
	"fmt"

	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
	"github.com/cloudflare/circl/sign/mldsa/mldsa87"

	"github.com/ctlkit/ctlkit/internal/der"
)

// VerifyResult is the outcome of checking one SignerInfo. It reports
// cryptographic consistency only; no trust decision is made here.
type VerifyResult struct {
	SignerIndex int

	// Certificate is the embedded certificate the signer resolved to,
	// nil when resolution failed.
	Certificate *Certificate

	// DigestOK reports that the content digest matches the messageDigest
	// signed attribute. True on the direct-signature path, where no such
	// attribute exists.
	DigestOK bool

	// SignatureOK reports that the signature value verified.
	SignatureOK bool

	// Err carries the exact failure, or nil on success. An
	// ErrUnsupportedAlgorithm here means "could not check", never
	// "checked and failed".
	Err error
}

// OK reports overall success: both digest and signature checks passed.
func (r VerifyResult) OK() bool { return r.DigestOK && r.SignatureOK && r.Err == nil }

// digestAlgorithms maps digest OIDs to hash implementations. Populated
// once at init, read-only afterwards; safe for concurrent readers.
var digestAlgorithms = map[string]crypto.Hash{
	OIDSHA1.String():   crypto.SHA1,
	OIDSHA256.String(): crypto.SHA256,
	OIDSHA384.String(): crypto.SHA384,
	OIDSHA512.String(): crypto.SHA512,
}

// supportedSignatureAlgorithms enumerates the signature OIDs this package
// will attempt. Anything else reports ErrUnsupportedAlgorithm.
var supportedSignatureAlgorithms = map[string]bool{
	OIDRSAEncryption.String():   true,
	OIDSHA1WithRSA.String():     true,
	OIDSHA256WithRSA.String():   true,
	OIDSHA384WithRSA.String():   true,
	OIDSHA512WithRSA.String():   true,
	OIDECDSAWithSHA256.String(): true,
	OIDECDSAWithSHA384.String(): true,
	OIDECDSAWithSHA512.String(): true,
	OIDEd25519.String():         true,
	OIDMLDSA44.String():         true,
	OIDMLDSA65.String():         true,
	OIDMLDSA87.String():         true,
}

// VerifySigner checks the signature of SignerInfos[index] against the
// certificates embedded in the envelope.
func (sd *SignedData) VerifySigner(index int) VerifyResult {
	res := VerifyResult{SignerIndex: index}
	if index < 0 || index >= len(sd.SignerInfos) {
		res.Err = NewCMSError("verify", fmt.Errorf("signer index %d out of range (%d signers)", index, len(sd.SignerInfos)))
		return res
	}
	si := &sd.SignerInfos[index]

	cert := sd.findSignerCertificate(si)
	if cert == nil {
		res.Err = NewCMSError("verify", ErrSignerCertNotFound)
		return res
	}
	res.Certificate = cert

	hash, ok := digestAlgorithms[si.DigestAlgorithm.Algorithm.String()]
	if !ok {
		res.Err = NewCMSError("verify", fmt.Errorf("%w: digest %v", ErrUnsupportedAlgorithm, si.DigestAlgorithm.Algorithm))
		return res
	}

	// The byte range the signature covers: with signed attributes it is
	// the attribute set re-encoded as an EXPLICIT SET; without, the
	// encapsulated content itself.
	signedRange := sd.Content
	if si.SignedAttrsRaw != nil {
		if err := sd.checkMessageDigest(si, hash); err != nil {
			res.Err = NewCMSError("verify", err)
			return res
		}
		signedRange = reencodeAsSet(si.SignedAttrsRaw)
	}
	res.DigestOK = true

	if err := verifySignature(cert, si.SignatureAlgorithm.Algorithm, hash, signedRange, si.Signature); err != nil {
		res.Err = NewCMSError("verify", err)
		return res
	}
	res.SignatureOK = true
	return res
}

// VerifyAll runs VerifySigner over every SignerInfo.
func (sd *SignedData) VerifyAll() []VerifyResult {
	results := make([]VerifyResult, len(sd.SignerInfos))
	for i := range sd.SignerInfos {
		results[i] = sd.VerifySigner(i)
	}
	return results
}

// findSignerCertificate resolves a SignerInfo to an embedded certificate
// by issuer+serial or by subject key identifier.
func (sd *SignedData) findSignerCertificate(si *SignerInfo) *Certificate {
	for i := range sd.Certificates {
		cert := &sd.Certificates[i]
		if si.SerialNumber != nil {
			if cert.SerialNumber != nil && cert.SerialNumber.Cmp(si.SerialNumber) == 0 &&
				bytes.Equal(cert.RawIssuer, si.RawIssuer) {
				return cert
			}
			continue
		}
		if len(si.SubjectKeyID) > 0 && bytes.Equal(cert.SubjectKeyID, si.SubjectKeyID) {
			return cert
		}
	}
	return nil
}

// checkMessageDigest recomputes the content digest and compares it to the
// messageDigest signed attribute.
func (sd *SignedData) checkMessageDigest(si *SignerInfo, hash crypto.Hash) error {
	attr := FindAttribute(si.SignedAttrs, OIDMessageDigest)
	if attr == nil || len(attr.Values) == 0 {
		return fmt.Errorf("%w: messageDigest", ErrMissingAttribute)
	}
	val := &attr.Values[0]
	if val.Kind != der.KindOctetString {
		return fmt.Errorf("%w: messageDigest value must be OCTET STRING", ErrUnexpectedStructure)
	}

	h := hash.New()
	h.Write(sd.Content)
	if !bytes.Equal(h.Sum(nil), val.Bytes) {
		return ErrDigestMismatch
	}
	return nil
}

// reencodeAsSet converts the retained [0] IMPLICIT signedAttrs span into
// the EXPLICIT SET encoding the signature actually covers (RFC 5652 5.4).
// Only the identifier octet changes; length and content are untouched.
func reencodeAsSet(raw []byte) []byte {
	out := make([]byte, len(raw))
	copy(out, raw)
	out[0] = 0x31
	return out
}

// verifySignature checks sig over msg with the certificate's public key
// and the declared signature algorithm.
func verifySignature(cert *Certificate, sigAlg asn1.ObjectIdentifier, hash crypto.Hash, msg, sig []byte) error {
	if !supportedSignatureAlgorithms[sigAlg.String()] {
		return fmt.Errorf("%w: signature %v", ErrUnsupportedAlgorithm, sigAlg)
	}
	if cert.PublicKey == nil {
		return fmt.Errorf("%w: no usable public key (algorithm %v)", ErrUnsupportedAlgorithm, cert.PublicKeyAlgorithm)
	}

	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		digest := hashBytes(hash, msg)
		if err := rsa.VerifyPKCS1v15(pub, hash, digest, sig); err != nil {
			return fmt.Errorf("%w: RSA: %v", ErrSignatureInvalid, err)
		}
		return nil

	case *ecdsa.PublicKey:
		digest := hashBytes(hash, msg)
		if !ecdsa.VerifyASN1(pub, digest, sig) {
			return fmt.Errorf("%w: ECDSA", ErrSignatureInvalid)
		}
		return nil

	case ed25519.PublicKey:
		if !ed25519.Verify(pub, msg, sig) {
			return fmt.Errorf("%w: Ed25519", ErrSignatureInvalid)
		}
		return nil

	case *mldsa44.PublicKey:
		if !mldsa44.Verify(pub, msg, nil, sig) {
			return fmt.Errorf("%w: ML-DSA-44", ErrSignatureInvalid)
		}
		return nil

	case *mldsa65.PublicKey:
		if !mldsa65.Verify(pub, msg, nil, sig) {
			return fmt.Errorf("%w: ML-DSA-65", ErrSignatureInvalid)
		}
		return nil

	case *mldsa87.PublicKey:
		if !mldsa87.Verify(pub, msg, nil, sig) {
			return fmt.Errorf("%w: ML-DSA-87", ErrSignatureInvalid)
		}
		return nil

	default:
		return fmt.Errorf("%w: public key type %T", ErrUnsupportedAlgorithm, cert.PublicKey)
	}
}

func hashBytes(hash crypto.Hash, msg []byte) []byte {
	h := hash.New()
	h.Write(msg)
	return h.Sum(nil)
}
