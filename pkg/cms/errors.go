// Package cms decodes PKCS#7 / CMS SignedData envelopes (RFC 5652) and
// verifies their signatures. It is the outer layer of a certificate trust
// list: the CTL itself travels as the encapsulated content.
package cms

import (
	"errors"
	"fmt"
)

// CMSError represents a CMS operation error with structured context.
// It supports errors.Is() and errors.As() for improved error handling.
type CMSError struct {
	Op  string // Operation: "parse", "verify"
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *CMSError) Error() string {
	return fmt.Sprintf("cms %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CMSError) Unwrap() error { return e.Err }

// NewCMSError creates a new CMSError with the given operation and error.
func NewCMSError(op string, err error) *CMSError {
	return &CMSError{Op: op, Err: err}
}

// Sentinel errors for CMS operations.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrUnexpectedStructure indicates the DER tree does not match the
	// SignedData grammar at some required position.
	ErrUnexpectedStructure = errors.New("unexpected structure")

	// ErrUnsupportedVersion indicates a SignedData or SignerInfo version
	// outside the supported set (SignedData v1/v3, SignerInfo v1/v3).
	ErrUnsupportedVersion = errors.New("unsupported version")

	// ErrMissingContent indicates the envelope carries no encapsulated content.
	ErrMissingContent = errors.New("missing encapsulated content")

	// ErrDuplicateAttribute indicates the same OID appears twice among one
	// signer's signed attributes.
	ErrDuplicateAttribute = errors.New("duplicate signed attribute")

	// ErrSignerCertNotFound indicates no embedded certificate matches the
	// signer identifier.
	ErrSignerCertNotFound = errors.New("signer certificate not found")

	// ErrDigestMismatch indicates the content digest does not match the
	// messageDigest signed attribute.
	ErrDigestMismatch = errors.New("message digest mismatch")

	// ErrSignatureInvalid indicates the signature value failed verification
	// with a supported algorithm. Distinct from ErrUnsupportedAlgorithm.
	ErrSignatureInvalid = errors.New("invalid signature")

	// ErrUnsupportedAlgorithm indicates a digest or signature algorithm this
	// package cannot check. Callers must not read it as "checked and failed".
	ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

	// ErrMissingAttribute indicates signed attributes are present but the
	// mandatory messageDigest attribute is not among them.
	ErrMissingAttribute = errors.New("missing signed attribute")
)
