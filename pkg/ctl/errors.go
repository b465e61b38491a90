// Package ctl decodes Windows Certificate Trust Lists: the signed lists
// (authroot.stl, disallowedcert.stl) Windows uses to distribute trusted
// and disallowed certificate metadata. Decoding peels a PKCS#7 SignedData
// envelope (pkg/cms), then interprets the encapsulated content against the
// MS-CAESO CertificateTrustList grammar.
package ctl

import (
	"errors"
	"fmt"
)

// CTLError represents a trust-list operation error with structured context.
// It supports errors.Is() and errors.As() for improved error handling.
type CTLError struct {
	Op  string // Operation: "decode", "parse", "verify"
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *CTLError) Error() string {
	return fmt.Sprintf("ctl %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CTLError) Unwrap() error { return e.Err }

// NewCTLError creates a new CTLError with the given operation and error.
func NewCTLError(op string, err error) *CTLError {
	return &CTLError{Op: op, Err: err}
}

// Sentinel errors for trust-list decoding.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrContentType indicates the envelope's encapsulated content is not
	// a certificate trust list (eContentType != szOID_CTL).
	ErrContentType = errors.New("content is not a certificate trust list")

	// ErrUnexpectedStructure indicates the content does not match the
	// CertificateTrustList grammar at some required position.
	ErrUnexpectedStructure = errors.New("unexpected structure")

	// ErrUnsupportedVersion indicates a CTL version other than v1.
	ErrUnsupportedVersion = errors.New("unsupported CTL version")

	// ErrInvalidTimestamp indicates a thisUpdate/nextUpdate field that does
	// not decode into a calendar time.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrTooManyEntries indicates the entry count exceeds the configured
	// safety ceiling.
	ErrTooManyEntries = errors.New("too many trust entries")

	// ErrDuplicateAttribute indicates the same OID appears twice within one
	// entry's attribute set.
	ErrDuplicateAttribute = errors.New("duplicate entry attribute")

	// ErrInvalidAttributeValue indicates a recognized attribute whose value
	// does not decode into its expected shape.
	ErrInvalidAttributeValue = errors.New("invalid attribute value")
)

// EntryDefect records an entry that failed attribute decoding while
// EntryErrorsSkip mode was active.
type EntryDefect struct {
	Index int
	Err   error
}

func (d EntryDefect) String() string {
	return fmt.Sprintf("entry %d: %v", d.Index, d.Err)
}
