package der

import (
	"errors"
	"fmt"
)

// Sentinel errors for DER decoding.
// Use errors.Is() to check for these errors through the error chain.
var (
	// ErrTruncated indicates a declared length exceeds the remaining input.
	ErrTruncated = errors.New("truncated input")

	// ErrInvalidTag indicates an identifier octet that is not acceptable
	// where it appears (long-form tag numbers, reserved encodings).
	ErrInvalidTag = errors.New("invalid tag")

	// ErrInvalidLength indicates a non-minimal or overflowing length encoding.
	ErrInvalidLength = errors.New("invalid length encoding")

	// ErrTrailingData indicates content octets left over after the declared
	// length of a constructed value was consumed.
	ErrTrailingData = errors.New("trailing data")

	// ErrNestingTooDeep indicates the recursion bound was exceeded.
	ErrNestingTooDeep = errors.New("nesting too deep")

	// ErrIndefiniteLength indicates BER indefinite-length framing, which
	// DER prohibits and this decoder rejects.
	ErrIndefiniteLength = errors.New("indefinite length not supported")

	// ErrInvalidTime indicates a UTCTime or GeneralizedTime value that does
	// not parse into a calendar time.
	ErrInvalidTime = errors.New("invalid time value")

	// ErrInvalidOID indicates a malformed OBJECT IDENTIFIER encoding.
	ErrInvalidOID = errors.New("invalid object identifier")
)

// SyntaxError wraps a decoding error with the byte offset at which it
// occurred, counted from the start of the buffer passed to Parse.
type SyntaxError struct {
	Offset int
	Err    error
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("der: offset %d: %v", e.Offset, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *SyntaxError) Unwrap() error { return e.Err }

func syntaxErr(offset int, err error) error {
	return &SyntaxError{Offset: offset, Err: err}
}

func syntaxErrf(offset int, err error, format string, args ...any) error {
	return &SyntaxError{Offset: offset, Err: fmt.Errorf("%w: "+format, append([]any{err}, args...)...)}
}
