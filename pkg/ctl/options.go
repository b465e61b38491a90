package ctl

// EntryErrorMode selects what happens when one entry's attributes are
// malformed: fail the whole decode, or skip the entry and record a defect.
type EntryErrorMode int

const (
	// EntryErrorsFail aborts the decode on the first defective entry.
	EntryErrorsFail EntryErrorMode = iota

	// EntryErrorsSkip drops defective entries and records them in
	// TrustList.Defects, keeping the rest of the list usable.
	EntryErrorsSkip
)

// Default safety ceilings for adversarial inputs.
const (
	// DefaultMaxEntries bounds the number of trust entries. Microsoft's
	// root list carries a few hundred; the disallowed list a few thousand.
	DefaultMaxEntries = 65536
)

// DecodeOptions configures the decode pipeline. The zero value is usable;
// zero fields take the package defaults.
type DecodeOptions struct {
	// MaxEntries caps the trust-entry count (default DefaultMaxEntries).
	MaxEntries int

	// MaxDepth caps DER recursion depth (default der.DefaultMaxDepth).
	MaxDepth int

	// EntryErrors selects entry-level error isolation (default
	// EntryErrorsFail).
	EntryErrors EntryErrorMode
}

func (o *DecodeOptions) maxEntries() int {
	if o == nil || o.MaxEntries <= 0 {
		return DefaultMaxEntries
	}
	return o.MaxEntries
}

func (o *DecodeOptions) maxDepth() int {
	if o == nil {
		return 0
	}
	return o.MaxDepth
}

func (o *DecodeOptions) entryErrors() EntryErrorMode {
	if o == nil {
		return EntryErrorsFail
	}
	return o.EntryErrors
}
