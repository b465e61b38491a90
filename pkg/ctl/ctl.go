package ctl

import (
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ctlkit/ctlkit/internal/der"
)

// Extension is one trailing ctlExtensions element.
type Extension struct {
	ID       asn1.ObjectIdentifier
	Critical bool
	Value    []byte
}

// TrustList is the decoded CertificateTrustList content (MS-CAESO):
//
//	CertificateTrustList ::= SEQUENCE {
//	  version          INTEGER {v1(0)} DEFAULT v1,
//	  subjectUsage     SEQUENCE OF OBJECT IDENTIFIER,
//	  listIdentifier   OCTET STRING OPTIONAL,
//	  sequenceNumber   INTEGER OPTIONAL,
//	  thisUpdate       Time,
//	  nextUpdate       Time OPTIONAL,
//	  subjectAlgorithm AlgorithmIdentifier,
//	  trustedSubjects  SEQUENCE OF TrustedSubject OPTIONAL,
//	  ctlExtensions    [0] EXPLICIT Extensions OPTIONAL }
type TrustList struct {
	Version      int
	SubjectUsage []asn1.ObjectIdentifier

	ListIdentifier []byte   // nil if absent
	SequenceNumber *big.Int // nil if absent

	ThisUpdate time.Time
	NextUpdate time.Time // zero if absent
	HasNext    bool

	// SubjectAlgorithm is the digest algorithm producing each entry's
	// subject identifier (SHA-1 on every list Microsoft ships).
	SubjectAlgorithm asn1.ObjectIdentifier

	entries []TrustedSubject

	Extensions []Extension

	// Defects lists entries dropped under EntryErrorsSkip.
	Defects []EntryDefect

	Raw []byte
}

// Len returns the number of decoded trust entries.
func (tl *TrustList) Len() int { return len(tl.entries) }

// Entry returns the i-th trust entry.
func (tl *TrustList) Entry(i int) *TrustedSubject { return &tl.entries[i] }

// Entries returns the trust entries in encoded order. The slice is the
// list's own; iterate, don't mutate.
func (tl *TrustList) Entries() []TrustedSubject { return tl.entries }

// ParseTrustList decodes the encapsulated content of a CTL envelope into a
// TrustList.
func ParseTrustList(content []byte, opts *DecodeOptions) (*TrustList, error) {
	root, err := der.ParseLimited(content, opts.maxDepth())
	if err != nil {
		return nil, NewCTLError("parse", err)
	}
	tl, err := parseTrustList(root, opts)
	if err != nil {
		return nil, NewCTLError("parse", err)
	}
	return tl, nil
}

func parseTrustList(v *der.Value, opts *DecodeOptions) (*TrustList, error) {
	if v.Kind != der.KindSequence {
		return nil, structErr(v.Offset, "CertificateTrustList must be SEQUENCE")
	}
	tl := &TrustList{Raw: v.Full}
	kids := v.Children
	i := 0

	next := func() *der.Value {
		if i < len(kids) {
			return &kids[i]
		}
		return nil
	}

	// version INTEGER DEFAULT v1 — absent on every list Microsoft ships.
	if c := next(); c != nil && c.Kind == der.KindInteger {
		if !c.Int.IsInt64() || c.Int.Int64() != 0 {
			return nil, fmt.Errorf("%w: version %v", ErrUnsupportedVersion, c.Int)
		}
		i++
	}

	c := next()
	if c == nil || c.Kind != der.KindSequence {
		return nil, structErr(v.Offset, "missing subjectUsage")
	}
	for j := range c.Children {
		u := &c.Children[j]
		if u.Kind != der.KindOID {
			return nil, structErr(u.Offset, "subjectUsage element must be OID")
		}
		tl.SubjectUsage = append(tl.SubjectUsage, u.OID)
	}
	i++

	if c := next(); c != nil && c.Kind == der.KindOctetString {
		tl.ListIdentifier = c.Bytes
		i++
	}
	if c := next(); c != nil && c.Kind == der.KindInteger {
		tl.SequenceNumber = c.Int
		i++
	}

	c = next()
	if c == nil {
		return nil, structErr(v.End(), "missing thisUpdate")
	}
	if c.Kind != der.KindTime {
		return nil, fmt.Errorf("%w: thisUpdate (offset %d)", ErrInvalidTimestamp, c.Offset)
	}
	tl.ThisUpdate = c.Time
	i++

	if c := next(); c != nil && c.Kind == der.KindTime {
		tl.NextUpdate = c.Time
		tl.HasNext = true
		i++
	}

	c = next()
	if c == nil || c.Kind != der.KindSequence || len(c.Children) < 1 ||
		c.Children[0].Kind != der.KindOID {
		return nil, structErr(v.End(), "missing subjectAlgorithm")
	}
	tl.SubjectAlgorithm = c.Children[0].OID
	i++

	// trustedSubjects SEQUENCE OF TrustedSubject OPTIONAL
	if c := next(); c != nil && c.Kind == der.KindSequence {
		if len(c.Children) > opts.maxEntries() {
			return nil, fmt.Errorf("%w: %d entries exceed ceiling %d", ErrTooManyEntries, len(c.Children), opts.maxEntries())
		}
		tl.entries = make([]TrustedSubject, 0, len(c.Children))
		for j := range c.Children {
			ts, err := parseTrustedSubject(&c.Children[j], j)
			if err != nil {
				if opts.entryErrors() == EntryErrorsSkip && isEntryError(err) {
					tl.Defects = append(tl.Defects, EntryDefect{Index: j, Err: err})
					continue
				}
				return nil, err
			}
			tl.entries = append(tl.entries, ts)
		}
		i++
	}

	// ctlExtensions [0] EXPLICIT Extensions OPTIONAL
	if c := next(); c != nil && c.IsContext(0) && c.Constructed() {
		if len(c.Children) != 1 || c.Children[0].Kind != der.KindSequence {
			return nil, structErr(c.Offset, "ctlExtensions must wrap SEQUENCE")
		}
		exts, err := parseExtensions(&c.Children[0])
		if err != nil {
			return nil, err
		}
		tl.Extensions = exts
		i++
	}

	if i != len(kids) {
		return nil, structErr(kids[i].Offset, "unexpected element in CertificateTrustList")
	}
	return tl, nil
}

// isEntryError reports whether err is confined to a single entry, and so
// eligible for EntryErrorsSkip isolation. Structural DER errors are not:
// they poison the whole buffer.
func isEntryError(err error) bool {
	return errors.Is(err, ErrDuplicateAttribute) || errors.Is(err, ErrInvalidAttributeValue) ||
		errors.Is(err, ErrUnexpectedStructure)
}

func parseExtensions(v *der.Value) ([]Extension, error) {
	exts := make([]Extension, 0, len(v.Children))
	for i := range v.Children {
		e := &v.Children[i]
		if e.Kind != der.KindSequence || len(e.Children) < 2 || len(e.Children) > 3 {
			return nil, structErr(e.Offset, "Extension must be SEQUENCE of 2 or 3")
		}
		j := 0
		if e.Children[j].Kind != der.KindOID {
			return nil, structErr(e.Children[j].Offset, "extnID must be OID")
		}
		ext := Extension{ID: e.Children[j].OID}
		j++
		if e.Children[j].Kind == der.KindBoolean {
			ext.Critical = e.Children[j].Bool
			j++
		}
		if j >= len(e.Children) || e.Children[j].Kind != der.KindOctetString {
			return nil, structErr(e.Offset, "extnValue must be OCTET STRING")
		}
		ext.Value = e.Children[j].Bytes
		exts = append(exts, ext)
	}
	return exts, nil
}

func structErr(offset int, msg string) error {
	return fmt.Errorf("%w: %s (offset %d)", ErrUnexpectedStructure, msg, offset)
}
