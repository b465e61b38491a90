// Package der decodes definite-length DER (X.690) into a generic tree of
// typed values. Every decoded value retains its original byte span within
// the source buffer, so callers can re-digest exact encoded ranges later
// (CMS signed-attribute verification depends on this).
//
// The decoder is deliberately small: it understands the universal types
// that PKCS#7 and certificate trust lists use, keeps anything else as an
// opaque byte value, and rejects BER-only constructs (indefinite lengths,
// non-minimal length encodings) outright.
package der

import (
	"encoding/asn1"
	"math/big"
	"time"
)

// ASN.1 identifier octet layout (X.690 section 8.1.2).
const (
	classMask      byte = 0xC0
	constructedBit byte = 0x20
	tagNumMask     byte = 0x1F
)

// Tag classes.
const (
	ClassUniversal       byte = 0x00
	ClassApplication     byte = 0x40
	ClassContextSpecific byte = 0x80
	ClassPrivate         byte = 0xC0
)

// Universal tag numbers used by PKCS#7 and CTL structures.
const (
	TagBoolean         byte = 0x01
	TagInteger         byte = 0x02
	TagBitString       byte = 0x03
	TagOctetString     byte = 0x04
	TagNull            byte = 0x05
	TagOID             byte = 0x06
	TagUTF8String      byte = 0x0C
	TagSequence        byte = 0x10
	TagSet             byte = 0x11
	TagPrintableString byte = 0x13
	TagIA5String       byte = 0x16
	TagUTCTime         byte = 0x17
	TagGeneralizedTime byte = 0x18
)

// Kind classifies a decoded Value.
type Kind int

// Value kinds.
const (
	KindRaw Kind = iota // primitive with no dedicated decoding
	KindBoolean
	KindInteger
	KindOctetString
	KindNull
	KindOID
	KindTime
	KindSequence
	KindSet
	KindContextSpecific
)

// DefaultMaxDepth bounds recursion into constructed values. Real trust
// lists nest about ten levels deep; 32 leaves generous headroom while
// keeping adversarial inputs from exhausting the stack.
const DefaultMaxDepth = 32

// Value is one decoded tag-length-value unit.
//
// Full, Bytes and Children reference sub-slices of the buffer passed to
// Parse; they are never copies. Offset is the position of the identifier
// octet within that buffer.
type Value struct {
	Kind   Kind
	Tag    byte // identifier octet exactly as encoded
	Offset int

	Full  []byte // complete TLV span: header plus content
	Bytes []byte // content octets only

	// Children holds the decoded elements of a constructed value
	// (SEQUENCE, SET, constructed context-specific), in encoded order.
	Children []Value

	// Decoded forms, populated according to Kind.
	Bool bool
	Int  *big.Int
	OID  asn1.ObjectIdentifier
	Time time.Time
}

// Class returns the tag class bits of the identifier octet.
func (v *Value) Class() byte { return v.Tag & classMask }

// TagNumber returns the tag number within the class.
func (v *Value) TagNumber() int { return int(v.Tag & tagNumMask) }

// Constructed reports whether the value uses constructed encoding.
func (v *Value) Constructed() bool { return v.Tag&constructedBit != 0 }

// End returns the offset immediately following this value's span.
func (v *Value) End() int { return v.Offset + len(v.Full) }

// IsUniversal reports whether the value has the given universal tag number.
func (v *Value) IsUniversal(tagNum byte) bool {
	return v.Class() == ClassUniversal && v.Tag&tagNumMask == tagNum
}

// IsContext reports whether the value is context-specific [n].
func (v *Value) IsContext(n int) bool {
	return v.Class() == ClassContextSpecific && v.TagNumber() == n
}
