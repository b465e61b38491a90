package ctl

import (
	"encoding/asn1"
	"encoding/binary"
	"fmt"
	"time"
	"unicode/utf16"

	"github.com/ctlkit/ctlkit/internal/der"
)

// Attribute is one per-entry attribute: an OID and its SET OF values.
// Values hold the content octets of each value (trust-list attribute
// values are OCTET STRINGs wrapping a type-specific payload).
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values [][]byte
	Raw    []byte // span of the whole Attribute SEQUENCE
}

// TrustedSubject is one entry in the trust list: a certificate digest and
// its attribute set. Recognized attributes are decoded into typed fields
// at parse time; everything is also reachable verbatim via Attributes.
type TrustedSubject struct {
	// SubjectIdentifier is the certificate digest keying this entry,
	// most commonly a 20-byte SHA-1 hash.
	SubjectIdentifier []byte

	// Attributes preserves every attribute in encoded order, recognized
	// or not.
	Attributes []Attribute

	friendlyName       string
	hasFriendlyName    bool
	keyIdentifier      []byte
	sha256Fingerprint  []byte
	ekus               []asn1.ObjectIdentifier
	disallowedEKUs     []asn1.ObjectIdentifier
	notBeforeEKUs      []asn1.ObjectIdentifier
	disallowedFiletime time.Time
	hasDisallowed      bool
	notBeforeFiletime  time.Time
	hasNotBefore       bool

	raw []byte
}

// FriendlyName returns the entry's display name attribute, with ok
// reporting presence.
func (ts *TrustedSubject) FriendlyName() (name string, ok bool) {
	return ts.friendlyName, ts.hasFriendlyName
}

// KeyIdentifier returns the key-identifier attribute bytes, or nil.
func (ts *TrustedSubject) KeyIdentifier() []byte { return ts.keyIdentifier }

// SHA256Fingerprint returns the SHA-256 certificate fingerprint attribute
// bytes, or nil.
func (ts *TrustedSubject) SHA256Fingerprint() []byte { return ts.sha256Fingerprint }

// EnhancedKeyUsages returns the usages granted to this subject. An empty
// result means the attribute is absent, which Windows reads as
// anyExtendedKeyUsage.
func (ts *TrustedSubject) EnhancedKeyUsages() []asn1.ObjectIdentifier { return ts.ekus }

// DisallowedKeyUsages returns the usages withdrawn from this subject.
func (ts *TrustedSubject) DisallowedKeyUsages() []asn1.ObjectIdentifier { return ts.disallowedEKUs }

// NotBeforeKeyUsages returns the usages scoped by NotBefore.
func (ts *TrustedSubject) NotBeforeKeyUsages() []asn1.ObjectIdentifier { return ts.notBeforeEKUs }

// Disallowed returns the moment this subject became distrusted. A zero
// time with ok=true means distrusted since forever (the attribute was
// present but empty).
func (ts *TrustedSubject) Disallowed() (t time.Time, ok bool) {
	return ts.disallowedFiletime, ts.hasDisallowed
}

// NotBefore returns the issuance cutoff for this subject's trust, with ok
// reporting presence.
func (ts *TrustedSubject) NotBefore() (t time.Time, ok bool) {
	return ts.notBeforeFiletime, ts.hasNotBefore
}

// AttributeValues returns the raw value set of the attribute with the
// given OID, byte-for-byte as encoded, with ok reporting presence.
func (ts *TrustedSubject) AttributeValues(oid asn1.ObjectIdentifier) (values [][]byte, ok bool) {
	for i := range ts.Attributes {
		if ts.Attributes[i].Type.Equal(oid) {
			return ts.Attributes[i].Values, true
		}
	}
	return nil, false
}

// parseTrustedSubject decodes one TrustedSubject SEQUENCE.
//
//	TrustedSubject ::= SEQUENCE {
//	  subjectIdentifier OCTET STRING,
//	  subjectAttributes SET OF Attribute OPTIONAL }
func parseTrustedSubject(v *der.Value, index int) (TrustedSubject, error) {
	var ts TrustedSubject
	if v.Kind != der.KindSequence || len(v.Children) < 1 || len(v.Children) > 2 {
		return ts, structErr(v.Offset, "TrustedSubject must be SEQUENCE of 1 or 2")
	}
	id := &v.Children[0]
	if id.Kind != der.KindOctetString {
		return ts, structErr(id.Offset, "subjectIdentifier must be OCTET STRING")
	}
	ts.SubjectIdentifier = id.Bytes
	ts.raw = v.Full

	if len(v.Children) == 1 {
		return ts, nil
	}
	set := &v.Children[1]
	if set.Kind != der.KindSet {
		return ts, structErr(set.Offset, "subjectAttributes must be SET")
	}

	seen := make(map[string]bool, len(set.Children))
	for i := range set.Children {
		attr, err := parseEntryAttribute(&set.Children[i])
		if err != nil {
			return ts, err
		}
		key := attr.Type.String()
		if seen[key] {
			return ts, fmt.Errorf("%w: entry %d repeats %s", ErrDuplicateAttribute, index, key)
		}
		seen[key] = true
		if err := ts.decodeRecognized(&attr, index); err != nil {
			return ts, err
		}
		ts.Attributes = append(ts.Attributes, attr)
	}
	return ts, nil
}

func parseEntryAttribute(v *der.Value) (Attribute, error) {
	if v.Kind != der.KindSequence || len(v.Children) != 2 {
		return Attribute{}, structErr(v.Offset, "Attribute must be SEQUENCE of 2")
	}
	oid := &v.Children[0]
	set := &v.Children[1]
	if oid.Kind != der.KindOID || set.Kind != der.KindSet {
		return Attribute{}, structErr(v.Offset, "Attribute must be OID plus SET")
	}
	attr := Attribute{Type: oid.OID, Raw: v.Full}
	for i := range set.Children {
		val := &set.Children[i]
		if val.Kind == der.KindOctetString {
			attr.Values = append(attr.Values, val.Bytes)
		} else {
			attr.Values = append(attr.Values, val.Full)
		}
	}
	return attr, nil
}

// decodeRecognized fills the typed fields for attribute OIDs this package
// understands. Unrecognized OIDs pass through untouched; they stay
// available through Attributes and AttributeValues.
func (ts *TrustedSubject) decodeRecognized(attr *Attribute, index int) error {
	if len(attr.Values) == 0 {
		return nil
	}
	value := attr.Values[0]

	switch {
	case attr.Type.Equal(OIDFriendlyName):
		name, err := decodeUTF16LE(value)
		if err != nil {
			return attrErr(index, "friendlyName", err)
		}
		ts.friendlyName = name
		ts.hasFriendlyName = true

	case attr.Type.Equal(OIDKeyIdentifier):
		ts.keyIdentifier = value

	case attr.Type.Equal(OIDSHA256Fingerprint):
		ts.sha256Fingerprint = value

	case attr.Type.Equal(OIDMetaEKU):
		oids, err := decodeOIDList(value)
		if err != nil {
			return attrErr(index, "enhancedKeyUsage", err)
		}
		ts.ekus = oids

	case attr.Type.Equal(OIDDisallowedEKU):
		oids, err := decodeOIDList(value)
		if err != nil {
			return attrErr(index, "disallowedKeyUsage", err)
		}
		ts.disallowedEKUs = oids

	case attr.Type.Equal(OIDNotBeforeEKU):
		oids, err := decodeOIDList(value)
		if err != nil {
			return attrErr(index, "notBeforeKeyUsage", err)
		}
		ts.notBeforeEKUs = oids

	case attr.Type.Equal(OIDDisallowedFiletime):
		t, err := decodeFiletime(value)
		if err != nil {
			return attrErr(index, "disallowedFiletime", err)
		}
		ts.disallowedFiletime = t
		ts.hasDisallowed = true

	case attr.Type.Equal(OIDNotBeforeFiletime):
		t, err := decodeFiletime(value)
		if err != nil {
			return attrErr(index, "notBeforeFiletime", err)
		}
		ts.notBeforeFiletime = t
		ts.hasNotBefore = true
	}
	return nil
}

func attrErr(index int, name string, err error) error {
	return fmt.Errorf("%w: entry %d %s: %v", ErrInvalidAttributeValue, index, name, err)
}

// decodeUTF16LE decodes NUL-terminated UTF-16LE text, the encoding of
// friendly-name attribute values.
func decodeUTF16LE(b []byte) (string, error) {
	if len(b)%2 != 0 {
		return "", fmt.Errorf("odd byte count %d", len(b))
	}
	u := make([]uint16, len(b)/2)
	for i := range u {
		u[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	for len(u) > 0 && u[len(u)-1] == 0 {
		u = u[:len(u)-1]
	}
	for _, c := range u {
		if c == 0 {
			return "", fmt.Errorf("embedded NUL")
		}
	}
	return string(utf16.Decode(u)), nil
}

// decodeOIDList decodes the metaEKU payload: a DER SEQUENCE OF OID.
func decodeOIDList(b []byte) ([]asn1.ObjectIdentifier, error) {
	v, err := der.Parse(b)
	if err != nil {
		return nil, err
	}
	if v.Kind != der.KindSequence {
		return nil, fmt.Errorf("expected SEQUENCE OF OID, got tag 0x%02x", v.Tag)
	}
	oids := make([]asn1.ObjectIdentifier, 0, len(v.Children))
	for i := range v.Children {
		if v.Children[i].Kind != der.KindOID {
			return nil, fmt.Errorf("element %d is not an OID", i)
		}
		oids = append(oids, v.Children[i].OID)
	}
	return oids, nil
}

// filetimeEpochDelta is the seconds between the Windows FILETIME epoch
// (1601-01-01) and the Unix epoch.
const filetimeEpochDelta = 11644473600

// decodeFiletime decodes an 8-byte little-endian Windows FILETIME
// (100-nanosecond ticks since 1601-01-01 UTC). An empty value is legal
// and means "since forever"; it decodes to the zero time.
func decodeFiletime(b []byte) (time.Time, error) {
	switch len(b) {
	case 0:
		return time.Time{}, nil
	case 8:
		ticks := binary.LittleEndian.Uint64(b)
		secs := int64(ticks/10_000_000) - filetimeEpochDelta
		nanos := int64(ticks%10_000_000) * 100
		return time.Unix(secs, nanos).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("FILETIME must be 0 or 8 bytes, got %d", len(b))
	}
}
