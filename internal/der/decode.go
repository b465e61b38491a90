package der

import (
	"encoding/asn1"
	"math/big"
	"time"
)

// Parse decodes exactly one DER value spanning the whole buffer, using the
// default recursion bound. Bytes after the first value are ErrTrailingData.
func Parse(buf []byte) (*Value, error) {
	return ParseLimited(buf, DefaultMaxDepth)
}

// ParseLimited is Parse with an explicit recursion bound.
func ParseLimited(buf []byte, maxDepth int) (*Value, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	v, next, err := parseValue(buf, 0, len(buf), maxDepth)
	if err != nil {
		return nil, err
	}
	if next != len(buf) {
		return nil, syntaxErrf(next, ErrTrailingData, "%d bytes after top-level value", len(buf)-next)
	}
	return &v, nil
}

// ParseAt decodes exactly one DER value starting at off and returns it
// together with the offset immediately following its span.
func ParseAt(buf []byte, off, maxDepth int) (Value, int, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return parseValue(buf, off, len(buf), maxDepth)
}

// parseValue decodes one TLV unit from buf[off:limit]. The returned int is
// the offset of the first byte after the unit. All offsets are absolute
// within buf so that every Value records its true source span.
func parseValue(buf []byte, off, limit, depth int) (Value, int, error) {
	if depth <= 0 {
		return Value{}, 0, syntaxErr(off, ErrNestingTooDeep)
	}

	tag, length, headerLen, err := parseHeader(buf, off, limit)
	if err != nil {
		return Value{}, 0, err
	}

	contentStart := off + headerLen
	end := contentStart + length
	v := Value{
		Tag:    tag,
		Offset: off,
		Full:   buf[off:end],
		Bytes:  buf[contentStart:end],
	}

	constructed := tag&constructedBit != 0
	class := tag & classMask
	tagNum := tag & tagNumMask

	if class != ClassUniversal {
		v.Kind = KindContextSpecific
		if constructed {
			if err := parseChildren(buf, &v, contentStart, end, depth); err != nil {
				return Value{}, 0, err
			}
		}
		return v, end, nil
	}

	switch tagNum {
	case TagSequence, TagSet:
		if !constructed {
			return Value{}, 0, syntaxErrf(off, ErrInvalidTag, "SEQUENCE/SET must be constructed")
		}
		if tagNum == TagSequence {
			v.Kind = KindSequence
		} else {
			v.Kind = KindSet
		}
		if err := parseChildren(buf, &v, contentStart, end, depth); err != nil {
			return Value{}, 0, err
		}
		return v, end, nil
	}

	// DER forbids constructed encodings of primitive universal types.
	if constructed {
		return Value{}, 0, syntaxErrf(off, ErrInvalidTag, "constructed encoding of primitive tag %d", tagNum)
	}

	switch tagNum {
	case TagBoolean:
		if length != 1 {
			return Value{}, 0, syntaxErrf(off, ErrInvalidLength, "BOOLEAN content must be 1 byte, got %d", length)
		}
		v.Kind = KindBoolean
		v.Bool = v.Bytes[0] != 0

	case TagInteger:
		if length == 0 {
			return Value{}, 0, syntaxErrf(off, ErrInvalidLength, "empty INTEGER")
		}
		v.Kind = KindInteger
		v.Int = parseInteger(v.Bytes)

	case TagOctetString:
		v.Kind = KindOctetString

	case TagNull:
		if length != 0 {
			return Value{}, 0, syntaxErrf(off, ErrInvalidLength, "NULL content must be empty, got %d bytes", length)
		}
		v.Kind = KindNull

	case TagOID:
		oid, err := parseOID(v.Bytes)
		if err != nil {
			return Value{}, 0, syntaxErr(off, err)
		}
		v.Kind = KindOID
		v.OID = oid

	case TagUTCTime, TagGeneralizedTime:
		t, err := parseTime(v.Bytes, tagNum == TagGeneralizedTime)
		if err != nil {
			return Value{}, 0, syntaxErr(off, err)
		}
		v.Kind = KindTime
		v.Time = t

	default:
		// Bit strings, text strings and anything else stay opaque; the
		// span and content are retained for the caller to interpret.
		v.Kind = KindRaw
	}

	return v, end, nil
}

// parseChildren decodes the content octets of a constructed value as a run
// of TLV units that must fill [start, end) exactly.
func parseChildren(buf []byte, parent *Value, start, end, depth int) error {
	pos := start
	for pos < end {
		child, next, err := parseValue(buf, pos, end, depth-1)
		if err != nil {
			return err
		}
		parent.Children = append(parent.Children, child)
		pos = next
	}
	return nil
}

// parseHeader reads the identifier and length octets at buf[off:]. The
// declared length is validated against limit before returning, so callers
// can slice and allocate safely.
func parseHeader(buf []byte, off, limit int) (tag byte, length, headerLen int, err error) {
	if off >= limit {
		return 0, 0, 0, syntaxErr(off, ErrTruncated)
	}
	tag = buf[off]
	if tag&tagNumMask == tagNumMask {
		// Long-form (multi-byte) tag numbers never occur in PKCS#7 or CTL
		// structures; treating them as errors keeps the header fixed-size.
		return 0, 0, 0, syntaxErrf(off, ErrInvalidTag, "long-form tag number")
	}
	if off+1 >= limit {
		return 0, 0, 0, syntaxErr(off+1, ErrTruncated)
	}

	first := buf[off+1]
	headerLen = 2
	switch {
	case first < 0x80:
		length = int(first)
	case first == 0x80:
		return 0, 0, 0, syntaxErr(off+1, ErrIndefiniteLength)
	default:
		n := int(first & 0x7F)
		if n > 4 {
			return 0, 0, 0, syntaxErrf(off+1, ErrInvalidLength, "%d length octets", n)
		}
		if off+2+n > limit {
			return 0, 0, 0, syntaxErr(off+1, ErrTruncated)
		}
		if buf[off+2] == 0 {
			return 0, 0, 0, syntaxErrf(off+1, ErrInvalidLength, "leading zero length octet")
		}
		var l uint64
		for i := 0; i < n; i++ {
			l = l<<8 | uint64(buf[off+2+i])
		}
		if l < 0x80 {
			return 0, 0, 0, syntaxErrf(off+1, ErrInvalidLength, "non-minimal long-form length %d", l)
		}
		if l > uint64(1)<<31-1 {
			return 0, 0, 0, syntaxErrf(off+1, ErrInvalidLength, "length %d overflows", l)
		}
		length = int(l)
		headerLen = 2 + n
	}

	if off+headerLen+length > limit {
		return 0, 0, 0, syntaxErrf(off, ErrTruncated, "declared length %d exceeds remaining %d bytes", length, limit-off-headerLen)
	}
	return tag, length, headerLen, nil
}

// parseInteger interprets DER two's-complement content octets.
func parseInteger(content []byte) *big.Int {
	n := new(big.Int).SetBytes(content)
	if content[0]&0x80 != 0 {
		// Negative: subtract 2^(8*len).
		shift := new(big.Int).Lsh(big.NewInt(1), uint(len(content))*8)
		n.Sub(n, shift)
	}
	return n
}

// parseOID decodes OBJECT IDENTIFIER content octets into dotted arcs.
func parseOID(content []byte) (asn1.ObjectIdentifier, error) {
	if len(content) == 0 {
		return nil, ErrInvalidOID
	}
	// Worst case one arc per byte, plus the split first subidentifier.
	oid := make(asn1.ObjectIdentifier, 0, len(content)+1)
	var arc int64
	first := true
	pending := false
	for i, b := range content {
		if arc > 1<<55 {
			return nil, ErrInvalidOID
		}
		arc = arc<<7 | int64(b&0x7F)
		pending = true
		if b&0x80 != 0 {
			if i == len(content)-1 {
				return nil, ErrInvalidOID
			}
			continue
		}
		if first {
			switch {
			case arc < 40:
				oid = append(oid, 0, int(arc))
			case arc < 80:
				oid = append(oid, 1, int(arc-40))
			default:
				oid = append(oid, 2, int(arc-80))
			}
			first = false
		} else {
			oid = append(oid, int(arc))
		}
		arc = 0
		pending = false
	}
	if pending {
		return nil, ErrInvalidOID
	}
	return oid, nil
}

// parseTime decodes UTCTime or GeneralizedTime content octets.
// UTCTime years are pivoted at 2050 per RFC 5280.
func parseTime(content []byte, generalized bool) (time.Time, error) {
	s := string(content)
	var layouts []string
	if generalized {
		layouts = []string{"20060102150405Z", "20060102150405-0700"}
	} else {
		layouts = []string{"060102150405Z", "0601021504Z", "060102150405-0700", "0601021504-0700"}
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		// Go pivots two-digit years at 69; RFC 5280 pivots at 50.
		if !generalized && t.Year() >= 2050 {
			t = t.AddDate(-100, 0, 0)
		}
		return t, nil
	}
	return time.Time{}, ErrInvalidTime
}
