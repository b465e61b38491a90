package ctl

import (
	"encoding/pem"
	"fmt"

	"github.com/ctlkit/ctlkit/internal/der"
	"github.com/ctlkit/ctlkit/pkg/cms"
)

// CTL is a fully decoded certificate trust list: the signed envelope and
// the trust-list content it encapsulates. Both are immutable snapshots of
// the decode call that produced them.
type CTL struct {
	SignedData *cms.SignedData
	TrustList  *TrustList
}

// Decode runs the full pipeline over a raw .stl buffer: DER parse, envelope
// projection, then trust-list projection of the encapsulated content.
// PEM-armored input (PKCS7/CMS blocks) is unwrapped first.
//
// Decode never verifies signatures; a tampered or unverifiable list still
// decodes so it can be inspected. Use Verify afterwards.
func Decode(buf []byte, opts *DecodeOptions) (*CTL, error) {
	if block, _ := pem.Decode(buf); block != nil {
		switch block.Type {
		case "PKCS7", "CMS", "PKCS #7 SIGNED DATA":
			buf = block.Bytes
		default:
			return nil, NewCTLError("decode", fmt.Errorf("unexpected PEM type %q", block.Type))
		}
	}

	root, err := der.ParseLimited(buf, opts.maxDepth())
	if err != nil {
		return nil, NewCTLError("decode", err)
	}

	sd, err := cms.ParseSignedDataValue(root)
	if err != nil {
		return nil, NewCTLError("decode", err)
	}
	if !sd.ContentType.Equal(OIDCertTrustList) {
		return nil, NewCTLError("decode", fmt.Errorf("%w: eContentType %v", ErrContentType, sd.ContentType))
	}
	if !sd.HasContent {
		return nil, NewCTLError("decode", cms.ErrMissingContent)
	}

	tl, err := ParseTrustList(sd.Content, opts)
	if err != nil {
		return nil, err
	}
	return &CTL{SignedData: sd, TrustList: tl}, nil
}

// Verify checks the signature of the given signer against the certificates
// embedded in the envelope. It reports cryptographic consistency only.
func (c *CTL) Verify(signerIndex int) cms.VerifyResult {
	return c.SignedData.VerifySigner(signerIndex)
}

// VerifyAll verifies every signer in the envelope.
func (c *CTL) VerifyAll() []cms.VerifyResult {
	return c.SignedData.VerifyAll()
}
