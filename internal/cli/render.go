package cli

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ctlkit/ctlkit/pkg/cms"
	"github.com/ctlkit/ctlkit/pkg/ctl"
)

// trustListJSON is the structured-output shape of a decoded trust list.
type trustListJSON struct {
	SubjectUsage     []string    `json:"subjectUsage"`
	ListIdentifier   string      `json:"listIdentifier,omitempty"`
	SequenceNumber   string      `json:"sequenceNumber,omitempty"`
	ThisUpdate       time.Time   `json:"thisUpdate"`
	NextUpdate       *time.Time  `json:"nextUpdate,omitempty"`
	SubjectAlgorithm string      `json:"subjectAlgorithm"`
	Entries          []entryJSON `json:"entries"`
	Defects          []string    `json:"defects,omitempty"`
}

type entryJSON struct {
	Identifier    string              `json:"identifier"`
	FriendlyName  string              `json:"friendlyName,omitempty"`
	EKUs          []string            `json:"ekus,omitempty"`
	DisallowedEKU []string            `json:"disallowedEkus,omitempty"`
	Disallowed    *time.Time          `json:"disallowed,omitempty"`
	NotBefore     *time.Time          `json:"notBefore,omitempty"`
	SHA256        string              `json:"sha256,omitempty"`
	Attributes    map[string][]string `json:"attributes,omitempty"`
}

func entryToJSON(e *ctl.TrustedSubject) entryJSON {
	out := entryJSON{Identifier: hex.EncodeToString(e.SubjectIdentifier)}
	if name, ok := e.FriendlyName(); ok {
		out.FriendlyName = name
	}
	for _, oid := range e.EnhancedKeyUsages() {
		out.EKUs = append(out.EKUs, oid.String())
	}
	for _, oid := range e.DisallowedKeyUsages() {
		out.DisallowedEKU = append(out.DisallowedEKU, oid.String())
	}
	if t, ok := e.Disallowed(); ok {
		out.Disallowed = &t
	}
	if t, ok := e.NotBefore(); ok {
		out.NotBefore = &t
	}
	if fp := e.SHA256Fingerprint(); fp != nil {
		out.SHA256 = hex.EncodeToString(fp)
	}
	if len(e.Attributes) > 0 {
		out.Attributes = make(map[string][]string, len(e.Attributes))
		for _, attr := range e.Attributes {
			var vals []string
			for _, v := range attr.Values {
				vals = append(vals, hex.EncodeToString(v))
			}
			out.Attributes[ctl.AttributeName(attr.Type)] = vals
		}
	}
	return out
}

// RenderJSON writes the trust list as indented JSON.
func RenderJSON(w io.Writer, c *ctl.CTL) error {
	tl := c.TrustList
	out := trustListJSON{
		ThisUpdate:       tl.ThisUpdate,
		SubjectAlgorithm: tl.SubjectAlgorithm.String(),
	}
	for _, u := range tl.SubjectUsage {
		out.SubjectUsage = append(out.SubjectUsage, u.String())
	}
	if tl.ListIdentifier != nil {
		out.ListIdentifier = hex.EncodeToString(tl.ListIdentifier)
	}
	if tl.SequenceNumber != nil {
		out.SequenceNumber = tl.SequenceNumber.Text(16)
	}
	if tl.HasNext {
		t := tl.NextUpdate
		out.NextUpdate = &t
	}
	for i := range tl.Entries() {
		out.Entries = append(out.Entries, entryToJSON(tl.Entry(i)))
	}
	for _, d := range tl.Defects {
		out.Defects = append(out.Defects, d.String())
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// RenderText writes a human-readable dump of the trust list.
func RenderText(w io.Writer, c *ctl.CTL) error {
	tl := c.TrustList
	fmt.Fprintf(w, "Certificate Trust List\n")
	for _, u := range tl.SubjectUsage {
		fmt.Fprintf(w, "  Usage:            %s\n", u)
	}
	if tl.SequenceNumber != nil {
		fmt.Fprintf(w, "  Sequence Number:  %s\n", tl.SequenceNumber.Text(16))
	}
	fmt.Fprintf(w, "  This Update:      %s\n", tl.ThisUpdate.Format(time.RFC3339))
	if tl.HasNext {
		fmt.Fprintf(w, "  Next Update:      %s\n", tl.NextUpdate.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "  Subject Algorithm: %s\n", tl.SubjectAlgorithm)
	fmt.Fprintf(w, "  Signers:          %d\n", len(c.SignedData.SignerInfos))
	fmt.Fprintf(w, "  Certificates:     %d\n", len(c.SignedData.Certificates))
	fmt.Fprintf(w, "  Entries:          %d\n", tl.Len())

	for i := 0; i < tl.Len(); i++ {
		e := tl.Entry(i)
		fmt.Fprintf(w, "\n  [%d] %s\n", i, hex.EncodeToString(e.SubjectIdentifier))
		if name, ok := e.FriendlyName(); ok {
			fmt.Fprintf(w, "      Friendly Name: %s\n", name)
		}
		for _, oid := range e.EnhancedKeyUsages() {
			fmt.Fprintf(w, "      EKU:           %s\n", oid)
		}
		for _, oid := range e.DisallowedKeyUsages() {
			fmt.Fprintf(w, "      Disallowed EKU: %s\n", oid)
		}
		if t, ok := e.Disallowed(); ok {
			if t.IsZero() {
				fmt.Fprintf(w, "      Disallowed:    since forever\n")
			} else {
				fmt.Fprintf(w, "      Disallowed:    %s\n", t.Format(time.RFC3339))
			}
		}
		if t, ok := e.NotBefore(); ok {
			fmt.Fprintf(w, "      Not Before:    %s\n", t.Format(time.RFC3339))
		}
		if fp := e.SHA256Fingerprint(); fp != nil {
			fmt.Fprintf(w, "      SHA-256:       %s\n", hex.EncodeToString(fp))
		}
		for _, attr := range e.Attributes {
			if _, recognized := recognizedOIDs[attr.Type.String()]; !recognized {
				fmt.Fprintf(w, "      Attribute %s: %d value(s)\n", attr.Type, len(attr.Values))
			}
		}
	}

	for _, d := range tl.Defects {
		fmt.Fprintf(w, "\n  defective %s\n", d)
	}
	return nil
}

// recognizedOIDs keeps RenderText from double-printing attributes that
// already have a typed line.
var recognizedOIDs = map[string]struct{}{
	ctl.OIDMetaEKU.String():            {},
	ctl.OIDFriendlyName.String():       {},
	ctl.OIDDisallowedEKU.String():      {},
	ctl.OIDDisallowedFiletime.String(): {},
	ctl.OIDNotBeforeFiletime.String():  {},
	ctl.OIDSHA256Fingerprint.String():  {},
}

// RenderEntries writes one line per entry: identifier and friendly name.
func RenderEntries(w io.Writer, tl *ctl.TrustList) {
	for i := 0; i < tl.Len(); i++ {
		e := tl.Entry(i)
		name, _ := e.FriendlyName()
		fmt.Fprintf(w, "%s  %s\n", hex.EncodeToString(e.SubjectIdentifier), name)
	}
}

// RenderVerifyResult writes one signer's verification outcome.
func RenderVerifyResult(w io.Writer, r cms.VerifyResult) {
	status := "verified"
	switch {
	case r.OK():
	case r.Err != nil && errors.Is(r.Err, cms.ErrUnsupportedAlgorithm):
		status = "unsupported"
	default:
		status = "failed"
	}
	fmt.Fprintf(w, "signer %d: %s", r.SignerIndex, FormatStatus(status))
	if r.Err != nil {
		fmt.Fprintf(w, " (%v)", r.Err)
	}
	fmt.Fprintln(w)
}
