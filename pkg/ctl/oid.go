package ctl

import "encoding/asn1"

// OIDCertTrustList is szOID_CTL, the eContentType of a trust list.
var OIDCertTrustList = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 1}

// Subject-usage OIDs seen on real trust lists.
var (
	// OIDRootListSigner is szOID_ROOT_LIST_SIGNER, the usage on
	// Microsoft's root-program authroot.stl.
	OIDRootListSigner = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 3, 9}

	// OIDDisallowedList marks the disallowedcert.stl usage.
	OIDDisallowedList = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 3, 30}
)

// Per-entry attribute OIDs (CERT_*_PROP_ID under 1.3.6.1.4.1.311.10.11).
// The arc number is the CryptoAPI property identifier.
var (
	// OIDMetaEKU lists the extended key usages granted to the subject
	// (CERT_ENHKEY_USAGE_PROP_ID). Value: OCTET STRING wrapping a DER
	// SEQUENCE OF OID.
	OIDMetaEKU = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 11, 9}

	// OIDFriendlyName is the display name (CERT_FRIENDLY_NAME_PROP_ID).
	// Value: NUL-terminated UTF-16LE text.
	OIDFriendlyName = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 11, 11}

	// OIDKeyIdentifier is CERT_KEY_IDENTIFIER_PROP_ID.
	OIDKeyIdentifier = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 11, 20}

	// OIDSubjectNameMD5 is CERT_SUBJECT_NAME_MD5_HASH_PROP_ID.
	OIDSubjectNameMD5 = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 11, 29}

	// OIDRootProgramCertPolicies is CERT_ROOT_PROGRAM_CERT_POLICIES_PROP_ID.
	OIDRootProgramCertPolicies = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 11, 83}

	// OIDSHA256Fingerprint is CERT_AUTH_ROOT_SHA256_HASH_PROP_ID.
	OIDSHA256Fingerprint = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 11, 98}

	// OIDDisallowedFiletime is CERT_DISALLOWED_FILETIME_PROP_ID: the moment
	// the subject became distrusted, as a Windows FILETIME. An empty value
	// means distrusted since forever.
	OIDDisallowedFiletime = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 11, 104}

	// OIDDisallowedEKU is CERT_DISALLOWED_ENHKEY_USAGE_PROP_ID: usages
	// withdrawn from the subject. Same shape as OIDMetaEKU.
	OIDDisallowedEKU = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 11, 122}

	// OIDNotBeforeFiletime limits trust to certificates issued before the
	// given FILETIME (CERT_NOT_BEFORE_FILETIME_PROP_ID).
	OIDNotBeforeFiletime = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 11, 126}

	// OIDNotBeforeEKU scopes OIDNotBeforeFiletime to specific usages.
	OIDNotBeforeEKU = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 311, 10, 11, 127}
)

// attributeNames maps recognized attribute OIDs to display names.
var attributeNames = map[string]string{
	OIDMetaEKU.String():                 "enhancedKeyUsage",
	OIDFriendlyName.String():            "friendlyName",
	OIDKeyIdentifier.String():           "keyIdentifier",
	OIDSubjectNameMD5.String():          "subjectNameMD5",
	OIDRootProgramCertPolicies.String(): "rootProgramCertPolicies",
	OIDSHA256Fingerprint.String():       "sha256Fingerprint",
	OIDDisallowedFiletime.String():      "disallowedFiletime",
	OIDDisallowedEKU.String():           "disallowedKeyUsage",
	OIDNotBeforeFiletime.String():       "notBeforeFiletime",
	OIDNotBeforeEKU.String():            "notBeforeKeyUsage",
}

// AttributeName returns a display name for a recognized attribute OID, or
// the dotted OID itself.
func AttributeName(oid asn1.ObjectIdentifier) string {
	if name, ok := attributeNames[oid.String()]; ok {
		return name
	}
	return oid.String()
}
