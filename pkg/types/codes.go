// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-presence.
//
// go-presence is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package types

import "fmt"

// Code is a stable machine-readable verification failure code. Expected
// verification failures are reported as values carrying a Code; errors and
// panics are reserved for collaborator and configuration faults.
type Code string

// Receipt verification failure codes.
const (
	CodeInvalidVersion       Code = "invalid_version"
	CodeInvalidEncoding      Code = "invalid_encoding"
	CodeInvalidStructure     Code = "invalid_structure"
	CodeChallengeNotFound    Code = "challenge_not_found"
	CodeChallengeExpired     Code = "challenge_expired"
	CodeChallengeUsed        Code = "challenge_used"
	CodeActionHashMismatch   Code = "action_hash_mismatch"
	CodeAudMismatch          Code = "aud_mismatch"
	CodePurposeMismatch      Code = "purpose_mismatch"
	CodeOriginNotAllowed     Code = "origin_not_allowed"
	CodeRPIDNotAllowed       Code = "rpId_not_allowed"
	CodeWebAuthnTypeMismatch Code = "webauthn_type_mismatch"
	CodeChallengeMismatch    Code = "challenge_mismatch"
	CodeSignatureInvalid     Code = "signature_invalid"
	CodeFlagsPolicyViolation Code = "flags_policy_violation"
	CodeNonFiniteNumber      Code = "nonfinite_number"
	CodeCredentialNotFound   Code = "credential_not_found"
)

// Policy failure codes.
const (
	CodePurposeUnknown   Code = "purpose_unknown"
	CodePolicySigInvalid Code = "policy_sig_invalid"
	CodeKeyIDMismatch    Code = "keyid_mismatch"
)

// Trust chain failure codes.
const (
	CodeUntrustedRoot       Code = "untrusted_root"
	CodeRootRevoked         Code = "root_revoked"
	CodeRootExpired         Code = "root_expired"
	CodeRootNotYetValid     Code = "root_not_yet_valid"
	CodeIssuerKeyIDMismatch Code = "issuer_keyid_mismatch"
	CodeBundleSigInvalid    Code = "bundle_sig_invalid"
	CodeAttestorNotAllowed  Code = "attestor_not_allowed"
)

// Attestation failure codes.
const (
	CodeAttestationSigInvalid Code = "attestation_sig_invalid"
	CodeCrossRefMismatch      Code = "crossref_mismatch"
)

// Export pack failure codes.
const (
	CodeManifestSigInvalid   Code = "manifest_sig_invalid"
	CodeManifestHashMismatch Code = "manifest_hash_mismatch"
	CodeFileSetMismatch      Code = "file_set_mismatch"
	CodeFileDigestMismatch   Code = "file_digest_mismatch"
)

// Failure is a discriminated verification failure. It implements error so it
// can flow through error returns at the CLI boundary, but inside the core it
// is treated as a value, not an exception.
type Failure struct {
	Code   Code   `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Code)
	}
	return fmt.Sprintf("%s: %s", f.Code, f.Detail)
}

// NewFailure builds a Failure with a fixed detail message.
func NewFailure(code Code, detail string) *Failure {
	return &Failure{Code: code, Detail: detail}
}

// Failuref builds a Failure with a formatted detail message.
func Failuref(code Code, format string, args ...any) *Failure {
	return &Failure{Code: code, Detail: fmt.Sprintf(format, args...)}
}
