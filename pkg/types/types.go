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

// Package types defines the wire formats exchanged and hashed by this module.
//
// Every structure is versioned with an explicit tag and is hashed and signed
// over its canonical JSON form. Parsers validate every field before any field
// is trusted; malformed data is reported as a typed failure, never a panic.
package types

import (
	"encoding/json"
	"time"

	"github.com/jeremyhahn/go-presence/pkg/jwk"
)

// Wire format version tags.
const (
	VersionAction         = "pbi-action-1.0"
	VersionReceipt        = "pbi-receipt-1.0"
	VersionChallenge      = "pbi-chal-1.0"
	VersionSignedPolicy   = "pbi-policy-signed-1.0"
	VersionAttestation    = "pbi-attest-1.0"
	VersionTrustRoots     = "pbi-trust-roots-1.0"
	VersionTrustBundle    = "pbi-trust-bundle-signed-1.0"
	VersionExportManifest = "pbi-attest-pack-2.0"
)

// Action describes the operation a user authorizes with a presence ceremony.
// Immutable once hashed; the action hash binds the challenge, the receipt and
// the attestation to exactly this operation.
type Action struct {
	V       string         `json:"v"`
	Aud     string         `json:"aud"`
	Purpose string         `json:"purpose"`
	Method  string         `json:"method"`
	Path    string         `json:"path"`
	Query   string         `json:"query"`
	Params  map[string]any `json:"params"`
}

// AuthorSig is the WebAuthn ES256 signature bundle produced by the device
// ceremony. All fields are unpadded base64url.
type AuthorSig struct {
	CredID            string `json:"credId"`
	AuthenticatorData string `json:"authenticatorData"`
	ClientDataJSON    string `json:"clientDataJSON"`
	Signature         string `json:"signature"`
}

// Receipt is the portable proof that a device ceremony authorized a hashed
// action. Produced once, immutable.
type Receipt struct {
	V           string    `json:"v"`
	ChallengeID string    `json:"challengeId"`
	Challenge   string    `json:"challenge"`
	ActionHash  string    `json:"actionHash"`
	Aud         string    `json:"aud"`
	Purpose     string    `json:"purpose"`
	AuthorSig   AuthorSig `json:"authorSig"`
}

// ChallengeRecord is the issuer-side record of an outstanding challenge.
// Mutated exactly once, from UsedAt == nil to a timestamp, by the verifier on
// successful verification. Never reused, never reactivated.
type ChallengeRecord struct {
	V               string  `json:"v"`
	ChallengeID     string  `json:"challengeId"`
	Challenge       string  `json:"challenge"`
	ActionHash      string  `json:"actionHash"`
	Aud             string  `json:"aud"`
	Purpose         string  `json:"purpose"`
	ExpiresAt       string  `json:"expiresAt"`
	UsedAt          *string `json:"usedAt"`
	UsedReceiptHash string  `json:"usedReceiptHash,omitempty"`
}

// ExpiresAtTime parses the record's expiry timestamp.
func (c *ChallengeRecord) ExpiresAtTime() (time.Time, error) {
	return time.Parse(time.RFC3339, c.ExpiresAt)
}

// VerifierID identifies the Ed25519 key a verifier used to sign an
// attestation. Kid is the SHA-256 of the canonicalized public JWK.
type VerifierID struct {
	Kid       string   `json:"kid"`
	Alg       string   `json:"alg"`
	PubKeyJwk *jwk.JWK `json:"pubKeyJwk"`
}

// Attestation is a verifier's signed statement that a receipt passed
// verification under a specific policy at a specific instant.
type Attestation struct {
	V           string     `json:"v"`
	Decision    string     `json:"decision"`
	ReceiptHash string     `json:"receiptHash"`
	ActionHash  string     `json:"actionHash"`
	ChallengeID string     `json:"challengeId"`
	Aud         string     `json:"aud"`
	Purpose     string     `json:"purpose"`
	PolicyVer   string     `json:"policyVer"`
	PolicyHash  string     `json:"policyHash"`
	VerifiedAt  string     `json:"verifiedAt"`
	Verifier    VerifierID `json:"verifier"`
	VerifierSig string     `json:"verifierSig"`
}

// TrustRoot is a long-lived key authorized to sign trust bundles, subject to
// its validity window and revocation status.
type TrustRoot struct {
	Name      string   `json:"name"`
	KeyID     string   `json:"keyId"`
	PubKeyJwk *jwk.JWK `json:"pubKeyJwk"`
	NotBefore string   `json:"notBefore"`
	NotAfter  *string  `json:"notAfter"`
}

// Revocation is a dated trust root revocation. A revocation dated after the
// evaluation instant does not yet apply.
type Revocation struct {
	KeyID     string `json:"keyId"`
	RevokedAt string `json:"revokedAt"`
	Reason    string `json:"reason,omitempty"`
}

// TrustRootsFile aggregates trust roots plus revocation state, either as a
// flat key ID blocklist or as dated revocations.
type TrustRootsFile struct {
	V                 string       `json:"v"`
	Roots             []TrustRoot  `json:"roots"`
	RevokedRootKeyIDs []string     `json:"revokedRootKeyIds,omitempty"`
	Revocations       []Revocation `json:"revocations,omitempty"`
}

// BundleSignature carries a trust bundle's Ed25519 signature and the signer's
// key. KeyID must resolve to a currently valid, non-revoked trust root.
type BundleSignature struct {
	KeyID     string   `json:"keyId"`
	PubKeyJwk *jwk.JWK `json:"pubKeyJwk"`
	Sig       string   `json:"sig"`
}

// SignedTrustBundle wraps an arbitrary trust payload with a root signature.
// The signature covers the canonicalized bundle with the signature field
// removed.
type SignedTrustBundle struct {
	V         string           `json:"v"`
	Payload   json.RawMessage  `json:"payload"`
	Signature *BundleSignature `json:"signature"`
}

// AttestorAllowlist is the trust bundle payload this module evaluates
// attestation signers against.
type AttestorAllowlist struct {
	Attestors []AllowedAttestor `json:"attestors"`
}

// AllowedAttestor names one attestor key an allowlist admits.
type AllowedAttestor struct {
	Kid       string   `json:"kid"`
	Name      string   `json:"name,omitempty"`
	PubKeyJwk *jwk.JWK `json:"pubKeyJwk,omitempty"`
}

// FileDigest records the integrity facts for one file in an export pack.
type FileDigest struct {
	Sha256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// ExportManifest enumerates and fingerprints every file shipped in an export
// pack.
type ExportManifest struct {
	V           string                `json:"v"`
	GeneratedAt string                `json:"generatedAt"`
	Filters     map[string]any        `json:"filters"`
	TotalCount  int                   `json:"totalCount"`
	Files       map[string]FileDigest `json:"files"`
}

// ManifestSignature is the detached Ed25519 signature over the canonicalized
// export manifest. ManifestSha256 is recorded redundantly so a reader can
// detect manifest substitution before checking the signature.
type ManifestSignature struct {
	Algorithm       string `json:"algorithm"`
	KeyID           string `json:"keyId"`
	PublicKeyPem    string `json:"publicKeyPem"`
	SignatureB64Url string `json:"signatureB64Url"`
	ManifestSha256  string `json:"manifestSha256"`
	SignedAt        string `json:"signedAt"`
}

// ExportEntry is one line of receipts.ndjson: a receipt together with the
// evidence needed to re-verify it offline.
type ExportEntry struct {
	Receipt     *Receipt     `json:"receipt"`
	Action      *Action      `json:"action,omitempty"`
	Attestation *Attestation `json:"attestation,omitempty"`
	CredPubKey  *jwk.JWK     `json:"credPubKeyJwk,omitempty"`
}
