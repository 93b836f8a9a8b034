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

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jeremyhahn/go-presence/pkg/canonical"
)

// ParseAction validates and decodes an Action document.
func ParseAction(data []byte) (*Action, *Failure) {
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, Failuref(CodeInvalidStructure, "action: %v", err)
	}
	if a.V != VersionAction {
		return nil, Failuref(CodeInvalidVersion, "action: got %q", a.V)
	}
	if a.Aud == "" || a.Purpose == "" || a.Method == "" || a.Path == "" {
		return nil, NewFailure(CodeInvalidStructure, "action: missing required field")
	}
	if a.Method != strings.ToUpper(a.Method) {
		return nil, NewFailure(CodeInvalidStructure, "action: method must be uppercase")
	}
	if !strings.HasPrefix(a.Path, "/") {
		return nil, NewFailure(CodeInvalidStructure, "action: path must be absolute")
	}
	if a.Params == nil {
		return nil, NewFailure(CodeInvalidStructure, "action: params object required")
	}
	return &a, nil
}

// ParseReceipt validates and decodes a Receipt document, including byte
// decodability of every base64url field in the signature bundle.
func ParseReceipt(data []byte) (*Receipt, *Failure) {
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, Failuref(CodeInvalidStructure, "receipt: %v", err)
	}
	if f := ValidateReceipt(&r); f != nil {
		return nil, f
	}
	return &r, nil
}

// ValidateReceipt checks the structural invariants of an already decoded
// Receipt.
func ValidateReceipt(r *Receipt) *Failure {
	if r.V != VersionReceipt {
		return Failuref(CodeInvalidVersion, "receipt: got %q", r.V)
	}
	if r.ChallengeID == "" || r.Challenge == "" || r.ActionHash == "" ||
		r.Aud == "" || r.Purpose == "" {
		return NewFailure(CodeInvalidStructure, "receipt: missing required field")
	}
	sig := r.AuthorSig
	if sig.CredID == "" || sig.AuthenticatorData == "" ||
		sig.ClientDataJSON == "" || sig.Signature == "" {
		return NewFailure(CodeInvalidStructure, "receipt: incomplete authorSig")
	}
	for name, field := range map[string]string{
		"credId":            sig.CredID,
		"authenticatorData": sig.AuthenticatorData,
		"clientDataJSON":    sig.ClientDataJSON,
		"signature":         sig.Signature,
	} {
		if _, err := canonical.DecodeB64URL(field); err != nil {
			return Failuref(CodeInvalidEncoding, "receipt: authorSig.%s", name)
		}
	}
	return nil
}

// ParseChallengeRecord validates and decodes a ChallengeRecord document.
func ParseChallengeRecord(data []byte) (*ChallengeRecord, *Failure) {
	var c ChallengeRecord
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, Failuref(CodeInvalidStructure, "challenge: %v", err)
	}
	if c.V != VersionChallenge {
		return nil, Failuref(CodeInvalidVersion, "challenge: got %q", c.V)
	}
	if c.ChallengeID == "" || c.Challenge == "" || c.ActionHash == "" ||
		c.Aud == "" || c.Purpose == "" || c.ExpiresAt == "" {
		return nil, NewFailure(CodeInvalidStructure, "challenge: missing required field")
	}
	if _, err := canonical.DecodeB64URL(c.Challenge); err != nil {
		return nil, NewFailure(CodeInvalidEncoding, "challenge: challenge bytes")
	}
	if _, err := time.Parse(time.RFC3339, c.ExpiresAt); err != nil {
		return nil, NewFailure(CodeInvalidStructure, "challenge: expiresAt not RFC3339")
	}
	if c.UsedAt != nil {
		if _, err := time.Parse(time.RFC3339, *c.UsedAt); err != nil {
			return nil, NewFailure(CodeInvalidStructure, "challenge: usedAt not RFC3339")
		}
	}
	return &c, nil
}

// ParseAttestation validates and decodes an Attestation document.
func ParseAttestation(data []byte) (*Attestation, *Failure) {
	var a Attestation
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, Failuref(CodeInvalidStructure, "attestation: %v", err)
	}
	if f := ValidateAttestation(&a); f != nil {
		return nil, f
	}
	return &a, nil
}

// ValidateAttestation checks the structural invariants of an already decoded
// Attestation.
func ValidateAttestation(a *Attestation) *Failure {
	if a.V != VersionAttestation {
		return Failuref(CodeInvalidVersion, "attestation: got %q", a.V)
	}
	if a.Decision == "" || a.ReceiptHash == "" || a.ActionHash == "" ||
		a.ChallengeID == "" || a.Aud == "" || a.Purpose == "" ||
		a.PolicyHash == "" || a.VerifiedAt == "" || a.VerifierSig == "" {
		return NewFailure(CodeInvalidStructure, "attestation: missing required field")
	}
	if a.Verifier.Kid == "" || a.Verifier.PubKeyJwk == nil {
		return NewFailure(CodeInvalidStructure, "attestation: missing verifier key")
	}
	if _, err := time.Parse(time.RFC3339, a.VerifiedAt); err != nil {
		return NewFailure(CodeInvalidStructure, "attestation: verifiedAt not RFC3339")
	}
	if _, err := canonical.DecodeB64URL(a.VerifierSig); err != nil {
		return NewFailure(CodeInvalidEncoding, "attestation: verifierSig")
	}
	return nil
}

// ParseTrustRootsFile validates and decodes a TrustRootsFile document.
func ParseTrustRootsFile(data []byte) (*TrustRootsFile, *Failure) {
	var f TrustRootsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, Failuref(CodeInvalidStructure, "trust roots: %v", err)
	}
	if f.V != VersionTrustRoots {
		return nil, Failuref(CodeInvalidVersion, "trust roots: got %q", f.V)
	}
	for i := range f.Roots {
		r := &f.Roots[i]
		if r.KeyID == "" || r.PubKeyJwk == nil || r.NotBefore == "" {
			return nil, Failuref(CodeInvalidStructure, "trust roots: root %d incomplete", i)
		}
		if _, err := time.Parse(time.RFC3339, r.NotBefore); err != nil {
			return nil, Failuref(CodeInvalidStructure, "trust roots: root %d notBefore", i)
		}
		if r.NotAfter != nil {
			if _, err := time.Parse(time.RFC3339, *r.NotAfter); err != nil {
				return nil, Failuref(CodeInvalidStructure, "trust roots: root %d notAfter", i)
			}
		}
	}
	for i, rev := range f.Revocations {
		if rev.KeyID == "" || rev.RevokedAt == "" {
			return nil, Failuref(CodeInvalidStructure, "trust roots: revocation %d incomplete", i)
		}
		if _, err := time.Parse(time.RFC3339, rev.RevokedAt); err != nil {
			return nil, Failuref(CodeInvalidStructure, "trust roots: revocation %d revokedAt", i)
		}
	}
	return &f, nil
}

// ParseSignedTrustBundle validates and decodes a SignedTrustBundle document.
func ParseSignedTrustBundle(data []byte) (*SignedTrustBundle, *Failure) {
	var b SignedTrustBundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, Failuref(CodeInvalidStructure, "trust bundle: %v", err)
	}
	if b.V != VersionTrustBundle {
		return nil, Failuref(CodeInvalidVersion, "trust bundle: got %q", b.V)
	}
	if len(b.Payload) == 0 {
		return nil, NewFailure(CodeInvalidStructure, "trust bundle: empty payload")
	}
	if b.Signature == nil || b.Signature.KeyID == "" ||
		b.Signature.PubKeyJwk == nil || b.Signature.Sig == "" {
		return nil, NewFailure(CodeInvalidStructure, "trust bundle: incomplete signature")
	}
	if _, err := canonical.DecodeB64URL(b.Signature.Sig); err != nil {
		return nil, NewFailure(CodeInvalidEncoding, "trust bundle: signature")
	}
	return &b, nil
}

// ParseExportManifest validates and decodes an ExportManifest document.
func ParseExportManifest(data []byte) (*ExportManifest, *Failure) {
	var m ExportManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, Failuref(CodeInvalidStructure, "manifest: %v", err)
	}
	if m.V != VersionExportManifest {
		return nil, Failuref(CodeInvalidVersion, "manifest: got %q", m.V)
	}
	if m.GeneratedAt == "" || len(m.Files) == 0 {
		return nil, NewFailure(CodeInvalidStructure, "manifest: missing required field")
	}
	if m.TotalCount < 0 {
		return nil, NewFailure(CodeInvalidStructure, "manifest: negative totalCount")
	}
	for name, fd := range m.Files {
		if len(fd.Sha256) != 64 || fd.Bytes < 0 {
			return nil, Failuref(CodeInvalidStructure, "manifest: file %q digest", name)
		}
		if _, err := canonical.DecodeHex(fd.Sha256); err != nil {
			return nil, Failuref(CodeInvalidEncoding, "manifest: file %q sha256", name)
		}
	}
	return &m, nil
}

// ParseManifestSignature validates and decodes a ManifestSignature document.
func ParseManifestSignature(data []byte) (*ManifestSignature, *Failure) {
	var s ManifestSignature
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, Failuref(CodeInvalidStructure, "manifest signature: %v", err)
	}
	if s.Algorithm != "Ed25519" {
		return nil, Failuref(CodeInvalidStructure, "manifest signature: algorithm %q", s.Algorithm)
	}
	if s.KeyID == "" || s.PublicKeyPem == "" || s.SignatureB64Url == "" || s.ManifestSha256 == "" {
		return nil, NewFailure(CodeInvalidStructure, "manifest signature: missing required field")
	}
	if _, err := canonical.DecodeB64URL(s.SignatureB64Url); err != nil {
		return nil, NewFailure(CodeInvalidEncoding, "manifest signature: signatureB64Url")
	}
	if _, err := canonical.DecodeHex(s.ManifestSha256); err != nil {
		return nil, NewFailure(CodeInvalidEncoding, "manifest signature: manifestSha256")
	}
	return &s, nil
}

// ParseExportEntry validates and decodes one receipts.ndjson line.
func ParseExportEntry(data []byte) (*ExportEntry, *Failure) {
	var e ExportEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, Failuref(CodeInvalidStructure, "export entry: %v", err)
	}
	if e.Receipt == nil {
		return nil, NewFailure(CodeInvalidStructure, "export entry: missing receipt")
	}
	if f := ValidateReceipt(e.Receipt); f != nil {
		return nil, f
	}
	if e.Attestation != nil {
		if f := ValidateAttestation(e.Attestation); f != nil {
			return nil, f
		}
	}
	return &e, nil
}
