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

// Package trust evaluates attestor keys and signed trust bundles against a
// set of long-lived trust roots.
//
// A root is valid at instant t when t falls inside its notBefore/notAfter
// window and the root is not revoked at t. Revocation is checked two ways: a
// flat keyId blocklist (revoked regardless of time) and a dated revocation
// list, where a revocation dated after t does not yet apply.
package trust

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-presence/pkg/canonical"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

// EvalMode selects the instant(s) a root's validity is evaluated at.
type EvalMode string

const (
	// EvalStrict validates against the current wall-clock time.
	EvalStrict EvalMode = "strict"

	// EvalAsOf validates against the attestation's own verifiedAt instant,
	// accepting signers that were valid when they signed even if since
	// revoked or expired.
	EvalAsOf EvalMode = "asof"

	// EvalBoth requires both strict and asof to pass.
	EvalBoth EvalMode = "both"
)

// ParseEvalMode validates a mode string from configuration or flags.
func ParseEvalMode(s string) (EvalMode, error) {
	switch EvalMode(s) {
	case EvalStrict, EvalAsOf, EvalBoth:
		return EvalMode(s), nil
	}
	return "", fmt.Errorf("trust: unknown eval mode %q (want strict, asof or both)", s)
}

// FindRoot returns the root with the given keyId, or nil.
func FindRoot(f *types.TrustRootsFile, keyID string) *types.TrustRoot {
	for i := range f.Roots {
		if f.Roots[i].KeyID == keyID {
			return &f.Roots[i]
		}
	}
	return nil
}

// RootValidAt reports whether root is usable at instant t given the roots
// file's revocation state.
func RootValidAt(root *types.TrustRoot, t time.Time, f *types.TrustRootsFile) *types.Failure {
	for _, kid := range f.RevokedRootKeyIDs {
		if kid == root.KeyID {
			return types.Failuref(types.CodeRootRevoked, "root %s is blocklisted", root.KeyID)
		}
	}
	for i := range f.Revocations {
		rev := &f.Revocations[i]
		if rev.KeyID != root.KeyID {
			continue
		}
		revokedAt, err := time.Parse(time.RFC3339, rev.RevokedAt)
		if err != nil {
			return types.Failuref(types.CodeInvalidStructure, "revocation for %s: revokedAt not RFC3339", rev.KeyID)
		}
		if !t.Before(revokedAt) {
			return types.Failuref(types.CodeRootRevoked, "root %s revoked at %s", root.KeyID, rev.RevokedAt)
		}
	}

	notBefore, err := time.Parse(time.RFC3339, root.NotBefore)
	if err != nil {
		return types.Failuref(types.CodeInvalidStructure, "root %s: notBefore not RFC3339", root.KeyID)
	}
	if t.Before(notBefore) {
		return types.Failuref(types.CodeRootNotYetValid, "root %s not valid before %s", root.KeyID, root.NotBefore)
	}
	if root.NotAfter != nil {
		notAfter, err := time.Parse(time.RFC3339, *root.NotAfter)
		if err != nil {
			return types.Failuref(types.CodeInvalidStructure, "root %s: notAfter not RFC3339", root.KeyID)
		}
		if t.After(notAfter) {
			return types.Failuref(types.CodeRootExpired, "root %s expired at %s", root.KeyID, *root.NotAfter)
		}
	}
	return nil
}

// validAtMode runs RootValidAt at the instant(s) mode selects.
func validAtMode(root *types.TrustRoot, f *types.TrustRootsFile, mode EvalMode, now, asOf time.Time) *types.Failure {
	switch mode {
	case EvalStrict:
		return RootValidAt(root, now, f)
	case EvalAsOf:
		return RootValidAt(root, asOf, f)
	case EvalBoth:
		if fail := RootValidAt(root, now, f); fail != nil {
			return fail
		}
		return RootValidAt(root, asOf, f)
	}
	return types.Failuref(types.CodeInvalidStructure, "unknown eval mode %q", mode)
}

// EvaluateAttestor resolves an attestation signer's keyId to a trust root and
// checks the root's validity under mode. asOf is the attestation's verifiedAt
// instant; it is only consulted by asof and both.
func EvaluateAttestor(f *types.TrustRootsFile, keyID string, mode EvalMode, now, asOf time.Time) *types.Failure {
	root := FindRoot(f, keyID)
	if root == nil {
		return types.Failuref(types.CodeUntrustedRoot, "attestor key %s is not a trust root", keyID)
	}
	return validAtMode(root, f, mode, now, asOf)
}

// CheckAllowlist reports whether kid is admitted by the allowlist.
func CheckAllowlist(allow *types.AttestorAllowlist, kid string) *types.Failure {
	for i := range allow.Attestors {
		if allow.Attestors[i].Kid == kid {
			return nil
		}
	}
	return types.Failuref(types.CodeAttestorNotAllowed, "attestor %s not in allowlist", kid)
}

// unsignedBundle mirrors SignedTrustBundle minus the signature field; the
// bundle signature covers its canonical form.
type unsignedBundle struct {
	V       string `json:"v"`
	Payload any    `json:"payload"`
}

func bundleSigningBytes(bundle *types.SignedTrustBundle) ([]byte, error) {
	return canonical.Canonicalize(&unsignedBundle{V: bundle.V, Payload: bundle.Payload})
}

// VerifySignedBundle authenticates a signed trust bundle. The signer's keyId
// is recomputed from its embedded public key, resolved to a root that must be
// valid under mode, and the Ed25519 signature is checked over the
// canonicalized bundle with the signature field removed.
func VerifySignedBundle(bundle *types.SignedTrustBundle, f *types.TrustRootsFile, mode EvalMode, now, asOf time.Time) *types.Failure {
	if bundle.Signature == nil || bundle.Signature.PubKeyJwk == nil {
		return types.NewFailure(types.CodeInvalidStructure, "bundle: missing signature")
	}

	kid, err := bundle.Signature.PubKeyJwk.KeyID()
	if err != nil {
		return types.Failuref(types.CodeInvalidStructure, "bundle signer key: %v", err)
	}
	if kid != bundle.Signature.KeyID {
		return types.NewFailure(types.CodeIssuerKeyIDMismatch,
			"signature keyId does not match embedded public key")
	}

	root := FindRoot(f, kid)
	if root == nil {
		return types.Failuref(types.CodeUntrustedRoot, "bundle signer %s is not a trust root", kid)
	}
	if fail := validAtMode(root, f, mode, now, asOf); fail != nil {
		return fail
	}

	pub, err := bundle.Signature.PubKeyJwk.Ed25519PublicKey()
	if err != nil {
		return types.Failuref(types.CodeInvalidStructure, "bundle signer key: %v", err)
	}
	sig, err := canonical.DecodeB64URL(bundle.Signature.Sig)
	if err != nil {
		return types.NewFailure(types.CodeInvalidEncoding, "bundle signature: not base64url")
	}
	msg, err := bundleSigningBytes(bundle)
	if err != nil {
		return types.Failuref(types.CodeInvalidStructure, "bundle: %v", err)
	}
	if !ed25519.Verify(pub, msg, sig) {
		return types.NewFailure(types.CodeBundleSigInvalid,
			"signature does not verify over canonicalized bundle")
	}
	return nil
}

// SignBundle wraps payload in a signed trust bundle. The signer's public JWK
// is embedded and its keyId recorded; callers still decide whether that key
// is a trust root.
func SignBundle(payload []byte, key ed25519.PrivateKey, root *types.TrustRoot) (*types.SignedTrustBundle, error) {
	if root == nil || root.PubKeyJwk == nil {
		return nil, fmt.Errorf("trust: nil signer")
	}
	bundle := &types.SignedTrustBundle{
		V:       types.VersionTrustBundle,
		Payload: json.RawMessage(payload),
	}
	msg, err := bundleSigningBytes(bundle)
	if err != nil {
		return nil, fmt.Errorf("trust: canonicalize bundle: %w", err)
	}
	sig := ed25519.Sign(key, msg)
	bundle.Signature = &types.BundleSignature{
		KeyID:     root.KeyID,
		PubKeyJwk: root.PubKeyJwk.PublicOnly(),
		Sig:       canonical.EncodeB64URL(sig),
	}
	return bundle, nil
}
