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

package policy

import (
	"crypto/ed25519"
	"encoding/json"
	"time"

	"github.com/jeremyhahn/go-presence/pkg/canonical"
	"github.com/jeremyhahn/go-presence/pkg/jwk"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

// SignedPolicy is the Ed25519-signed policy envelope. The signature covers
// the UTF-8 message "pbi-policy-signed-1.0:" + policyHash, where policyHash
// is recomputed from the embedded policy document.
type SignedPolicy struct {
	V         string          `json:"v"`
	Policy    json.RawMessage `json:"policy"`
	Kid       string          `json:"kid"`
	PubKeyJwk *jwk.JWK        `json:"pubKeyJwk"`
	Sig       string          `json:"sig"`
	SignedAt  string          `json:"signedAt,omitempty"`
}

// ParseSignedPolicy validates and decodes a signed policy envelope.
func ParseSignedPolicy(data []byte) (*SignedPolicy, *types.Failure) {
	var sp SignedPolicy
	if err := json.Unmarshal(data, &sp); err != nil {
		return nil, types.Failuref(types.CodeInvalidStructure, "signed policy: %v", err)
	}
	if sp.V != types.VersionSignedPolicy {
		return nil, types.Failuref(types.CodeInvalidVersion, "signed policy: got %q", sp.V)
	}
	if len(sp.Policy) == 0 || sp.Kid == "" || sp.PubKeyJwk == nil || sp.Sig == "" {
		return nil, types.NewFailure(types.CodeInvalidStructure, "signed policy: missing required field")
	}
	if _, err := canonical.DecodeB64URL(sp.Sig); err != nil {
		return nil, types.NewFailure(types.CodeInvalidEncoding, "signed policy: sig")
	}
	return &sp, nil
}

// VerifySignedPolicy checks the envelope signature and key binding and
// returns the embedded policy file plus its hash.
//
// The declared kid must equal the fingerprint recomputed from the embedded
// public key; a signature that validates under a substituted key is rejected.
func VerifySignedPolicy(sp *SignedPolicy) (*PolicyFile, string, *types.Failure) {
	pf, fail := ParsePolicyFile(sp.Policy)
	if fail != nil {
		return nil, "", fail
	}
	policyHash, err := canonical.Sha256HexCanonical(json.RawMessage(sp.Policy))
	if err != nil {
		return nil, "", types.Failuref(types.CodeInvalidStructure, "signed policy: %v", err)
	}

	kid, err := sp.PubKeyJwk.KeyID()
	if err != nil {
		return nil, "", types.Failuref(types.CodeInvalidStructure, "signed policy: signer key: %v", err)
	}
	if kid != sp.Kid {
		return nil, "", types.Failuref(types.CodeKeyIDMismatch,
			"declared %s, recomputed %s", sp.Kid, kid)
	}

	pub, err := sp.PubKeyJwk.Ed25519PublicKey()
	if err != nil {
		return nil, "", types.Failuref(types.CodeInvalidStructure, "signed policy: signer key: %v", err)
	}
	sig, err := canonical.DecodeB64URL(sp.Sig)
	if err != nil {
		return nil, "", types.NewFailure(types.CodeInvalidEncoding, "signed policy: sig")
	}
	msg := []byte(types.VersionSignedPolicy + ":" + policyHash)
	if !ed25519.Verify(pub, msg, sig) {
		return nil, "", types.NewFailure(types.CodePolicySigInvalid, "signature does not verify")
	}
	return pf, policyHash, nil
}

// SignPolicy wraps a policy document in a signed envelope. The private key is
// used only for the duration of this call.
func SignPolicy(policyDoc []byte, key ed25519.PrivateKey, now time.Time) (*SignedPolicy, error) {
	if _, fail := ParsePolicyFile(policyDoc); fail != nil {
		return nil, fail
	}
	policyHash, err := canonical.Sha256HexCanonical(json.RawMessage(policyDoc))
	if err != nil {
		return nil, err
	}
	signerJWK, err := jwk.FromEd25519PublicKey(key.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}
	kid, err := signerJWK.KeyID()
	if err != nil {
		return nil, err
	}
	sig := ed25519.Sign(key, []byte(types.VersionSignedPolicy+":"+policyHash))
	return &SignedPolicy{
		V:         types.VersionSignedPolicy,
		Policy:    json.RawMessage(policyDoc),
		Kid:       kid,
		PubKeyJwk: signerJWK,
		Sig:       canonical.EncodeB64URL(sig),
		SignedAt:  now.UTC().Format(time.RFC3339),
	}, nil
}
