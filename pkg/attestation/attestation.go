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

// Package attestation signs and verifies verifier attestations: Ed25519
// statements that a receipt passed verification under a specific policy at a
// specific instant.
//
// The signature covers a delimited message, not a JSON document:
//
//	"pbi-attest-1.0:" + receiptHash + ":" + decision + ":" + policyHash + ":" + verifiedAt
//
// A valid signature alone proves only that the signer produced the statement.
// Callers that hold the attested receipt, action and policy must also run
// CrossCheck; all five cross-references must agree before the attestation is
// trusted.
package attestation

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-presence/pkg/canonical"
	"github.com/jeremyhahn/go-presence/pkg/jwk"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

// Decision values an attestation may carry.
const (
	DecisionVerified = "verified"
	DecisionDenied   = "denied"
)

// Base is the unsigned content of an attestation. Sign fills in the verifier
// identity and signature.
type Base struct {
	Decision    string
	ReceiptHash string
	ActionHash  string
	ChallengeID string
	Aud         string
	Purpose     string
	PolicyVer   string
	PolicyHash  string
	VerifiedAt  string
}

func message(receiptHash, decision, policyHash, verifiedAt string) string {
	return strings.Join([]string{
		types.VersionAttestation, receiptHash, decision, policyHash, verifiedAt,
	}, ":")
}

// Sign produces a complete attestation over base. signerJWK must be the
// public JWK of key; the verifier kid is recomputed from it rather than
// trusted from the caller.
func Sign(base Base, key ed25519.PrivateKey, signerJWK *jwk.JWK) (*types.Attestation, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("attestation: bad private key length %d", len(key))
	}
	if signerJWK == nil {
		return nil, fmt.Errorf("attestation: nil signer JWK")
	}
	kid, err := signerJWK.KeyID()
	if err != nil {
		return nil, fmt.Errorf("attestation: signer kid: %w", err)
	}

	msg := message(base.ReceiptHash, base.Decision, base.PolicyHash, base.VerifiedAt)
	sig := ed25519.Sign(key, []byte(msg))

	return &types.Attestation{
		V:           types.VersionAttestation,
		Decision:    base.Decision,
		ReceiptHash: base.ReceiptHash,
		ActionHash:  base.ActionHash,
		ChallengeID: base.ChallengeID,
		Aud:         base.Aud,
		Purpose:     base.Purpose,
		PolicyVer:   base.PolicyVer,
		PolicyHash:  base.PolicyHash,
		VerifiedAt:  base.VerifiedAt,
		Verifier: types.VerifierID{
			Kid:       kid,
			Alg:       "EdDSA",
			PubKeyJwk: signerJWK.PublicOnly(),
		},
		VerifierSig: canonical.EncodeB64URL(sig),
	}, nil
}

// Verify checks the attestation's Ed25519 signature with its embedded public
// key and recomputes the verifier kid from that key. It does not evaluate
// trust in the signer; see pkg/trust for that, and CrossCheck for binding the
// attestation to its receipt.
func Verify(att *types.Attestation) *types.Failure {
	if fail := types.ValidateAttestation(att); fail != nil {
		return fail
	}

	kid, err := att.Verifier.PubKeyJwk.KeyID()
	if err != nil {
		return types.Failuref(types.CodeInvalidStructure, "verifier key: %v", err)
	}
	if kid != att.Verifier.Kid {
		return types.NewFailure(types.CodeKeyIDMismatch,
			"verifier kid does not match embedded public key")
	}

	pub, err := att.Verifier.PubKeyJwk.Ed25519PublicKey()
	if err != nil {
		return types.Failuref(types.CodeInvalidStructure, "verifier key: %v", err)
	}
	sig, err := canonical.DecodeB64URL(att.VerifierSig)
	if err != nil {
		return types.NewFailure(types.CodeInvalidEncoding, "verifierSig: not base64url")
	}

	msg := message(att.ReceiptHash, att.Decision, att.PolicyHash, att.VerifiedAt)
	if !ed25519.Verify(pub, []byte(msg), sig) {
		return types.NewFailure(types.CodeAttestationSigInvalid,
			"signature does not verify over attestation message")
	}
	return nil
}

// CrossCheck binds an attestation to the receipt, action and policy file it
// claims to attest. policyFile is the raw policy document bytes exactly as
// hashed at attestation time; action may be nil when the original action is
// not available.
func CrossCheck(att *types.Attestation, rcpt *types.Receipt, action *types.Action, policyFile []byte) *types.Failure {
	receiptHash, fail := types.HashReceipt(rcpt)
	if fail != nil {
		return fail
	}
	if att.ReceiptHash != receiptHash {
		return types.NewFailure(types.CodeCrossRefMismatch,
			"attestation receiptHash does not match recomputed receipt hash")
	}
	if att.ActionHash != rcpt.ActionHash {
		return types.NewFailure(types.CodeCrossRefMismatch,
			"attestation actionHash does not match receipt actionHash")
	}
	if action != nil {
		actionHash, fail := types.HashAction(action)
		if fail != nil {
			return fail
		}
		if att.ActionHash != actionHash {
			return types.NewFailure(types.CodeCrossRefMismatch,
				"attestation actionHash does not match recomputed action hash")
		}
	}
	if policyFile != nil {
		policyHash, err := canonical.Sha256HexCanonical(json.RawMessage(policyFile))
		if err != nil {
			return types.Failuref(types.CodeInvalidStructure, "policy snapshot: %v", err)
		}
		if att.PolicyHash != policyHash {
			return types.NewFailure(types.CodeCrossRefMismatch,
				"attestation policyHash does not match recomputed policy hash")
		}
	}
	if att.ChallengeID != rcpt.ChallengeID {
		return types.NewFailure(types.CodeCrossRefMismatch,
			"attestation challengeId does not match receipt")
	}
	if att.Aud != rcpt.Aud {
		return types.NewFailure(types.CodeCrossRefMismatch,
			"attestation aud does not match receipt")
	}
	if att.Purpose != rcpt.Purpose {
		return types.NewFailure(types.CodeCrossRefMismatch,
			"attestation purpose does not match receipt")
	}
	return nil
}
