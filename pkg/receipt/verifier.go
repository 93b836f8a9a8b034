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

// Package receipt orchestrates a single receipt verification attempt: the
// structural checks, the WebAuthn assertion checks, the challenge lifecycle,
// the optional action re-binding, and the single-use transition of the
// challenge record.
//
// A verification attempt is terminal: it resolves to exactly one verified or
// denied result, with no retries inside the core. Store calls are the only
// points of suspension; the stores own atomicity of get-then-mark-used.
package receipt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-presence/pkg/jwk"
	"github.com/jeremyhahn/go-presence/pkg/policy"
	"github.com/jeremyhahn/go-presence/pkg/types"
	"github.com/jeremyhahn/go-presence/pkg/webauthn"
)

// Result is the terminal outcome of one verification attempt.
type Result struct {
	OK     bool        `json:"ok"`
	Code   types.Code  `json:"code,omitempty"`
	Detail string      `json:"detail,omitempty"`

	ReceiptHash       string `json:"receiptHash,omitempty"`
	ActionHash        string `json:"actionHash,omitempty"`
	RPIDHashB64       string `json:"rpIdHash_b64url,omitempty"`
	ClientDataHashB64 string `json:"clientDataHash_b64url,omitempty"`
	FlagsHex          string `json:"flags_hex,omitempty"`
	SignCount         uint32 `json:"signCount,omitempty"`
}

// VerifyOpts carries the per-attempt inputs.
type VerifyOpts struct {
	// Policy is the materialized verification policy for the receipt's
	// purpose (required).
	Policy *policy.VerifyPolicy

	// Action, when supplied, is re-hashed and compared to the receipt's
	// declared actionHash. This is the strongest anti-substitution check and
	// should be preferred over trusting the declared hash alone.
	Action *types.Action

	// PublicKey overrides credential store lookup. Offline verifiers use
	// this when replaying a receipt from an export pack.
	PublicKey *jwk.JWK
}

// Verifier runs receipt verification attempts against caller-supplied stores.
// Both stores are optional: without a challenge store the lifecycle checks
// are skipped (offline replay), without a credential store an explicit public
// key must be supplied per attempt.
type Verifier struct {
	challenges  ChallengeStore
	credentials CredentialStore
	now         func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClock overrides the verifier's time source.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier creates a receipt verifier.
func NewVerifier(challenges ChallengeStore, credentials CredentialStore, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		challenges:  challenges,
		credentials: credentials,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify runs one verification attempt. The returned error is reserved for
// collaborator faults (store errors, missing configuration); every expected
// verification failure lands in the Result.
func (v *Verifier) Verify(ctx context.Context, rcpt *types.Receipt, opts VerifyOpts) (*Result, error) {
	if opts.Policy == nil {
		return nil, ErrNoPolicy
	}
	if v.credentials == nil && opts.PublicKey == nil {
		return nil, ErrNoPublicKey
	}

	// Structural checks: version tag, required fields, byte decodability.
	if fail := types.ValidateReceipt(rcpt); fail != nil {
		return denied(fail), nil
	}

	// WebAuthn checks short of the signature: ceremony type, challenge
	// equality, origin, rpId, flags.
	assertion, fail := webauthn.ParseAndCheck(&rcpt.AuthorSig, rcpt.Challenge, opts.Policy)
	if fail != nil {
		return denied(fail), nil
	}

	// Challenge lifecycle against the issuer's record.
	var record *types.ChallengeRecord
	if v.challenges != nil {
		var err error
		record, err = v.challenges.GetChallenge(ctx, rcpt.ChallengeID)
		if err != nil {
			if errors.Is(err, ErrChallengeNotFound) {
				return denied(types.Failuref(types.CodeChallengeNotFound, "challengeId %s", rcpt.ChallengeID)), nil
			}
			return nil, fmt.Errorf("receipt: get challenge: %w", err)
		}
		if fail := v.checkLifecycle(record, rcpt); fail != nil {
			return denied(fail), nil
		}
	}

	// Action re-binding: recompute the hash from the original action.
	if opts.Action != nil {
		actionHash, fail := types.HashAction(opts.Action)
		if fail != nil {
			return denied(fail), nil
		}
		if actionHash != rcpt.ActionHash {
			return denied(types.NewFailure(types.CodeActionHashMismatch,
				"recomputed action hash differs from receipt")), nil
		}
	}

	// Credential public key resolution.
	credKey := opts.PublicKey
	if credKey == nil {
		var err error
		credKey, err = v.credentials.GetPublicKeyJWK(ctx, rcpt.AuthorSig.CredID)
		if err != nil {
			if errors.Is(err, ErrCredentialNotFound) {
				return denied(types.Failuref(types.CodeCredentialNotFound, "credId %s", rcpt.AuthorSig.CredID)), nil
			}
			return nil, fmt.Errorf("receipt: get credential: %w", err)
		}
	}
	pub, err := credKey.ECDSAPublicKey()
	if err != nil {
		return denied(types.Failuref(types.CodeInvalidStructure, "credential key: %v", err)), nil
	}

	// Signature verification. Never skipped: a success result always means
	// this check ran with this key.
	assertionResult, fail := assertion.VerifySignature(pub)
	if fail != nil {
		return denied(fail), nil
	}

	receiptHash, hashFail := types.HashReceipt(rcpt)
	if hashFail != nil {
		return denied(hashFail), nil
	}

	// Single-use transition, with the receipt hash for audit linkage. The
	// store arbitrates races: a concurrent winner turns this attempt into
	// challenge_used.
	if v.challenges != nil {
		if err := v.challenges.MarkUsed(ctx, rcpt.ChallengeID, receiptHash); err != nil {
			if errors.Is(err, ErrChallengeUsed) {
				return denied(types.NewFailure(types.CodeChallengeUsed, "consumed by concurrent attempt")), nil
			}
			return nil, fmt.Errorf("receipt: mark used: %w", err)
		}
	}

	return &Result{
		OK:                true,
		ReceiptHash:       receiptHash,
		ActionHash:        rcpt.ActionHash,
		RPIDHashB64:       assertionResult.RPIDHashB64,
		ClientDataHashB64: assertionResult.ClientDataHashB64,
		FlagsHex:          assertionResult.FlagsHex,
		SignCount:         assertionResult.SignCount,
	}, nil
}

func (v *Verifier) checkLifecycle(record *types.ChallengeRecord, rcpt *types.Receipt) *types.Failure {
	if record.Challenge != rcpt.Challenge {
		return types.NewFailure(types.CodeChallengeMismatch, "stored challenge differs from receipt")
	}
	if record.Aud != rcpt.Aud {
		return types.Failuref(types.CodeAudMismatch, "challenge bound to %q", record.Aud)
	}
	if record.Purpose != rcpt.Purpose {
		return types.Failuref(types.CodePurposeMismatch, "challenge bound to %q", record.Purpose)
	}
	if record.ActionHash != rcpt.ActionHash {
		return types.NewFailure(types.CodeActionHashMismatch, "challenge bound to a different action")
	}
	expiresAt, err := record.ExpiresAtTime()
	if err != nil {
		return types.NewFailure(types.CodeInvalidStructure, "challenge: expiresAt not RFC3339")
	}
	if !v.now().Before(expiresAt) {
		return types.Failuref(types.CodeChallengeExpired, "expired at %s", record.ExpiresAt)
	}
	if record.UsedAt != nil {
		return types.Failuref(types.CodeChallengeUsed, "used at %s", *record.UsedAt)
	}
	return nil
}

func denied(fail *types.Failure) *Result {
	return &Result{Code: fail.Code, Detail: fail.Detail}
}
