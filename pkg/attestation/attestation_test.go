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

package attestation

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-presence/pkg/canonical"
	"github.com/jeremyhahn/go-presence/pkg/jwk"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

func newSigner(t *testing.T) (ed25519.PrivateKey, *jwk.JWK) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := jwk.FromEd25519PublicKey(pub)
	require.NoError(t, err)
	return priv, key
}

func testBase() Base {
	return Base{
		Decision:    DecisionVerified,
		ReceiptHash: canonical.Sha256Hex([]byte("receipt")),
		ActionHash:  canonical.Sha256Hex([]byte("action")),
		ChallengeID: "chal-1",
		Aud:         "org1",
		Purpose:     "payout",
		PolicyVer:   "2026-01-01",
		PolicyHash:  canonical.Sha256Hex([]byte("policy")),
		VerifiedAt:  time.Now().UTC().Format(time.RFC3339),
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	priv, key := newSigner(t)

	att, err := Sign(testBase(), priv, key)
	require.NoError(t, err)

	assert.Equal(t, types.VersionAttestation, att.V)
	assert.Equal(t, "EdDSA", att.Verifier.Alg)

	wantKid, err := key.KeyID()
	require.NoError(t, err)
	assert.Equal(t, wantKid, att.Verifier.Kid)

	require.Nil(t, Verify(att))
}

func TestVerifyRejectsMutatedSignedFields(t *testing.T) {
	priv, key := newSigner(t)

	tests := []struct {
		name string
		mut  func(a *types.Attestation)
	}{
		{"receiptHash", func(a *types.Attestation) { a.ReceiptHash = canonical.Sha256Hex([]byte("x")) }},
		{"decision", func(a *types.Attestation) { a.Decision = DecisionDenied }},
		{"policyHash", func(a *types.Attestation) { a.PolicyHash = canonical.Sha256Hex([]byte("x")) }},
		{"verifiedAt", func(a *types.Attestation) { a.VerifiedAt = "2020-01-01T00:00:00Z" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att, err := Sign(testBase(), priv, key)
			require.NoError(t, err)
			tt.mut(att)
			fail := Verify(att)
			require.NotNil(t, fail)
			assert.Equal(t, types.CodeAttestationSigInvalid, fail.Code)
		})
	}
}

func TestVerifyRejectsTamperedSignatureBytes(t *testing.T) {
	priv, key := newSigner(t)
	att, err := Sign(testBase(), priv, key)
	require.NoError(t, err)

	raw, err := canonical.DecodeB64URL(att.VerifierSig)
	require.NoError(t, err)
	raw[0] ^= 0x01
	att.VerifierSig = canonical.EncodeB64URL(raw)

	fail := Verify(att)
	require.NotNil(t, fail)
	assert.Equal(t, types.CodeAttestationSigInvalid, fail.Code)
}

func TestVerifyRejectsKidMismatch(t *testing.T) {
	priv, key := newSigner(t)
	att, err := Sign(testBase(), priv, key)
	require.NoError(t, err)

	att.Verifier.Kid = canonical.Sha256Hex([]byte("someone-else"))

	fail := Verify(att)
	require.NotNil(t, fail)
	assert.Equal(t, types.CodeKeyIDMismatch, fail.Code)
}

func TestVerifyRejectsSubstitutedKey(t *testing.T) {
	priv, key := newSigner(t)
	att, err := Sign(testBase(), priv, key)
	require.NoError(t, err)

	// Swap in another key and its matching kid: the signature no longer
	// verifies even though the kid is self-consistent.
	_, otherKey := newSigner(t)
	otherKid, err := otherKey.KeyID()
	require.NoError(t, err)
	att.Verifier.PubKeyJwk = otherKey
	att.Verifier.Kid = otherKid

	fail := Verify(att)
	require.NotNil(t, fail)
	assert.Equal(t, types.CodeAttestationSigInvalid, fail.Code)
}

func TestCrossCheck(t *testing.T) {
	priv, key := newSigner(t)

	action := types.NewAction("org1", "payout", "POST", "/transfer", "", map[string]any{
		"amount": "100.00", "to": "acct_1",
	})
	actionHash, fail := types.HashAction(action)
	require.Nil(t, fail)

	rcpt := &types.Receipt{
		V:           types.VersionReceipt,
		ChallengeID: "chal-1",
		Challenge:   canonical.EncodeB64URL([]byte("challenge-bytes-0123456789abcdef")),
		Aud:         "org1",
		Purpose:     "payout",
		ActionHash:  actionHash,
		AuthorSig: types.AuthorSig{
			CredID:            canonical.EncodeB64URL([]byte("cred")),
			AuthenticatorData: canonical.EncodeB64URL(make([]byte, 37)),
			ClientDataJSON:    canonical.EncodeB64URL([]byte("{}")),
			Signature:         canonical.EncodeB64URL([]byte("sig")),
		},
	}
	receiptHash, fail := types.HashReceipt(rcpt)
	require.Nil(t, fail)

	policyFile := []byte(`{"ver":"2026-01-01","purposes":{}}`)
	policyHash := canonical.Sha256HexUTF8(`{"purposes":{},"ver":"2026-01-01"}`)

	base := testBase()
	base.ReceiptHash = receiptHash
	base.ActionHash = actionHash
	base.PolicyHash = policyHash
	att, err := Sign(base, priv, key)
	require.NoError(t, err)

	require.Nil(t, CrossCheck(att, rcpt, action, policyFile))

	tests := []struct {
		name string
		mut  func(a *types.Attestation)
	}{
		{"receiptHash", func(a *types.Attestation) { a.ReceiptHash = canonical.Sha256Hex([]byte("x")) }},
		{"actionHash", func(a *types.Attestation) { a.ActionHash = canonical.Sha256Hex([]byte("x")) }},
		{"policyHash", func(a *types.Attestation) { a.PolicyHash = canonical.Sha256Hex([]byte("x")) }},
		{"challengeId", func(a *types.Attestation) { a.ChallengeID = "chal-2" }},
		{"aud", func(a *types.Attestation) { a.Aud = "org2" }},
		{"purpose", func(a *types.Attestation) { a.Purpose = "login" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			att, err := Sign(base, priv, key)
			require.NoError(t, err)
			tt.mut(att)
			fail := CrossCheck(att, rcpt, action, policyFile)
			require.NotNil(t, fail)
			assert.Equal(t, types.CodeCrossRefMismatch, fail.Code)
		})
	}
}

func TestCrossCheckWithoutOptionalInputs(t *testing.T) {
	priv, key := newSigner(t)

	rcpt := &types.Receipt{
		V:           types.VersionReceipt,
		ChallengeID: "chal-1",
		Challenge:   canonical.EncodeB64URL([]byte("challenge-bytes-0123456789abcdef")),
		Aud:         "org1",
		Purpose:     "payout",
		ActionHash:  canonical.Sha256Hex([]byte("action")),
		AuthorSig: types.AuthorSig{
			CredID:            canonical.EncodeB64URL([]byte("cred")),
			AuthenticatorData: canonical.EncodeB64URL(make([]byte, 37)),
			ClientDataJSON:    canonical.EncodeB64URL([]byte("{}")),
			Signature:         canonical.EncodeB64URL([]byte("sig")),
		},
	}
	receiptHash, fail := types.HashReceipt(rcpt)
	require.Nil(t, fail)

	base := testBase()
	base.ReceiptHash = receiptHash
	base.ActionHash = rcpt.ActionHash
	att, err := Sign(base, priv, key)
	require.NoError(t, err)

	// Nil action and policy skip their recomputation checks but the
	// receipt-bound equalities still run.
	require.Nil(t, CrossCheck(att, rcpt, nil, nil))
}
