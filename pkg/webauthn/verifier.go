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

// Package webauthn verifies WebAuthn assertion signature bundles against a
// verification policy.
//
// Verification is split into two stages so orchestrating callers can order
// their checks cheapest-first: ParseAndCheck performs every check that does
// not need the credential public key, VerifySignature performs the ES256
// check. Both stages are pure functions of their inputs and report every
// expected failure as a typed code.
package webauthn

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/jeremyhahn/go-presence/pkg/canonical"
	"github.com/jeremyhahn/go-presence/pkg/policy"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

// minAuthDataLength is rpIdHash (32) + flags (1) + signCount (4).
const minAuthDataLength = 37

// collectedClientData is the subset of clientDataJSON this verifier inspects.
type collectedClientData struct {
	Type        string `json:"type"`
	Challenge   string `json:"challenge"`
	Origin      string `json:"origin"`
	CrossOrigin *bool  `json:"crossOrigin"`
}

// Assertion is a decoded, policy-checked assertion awaiting its signature
// check.
type Assertion struct {
	authDataRaw    []byte
	authData       protocol.AuthenticatorData
	clientDataHash [sha256.Size]byte
	sigRaw         []byte
}

// AssertionResult carries the authenticator facts extracted from a
// successfully verified assertion.
type AssertionResult struct {
	RPIDHashB64       string `json:"rpIdHash_b64url"`
	ClientDataHashB64 string `json:"clientDataHash_b64url"`
	FlagsHex          string `json:"flags_hex"`
	SignCount         uint32 `json:"signCount"`
}

// ParseAndCheck runs every assertion check that precedes the signature:
//
//  1. clientDataJSON decodes, is "webauthn.get", carries the expected
//     challenge, an allowed origin, and is not cross-origin.
//  2. authenticatorData decodes, is at least 37 bytes, and its rpIdHash
//     matches the SHA-256 of an allowed rpId.
//  3. User Present / User Verified flags satisfy the policy.
func ParseAndCheck(sig *types.AuthorSig, challenge string, pol *policy.VerifyPolicy) (*Assertion, *types.Failure) {
	clientDataRaw, err := canonical.DecodeB64URL(sig.ClientDataJSON)
	if err != nil {
		return nil, types.NewFailure(types.CodeInvalidEncoding, "clientDataJSON")
	}
	var clientData collectedClientData
	if err := json.Unmarshal(clientDataRaw, &clientData); err != nil {
		return nil, types.Failuref(types.CodeInvalidStructure, "clientDataJSON: %v", err)
	}
	if clientData.Type != string(protocol.AssertCeremony) {
		return nil, types.Failuref(types.CodeWebAuthnTypeMismatch, "got %q", clientData.Type)
	}
	if clientData.Challenge != challenge {
		return nil, types.NewFailure(types.CodeChallengeMismatch, "clientDataJSON challenge differs")
	}
	if !contains(pol.OriginAllowList, clientData.Origin) {
		return nil, types.Failuref(types.CodeOriginNotAllowed, "origin %q", clientData.Origin)
	}
	if clientData.CrossOrigin != nil && *clientData.CrossOrigin {
		return nil, types.NewFailure(types.CodeOriginNotAllowed, "crossOrigin is true")
	}

	authDataRaw, err := canonical.DecodeB64URL(sig.AuthenticatorData)
	if err != nil {
		return nil, types.NewFailure(types.CodeInvalidEncoding, "authenticatorData")
	}
	if len(authDataRaw) < minAuthDataLength {
		return nil, types.Failuref(types.CodeInvalidStructure,
			"authenticatorData: %d bytes, need %d", len(authDataRaw), minAuthDataLength)
	}
	var authData protocol.AuthenticatorData
	if err := authData.Unmarshal(authDataRaw); err != nil {
		return nil, types.Failuref(types.CodeInvalidStructure, "authenticatorData: %v", err)
	}

	if !rpIDAllowed(authData.RPIDHash, pol.RPIDAllowList) {
		return nil, types.NewFailure(types.CodeRPIDNotAllowed, "rpIdHash matches no allowed rpId")
	}

	if pol.RequireUP && !authData.Flags.UserPresent() {
		return nil, types.NewFailure(types.CodeFlagsPolicyViolation, "user present flag not set")
	}
	if pol.RequireUV && !authData.Flags.UserVerified() {
		return nil, types.NewFailure(types.CodeFlagsPolicyViolation, "user verified flag not set")
	}

	sigRaw, err := canonical.DecodeB64URL(sig.Signature)
	if err != nil {
		return nil, types.NewFailure(types.CodeInvalidEncoding, "signature")
	}

	return &Assertion{
		authDataRaw:    authDataRaw,
		authData:       authData,
		clientDataHash: sha256.Sum256(clientDataRaw),
		sigRaw:         sigRaw,
	}, nil
}

// VerifySignature checks the DER ECDSA signature over
// authenticatorData || SHA-256(clientDataJSON) with the P-256 credential key.
func (a *Assertion) VerifySignature(pub *ecdsa.PublicKey) (*AssertionResult, *types.Failure) {
	signedBase := append(append([]byte{}, a.authDataRaw...), a.clientDataHash[:]...)
	baseHash := sha256.Sum256(signedBase)
	if !ecdsa.VerifyASN1(pub, baseHash[:], a.sigRaw) {
		return nil, types.NewFailure(types.CodeSignatureInvalid, "ES256 verification failed")
	}
	return &AssertionResult{
		RPIDHashB64:       canonical.EncodeB64URL(a.authData.RPIDHash),
		ClientDataHashB64: canonical.EncodeB64URL(a.clientDataHash[:]),
		FlagsHex:          fmt.Sprintf("%02x", byte(a.authData.Flags)),
		SignCount:         a.authData.Counter,
	}, nil
}

// VerifyAssertion runs both stages in one call.
func VerifyAssertion(sig *types.AuthorSig, challenge string, pub *ecdsa.PublicKey, pol *policy.VerifyPolicy) (*AssertionResult, *types.Failure) {
	assertion, fail := ParseAndCheck(sig, challenge, pol)
	if fail != nil {
		return nil, fail
	}
	return assertion.VerifySignature(pub)
}

func rpIDAllowed(rpIDHash []byte, allowList []string) bool {
	for _, rpID := range allowList {
		want := sha256.Sum256([]byte(rpID))
		if bytes.Equal(want[:], rpIDHash) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
