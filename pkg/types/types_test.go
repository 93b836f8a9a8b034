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
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-presence/pkg/canonical"
)

func validReceiptJSON() []byte {
	r := Receipt{
		V:           VersionReceipt,
		ChallengeID: "chal-1",
		Challenge:   canonical.EncodeB64URL([]byte("challenge-bytes")),
		ActionHash:  "deadbeef",
		Aud:         "org1",
		Purpose:     "payout",
		AuthorSig: AuthorSig{
			CredID:            canonical.EncodeB64URL([]byte("cred")),
			AuthenticatorData: canonical.EncodeB64URL(make([]byte, 37)),
			ClientDataJSON:    canonical.EncodeB64URL([]byte(`{}`)),
			Signature:         canonical.EncodeB64URL([]byte("sig")),
		},
	}
	data, _ := json.Marshal(r)
	return data
}

func TestParseReceipt(t *testing.T) {
	r, f := ParseReceipt(validReceiptJSON())
	require.Nil(t, f)
	assert.Equal(t, "chal-1", r.ChallengeID)
}

func TestParseReceiptFailures(t *testing.T) {
	tests := []struct {
		name   string
		mut    func(m map[string]any)
		code   Code
	}{
		{"wrong version", func(m map[string]any) { m["v"] = "pbi-receipt-0.9" }, CodeInvalidVersion},
		{"missing challengeId", func(m map[string]any) { delete(m, "challengeId") }, CodeInvalidStructure},
		{"bad signature encoding", func(m map[string]any) {
			m["authorSig"].(map[string]any)["signature"] = "!!не-base64!!"
		}, CodeInvalidEncoding},
		{"missing authorSig field", func(m map[string]any) {
			delete(m["authorSig"].(map[string]any), "credId")
		}, CodeInvalidStructure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m map[string]any
			require.NoError(t, json.Unmarshal(validReceiptJSON(), &m))
			tt.mut(m)
			data, err := json.Marshal(m)
			require.NoError(t, err)
			_, f := ParseReceipt(data)
			require.NotNil(t, f)
			assert.Equal(t, tt.code, f.Code)
		})
	}
}

func TestParseActionNormalization(t *testing.T) {
	a := NewAction("org1", "payout", "post", "transfer", "", map[string]any{"amount": "100.00"})
	assert.Equal(t, "POST", a.Method)
	assert.Equal(t, "/transfer", a.Path)

	data, err := json.Marshal(a)
	require.NoError(t, err)
	parsed, f := ParseAction(data)
	require.Nil(t, f)
	assert.Equal(t, a.Method, parsed.Method)
}

func TestParseActionRejectsLowercaseMethod(t *testing.T) {
	data := []byte(`{"v":"pbi-action-1.0","aud":"a","purpose":"p","method":"post","path":"/x","query":"","params":{}}`)
	_, f := ParseAction(data)
	require.NotNil(t, f)
	assert.Equal(t, CodeInvalidStructure, f.Code)
}

func TestParseChallengeRecord(t *testing.T) {
	rec := ChallengeRecord{
		V:           VersionChallenge,
		ChallengeID: "chal-1",
		Challenge:   canonical.EncodeB64URL([]byte("bytes")),
		ActionHash:  "aa",
		Aud:         "org1",
		Purpose:     "payout",
		ExpiresAt:   time.Now().Add(time.Minute).UTC().Format(time.RFC3339),
	}
	data, _ := json.Marshal(rec)
	parsed, f := ParseChallengeRecord(data)
	require.Nil(t, f)
	assert.Nil(t, parsed.UsedAt)

	exp, err := parsed.ExpiresAtTime()
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))
}

func TestHashActionDeterministic(t *testing.T) {
	a1 := NewAction("org1", "payout", "POST", "/transfer", "", map[string]any{
		"amount": "100.00", "to": "acct_1",
	})
	a2 := NewAction("org1", "payout", "POST", "/transfer", "", map[string]any{
		"to": "acct_1", "amount": "100.00",
	})
	h1, f := HashAction(a1)
	require.Nil(t, f)
	h2, f := HashAction(a2)
	require.Nil(t, f)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHashActionNonFinite(t *testing.T) {
	for name, v := range map[string]float64{
		"positive inf": math.Inf(1),
		"negative inf": math.Inf(-1),
		"nan":          math.NaN(),
	} {
		t.Run(name, func(t *testing.T) {
			a := NewAction("org1", "payout", "POST", "/transfer", "", map[string]any{
				"amount": v,
			})
			_, f := HashAction(a)
			require.NotNil(t, f)
			assert.Equal(t, CodeNonFiniteNumber, f.Code)
		})
	}
}

func TestHashReceiptChangesWithContent(t *testing.T) {
	r1, f := ParseReceipt(validReceiptJSON())
	require.Nil(t, f)
	h1, f := HashReceipt(r1)
	require.Nil(t, f)

	r2 := *r1
	r2.Purpose = "login"
	h2, f := HashReceipt(&r2)
	require.Nil(t, f)
	assert.NotEqual(t, h1, h2)
}

func TestParseTrustRootsFile(t *testing.T) {
	data := []byte(`{
		"v": "pbi-trust-roots-1.0",
		"roots": [{
			"name": "root-a",
			"keyId": "aa",
			"pubKeyJwk": {"kty": "OKP", "crv": "Ed25519", "x": "AAAA"},
			"notBefore": "2024-01-01T00:00:00Z",
			"notAfter": null
		}],
		"revocations": [{"keyId": "bb", "revokedAt": "2025-06-01T00:00:00Z", "reason": "compromise"}]
	}`)
	f, fail := ParseTrustRootsFile(data)
	require.Nil(t, fail)
	require.Len(t, f.Roots, 1)
	assert.Nil(t, f.Roots[0].NotAfter)
	require.Len(t, f.Revocations, 1)
}

func TestParseTrustRootsFileBadTimestamps(t *testing.T) {
	data := []byte(`{
		"v": "pbi-trust-roots-1.0",
		"roots": [{
			"name": "root-a",
			"keyId": "aa",
			"pubKeyJwk": {"kty": "OKP", "crv": "Ed25519", "x": "AAAA"},
			"notBefore": "yesterday"
		}]
	}`)
	_, fail := ParseTrustRootsFile(data)
	require.NotNil(t, fail)
	assert.Equal(t, CodeInvalidStructure, fail.Code)
}

func TestParseManifestSignatureAlgorithmPinned(t *testing.T) {
	data := []byte(`{
		"algorithm": "RSA",
		"keyId": "aa",
		"publicKeyPem": "x",
		"signatureB64Url": "AAAA",
		"manifestSha256": "` + canonical.Sha256Hex(nil) + `",
		"signedAt": "2025-01-01T00:00:00Z"
	}`)
	_, f := ParseManifestSignature(data)
	require.NotNil(t, f)
	assert.Equal(t, CodeInvalidStructure, f.Code)
}

func TestFailureError(t *testing.T) {
	assert.Equal(t, "challenge_used", NewFailure(CodeChallengeUsed, "").Error())
	assert.Equal(t, "aud_mismatch: want org1", Failuref(CodeAudMismatch, "want %s", "org1").Error())
}
