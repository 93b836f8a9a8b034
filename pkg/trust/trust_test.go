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

package trust

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

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newRoot(t *testing.T, name string) (ed25519.PrivateKey, types.TrustRoot) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key, err := jwk.FromEd25519PublicKey(pub)
	require.NoError(t, err)
	kid, err := key.KeyID()
	require.NoError(t, err)
	return priv, types.TrustRoot{
		Name:      name,
		KeyID:     kid,
		PubKeyJwk: key,
		NotBefore: "2026-01-01T00:00:00Z",
	}
}

func rootsFile(roots ...types.TrustRoot) *types.TrustRootsFile {
	return &types.TrustRootsFile{V: types.VersionTrustRoots, Roots: roots}
}

func TestParseEvalMode(t *testing.T) {
	for _, s := range []string{"strict", "asof", "both"} {
		mode, err := ParseEvalMode(s)
		require.NoError(t, err)
		assert.Equal(t, EvalMode(s), mode)
	}
	_, err := ParseEvalMode("relaxed")
	assert.Error(t, err)
}

func TestRootValidAt(t *testing.T) {
	_, root := newRoot(t, "ops")
	notAfter := "2026-12-31T00:00:00Z"
	root.NotAfter = &notAfter

	tests := []struct {
		name string
		at   time.Time
		prep func(f *types.TrustRootsFile)
		code types.Code
	}{
		{"inside window", testNow, nil, ""},
		{"before notBefore", time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), nil, types.CodeRootNotYetValid},
		{"after notAfter", time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), nil, types.CodeRootExpired},
		{"flat blocklist", testNow, func(f *types.TrustRootsFile) {
			f.RevokedRootKeyIDs = []string{root.KeyID}
		}, types.CodeRootRevoked},
		{"dated revocation in the past", testNow, func(f *types.TrustRootsFile) {
			f.Revocations = []types.Revocation{{KeyID: root.KeyID, RevokedAt: "2026-03-01T00:00:00Z"}}
		}, types.CodeRootRevoked},
		{"dated revocation in the future does not yet apply", testNow, func(f *types.TrustRootsFile) {
			f.Revocations = []types.Revocation{{KeyID: root.KeyID, RevokedAt: "2026-09-01T00:00:00Z"}}
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := rootsFile(root)
			if tt.prep != nil {
				tt.prep(f)
			}
			fail := RootValidAt(&root, tt.at, f)
			if tt.code == "" {
				assert.Nil(t, fail)
			} else {
				require.NotNil(t, fail)
				assert.Equal(t, tt.code, fail.Code)
			}
		})
	}
}

func TestEvaluateAttestorModes(t *testing.T) {
	_, root := newRoot(t, "attestor")
	f := rootsFile(root)

	// Revoked after verifiedAt but before now: asof passes, strict fails.
	verifiedAt := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	f.Revocations = []types.Revocation{{KeyID: root.KeyID, RevokedAt: "2026-04-01T00:00:00Z"}}

	assert.Nil(t, EvaluateAttestor(f, root.KeyID, EvalAsOf, testNow, verifiedAt))

	fail := EvaluateAttestor(f, root.KeyID, EvalStrict, testNow, verifiedAt)
	require.NotNil(t, fail)
	assert.Equal(t, types.CodeRootRevoked, fail.Code)

	// both fails if either instant fails.
	fail = EvaluateAttestor(f, root.KeyID, EvalBoth, testNow, verifiedAt)
	require.NotNil(t, fail)
	assert.Equal(t, types.CodeRootRevoked, fail.Code)

	fail = EvaluateAttestor(f, "unknown-kid", EvalStrict, testNow, verifiedAt)
	require.NotNil(t, fail)
	assert.Equal(t, types.CodeUntrustedRoot, fail.Code)
}

func TestCheckAllowlist(t *testing.T) {
	allow := &types.AttestorAllowlist{Attestors: []types.AllowedAttestor{
		{Kid: "kid-a", Name: "alpha"},
	}}
	assert.Nil(t, CheckAllowlist(allow, "kid-a"))

	fail := CheckAllowlist(allow, "kid-b")
	require.NotNil(t, fail)
	assert.Equal(t, types.CodeAttestorNotAllowed, fail.Code)
}

func TestSignedBundleRoundTrip(t *testing.T) {
	priv, root := newRoot(t, "bundle-signer")
	f := rootsFile(root)

	payload := []byte(`{"attestors":[{"kid":"kid-a"}]}`)
	bundle, err := SignBundle(payload, priv, &root)
	require.NoError(t, err)
	assert.Equal(t, types.VersionTrustBundle, bundle.V)

	assert.Nil(t, VerifySignedBundle(bundle, f, EvalStrict, testNow, testNow))
}

func TestVerifySignedBundleFailures(t *testing.T) {
	priv, root := newRoot(t, "bundle-signer")
	payload := []byte(`{"attestors":[]}`)

	sign := func(t *testing.T) *types.SignedTrustBundle {
		bundle, err := SignBundle(payload, priv, &root)
		require.NoError(t, err)
		return bundle
	}

	t.Run("tampered payload", func(t *testing.T) {
		bundle := sign(t)
		bundle.Payload = []byte(`{"attestors":[{"kid":"injected"}]}`)
		fail := VerifySignedBundle(bundle, rootsFile(root), EvalStrict, testNow, testNow)
		require.NotNil(t, fail)
		assert.Equal(t, types.CodeBundleSigInvalid, fail.Code)
	})

	t.Run("tampered signature bytes", func(t *testing.T) {
		bundle := sign(t)
		raw, err := canonical.DecodeB64URL(bundle.Signature.Sig)
		require.NoError(t, err)
		raw[0] ^= 0x01
		bundle.Signature.Sig = canonical.EncodeB64URL(raw)
		fail := VerifySignedBundle(bundle, rootsFile(root), EvalStrict, testNow, testNow)
		require.NotNil(t, fail)
		assert.Equal(t, types.CodeBundleSigInvalid, fail.Code)
	})

	t.Run("keyId not matching embedded key", func(t *testing.T) {
		bundle := sign(t)
		bundle.Signature.KeyID = canonical.Sha256Hex([]byte("someone-else"))
		fail := VerifySignedBundle(bundle, rootsFile(root), EvalStrict, testNow, testNow)
		require.NotNil(t, fail)
		assert.Equal(t, types.CodeIssuerKeyIDMismatch, fail.Code)
	})

	t.Run("signer not a root", func(t *testing.T) {
		bundle := sign(t)
		_, other := newRoot(t, "other")
		fail := VerifySignedBundle(bundle, rootsFile(other), EvalStrict, testNow, testNow)
		require.NotNil(t, fail)
		assert.Equal(t, types.CodeUntrustedRoot, fail.Code)
	})

	t.Run("revoked root fails despite valid signature", func(t *testing.T) {
		bundle := sign(t)
		f := rootsFile(root)
		f.RevokedRootKeyIDs = []string{root.KeyID}
		fail := VerifySignedBundle(bundle, f, EvalStrict, testNow, testNow)
		require.NotNil(t, fail)
		assert.Equal(t, types.CodeRootRevoked, fail.Code)
	})

	t.Run("missing signature", func(t *testing.T) {
		bundle := sign(t)
		bundle.Signature = nil
		fail := VerifySignedBundle(bundle, rootsFile(root), EvalStrict, testNow, testNow)
		require.NotNil(t, fail)
		assert.Equal(t, types.CodeInvalidStructure, fail.Code)
	})
}
