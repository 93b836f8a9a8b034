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

package jwk

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestECDSARoundTrip(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	k, err := FromECDSAPublicKey(&priv.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, KeyTypeEC, k.Kty)
	assert.Equal(t, CurveP256, k.Crv)

	pub, err := k.ECDSAPublicKey()
	require.NoError(t, err)
	assert.True(t, pub.Equal(&priv.PublicKey))
}

func TestEd25519RoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	k, err := FromEd25519PublicKey(pub)
	require.NoError(t, err)

	got, err := k.Ed25519PublicKey()
	require.NoError(t, err)
	assert.True(t, pub.Equal(got))
}

func TestKeyIDIgnoresMetadata(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	k, err := FromEd25519PublicKey(pub)
	require.NoError(t, err)

	bare, err := k.KeyID()
	require.NoError(t, err)
	require.Len(t, bare, 64)

	k.Alg = "EdDSA"
	k.Kid = "some-label"
	labeled, err := k.KeyID()
	require.NoError(t, err)
	assert.Equal(t, bare, labeled)
}

func TestKeyIDDistinctKeys(t *testing.T) {
	pub1, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pub2, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	k1, err := FromEd25519PublicKey(pub1)
	require.NoError(t, err)
	k2, err := FromEd25519PublicKey(pub2)
	require.NoError(t, err)

	id1, err := k1.KeyID()
	require.NoError(t, err)
	id2, err := k2.KeyID()
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestInvalidKeys(t *testing.T) {
	tests := []struct {
		name string
		key  JWK
	}{
		{"unsupported kty", JWK{Kty: "RSA"}},
		{"wrong curve", JWK{Kty: KeyTypeEC, Crv: "P-384", X: "AA", Y: "AA"}},
		{"missing x", JWK{Kty: KeyTypeOKP, Crv: CurveEd25519}},
		{"bad coordinate encoding", JWK{Kty: KeyTypeOKP, Crv: CurveEd25519, X: "*bad*"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.key.KeyID()
			assert.Error(t, err)
		})
	}
}

func TestECDSARejectsOffCurvePoint(t *testing.T) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	k, err := FromECDSAPublicKey(&priv.PublicKey)
	require.NoError(t, err)

	// Corrupt the Y coordinate while keeping its length valid.
	k.Y = k.X
	if k.X == k.Y {
		_, err = k.ECDSAPublicKey()
		// Either off-curve or, astronomically unlikely, still a valid point.
		assert.Error(t, err)
	}
}
