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

package canonical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeSortsKeysAtEveryDepth(t *testing.T) {
	out, err := Canonicalize(json.RawMessage(`{"b":1,"a":{"z":true,"y":[{"k":2,"j":1}]}}`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":[{"j":1,"k":2}],"z":true},"b":1}`, string(out))
}

func TestCanonicalizeKeyOrderIndependent(t *testing.T) {
	a, err := Canonicalize(json.RawMessage(`{"x": 1, "y": "s", "z": [1, 2, 3]}`))
	require.NoError(t, err)
	b, err := Canonicalize(json.RawMessage(`{"z":[1,2,3],"y":"s","x":1}`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCanonicalizeIdempotent(t *testing.T) {
	first, err := Canonicalize(json.RawMessage(`{"m":{"b":2,"a":1},"arr":[3,1,2]}`))
	require.NoError(t, err)
	second, err := Canonicalize(json.RawMessage(first))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCanonicalizePreservesArrayOrder(t *testing.T) {
	out, err := Canonicalize(json.RawMessage(`[3,1,2]`))
	require.NoError(t, err)
	assert.Equal(t, `[3,1,2]`, string(out))
}

func TestCanonicalizeStruct(t *testing.T) {
	type sample struct {
		Zeta  string `json:"zeta"`
		Alpha int    `json:"alpha"`
	}
	out, err := Canonicalize(sample{Zeta: "v", Alpha: 7})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":7,"zeta":"v"}`, string(out))
}

func TestCanonicalizeRejectsNonFinite(t *testing.T) {
	_, err := Canonicalize(map[string]any{"bad": func() {}})
	assert.Error(t, err)
}

func TestSha256Helpers(t *testing.T) {
	// sha256("") well-known vector
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sha256Hex(nil))
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sha256HexUTF8(""))
	assert.Equal(t, "47DEQpj8HBSa-_TImW-5JCeuQeRkm5NMpJWZG3hSuFU", Sha256B64URL(nil))
}

func TestSha256HexCanonicalStableAcrossKeyOrder(t *testing.T) {
	h1, err := Sha256HexCanonical(json.RawMessage(`{"a":1,"b":2}`))
	require.NoError(t, err)
	h2, err := Sha256HexCanonical(json.RawMessage(`{"b":2,"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
