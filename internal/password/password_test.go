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

package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClearPassword(t *testing.T) {
	p, err := NewClearPassword([]byte("secret"))
	require.NoError(t, err)

	s, err := p.String()
	require.NoError(t, err)
	assert.Equal(t, "secret", s)

	_, err = NewClearPassword(nil)
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestNewClearPasswordCopiesInput(t *testing.T) {
	src := []byte("secret")
	p, err := NewClearPassword(src)
	require.NoError(t, err)

	src[0] = 'X'
	s, err := p.String()
	require.NoError(t, err)
	assert.Equal(t, "secret", s)
}

func TestBytesReturnsCopy(t *testing.T) {
	p, err := NewClearPasswordFromString("secret")
	require.NoError(t, err)

	b := p.Bytes()
	b[0] = 'X'
	assert.Equal(t, []byte("secret"), p.Bytes())
}

func TestClear(t *testing.T) {
	p, err := NewClearPasswordFromString("secret")
	require.NoError(t, err)

	p.Clear()
	_, err = p.String()
	assert.ErrorIs(t, err, ErrPasswordZeroed)
	assert.Nil(t, p.Bytes())

	// Clearing twice is a no-op.
	p.Clear()
}

func TestEqual(t *testing.T) {
	a, err := NewClearPasswordFromString("secret")
	require.NoError(t, err)
	b, err := NewClearPasswordFromString("secret")
	require.NoError(t, err)
	c, err := NewClearPasswordFromString("other")
	require.NoError(t, err)

	eq, err := Equal(a, b)
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = Equal(a, c)
	require.NoError(t, err)
	assert.False(t, eq)

	b.Clear()
	_, err = Equal(a, b)
	assert.ErrorIs(t, err, ErrPasswordZeroed)
}
