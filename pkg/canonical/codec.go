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
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidBase64URL is returned when base64url decoding fails.
var ErrInvalidBase64URL = errors.New("canonical: invalid base64url encoding")

// ErrInvalidHex is returned when hex decoding fails.
var ErrInvalidHex = errors.New("canonical: invalid hex encoding")

// EncodeB64URL encodes b as unpadded base64url.
func EncodeB64URL(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeB64URL decodes s as base64url, tolerating missing or present padding.
func DecodeB64URL(s string) ([]byte, error) {
	out, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, ErrInvalidBase64URL
	}
	return out, nil
}

// EncodeHex encodes b as lowercase hex.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeHex decodes a hex string.
func DecodeHex(s string) ([]byte, error) {
	out, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidHex
	}
	return out, nil
}
