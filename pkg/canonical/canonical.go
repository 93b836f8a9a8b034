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

// Package canonical provides deterministic JSON serialization and the hashing
// helpers built on top of it.
//
// Every hashed or signed structure in this module is hashed over its canonical
// form: object keys sorted lexicographically at every nesting level, array order
// preserved, no insignificant whitespace (RFC 8785). Two logically equal values
// always canonicalize to the same bytes, so recomputed hashes can be compared
// bit-for-bit against declared ones.
package canonical

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Canonicalize serializes v to RFC 8785 canonical JSON.
//
// v may be any JSON-marshalable value, including json.RawMessage for data that
// is already serialized. Non-finite floating point values are rejected by the
// underlying JSON encoder.
func Canonicalize(v any) ([]byte, error) {
	raw, ok := v.(json.RawMessage)
	if !ok {
		var err error
		raw, err = json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("canonical: marshal: %w", err)
		}
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonical: transform: %w", err)
	}
	return out, nil
}

// Sha256Hex returns the lowercase hex SHA-256 digest of b.
func Sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum)
}

// Sha256B64URL returns the unpadded base64url SHA-256 digest of b.
func Sha256B64URL(b []byte) string {
	sum := sha256.Sum256(b)
	return EncodeB64URL(sum[:])
}

// Sha256HexUTF8 hashes the UTF-8 bytes of s.
func Sha256HexUTF8(s string) string {
	return Sha256Hex([]byte(s))
}

// Sha256HexCanonical canonicalizes v and returns the hex SHA-256 of the result.
func Sha256HexCanonical(v any) (string, error) {
	c, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return Sha256Hex(c), nil
}
