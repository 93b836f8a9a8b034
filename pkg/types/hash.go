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
	"errors"
	"strings"

	"github.com/jeremyhahn/go-presence/pkg/canonical"
)

// HashAction returns the hex SHA-256 of the canonicalized action.
func HashAction(a *Action) (string, *Failure) {
	return hashCanonical(a, "action")
}

// HashReceipt returns the hex SHA-256 of the canonicalized receipt.
func HashReceipt(r *Receipt) (string, *Failure) {
	return hashCanonical(r, "receipt")
}

// HashChallengeRecord returns the hex SHA-256 of the canonicalized record.
func HashChallengeRecord(c *ChallengeRecord) (string, *Failure) {
	return hashCanonical(c, "challenge")
}

func hashCanonical(v any, what string) (string, *Failure) {
	h, err := canonical.Sha256HexCanonical(v)
	if err != nil {
		// encoding/json reports NaN/Inf as *json.UnsupportedValueError;
		// everything a caller can feed in through params lands here.
		var uve *json.UnsupportedValueError
		if errors.As(err, &uve) {
			return "", Failuref(CodeNonFiniteNumber, "%s: %v", what, err)
		}
		return "", Failuref(CodeInvalidStructure, "%s: %v", what, err)
	}
	return h, nil
}

// NewAction builds a normalized action document: uppercase method, absolute
// path, version tag applied. Params must already contain only JSON-safe
// values; non-finite numbers surface at hash time.
func NewAction(aud, purpose, method, path, query string, params map[string]any) *Action {
	if params == nil {
		params = map[string]any{}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &Action{
		V:       VersionAction,
		Aud:     aud,
		Purpose: purpose,
		Method:  strings.ToUpper(method),
		Path:    path,
		Query:   query,
		Params:  params,
	}
}
