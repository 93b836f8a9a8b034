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

package policy

import (
	"errors"
	"regexp"
	"strings"
)

var decimalPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ErrInvalidDecimal is returned when a value is not a positive decimal string.
var ErrInvalidDecimal = errors.New("policy: invalid decimal string")

// CompareDecimal compares two positive decimal strings with arbitrary
// precision and returns -1, 0 or 1. Monetary thresholds must never pass
// through floating point, so the comparison works on digits: integer part by
// length then lexicographically, fraction part zero-padded to equal length.
func CompareDecimal(a, b string) (int, error) {
	if !decimalPattern.MatchString(a) || !decimalPattern.MatchString(b) {
		return 0, ErrInvalidDecimal
	}

	aInt, aFrac := splitDecimal(a)
	bInt, bFrac := splitDecimal(b)

	if len(aInt) != len(bInt) {
		if len(aInt) > len(bInt) {
			return 1, nil
		}
		return -1, nil
	}
	if c := strings.Compare(aInt, bInt); c != 0 {
		return c, nil
	}

	width := max(len(aFrac), len(bFrac))
	aFrac += strings.Repeat("0", width-len(aFrac))
	bFrac += strings.Repeat("0", width-len(bFrac))
	return strings.Compare(aFrac, bFrac), nil
}

func splitDecimal(s string) (intPart, fracPart string) {
	intPart, fracPart, _ = strings.Cut(s, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	fracPart = strings.TrimRight(fracPart, "0")
	return intPart, fracPart
}
