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
	"regexp"

	"github.com/jeremyhahn/go-presence/pkg/types"
)

// ValidateActionParams checks an action's params against the profile for its
// purpose: required params present, and every constrained param within its
// type/enum/pattern/length/threshold rules. Issuers run this before binding a
// challenge to an action hash.
func ValidateActionParams(pf *PolicyFile, action *types.Action) *types.Failure {
	prof, ok := pf.Purposes[action.Purpose]
	if !ok {
		return types.Failuref(types.CodePurposeUnknown, "purpose %q", action.Purpose)
	}
	for _, name := range prof.RequiredParams {
		if _, present := action.Params[name]; !present {
			return types.Failuref(types.CodeInvalidStructure, "missing required param %q", name)
		}
	}
	for name, rule := range prof.Params {
		value, present := action.Params[name]
		if !present {
			continue
		}
		if fail := checkParam(name, value, rule); fail != nil {
			return fail
		}
	}
	return nil
}

func checkParam(name string, value any, rule ParamRule) *types.Failure {
	switch rule.Type {
	case "boolean":
		if _, ok := value.(bool); !ok {
			return types.Failuref(types.CodeInvalidStructure, "param %q: expected boolean", name)
		}
		return nil
	case "number":
		if _, ok := value.(float64); !ok {
			if _, ok := value.(int); !ok {
				return types.Failuref(types.CodeInvalidStructure, "param %q: expected number", name)
			}
		}
		return nil
	}

	// string and decimal rules operate on string values
	s, ok := value.(string)
	if !ok {
		return types.Failuref(types.CodeInvalidStructure, "param %q: expected string", name)
	}
	if rule.MaxLen > 0 && len(s) > rule.MaxLen {
		return types.Failuref(types.CodeInvalidStructure, "param %q: exceeds max length %d", name, rule.MaxLen)
	}
	if len(rule.Enum) > 0 {
		found := false
		for _, allowed := range rule.Enum {
			if s == allowed {
				found = true
				break
			}
		}
		if !found {
			return types.Failuref(types.CodeInvalidStructure, "param %q: not in enum", name)
		}
	}
	if rule.Pattern != "" {
		// Pattern validity is established by ParsePolicyFile.
		re := regexp.MustCompile(rule.Pattern)
		if !re.MatchString(s) {
			return types.Failuref(types.CodeInvalidStructure, "param %q: pattern mismatch", name)
		}
	}
	if rule.Type == "decimal" {
		if !decimalPattern.MatchString(s) {
			return types.Failuref(types.CodeInvalidStructure, "param %q: not a positive decimal", name)
		}
		if rule.GT != "" {
			cmp, err := CompareDecimal(s, rule.GT)
			if err != nil {
				return types.Failuref(types.CodeInvalidStructure, "param %q: %v", name, err)
			}
			if cmp <= 0 {
				return types.Failuref(types.CodeInvalidStructure,
					"param %q: must be greater than %s", name, rule.GT)
			}
		}
	}
	return nil
}
