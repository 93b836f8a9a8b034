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

// Package policy resolves verification policy: which relying party IDs and
// origins a purpose admits, which authenticator flags it demands, and which
// parameter rules an action must satisfy. Policy files may be wrapped in an
// Ed25519-signed envelope whose signature covers the policy hash.
package policy

import (
	"encoding/json"
	"regexp"

	"github.com/jeremyhahn/go-presence/pkg/canonical"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

// ParamRule constrains one action parameter.
type ParamRule struct {
	Type    string   `json:"type"`
	Enum    []string `json:"enum,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
	MaxLen  int      `json:"maxLen,omitempty"`
	GT      string   `json:"gt,omitempty"`
}

// PurposeProfile is the per-purpose section of a policy file.
type PurposeProfile struct {
	RPIDAllowList   []string             `json:"rpIdAllowList"`
	OriginAllowList []string             `json:"originAllowList"`
	RequireUP       bool                 `json:"requireUP"`
	RequireUV       bool                 `json:"requireUV"`
	RequiredParams  []string             `json:"requiredParams,omitempty"`
	Params          map[string]ParamRule `json:"params,omitempty"`
}

// PolicyFile is the full policy document. Its hash is the SHA-256 of its
// canonical form and is what attestations and signed envelopes bind to.
type PolicyFile struct {
	Ver      string                    `json:"ver"`
	Purposes map[string]PurposeProfile `json:"purposes"`
}

// VerifyPolicy is the materialized policy for one verification attempt.
type VerifyPolicy struct {
	RPIDAllowList   []string
	OriginAllowList []string
	RequireUP       bool
	RequireUV       bool
}

var paramTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"decimal": true,
	"boolean": true,
}

// ParsePolicyFile structurally validates a policy document. Data errors are
// reported as failures, never panics.
func ParsePolicyFile(data []byte) (*PolicyFile, *types.Failure) {
	var pf PolicyFile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, types.Failuref(types.CodeInvalidStructure, "policy: %v", err)
	}
	if pf.Ver == "" {
		return nil, types.NewFailure(types.CodeInvalidStructure, "policy: missing ver")
	}
	if len(pf.Purposes) == 0 {
		return nil, types.NewFailure(types.CodeInvalidStructure, "policy: no purposes")
	}
	for purpose, prof := range pf.Purposes {
		if len(prof.RPIDAllowList) == 0 || len(prof.OriginAllowList) == 0 {
			return nil, types.Failuref(types.CodeInvalidStructure,
				"policy: purpose %q: empty allowlist", purpose)
		}
		for _, required := range prof.RequiredParams {
			if _, ok := prof.Params[required]; !ok {
				return nil, types.Failuref(types.CodeInvalidStructure,
					"policy: purpose %q: required param %q has no rule", purpose, required)
			}
		}
		for name, rule := range prof.Params {
			if !paramTypes[rule.Type] {
				return nil, types.Failuref(types.CodeInvalidStructure,
					"policy: purpose %q: param %q: unknown type %q", purpose, name, rule.Type)
			}
			if rule.Pattern != "" {
				if _, err := regexp.Compile(rule.Pattern); err != nil {
					return nil, types.Failuref(types.CodeInvalidStructure,
						"policy: purpose %q: param %q: bad pattern", purpose, name)
				}
			}
			if rule.MaxLen < 0 {
				return nil, types.Failuref(types.CodeInvalidStructure,
					"policy: purpose %q: param %q: negative maxLen", purpose, name)
			}
			if rule.GT != "" && !decimalPattern.MatchString(rule.GT) {
				return nil, types.Failuref(types.CodeInvalidStructure,
					"policy: purpose %q: param %q: gt is not a positive decimal", purpose, name)
			}
		}
	}
	return &pf, nil
}

// BuildVerifyPolicy materializes the verification policy for purpose.
func BuildVerifyPolicy(pf *PolicyFile, purpose string) (*VerifyPolicy, *types.Failure) {
	prof, ok := pf.Purposes[purpose]
	if !ok {
		return nil, types.Failuref(types.CodePurposeUnknown, "purpose %q", purpose)
	}
	return &VerifyPolicy{
		RPIDAllowList:   prof.RPIDAllowList,
		OriginAllowList: prof.OriginAllowList,
		RequireUP:       prof.RequireUP,
		RequireUV:       prof.RequireUV,
	}, nil
}

// ComputePolicyHash returns the hex SHA-256 of the canonicalized policy file.
func ComputePolicyHash(pf *PolicyFile) (string, error) {
	return canonical.Sha256HexCanonical(pf)
}
