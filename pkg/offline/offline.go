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

// Package offline replays a complete export pack with no network and no
// stores: pack integrity, policy snapshot, every receipt, every attestation,
// and optionally the attestor trust chain.
//
// Verification is staged and fail-closed: the first failing stage stops the
// run and the report carries every stage up to and including it.
package offline

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-presence/pkg/attestation"
	"github.com/jeremyhahn/go-presence/pkg/canonical"
	"github.com/jeremyhahn/go-presence/pkg/export"
	"github.com/jeremyhahn/go-presence/pkg/policy"
	"github.com/jeremyhahn/go-presence/pkg/receipt"
	"github.com/jeremyhahn/go-presence/pkg/trust"
	"github.com/jeremyhahn/go-presence/pkg/types"
)

// Stage names in the order they run.
const (
	StagePackIntegrity = "pack_integrity"
	StagePolicy        = "policy"
	StageReceipts      = "receipts"
	StageAttestations  = "attestations"
	StageAttestorTrust = "attestor_trust"
)

// Options configures a pack verification run.
type Options struct {
	// PinnedPackKey and PinnedPackKeyID pin the expected manifest signer.
	// Without a pin the manifest signature only proves internal consistency.
	PinnedPackKey   ed25519.PublicKey
	PinnedPackKeyID string

	// TrustRoots enables the attestor trust stage: every attestation's
	// signer kid must resolve to a valid trust root.
	TrustRoots *types.TrustRootsFile

	// AttestorAllowlist optionally narrows the trust stage further: the
	// bundle must carry a root signature valid under TrustRoots and every
	// attestation's signer kid must appear in its allowlist payload.
	// Requires TrustRoots.
	AttestorAllowlist *types.SignedTrustBundle

	// TrustEval selects the instant attestor roots are evaluated at.
	// Defaults to strict.
	TrustEval trust.EvalMode

	// Now overrides the wall clock used by strict trust evaluation.
	Now time.Time
}

// StageResult reports one verification stage.
type StageResult struct {
	Stage  string     `json:"stage"`
	OK     bool       `json:"ok"`
	Code   types.Code `json:"code,omitempty"`
	Detail string     `json:"detail,omitempty"`
}

// Report is the outcome of a full pack verification run.
type Report struct {
	OK           bool          `json:"ok"`
	PackDir      string        `json:"packDir"`
	PolicyVer    string        `json:"policyVer,omitempty"`
	PolicyHash   string        `json:"policyHash,omitempty"`
	ReceiptCount int           `json:"receiptCount"`
	Stages       []StageResult `json:"stages"`
}

func (r *Report) pass(stage string) {
	r.Stages = append(r.Stages, StageResult{Stage: stage, OK: true})
}

func (r *Report) fail(stage string, code types.Code, detail string) *Report {
	r.Stages = append(r.Stages, StageResult{Stage: stage, Code: code, Detail: detail})
	r.OK = false
	return r
}

// VerifyPack loads and fully verifies the export pack in dir. The returned
// error is reserved for I/O and configuration faults; every verification
// failure lands in the report.
func VerifyPack(ctx context.Context, dir string, opts Options) (*Report, error) {
	mode := opts.TrustEval
	if mode == "" {
		mode = trust.EvalStrict
	} else if _, err := trust.ParseEvalMode(string(mode)); err != nil {
		return nil, err
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	report := &Report{OK: true, PackDir: dir}

	pack, err := export.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	if res := pack.Verify(export.VerifyOpts{
		PinnedPublicKey: opts.PinnedPackKey,
		PinnedKeyID:     opts.PinnedPackKeyID,
	}); !res.OK {
		return report.fail(StagePackIntegrity, res.Code, res.Detail), nil
	}
	report.pass(StagePackIntegrity)

	pf, policyDoc, policyHash, fail := loadPolicySnapshot(pack.Files[export.FilePolicy])
	if fail != nil {
		return report.fail(StagePolicy, fail.Code, fail.Detail), nil
	}
	report.PolicyVer = pf.Ver
	report.PolicyHash = policyHash
	report.pass(StagePolicy)

	entries, fail := pack.Entries()
	if fail != nil {
		return report.fail(StageReceipts, fail.Code, fail.Detail), nil
	}
	report.ReceiptCount = len(entries)

	verifier := receipt.NewVerifier(nil, nil)
	for i, entry := range entries {
		if entry.CredPubKey == nil {
			return report.fail(StageReceipts, types.CodeInvalidStructure,
				fmt.Sprintf("entry %d: no credential public key", i+1)), nil
		}
		vp, fail := policy.BuildVerifyPolicy(pf, entry.Receipt.Purpose)
		if fail != nil {
			return report.fail(StageReceipts, fail.Code,
				fmt.Sprintf("entry %d: %s", i+1, fail.Detail)), nil
		}
		res, err := verifier.Verify(ctx, entry.Receipt, receipt.VerifyOpts{
			Policy:    vp,
			Action:    entry.Action,
			PublicKey: entry.CredPubKey,
		})
		if err != nil {
			return nil, fmt.Errorf("offline: entry %d: %w", i+1, err)
		}
		if !res.OK {
			return report.fail(StageReceipts, res.Code,
				fmt.Sprintf("entry %d: %s", i+1, res.Detail)), nil
		}
	}
	report.pass(StageReceipts)

	for i, entry := range entries {
		att := entry.Attestation
		if att == nil {
			continue
		}
		if fail := attestation.Verify(att); fail != nil {
			return report.fail(StageAttestations, fail.Code,
				fmt.Sprintf("entry %d: %s", i+1, fail.Detail)), nil
		}
		if fail := attestation.CrossCheck(att, entry.Receipt, entry.Action, policyDoc); fail != nil {
			return report.fail(StageAttestations, fail.Code,
				fmt.Sprintf("entry %d: %s", i+1, fail.Detail)), nil
		}
	}
	report.pass(StageAttestations)

	if opts.TrustRoots != nil {
		var allow *types.AttestorAllowlist
		if opts.AttestorAllowlist != nil {
			if fail := trust.VerifySignedBundle(opts.AttestorAllowlist, opts.TrustRoots, mode, now, now); fail != nil {
				return report.fail(StageAttestorTrust, fail.Code, fail.Detail), nil
			}
			allow = &types.AttestorAllowlist{}
			if err := json.Unmarshal(opts.AttestorAllowlist.Payload, allow); err != nil {
				return report.fail(StageAttestorTrust, types.CodeInvalidStructure,
					fmt.Sprintf("allowlist payload: %v", err)), nil
			}
		}
		for i, entry := range entries {
			att := entry.Attestation
			if att == nil {
				continue
			}
			verifiedAt, err := time.Parse(time.RFC3339, att.VerifiedAt)
			if err != nil {
				return report.fail(StageAttestorTrust, types.CodeInvalidStructure,
					fmt.Sprintf("entry %d: verifiedAt not RFC3339", i+1)), nil
			}
			if fail := trust.EvaluateAttestor(opts.TrustRoots, att.Verifier.Kid, mode, now, verifiedAt); fail != nil {
				return report.fail(StageAttestorTrust, fail.Code,
					fmt.Sprintf("entry %d: %s", i+1, fail.Detail)), nil
			}
			if allow != nil {
				if fail := trust.CheckAllowlist(allow, att.Verifier.Kid); fail != nil {
					return report.fail(StageAttestorTrust, fail.Code,
						fmt.Sprintf("entry %d: %s", i+1, fail.Detail)), nil
				}
			}
		}
		report.pass(StageAttestorTrust)
	}

	return report, nil
}

// loadPolicySnapshot accepts either a signed policy envelope or a raw policy
// file and returns the policy, the raw policy document bytes, and the hash
// attestations bind to.
func loadPolicySnapshot(data []byte) (*policy.PolicyFile, []byte, string, *types.Failure) {
	if len(data) == 0 {
		return nil, nil, "", types.NewFailure(types.CodeInvalidStructure, "pack has no policy snapshot")
	}

	var probe struct {
		V string `json:"v"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, nil, "", types.Failuref(types.CodeInvalidStructure, "policy snapshot: %v", err)
	}

	if probe.V == types.VersionSignedPolicy {
		sp, fail := policy.ParseSignedPolicy(data)
		if fail != nil {
			return nil, nil, "", fail
		}
		pf, policyHash, fail := policy.VerifySignedPolicy(sp)
		if fail != nil {
			return nil, nil, "", fail
		}
		return pf, []byte(sp.Policy), policyHash, nil
	}

	pf, fail := policy.ParsePolicyFile(data)
	if fail != nil {
		return nil, nil, "", fail
	}
	policyHash, err := canonical.Sha256HexCanonical(json.RawMessage(data))
	if err != nil {
		return nil, nil, "", types.Failuref(types.CodeInvalidStructure, "policy snapshot: %v", err)
	}
	return pf, data, policyHash, nil
}
